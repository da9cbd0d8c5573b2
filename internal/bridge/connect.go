package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/svarun115/assistant-gateway/internal/config"
)

const (
	healthCheckInterval  = 30 * time.Second
	initialBackoff       = 2 * time.Second
	maxBackoff           = 60 * time.Second
	maxReconnectAttempts = 10
)

// connection tracks a single live MCP server connection within a
// Bridge.
type connection struct {
	name      string
	transport string
	client    *mcpclient.Client
	connected atomic.Bool
	toolNames []string
	cancel    context.CancelFunc

	mu             sync.Mutex
	reconnAttempts int
	lastErr        string
}

// connect dials an MCP server, runs the initialize handshake,
// discovers its tools, and registers each one into b.tools. A tool
// name already owned by an earlier-connected server is NOT dropped —
// it is registered under "{server}_{name}" instead, so both servers'
// copies of a same-named tool stay callable.
func (b *Bridge) connect(ctx context.Context, srv config.BridgeServerConfig) error {
	client, err := createClient(srv)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	if srv.Transport != "stdio" {
		if err := client.Start(ctx); err != nil {
			_ = client.Close()
			return fmt.Errorf("start transport: %w", err)
		}
	}

	initReq := mcpgo.InitializeRequest{}
	initReq.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	initReq.Params.ClientInfo = mcpgo.Implementation{Name: "assistant-gateway", Version: "1.0.0"}
	if _, err := client.Initialize(ctx, initReq); err != nil {
		_ = client.Close()
		return fmt.Errorf("initialize: %w", err)
	}

	toolsResult, err := client.ListTools(ctx, mcpgo.ListToolsRequest{})
	if err != nil {
		_ = client.Close()
		return fmt.Errorf("list tools: %w", err)
	}

	conn := &connection{name: srv.Name, transport: srv.Transport, client: client}
	conn.connected.Store(true)

	b.mu.Lock()
	var registered []string
	for _, mt := range toolsResult.Tools {
		name := resolveToolName(b.tools, srv.Name, mt.Name)
		if name != mt.Name {
			slog.Warn("bridge.tool.name_collision", "server", srv.Name, "tool", mt.Name, "registered_as", name)
		}
		var schemaMap map[string]any
		if schemaBytes, err := json.Marshal(mt.InputSchema); err == nil {
			_ = json.Unmarshal(schemaBytes, &schemaMap)
		}

		b.tools[name] = &Tool{
			ServerName:   srv.Name,
			name:         name,
			originalName: mt.Name,
			Description:  mt.Description,
			InputSchema:  schemaMap,
			client:       client,
			connected:    &conn.connected,
		}
		registered = append(registered, name)
	}
	conn.toolNames = registered
	b.conns[srv.Name] = conn
	b.mu.Unlock()

	hctx, hcancel := context.WithCancel(context.Background())
	conn.cancel = hcancel
	go b.healthLoop(hctx, conn)

	slog.Info("bridge.server.connected", "server", srv.Name, "transport", srv.Transport, "tools", len(registered))
	return nil
}

// resolveToolName returns the name a tool from server should be
// registered under, given the tools already registered. A name already
// owned by an earlier-connected server is not dropped: it is
// disambiguated as "{server}_{tool}" instead, so both servers' copies
// of a same-named tool stay callable.
func resolveToolName(existing map[string]*Tool, serverName, toolName string) string {
	if _, exists := existing[toolName]; exists {
		return serverName + "_" + toolName
	}
	return toolName
}

// reconnectBackoff returns the delay before reconnect attempt n (1-based),
// doubling from initialBackoff and capping at maxBackoff.
func reconnectBackoff(attempt int) time.Duration {
	backoff := initialBackoff * time.Duration(1<<(attempt-1))
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return backoff
}

func createClient(srv config.BridgeServerConfig) (*mcpclient.Client, error) {
	switch srv.Transport {
	case "stdio":
		env := make([]string, 0, len(srv.Env))
		for k, v := range srv.Env {
			env = append(env, k+"="+v)
		}
		return mcpclient.NewStdioMCPClient(srv.Command, env, srv.Args...)

	case "sse":
		var opts []transport.ClientOption
		if len(srv.Headers) > 0 {
			opts = append(opts, mcpclient.WithHeaders(srv.Headers))
		}
		return mcpclient.NewSSEMCPClient(srv.URL, opts...)

	case "streamable-http":
		var opts []transport.StreamableHTTPCOption
		if len(srv.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(srv.Headers))
		}
		return mcpclient.NewStreamableHttpClient(srv.URL, opts...)

	default:
		return nil, fmt.Errorf("unsupported transport: %q", srv.Transport)
	}
}

// healthLoop periodically pings the server and attempts reconnection
// on failure, matching the backoff schedule used elsewhere in this
// codebase for outbound connections: 2s, 4s, 8s, ... capped at 60s,
// giving up after 10 attempts.
func (b *Bridge) healthLoop(ctx context.Context, conn *connection) {
	ticker := time.NewTicker(healthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.client.Ping(ctx); err != nil {
				if strings.Contains(strings.ToLower(err.Error()), "method not found") {
					conn.connected.Store(true)
					conn.mu.Lock()
					conn.reconnAttempts = 0
					conn.lastErr = ""
					conn.mu.Unlock()
					continue
				}
				conn.connected.Store(false)
				conn.mu.Lock()
				conn.lastErr = err.Error()
				conn.mu.Unlock()
				slog.Warn("bridge.server.health_failed", "server", conn.name, "error", err)
				b.tryReconnect(ctx, conn)
			} else {
				conn.connected.Store(true)
				conn.mu.Lock()
				conn.reconnAttempts = 0
				conn.lastErr = ""
				conn.mu.Unlock()
			}
		}
	}
}

func (b *Bridge) tryReconnect(ctx context.Context, conn *connection) {
	conn.mu.Lock()
	if conn.reconnAttempts >= maxReconnectAttempts {
		conn.lastErr = fmt.Sprintf("max reconnect attempts (%d) reached", maxReconnectAttempts)
		conn.mu.Unlock()
		slog.Error("bridge.server.reconnect_exhausted", "server", conn.name)
		return
	}
	conn.reconnAttempts++
	attempt := conn.reconnAttempts
	conn.mu.Unlock()

	backoff := reconnectBackoff(attempt)
	slog.Info("bridge.server.reconnecting", "server", conn.name, "attempt", attempt, "backoff", backoff)

	select {
	case <-ctx.Done():
		return
	case <-time.After(backoff):
	}

	if err := conn.client.Ping(ctx); err == nil {
		conn.connected.Store(true)
		conn.mu.Lock()
		conn.reconnAttempts = 0
		conn.lastErr = ""
		conn.mu.Unlock()
		slog.Info("bridge.server.reconnected", "server", conn.name)
	}
}
