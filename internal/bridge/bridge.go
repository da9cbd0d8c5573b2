// Package bridge implements the Tool Bridge Manager component: it
// connects to a set of MCP servers, discovers their tools, and keeps
// the connections healthy, reconnecting with backoff on failure.
package bridge

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/svarun115/assistant-gateway/internal/config"
)

// Bridge holds the live MCP server connections and discovered tools
// for a single logical client (in practice, one per user — see
// Manager).
type Bridge struct {
	mu    sync.RWMutex
	conns map[string]*connection
	tools map[string]*Tool
}

func newBridge() *Bridge {
	return &Bridge{
		conns: make(map[string]*connection),
		tools: make(map[string]*Tool),
	}
}

// Connect dials every server in servers. A server that fails to
// connect is logged and skipped — one bad server never prevents the
// others from coming up.
func (b *Bridge) Connect(ctx context.Context, servers []config.BridgeServerConfig) error {
	var errs []string
	for _, srv := range servers {
		if err := b.connect(ctx, srv); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", srv.Name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("some MCP servers failed to connect: %v", errs)
	}
	return nil
}

// IsConnected reports whether at least one server connection is
// currently healthy. A bridge that holds no connections at all also
// reports true.
func (b *Bridge) IsConnected() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, c := range b.conns {
		if c.connected.Load() {
			return true
		}
	}
	return len(b.conns) == 0
}

// Tool looks up a tool by its registered name (which may carry a
// collision-resolution prefix — see connect.go).
func (b *Bridge) Tool(name string) (*Tool, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.tools[name]
	return t, ok
}

// ToolNames returns every registered tool name, sorted.
func (b *Bridge) ToolNames() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.tools))
	for name := range b.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Tools returns every registered tool.
func (b *Bridge) Tools() []*Tool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Tool, 0, len(b.tools))
	for _, t := range b.tools {
		out = append(out, t)
	}
	return out
}

// Close shuts down every server connection held by this bridge.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, c := range b.conns {
		if c.cancel != nil {
			c.cancel()
		}
		if c.client != nil {
			_ = c.client.Close()
		}
	}
	b.conns = make(map[string]*connection)
	b.tools = make(map[string]*Tool)
}
