package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/svarun115/assistant-gateway/internal/config"
	"github.com/svarun115/assistant-gateway/internal/vault"
)

// Manager creates and caches one Bridge per user, injecting each
// user's own credentials as connection headers on the servers that
// declare a CredentialService in config. Servers with no
// CredentialService use operator credentials from their configured
// env/headers unchanged.
type Manager struct {
	baseServers []config.BridgeServerConfig
	vault       *vault.Vault

	mu      sync.Mutex
	bridges map[string]*Bridge // user_id -> bridge
}

func NewManager(servers []config.BridgeServerConfig, v *vault.Vault) *Manager {
	return &Manager{
		baseServers: servers,
		vault:       v,
		bridges:     make(map[string]*Bridge),
	}
}

// GetBridge returns the user's cached bridge if it is still connected,
// otherwise builds server configs with the user's credentials injected
// and connects a fresh one.
func (m *Manager) GetBridge(ctx context.Context, userID string) (*Bridge, error) {
	m.mu.Lock()
	if b, ok := m.bridges[userID]; ok && b.IsConnected() {
		m.mu.Unlock()
		return b, nil
	}
	m.mu.Unlock()

	servers := m.buildUserServers(ctx, userID)

	b := newBridge()
	if err := b.Connect(ctx, servers); err != nil {
		slog.Warn("bridge.manager.connect_partial", "user", userID, "error", err)
	}

	m.mu.Lock()
	m.bridges[userID] = b
	m.mu.Unlock()

	slog.Info("bridge.manager.bridge_created", "user", userID, "tools", len(b.ToolNames()))
	return b, nil
}

// buildUserServers clones baseServers, injecting a per-user credential
// header for any server that declares CredentialService/CredentialHeader.
// Servers the user has no stored credential for, or whose credential
// fails to format, fall back to the base (operator) config unchanged.
func (m *Manager) buildUserServers(ctx context.Context, userID string) []config.BridgeServerConfig {
	if m.vault == nil {
		return m.baseServers
	}

	out := make([]config.BridgeServerConfig, 0, len(m.baseServers))
	for _, base := range m.baseServers {
		if base.CredentialService == "" {
			out = append(out, base)
			continue
		}

		tokenData, err := m.vault.Get(ctx, userID, base.CredentialService)
		if err != nil {
			out = append(out, base)
			continue
		}

		headerValue := formatHeaderValue(base.CredentialService, tokenData)
		if headerValue == "" {
			slog.Warn("bridge.manager.header_format_failed", "server", base.Name, "service", base.CredentialService, "user", userID)
			out = append(out, base)
			continue
		}

		clone := base
		clone.Headers = make(map[string]string, len(base.Headers)+1)
		for k, v := range base.Headers {
			clone.Headers[k] = v
		}
		clone.Headers[base.CredentialHeader] = headerValue
		out = append(out, clone)
		slog.Debug("bridge.manager.header_injected", "server", base.Name, "user", userID)
	}
	return out
}

// formatHeaderValue converts a decrypted token_data map into the
// header value string for a service. Returns "" if the token data
// doesn't carry a field this service recognizes.
func formatHeaderValue(service string, tokenData map[string]any) string {
	switch service {
	case "google":
		if tok, ok := tokenData["access_token"].(string); ok && tok != "" {
			return "Bearer " + tok
		}
		return ""
	case "garmin":
		raw, err := json.Marshal(tokenData)
		if err != nil {
			return ""
		}
		return string(raw)
	case "splitwise":
		if key, ok := tokenData["api_key"].(string); ok {
			return key
		}
		return ""
	default:
		if key, ok := tokenData["api_key"].(string); ok && key != "" {
			return key
		}
		if tok, ok := tokenData["token"].(string); ok {
			return tok
		}
		return ""
	}
}

// Invalidate force-closes a user's bridge. The next GetBridge call
// builds a fresh one, re-reading credentials — use after a token
// refresh.
func (m *Manager) Invalidate(userID string) {
	m.mu.Lock()
	b, ok := m.bridges[userID]
	delete(m.bridges, userID)
	m.mu.Unlock()

	if ok {
		b.Close()
		slog.Info("bridge.manager.invalidated", "user", userID)
	}
}

// Cleanup shuts down every cached bridge.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.bridges))
	for id := range m.bridges {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Invalidate(id)
	}
	slog.Info("bridge.manager.cleanup_done")
}
