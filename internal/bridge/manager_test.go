package bridge

import (
	"context"
	"testing"

	"github.com/svarun115/assistant-gateway/internal/config"
)

func TestFormatHeaderValueGoogle(t *testing.T) {
	got := formatHeaderValue("google", map[string]any{"access_token": "abc123"})
	if got != "Bearer abc123" {
		t.Fatalf("got %q, want %q", got, "Bearer abc123")
	}
}

func TestFormatHeaderValueGoogleMissingToken(t *testing.T) {
	if got := formatHeaderValue("google", map[string]any{}); got != "" {
		t.Fatalf("expected empty string, got %q", got)
	}
}

func TestFormatHeaderValueGarmin(t *testing.T) {
	got := formatHeaderValue("garmin", map[string]any{"oauth1": "x", "oauth2": "y"})
	if got == "" {
		t.Fatal("expected non-empty JSON passthrough for garmin")
	}
}

func TestFormatHeaderValueSplitwise(t *testing.T) {
	got := formatHeaderValue("splitwise", map[string]any{"api_key": "sw-key"})
	if got != "sw-key" {
		t.Fatalf("got %q, want sw-key", got)
	}
}

func TestFormatHeaderValueGenericFallback(t *testing.T) {
	if got := formatHeaderValue("unknown-service", map[string]any{"token": "t1"}); got != "t1" {
		t.Fatalf("got %q, want t1", got)
	}
	if got := formatHeaderValue("unknown-service", map[string]any{"api_key": "k1"}); got != "k1" {
		t.Fatalf("got %q, want k1", got)
	}
	if got := formatHeaderValue("unknown-service", map[string]any{}); got != "" {
		t.Fatalf("expected empty string for unrecognized fields, got %q", got)
	}
}

func TestBuildUserServersNoVaultPassesThroughUnchanged(t *testing.T) {
	base := []config.BridgeServerConfig{
		{Name: "web-search", Transport: "stdio", Command: "web-search-server"},
	}
	m := NewManager(base, nil)
	got := m.buildUserServers(context.Background(), "user-1")
	if len(got) != 1 || got[0].Name != "web-search" {
		t.Fatalf("expected pass-through of base servers when vault is nil, got %+v", got)
	}
}
