package bridge

import (
	"testing"
	"time"
)

func TestResolveToolNameNoCollision(t *testing.T) {
	existing := map[string]*Tool{}
	got := resolveToolName(existing, "web-search", "search")
	if got != "search" {
		t.Fatalf("got %q, want %q", got, "search")
	}
}

func TestResolveToolNameCollisionPrefixesWithServer(t *testing.T) {
	existing := map[string]*Tool{"search": {ServerName: "first-server"}}
	got := resolveToolName(existing, "second-server", "search")
	if got != "second-server_search" {
		t.Fatalf("got %q, want %q", got, "second-server_search")
	}
}

func TestResolveToolNameDoesNotMutateCallerIntent(t *testing.T) {
	existing := map[string]*Tool{"search": {ServerName: "first-server"}}
	// calling twice for the same server/tool pair must be stable
	first := resolveToolName(existing, "second-server", "search")
	second := resolveToolName(existing, "second-server", "search")
	if first != second {
		t.Fatalf("expected stable resolution, got %q then %q", first, second)
	}
}

func TestReconnectBackoffDoublesUntilCap(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 32 * time.Second},
		{6, 60 * time.Second}, // 64s would exceed the cap
		{10, 60 * time.Second},
	}
	for _, c := range cases {
		got := reconnectBackoff(c.attempt)
		if got != c.want {
			t.Errorf("reconnectBackoff(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}
