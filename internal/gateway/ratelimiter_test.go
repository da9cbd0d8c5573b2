package gateway

import "testing"

func TestRateLimiterDisabledByDefault(t *testing.T) {
	r := NewRateLimiter(0, 0)
	if r.Enabled() {
		t.Fatal("expected rpm<=0 to disable limiting")
	}
	for i := 0; i < 100; i++ {
		if !r.Allow("key") {
			t.Fatal("disabled limiter must always allow")
		}
	}
}

func TestRateLimiterAllowsUpToBurstThenBlocks(t *testing.T) {
	r := NewRateLimiter(60, 3)
	for i := 0; i < 3; i++ {
		if !r.Allow("user-1") {
			t.Fatalf("expected call %d within burst to be allowed", i)
		}
	}
	if r.Allow("user-1") {
		t.Fatal("expected burst to be exhausted")
	}
}

func TestRateLimiterKeysAreIndependent(t *testing.T) {
	r := NewRateLimiter(60, 1)
	if !r.Allow("user-1") {
		t.Fatal("expected first call for user-1 to be allowed")
	}
	if r.Allow("user-1") {
		t.Fatal("expected user-1 burst to be exhausted")
	}
	if !r.Allow("user-2") {
		t.Fatal("expected user-2 to have its own independent bucket")
	}
}

func TestRateLimiterDefaultsBurstWhenNonPositive(t *testing.T) {
	r := NewRateLimiter(60, 0)
	if r.burst != 1 {
		t.Fatalf("expected burst to default to 1, got %d", r.burst)
	}
	r2 := NewRateLimiter(60, -5)
	if r2.burst != 1 {
		t.Fatalf("expected negative burst to default to 1, got %d", r2.burst)
	}
}
