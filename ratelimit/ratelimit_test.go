package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestKeyedAllowWithinBurst(t *testing.T) {
	k := NewKeyed(1, 3)
	defer k.Close()

	for i := 0; i < 3; i++ {
		if !k.Allow("key-a") {
			t.Fatalf("request %d within burst was denied", i+1)
		}
	}
	if k.Allow("key-a") {
		t.Fatal("request beyond burst was allowed")
	}
}

func TestKeyedIdentitiesAreIndependent(t *testing.T) {
	k := NewKeyed(1, 1)
	defer k.Close()

	if !k.Allow("key-a") {
		t.Fatal("first request for key-a denied")
	}
	if k.Allow("key-a") {
		t.Fatal("second request for key-a allowed")
	}
	// A different identity gets its own bucket.
	if !k.Allow("key-b") {
		t.Fatal("first request for key-b denied")
	}
}

func TestKeyedEvictsIdleEntries(t *testing.T) {
	k := NewKeyed(1, 1)
	defer k.Close()

	k.Allow("stale")
	k.Allow("fresh")

	// Age out "stale" only.
	k.mu.Lock()
	k.entries["stale"].lastSeen = time.Now().Add(-2 * time.Hour)
	k.mu.Unlock()

	k.evict(time.Now().Add(-1 * time.Hour))

	if k.Len() != 1 {
		t.Fatalf("after eviction Len() = %d, want 1", k.Len())
	}
	k.mu.Lock()
	_, ok := k.entries["fresh"]
	k.mu.Unlock()
	if !ok {
		t.Fatal("fresh entry was evicted")
	}
}

func TestNopAlwaysAllows(t *testing.T) {
	var l Limiter = Nop{}
	for i := 0; i < 100; i++ {
		if !l.Allow("anyone") {
			t.Fatal("Nop denied a request")
		}
	}
}

func TestHostPacerSpacesSameHost(t *testing.T) {
	p := NewHostPacer(50, 1) // one slot, then 20ms per token
	defer p.Close()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := p.Wait(context.Background(), "example.com"); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("three same-host waits took %v, want at least 30ms of pacing", elapsed)
	}
}

func TestHostPacerHostsAreIndependent(t *testing.T) {
	p := NewHostPacer(1, 1)
	defer p.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	if err := p.Wait(ctx, "a.example"); err != nil {
		t.Fatalf("first wait for a.example: %v", err)
	}
	// b.example has its own bucket and must not inherit a.example's debt.
	if err := p.Wait(ctx, "b.example"); err != nil {
		t.Fatalf("first wait for b.example: %v", err)
	}
}

func TestHostPacerDisabledNeverBlocks(t *testing.T) {
	p := NewHostPacer(0, 0)
	defer p.Close()

	start := time.Now()
	for i := 0; i < 100; i++ {
		if err := p.Wait(context.Background(), "example.com"); err != nil {
			t.Fatalf("Wait() error = %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("disabled pacer delayed 100 waits by %v", elapsed)
	}
}

func TestHostPacerWaitHonoursDeadline(t *testing.T) {
	p := NewHostPacer(0.1, 1) // 10s per token after the first
	defer p.Close()

	if err := p.Wait(context.Background(), "slow.example"); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := p.Wait(ctx, "slow.example"); err == nil {
		t.Fatal("expected an error when the deadline passes before a slot opens")
	}
}
