// Package ratelimit provides the injectable rate limiters used on both
// sides of the wire: a per-identity limiter for inbound API requests and
// a per-host pacer for outbound probes. Limiters are explicit
// dependencies with their own lifecycle rather than maps hidden inside
// middleware, so tests and alternative backends can swap them out.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether a request attributed to an identity (API key
// or client IP) may proceed.
type Limiter interface {
	Allow(identity string) bool
}

// Nop is a Limiter that always allows. Used when rate limiting is
// disabled and in tests.
type Nop struct{}

func (Nop) Allow(string) bool { return true }

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Keyed is a token-bucket Limiter with one bucket per identity, powered
// by golang.org/x/time/rate.
//
// Entries unused for 1 hour are evicted by a background goroutine that
// runs every 5 minutes, preventing unbounded memory growth. Close stops
// the goroutine.
type Keyed struct {
	rps   rate.Limit
	burst int

	mu      sync.Mutex
	entries map[string]*entry

	done      chan struct{}
	closeOnce sync.Once
}

// NewKeyed creates a Keyed limiter allowing rps sustained requests per
// second with the given burst per identity, and starts its eviction
// goroutine.
func NewKeyed(rps float64, burst int) *Keyed {
	return newKeyed(rate.Limit(rps), burst)
}

func newKeyed(limit rate.Limit, burst int) *Keyed {
	k := &Keyed{
		rps:     limit,
		burst:   burst,
		entries: make(map[string]*entry),
		done:    make(chan struct{}),
	}
	go k.evictLoop()
	return k
}

// Allow reports whether a request from identity may proceed now.
func (k *Keyed) Allow(identity string) bool {
	return k.limiterFor(identity).Allow()
}

// limiterFor returns identity's bucket, creating it on first sight and
// refreshing its eviction clock.
func (k *Keyed) limiterFor(identity string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()
	e, ok := k.entries[identity]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(k.rps, k.burst)}
		k.entries[identity] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

// Len returns the number of tracked identities.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

// Close stops the eviction goroutine. The limiter remains usable but no
// longer evicts idle entries.
func (k *Keyed) Close() {
	k.closeOnce.Do(func() { close(k.done) })
}

func (k *Keyed) evictLoop() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			k.evict(time.Now().Add(-1 * time.Hour))
		case <-k.done:
			return
		}
	}
}

func (k *Keyed) evict(cutoff time.Time) {
	k.mu.Lock()
	defer k.mu.Unlock()
	for id, e := range k.entries {
		if e.lastSeen.Before(cutoff) {
			delete(k.entries, id)
		}
	}
}

// HostPacer spaces outbound requests per target host so audits do not
// hammer the sites they measure. Unlike Keyed it blocks: Wait parks the
// caller until the host's bucket grants a slot or ctx is done. One
// pacer is shared by discovery and the audit orchestrator, so a domain
// session's sitemap fetches and probe waves draw from the same budget.
type HostPacer struct {
	keyed *Keyed
}

// NewHostPacer creates a HostPacer allowing rps sustained requests per
// second with the given burst per host. rps <= 0 disables pacing: Wait
// then returns immediately.
func NewHostPacer(rps float64, burst int) *HostPacer {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &HostPacer{keyed: newKeyed(limit, burst)}
}

// Wait blocks until host's bucket grants a slot. It returns early with
// ctx's error when the context is cancelled or its deadline would pass
// before a slot opens.
func (p *HostPacer) Wait(ctx context.Context, host string) error {
	return p.keyed.limiterFor(host).Wait(ctx)
}

// Close stops the pacer's eviction goroutine.
func (p *HostPacer) Close() {
	p.keyed.Close()
}
