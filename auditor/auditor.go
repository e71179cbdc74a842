// Package auditor orchestrates scrapability audits over sets of URLs.
// It runs probes in sequential waves of bounded size, scores every
// outcome, and drives the session lifecycle from pending to completed.
package auditor

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/pardeepdhingra/urllens/config"
	"github.com/pardeepdhingra/urllens/discovery"
	"github.com/pardeepdhingra/urllens/models"
	"github.com/pardeepdhingra/urllens/scoring"
	"github.com/pardeepdhingra/urllens/store"
)

// Prober tests a single URL. *prober.Prober satisfies this; tests use
// instrumented fakes.
type Prober interface {
	Probe(ctx context.Context, rawURL string) (*models.ProbeOutcome, error)
}

// Discoverer enumerates candidate URLs for a domain. *discovery.Engine
// satisfies this.
type Discoverer interface {
	Discover(ctx context.Context, domain string, opts discovery.Options) (*models.DiscoveryResult, error)
}

// Pacer spaces outbound probes per target host. *ratelimit.HostPacer
// satisfies this; a nil Pacer disables pacing.
type Pacer interface {
	Wait(ctx context.Context, host string) error
}

// ProgressFunc receives one update per completed probe. It is always
// invoked from the orchestrating goroutine, never from probe goroutines.
type ProgressFunc func(models.Progress)

// Options tunes one batch run. Zero fields fall back to defaults.
type Options struct {
	// Concurrency is the wave size: at most this many probes are in
	// flight at once.
	Concurrency int

	// Timeout is the per-probe deadline.
	Timeout time.Duration
}

// Auditor runs audits against an injected prober, discoverer and
// session store. Safe for concurrent use.
type Auditor struct {
	prober   Prober
	discover Discoverer
	store    store.SessionStore
	pacer    Pacer
	cfg      config.AuditConfig

	// wg tracks background session goroutines so Close can wait for
	// them during shutdown.
	wg sync.WaitGroup
}

// New creates an Auditor. Zero config fields fall back to defaults.
func New(p Prober, d Discoverer, st store.SessionStore, pacer Pacer, cfg config.AuditConfig) *Auditor {
	if cfg.DefaultConcurrency <= 0 {
		cfg.DefaultConcurrency = 5
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 20
	}
	if cfg.MaxBatchURLs <= 0 {
		cfg.MaxBatchURLs = 100
	}
	return &Auditor{prober: p, discover: d, store: st, pacer: pacer, cfg: cfg}
}

// Close waits for in-flight background sessions to finish.
func (a *Auditor) Close() {
	a.wg.Wait()
}

// RunBatch probes urls in sequential waves of Options.Concurrency and
// returns one scored result per URL, sorted by descending total score.
// Each wave is awaited in full before the next starts, so no more than
// Concurrency probes are ever outstanding.
//
// Blocked and unreachable URLs are ordinary results. RunBatch returns an
// error only when the prober rejects its input (a malformed URL slipped
// past upstream validation) or when ctx is cancelled while pacing; both
// abort the whole batch.
func (a *Auditor) RunBatch(ctx context.Context, urls []string, opts Options, onProgress ProgressFunc) ([]models.AuditResult, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = a.cfg.DefaultConcurrency
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	results := make([]models.AuditResult, len(urls))
	errs := make([]error, len(urls))
	completed := 0

	for wave := 0; wave < len(urls); wave += opts.Concurrency {
		end := min(wave+opts.Concurrency, len(urls))

		done := make(chan struct{}, end-wave)
		for i := wave; i < end; i++ {
			go func(idx int) {
				results[idx], errs[idx] = a.probeOne(ctx, urls[idx], opts.Timeout)
				done <- struct{}{}
			}(i)
		}

		// Await the whole wave; progress stays single-writer because
		// only this goroutine counts completions.
		for pending := end - wave; pending > 0; pending-- {
			<-done
			completed++
			if onProgress != nil {
				onProgress(models.Progress{
					Status:          models.StatusTesting,
					CurrentStep:     fmt.Sprintf("testing %d/%d URLs", completed, len(urls)),
					TotalURLs:       len(urls),
					CompletedURLs:   completed,
					PercentComplete: float64(completed) / float64(len(urls)) * 100,
				})
			}
		}

		for i := wave; i < end; i++ {
			if errs[i] != nil {
				return nil, fmt.Errorf("auditor: probe %s: %w", urls[i], errs[i])
			}
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score.Total > results[j].Score.Total
	})
	return results, nil
}

func (a *Auditor) probeOne(ctx context.Context, rawURL string, timeout time.Duration) (models.AuditResult, error) {
	// Pace against the session context, not the probe deadline: queueing
	// delay is ours, the timeout measures the target.
	if a.pacer != nil {
		if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
			if err := a.pacer.Wait(ctx, u.Host); err != nil {
				return models.AuditResult{}, fmt.Errorf("pace %s: %w", u.Host, err)
			}
		}
	}

	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	outcome, err := a.prober.Probe(probeCtx, rawURL)
	if err != nil {
		return models.AuditResult{}, err
	}

	// The full body capture only matters on the synchronous probe path;
	// results retained by a session keep the short sample.
	outcome.Body = nil

	breakdown, recommendation := scoring.Evaluate(outcome)
	return models.AuditResult{
		URL:            rawURL,
		Outcome:        outcome,
		Score:          breakdown,
		Recommendation: recommendation,
	}, nil
}

// randomID generates a short random hex string for session IDs.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
