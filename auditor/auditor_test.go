package auditor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pardeepdhingra/urllens/config"
	"github.com/pardeepdhingra/urllens/models"
)

// fakeProber returns canned outcomes keyed by URL. Unlisted URLs get a
// clean 200 HTML response.
type fakeProber struct {
	mu       sync.Mutex
	statuses map[string]int
	calls    int
}

func (f *fakeProber) Probe(ctx context.Context, rawURL string) (*models.ProbeOutcome, error) {
	f.mu.Lock()
	f.calls++
	status, ok := f.statuses[rawURL]
	f.mu.Unlock()
	if !ok {
		status = 200
	}
	return &models.ProbeOutcome{
		RequestedURL: rawURL,
		FinalURL:     rawURL,
		HTTPStatus:   status,
		Accessible:   true,
		ContentType:  "text/html",
		Body:         []byte("<html><body>full capture</body></html>"),
		BodySample:   "<html><body>full capture</body></html>",
	}, nil
}

// gateProber blocks every probe until the test releases it, so wave
// boundaries become observable.
type gateProber struct {
	mu          sync.Mutex
	inFlight    int
	maxInFlight int

	entered chan string
	release chan struct{}
}

func newGateProber(capacity int) *gateProber {
	return &gateProber{
		entered: make(chan string, capacity),
		release: make(chan struct{}, capacity),
	}
}

func (g *gateProber) Probe(ctx context.Context, rawURL string) (*models.ProbeOutcome, error) {
	g.mu.Lock()
	g.inFlight++
	if g.inFlight > g.maxInFlight {
		g.maxInFlight = g.inFlight
	}
	g.mu.Unlock()

	g.entered <- rawURL
	<-g.release

	g.mu.Lock()
	g.inFlight--
	g.mu.Unlock()

	return &models.ProbeOutcome{
		RequestedURL: rawURL,
		FinalURL:     rawURL,
		HTTPStatus:   200,
		Accessible:   true,
		ContentType:  "text/html",
	}, nil
}

func expectEntries(t *testing.T, entered <-chan string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-entered:
		case <-time.After(2 * time.Second):
			t.Fatalf("expected %d probes to start, only %d did", n, i)
		}
	}
}

func assertNoEntry(t *testing.T, entered <-chan string, wait time.Duration) {
	t.Helper()
	select {
	case u := <-entered:
		t.Fatalf("probe of %s started before the current wave finished", u)
	case <-time.After(wait):
	}
}

func testURLs(n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("https://example.com/page-%d", i)
	}
	return urls
}

func TestRunBatchWavesAndProgress(t *testing.T) {
	urls := testURLs(12)
	gate := newGateProber(len(urls))
	a := New(gate, nil, nil, nil, config.AuditConfig{})

	var progress []models.Progress
	var results []models.AuditResult
	var runErr error
	done := make(chan struct{})
	go func() {
		defer close(done)
		results, runErr = a.RunBatch(context.Background(), urls, Options{Concurrency: 5, Timeout: time.Second}, func(p models.Progress) {
			progress = append(progress, p)
		})
	}()

	// Wave 1: exactly five probes start.
	expectEntries(t, gate.entered, 5)
	assertNoEntry(t, gate.entered, 50*time.Millisecond)

	// Releasing one probe must not start the next wave early.
	gate.release <- struct{}{}
	assertNoEntry(t, gate.entered, 50*time.Millisecond)
	for i := 0; i < 4; i++ {
		gate.release <- struct{}{}
	}

	// Wave 2: five more.
	expectEntries(t, gate.entered, 5)
	assertNoEntry(t, gate.entered, 50*time.Millisecond)
	for i := 0; i < 5; i++ {
		gate.release <- struct{}{}
	}

	// Wave 3: the final two.
	expectEntries(t, gate.entered, 2)
	assertNoEntry(t, gate.entered, 50*time.Millisecond)
	gate.release <- struct{}{}
	gate.release <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunBatch did not return after all probes were released")
	}

	if runErr != nil {
		t.Fatalf("RunBatch() error = %v", runErr)
	}
	if len(results) != 12 {
		t.Fatalf("got %d results, want 12", len(results))
	}
	if gate.maxInFlight > 5 {
		t.Errorf("max in-flight probes = %d, want at most 5", gate.maxInFlight)
	}

	if len(progress) != 12 {
		t.Fatalf("progress fired %d times, want 12", len(progress))
	}
	for i, p := range progress {
		if p.CompletedURLs != i+1 {
			t.Fatalf("progress[%d].CompletedURLs = %d, want %d (strictly increasing)", i, p.CompletedURLs, i+1)
		}
		if p.TotalURLs != 12 {
			t.Errorf("progress[%d].TotalURLs = %d, want 12", i, p.TotalURLs)
		}
		if p.Status != models.StatusTesting {
			t.Errorf("progress[%d].Status = %s, want testing", i, p.Status)
		}
	}
	if last := progress[len(progress)-1]; last.PercentComplete != 100 {
		t.Errorf("final PercentComplete = %v, want 100", last.PercentComplete)
	}
}

func TestRunBatchPairsAndSortsResults(t *testing.T) {
	fake := &fakeProber{statuses: map[string]int{
		"https://example.com/blocked": 403, // 65 points
		"https://example.com/broken":  500, // 60 points
		"https://example.com/clean":   200, // 100 points
	}}
	a := New(fake, nil, nil, nil, config.AuditConfig{})

	urls := []string{
		"https://example.com/blocked",
		"https://example.com/broken",
		"https://example.com/clean",
	}
	results, err := a.RunBatch(context.Background(), urls, Options{Concurrency: 2}, nil)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	for _, r := range results {
		want := fake.statuses[r.URL]
		if r.Outcome.HTTPStatus != want {
			t.Errorf("result for %s carries status %d, want %d", r.URL, r.Outcome.HTTPStatus, want)
		}
		if r.Outcome.RequestedURL != r.URL {
			t.Errorf("result URL %s paired with outcome for %s", r.URL, r.Outcome.RequestedURL)
		}
	}

	for i := 1; i < len(results); i++ {
		if results[i].Score.Total > results[i-1].Score.Total {
			t.Fatalf("results not sorted by descending score: %d before %d",
				results[i-1].Score.Total, results[i].Score.Total)
		}
	}
	if results[0].URL != "https://example.com/clean" {
		t.Errorf("highest-scored result = %s, want the clean 200", results[0].URL)
	}
}

func TestRunBatchDropsFullBody(t *testing.T) {
	a := New(&fakeProber{}, nil, nil, nil, config.AuditConfig{})

	results, err := a.RunBatch(context.Background(), testURLs(3), Options{}, nil)
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	for _, r := range results {
		if r.Outcome.Body != nil {
			t.Errorf("result for %s retained the full body capture", r.URL)
		}
		if r.Outcome.BodySample == "" {
			t.Errorf("result for %s lost its body sample", r.URL)
		}
	}
}

func TestRunBatchEmpty(t *testing.T) {
	a := New(&fakeProber{}, nil, nil, nil, config.AuditConfig{})

	fired := 0
	results, err := a.RunBatch(context.Background(), nil, Options{}, func(models.Progress) { fired++ })
	if err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results for empty input", len(results))
	}
	if fired != 0 {
		t.Errorf("progress fired %d times for empty input", fired)
	}
}

// errProber fails for one URL to simulate malformed input slipping past
// upstream validation.
type errProber struct {
	bad string
}

func (e *errProber) Probe(ctx context.Context, rawURL string) (*models.ProbeOutcome, error) {
	if rawURL == e.bad {
		return nil, errors.New("invalid URL: missing scheme")
	}
	return &models.ProbeOutcome{RequestedURL: rawURL, FinalURL: rawURL, HTTPStatus: 200, Accessible: true}, nil
}

func TestRunBatchProbeErrorAbortsBatch(t *testing.T) {
	a := New(&errProber{bad: "not-a-url"}, nil, nil, nil, config.AuditConfig{})

	urls := []string{"https://example.com/ok", "not-a-url", "https://example.com/also-ok"}
	_, err := a.RunBatch(context.Background(), urls, Options{Concurrency: 1}, nil)
	if err == nil {
		t.Fatal("expected an error when the prober rejects its input")
	}
}

// recordingPacer notes every host it is asked to pace and never blocks.
type recordingPacer struct {
	mu    sync.Mutex
	hosts []string
}

func (p *recordingPacer) Wait(ctx context.Context, host string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.hosts = append(p.hosts, host)
	return nil
}

func TestRunBatchPacesEveryProbeByHost(t *testing.T) {
	pacer := &recordingPacer{}
	a := New(&fakeProber{}, nil, nil, pacer, config.AuditConfig{})

	urls := []string{
		"https://alpha.example/one",
		"https://alpha.example/two",
		"https://beta.example/one",
	}
	if _, err := a.RunBatch(context.Background(), urls, Options{Concurrency: 1}, nil); err != nil {
		t.Fatalf("RunBatch() error = %v", err)
	}

	pacer.mu.Lock()
	defer pacer.mu.Unlock()
	counts := map[string]int{}
	for _, h := range pacer.hosts {
		counts[h]++
	}
	if counts["alpha.example"] != 2 || counts["beta.example"] != 1 {
		t.Fatalf("paced hosts = %v, want alpha.example twice and beta.example once", pacer.hosts)
	}
}

// stuckPacer parks every Wait until its context is done.
type stuckPacer struct{}

func (stuckPacer) Wait(ctx context.Context, host string) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestRunBatchAbortsWhenPacingCancelled(t *testing.T) {
	a := New(&fakeProber{}, nil, nil, stuckPacer{}, config.AuditConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.RunBatch(ctx, testURLs(2), Options{Concurrency: 1}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("RunBatch() error = %v, want context.Canceled in the chain", err)
	}
}
