// Package discovery enumerates candidate URLs for a domain from
// sitemaps, sitemap indexes, robots.txt directives and a catalog of
// conventional paths. It never probes the candidates it finds (beyond a
// single root check) — that is the orchestrator's job — and a dead
// sitemap only ever costs its own contribution, never the whole run.
package discovery

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pardeepdhingra/urllens/config"
	"github.com/pardeepdhingra/urllens/models"
	"github.com/pardeepdhingra/urllens/prober"
)

// conventionalSitemaps are tried for every domain, before any sitemaps
// declared in robots.txt.
var conventionalSitemaps = []string{"/sitemap.xml", "/sitemap_index.xml", "/wp-sitemap.xml"}

// Options tunes one discovery run. Zero fields fall back to the engine
// configuration.
type Options struct {
	MaxURLs            int
	Timeout            time.Duration
	IncludeCommonPaths bool
}

// Pacer spaces outbound fetches per target host. *ratelimit.HostPacer
// satisfies this; a nil Pacer disables pacing.
type Pacer interface {
	Wait(ctx context.Context, host string) error
}

// Engine discovers URLs for domains. Safe for concurrent use.
type Engine struct {
	prober *prober.Prober
	client *http.Client
	pacer  Pacer
	cfg    config.DiscoveryConfig
}

// New creates a discovery Engine that reuses the given prober for the
// root check.
func New(p *prober.Prober, pacer Pacer, cfg config.DiscoveryConfig) *Engine {
	if cfg.MaxURLs <= 0 {
		cfg.MaxURLs = 100
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.MaxSitemapFetches <= 0 {
		cfg.MaxSitemapFetches = 20
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Engine{prober: p, client: &http.Client{}, pacer: pacer, cfg: cfg}
}

// Discover enumerates candidate URLs for domain. The error is non-nil
// only for unusable input; unreachable sources are recorded on the
// result and contribute zero URLs.
func (e *Engine) Discover(ctx context.Context, domain string, opts Options) (*models.DiscoveryResult, error) {
	origin, err := originOf(domain)
	if err != nil {
		return nil, err
	}
	if opts.MaxURLs <= 0 {
		opts.MaxURLs = e.cfg.MaxURLs
	}
	if opts.Timeout <= 0 {
		opts.Timeout = e.cfg.FetchTimeout
	}

	result := &models.DiscoveryResult{Domain: origin.Host}

	// Root check first: callers want to know up front whether the domain
	// answers at all, even though discovery continues regardless.
	rootOutcome, err := e.prober.Probe(ctx, origin.String()+"/")
	if err != nil {
		return nil, err
	}
	result.RootAccessible = rootOutcome.Accessible
	result.RootStatus = rootOutcome.HTTPStatus
	result.RootBlockedReason = rootOutcome.BlockedReason

	urls := newCollector()

	// robots.txt may declare sitemaps beyond the conventional locations.
	robotsTarget := origin.String() + "/robots.txt"
	robotsSitemaps, robotsErr := e.robotsSitemaps(ctx, origin, opts.Timeout)
	robotsReport := models.SourceReport{
		Source:   models.SourceRobotsTxt,
		Target:   robotsTarget,
		URLCount: len(robotsSitemaps),
	}
	if robotsErr != nil {
		robotsReport.Error = robotsErr.Error()
	}
	result.Sources = append(result.Sources, robotsReport)

	// Sitemap worklist: conventional paths first, then robots-declared,
	// deduplicated and bounded by the per-run fetch budget.
	budget := e.cfg.MaxSitemapFetches
	worklist := make([]string, 0, len(conventionalSitemaps)+len(robotsSitemaps))
	queued := make(map[string]struct{})
	enqueue := func(target string) {
		if _, ok := queued[target]; ok || len(worklist) >= budget {
			return
		}
		queued[target] = struct{}{}
		worklist = append(worklist, target)
	}
	for _, p := range conventionalSitemaps {
		enqueue(origin.String() + p)
	}
	for _, s := range robotsSitemaps {
		enqueue(s)
	}

	children := e.fetchWave(ctx, worklist, opts.Timeout, models.SourceSitemap, urls, result)

	// One level of sitemap-index indirection only, to bound total requests.
	budget -= len(worklist)
	childList := make([]string, 0, len(children))
	for _, c := range children {
		if _, ok := queued[c]; ok || len(childList) >= budget {
			continue
		}
		queued[c] = struct{}{}
		childList = append(childList, c)
	}
	e.fetchWave(ctx, childList, opts.Timeout, models.SourceSitemapIndex, urls, result)

	if opts.IncludeCommonPaths {
		for _, p := range commonPaths {
			urls.add(origin.String()+p, models.SourceCommonPath)
		}
		result.Sources = append(result.Sources, models.SourceReport{
			Source:   models.SourceCommonPath,
			Target:   origin.String(),
			URLCount: len(commonPaths),
		})
	}

	result.DiscoveredURLs, result.Truncated = urls.capped(opts.MaxURLs)
	return result, nil
}

// fetchWave fetches a batch of sitemap URLs concurrently, records one
// source report per target (in worklist order) and feeds extracted page
// URLs into the collector. It returns any child sitemaps found in
// sitemap indexes.
func (e *Engine) fetchWave(ctx context.Context, targets []string, timeout time.Duration, source models.URLSource, urls *collector, result *models.DiscoveryResult) []string {
	if len(targets) == 0 {
		return nil
	}

	fetched := make([]sitemapFetch, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Concurrency)
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			// Pacing waits outside the fetch deadline; the timeout is for
			// the server, not our own queue.
			if err := e.pace(gctx, target); err != nil {
				fetched[i] = sitemapFetch{err: err}
				return nil
			}
			fctx, cancel := context.WithTimeout(gctx, timeout)
			defer cancel()
			fetched[i] = e.fetchSitemap(fctx, target)
			return nil
		})
	}
	g.Wait()

	var children []string
	for i, target := range targets {
		f := fetched[i]
		report := models.SourceReport{
			Source:   source,
			Target:   target,
			URLCount: len(f.pages),
		}
		if f.err != nil {
			report.Error = f.err.Error()
		}
		result.Sources = append(result.Sources, report)

		for _, page := range f.pages {
			urls.add(page, source)
		}
		children = append(children, f.children...)
	}
	return children
}

// pace blocks until the pacer grants a slot for target's host. A nil
// pacer or an unparsable target passes immediately.
func (e *Engine) pace(ctx context.Context, target string) error {
	if e.pacer == nil {
		return nil
	}
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return nil
	}
	return e.pacer.Wait(ctx, u.Host)
}

// originOf turns a bare host or root URL into its https origin.
func originOf(domain string) (*url.URL, error) {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return nil, fmt.Errorf("discovery: empty domain")
	}
	if !strings.Contains(domain, "://") {
		domain = "https://" + domain
	}
	u, err := url.Parse(domain)
	if err != nil {
		return nil, fmt.Errorf("discovery: parse domain: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("discovery: unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("discovery: domain %q has no host", domain)
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
}

// collector deduplicates URLs by normalized form in first-seen order.
type collector struct {
	seen map[string]struct{}
	urls []models.DiscoveredURL
}

func newCollector() *collector {
	return &collector{seen: make(map[string]struct{})}
}

func (c *collector) add(raw string, source models.URLSource) {
	key := normalizeKey(raw)
	if _, ok := c.seen[key]; ok {
		return
	}
	c.seen[key] = struct{}{}
	c.urls = append(c.urls, models.DiscoveredURL{URL: raw, Source: source})
}

func (c *collector) capped(max int) ([]models.DiscoveredURL, bool) {
	if len(c.urls) > max {
		return c.urls[:max], true
	}
	return c.urls, false
}

// normalizeKey reduces a URL to scheme+host+path with the trailing slash
// stripped, so /about and /about/ are the same candidate. Unparsable
// strings key on themselves.
func normalizeKey(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	path := strings.TrimSuffix(u.Path, "/")
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host) + path
}
