// Package prober performs bounded HTTP investigations of single URLs:
// it follows redirects manually, classifies the final response, and
// fingerprints bot-protection and JavaScript-dependency signals from the
// body. Ordinary network failures are data on the outcome, never errors.
package prober

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/pardeepdhingra/urllens/config"
	"github.com/pardeepdhingra/urllens/models"
)

// ErrInvalidURL is returned when a probe target is not a well-formed
// absolute http(s) URL. Upstream validation should make this unreachable;
// the orchestrator treats it as fatal rather than as probe data.
var ErrInvalidURL = errors.New("prober: invalid url")

const bodySampleBytes = 4096

// Prober probes single URLs. It is safe for concurrent use; every probe
// owns its own buffers and the shared http.Client is concurrency-safe.
type Prober struct {
	client  *http.Client
	catalog *Catalog
	cfg     config.ProberConfig
}

// New creates a Prober. A nil catalog selects the built-in ruleset;
// zero config fields fall back to defaults.
func New(cfg config.ProberConfig, catalog *Catalog) *Prober {
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 10 * time.Second
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = 10
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = 512 << 10
	}
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Prober{client: newHTTPClient(), catalog: catalog, cfg: cfg}
}

// Catalog returns the active detection ruleset.
func (p *Prober) Catalog() *Catalog { return p.catalog }

// Probe investigates rawURL and returns a complete outcome. The returned
// error is non-nil only for malformed input; timeouts, DNS failures,
// refused connections and the like are all recorded on the outcome so a
// single bad URL can never abort a batch.
//
// If ctx carries no deadline the configured default timeout is applied.
func (p *Prober) Probe(ctx context.Context, rawURL string) (*models.ProbeOutcome, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidURL, rawURL, err)
	}
	if (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("%w: %q: need absolute http(s) url", ErrInvalidURL, rawURL)
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.DefaultTimeout)
		defer cancel()
	}

	start := time.Now()
	outcome := &models.ProbeOutcome{
		RequestedURL:  rawURL,
		FinalURL:      rawURL,
		RedirectChain: []models.RedirectHop{},
		BotSignals:    []models.BotSignal{},
	}
	defer func() {
		outcome.ResponseTimeMs = time.Since(start).Milliseconds()
	}()

	// Follow redirects by hand so every hop is recorded and capped.
	// HEAD keeps the hops cheap; servers that reject it get one GET retry.
	method := http.MethodHead
	current := parsed
	var resp *http.Response

	for {
		resp, err = p.do(ctx, method, current.String())
		if err != nil {
			outcome.FinalURL = current.String()
			outcome.HTTPStatus, outcome.BlockedReason = classifyFailure(err)
			return outcome, nil
		}

		if method == http.MethodHead &&
			(resp.StatusCode == http.StatusMethodNotAllowed || resp.StatusCode == http.StatusNotImplemented) {
			// Server refuses HEAD; redo this hop and the rest with GET.
			drainClose(resp)
			method = http.MethodGet
			continue
		}

		next := nextLocation(current, resp)
		if next == nil {
			break // final response
		}

		if len(outcome.RedirectChain) >= p.cfg.MaxRedirects {
			// Still redirecting after the cap: report the capped chain
			// instead of chasing a loop.
			drainClose(resp)
			outcome.FinalURL = current.String()
			outcome.HTTPStatus = resp.StatusCode
			outcome.BlockedReason = models.BlockRedirectLoop
			slog.Debug("probe hit redirect cap", "url", rawURL, "hops", len(outcome.RedirectChain))
			return outcome, nil
		}

		outcome.RedirectChain = append(outcome.RedirectChain, models.RedirectHop{
			From:   current.String(),
			To:     next.String(),
			Status: resp.StatusCode,
		})
		drainClose(resp)
		current = next
	}

	// A final response was obtained; everything from here on is
	// classification, not failure.
	outcome.Accessible = true
	outcome.FinalURL = current.String()
	outcome.HTTPStatus = resp.StatusCode
	outcome.ContentType = mediaType(resp.Header.Get("Content-Type"))

	// Fetch the body for any HTML final response regardless of status —
	// challenge pages ride on 403/503 and must be fingerprinted too.
	if isHTMLContentType(resp.Header.Get("Content-Type")) {
		if method == http.MethodHead {
			if got := p.refetchForBody(ctx, current.String()); got != nil {
				drainClose(resp)
				resp = got
				outcome.HTTPStatus = resp.StatusCode
			}
		}
		body, readErr := io.ReadAll(io.LimitReader(resp.Body, p.cfg.MaxBodyBytes))
		if readErr != nil {
			slog.Debug("probe body read truncated", "url", rawURL, "error", readErr)
		}
		outcome.Body = body
		outcome.BodySample = sampleOf(body)
	}
	defer resp.Body.Close()

	outcome.BotSignals = p.catalog.BotSignals(resp.Header, outcome.Body)
	outcome.JSRequired = p.catalog.JSRequired(outcome.Body)
	return outcome, nil
}

func (p *Prober) do(ctx context.Context, method, target string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, nil)
	if err != nil {
		return nil, fmt.Errorf("prober: build request: %w", err)
	}
	browserHeaders(req, p.cfg.UserAgent)
	return p.client.Do(req)
}

// refetchForBody re-requests the final URL with GET when the redirect
// walk ran on HEAD. The GET observation supersedes the HEAD one (some
// servers only serve their challenge page on GET). A GET that fails or
// disagrees by redirecting is ignored and the HEAD view stands.
func (p *Prober) refetchForBody(ctx context.Context, target string) *http.Response {
	resp, err := p.do(ctx, http.MethodGet, target)
	if err != nil {
		return nil
	}
	if nextLocation(nil, resp) != nil {
		drainClose(resp)
		return nil
	}
	return resp
}

// nextLocation returns the resolved redirect target, or nil when resp is
// not a redirect or its Location is missing or unparsable (that response
// is then final).
func nextLocation(current *url.URL, resp *http.Response) *url.URL {
	switch resp.StatusCode {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
	default:
		return nil
	}
	loc := resp.Header.Get("Location")
	if loc == "" {
		return nil
	}
	locURL, err := url.Parse(loc)
	if err != nil {
		return nil
	}
	if current == nil {
		current = resp.Request.URL
	}
	return current.ResolveReference(locURL)
}

// classifyFailure maps a transport-level error to the outcome's sentinel
// status and blocked reason.
func classifyFailure(err error) (int, string) {
	var dnsErr *net.DNSError
	var netErr net.Error

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, models.BlockTimeout
	case errors.As(err, &dnsErr):
		return 0, models.BlockDNSFailure
	case errors.Is(err, syscall.ECONNREFUSED):
		return 0, models.BlockConnectionRefused
	case errors.Is(err, errTLSHandshake):
		return 0, models.BlockTLSFailure
	case errors.As(err, &netErr) && netErr.Timeout():
		return http.StatusRequestTimeout, models.BlockTimeout
	default:
		return 0, models.BlockNetworkError
	}
}

// mediaType strips parameters from a Content-Type header value.
func mediaType(ct string) string {
	if ct == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return mt
	}
	base, _, _ := strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(base))
}

func sampleOf(body []byte) string {
	if len(body) > bodySampleBytes {
		body = body[:bodySampleBytes]
	}
	return string(body)
}

// drainClose discards a little of the body before closing so the
// connection can be reused.
func drainClose(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
