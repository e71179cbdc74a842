package discovery

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const maxRobotsBytes = 1 * 1024 * 1024

// robotsSitemaps fetches /robots.txt and returns the targets of its
// Sitemap: directives, resolved against the origin.
func (e *Engine) robotsSitemaps(ctx context.Context, origin *url.URL, timeout time.Duration) ([]string, error) {
	if err := e.pace(ctx, origin.String()); err != nil {
		return nil, err
	}

	fctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fctx, http.MethodGet, origin.String()+"/robots.txt", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	var sitemaps []string
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimSpace(line)
		const prefix = "sitemap:"
		if len(line) < len(prefix) || !strings.EqualFold(line[:len(prefix)], prefix) {
			continue
		}
		target := strings.TrimSpace(line[len(prefix):])
		if target == "" {
			continue
		}
		// Directives should be absolute; resolve the odd relative one.
		if ref, err := url.Parse(target); err == nil {
			sitemaps = append(sitemaps, origin.ResolveReference(ref).String())
		}
	}
	return sitemaps, nil
}
