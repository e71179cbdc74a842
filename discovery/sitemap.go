package discovery

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
)

const maxSitemapBytes = 5 * 1024 * 1024

// sitemapIndex represents a sitemap index XML file.
type sitemapIndex struct {
	XMLName  xml.Name       `xml:"sitemapindex"`
	Sitemaps []sitemapEntry `xml:"sitemap"`
}

// sitemapEntry is an entry in a sitemap index.
type sitemapEntry struct {
	Loc string `xml:"loc"`
}

// urlset represents a sitemap URL set XML file.
type urlset struct {
	XMLName xml.Name   `xml:"urlset"`
	URLs    []urlEntry `xml:"url"`
}

// urlEntry is a single URL in a sitemap.
type urlEntry struct {
	Loc string `xml:"loc"`
}

// sitemapFetch is the outcome of fetching one sitemap URL. A sitemap
// index yields children instead of pages; the caller decides whether to
// chase them.
type sitemapFetch struct {
	pages    []string
	children []string
	err      error
}

// fetchSitemap retrieves and parses one sitemap document.
func (e *Engine) fetchSitemap(ctx context.Context, target string) sitemapFetch {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return sitemapFetch{err: fmt.Errorf("build request: %w", err)}
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return sitemapFetch{err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return sitemapFetch{err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxSitemapBytes))
	if err != nil {
		return sitemapFetch{err: fmt.Errorf("read body: %w", err)}
	}

	// Try the index shape first: xml.Unmarshal rejects it for a plain
	// urlset document, so order settles which one we have.
	var idx sitemapIndex
	if err := xml.Unmarshal(body, &idx); err == nil && len(idx.Sitemaps) > 0 {
		var children []string
		for _, s := range idx.Sitemaps {
			if s.Loc != "" {
				children = append(children, s.Loc)
			}
		}
		return sitemapFetch{children: children}
	}

	var us urlset
	if err := xml.Unmarshal(body, &us); err != nil {
		return sitemapFetch{err: fmt.Errorf("parse: %w", err)}
	}
	var pages []string
	for _, u := range us.URLs {
		if u.Loc != "" {
			pages = append(pages, u.Loc)
		}
	}
	return sitemapFetch{pages: pages}
}
