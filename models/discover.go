package models

// URLSource records where a discovered URL (or a discovery source entry)
// came from.
type URLSource string

const (
	SourceSitemap      URLSource = "sitemap"
	SourceSitemapIndex URLSource = "sitemap_index"
	SourceRobotsTxt    URLSource = "robots_txt"
	SourceCommonPath   URLSource = "common_path"
)

// DiscoveredURL is a candidate URL enumerated for a domain, tagged with
// the source that produced it. URLs are deduplicated by normalized form
// across all sources, first seen wins.
type DiscoveredURL struct {
	URL    string    `json:"url"`
	Source URLSource `json:"source"`
}

// SourceReport records one discovery source's contribution, including
// sources that yielded nothing. A failed sitemap fetch shows up here with
// an error string instead of failing the whole discovery.
type SourceReport struct {
	Source   URLSource `json:"source"`
	Target   string    `json:"target"`
	URLCount int       `json:"url_count"`
	Error    string    `json:"error,omitempty"`
}

// DiscoveryResult is the outcome of enumerating candidate URLs for a
// domain.
type DiscoveryResult struct {
	Domain string `json:"domain"`

	// RootAccessible and RootStatus describe a probe of the bare root URL,
	// performed before any sitemap work.
	RootAccessible    bool   `json:"root_accessible"`
	RootStatus        int    `json:"root_status"`
	RootBlockedReason string `json:"root_blocked_reason,omitempty"`

	// DiscoveredURLs is deduplicated and capped at the requested maximum.
	DiscoveredURLs []DiscoveredURL `json:"discovered_urls"`

	// Sources lists every source consulted, successful or not.
	Sources []SourceReport `json:"sources"`

	// Truncated is true when deduplication still left more URLs than the
	// cap allowed.
	Truncated bool `json:"truncated,omitempty"`
}

// DiscoverRequest is the payload for POST /api/v1/discover.
type DiscoverRequest struct {
	// Domain is a bare host ("example.com") or a root URL. Required.
	Domain string `json:"domain" binding:"required"`

	// MaxURLs caps the discovered set. Default: 100. Max: 500.
	MaxURLs int `json:"max_urls,omitempty" binding:"omitempty,min=1,max=500"`

	// Timeout is the per-fetch timeout in seconds. Default: 10.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=60"`

	// IncludeCommonPaths appends a fixed catalog of conventional paths
	// (/about, /contact, /blog, …). Default: true.
	IncludeCommonPaths *bool `json:"include_common_paths,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *DiscoverRequest) Defaults() {
	if r.MaxURLs == 0 {
		r.MaxURLs = 100
	}
	if r.Timeout == 0 {
		r.Timeout = 10
	}
	if r.IncludeCommonPaths == nil {
		t := true
		r.IncludeCommonPaths = &t
	}
}

// DiscoverResponse is the response for POST /api/v1/discover.
type DiscoverResponse struct {
	Success bool             `json:"success"`
	Result  *DiscoveryResult `json:"result,omitempty"`
	Error   *ErrorDetail     `json:"error,omitempty"`
}
