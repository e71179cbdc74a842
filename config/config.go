package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Prober    ProberConfig
	Discovery DiscoveryConfig
	Audit     AuditConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Cache     CacheConfig
	Render    RenderConfig
	Webhook   WebhookConfig
	Log       LogConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8080
	Mode string // "debug", "release", "test"; default: "release"
}

// ProberConfig controls single-URL probing.
type ProberConfig struct {
	// DefaultTimeout is the per-probe deadline.
	DefaultTimeout time.Duration // default: 10s

	// MaxTimeout is the maximum allowed timeout from the client.
	MaxTimeout time.Duration // default: 60s

	// MaxRedirects caps the manually followed redirect chain.
	MaxRedirects int // default: 10

	// MaxBodyBytes caps how much of a response body is read for
	// fingerprinting.
	MaxBodyBytes int64 // default: 512 KiB

	// UserAgent is sent on every probe request.
	UserAgent string
}

// DiscoveryConfig controls domain URL discovery.
type DiscoveryConfig struct {
	// MaxURLs is the default cap on discovered URLs.
	MaxURLs int // default: 100

	// FetchTimeout is the per-fetch deadline for robots.txt and sitemaps.
	FetchTimeout time.Duration // default: 10s

	// MaxSitemapFetches bounds total sitemap requests per discovery.
	MaxSitemapFetches int // default: 20

	// Concurrency bounds simultaneous sitemap fetches.
	Concurrency int // default: 4
}

// AuditConfig controls batch orchestration.
type AuditConfig struct {
	// DefaultConcurrency is the probe wave size.
	DefaultConcurrency int // default: 5

	// MaxConcurrency is the maximum wave size a client may request.
	MaxConcurrency int // default: 20

	// MaxBatchURLs caps the URL list of a batch request.
	MaxBatchURLs int // default: 100

	// SessionTTL is how long finished sessions are retained.
	SessionTTL time.Duration // default: 1h

	// MaxSessions caps retained sessions; oldest terminal sessions are
	// evicted first.
	MaxSessions int // default: 500
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: true

	// APIKeys is the list of valid API keys (for MVP; replace with DB later).
	APIKeys []string
}

// RateLimitConfig controls inbound per-key rate limiting and outbound
// per-host probe pacing.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10

	// HostRPS is the sustained outbound request rate per target host,
	// shared by discovery fetches and audit probes. <= 0 disables pacing.
	HostRPS float64 // default: 5

	// HostBurst is the outbound burst size per target host.
	HostBurst int // default: 10
}

// CacheConfig controls the probe outcome cache.
type CacheConfig struct {
	// MaxEntries is the maximum number of cached outcomes.
	MaxEntries int // default: 1000
}

// RenderConfig controls the optional headless render check.
type RenderConfig struct {
	// Enabled toggles the Rod-backed renderer. When false the API still
	// works; render checks report "not available".
	Enabled bool // default: false

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Timeout is the deadline for one render check.
	Timeout time.Duration // default: 20s
}

// WebhookConfig controls outbound event delivery.
type WebhookConfig struct {
	// Timeout is the per-delivery HTTP timeout.
	Timeout time.Duration // default: 10s
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Server: ServerConfig{
			Host: envOr("URLLENS_HOST", "0.0.0.0"),
			Port: envIntOr("URLLENS_PORT", 8080),
			Mode: envOr("URLLENS_MODE", "release"),
		},
		Prober: ProberConfig{
			DefaultTimeout: envDurationOr("URLLENS_PROBE_TIMEOUT", 10*time.Second),
			MaxTimeout:     envDurationOr("URLLENS_PROBE_MAX_TIMEOUT", 60*time.Second),
			MaxRedirects:   envIntOr("URLLENS_MAX_REDIRECTS", 10),
			MaxBodyBytes:   int64(envIntOr("URLLENS_MAX_BODY_BYTES", 512*1024)),
			UserAgent:      envOr("URLLENS_USER_AGENT", ""),
		},
		Discovery: DiscoveryConfig{
			MaxURLs:           envIntOr("URLLENS_DISCOVERY_MAX_URLS", 100),
			FetchTimeout:      envDurationOr("URLLENS_DISCOVERY_TIMEOUT", 10*time.Second),
			MaxSitemapFetches: envIntOr("URLLENS_DISCOVERY_MAX_FETCHES", 20),
			Concurrency:       envIntOr("URLLENS_DISCOVERY_CONCURRENCY", 4),
		},
		Audit: AuditConfig{
			DefaultConcurrency: envIntOr("URLLENS_AUDIT_CONCURRENCY", 5),
			MaxConcurrency:     envIntOr("URLLENS_AUDIT_MAX_CONCURRENCY", 20),
			MaxBatchURLs:       envIntOr("URLLENS_AUDIT_MAX_URLS", 100),
			SessionTTL:         envDurationOr("URLLENS_SESSION_TTL", time.Hour),
			MaxSessions:        envIntOr("URLLENS_MAX_SESSIONS", 500),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("URLLENS_AUTH_ENABLED", true),
			APIKeys: envSliceOr("URLLENS_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("URLLENS_RATE_RPS", 5.0),
			Burst:             envIntOr("URLLENS_RATE_BURST", 10),
			HostRPS:           envFloatOr("URLLENS_HOST_RPS", 5.0),
			HostBurst:         envIntOr("URLLENS_HOST_BURST", 10),
		},
		Cache: CacheConfig{
			MaxEntries: envIntOr("URLLENS_CACHE_MAX_ENTRIES", 1000),
		},
		Render: RenderConfig{
			Enabled:    envBoolOr("URLLENS_RENDER_ENABLED", false),
			Headless:   envBoolOr("URLLENS_HEADLESS", true),
			NoSandbox:  envBoolOr("URLLENS_NO_SANDBOX", false),
			BrowserBin: os.Getenv("URLLENS_BROWSER_BIN"),
			Timeout:    envDurationOr("URLLENS_RENDER_TIMEOUT", 20*time.Second),
		},
		Webhook: WebhookConfig{
			Timeout: envDurationOr("URLLENS_WEBHOOK_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level:  envOr("URLLENS_LOG_LEVEL", "info"),
			Format: envOr("URLLENS_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
