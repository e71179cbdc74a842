package models

import "time"

// AuditMode selects how the URL set for a session is obtained.
type AuditMode string

const (
	// ModeBatch audits an explicit list of URLs.
	ModeBatch AuditMode = "batch"
	// ModeDomain discovers URLs for a domain first, then audits them.
	ModeDomain AuditMode = "domain"
)

// SessionStatus is the lifecycle state of an audit session.
//
// Transitions: pending → discovering (domain mode only) → testing →
// scoring → completed. Any orchestration failure moves the session to
// failed. completed and failed are terminal.
type SessionStatus string

const (
	StatusPending     SessionStatus = "pending"
	StatusDiscovering SessionStatus = "discovering"
	StatusTesting     SessionStatus = "testing"
	StatusScoring     SessionStatus = "scoring"
	StatusCompleted   SessionStatus = "completed"
	StatusFailed      SessionStatus = "failed"
)

// Terminal reports whether a session in this status will never change
// again.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Progress is one update emitted after each completed probe (and on
// phase changes), consumed by pollers and webhooks for progress bars.
type Progress struct {
	Status          SessionStatus `json:"status"`
	CurrentStep     string        `json:"current_step"`
	TotalURLs       int           `json:"total_urls"`
	CompletedURLs   int           `json:"completed_urls"`
	PercentComplete float64       `json:"percent_complete"`
}

// AuditSummary aggregates a completed session. It is derived once, after
// all probes finish, and never partially computed.
type AuditSummary struct {
	TotalURLs       int     `json:"total_urls"`
	AccessibleCount int     `json:"accessible_count"`
	BlockedCount    int     `json:"blocked_count"`
	AverageScore    float64 `json:"average_score"`

	// BestEntryPoints holds at most five accessible results with a score
	// of 80 or higher, in descending score order.
	BestEntryPoints []AuditResult `json:"best_entry_points"`

	// ByStatus histograms final HTTP statuses ("200", "403", "0", …).
	ByStatus map[string]int `json:"by_status"`

	// RecommendationBreakdown counts results per recommendation bucket.
	RecommendationBreakdown map[Recommendation]int `json:"recommendation_breakdown"`

	// ChallengeClusters groups blocked or challenged pages whose bodies
	// are near-duplicates, usually one cluster per protection vendor.
	ChallengeClusters []ChallengeCluster `json:"challenge_clusters,omitempty"`
}

// ChallengeCluster is a group of URLs that returned near-identical
// challenge or error pages, detected by simhash over the body samples.
type ChallengeCluster struct {
	// Representative is the first URL seen in the cluster.
	Representative string   `json:"representative"`
	URLs           []string `json:"urls"`
	Size           int      `json:"size"`
}

// AuditSession is the persistent record of one audit run. The
// orchestrator mutates CompletedURLs and Status as probes complete;
// everything else is written once.
type AuditSession struct {
	ID            string        `json:"id"`
	Mode          AuditMode     `json:"mode"`
	Domain        string        `json:"domain,omitempty"`
	TotalURLs     int           `json:"total_urls"`
	CompletedURLs int           `json:"completed_urls"`
	Status        SessionStatus `json:"status"`
	CurrentStep   string        `json:"current_step,omitempty"`

	// Results is populated when the session completes, sorted by
	// descending total score.
	Results []AuditResult `json:"results,omitempty"`

	// Discovery is populated in domain mode once discovery finishes.
	Discovery *DiscoveryResult `json:"discovery,omitempty"`

	// Summary is populated when the session completes.
	Summary *AuditSummary `json:"summary,omitempty"`

	// Error carries the failure message of a failed session.
	Error string `json:"error,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// PercentComplete returns the session's progress as 0–100.
func (s *AuditSession) PercentComplete() float64 {
	if s.TotalURLs == 0 {
		return 0
	}
	return float64(s.CompletedURLs) / float64(s.TotalURLs) * 100
}

// AuditRequest is the payload for POST /api/v1/audit. Mode selects
// between an explicit URL list and domain discovery.
type AuditRequest struct {
	// Mode is "batch" or "domain". POST /api/v1/audit defaults it to
	// batch; POST /api/v1/audit/domain pins it to domain.
	Mode AuditMode `json:"mode,omitempty" binding:"omitempty,oneof=batch domain"`

	// URLs is the explicit list to audit. Required in batch mode.
	// Max: 100 entries.
	URLs []string `json:"urls,omitempty" binding:"omitempty,max=100,dive,url"`

	// Domain is the root domain to discover and audit. Required in
	// domain mode.
	Domain string `json:"domain,omitempty"`

	// Concurrency bounds simultaneous probes. Default: 5. Max: 20.
	Concurrency int `json:"concurrency,omitempty" binding:"omitempty,min=1,max=20"`

	// Timeout is the per-probe timeout in seconds. Default: 10. Max: 60.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=60"`

	// MaxURLs caps domain discovery. Default: 100. Max: 500.
	MaxURLs int `json:"max_urls,omitempty" binding:"omitempty,min=1,max=500"`

	// IncludeCommonPaths appends conventional paths during discovery.
	// Default: true. Ignored in batch mode.
	IncludeCommonPaths *bool `json:"include_common_paths,omitempty"`

	// WebhookURL, if set, receives audit.completed / audit.failed events.
	WebhookURL string `json:"webhook_url,omitempty" binding:"omitempty,url"`

	// WebhookSecret signs webhook deliveries with HMAC-SHA256.
	WebhookSecret string `json:"webhook_secret,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *AuditRequest) Defaults() {
	if r.Concurrency == 0 {
		r.Concurrency = 5
	}
	if r.Timeout == 0 {
		r.Timeout = 10
	}
	if r.MaxURLs == 0 {
		r.MaxURLs = 100
	}
	if r.IncludeCommonPaths == nil {
		t := true
		r.IncludeCommonPaths = &t
	}
}

// AuditResponse is the immediate response for POST /api/v1/audit; the
// session runs asynchronously.
type AuditResponse struct {
	Success   bool          `json:"success"`
	SessionID string        `json:"session_id,omitempty"`
	Status    SessionStatus `json:"status,omitempty"`
	TotalURLs int           `json:"total_urls,omitempty"`
	Error     *ErrorDetail  `json:"error,omitempty"`
}

// SessionResponse is the response for GET /api/v1/audit/:id.
type SessionResponse struct {
	Success bool          `json:"success"`
	Session *AuditSession `json:"session,omitempty"`
	Error   *ErrorDetail  `json:"error,omitempty"`
}
