package models

// Blocked-reason categories recorded on a ProbeOutcome when no usable
// final response was obtained. Network failures are data, not errors.
const (
	BlockTimeout           = "timeout"
	BlockDNSFailure        = "dns_failure"
	BlockConnectionRefused = "connection_refused"
	BlockTLSFailure        = "tls_failure"
	BlockNetworkError      = "network_error"
	BlockRedirectLoop      = "redirect_loop"
)

// BotVendor identifies a bot-protection product detected on a page.
type BotVendor string

const (
	VendorCloudflare     BotVendor = "cloudflare"
	VendorAkamai         BotVendor = "akamai"
	VendorPerimeterX     BotVendor = "perimeterx"
	VendorDataDome       BotVendor = "datadome"
	VendorImperva        BotVendor = "imperva"
	VendorReCAPTCHA      BotVendor = "recaptcha"
	VendorHCaptcha       BotVendor = "hcaptcha"
	VendorDistilNetworks BotVendor = "distil_networks"
	VendorShapeSecurity  BotVendor = "shape_security"
	VendorChallengePage  BotVendor = "challenge_page"
)

// BotSignal is one piece of evidence that an anti-automation mechanism
// guards the probed URL. A probe reports at most one signal per vendor.
type BotSignal struct {
	Vendor   BotVendor `json:"vendor"`
	Evidence string    `json:"evidence"`
}

// RedirectHop is a single step in a redirect chain.
type RedirectHop struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Status int    `json:"status"`
}

// ProbeOutcome is the complete record of one bounded HTTP investigation of
// a single URL. It is immutable once returned and owned by the caller.
//
// Every failure mode is encoded here as data — a probe never surfaces
// ordinary network conditions as Go errors, because one bad URL must not
// abort a batch.
type ProbeOutcome struct {
	// RequestedURL is the URL as submitted to the prober.
	RequestedURL string `json:"requested_url"`

	// FinalURL is the URL of the last response received, after following
	// up to ten redirects manually.
	FinalURL string `json:"final_url"`

	// HTTPStatus is the status of the final response. Sentinels: 408 when
	// the probe timed out, 0 for any other network-level failure.
	HTTPStatus int `json:"http_status"`

	// RedirectChain lists the hops taken, in order. Never more than ten.
	RedirectChain []RedirectHop `json:"redirect_chain"`

	// Accessible reports whether a final non-redirect HTTP response was
	// obtained. False only for network-level failures and capped redirect
	// chains; an HTTP 403 challenge page is still "accessible".
	Accessible bool `json:"accessible"`

	// BlockedReason categorizes why Accessible is false (Block* constants).
	BlockedReason string `json:"blocked_reason,omitempty"`

	// ContentType is the declared media type of the final response,
	// stripped of parameters. Empty when the server declared none.
	ContentType string `json:"content_type,omitempty"`

	// JSRequired indicates the page appears to need JavaScript execution
	// before meaningful content is available.
	JSRequired bool `json:"js_required"`

	// BotSignals holds the bot-protection evidence found in the final
	// response, deduplicated by vendor.
	BotSignals []BotSignal `json:"bot_signals"`

	// ResponseTimeMs is the wall-clock duration of the whole probe.
	ResponseTimeMs int64 `json:"response_time_ms"`

	// BodySample is a short prefix of the final body, kept for display
	// and for challenge-page clustering.
	BodySample string `json:"body_sample,omitempty"`

	// Body is the full bounded body capture. It never leaves the process:
	// previews and render checks read it, persisted rows carry BodySample.
	Body []byte `json:"-"`
}

// HasBotSignals reports whether any bot-protection vendor was detected.
func (o *ProbeOutcome) HasBotSignals() bool {
	return len(o.BotSignals) > 0
}

// ProbeRequest is the payload for POST /api/v1/probe.
type ProbeRequest struct {
	// URL is the target to probe. Required.
	URL string `json:"url" binding:"required,url"`

	// Timeout is the maximum duration in seconds for the whole probe.
	// Default: 10. Max: 60.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=60"`

	// IncludePreview requests a readability/markdown content preview for
	// accessible HTML pages. Default: false.
	IncludePreview bool `json:"include_preview,omitempty"`

	// ConfirmJS requests a headless-browser render check when the probe
	// flags the page as JavaScript-dependent. Ignored (with a note in the
	// response) when no renderer is configured. Default: false.
	ConfirmJS bool `json:"confirm_js,omitempty"`

	// MaxAge accepts a cached outcome younger than this many milliseconds.
	// 0 disables cache lookup.
	MaxAge int `json:"max_age,omitempty" binding:"omitempty,min=0"`
}

// Defaults applies default values to unset fields.
func (r *ProbeRequest) Defaults() {
	if r.Timeout == 0 {
		r.Timeout = 10
	}
}

// RenderCheck reports the outcome of an optional headless render of a
// JavaScript-dependent page.
type RenderCheck struct {
	// Performed is false when no renderer is available in this deployment.
	Performed bool `json:"performed"`

	// ContentAfterRender indicates the rendered DOM carried substantive
	// visible text, confirming the page is scrapable with a browser.
	ContentAfterRender bool `json:"content_after_render,omitempty"`

	// VisibleChars counts visible body characters after rendering.
	VisibleChars int `json:"visible_chars,omitempty"`

	Note string `json:"note,omitempty"`
}

// Preview is a bounded content extract of an accessible HTML page,
// showing what an automated client would actually obtain.
type Preview struct {
	Title         string `json:"title,omitempty"`
	Description   string `json:"description,omitempty"`
	Markdown      string `json:"markdown,omitempty"`
	TokenEstimate int    `json:"token_estimate"`
	Truncated     bool   `json:"truncated,omitempty"`
}

// ProbeResponse is the response for POST /api/v1/probe.
type ProbeResponse struct {
	Success        bool           `json:"success"`
	Outcome        *ProbeOutcome  `json:"outcome,omitempty"`
	Score          ScoreBreakdown `json:"score"`
	Recommendation Recommendation `json:"recommendation,omitempty"`
	Preview        *Preview       `json:"preview,omitempty"`
	RenderCheck    *RenderCheck   `json:"render_check,omitempty"`

	// CacheStatus indicates whether the outcome was served from cache.
	// Values: "hit", "miss", or empty (caching not requested).
	CacheStatus string `json:"cache_status,omitempty"`

	Error *ErrorDetail `json:"error,omitempty"`
}
