package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// probeResponse mirrors the URLLens probe API response.
type probeResponse struct {
	Success bool `json:"success"`
	Outcome *struct {
		RequestedURL  string `json:"requested_url"`
		FinalURL      string `json:"final_url"`
		HTTPStatus    int    `json:"http_status"`
		Accessible    bool   `json:"accessible"`
		BlockedReason string `json:"blocked_reason"`
		ContentType   string `json:"content_type"`
		JSRequired    bool   `json:"js_required"`
		BotSignals    []struct {
			Vendor   string `json:"vendor"`
			Evidence string `json:"evidence"`
		} `json:"bot_signals"`
		RedirectChain []struct {
			From   string `json:"from"`
			To     string `json:"to"`
			Status int    `json:"status"`
		} `json:"redirect_chain"`
		ResponseTimeMs int64 `json:"response_time_ms"`
	} `json:"outcome"`
	Score struct {
		HTTPStatus         int `json:"http_status"`
		JSPenaltyAvoided   int `json:"js_penalty_avoided"`
		HTMLBonus          int `json:"html_bonus"`
		BotProtectionBonus int `json:"bot_protection_bonus"`
		RedirectBonus      int `json:"redirect_bonus"`
		Total              int `json:"total"`
	} `json:"score"`
	Recommendation string `json:"recommendation"`
	Preview        *struct {
		Title         string `json:"title"`
		Markdown      string `json:"markdown"`
		TokenEstimate int    `json:"token_estimate"`
		Truncated     bool   `json:"truncated"`
	} `json:"preview"`
	RenderCheck *struct {
		Performed          bool   `json:"performed"`
		ContentAfterRender bool   `json:"content_after_render"`
		VisibleChars       int    `json:"visible_chars"`
		Note               string `json:"note"`
	} `json:"render_check"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// auditResponse mirrors the URLLens audit creation API response.
type auditResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	TotalURLs int    `json:"total_urls"`
	Error     *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// sessionResponse mirrors the URLLens session status API response.
type sessionResponse struct {
	Success bool `json:"success"`
	Session *struct {
		ID            string `json:"id"`
		Mode          string `json:"mode"`
		Domain        string `json:"domain"`
		Status        string `json:"status"`
		CurrentStep   string `json:"current_step"`
		TotalURLs     int    `json:"total_urls"`
		CompletedURLs int    `json:"completed_urls"`
		Results       []struct {
			URL   string `json:"url"`
			Score struct {
				Total int `json:"total"`
			} `json:"score"`
			Recommendation string `json:"recommendation"`
			Outcome        struct {
				HTTPStatus    int    `json:"http_status"`
				Accessible    bool   `json:"accessible"`
				BlockedReason string `json:"blocked_reason"`
				JSRequired    bool   `json:"js_required"`
			} `json:"outcome"`
		} `json:"results"`
		Summary *struct {
			TotalURLs       int     `json:"total_urls"`
			AccessibleCount int     `json:"accessible_count"`
			BlockedCount    int     `json:"blocked_count"`
			AverageScore    float64 `json:"average_score"`
			BestEntryPoints []struct {
				URL   string `json:"url"`
				Score struct {
					Total int `json:"total"`
				} `json:"score"`
			} `json:"best_entry_points"`
			ChallengeClusters []struct {
				Representative string   `json:"representative"`
				URLs           []string `json:"urls"`
				Size           int      `json:"size"`
			} `json:"challenge_clusters"`
		} `json:"summary"`
		Error string `json:"error"`
	} `json:"session"`
}

// discoverResponse mirrors the URLLens discovery API response.
type discoverResponse struct {
	Success bool `json:"success"`
	Result  *struct {
		Domain         string `json:"domain"`
		RootAccessible bool   `json:"root_accessible"`
		RootStatus     int    `json:"root_status"`
		DiscoveredURLs []struct {
			URL    string `json:"url"`
			Source string `json:"source"`
		} `json:"discovered_urls"`
		Truncated bool `json:"truncated"`
	} `json:"result"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func main() {
	apiURL := os.Getenv("URLLENS_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("URLLENS_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "URLLENS_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"urllens",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	auditURLTool := mcp.NewTool("audit_url",
		mcp.WithDescription("Audit a single URL for scrapability: HTTP accessibility, JavaScript dependence, bot-protection signals and redirect behavior, scored 0-100 with a recommendation."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL to audit"),
		),
		mcp.WithBoolean("include_preview",
			mcp.Description("Include a markdown preview of what a scraper would extract (accessible HTML pages only)"),
		),
		mcp.WithBoolean("confirm_js",
			mcp.Description("Confirm JavaScript dependence with a headless render, when the deployment has a renderer configured"),
		),
	)
	s.AddTool(auditURLTool, handleAuditURL(apiURL, apiKey))

	// audit_batch tool
	auditBatchTool := mcp.NewTool("audit_batch",
		mcp.WithDescription("Audit a list of URLs for scrapability and rank them by score. Returns per-URL results plus an aggregate summary with the best entry points."),
		mcp.WithArray("urls",
			mcp.Required(),
			mcp.Description("List of URLs to audit (max 100)"),
		),
		mcp.WithNumber("concurrency",
			mcp.Description("Simultaneous probes (default: 5, max: 20)"),
		),
	)
	s.AddTool(auditBatchTool, handleAuditBatch(apiURL, apiKey))

	// audit_domain tool
	auditDomainTool := mcp.NewTool("audit_domain",
		mcp.WithDescription("Discover URLs for a domain (sitemaps, robots.txt, common paths) and audit the discovered set for scrapability."),
		mcp.WithString("domain",
			mcp.Required(),
			mcp.Description("Root domain to discover and audit, e.g. example.com"),
		),
		mcp.WithNumber("max_urls",
			mcp.Description("Maximum number of discovered URLs to audit (default: 100, max: 500)"),
		),
	)
	s.AddTool(auditDomainTool, handleAuditDomain(apiURL, apiKey))

	// discover_urls tool
	discoverTool := mcp.NewTool("discover_urls",
		mcp.WithDescription("Enumerate candidate URLs for a domain from sitemaps, robots.txt and conventional paths, without probing them."),
		mcp.WithString("domain",
			mcp.Required(),
			mcp.Description("Root domain to enumerate, e.g. example.com"),
		),
		mcp.WithNumber("max_urls",
			mcp.Description("Maximum number of URLs to return (default: 100, max: 500)"),
		),
	)
	s.AddTool(discoverTool, handleDiscoverURLs(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the URLLens API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// pollSession polls the session endpoint until the audit reaches a
// terminal status (completed or failed) or the context is cancelled.
func pollSession(ctx context.Context, client *http.Client, apiURL, apiKey, sessionID string) ([]byte, error) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+"/api/v1/audit/"+sessionID, nil)
			if err != nil {
				return nil, fmt.Errorf("create poll request: %w", err)
			}
			req.Header.Set("X-API-Key", apiKey)

			resp, err := client.Do(req)
			if err != nil {
				return nil, fmt.Errorf("poll request failed: %w", err)
			}

			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				return nil, fmt.Errorf("read poll response: %w", err)
			}

			// Quick check whether the session is still running.
			var status struct {
				Session *struct {
					Status string `json:"status"`
				} `json:"session"`
			}
			if err := json.Unmarshal(body, &status); err != nil {
				return nil, fmt.Errorf("parse poll status: %w", err)
			}

			if status.Session != nil &&
				(status.Session.Status == "completed" || status.Session.Status == "failed") {
				return body, nil
			}
		}
	}
}

func handleAuditURL(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		payload := map[string]interface{}{"url": url}
		args := request.GetArguments()
		if v, ok := args["include_preview"]; ok {
			payload["include_preview"] = v
		}
		if v, ok := args["confirm_js"]; ok {
			payload["confirm_js"] = v
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/probe", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("probe request failed: %v", err)), nil
		}

		var probeResp probeResponse
		if err := json.Unmarshal(respBody, &probeResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse probe response: %v", err)), nil
		}

		if !probeResp.Success || probeResp.Outcome == nil {
			errMsg := "probe failed"
			if probeResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", probeResp.Error.Code, probeResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		return mcp.NewToolResultText(formatProbe(&probeResp)), nil
	}
}

func handleAuditBatch(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 600 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		urls, err := request.RequireStringSlice("urls")
		if err != nil {
			return mcp.NewToolResultError("urls is required and must be an array of strings"), nil
		}

		payload := map[string]interface{}{"urls": urls}
		args := request.GetArguments()
		if v, ok := args["concurrency"]; ok {
			payload["concurrency"] = v
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/audit", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("audit request failed: %v", err)), nil
		}

		return awaitSession(ctx, client, apiURL, apiKey, respBody)
	}
}

func handleAuditDomain(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 600 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		domain, err := request.RequireString("domain")
		if err != nil {
			return mcp.NewToolResultError("domain is required"), nil
		}

		payload := map[string]interface{}{"domain": domain}
		args := request.GetArguments()
		if v, ok := args["max_urls"]; ok {
			payload["max_urls"] = v
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/audit/domain", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("audit request failed: %v", err)), nil
		}

		return awaitSession(ctx, client, apiURL, apiKey, respBody)
	}
}

// awaitSession parses a session-creation response, polls the session to
// completion and renders it.
func awaitSession(ctx context.Context, client *http.Client, apiURL, apiKey string, created []byte) (*mcp.CallToolResult, error) {
	var auditResp auditResponse
	if err := json.Unmarshal(created, &auditResp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse audit response: %v", err)), nil
	}

	if auditResp.SessionID == "" {
		errMsg := "audit session creation failed"
		if auditResp.Error != nil {
			errMsg = fmt.Sprintf("[%s] %s", auditResp.Error.Code, auditResp.Error.Message)
		}
		return mcp.NewToolResultError(errMsg), nil
	}

	resultBody, err := pollSession(ctx, client, apiURL, apiKey, auditResp.SessionID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("polling audit session failed: %v", err)), nil
	}

	var statusResp sessionResponse
	if err := json.Unmarshal(resultBody, &statusResp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse session status: %v", err)), nil
	}

	return mcp.NewToolResultText(formatSession(&statusResp)), nil
}

func handleDiscoverURLs(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 120 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		domain, err := request.RequireString("domain")
		if err != nil {
			return mcp.NewToolResultError("domain is required"), nil
		}

		payload := map[string]interface{}{"domain": domain}
		args := request.GetArguments()
		if v, ok := args["max_urls"]; ok {
			payload["max_urls"] = v
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/discover", payload)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("discover request failed: %v", err)), nil
		}

		var discResp discoverResponse
		if err := json.Unmarshal(respBody, &discResp); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse discover response: %v", err)), nil
		}

		if !discResp.Success || discResp.Result == nil {
			errMsg := "discovery failed"
			if discResp.Error != nil {
				errMsg = fmt.Sprintf("[%s] %s", discResp.Error.Code, discResp.Error.Message)
			}
			return mcp.NewToolResultError(errMsg), nil
		}

		res := discResp.Result
		var sb strings.Builder
		fmt.Fprintf(&sb, "Domain %s (root: HTTP %d)\nFound %d URLs:\n\n", res.Domain, res.RootStatus, len(res.DiscoveredURLs))
		for _, u := range res.DiscoveredURLs {
			fmt.Fprintf(&sb, "%-14s %s\n", u.Source, u.URL)
		}
		if res.Truncated {
			sb.WriteString("\n(truncated at the requested cap)\n")
		}

		return mcp.NewToolResultText(sb.String()), nil
	}
}

// formatProbe renders a single probe result as readable text.
func formatProbe(r *probeResponse) string {
	o := r.Outcome
	var sb strings.Builder

	fmt.Fprintf(&sb, "URL: %s\n", o.RequestedURL)
	if o.FinalURL != o.RequestedURL {
		fmt.Fprintf(&sb, "Final URL: %s (%d redirects)\n", o.FinalURL, len(o.RedirectChain))
	}
	fmt.Fprintf(&sb, "Score: %d/100 (%s)\n", r.Score.Total, r.Recommendation)

	if o.Accessible {
		fmt.Fprintf(&sb, "HTTP: %d in %d ms", o.HTTPStatus, o.ResponseTimeMs)
		if o.ContentType != "" {
			fmt.Fprintf(&sb, ", %s", o.ContentType)
		}
		sb.WriteString("\n")
	} else {
		fmt.Fprintf(&sb, "Blocked: %s\n", o.BlockedReason)
	}

	fmt.Fprintf(&sb, "JS required: %t\n", o.JSRequired)
	if len(o.BotSignals) > 0 {
		sb.WriteString("Bot signals:\n")
		for _, s := range o.BotSignals {
			fmt.Fprintf(&sb, "  - %s (%s)\n", s.Vendor, s.Evidence)
		}
	}

	fmt.Fprintf(&sb, "Breakdown: status %d, no-js %d, html %d, no-bot %d, redirects %d\n",
		r.Score.HTTPStatus, r.Score.JSPenaltyAvoided, r.Score.HTMLBonus,
		r.Score.BotProtectionBonus, r.Score.RedirectBonus)

	if rc := r.RenderCheck; rc != nil {
		if rc.Performed {
			fmt.Fprintf(&sb, "Render check: content after render %t (%d visible chars)\n",
				rc.ContentAfterRender, rc.VisibleChars)
		} else {
			fmt.Fprintf(&sb, "Render check skipped: %s\n", rc.Note)
		}
	}

	if p := r.Preview; p != nil {
		fmt.Fprintf(&sb, "\n---\nPreview (~%d tokens):\n%s\n", p.TokenEstimate, p.Markdown)
		if p.Truncated {
			sb.WriteString("(preview truncated)\n")
		}
	}

	return sb.String()
}

// formatSession renders a finished audit session as readable text.
func formatSession(r *sessionResponse) string {
	s := r.Session
	if s == nil {
		return "session not found"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Audit %s: %s (%d/%d URLs)\n", s.ID, s.Status, s.CompletedURLs, s.TotalURLs)
	if s.Domain != "" {
		fmt.Fprintf(&sb, "Domain: %s\n", s.Domain)
	}
	if s.Status == "failed" {
		fmt.Fprintf(&sb, "Error: %s\n", s.Error)
		return sb.String()
	}

	if sum := s.Summary; sum != nil {
		fmt.Fprintf(&sb, "Accessible: %d | Blocked: %d | Average score: %.1f\n",
			sum.AccessibleCount, sum.BlockedCount, sum.AverageScore)

		if len(sum.BestEntryPoints) > 0 {
			sb.WriteString("\nBest entry points:\n")
			for _, ep := range sum.BestEntryPoints {
				fmt.Fprintf(&sb, "  %3d  %s\n", ep.Score.Total, ep.URL)
			}
		}
		if len(sum.ChallengeClusters) > 0 {
			sb.WriteString("\nChallenge clusters (same block page served across URLs):\n")
			for _, cl := range sum.ChallengeClusters {
				fmt.Fprintf(&sb, "  %d URLs like %s\n", cl.Size, cl.Representative)
			}
		}
	}

	if len(s.Results) > 0 {
		sb.WriteString("\nResults (best first):\n")
		for i, res := range s.Results {
			fmt.Fprintf(&sb, "[%d] %s: %d/100 %s", i+1, res.URL, res.Score.Total, res.Recommendation)
			if res.Outcome.Accessible {
				fmt.Fprintf(&sb, " (HTTP %d", res.Outcome.HTTPStatus)
				if res.Outcome.JSRequired {
					sb.WriteString(", needs JS")
				}
				sb.WriteString(")")
			} else {
				fmt.Fprintf(&sb, " (blocked: %s)", res.Outcome.BlockedReason)
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}
