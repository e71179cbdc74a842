package auditor

import (
	"fmt"
	"testing"

	"github.com/pardeepdhingra/urllens/models"
	"github.com/pardeepdhingra/urllens/scoring"
)

// scored builds an AuditResult by running the real scoring engine over
// the outcome, so summary tests stay consistent with the score table.
func scored(o *models.ProbeOutcome) models.AuditResult {
	breakdown, rec := scoring.Evaluate(o)
	return models.AuditResult{
		URL:            o.RequestedURL,
		Outcome:        o,
		Score:          breakdown,
		Recommendation: rec,
	}
}

func cleanPage(url string) *models.ProbeOutcome {
	return &models.ProbeOutcome{
		RequestedURL: url,
		FinalURL:     url,
		HTTPStatus:   200,
		Accessible:   true,
		ContentType:  "text/html",
	}
}

func TestSummarizeCounts(t *testing.T) {
	results := []models.AuditResult{
		scored(cleanPage("https://example.com/")),
		scored(cleanPage("https://example.com/blog")),
		// 403 on HTML with no signals scores 65, moderate.
		scored(&models.ProbeOutcome{
			RequestedURL: "https://example.com/admin",
			FinalURL:     "https://example.com/admin",
			HTTPStatus:   403,
			Accessible:   true,
			ContentType:  "text/html",
		}),
		// The timeout sentinel scores 45 and is always blocked.
		scored(&models.ProbeOutcome{
			RequestedURL:  "https://example.com/slow",
			FinalURL:      "https://example.com/slow",
			HTTPStatus:    408,
			Accessible:    false,
			BlockedReason: models.BlockTimeout,
		}),
	}

	summary := Summarize(results)

	if summary.TotalURLs != 4 {
		t.Errorf("TotalURLs = %d, want 4", summary.TotalURLs)
	}
	if summary.AccessibleCount != 3 {
		t.Errorf("AccessibleCount = %d, want 3", summary.AccessibleCount)
	}
	if summary.BlockedCount != 1 {
		t.Errorf("BlockedCount = %d, want 1", summary.BlockedCount)
	}
	// (100 + 100 + 65 + 45) / 4 = 77.5
	if summary.AverageScore != 77.5 {
		t.Errorf("AverageScore = %v, want 77.5", summary.AverageScore)
	}

	wantStatuses := map[string]int{"200": 2, "403": 1, "408": 1}
	for status, want := range wantStatuses {
		if summary.ByStatus[status] != want {
			t.Errorf("ByStatus[%s] = %d, want %d", status, summary.ByStatus[status], want)
		}
	}

	if got := summary.RecommendationBreakdown[models.RecommendationBestEntryPoint]; got != 2 {
		t.Errorf("breakdown[best_entry_point] = %d, want 2", got)
	}
	if got := summary.RecommendationBreakdown[models.RecommendationModerate]; got != 1 {
		t.Errorf("breakdown[moderate] = %d, want 1", got)
	}
	if got := summary.RecommendationBreakdown[models.RecommendationBlocked]; got != 1 {
		t.Errorf("breakdown[blocked] = %d, want 1", got)
	}

	if len(summary.BestEntryPoints) != 2 {
		t.Fatalf("got %d best entry points, want 2", len(summary.BestEntryPoints))
	}
	for _, r := range summary.BestEntryPoints {
		if !r.Outcome.Accessible || r.Score.Total < 80 {
			t.Errorf("entry point %s has score %d accessible=%v", r.URL, r.Score.Total, r.Outcome.Accessible)
		}
	}
}

func TestSummarizeCapsBestEntryPoints(t *testing.T) {
	var results []models.AuditResult
	for i := 0; i < 7; i++ {
		results = append(results, scored(cleanPage(fmt.Sprintf("https://example.com/p%d", i))))
	}

	summary := Summarize(results)
	if len(summary.BestEntryPoints) != 5 {
		t.Errorf("got %d best entry points, want cap of 5", len(summary.BestEntryPoints))
	}
}

func TestSummarizeExcludesInaccessibleFromEntryPoints(t *testing.T) {
	// A high total cannot rescue an unreachable URL.
	results := []models.AuditResult{{
		URL:            "https://example.com/loop",
		Outcome:        &models.ProbeOutcome{RequestedURL: "https://example.com/loop", Accessible: false},
		Score:          models.ScoreBreakdown{Total: 90},
		Recommendation: models.RecommendationBlocked,
	}}

	summary := Summarize(results)
	if len(summary.BestEntryPoints) != 0 {
		t.Errorf("inaccessible result listed as entry point: %+v", summary.BestEntryPoints)
	}
}

func TestSummarizeEmpty(t *testing.T) {
	summary := Summarize(nil)
	if summary.TotalURLs != 0 || summary.AccessibleCount != 0 || summary.BlockedCount != 0 {
		t.Errorf("empty summary has counts: %+v", summary)
	}
	if summary.AverageScore != 0 {
		t.Errorf("AverageScore = %v, want 0", summary.AverageScore)
	}
	if summary.ByStatus == nil || summary.RecommendationBreakdown == nil {
		t.Error("summary maps not initialized")
	}
	if summary.ChallengeClusters != nil {
		t.Errorf("empty summary has clusters: %+v", summary.ChallengeClusters)
	}
}

func challengeBody(rayID string) string {
	return `<!DOCTYPE html><html><head><title>Just a moment...</title></head>` +
		`<body><div id="challenge"><h1>Checking your browser before accessing</h1>` +
		`<p>Ray ID: ` + rayID + `</p><script src="/cdn-cgi/challenge-platform/orchestrate.js"></script>` +
		`</div></body></html>`
}

func cloudflareChallenge(url, rayID string) *models.ProbeOutcome {
	return &models.ProbeOutcome{
		RequestedURL: url,
		FinalURL:     url,
		HTTPStatus:   403,
		Accessible:   true,
		ContentType:  "text/html",
		JSRequired:   true,
		BotSignals:   []models.BotSignal{{Vendor: models.VendorCloudflare, Evidence: "server: cloudflare"}},
		BodySample:   challengeBody(rayID),
	}
}

func TestSummarizeClustersUniformChallengePages(t *testing.T) {
	// Three URLs serve the same interstitial template with different ray
	// IDs; the clean page and the sample-less timeout must stay out.
	results := []models.AuditResult{
		scored(cleanPage("https://example.com/")),
		scored(&models.ProbeOutcome{
			RequestedURL:  "https://example.com/slow",
			FinalURL:      "https://example.com/slow",
			HTTPStatus:    408,
			Accessible:    false,
			BlockedReason: models.BlockTimeout,
		}),
		scored(cloudflareChallenge("https://example.com/a", "8cf91")),
		scored(cloudflareChallenge("https://example.com/b", "8cf92")),
		scored(cloudflareChallenge("https://example.com/c", "8cf93")),
	}

	summary := Summarize(results)
	if len(summary.ChallengeClusters) == 0 {
		t.Fatal("uniform challenge pages produced no cluster")
	}

	var challenge *models.ChallengeCluster
	for i := range summary.ChallengeClusters {
		for _, u := range summary.ChallengeClusters[i].URLs {
			if u == "https://example.com/a" {
				challenge = &summary.ChallengeClusters[i]
			}
		}
	}
	if challenge == nil {
		t.Fatal("no cluster contains the challenged URLs")
	}
	if challenge.Size < 3 || challenge.Size != len(challenge.URLs) {
		t.Errorf("cluster size = %d with %d URLs, want all 3 challenged URLs", challenge.Size, len(challenge.URLs))
	}
	for _, want := range []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"} {
		found := false
		for _, u := range challenge.URLs {
			if u == want {
				found = true
			}
		}
		if !found {
			t.Errorf("cluster is missing %s", want)
		}
	}
	if challenge.Representative != "https://example.com/a" {
		t.Errorf("representative = %s, want the first challenged URL", challenge.Representative)
	}

	for _, c := range summary.ChallengeClusters {
		for _, u := range c.URLs {
			if u == "https://example.com/" {
				t.Error("accessible unchallenged page landed in a cluster")
			}
			if u == "https://example.com/slow" {
				t.Error("sample-less timeout landed in a cluster")
			}
		}
	}
}

func TestSummarizeSingleSampleNoCluster(t *testing.T) {
	results := []models.AuditResult{
		scored(cleanPage("https://example.com/")),
		scored(cloudflareChallenge("https://example.com/only", "8cf90")),
	}

	summary := Summarize(results)
	if summary.ChallengeClusters != nil {
		t.Errorf("single challenged sample produced clusters: %+v", summary.ChallengeClusters)
	}
}
