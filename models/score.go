package models

// Recommendation classifies how a URL should be approached by an
// automated client.
type Recommendation string

const (
	RecommendationBestEntryPoint Recommendation = "best_entry_point"
	RecommendationGood           Recommendation = "good"
	RecommendationModerate       Recommendation = "moderate"
	RecommendationChallenging    Recommendation = "challenging"
	RecommendationBlocked        Recommendation = "blocked"
)

// ScoreBreakdown itemizes a scrapability score. The five components sum
// to Total; the maximum is 100. A breakdown is always recomputed from a
// ProbeOutcome, never mutated on its own.
type ScoreBreakdown struct {
	// HTTPStatus contributes up to 40 points for a clean 200.
	HTTPStatus int `json:"http_status"`

	// JSPenaltyAvoided contributes 20 points when the page is usable
	// without JavaScript execution.
	JSPenaltyAvoided int `json:"js_penalty_avoided"`

	// HTMLBonus contributes up to 15 points for a declared HTML type.
	HTMLBonus int `json:"html_bonus"`

	// BotProtectionBonus contributes up to 15 points when no
	// bot-protection vendor was detected.
	BotProtectionBonus int `json:"bot_protection_bonus"`

	// RedirectBonus contributes up to 10 points for short chains.
	RedirectBonus int `json:"redirect_bonus"`

	// Total is the sum of the five components, 0–100.
	Total int `json:"total"`
}

// AuditResult pairs a probe outcome with its score and recommendation.
// Results in a completed session are sorted by Score.Total descending.
type AuditResult struct {
	URL            string         `json:"url"`
	Outcome        *ProbeOutcome  `json:"outcome"`
	Score          ScoreBreakdown `json:"score"`
	Recommendation Recommendation `json:"recommendation"`
}
