// Package scoring converts probe outcomes into weighted scrapability
// scores and discrete recommendations. Everything here is a pure
// function of its inputs; identical outcomes always score identically.
package scoring

import (
	"strings"

	"github.com/pardeepdhingra/urllens/models"
)

// Component weights. The exact values are part of the public contract —
// downstream consumers compare scores across runs, so they must not be
// re-derived or "improved".
const (
	maxStatusPoints   = 40
	maxJSPoints       = 20
	maxHTMLPoints     = 15
	maxBotPoints      = 15
	maxRedirectPoints = 10
)

// Recommendation thresholds, checked in Recommend in this order.
const (
	bestEntryThreshold = 85
	goodThreshold      = 70
	moderateThreshold  = 50
)

// Score computes the full breakdown for one outcome.
func Score(o *models.ProbeOutcome) models.ScoreBreakdown {
	b := models.ScoreBreakdown{
		HTTPStatus:         statusPoints(o.HTTPStatus),
		JSPenaltyAvoided:   jsPoints(o.JSRequired),
		HTMLBonus:          htmlPoints(o.ContentType),
		BotProtectionBonus: botPoints(len(o.BotSignals)),
		RedirectBonus:      redirectPoints(len(o.RedirectChain)),
	}
	b.Total = b.HTTPStatus + b.JSPenaltyAvoided + b.HTMLBonus + b.BotProtectionBonus + b.RedirectBonus
	return b
}

// Recommend buckets an outcome. Precedence is fixed: inaccessibility
// dominates everything; then the score thresholds; a detected
// bot-protection vendor only forces "blocked" for scores below the
// moderate threshold.
func Recommend(o *models.ProbeOutcome, total int) models.Recommendation {
	switch {
	case !o.Accessible:
		return models.RecommendationBlocked
	case total >= bestEntryThreshold:
		return models.RecommendationBestEntryPoint
	case total >= goodThreshold:
		return models.RecommendationGood
	case total >= moderateThreshold:
		return models.RecommendationModerate
	case o.HasBotSignals():
		return models.RecommendationBlocked
	default:
		return models.RecommendationChallenging
	}
}

// Evaluate scores an outcome and buckets it in one call.
func Evaluate(o *models.ProbeOutcome) (models.ScoreBreakdown, models.Recommendation) {
	b := Score(o)
	return b, Recommend(o, b.Total)
}

// statusPoints: clean 200 is worth the most; 403/429 get a sliver
// because they often mean "blocked for you", not "broken".
func statusPoints(status int) int {
	switch {
	case status == 200:
		return maxStatusPoints
	case status >= 200 && status < 300:
		return 30
	case status >= 300 && status < 400:
		return 20
	case status == 403 || status == 429:
		return 5
	default:
		return 0
	}
}

func jsPoints(jsRequired bool) int {
	if jsRequired {
		return 0
	}
	return maxJSPoints
}

func htmlPoints(contentType string) int {
	switch {
	case contentType == "":
		return 0
	case isHTMLContentType(contentType):
		return maxHTMLPoints
	default:
		// Any declared type beats none at all.
		return 5
	}
}

func botPoints(signalCount int) int {
	switch signalCount {
	case 0:
		return maxBotPoints
	case 1:
		return 5
	default:
		return 0
	}
}

func redirectPoints(hops int) int {
	switch {
	case hops == 0:
		return maxRedirectPoints
	case hops <= 2:
		return 8
	case hops <= 4:
		return 4
	default:
		return 0
	}
}

func isHTMLContentType(ct string) bool {
	ct = strings.ToLower(ct)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml+xml")
}
