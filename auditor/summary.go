package auditor

import (
	"math"
	"strconv"
	"strings"

	"github.com/pardeepdhingra/urllens/models"
	"github.com/pardeepdhingra/urllens/simhash"
)

// bestEntryPointScore is the minimum total score an accessible result
// needs to be listed as an entry point.
const bestEntryPointScore = 80

// maxBestEntryPoints caps the entry-point list in a summary.
const maxBestEntryPoints = 5

// challengeSimilarity is the maximum Hamming distance at which two body
// samples count as the same challenge template.
const challengeSimilarity = 6

// Summarize derives the aggregate view of a finished batch. results
// must already be sorted by descending total score, as RunBatch
// returns them.
func Summarize(results []models.AuditResult) *models.AuditSummary {
	summary := &models.AuditSummary{
		TotalURLs:               len(results),
		ByStatus:                make(map[string]int),
		RecommendationBreakdown: make(map[models.Recommendation]int),
	}

	totalScore := 0
	for _, r := range results {
		totalScore += r.Score.Total
		if r.Outcome.Accessible {
			summary.AccessibleCount++
		} else {
			summary.BlockedCount++
		}
		summary.ByStatus[strconv.Itoa(r.Outcome.HTTPStatus)]++
		summary.RecommendationBreakdown[r.Recommendation]++

		if len(summary.BestEntryPoints) < maxBestEntryPoints &&
			r.Outcome.Accessible && r.Score.Total >= bestEntryPointScore {
			summary.BestEntryPoints = append(summary.BestEntryPoints, r)
		}
	}

	if len(results) > 0 {
		summary.AverageScore = math.Round(float64(totalScore)/float64(len(results))*10) / 10
	}

	summary.ChallengeClusters = challengeClusters(results)
	return summary
}

// challengeClusters groups blocked or bot-challenged results whose body
// samples fingerprint as near-duplicates. One dominant cluster usually
// means the site serves a uniform block page.
func challengeClusters(results []models.AuditResult) []models.ChallengeCluster {
	var urls []string
	var fingerprints []uint64

	for _, r := range results {
		o := r.Outcome
		if o == nil || (o.Accessible && !o.HasBotSignals()) {
			continue
		}
		if strings.TrimSpace(o.BodySample) == "" {
			continue
		}
		fp := simhash.FingerprintDOM(o.BodySample)
		if fp == 0 {
			fp = simhash.Fingerprint(o.BodySample)
		}
		if fp == 0 {
			continue
		}
		urls = append(urls, o.RequestedURL)
		fingerprints = append(fingerprints, fp)
	}

	if len(urls) < 2 {
		return nil
	}

	var clusters []models.ChallengeCluster
	for _, group := range simhash.Cluster(fingerprints, challengeSimilarity) {
		// A singleton sample is not a pattern.
		if len(group) < 2 {
			continue
		}
		cluster := models.ChallengeCluster{
			Representative: urls[group[0]],
			Size:           len(group),
		}
		for _, i := range group {
			cluster.URLs = append(cluster.URLs, urls[i])
		}
		clusters = append(clusters, cluster)
	}
	return clusters
}
