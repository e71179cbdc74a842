package simhash

// Cluster greedily groups fingerprints by similarity: each fingerprint
// joins the first cluster whose representative (its first member) is
// within threshold, otherwise it starts a new cluster. Returned clusters
// hold indexes into the input slice, in input order.
//
// Zero fingerprints (empty inputs) all land in one cluster; callers that
// care should filter empties out first.
func Cluster(fingerprints []uint64, threshold int) [][]int {
	var clusters [][]int
	var reps []uint64

	for i, fp := range fingerprints {
		placed := false
		for c, rep := range reps {
			if Similar(fp, rep, threshold) {
				clusters[c] = append(clusters[c], i)
				placed = true
				break
			}
		}
		if !placed {
			clusters = append(clusters, []int{i})
			reps = append(reps, fp)
		}
	}
	return clusters
}
