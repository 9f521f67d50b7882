package testutil

import (
	"cmp"
	"slices"

	"github.com/cytomine/cbir/distance"
)

// SearchResult is one neighbour in exact or approximate search output.
type SearchResult struct {
	Label    int64
	Distance float32
}

// BruteForceSearch scans every vector with squared L2 and returns the k
// nearest. Equal distances are ordered by label.
func BruteForceSearch(vectors [][]float32, labels []int64, query []float32, k int) []SearchResult {
	all := make([]SearchResult, len(vectors))
	for i, v := range vectors {
		all[i] = SearchResult{Label: labels[i], Distance: distance.SquaredL2(query, v)}
	}
	slices.SortFunc(all, func(a, b SearchResult) int {
		return cmp.Or(cmp.Compare(a.Distance, b.Distance), cmp.Compare(a.Label, b.Label))
	})
	return all[:min(k, len(all))]
}

// ComputeRecall is the share of truth labels that also appear in got.
func ComputeRecall(truth, got []SearchResult) float64 {
	if len(truth) == 0 {
		return 1
	}
	seen := make(map[int64]bool, len(got))
	for _, r := range got {
		seen[r.Label] = true
	}
	hits := 0
	for _, r := range truth {
		if seen[r.Label] {
			hits++
		}
	}
	return float64(hits) / float64(len(truth))
}
