package quantile

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Exact computes the true empirical q-quantile of the samples. It copies
// and sorts its input, so the caller's slice is left unchanged. Returns
// false on an empty sample set.
func Exact(q float64, samples []float64) (float64, bool) {
	if len(samples) == 0 {
		return 0, false
	}
	sorted := make([]float64, len(samples))
	copy(sorted, samples)
	sort.Float64s(sorted)
	return stat.Quantile(q, stat.Empirical, sorted, nil), true
}
