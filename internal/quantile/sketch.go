// Package quantile estimates distribution quantiles for noise-threshold
// calibration. The Sketch is a single-pass, mergeable summary so that
// per-partition summaries combine into a global estimate without
// collecting all samples in one place; Exact computes the true quantile
// from a full sample slice for calibration output and cross-checking.
package quantile

import "math"

// gamma controls the relative accuracy of the sketch. Bucket i covers
// (gamma^(i-1), gamma^i]; with gamma = 1.02 the midpoint estimate is
// within about 1% of the true value.
const gamma = 1.02

// Sketch is a log-bucketed histogram over positive samples. Merging two
// sketches adds their bucket counts, which is associative and
// commutative, so partial sketches from parallel partitions can be
// combined in any order.
type Sketch struct {
	buckets map[int]uint64
	zeros   uint64 // samples <= 0 (counted below every positive bucket)
	count   uint64
}

// NewSketch returns an empty sketch.
func NewSketch() *Sketch {
	return &Sketch{buckets: make(map[int]uint64)}
}

// Add records one sample. Non-finite samples are ignored.
func (s *Sketch) Add(v float64) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return
	}
	if v <= 0 {
		s.zeros++
	} else {
		s.buckets[bucketIndex(v)]++
	}
	s.count++
}

// Count returns the number of samples recorded.
func (s *Sketch) Count() uint64 { return s.count }

// Merge folds other into s. other is left unchanged.
func (s *Sketch) Merge(other *Sketch) {
	if other == nil {
		return
	}
	for i, n := range other.buckets {
		s.buckets[i] += n
	}
	s.zeros += other.zeros
	s.count += other.count
}

// Quantile returns the approximate q-quantile (q in (0,1)) and true, or
// 0 and false when the sketch is empty. Callers must treat the false
// case as "no estimate" and fall back to configured thresholds.
func (s *Sketch) Quantile(q float64) (float64, bool) {
	if s.count == 0 {
		return 0, false
	}
	if q <= 0 {
		q = math.SmallestNonzeroFloat64
	}
	if q > 1 {
		q = 1
	}

	rank := uint64(math.Ceil(q * float64(s.count)))
	if rank <= s.zeros {
		return 0, true
	}

	// Walk buckets in ascending index order.
	lo, hi := 0, 0
	first := true
	for i := range s.buckets {
		if first {
			lo, hi = i, i
			first = false
			continue
		}
		if i < lo {
			lo = i
		}
		if i > hi {
			hi = i
		}
	}

	seen := s.zeros
	for i := lo; i <= hi; i++ {
		n, ok := s.buckets[i]
		if !ok {
			continue
		}
		seen += n
		if seen >= rank {
			return bucketValue(i), true
		}
	}
	// Rounding fell off the end; return the top bucket's value.
	return bucketValue(hi), true
}

func bucketIndex(v float64) int {
	return int(math.Ceil(math.Log(v) / math.Log(gamma)))
}

// bucketValue is the geometric midpoint of bucket i, minimizing the
// relative error of the estimate.
func bucketValue(i int) float64 {
	return 2 * math.Pow(gamma, float64(i)) / (1 + gamma)
}
