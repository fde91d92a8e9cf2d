// Package gate holds the virtual gate set and the crossing detector.
// Gates are a small fixed set of reference lines; the detector joins
// every surviving micropath against every gate with a brute-force scan.
package gate

import (
	"fmt"

	"github.com/banshee-data/crossing.report/internal/geom"
)

// Gate is a two-point reference line with an integer identifier. Its
// direction vector (last point minus first) fixes the orientation that
// crossing directions are classified against.
type Gate struct {
	ID  int64
	Seg geom.Segment
}

// DirectionVector returns (gx, gy) = last point minus first point.
func (g Gate) DirectionVector() (float64, float64) {
	return g.Seg.Dx(), g.Seg.Dy()
}

// Index is the immutable gate set shared read-only by every worker. It
// is built once on the coordinating side; nothing mutates it afterwards,
// so no locking is needed during detection.
//
// Lookup is a linear scan per segment. With gates numbering in the tens
// to low hundreds the scan beats a spatial index on both constant factor
// and simplicity; the tuning config records the advisory crossover count
// (spatial_index_gate_count) above which an index would pay off.
type Index struct {
	gates []Gate
}

// NewIndex builds an Index from gate definitions. Gates with coincident
// endpoints have no direction vector; they are excluded from the index
// and counted in dropped rather than treated as fatal.
func NewIndex(gates []Gate) (idx *Index, dropped int, err error) {
	seen := make(map[int64]bool, len(gates))
	kept := make([]Gate, 0, len(gates))
	for _, g := range gates {
		if seen[g.ID] {
			return nil, 0, fmt.Errorf("duplicate gate id %d", g.ID)
		}
		seen[g.ID] = true
		if g.Seg.IsDegenerate() {
			dropped++
			continue
		}
		kept = append(kept, g)
	}
	return &Index{gates: kept}, dropped, nil
}

// Len returns the number of usable gates.
func (idx *Index) Len() int { return len(idx.gates) }

// Gates returns the gate slice for iteration. Callers must treat it as
// read-only.
func (idx *Index) Gates() []Gate { return idx.gates }
