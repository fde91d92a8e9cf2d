// Package track holds the vessel position model and the trajectory
// segmenter: partition reports by vessel, order by time, and emit
// consecutive-pair micropaths annotated with derived kinematics.
package track

import (
	"math"
	"sort"
	"time"

	"github.com/banshee-data/crossing.report/internal/geom"
	"github.com/banshee-data/crossing.report/internal/units"
)

// PositionReport is a single observation of a vessel: planar position
// plus a unix timestamp in whole seconds. Reports are immutable once
// ingested; duplicates (same vessel and timestamp) are possible and are
// not deduplicated here.
type PositionReport struct {
	VesselID  string  `json:"vessel_id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Timestamp int64   `json:"timestamp"`
}

// Valid reports whether the report has the fields detection needs:
// a vessel identifier, finite coordinates and a finite timestamp.
func (r PositionReport) Valid() bool {
	if r.VesselID == "" {
		return false
	}
	return geom.Point{X: r.X, Y: r.Y}.IsFinite()
}

// Micropath is a directed segment between two temporally consecutive
// reports of one vessel, with derived kinematics. Invariant: T2 > T1
// strictly; the segmenter never emits a micropath that violates it.
type Micropath struct {
	VesselID string
	Seg      geom.Segment
	T1       int64
	T2       int64

	// Derived at construction and never mutated.
	Dx       float64
	Dy       float64
	Dt       float64 // seconds
	Distance float64
	Speed    float64 // distance units per second
}

// HourOfDay returns the UTC hour bucket of the segment's start time.
func (m Micropath) HourOfDay() int {
	return time.Unix(m.T1, 0).UTC().Hour()
}

// SpeedKnots converts the derived speed (m/s) to knots for display.
func (m Micropath) SpeedKnots() float64 {
	return units.ConvertSpeed(m.Speed, units.Knots)
}

// newMicropath derives the kinematic attributes for a consecutive report
// pair. Callers must have checked b.Timestamp > a.Timestamp.
func newMicropath(a, b PositionReport) Micropath {
	dx := b.X - a.X
	dy := b.Y - a.Y
	dt := float64(b.Timestamp - a.Timestamp)
	dist := math.Hypot(dx, dy)
	return Micropath{
		VesselID: a.VesselID,
		Seg:      geom.Segment{A: geom.Point{X: a.X, Y: a.Y}, B: geom.Point{X: b.X, Y: b.Y}},
		T1:       a.Timestamp,
		T2:       b.Timestamp,
		Dx:       dx,
		Dy:       dy,
		Dt:       dt,
		Distance: dist,
		Speed:    dist / dt,
	}
}

// SegmentStats counts what the segmenter consumed and dropped.
type SegmentStats struct {
	Reports      int // valid reports considered
	Malformed    int // reports dropped before pairing
	Pairs        int // candidate consecutive pairs (n-1 per vessel)
	NonMonotonic int // pairs dropped for t2 <= t1
	Emitted      int // micropaths emitted
}

// PartitionByVessel groups reports by vessel identifier, dropping
// malformed records and counting them. This is the one grouping boundary
// of the pipeline: all reports for a vessel end up in one slice.
func PartitionByVessel(reports []PositionReport) (map[string][]PositionReport, int) {
	parts := make(map[string][]PositionReport)
	malformed := 0
	for _, r := range reports {
		if !r.Valid() {
			malformed++
			continue
		}
		parts[r.VesselID] = append(parts[r.VesselID], r)
	}
	return parts, malformed
}

// SegmentVessel orders one vessel's reports by timestamp and pairs each
// report with its successor. The sort is stable, so ties between
// duplicate timestamps keep input order; the resulting zero-dt pair is
// then dropped by the strict t2 > t1 check. The last report in the
// partition produces no segment, and a single-report partition yields
// nothing at all.
func SegmentVessel(reports []PositionReport, stats *SegmentStats) []Micropath {
	if stats != nil {
		stats.Reports += len(reports)
	}
	if len(reports) < 2 {
		return nil
	}

	sorted := make([]PositionReport, len(reports))
	copy(sorted, reports)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	out := make([]Micropath, 0, len(sorted)-1)
	for i := 0; i < len(sorted)-1; i++ {
		a, b := sorted[i], sorted[i+1]
		if stats != nil {
			stats.Pairs++
		}
		if b.Timestamp <= a.Timestamp {
			if stats != nil {
				stats.NonMonotonic++
			}
			continue
		}
		out = append(out, newMicropath(a, b))
	}
	if stats != nil {
		stats.Emitted += len(out)
	}
	return out
}

// Segment runs the full segmentation over an unordered report set:
// partition by vessel, then segment each partition. Purely functional
// over its input.
func Segment(reports []PositionReport) ([]Micropath, SegmentStats) {
	var stats SegmentStats
	parts, malformed := PartitionByVessel(reports)
	stats.Malformed = malformed

	// Deterministic vessel order keeps output stable for tests and
	// fixtures; detection downstream does not depend on it.
	vessels := make([]string, 0, len(parts))
	for v := range parts {
		vessels = append(vessels, v)
	}
	sort.Strings(vessels)

	var out []Micropath
	for _, v := range vessels {
		out = append(out, SegmentVessel(parts[v], &stats)...)
	}
	return out, stats
}
