// Package agg aggregates detected crossings into per-gate, per-direction
// counts and assembles the run discard summary.
package agg

import (
	"fmt"
	"sort"
	"strings"

	"github.com/banshee-data/crossing.report/internal/gate"
	"github.com/banshee-data/crossing.report/internal/noise"
	"github.com/banshee-data/crossing.report/internal/track"
)

// CrossingCount is one row of the final output table.
type CrossingCount struct {
	GateID    int64          `json:"gate_id"`
	Direction gate.Direction `json:"direction"`
	Count     int            `json:"count"`
}

// CountCrossings groups crossings by (gate, direction) and counts the
// members of each group. The result is sorted by gate id ascending, then
// direction ascending, so output is deterministic for presentation and
// tests. The table is rebuilt in full on each run; nothing carries over.
func CountCrossings(crossings []gate.Crossing) []CrossingCount {
	type key struct {
		gateID    int64
		direction gate.Direction
	}
	counts := make(map[key]int)
	for _, c := range crossings {
		counts[key{c.GateID, c.Direction}]++
	}

	out := make([]CrossingCount, 0, len(counts))
	for k, n := range counts {
		out = append(out, CrossingCount{GateID: k.gateID, Direction: k.direction, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].GateID != out[j].GateID {
			return out[i].GateID < out[j].GateID
		}
		return out[i].Direction < out[j].Direction
	})
	return out
}

// RunSummary reports how many input records each stage discarded and
// why. It accompanies the final output so data loss is visible.
type RunSummary struct {
	InputReports    int
	MalformedInput  int
	NonMonotonic    int
	CandidatePaths  int
	Noise           noise.Stats
	DegenerateGates int
	Crossings       int
}

// FromStats assembles a RunSummary from the per-stage counters.
func FromStats(seg track.SegmentStats, ns noise.Stats, degenerateGates, crossings int) RunSummary {
	return RunSummary{
		InputReports:    seg.Reports + seg.Malformed,
		MalformedInput:  seg.Malformed,
		NonMonotonic:    seg.NonMonotonic,
		CandidatePaths:  seg.Pairs,
		Noise:           ns,
		DegenerateGates: degenerateGates,
		Crossings:       crossings,
	}
}

// String renders the summary for log output.
func (s RunSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "reports=%d malformed=%d", s.InputReports, s.MalformedInput)
	fmt.Fprintf(&b, " pairs=%d non_monotonic=%d", s.CandidatePaths, s.NonMonotonic)
	fmt.Fprintf(&b, " noise_dropped=%d (short=%d long=%d fast=%d gap=%d)",
		s.Noise.Dropped(), s.Noise.TooShort, s.Noise.TooLong, s.Noise.TooFast, s.Noise.TooSlow)
	fmt.Fprintf(&b, " kept=%d degenerate_gates=%d crossings=%d",
		s.Noise.Kept, s.DegenerateGates, s.Crossings)
	return b.String()
}
