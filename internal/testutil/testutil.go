// Package testutil provides shared fixtures for pipeline tests.
package testutil

import (
	"testing"

	"github.com/banshee-data/crossing.report/internal/geom"
	"github.com/banshee-data/crossing.report/internal/track"
)

// Walk returns a synthetic track for one vessel: n reports spaced
// stepMeters apart along +X at fixed cadence, starting at startTs.
func Walk(vesselID string, n int, stepMeters float64, cadenceSeconds, startTs int64) []track.PositionReport {
	reports := make([]track.PositionReport, 0, n)
	for i := 0; i < n; i++ {
		reports = append(reports, track.PositionReport{
			VesselID:  vesselID,
			X:         float64(i) * stepMeters,
			Timestamp: startTs + int64(i)*cadenceSeconds,
		})
	}
	return reports
}

// VerticalGateSegment returns a gate of the given half-height standing
// on (x, 0), oriented bottom to top.
func VerticalGateSegment(x, halfHeight float64) geom.Segment {
	return geom.Segment{
		A: geom.Point{X: x, Y: -halfHeight},
		B: geom.Point{X: x, Y: halfHeight},
	}
}

// AssertMonotonic fails the test unless every micropath in paths has
// strictly increasing timestamps.
func AssertMonotonic(t *testing.T, paths []track.Micropath) {
	t.Helper()
	for i, m := range paths {
		if m.T2 <= m.T1 {
			t.Errorf("micropath %d: t2 %d not after t1 %d", i, m.T2, m.T1)
		}
	}
}
