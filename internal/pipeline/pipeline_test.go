package pipeline

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/crossing.report/internal/agg"
	"github.com/banshee-data/crossing.report/internal/config"
	"github.com/banshee-data/crossing.report/internal/gate"
	"github.com/banshee-data/crossing.report/internal/geom"
	"github.com/banshee-data/crossing.report/internal/testutil"
	"github.com/banshee-data/crossing.report/internal/track"
)

func gateAt(id int64, x1, y1, x2, y2 float64) gate.Gate {
	return gate.Gate{ID: id, Seg: geom.Segment{
		A: geom.Point{X: x1, Y: y1},
		B: geom.Point{X: x2, Y: y2},
	}}
}

func TestNewContext(t *testing.T) {
	t.Parallel()

	t.Run("rejects misconfigured thresholds before any work", func(t *testing.T) {
		t.Parallel()
		minD, maxD := 500.0, 100.0
		_, err := NewContext(&config.TuningConfig{MinDistance: &minD, MaxDistance: &maxD}, nil)
		assert.Error(t, err)
	})

	t.Run("nil config uses defaults", func(t *testing.T) {
		t.Parallel()
		pc, err := NewContext(nil, []gate.Gate{gateAt(1, 0, -5, 0, 5)})
		require.NoError(t, err)
		assert.Equal(t, 1, pc.Gates.Len())
	})

	t.Run("degenerate gates counted not fatal", func(t *testing.T) {
		t.Parallel()
		pc, err := NewContext(nil, []gate.Gate{
			gateAt(1, 0, -5, 0, 5),
			gateAt(2, 3, 3, 3, 3),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, pc.DegenerateGates)
	})
}

func TestRunGapDiscard(t *testing.T) {
	t.Parallel()

	// Vessel "A": two candidate segments; the second spans 990 s and is
	// discarded by the dt bound, leaving one surviving micropath.
	pc, err := NewContext(nil, nil)
	require.NoError(t, err)

	res, err := pc.Run(context.Background(), []track.PositionReport{
		{VesselID: "A", X: 0, Y: 0, Timestamp: 0},
		{VesselID: "A", X: 10, Y: 0, Timestamp: 10},
		{VesselID: "A", X: 20, Y: 0, Timestamp: 1000},
	})
	require.NoError(t, err)

	require.Len(t, res.Micropaths, 1)
	m := res.Micropaths[0]
	assert.InDelta(t, 10.0, m.Distance, 1e-9)
	assert.InDelta(t, 10.0, m.Dt, 1e-9)
	assert.InDelta(t, 1.0, m.Speed, 1e-9)
	assert.Equal(t, 1, res.Summary.Noise.TooSlow)
}

func TestRunCrossingDirections(t *testing.T) {
	t.Parallel()

	// One gate drawn (5,-5)->(5,5); vessel "E" crosses eastbound,
	// vessel "W" crosses the same gate westbound.
	pc, err := NewContext(nil, []gate.Gate{gateAt(7, 5, -5, 5, 5)})
	require.NoError(t, err)

	res, err := pc.Run(context.Background(), []track.PositionReport{
		{VesselID: "E", X: 0, Y: 0, Timestamp: 0},
		{VesselID: "E", X: 10, Y: 0, Timestamp: 10},
		{VesselID: "W", X: 10, Y: 0, Timestamp: 0},
		{VesselID: "W", X: 0, Y: 0, Timestamp: 10},
	})
	require.NoError(t, err)

	require.Len(t, res.Crossings, 2)
	for _, c := range res.Crossings {
		assert.InDelta(t, 5.0, c.Point.X, 1e-9)
		assert.InDelta(t, 0.0, c.Point.Y, 1e-9)
	}

	want := []agg.CrossingCount{
		{GateID: 7, Direction: gate.DirectionLR, Count: 1},
		{GateID: 7, Direction: gate.DirectionRL, Count: 1},
	}
	if diff := cmp.Diff(want, res.Counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestRunNoCrossings(t *testing.T) {
	t.Parallel()

	pc, err := NewContext(nil, []gate.Gate{gateAt(1, 100, 100, 100, 200)})
	require.NoError(t, err)

	res, err := pc.Run(context.Background(), []track.PositionReport{
		{VesselID: "A", X: 0, Y: 0, Timestamp: 0},
		{VesselID: "A", X: 10, Y: 0, Timestamp: 10},
	})
	require.NoError(t, err)
	assert.Empty(t, res.Crossings)
	assert.Empty(t, res.Counts)
}

func TestRunManyVesselsParallel(t *testing.T) {
	t.Parallel()

	workers := 8
	pc, err := NewContext(&config.TuningConfig{Workers: &workers},
		[]gate.Gate{gateAt(1, 50, -5, 50, 5)})
	require.NoError(t, err)

	var reports []track.PositionReport
	for i := 0; i < 200; i++ {
		id := string(rune('A'+i%26)) + string(rune('0'+i/26))
		reports = append(reports,
			track.PositionReport{VesselID: id, X: 0, Y: 0, Timestamp: 0},
			track.PositionReport{VesselID: id, X: 100, Y: 0, Timestamp: 100},
		)
	}

	res, err := pc.Run(context.Background(), reports)
	require.NoError(t, err)
	assert.Len(t, res.Crossings, 200)

	total := 0
	for _, cc := range res.Counts {
		total += cc.Count
	}
	assert.Equal(t, len(res.Crossings), total)
}

func TestRunLongTrack(t *testing.T) {
	t.Parallel()

	// A 50-report walk along +X crosses a single vertical gate exactly
	// once; every surviving micropath keeps strictly increasing time.
	pc, err := NewContext(nil, []gate.Gate{
		{ID: 1, Seg: testutil.VerticalGateSegment(105, 5)},
	})
	require.NoError(t, err)

	res, err := pc.Run(context.Background(), testutil.Walk("tanker", 50, 10, 10, 1000))
	require.NoError(t, err)

	require.Len(t, res.Crossings, 1)
	assert.Equal(t, gate.DirectionLR, res.Crossings[0].Direction)
	assert.Len(t, res.Micropaths, 49)
	testutil.AssertMonotonic(t, res.Micropaths)
}

func TestRunSummaryAccounting(t *testing.T) {
	t.Parallel()

	pc, err := NewContext(nil, nil)
	require.NoError(t, err)

	res, err := pc.Run(context.Background(), []track.PositionReport{
		{VesselID: "", X: 0, Y: 0, Timestamp: 0}, // malformed
		{VesselID: "A", X: 0, Y: 0, Timestamp: 5},
		{VesselID: "A", X: 3, Y: 4, Timestamp: 5}, // duplicate ts
		{VesselID: "A", X: 6, Y: 8, Timestamp: 15},
	})
	require.NoError(t, err)

	assert.Equal(t, 4, res.Summary.InputReports)
	assert.Equal(t, 1, res.Summary.MalformedInput)
	assert.Equal(t, 1, res.Summary.NonMonotonic)
	assert.Equal(t, 2, res.Summary.CandidatePaths)
}

func TestCalibrate(t *testing.T) {
	t.Parallel()

	t.Run("empty input reports no estimate", func(t *testing.T) {
		t.Parallel()
		pc, err := NewContext(nil, nil)
		require.NoError(t, err)
		_, ok := pc.Calibrate(nil)
		assert.False(t, ok)
	})

	t.Run("estimates track the exact quantiles", func(t *testing.T) {
		t.Parallel()
		q := 0.9
		pc, err := NewContext(&config.TuningConfig{CalibrationQuantile: &q}, nil)
		require.NoError(t, err)

		var reports []track.PositionReport
		for v := 0; v < 10; v++ {
			id := string(rune('A' + v))
			for i := 0; i < 200; i++ {
				reports = append(reports, track.PositionReport{
					VesselID:  id,
					X:         float64(i * (v + 1)),
					Y:         0,
					Timestamp: int64(i * 10),
				})
			}
		}

		res, ok := pc.Calibrate(reports)
		require.True(t, ok)
		assert.Equal(t, 10*199, res.Samples)
		assert.InEpsilon(t, res.DistanceExact, res.DistanceSketch, 0.05)
		assert.InEpsilon(t, res.DtExact, res.DtSketch, 0.05)
		assert.InEpsilon(t, res.SpeedExact, res.SpeedSketch, 0.05)
	})
}
