package db

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/crossing.report/internal/agg"
	"github.com/banshee-data/crossing.report/internal/gate"
	"github.com/banshee-data/crossing.report/internal/geom"
	"github.com/banshee-data/crossing.report/internal/track"
)

const migrationsDir = "../../migrations"

func newTestDB(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "crossing_test.db")
	database, err := NewDB(path)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.MigrateUp(migrationsDir))
	return database
}

func TestMigrateUpIsIdempotent(t *testing.T) {
	database := newTestDB(t)

	require.NoError(t, database.MigrateUp(migrationsDir))

	version, dirty, err := database.MigrateVersion(migrationsDir)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(1), version)
}

func TestMigrateDown(t *testing.T) {
	database := newTestDB(t)

	require.NoError(t, database.MigrateDown(migrationsDir))

	version, dirty, err := database.MigrateVersion(migrationsDir)
	require.NoError(t, err)
	assert.False(t, dirty)
	assert.Equal(t, uint(0), version)
}

func TestPositionsRoundTrip(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	reports := []track.PositionReport{
		{VesselID: "alpha", X: 0, Y: 0, Timestamp: 100},
		{VesselID: "alpha", X: 10, Y: 0, Timestamp: 110},
		{VesselID: "bravo", X: 5, Y: 5, Timestamp: 105},
	}
	require.NoError(t, database.InsertPositions(ctx, reports))

	got, err := database.LoadPositions(ctx, 0, 0, nil)
	require.NoError(t, err)
	want := []track.PositionReport{
		{VesselID: "alpha", X: 0, Y: 0, Timestamp: 100},
		{VesselID: "alpha", X: 10, Y: 0, Timestamp: 110},
		{VesselID: "bravo", X: 5, Y: 5, Timestamp: 105},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("positions mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadPositionsWindowAndSubset(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, database.InsertPositions(ctx, []track.PositionReport{
		{VesselID: "alpha", X: 0, Y: 0, Timestamp: 100},
		{VesselID: "alpha", X: 1, Y: 0, Timestamp: 200},
		{VesselID: "alpha", X: 2, Y: 0, Timestamp: 300},
		{VesselID: "bravo", X: 3, Y: 0, Timestamp: 200},
	}))

	got, err := database.LoadPositions(ctx, 150, 250, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alpha", got[0].VesselID)
	assert.Equal(t, "bravo", got[1].VesselID)

	got, err = database.LoadPositions(ctx, 0, 0, []string{"bravo"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "bravo", got[0].VesselID)
}

func TestGatesRoundTrip(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	seg := geom.Segment{A: geom.Point{X: 5, Y: -5}, B: geom.Point{X: 5, Y: 5}}
	require.NoError(t, database.InsertGate(ctx, 7, "harbour mouth", seg))
	require.NoError(t, database.InsertGate(ctx, 3, "", geom.Segment{
		A: geom.Point{X: 0, Y: 0}, B: geom.Point{X: 0, Y: 10},
	}))

	gates, err := database.LoadGates(ctx)
	require.NoError(t, err)
	require.Len(t, gates, 2)
	assert.Equal(t, int64(3), gates[0].ID)
	assert.Equal(t, int64(7), gates[1].ID)
	assert.Equal(t, seg, gates[1].Seg)
}

func TestInsertGateDuplicateID(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	seg := geom.Segment{A: geom.Point{X: 0, Y: 0}, B: geom.Point{X: 1, Y: 1}}
	require.NoError(t, database.InsertGate(ctx, 1, "a", seg))
	assert.Error(t, database.InsertGate(ctx, 1, "b", seg))
}

func TestRunLifecycle(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	runID, err := database.BeginRun(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, runID)

	summary := agg.RunSummary{
		InputReports:   100,
		MalformedInput: 2,
		NonMonotonic:   1,
		Crossings:      5,
	}
	require.NoError(t, database.FinishRun(ctx, runID, summary, 42))

	latest, err := database.LatestRunID(ctx)
	require.NoError(t, err)
	assert.Equal(t, runID, latest)
}

func TestLatestRunIDEmpty(t *testing.T) {
	database := newTestDB(t)

	runID, err := database.LatestRunID(context.Background())
	require.NoError(t, err)
	assert.Empty(t, runID)
}

func TestWriteMicropaths(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	runID, err := database.BeginRun(ctx)
	require.NoError(t, err)

	paths := []track.Micropath{
		{
			VesselID: "alpha",
			Seg:      geom.Segment{A: geom.Point{X: 0, Y: 0}, B: geom.Point{X: 10, Y: 0}},
			T1:       100, T2: 110,
			Dx: 10, Dy: 0, Dt: 10, Distance: 10, Speed: 1,
		},
	}
	require.NoError(t, database.WriteMicropaths(ctx, runID, paths))

	var wkt string
	var n int
	require.NoError(t, database.QueryRow(
		`SELECT COUNT(*), shape_wkt FROM micropaths WHERE run_id = ?`, runID).Scan(&n, &wkt))
	assert.Equal(t, 1, n)
	assert.Equal(t, "LINESTRING(0 0,10 0)", wkt)
}

func TestWriteCrossingsRejectsBadDirection(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	runID, err := database.BeginRun(ctx)
	require.NoError(t, err)

	err = database.WriteCrossings(ctx, runID, []gate.Crossing{
		{GateID: 1, VesselID: "alpha", Direction: "sideways", Point: geom.Point{X: 5, Y: 0}},
	})
	assert.Error(t, err)
}

func TestCrossingCountsRoundTrip(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	runID, err := database.BeginRun(ctx)
	require.NoError(t, err)

	counts := []agg.CrossingCount{
		{GateID: 3, Direction: gate.DirectionLR, Count: 4},
		{GateID: 3, Direction: gate.DirectionRL, Count: 1},
		{GateID: 9, Direction: gate.DirectionLR, Count: 2},
	}
	require.NoError(t, database.WriteCrossingCounts(ctx, runID, counts))

	// Rewriting replaces, never accumulates.
	require.NoError(t, database.WriteCrossingCounts(ctx, runID, counts))

	got, err := database.LoadCrossingCounts(ctx, runID)
	require.NoError(t, err)
	if diff := cmp.Diff(counts, got); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestCrossingsPersistence(t *testing.T) {
	database := newTestDB(t)
	ctx := context.Background()

	runID, err := database.BeginRun(ctx)
	require.NoError(t, err)

	crossings := []gate.Crossing{
		{GateID: 7, VesselID: "alpha", Direction: gate.DirectionLR, Point: geom.Point{X: 5, Y: 0}},
		{GateID: 7, VesselID: "bravo", Direction: gate.DirectionRL, Point: geom.Point{X: 5, Y: 1}},
	}
	require.NoError(t, database.WriteCrossings(ctx, runID, crossings))

	var n int
	require.NoError(t, database.QueryRow(
		`SELECT COUNT(*) FROM gate_crossings WHERE run_id = ?`, runID).Scan(&n))
	assert.Equal(t, 2, n)

	var pointWKT string
	require.NoError(t, database.QueryRow(
		`SELECT point_wkt FROM gate_crossings WHERE vessel_id = 'alpha'`).Scan(&pointWKT))
	assert.Equal(t, "POINT(5 0)", pointWKT)
}
