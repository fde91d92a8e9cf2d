// Package db is the sqlite-backed geospatial store: vessel positions
// and gate definitions in, micropath features, crossings and crossing
// counts out. The schema lives in migrations/ and is applied with
// golang-migrate.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tailscale/tailsql/server/tailsql"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/crossing.report/internal/agg"
	"github.com/banshee-data/crossing.report/internal/gate"
	"github.com/banshee-data/crossing.report/internal/geom"
	"github.com/banshee-data/crossing.report/internal/track"
)

type DB struct {
	*sql.DB
	path string
}

// NewDB opens (or creates) the sqlite database at path. The schema is
// not applied here; run the migrate command first.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	return &DB{DB: db, path: path}, nil
}

// InsertPositions bulk-inserts position reports inside one transaction.
func (db *DB) InsertPositions(ctx context.Context, reports []track.PositionReport) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO vessel_positions (vessel_id, x, y, ts) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range reports {
		if _, err := stmt.ExecContext(ctx, r.VesselID, r.X, r.Y, r.Timestamp); err != nil {
			return fmt.Errorf("failed to insert position for %s: %w", r.VesselID, err)
		}
	}
	return tx.Commit()
}

// LoadPositions reads position reports, optionally bounded by a time
// window [startTs, endTs] (pass endTs = 0 for no upper bound) and an
// optional vessel subset.
func (db *DB) LoadPositions(ctx context.Context, startTs, endTs int64, vessels []string) ([]track.PositionReport, error) {
	query := `SELECT vessel_id, x, y, ts FROM vessel_positions WHERE ts >= ?`
	args := []interface{}{startTs}
	if endTs > 0 {
		query += ` AND ts <= ?`
		args = append(args, endTs)
	}
	if len(vessels) > 0 {
		query += ` AND vessel_id IN (?` + repeatPlaceholder(len(vessels)-1) + `)`
		for _, v := range vessels {
			args = append(args, v)
		}
	}
	query += ` ORDER BY vessel_id, ts`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load positions: %w", err)
	}
	defer rows.Close()

	var out []track.PositionReport
	for rows.Next() {
		var r track.PositionReport
		if err := rows.Scan(&r.VesselID, &r.X, &r.Y, &r.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func repeatPlaceholder(n int) string {
	s := ""
	for i := 0; i < n; i++ {
		s += ", ?"
	}
	return s
}

// InsertGate stores one gate definition.
func (db *DB) InsertGate(ctx context.Context, id int64, name string, s geom.Segment) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO gates (gate_id, name, x1, y1, x2, y2) VALUES (?, ?, ?, ?, ?, ?)`,
		id, name, s.A.X, s.A.Y, s.B.X, s.B.Y)
	if err != nil {
		return fmt.Errorf("failed to insert gate %d: %w", id, err)
	}
	return nil
}

// LoadGates reads all gate definitions ordered by id.
func (db *DB) LoadGates(ctx context.Context) ([]gate.Gate, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT gate_id, x1, y1, x2, y2 FROM gates ORDER BY gate_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to load gates: %w", err)
	}
	defer rows.Close()

	var out []gate.Gate
	for rows.Next() {
		var g gate.Gate
		if err := rows.Scan(&g.ID, &g.Seg.A.X, &g.Seg.A.Y, &g.Seg.B.X, &g.Seg.B.Y); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// BeginRun records the start of a pipeline run and returns its id.
func (db *DB) BeginRun(ctx context.Context) (string, error) {
	runID := uuid.New().String()
	_, err := db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (run_id, started_unix) VALUES (?, ?)`,
		runID, float64(time.Now().UnixNano())/1e9)
	if err != nil {
		return "", fmt.Errorf("failed to record run start: %w", err)
	}
	return runID, nil
}

// FinishRun closes out a run row with the discard summary.
func (db *DB) FinishRun(ctx context.Context, runID string, s agg.RunSummary, micropaths int) error {
	_, err := db.ExecContext(ctx, `
		UPDATE pipeline_runs
		SET finished_unix = ?, input_reports = ?, malformed_reports = ?,
		    non_monotonic = ?, noise_dropped = ?, micropaths = ?, crossings = ?
		WHERE run_id = ?`,
		float64(time.Now().UnixNano())/1e9,
		s.InputReports, s.MalformedInput, s.NonMonotonic,
		s.Noise.Dropped(), micropaths, s.Crossings, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	return nil
}

// WriteMicropaths persists the surviving micropath features, including
// the WKT and WKB line encodings used by downstream GIS consumers.
func (db *DB) WriteMicropaths(ctx context.Context, runID string, paths []track.Micropath) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO micropaths
		(run_id, vessel_id, hour_of_day, t1, t2, distance_m, dt_s, speed_mps, shape_wkt, shape_wkb)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range paths {
		wkb, err := m.Seg.WKB()
		if err != nil {
			return fmt.Errorf("failed to encode micropath shape: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, runID, m.VesselID, m.HourOfDay(),
			m.T1, m.T2, m.Distance, m.Dt, m.Speed, m.Seg.WKT(), wkb); err != nil {
			return fmt.Errorf("failed to insert micropath for %s: %w", m.VesselID, err)
		}
	}
	return tx.Commit()
}

// WriteCrossings persists detected crossings as point features.
func (db *DB) WriteCrossings(ctx context.Context, runID string, crossings []gate.Crossing) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO gate_crossings (run_id, gate_id, vessel_id, direction, x, y, point_wkt)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range crossings {
		if _, err := stmt.ExecContext(ctx, runID, c.GateID, c.VesselID,
			string(c.Direction), c.Point.X, c.Point.Y, c.Point.WKT()); err != nil {
			return fmt.Errorf("failed to insert crossing at gate %d: %w", c.GateID, err)
		}
	}
	return tx.Commit()
}

// WriteCrossingCounts replaces the count table contents for a run. The
// table is rebuilt in full per run, never incrementally updated.
func (db *DB) WriteCrossingCounts(ctx context.Context, runID string, counts []agg.CrossingCount) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM crossing_counts WHERE run_id = ?`, runID); err != nil {
		return err
	}
	for _, cc := range counts {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO crossing_counts (run_id, gate_id, direction, n)
			VALUES (?, ?, ?, ?)`,
			runID, cc.GateID, string(cc.Direction), cc.Count); err != nil {
			return fmt.Errorf("failed to insert count for gate %d: %w", cc.GateID, err)
		}
	}
	return tx.Commit()
}

// LoadCrossings reads persisted crossings for a run in insertion order.
func (db *DB) LoadCrossings(ctx context.Context, runID string) ([]gate.Crossing, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT gate_id, vessel_id, direction, x, y FROM gate_crossings
		WHERE run_id = ? ORDER BY crossing_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load crossings: %w", err)
	}
	defer rows.Close()

	var out []gate.Crossing
	for rows.Next() {
		var c gate.Crossing
		var dir string
		if err := rows.Scan(&c.GateID, &c.VesselID, &dir, &c.Point.X, &c.Point.Y); err != nil {
			return nil, err
		}
		c.Direction = gate.Direction(dir)
		out = append(out, c)
	}
	return out, rows.Err()
}

// LoadCrossingCounts reads the count table for a run, sorted by gate id
// then direction.
func (db *DB) LoadCrossingCounts(ctx context.Context, runID string) ([]agg.CrossingCount, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT gate_id, direction, n FROM crossing_counts
		WHERE run_id = ? ORDER BY gate_id, direction`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load crossing counts: %w", err)
	}
	defer rows.Close()

	var out []agg.CrossingCount
	for rows.Next() {
		var cc agg.CrossingCount
		var dir string
		if err := rows.Scan(&cc.GateID, &dir, &cc.Count); err != nil {
			return nil, err
		}
		cc.Direction = gate.Direction(dir)
		out = append(out, cc)
	}
	return out, rows.Err()
}

// LatestRunID returns the most recently started run, or "" when the
// store has no runs yet.
func (db *DB) LatestRunID(ctx context.Context) (string, error) {
	var runID sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT run_id FROM pipeline_runs ORDER BY started_unix DESC LIMIT 1`).Scan(&runID)
	if err == sql.ErrNoRows || !runID.Valid {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return runID.String, nil
}

// AttachAdminRoutes mounts the tailsql read-only SQL console on the
// debug mux, pointed at this database.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) {
	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		log.Fatalf("failed to create tailsql server: %v", err)
	}
	tsql.SetDB("sqlite://"+db.path, db.DB, &tailsql.DBOptions{
		Label: "Crossing DB",
	})
	mux.Handle("/debug/tailsql/", tsql.NewMux())
}
