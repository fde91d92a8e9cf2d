// Package pipeline orchestrates the batch crossing computation: segment
// per-vessel trajectories, filter noise, detect gate crossings against
// the shared gate index, and aggregate counts. It owns no domain logic;
// it wires the stage packages together and manages the worker fan-out.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/banshee-data/crossing.report/internal/agg"
	"github.com/banshee-data/crossing.report/internal/config"
	"github.com/banshee-data/crossing.report/internal/gate"
	"github.com/banshee-data/crossing.report/internal/noise"
	"github.com/banshee-data/crossing.report/internal/quantile"
	"github.com/banshee-data/crossing.report/internal/track"
)

// Context carries everything a run needs, built once at pipeline start
// and torn down at its end. There is no ambient global state: the gate
// index is the single piece of shared (immutable) data handed to every
// worker.
type Context struct {
	Cfg    *config.TuningConfig
	Gates  *gate.Index
	Filter *noise.Filter

	// DegenerateGates is the number of gate definitions excluded while
	// building the index; carried into the run summary.
	DegenerateGates int
}

// NewContext validates the config, builds the noise filter and the gate
// index, and returns a ready run context. Threshold misconfiguration is
// surfaced here, before any computation starts.
func NewContext(cfg *config.TuningConfig, gates []gate.Gate) (*Context, error) {
	if cfg == nil {
		cfg = config.EmptyTuningConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("refusing to start pipeline: %w", err)
	}
	idx, dropped, err := gate.NewIndex(gates)
	if err != nil {
		return nil, fmt.Errorf("building gate index: %w", err)
	}
	if dropped > 0 {
		opsf("excluded %d degenerate gate(s) from the index", dropped)
	}
	if idx.Len() > cfg.GetSpatialIndexGateCount() {
		diagf("gate count %d exceeds spatial_index_gate_count %d; the linear scan may no longer be the right join",
			idx.Len(), cfg.GetSpatialIndexGateCount())
	}
	return &Context{
		Cfg:             cfg,
		Gates:           idx,
		Filter:          noise.NewFilter(cfg),
		DegenerateGates: dropped,
	}, nil
}

// Result is the output of one pipeline run.
type Result struct {
	Micropaths []track.Micropath // post-filter segments, feature output
	Crossings  []gate.Crossing
	Counts     []agg.CrossingCount
	Summary    agg.RunSummary
}

// vesselResult is what one worker produces for one vessel partition.
type vesselResult struct {
	paths     []track.Micropath
	crossings []gate.Crossing
	segStats  track.SegmentStats
	noise     noise.Stats
}

// Run executes the full pipeline over a report set. Work is partitioned
// by vessel: each partition is segmented, filtered and joined against
// the gate index independently on a bounded worker pool, then results
// fan in for aggregation. The two fan points here are the only
// synchronization in the pipeline.
func (pc *Context) Run(ctx context.Context, reports []track.PositionReport) (*Result, error) {
	parts, malformed := track.PartitionByVessel(reports)
	diagf("run: %d reports, %d vessels, %d gates, %d workers",
		len(reports), len(parts), pc.Gates.Len(), pc.Cfg.GetWorkers())

	vessels := make([]string, 0, len(parts))
	for v := range parts {
		vessels = append(vessels, v)
	}
	sort.Strings(vessels)

	work := make(chan string)
	results := make(chan vesselResult)

	var wg sync.WaitGroup
	for i := 0; i < pc.Cfg.GetWorkers(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for v := range work {
				results <- pc.runVessel(parts[v])
			}
		}()
	}

	go func() {
		defer close(work)
		for _, v := range vessels {
			select {
			case work <- v:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	res := &Result{}
	var segStats track.SegmentStats
	var noiseStats noise.Stats
	for vr := range results {
		res.Micropaths = append(res.Micropaths, vr.paths...)
		res.Crossings = append(res.Crossings, vr.crossings...)
		segStats.Reports += vr.segStats.Reports
		segStats.Pairs += vr.segStats.Pairs
		segStats.NonMonotonic += vr.segStats.NonMonotonic
		segStats.Emitted += vr.segStats.Emitted
		noiseStats.TooShort += vr.noise.TooShort
		noiseStats.TooLong += vr.noise.TooLong
		noiseStats.TooFast += vr.noise.TooFast
		noiseStats.TooSlow += vr.noise.TooSlow
		noiseStats.Kept += vr.noise.Kept
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	segStats.Malformed = malformed
	res.Counts = agg.CountCrossings(res.Crossings)
	res.Summary = agg.FromStats(segStats, noiseStats, pc.DegenerateGates, len(res.Crossings))
	opsf("run complete: %s", res.Summary)
	return res, nil
}

// runVessel performs segment, filter and detect for one vessel
// partition. The gate index is read-only shared state; everything else
// here is local to the call.
func (pc *Context) runVessel(reports []track.PositionReport) vesselResult {
	var vr vesselResult
	candidates := track.SegmentVessel(reports, &vr.segStats)
	vr.paths = pc.Filter.Apply(candidates, &vr.noise)
	vr.crossings = gate.Detect(pc.Gates, vr.paths)
	return vr
}

// CalibrationResult holds the advisory quantile estimates computed over
// pre-filter segment kinematics. Estimates are inspected and hand-tuned
// into the fixed thresholds; the pipeline never applies them directly.
type CalibrationResult struct {
	Quantile float64

	DistanceSketch float64
	DtSketch       float64
	SpeedSketch    float64

	DistanceExact float64
	DtExact       float64
	SpeedExact    float64

	Samples int

	// Distance/Dt/Speed sample slices retained for histogram plotting.
	Distances []float64
	Dts       []float64
	Speeds    []float64
}

// Calibrate segments the reports (without noise filtering) and
// estimates the configured quantile of the distance, elapsed-time and
// speed distributions, via both the mergeable sketch and the exact
// reference. Each vessel partition feeds its own sketches, merged at the
// end the way a distributed run would combine partial summaries.
// Returns ok=false on an empty segment set; callers then keep the
// configured fixed thresholds.
func (pc *Context) Calibrate(reports []track.PositionReport) (*CalibrationResult, bool) {
	parts, _ := track.PartitionByVessel(reports)

	distSketch := quantile.NewSketch()
	dtSketch := quantile.NewSketch()
	speedSketch := quantile.NewSketch()

	res := &CalibrationResult{Quantile: pc.Cfg.GetCalibrationQuantile()}
	for _, part := range parts {
		pd := quantile.NewSketch()
		pt := quantile.NewSketch()
		ps := quantile.NewSketch()
		for _, m := range track.SegmentVessel(part, nil) {
			pd.Add(m.Distance)
			pt.Add(m.Dt)
			ps.Add(m.Speed)
			res.Distances = append(res.Distances, m.Distance)
			res.Dts = append(res.Dts, m.Dt)
			res.Speeds = append(res.Speeds, m.Speed)
			res.Samples++
		}
		distSketch.Merge(pd)
		dtSketch.Merge(pt)
		speedSketch.Merge(ps)
	}

	q := res.Quantile
	var ok bool
	if res.DistanceSketch, ok = distSketch.Quantile(q); !ok {
		opsf("calibration unavailable: no segments to sample")
		return nil, false
	}
	res.DtSketch, _ = dtSketch.Quantile(q)
	res.SpeedSketch, _ = speedSketch.Quantile(q)
	res.DistanceExact, _ = quantile.Exact(q, res.Distances)
	res.DtExact, _ = quantile.Exact(q, res.Dts)
	res.SpeedExact, _ = quantile.Exact(q, res.Speeds)

	diagf("calibration P%.0f over %d segments: distance %.1f (exact %.1f), dt %.1f (exact %.1f), speed %.2f (exact %.2f)",
		q*100, res.Samples,
		res.DistanceSketch, res.DistanceExact,
		res.DtSketch, res.DtExact,
		res.SpeedSketch, res.SpeedExact)
	return res, true
}
