package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/crossing.report/internal/agg"
	"github.com/banshee-data/crossing.report/internal/gate"
	"github.com/banshee-data/crossing.report/internal/pipeline"
)

func TestRenderCountsChart(t *testing.T) {
	counts := []agg.CrossingCount{
		{GateID: 3, Direction: gate.DirectionLR, Count: 4},
		{GateID: 3, Direction: gate.DirectionRL, Count: 1},
		{GateID: 9, Direction: gate.DirectionLR, Count: 2},
	}

	var buf bytes.Buffer
	require.NoError(t, RenderCountsChart(&buf, "Gate Crossings", counts))

	html := buf.String()
	assert.Contains(t, html, "Gate Crossings")
	assert.Contains(t, html, "gate 3")
	assert.Contains(t, html, "gate 9")
	assert.Contains(t, html, "echarts")

	// Count values survive the grouping into series data.
	assert.Contains(t, html, `"value":4`)
	assert.Contains(t, html, `"value":2`)
}

func TestRenderCountsChartEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderCountsChart(&buf, "Gate Crossings", nil))
	assert.NotZero(t, buf.Len())
}

func TestWriteCalibrationHistograms(t *testing.T) {
	dir := t.TempDir()
	cal := &pipeline.CalibrationResult{
		Quantile:       0.99,
		DistanceSketch: 12.5,
		DtSketch:       30,
		SpeedSketch:    2.1,
		Distances:      []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10},
		Dts:            []float64{10, 20, 30, 40, 50},
		Speeds:         []float64{0.5, 1.0, 1.5, 2.0},
	}

	files, err := WriteCalibrationHistograms(dir, cal)
	require.NoError(t, err)
	require.Len(t, files, 3)
	for _, f := range files {
		info, err := os.Stat(f)
		require.NoError(t, err)
		assert.NotZero(t, info.Size())
	}
	assert.Equal(t, filepath.Join(dir, "calibration_distance.png"), files[0])
}

func TestWriteCalibrationHistogramsSkipsEmptyDims(t *testing.T) {
	dir := t.TempDir()
	cal := &pipeline.CalibrationResult{
		Quantile:  0.99,
		Distances: []float64{1, 2, 3},
	}

	files, err := WriteCalibrationHistograms(dir, cal)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}
