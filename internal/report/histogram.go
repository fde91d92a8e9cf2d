package report

import (
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/crossing.report/internal/pipeline"
)

const histogramBins = 40

// WriteCalibrationHistograms saves one histogram PNG per kinematic
// dimension of a calibration result into outputDir. The estimated
// quantile value goes into each plot title so the operator can eyeball
// where the threshold would land. Returns the written file paths.
func WriteCalibrationHistograms(outputDir string, cal *pipeline.CalibrationResult) ([]string, error) {
	dims := []struct {
		name    string
		unit    string
		samples []float64
		est     float64
	}{
		{"distance", "m", cal.Distances, cal.DistanceSketch},
		{"dt", "s", cal.Dts, cal.DtSketch},
		{"speed", "m/s", cal.Speeds, cal.SpeedSketch},
	}

	var files []string
	for _, d := range dims {
		if len(d.samples) == 0 {
			continue
		}
		file := filepath.Join(outputDir, fmt.Sprintf("calibration_%s.png", d.name))
		if err := writeHistogram(file, d.name, d.unit, d.samples, cal.Quantile, d.est); err != nil {
			return files, err
		}
		files = append(files, file)
	}
	return files, nil
}

func writeHistogram(file, name, unit string, samples []float64, q, est float64) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Micropath %s (p%.0f = %.2f %s)", name, q*100, est, unit)
	p.X.Label.Text = fmt.Sprintf("%s (%s)", name, unit)
	p.Y.Label.Text = "Count"

	values := make(plotter.Values, len(samples))
	copy(values, samples)

	h, err := plotter.NewHist(values, histogramBins)
	if err != nil {
		return fmt.Errorf("failed to build %s histogram: %w", name, err)
	}
	p.Add(h)

	if err := p.Save(10*vg.Inch, 5*vg.Inch, file); err != nil {
		return fmt.Errorf("failed to save %s histogram: %w", name, err)
	}
	return nil
}
