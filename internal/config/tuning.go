package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// TuningConfig represents the tunable parameters of the crossing
// pipeline. All fields are pointers so that a partial JSON file only
// overrides what it names; the Get* accessors supply defaults for
// everything else.
//
// The noise thresholds are domain-tuned, not structural: the defaults
// are roughly double the 99th-percentile values observed on real vessel
// data (about 12.3 m/s speed and 778.6 m segment length at P99, rounded
// up to 25 and 1500).
type TuningConfig struct {
	// Noise filter bounds
	MinDistance *float64 `json:"min_distance,omitempty"` // metres
	MaxDistance *float64 `json:"max_distance,omitempty"` // metres
	MaxSpeed    *float64 `json:"max_speed,omitempty"`    // metres/second
	MaxDt       *float64 `json:"max_dt,omitempty"`       // seconds

	// Pipeline params
	Workers *int `json:"workers,omitempty"`

	// Gate join params. The detector always does a brute-force linear
	// scan; this records the gate count above which a spatial index
	// would be worth building. Advisory only.
	SpatialIndexGateCount *int `json:"spatial_index_gate_count,omitempty"`

	// Calibration params
	CalibrationQuantile *float64 `json:"calibration_quantile,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the file retain their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that the configuration values are usable. Inverted or
// negative noise bounds would silently discard all (or no) data, so they
// are rejected here, before any computation starts.
func (c *TuningConfig) Validate() error {
	if c.MinDistance != nil && *c.MinDistance < 0 {
		return fmt.Errorf("min_distance must be non-negative, got %f", *c.MinDistance)
	}
	if c.MaxDistance != nil && *c.MaxDistance < 0 {
		return fmt.Errorf("max_distance must be non-negative, got %f", *c.MaxDistance)
	}
	if c.GetMinDistance() > c.GetMaxDistance() {
		return fmt.Errorf("min_distance %f exceeds max_distance %f",
			c.GetMinDistance(), c.GetMaxDistance())
	}
	if c.MaxSpeed != nil && *c.MaxSpeed <= 0 {
		return fmt.Errorf("max_speed must be positive, got %f", *c.MaxSpeed)
	}
	if c.MaxDt != nil && *c.MaxDt <= 0 {
		return fmt.Errorf("max_dt must be positive, got %f", *c.MaxDt)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	if c.CalibrationQuantile != nil {
		if q := *c.CalibrationQuantile; q <= 0 || q >= 1 {
			return fmt.Errorf("calibration_quantile must be in (0,1), got %f", q)
		}
	}
	return nil
}

// GetMinDistance returns the min_distance value or the default.
func (c *TuningConfig) GetMinDistance() float64 {
	if c.MinDistance == nil {
		return 1.0
	}
	return *c.MinDistance
}

// GetMaxDistance returns the max_distance value or the default.
func (c *TuningConfig) GetMaxDistance() float64 {
	if c.MaxDistance == nil {
		return 1500.0
	}
	return *c.MaxDistance
}

// GetMaxSpeed returns the max_speed value or the default.
func (c *TuningConfig) GetMaxSpeed() float64 {
	if c.MaxSpeed == nil {
		return 25.0
	}
	return *c.MaxSpeed
}

// GetMaxDt returns the max_dt value or the default.
func (c *TuningConfig) GetMaxDt() float64 {
	if c.MaxDt == nil {
		return 130.0
	}
	return *c.MaxDt
}

// GetWorkers returns the worker count or the default.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 4
	}
	return *c.Workers
}

// GetSpatialIndexGateCount returns the advisory gate-count crossover.
func (c *TuningConfig) GetSpatialIndexGateCount() int {
	if c.SpatialIndexGateCount == nil {
		return 500
	}
	return *c.SpatialIndexGateCount
}

// GetCalibrationQuantile returns the calibration quantile or the default.
func (c *TuningConfig) GetCalibrationQuantile() float64 {
	if c.CalibrationQuantile == nil {
		return 0.99
	}
	return *c.CalibrationQuantile
}
