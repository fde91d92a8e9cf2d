package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptrFloat64(v float64) *float64 { return &v }
func ptrInt(v int) *int             { return &v }

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tuning.json")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestDefaults(t *testing.T) {
	t.Parallel()

	cfg := EmptyTuningConfig()
	assert.Equal(t, 1.0, cfg.GetMinDistance())
	assert.Equal(t, 1500.0, cfg.GetMaxDistance())
	assert.Equal(t, 25.0, cfg.GetMaxSpeed())
	assert.Equal(t, 130.0, cfg.GetMaxDt())
	assert.Equal(t, 4, cfg.GetWorkers())
	assert.Equal(t, 0.99, cfg.GetCalibrationQuantile())
}

func TestLoadTuningConfig(t *testing.T) {
	t.Parallel()

	t.Run("partial config keeps defaults", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, `{"max_speed": 30}`)
		cfg, err := LoadTuningConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 30.0, cfg.GetMaxSpeed())
		assert.Equal(t, 1500.0, cfg.GetMaxDistance())
	})

	t.Run("rejects non-json extension", func(t *testing.T) {
		t.Parallel()
		_, err := LoadTuningConfig("tuning.yaml")
		assert.Error(t, err)
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, `{`)
		_, err := LoadTuningConfig(path)
		assert.Error(t, err)
	})

	t.Run("rejects inverted distance band", func(t *testing.T) {
		t.Parallel()
		path := writeConfig(t, `{"min_distance": 2000, "max_distance": 1000}`)
		_, err := LoadTuningConfig(path)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds max_distance")
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		cfg     TuningConfig
		wantErr bool
	}{
		{"empty is valid", TuningConfig{}, false},
		{"negative min_distance", TuningConfig{MinDistance: ptrFloat64(-1)}, true},
		{"negative max_distance", TuningConfig{MaxDistance: ptrFloat64(-5)}, true},
		{"zero max_speed", TuningConfig{MaxSpeed: ptrFloat64(0)}, true},
		{"zero max_dt", TuningConfig{MaxDt: ptrFloat64(0)}, true},
		{"zero workers", TuningConfig{Workers: ptrInt(0)}, true},
		{"quantile out of range", TuningConfig{CalibrationQuantile: ptrFloat64(1.0)}, true},
		{"sane overrides", TuningConfig{
			MinDistance: ptrFloat64(2),
			MaxDistance: ptrFloat64(800),
			MaxSpeed:    ptrFloat64(20),
			MaxDt:       ptrFloat64(60),
			Workers:     ptrInt(8),
		}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
