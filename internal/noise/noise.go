// Package noise filters kinematically implausible micropaths: GPS
// jumps, stuck or duplicated timestamps, and long reporting gaps. The
// thresholds are deliberately tolerant; they remove gross outliers
// while preserving normal manoeuvring behaviour.
package noise

import (
	"github.com/banshee-data/crossing.report/internal/config"
	"github.com/banshee-data/crossing.report/internal/track"
)

// Filter applies the three independent noise predicates. Its bounds come
// from the tuning config; validation of the bounds happens at config
// load, so a constructed Filter is always internally consistent.
type Filter struct {
	MinDistance float64
	MaxDistance float64
	MaxSpeed    float64
	MaxDt       float64
}

// Stats counts segments discarded per predicate. A segment failing more
// than one predicate is attributed to the first check that rejected it.
type Stats struct {
	TooShort int // distance < MinDistance (stationary, duplicate fix)
	TooLong  int // distance > MaxDistance (position jump)
	TooFast  int // speed >= MaxSpeed (implied teleport)
	TooSlow  int // dt >= MaxDt (reporting gap)
	Kept     int
}

// Dropped returns the total number of discarded segments.
func (s Stats) Dropped() int {
	return s.TooShort + s.TooLong + s.TooFast + s.TooSlow
}

// NewFilter builds a Filter from the tuning config.
func NewFilter(cfg *config.TuningConfig) *Filter {
	return &Filter{
		MinDistance: cfg.GetMinDistance(),
		MaxDistance: cfg.GetMaxDistance(),
		MaxSpeed:    cfg.GetMaxSpeed(),
		MaxDt:       cfg.GetMaxDt(),
	}
}

// Keep reports whether a single micropath passes all predicates.
func (f *Filter) Keep(m track.Micropath) bool {
	return f.classify(m) == keepSegment
}

type verdict int

const (
	keepSegment verdict = iota
	dropShort
	dropLong
	dropFast
	dropSlow
)

func (f *Filter) classify(m track.Micropath) verdict {
	switch {
	case m.Distance < f.MinDistance:
		return dropShort
	case m.Distance > f.MaxDistance:
		return dropLong
	case m.Speed >= f.MaxSpeed:
		return dropFast
	case m.Dt >= f.MaxDt:
		return dropSlow
	default:
		return keepSegment
	}
}

// Apply returns the subset of paths passing all predicates, recording
// per-reason discard counts into stats (which may be nil). The predicates
// are pure, so applying the filter to its own output is a no-op.
func (f *Filter) Apply(paths []track.Micropath, stats *Stats) []track.Micropath {
	out := make([]track.Micropath, 0, len(paths))
	for _, m := range paths {
		switch f.classify(m) {
		case keepSegment:
			out = append(out, m)
			if stats != nil {
				stats.Kept++
			}
		case dropShort:
			if stats != nil {
				stats.TooShort++
			}
		case dropLong:
			if stats != nil {
				stats.TooLong++
			}
		case dropFast:
			if stats != nil {
				stats.TooFast++
			}
		case dropSlow:
			if stats != nil {
				stats.TooSlow++
			}
		}
	}
	return out
}
