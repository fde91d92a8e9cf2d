package gate

import (
	"github.com/banshee-data/crossing.report/internal/geom"
	"github.com/banshee-data/crossing.report/internal/track"
)

// Direction is the travel direction of a crossing relative to the
// gate's drawn orientation.
type Direction string

const (
	// DirectionLR means the segment crosses left-to-right relative to
	// the gate's direction vector (cross product >= 0).
	DirectionLR Direction = "LR"
	// DirectionRL means right-to-left (cross product < 0).
	DirectionRL Direction = "RL"
)

// Crossing is one detected gate crossing: which gate, where, and the
// classified travel direction. Crossings are ephemeral values consumed
// by aggregation and feature export.
type Crossing struct {
	GateID    int64
	Point     geom.Point
	Direction Direction
	VesselID  string
}

// Classify maps a segment displacement (px, py) against a gate direction
// vector (gx, gy). The sign convention is load-bearing: cross < 0 is RL,
// cross >= 0 (including exactly zero) is LR. Flipping it silently
// reverses every reported direction.
func Classify(px, py, gx, gy float64) Direction {
	if geom.Cross(px, py, gx, gy) < 0 {
		return DirectionRL
	}
	return DirectionLR
}

// DetectSegment tests one micropath against every gate in the index and
// returns the crossings found. Zero-length segments cannot produce a
// meaningful direction and are skipped (they should not survive the
// noise filter anyway, since its distance band starts above zero).
// Detection is independent per (segment, gate) pair; output order
// follows index order but carries no semantic meaning.
func DetectSegment(idx *Index, m track.Micropath) []Crossing {
	if m.Seg.IsDegenerate() {
		return nil
	}
	var out []Crossing
	for _, g := range idx.Gates() {
		pt, ok := geom.Intersect(m.Seg, g.Seg)
		if !ok {
			continue
		}
		gx, gy := g.DirectionVector()
		out = append(out, Crossing{
			GateID:    g.ID,
			Point:     pt,
			Direction: Classify(m.Dx, m.Dy, gx, gy),
			VesselID:  m.VesselID,
		})
	}
	return out
}

// Detect runs DetectSegment over a batch of micropaths.
func Detect(idx *Index, paths []track.Micropath) []Crossing {
	var out []Crossing
	for _, m := range paths {
		out = append(out, DetectSegment(idx, m)...)
	}
	return out
}
