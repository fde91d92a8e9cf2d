// Package geom provides the planar geometry primitives used by the
// crossing pipeline: two-point segments, segment-segment intersection,
// and the cross-product direction test. All coordinates are assumed to
// be in a single distance-preserving planar system (metres); nothing in
// this package is projection-aware.
package geom

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/encoding/wkt"
)

// Point is a position in the planar coordinate system.
type Point struct {
	X float64
	Y float64
}

// Segment is a directed two-point line segment from A to B.
type Segment struct {
	A Point
	B Point
}

// Dx returns the x displacement B.X - A.X.
func (s Segment) Dx() float64 { return s.B.X - s.A.X }

// Dy returns the y displacement B.Y - A.Y.
func (s Segment) Dy() float64 { return s.B.Y - s.A.Y }

// Length returns the Euclidean length of the segment.
func (s Segment) Length() float64 {
	return math.Hypot(s.Dx(), s.Dy())
}

// IsDegenerate reports whether the segment has coincident endpoints.
func (s Segment) IsDegenerate() bool {
	return s.A.X == s.B.X && s.A.Y == s.B.Y
}

// Cross returns the 2-D cross product of the two displacement vectors
// (ax, ay) and (bx, by): ax*by - ay*bx.
func Cross(ax, ay, bx, by float64) float64 {
	return ax*by - ay*bx
}

// Intersect computes the intersection of two segments. It returns the
// intersection point and true when the segments properly cross or touch
// at a single point with non-parallel directions.
//
// Parallel and collinear segments never intersect under this predicate,
// even when they overlap over a nonzero length: a collinear overlap has
// no single representative point, so it is deterministically classified
// as no crossing. Degenerate (zero-length) inputs also return false.
func Intersect(a, b Segment) (Point, bool) {
	if a.IsDegenerate() || b.IsDegenerate() {
		return Point{}, false
	}

	rx, ry := a.Dx(), a.Dy()
	sx, sy := b.Dx(), b.Dy()

	denom := Cross(rx, ry, sx, sy)
	if denom == 0 {
		// Parallel or collinear.
		return Point{}, false
	}

	qpx := b.A.X - a.A.X
	qpy := b.A.Y - a.A.Y

	t := Cross(qpx, qpy, sx, sy) / denom
	u := Cross(qpx, qpy, rx, ry) / denom
	if t < 0 || t > 1 || u < 0 || u > 1 {
		return Point{}, false
	}

	return Point{X: a.A.X + t*rx, Y: a.A.Y + t*ry}, true
}

// OrbPoint converts a Point to its orb representation.
func (p Point) OrbPoint() orb.Point {
	return orb.Point{p.X, p.Y}
}

// OrbLineString converts a Segment to a two-point orb line string.
func (s Segment) OrbLineString() orb.LineString {
	return orb.LineString{s.A.OrbPoint(), s.B.OrbPoint()}
}

// WKT returns the well-known text encoding of the segment.
func (s Segment) WKT() string {
	return wkt.MarshalString(s.OrbLineString())
}

// WKB returns the well-known binary encoding of the segment.
func (s Segment) WKB() ([]byte, error) {
	return wkb.Marshal(s.OrbLineString())
}

// WKT returns the well-known text encoding of the point.
func (p Point) WKT() string {
	return wkt.MarshalString(p.OrbPoint())
}

// IsFinite reports whether both coordinates are finite numbers.
func (p Point) IsFinite() bool {
	return !math.IsNaN(p.X) && !math.IsInf(p.X, 0) &&
		!math.IsNaN(p.Y) && !math.IsInf(p.Y, 0)
}
