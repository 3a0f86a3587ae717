package core

import (
	"math"

	"github.com/signalsfoundry/relay-network-simulator/model"
)

// TangencyEpsilon widens every disk slightly so a segment that only grazes a
// body's surface still counts as blocked.
const TangencyEpsilon = 1e-9

// Distance returns the straight-line distance between two points.
func Distance(p, q model.Point) float64 {
	return p.DistanceTo(q)
}

// PointSegmentDistance returns the distance from p to the closest point of
// the segment [a, b].
func PointSegmentDistance(p, a, b model.Point) float64 {
	v := b.Sub(a)
	l2 := v.Dot(v)
	if l2 == 0 {
		// Degenerate segment.
		return p.DistanceTo(a)
	}

	// t minimises |a + t v - p|^2 over t, clamped onto the segment.
	t := p.Sub(a).Dot(v) / l2
	t = math.Max(0, math.Min(1, t))

	return p.DistanceTo(a.Add(v.Scale(t)))
}

// SegmentIntersectsDisk reports whether the segment [a, b] touches the disk
// of the given radius around center. Tangency counts as an intersection.
func SegmentIntersectsDisk(a, b, center model.Point, radius float64) bool {
	return PointSegmentDistance(center, a, b) <= radius+TangencyEpsilon
}
