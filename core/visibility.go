package core

import (
	"math"

	"github.com/signalsfoundry/relay-network-simulator/model"
)

// Link is a straight line-of-sight segment between two satellites.
type Link struct {
	A model.Point
	B model.Point
}

// Length returns the physical length of the link.
func (l Link) Length() float64 {
	return Distance(l.A, l.B)
}

// IsLinkBlocked reports whether the segment [a, b] passes through the disk of
// any body.
func IsLinkBlocked(bodies []*model.Body, a, b model.Point) bool {
	for _, body := range bodies {
		if body == nil {
			continue
		}
		if SegmentIntersectsDisk(a, b, body.Center, body.Radius) {
			return true
		}
	}
	return false
}

// ShortestUnblockedLink returns the shortest line of sight between any
// satellite of x and any satellite of y. Pairs are enumerated with y's
// satellites in the outer loop and x's in the inner loop; on equal lengths the
// first pair found wins. The second result is false when every pair is
// blocked.
//
// The search is quadratic in ring size and has no spatial index.
func ShortestUnblockedLink(x, y *model.Constellation, bodies []*model.Body) (Link, bool) {
	if x == nil || y == nil {
		return Link{}, false
	}

	var best Link
	found := false
	minDist := math.Inf(1)

	for _, right := range y.SatellitePositions() {
		for _, left := range x.SatellitePositions() {
			dist := Distance(left, right)
			if dist >= minDist {
				continue
			}
			if IsLinkBlocked(bodies, left, right) {
				continue
			}
			best = Link{A: left, B: right}
			minDist = dist
			found = true
		}
	}
	return best, found
}
