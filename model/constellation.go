package model

import "math"

// SatelliteRadius is the fixed radius of every relay satellite.
const SatelliteRadius = 3.0

// MinConstellationSize is the smallest ring that can be built.
const MinConstellationSize = 3

// Satellite is a relay node owned by a Constellation. It orbits the
// constellation's anchor body.
type Satellite struct {
	Index  int
	Radius float64

	Orbit
}

// Constellation is a ring of satellites sharing one orbit height and antenna
// rating around an anchor body.
type Constellation struct {
	ID       string
	Name     string
	AnchorID string

	OrbitHeight float64
	Rating      int64

	Satellites []*Satellite
}

// Size returns the number of satellites in the ring.
func (c *Constellation) Size() int {
	return len(c.Satellites)
}

// SatellitePositions returns the current centres of every satellite, in
// ring order.
func (c *Constellation) SatellitePositions() []Point {
	points := make([]Point, 0, len(c.Satellites))
	for _, sat := range c.Satellites {
		points = append(points, sat.Center)
	}
	return points
}

// ConstellationHeightBounds returns the orbit height range for a ring of size
// satellites around anchor. At the lower bound the chord between neighbouring
// satellites just grazes the anchor's surface; the upper bound is the
// anchor's sphere of influence.
func ConstellationHeightBounds(anchor *Body, size int) (low, high float64) {
	if size < MinConstellationSize {
		size = MinConstellationSize
	}
	low = anchor.Radius * (1/math.Cos(math.Pi/float64(size)) - 1)
	return low, anchor.SOIRadius
}
