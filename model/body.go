package model

import "image/color"

// RootAngularRate is the angular rate assigned to a root body. Children derive
// their own rate from it.
const RootAngularRate = 0.01

// Orbit holds the state shared by everything that circles a parent body.
// ParentID is a non-owning reference resolved through the knowledge base.
type Orbit struct {
	ParentID    string
	OrbitHeight float64 // distance from the parent's surface
	Phase       float64 // radians
	AngularRate float64
	Center      Point // derived from the parent and phase
}

// HasParent reports whether the orbit is attached to a parent body.
func (o *Orbit) HasParent() bool {
	return o.ParentID != ""
}

// Body is a node in the orbital hierarchy (planet or moon).
type Body struct {
	ID   string
	Name string

	Radius          float64
	SOIRadius       float64 // sphere of influence, outer bound for child orbits
	MinParkingOrbit float64 // inner bound for child orbits

	Color color.RGBA

	Orbit
}

// OrbitBounds returns the allowed orbit height range of child around parent:
// clear of the parent's parking orbit below and inside its sphere of
// influence above.
func OrbitBounds(parent, child *Body) (low, high float64) {
	footprint := child.SOIRadius + child.Radius
	return parent.MinParkingOrbit + footprint, parent.SOIRadius - footprint
}
