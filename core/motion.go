package core

import (
	"fmt"
	"math"

	"github.com/signalsfoundry/relay-network-simulator/model"
)

// BodyLookup resolves a body by ID, returning nil when it does not exist.
type BodyLookup func(id string) *model.Body

// OrbitPosition returns the point at the given phase on a circular orbit of
// the given height above parent's surface.
func OrbitPosition(parent *model.Body, height, phase float64) model.Point {
	r := parent.Radius + height
	return parent.Center.Add(model.Point{X: r * math.Cos(phase), Y: r * math.Sin(phase)})
}

// RecomputeCenter places o on its orbit around parent at its current phase.
func RecomputeCenter(o *model.Orbit, parent *model.Body) error {
	if err := checkParent(o, parent); err != nil {
		return fmt.Errorf("recompute center: %w", err)
	}
	o.Center = OrbitPosition(parent, o.OrbitHeight, o.Phase)
	return nil
}

// Advance moves o along its orbit by dAngle scaled with its own angular rate.
func Advance(o *model.Orbit, parent *model.Body, dAngle float64) error {
	if err := checkParent(o, parent); err != nil {
		return fmt.Errorf("advance: %w", err)
	}
	o.Phase = math.Mod(o.Phase+dAngle*o.AngularRate, 2*math.Pi)
	o.Center = OrbitPosition(parent, o.OrbitHeight, o.Phase)
	return nil
}

// DeriveAngularRate applies the synthetic orbit law: inner orbits turn faster,
// scaled by the cube of the parent's sphere of influence over the orbit height.
func DeriveAngularRate(parent *model.Body, orbitHeight float64) (float64, error) {
	if orbitHeight <= 0 {
		return 0, fmt.Errorf("%w: orbit height %v must be positive", model.ErrOutOfRange, orbitHeight)
	}
	ratio := parent.SOIRadius / orbitHeight
	return parent.AngularRate * 10 * math.Sqrt(ratio*ratio*ratio), nil
}

// RecomputeAngularRate refreshes o's angular rate from its parent.
func RecomputeAngularRate(o *model.Orbit, parent *model.Body) error {
	if err := checkParent(o, parent); err != nil {
		return fmt.Errorf("recompute angular rate: %w", err)
	}
	rate, err := DeriveAngularRate(parent, o.OrbitHeight)
	if err != nil {
		return err
	}
	o.AngularRate = rate
	return nil
}

// Generation counts hops from b to the root; the root is generation 1.
func Generation(b *model.Body, lookup BodyLookup) int {
	gen := 1
	seen := map[string]struct{}{b.ID: {}}
	cur := b
	for cur.HasParent() {
		parent := lookup(cur.ParentID)
		if parent == nil {
			break
		}
		if _, loop := seen[parent.ID]; loop {
			break
		}
		seen[parent.ID] = struct{}{}
		cur = parent
		gen++
	}
	return gen
}

func checkParent(o *model.Orbit, parent *model.Body) error {
	if !o.HasParent() || parent == nil {
		return fmt.Errorf("%w: no parent", model.ErrInvalidHierarchy)
	}
	if parent.ID != o.ParentID {
		return fmt.Errorf("%w: parent %q does not match orbit parent %q", model.ErrInvalidHierarchy, parent.ID, o.ParentID)
	}
	return nil
}
