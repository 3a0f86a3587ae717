package state

import (
	"context"
	"fmt"
	"image/color"
	"math"

	"github.com/signalsfoundry/relay-network-simulator/core"
	"github.com/signalsfoundry/relay-network-simulator/internal/logging"
	"github.com/signalsfoundry/relay-network-simulator/model"
)

// BodyParams describes a new body. Zero values select the defaults: radius,
// sphere of influence and parking orbit of 1, an orbit at the midpoint of
// the parent's allowed range, a generated name and a random colour.
type BodyParams struct {
	Name            string
	Radius          float64
	SOIRadius       float64
	MinParkingOrbit float64
	OrbitHeight     float64
	Color           *color.RGBA
}

// CreateBody adds a body orbiting parentID. The requested orbit height is
// clamped into the parent's allowed range; a body whose footprint leaves no
// valid range is rejected.
func (s *Scene) CreateBody(parentID string, p BodyParams) (*model.Body, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parent, err := s.bodyLocked(parentID)
	if err != nil {
		return nil, err
	}
	if gen := s.generationLocked(parent); gen >= TerminalGeneration {
		return nil, fmt.Errorf("%w: parent %q is generation %d", ErrInvalidHierarchy, parent.Name, gen)
	}
	if err := checkFinite(
		dimension{"radius", p.Radius},
		dimension{"sphere of influence", p.SOIRadius},
		dimension{"parking orbit", p.MinParkingOrbit},
		dimension{"orbit height", p.OrbitHeight},
	); err != nil {
		return nil, err
	}

	b := &model.Body{
		ID:              s.newBodyIDLocked(),
		Name:            p.Name,
		Radius:          orDefault(p.Radius, 1),
		SOIRadius:       orDefault(p.SOIRadius, 1),
		MinParkingOrbit: orDefault(p.MinParkingOrbit, 1),
		Orbit: model.Orbit{
			ParentID: parent.ID,
			Phase:    s.rng.Float64() * 2 * math.Pi,
		},
	}
	if b.Radius < 0 || b.SOIRadius < 0 || b.MinParkingOrbit < 0 {
		return nil, fmt.Errorf("%w: body dimensions must be positive", ErrOutOfRange)
	}
	if b.Name == "" {
		b.Name = s.nextBodyNameLocked()
	}
	if p.Color != nil {
		b.Color = *p.Color
	} else {
		b.Color = model.RandomColor(s.rng)
	}

	low, high := model.OrbitBounds(parent, b)
	if low > high {
		return nil, fmt.Errorf("%w: body %q does not fit around %q", ErrOutOfRange, b.Name, parent.Name)
	}
	if p.OrbitHeight > 0 {
		b.OrbitHeight = clamp(p.OrbitHeight, low, high)
	} else {
		b.OrbitHeight = math.Round((parent.MinParkingOrbit + parent.SOIRadius) / 2)
		b.OrbitHeight = clamp(b.OrbitHeight, low, high)
	}

	if err := core.RecomputeAngularRate(&b.Orbit, parent); err != nil {
		return nil, err
	}
	if err := core.RecomputeCenter(&b.Orbit, parent); err != nil {
		return nil, err
	}
	if err := s.store.AddBody(b); err != nil {
		return nil, err
	}

	s.log.Debug(context.Background(), "body placed",
		logging.String("body", b.Name),
		logging.String("parent", parent.Name),
		logging.Float64("orbit_height", b.OrbitHeight),
		logging.String("color", model.HexColor(b.Color)),
	)
	return b, nil
}

// DeleteBody removes a body together with every descendant body and every
// constellation anchored anywhere in that subtree. The root cannot be
// deleted.
func (s *Scene) DeleteBody(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bodyLocked(id)
	if err != nil {
		return err
	}
	if b.ID == s.rootID {
		return fmt.Errorf("%w: the root body cannot be deleted", ErrInvalidHierarchy)
	}

	ids := []string{b.ID}
	for _, d := range s.store.Descendants(b.ID) {
		ids = append(ids, d.ID)
	}
	anchored := s.store.ConstellationsAnchoredTo(ids...)
	constIDs := make([]string, 0, len(anchored))
	for _, c := range anchored {
		constIDs = append(constIDs, c.ID)
	}

	s.store.RemoveConstellations(constIDs...)
	s.store.RemoveBodies(ids...)

	s.log.Debug(context.Background(), "body subtree deleted",
		logging.String("body", b.Name),
		logging.Int("bodies_removed", len(ids)),
		logging.Int("constellations_removed", len(constIDs)),
	)
	return nil
}

// ReparentBody moves a body, with its whole subtree, under a new parent. Its
// orbit height resets to the midpoint of the new parent's range.
func (s *Scene) ReparentBody(id, newParentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bodyLocked(id)
	if err != nil {
		return err
	}
	parent, err := s.bodyLocked(newParentID)
	if err != nil {
		return err
	}
	if err := s.checkParentCandidateLocked(b, parent); err != nil {
		return err
	}

	low, high := model.OrbitBounds(parent, b)
	if low > high {
		return fmt.Errorf("%w: body %q does not fit around %q", ErrOutOfRange, b.Name, parent.Name)
	}

	old := b.ParentID
	b.ParentID = parent.ID
	b.OrbitHeight = clamp(math.Round((parent.MinParkingOrbit+parent.SOIRadius)/2), low, high)
	if err := s.refreshSubtreeLocked(b); err != nil {
		return err
	}

	s.log.Info(context.Background(), "body reparented",
		logging.String("body", b.Name),
		logging.String("from", old),
		logging.String("to", parent.ID),
	)
	return nil
}

// ParentCandidates lists the bodies a body may be moved under, current
// parent first.
func (s *Scene) ParentCandidates(id string) ([]*model.Body, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, err := s.bodyLocked(id)
	if err != nil {
		return nil, err
	}
	if b.ID == s.rootID {
		return nil, fmt.Errorf("%w: the root body has no parent", ErrInvalidHierarchy)
	}

	out := []*model.Body{s.store.GetBody(b.ParentID)}
	for _, cand := range s.store.ListBodies() {
		if cand.ID == b.ParentID {
			continue
		}
		if s.checkParentCandidateLocked(b, cand) == nil {
			out = append(out, cand)
		}
	}
	return out, nil
}

// OrbitBounds returns the allowed orbit height range of a non-root body.
func (s *Scene) OrbitBounds(id string) (low, high float64, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	b, err := s.bodyLocked(id)
	if err != nil {
		return 0, 0, err
	}
	if !b.HasParent() {
		return 0, 0, fmt.Errorf("%w: body %q has no parent", ErrInvalidHierarchy, b.Name)
	}
	low, high = model.OrbitBounds(s.store.GetBody(b.ParentID), b)
	return low, high, nil
}

// SetBodyOrbitHeight moves a body to a new orbit height, clamped into its
// allowed range.
func (s *Scene) SetBodyOrbitHeight(id string, height float64) error {
	if err := checkFinite(dimension{"orbit height", height}); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bodyLocked(id)
	if err != nil {
		return err
	}
	if !b.HasParent() {
		return fmt.Errorf("%w: the root body does not orbit", ErrInvalidHierarchy)
	}
	low, high := model.OrbitBounds(s.store.GetBody(b.ParentID), b)
	clamped := clamp(height, low, high)
	if clamped != height {
		s.log.Debug(context.Background(), "orbit height clamped",
			logging.String("body", b.Name),
			logging.Float64("requested", height),
			logging.Float64("applied", clamped),
		)
	}
	b.OrbitHeight = clamped
	return s.refreshSubtreeLocked(b)
}

// SetBodyRadius resizes a body. Its own orbit and any anchored constellations
// are clamped back into range.
func (s *Scene) SetBodyRadius(id string, radius float64) error {
	if err := checkFinite(dimension{"radius", radius}); err != nil {
		return err
	}
	if radius <= 0 {
		return fmt.Errorf("%w: radius %v must be positive", ErrOutOfRange, radius)
	}
	return s.resizeBody(id, func(b *model.Body) { b.Radius = radius })
}

// SetBodySOIRadius changes a body's sphere of influence. Children and
// constellations are clamped back inside it.
func (s *Scene) SetBodySOIRadius(id string, soi float64) error {
	if err := checkFinite(dimension{"sphere of influence", soi}); err != nil {
		return err
	}
	if soi <= 0 {
		return fmt.Errorf("%w: sphere of influence %v must be positive", ErrOutOfRange, soi)
	}
	return s.resizeBody(id, func(b *model.Body) { b.SOIRadius = soi })
}

// SetBodyMinParkingOrbit changes the inner bound for child orbits. Children
// are clamped back above it.
func (s *Scene) SetBodyMinParkingOrbit(id string, lpo float64) error {
	if err := checkFinite(dimension{"parking orbit", lpo}); err != nil {
		return err
	}
	if lpo < 0 {
		return fmt.Errorf("%w: parking orbit %v must not be negative", ErrOutOfRange, lpo)
	}
	return s.resizeBody(id, func(b *model.Body) { b.MinParkingOrbit = lpo })
}

// RenameBody changes a body's display name. Names stay unique.
func (s *Scene) RenameBody(id, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bodyLocked(id)
	if err != nil {
		return err
	}
	if name == "" {
		return fmt.Errorf("%w: body name is empty", ErrInvalidName)
	}
	if other := s.store.FindBodyByName(name); other != nil && other.ID != b.ID {
		return fmt.Errorf("%w: %q", ErrBodyExists, name)
	}
	b.Name = name
	return nil
}

// SetBodyColor changes a body's display colour.
func (s *Scene) SetBodyColor(id string, c color.RGBA) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bodyLocked(id)
	if err != nil {
		return err
	}
	b.Color = c
	return nil
}

// resizeBody applies change to a copy first and only commits it when the body
// still fits its parent and every child and constellation still fits it.
func (s *Scene) resizeBody(id string, change func(*model.Body)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := s.bodyLocked(id)
	if err != nil {
		return err
	}
	candidate := *b
	change(&candidate)
	if err := s.checkFitsLocked(&candidate); err != nil {
		return err
	}

	change(b)
	if b.HasParent() {
		low, high := model.OrbitBounds(s.store.GetBody(b.ParentID), b)
		b.OrbitHeight = clamp(b.OrbitHeight, low, high)
	}
	for _, child := range s.store.Children(b.ID) {
		low, high := model.OrbitBounds(b, child)
		child.OrbitHeight = clamp(child.OrbitHeight, low, high)
	}
	for _, c := range s.store.ConstellationsAnchoredTo(b.ID) {
		low, high := model.ConstellationHeightBounds(b, c.Size())
		c.OrbitHeight = clamp(c.OrbitHeight, low, high)
		for _, sat := range c.Satellites {
			sat.OrbitHeight = c.OrbitHeight
		}
	}
	return s.refreshSubtreeLocked(b)
}

// checkFitsLocked reports whether b, as described, keeps a non-empty orbit
// range around its parent and leaves a non-empty range for everything that
// orbits it.
func (s *Scene) checkFitsLocked(b *model.Body) error {
	if b.HasParent() {
		if low, high := model.OrbitBounds(s.store.GetBody(b.ParentID), b); low > high {
			return fmt.Errorf("%w: body %q no longer fits its parent", ErrOutOfRange, b.Name)
		}
	}
	for _, child := range s.store.Children(b.ID) {
		if low, high := model.OrbitBounds(b, child); low > high {
			return fmt.Errorf("%w: child %q no longer fits %q", ErrOutOfRange, child.Name, b.Name)
		}
	}
	for _, c := range s.store.ConstellationsAnchoredTo(b.ID) {
		if low, high := model.ConstellationHeightBounds(b, c.Size()); low > high {
			return fmt.Errorf("%w: constellation %q no longer fits %q", ErrOutOfRange, c.Name, b.Name)
		}
	}
	return nil
}

// checkParentCandidateLocked enforces the generation rules for moving b under
// parent: no cycles, no children for terminal bodies and no descendant deeper
// than MaxGeneration.
func (s *Scene) checkParentCandidateLocked(b, parent *model.Body) error {
	if b.ID == s.rootID {
		return fmt.Errorf("%w: the root body cannot be reparented", ErrInvalidHierarchy)
	}
	if parent.ID == b.ID {
		return fmt.Errorf("%w: body %q cannot orbit itself", ErrInvalidHierarchy, b.Name)
	}
	for _, d := range s.store.Descendants(b.ID) {
		if d.ID == parent.ID {
			return fmt.Errorf("%w: %q is a descendant of %q", ErrInvalidHierarchy, parent.Name, b.Name)
		}
	}
	gen := s.generationLocked(parent)
	if gen >= TerminalGeneration {
		return fmt.Errorf("%w: parent %q is generation %d", ErrInvalidHierarchy, parent.Name, gen)
	}
	if depth := gen + s.subtreeHeightLocked(b); depth > MaxGeneration {
		return fmt.Errorf("%w: moving %q under %q reaches generation %d", ErrInvalidHierarchy, b.Name, parent.Name, depth)
	}
	return nil
}

// subtreeHeightLocked counts the generations in b's subtree, b included.
func (s *Scene) subtreeHeightLocked(b *model.Body) int {
	height := 1
	for _, d := range s.store.Descendants(b.ID) {
		depth := 1
		for cur := d; cur.ID != b.ID && cur.HasParent(); cur = s.store.GetBody(cur.ParentID) {
			depth++
			if depth > MaxGeneration+1 {
				break
			}
		}
		if depth > height {
			height = depth
		}
	}
	return height
}

// refreshSubtreeLocked recomputes angular rate and centre for b, every body
// below it and every satellite anchored in that subtree. Parents are always
// refreshed before their children.
func (s *Scene) refreshSubtreeLocked(b *model.Body) error {
	bodies := append([]*model.Body{b}, s.store.Descendants(b.ID)...)
	ids := make([]string, 0, len(bodies))
	for _, body := range bodies {
		ids = append(ids, body.ID)
		if !body.HasParent() {
			continue
		}
		parent := s.store.GetBody(body.ParentID)
		if err := core.RecomputeAngularRate(&body.Orbit, parent); err != nil {
			return fmt.Errorf("refresh %q: %w", body.Name, err)
		}
		if err := core.RecomputeCenter(&body.Orbit, parent); err != nil {
			return fmt.Errorf("refresh %q: %w", body.Name, err)
		}
	}
	for _, c := range s.store.ConstellationsAnchoredTo(ids...) {
		if err := s.refreshConstellationLocked(c); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scene) nextBodyNameLocked() string {
	n, _, _ := s.store.Counts()
	for {
		n++
		name := fmt.Sprintf("Body%d", n)
		if s.store.FindBodyByName(name) == nil {
			return name
		}
	}
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

type dimension struct {
	name  string
	value float64
}

// checkFinite rejects NaN and infinite inputs, which slip past every ordered
// comparison and would poison positions for the whole subtree.
func checkFinite(dims ...dimension) error {
	for _, d := range dims {
		if math.IsNaN(d.value) || math.IsInf(d.value, 0) {
			return fmt.Errorf("%w: %s %v is not finite", ErrOutOfRange, d.name, d.value)
		}
	}
	return nil
}

func clamp(v, low, high float64) float64 {
	return math.Max(low, math.Min(v, high))
}
