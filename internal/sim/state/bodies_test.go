package state

import (
	"errors"
	"math"
	"testing"

	"github.com/signalsfoundry/relay-network-simulator/core"
	"github.com/signalsfoundry/relay-network-simulator/model"
)

// hierarchy builds root -> A -> A1 and root -> B, root -> C.
type hierarchy struct {
	s      *Scene
	rootID string

	a, a1, b, c *model.Body
}

func newHierarchy(t *testing.T) hierarchy {
	t.Helper()
	s := newTestScene(t)
	rootID := s.Root().ID
	h := hierarchy{s: s, rootID: rootID}
	h.a = mustCreateBody(t, s, rootID, BodyParams{Name: "A", Radius: 10, SOIRadius: 500, MinParkingOrbit: 10, OrbitHeight: 20000})
	h.b = mustCreateBody(t, s, rootID, BodyParams{Name: "B", Radius: 10, SOIRadius: 5000, MinParkingOrbit: 10, OrbitHeight: 40000})
	h.a1 = mustCreateBody(t, s, h.a.ID, BodyParams{Name: "A1"})
	h.c = mustCreateBody(t, s, rootID, BodyParams{Name: "C", Radius: 10, SOIRadius: 5000, MinParkingOrbit: 10, OrbitHeight: 60000})
	return h
}

func assertWithinBounds(t *testing.T, s *Scene, b *model.Body) {
	t.Helper()
	low, high, err := s.OrbitBounds(b.ID)
	if err != nil {
		t.Fatalf("OrbitBounds(%q) error = %v", b.Name, err)
	}
	if b.OrbitHeight < low || b.OrbitHeight > high {
		t.Fatalf("%s orbit height = %v, want within [%v, %v]", b.Name, b.OrbitHeight, low, high)
	}
}

func TestCreateBodyDefaults(t *testing.T) {
	s := newTestScene(t)
	root := s.Root()

	b := mustCreateBody(t, s, root.ID, BodyParams{})
	if b.Radius != 1 || b.SOIRadius != 1 || b.MinParkingOrbit != 1 {
		t.Fatalf("default dimensions = (%v, %v, %v), want (1, 1, 1)", b.Radius, b.SOIRadius, b.MinParkingOrbit)
	}
	if b.Name == "" {
		t.Fatalf("default name is empty")
	}
	if b.ParentID != root.ID {
		t.Fatalf("ParentID = %q, want %q", b.ParentID, root.ID)
	}
	assertWithinBounds(t, s, b)
	if gen, _ := s.Generation(b.ID); gen != 2 {
		t.Fatalf("Generation() = %d, want 2", gen)
	}

	wantRate, _ := core.DeriveAngularRate(root, b.OrbitHeight)
	if !approxEqual(b.AngularRate, wantRate) {
		t.Fatalf("AngularRate = %v, want %v", b.AngularRate, wantRate)
	}
	if d := b.Center.DistanceTo(root.Center); !approxEqual(d, root.Radius+b.OrbitHeight) {
		t.Fatalf("distance to root = %v, want %v", d, root.Radius+b.OrbitHeight)
	}

	other := mustCreateBody(t, s, root.ID, BodyParams{})
	if other.Name == b.Name {
		t.Fatalf("generated names collide: %q", b.Name)
	}
}

func TestCreateBodyAngularRateLaw(t *testing.T) {
	s := newTestScene(t)
	b := mustCreateBody(t, s, s.Root().ID, BodyParams{Name: "Inner", OrbitHeight: 10000})

	// (100000 / 10000)^1.5 = 31.6227766...
	want := 0.01 * 10 * 31.62277660168379
	if !approxEqual(b.AngularRate, want) {
		t.Fatalf("AngularRate = %v, want %v", b.AngularRate, want)
	}
}

func TestCreateBodyClampsHeight(t *testing.T) {
	s := newTestScene(t)
	b := mustCreateBody(t, s, s.Root().ID, BodyParams{Name: "Far", OrbitHeight: 1e9})
	if want := 100000.0 - 2; b.OrbitHeight != want {
		t.Fatalf("OrbitHeight = %v, want %v", b.OrbitHeight, want)
	}
}

func TestCreateBodyRejections(t *testing.T) {
	h := newHierarchy(t)

	if _, err := h.s.CreateBody(h.a1.ID, BodyParams{Name: "TooDeep"}); !errors.Is(err, ErrInvalidHierarchy) {
		t.Fatalf("CreateBody under generation 3 error = %v, want ErrInvalidHierarchy", err)
	}
	if _, err := h.s.CreateBody(h.rootID, BodyParams{Name: "Huge", SOIRadius: 60000}); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("CreateBody oversized error = %v, want ErrOutOfRange", err)
	}
	if _, err := h.s.CreateBody(h.rootID, BodyParams{Name: "A"}); !errors.Is(err, ErrBodyExists) {
		t.Fatalf("CreateBody duplicate name error = %v, want ErrBodyExists", err)
	}
	if _, err := h.s.CreateBody("missing", BodyParams{}); !errors.Is(err, ErrBodyNotFound) {
		t.Fatalf("CreateBody missing parent error = %v, want ErrBodyNotFound", err)
	}
	if _, err := h.s.CreateBody(h.rootID, BodyParams{Radius: -1}); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("CreateBody negative radius error = %v, want ErrOutOfRange", err)
	}
	if got := len(h.s.Bodies()); got != 5 {
		t.Fatalf("len(Bodies()) = %d, want 5 after rejected creates", got)
	}
}

func TestGenerationInvariant(t *testing.T) {
	h := newHierarchy(t)
	if err := h.s.ReparentBody(h.a.ID, h.b.ID); err != nil {
		t.Fatalf("ReparentBody() error = %v", err)
	}

	for _, b := range h.s.Bodies() {
		gen, err := h.s.Generation(b.ID)
		if err != nil {
			t.Fatalf("Generation(%q) error = %v", b.Name, err)
		}
		if !b.HasParent() {
			if gen != 1 {
				t.Fatalf("root generation = %d, want 1", gen)
			}
			continue
		}
		parentGen, _ := h.s.Generation(b.ParentID)
		if gen != parentGen+1 {
			t.Fatalf("generation(%s) = %d, want parent %d + 1", b.Name, gen, parentGen)
		}
		if gen > MaxGeneration {
			t.Fatalf("generation(%s) = %d exceeds %d", b.Name, gen, MaxGeneration)
		}
	}
}

func TestReparentBody(t *testing.T) {
	h := newHierarchy(t)

	if err := h.s.ReparentBody(h.a.ID, h.b.ID); err != nil {
		t.Fatalf("ReparentBody(A, B) error = %v", err)
	}
	if h.a.ParentID != h.b.ID {
		t.Fatalf("A parent = %q, want %q", h.a.ParentID, h.b.ID)
	}
	// Midpoint of B's range: round((10 + 5000) / 2).
	if h.a.OrbitHeight != 2505 {
		t.Fatalf("A orbit height = %v, want 2505", h.a.OrbitHeight)
	}
	if gen, _ := h.s.Generation(h.a1.ID); gen != 4 {
		t.Fatalf("A1 generation = %d, want 4", gen)
	}

	wantA, _ := core.DeriveAngularRate(h.b, h.a.OrbitHeight)
	if !approxEqual(h.a.AngularRate, wantA) {
		t.Fatalf("A angular rate = %v, want %v", h.a.AngularRate, wantA)
	}
	wantA1, _ := core.DeriveAngularRate(h.a, h.a1.OrbitHeight)
	if !approxEqual(h.a1.AngularRate, wantA1) {
		t.Fatalf("A1 angular rate = %v, want %v", h.a1.AngularRate, wantA1)
	}
	if d := h.a1.Center.DistanceTo(h.a.Center); !approxEqual(d, h.a.Radius+h.a1.OrbitHeight) {
		t.Fatalf("A1 distance to A = %v, want %v", d, h.a.Radius+h.a1.OrbitHeight)
	}
}

func TestReparentBodyRejections(t *testing.T) {
	h := newHierarchy(t)

	tests := []struct {
		name   string
		body   string
		parent string
		want   error
	}{
		{"root", h.rootID, h.a.ID, ErrInvalidHierarchy},
		{"self", h.a.ID, h.a.ID, ErrInvalidHierarchy},
		{"descendant", h.a.ID, h.a1.ID, ErrInvalidHierarchy},
		{"terminal parent", h.b.ID, h.a1.ID, ErrInvalidHierarchy},
		{"missing parent", h.a.ID, "missing", ErrBodyNotFound},
		{"does not fit", h.b.ID, h.a.ID, ErrOutOfRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := h.s.ReparentBody(tt.body, tt.parent); !errors.Is(err, tt.want) {
				t.Fatalf("ReparentBody() error = %v, want %v", err, tt.want)
			}
		})
	}

	// B -> A -> A1 is three generations deep; under C it would reach 5.
	if err := h.s.ReparentBody(h.a.ID, h.b.ID); err != nil {
		t.Fatalf("ReparentBody(A, B) error = %v", err)
	}
	before := h.b.OrbitHeight
	if err := h.s.ReparentBody(h.b.ID, h.c.ID); !errors.Is(err, ErrInvalidHierarchy) {
		t.Fatalf("ReparentBody(B, C) error = %v, want ErrInvalidHierarchy", err)
	}
	if h.b.ParentID != h.rootID || h.b.OrbitHeight != before {
		t.Fatalf("rejected reparent changed B: parent %q height %v", h.b.ParentID, h.b.OrbitHeight)
	}
}

func TestParentCandidates(t *testing.T) {
	h := newHierarchy(t)

	got, err := h.s.ParentCandidates(h.a1.ID)
	if err != nil {
		t.Fatalf("ParentCandidates() error = %v", err)
	}
	want := []string{h.a.ID, h.rootID, h.b.ID, h.c.ID}
	if len(got) != len(want) {
		t.Fatalf("len(ParentCandidates()) = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i] {
			t.Fatalf("ParentCandidates()[%d] = %q, want %q", i, got[i].ID, want[i])
		}
	}

	if _, err := h.s.ParentCandidates(h.rootID); !errors.Is(err, ErrInvalidHierarchy) {
		t.Fatalf("ParentCandidates(root) error = %v, want ErrInvalidHierarchy", err)
	}
}

func TestSetBodyOrbitHeight(t *testing.T) {
	h := newHierarchy(t)

	if err := h.s.SetBodyOrbitHeight(h.a.ID, 1); err != nil {
		t.Fatalf("SetBodyOrbitHeight() error = %v", err)
	}
	low, _, _ := h.s.OrbitBounds(h.a.ID)
	if h.a.OrbitHeight != low {
		t.Fatalf("A orbit height = %v, want clamped to %v", h.a.OrbitHeight, low)
	}
	if d := h.a1.Center.DistanceTo(h.a.Center); !approxEqual(d, h.a.Radius+h.a1.OrbitHeight) {
		t.Fatalf("A1 did not follow A: distance %v", d)
	}
	if err := h.s.SetBodyOrbitHeight(h.rootID, 10); !errors.Is(err, ErrInvalidHierarchy) {
		t.Fatalf("SetBodyOrbitHeight(root) error = %v, want ErrInvalidHierarchy", err)
	}
}

func TestSetBodySOIRadiusClampsChildren(t *testing.T) {
	h := newHierarchy(t)

	if err := h.s.SetBodySOIRadius(h.a.ID, 200); err != nil {
		t.Fatalf("SetBodySOIRadius(200) error = %v", err)
	}
	if h.a1.OrbitHeight != 198 {
		t.Fatalf("A1 orbit height = %v, want 198", h.a1.OrbitHeight)
	}
	wantRate, _ := core.DeriveAngularRate(h.a, 198)
	if !approxEqual(h.a1.AngularRate, wantRate) {
		t.Fatalf("A1 angular rate = %v, want %v", h.a1.AngularRate, wantRate)
	}

	if err := h.s.SetBodySOIRadius(h.a.ID, 5); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("SetBodySOIRadius(5) error = %v, want ErrOutOfRange", err)
	}
	if h.a.SOIRadius != 200 || h.a1.OrbitHeight != 198 {
		t.Fatalf("rejected change altered state: soi %v, A1 height %v", h.a.SOIRadius, h.a1.OrbitHeight)
	}
	if err := h.s.SetBodySOIRadius(h.a.ID, 0); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("SetBodySOIRadius(0) error = %v, want ErrOutOfRange", err)
	}
}

func TestSetBodyMinParkingOrbitClampsChildren(t *testing.T) {
	h := newHierarchy(t)

	if err := h.s.SetBodyMinParkingOrbit(h.a.ID, 300); err != nil {
		t.Fatalf("SetBodyMinParkingOrbit() error = %v", err)
	}
	if h.a1.OrbitHeight != 302 {
		t.Fatalf("A1 orbit height = %v, want 302", h.a1.OrbitHeight)
	}
	if err := h.s.SetBodyMinParkingOrbit(h.a.ID, 499); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("SetBodyMinParkingOrbit(499) error = %v, want ErrOutOfRange", err)
	}
}

func TestSetBodyRadiusClampsConstellations(t *testing.T) {
	h := newHierarchy(t)
	ring := mustCreateConstellation(t, h.s, h.a.ID, ConstellationParams{Name: "Ring"})
	if !approxEqual(ring.OrbitHeight, 10) {
		t.Fatalf("ring orbit height = %v, want 10", ring.OrbitHeight)
	}

	if err := h.s.SetBodyRadius(h.a.ID, 100); err != nil {
		t.Fatalf("SetBodyRadius(100) error = %v", err)
	}
	if !approxEqual(ring.OrbitHeight, 100) {
		t.Fatalf("ring orbit height = %v, want 100", ring.OrbitHeight)
	}
	for _, sat := range ring.Satellites {
		if d := sat.Center.DistanceTo(h.a.Center); !approxEqual(d, 200) {
			t.Fatalf("satellite %d distance to A = %v, want 200", sat.Index, d)
		}
	}

	if err := h.s.SetBodyRadius(h.a.ID, 600); !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("SetBodyRadius(600) error = %v, want ErrOutOfRange", err)
	}
	if h.a.Radius != 100 {
		t.Fatalf("A radius = %v, want 100 after rejected change", h.a.Radius)
	}
}

func TestDeleteBodyCascades(t *testing.T) {
	h := newHierarchy(t)
	mustCreateConstellation(t, h.s, h.a.ID, ConstellationParams{Name: "OnA"})
	mustCreateConstellation(t, h.s, h.a1.ID, ConstellationParams{Name: "OnA1", Size: 3})
	keep := mustCreateConstellation(t, h.s, h.b.ID, ConstellationParams{Name: "OnB"})

	if err := h.s.DeleteBody(h.a.ID); err != nil {
		t.Fatalf("DeleteBody() error = %v", err)
	}
	for _, id := range []string{h.a.ID, h.a1.ID} {
		if _, err := h.s.Body(id); !errors.Is(err, ErrBodyNotFound) {
			t.Fatalf("Body(%q) error = %v, want ErrBodyNotFound", id, err)
		}
	}
	consts := h.s.Constellations()
	if len(consts) != 1 || consts[0].ID != keep.ID {
		t.Fatalf("Constellations() = %v, want only OnB", consts)
	}
	if got := len(h.s.Bodies()); got != 3 {
		t.Fatalf("len(Bodies()) = %d, want 3", got)
	}

	if err := h.s.DeleteBody(h.rootID); !errors.Is(err, ErrInvalidHierarchy) {
		t.Fatalf("DeleteBody(root) error = %v, want ErrInvalidHierarchy", err)
	}
	if err := h.s.DeleteBody(h.a.ID); !errors.Is(err, ErrBodyNotFound) {
		t.Fatalf("DeleteBody twice error = %v, want ErrBodyNotFound", err)
	}
}

func TestRenameBody(t *testing.T) {
	h := newHierarchy(t)

	if err := h.s.RenameBody(h.a.ID, "Alpha"); err != nil {
		t.Fatalf("RenameBody() error = %v", err)
	}
	if b, err := h.s.BodyByName("Alpha"); err != nil || b.ID != h.a.ID {
		t.Fatalf("BodyByName(Alpha) = %v, %v", b, err)
	}
	if err := h.s.RenameBody(h.b.ID, "Alpha"); !errors.Is(err, ErrBodyExists) {
		t.Fatalf("RenameBody duplicate error = %v, want ErrBodyExists", err)
	}
	if err := h.s.RenameBody(h.b.ID, ""); !errors.Is(err, ErrInvalidName) {
		t.Fatalf("RenameBody empty error = %v, want ErrInvalidName", err)
	}
}

func TestMutatorsRejectNonFinite(t *testing.T) {
	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		h := newHierarchy(t)
		c := mustCreateConstellation(t, h.s, h.b.ID, ConstellationParams{Name: "Ring", Size: 4})
		before := *h.a
		rootBefore := *h.s.Root()
		ringHeight := c.OrbitHeight
		scale := h.s.ViewScale()

		mutators := []struct {
			name string
			call func() error
		}{
			{"SetBodyOrbitHeight", func() error { return h.s.SetBodyOrbitHeight(h.a.ID, bad) }},
			{"SetBodyRadius", func() error { return h.s.SetBodyRadius(h.a.ID, bad) }},
			{"SetBodyRadius(root)", func() error { return h.s.SetBodyRadius(h.rootID, bad) }},
			{"SetBodySOIRadius", func() error { return h.s.SetBodySOIRadius(h.a.ID, bad) }},
			{"SetBodyMinParkingOrbit", func() error { return h.s.SetBodyMinParkingOrbit(h.a.ID, bad) }},
			{"SetConstellationHeight", func() error { return h.s.SetConstellationHeight(c.ID, bad) }},
			{"CreateBody(Radius)", func() error {
				_, err := h.s.CreateBody(h.rootID, BodyParams{Name: "X", Radius: bad})
				return err
			}},
			{"CreateBody(SOIRadius)", func() error {
				_, err := h.s.CreateBody(h.rootID, BodyParams{Name: "X", SOIRadius: bad})
				return err
			}},
			{"CreateBody(OrbitHeight)", func() error {
				_, err := h.s.CreateBody(h.rootID, BodyParams{Name: "X", OrbitHeight: bad})
				return err
			}},
			{"CreateConstellation(OrbitHeight)", func() error {
				_, err := h.s.CreateConstellation(h.rootID, ConstellationParams{Name: "Y", OrbitHeight: bad})
				return err
			}},
		}
		for _, m := range mutators {
			if err := m.call(); !errors.Is(err, ErrOutOfRange) {
				t.Fatalf("%s(%v) error = %v, want ErrOutOfRange", m.name, bad, err)
			}
		}

		if *h.a != before {
			t.Fatalf("body changed after rejected %v: %+v, want %+v", bad, *h.a, before)
		}
		if *h.s.Root() != rootBefore || h.s.ViewScale() != scale {
			t.Fatalf("root changed after rejected %v", bad)
		}
		if c.OrbitHeight != ringHeight {
			t.Fatalf("ring height = %v after rejected %v, want %v", c.OrbitHeight, bad, ringHeight)
		}
		for _, sat := range c.Satellites {
			if math.IsNaN(sat.Center.X) || math.IsNaN(sat.Center.Y) {
				t.Fatalf("satellite %d centre is NaN after rejected %v", sat.Index, bad)
			}
		}
		if got := len(h.s.Bodies()); got != 5 {
			t.Fatalf("len(Bodies()) = %d after rejected %v, want 5", got, bad)
		}
		if got := len(h.s.Constellations()); got != 1 {
			t.Fatalf("len(Constellations()) = %d after rejected %v, want 1", got, bad)
		}
	}
}

func TestNewSceneRejectsNonFiniteRoot(t *testing.T) {
	_, err := NewScene(nil, nil, WithRootBody(BodyParams{Radius: math.Inf(1)}))
	if !errors.Is(err, ErrOutOfRange) {
		t.Fatalf("NewScene(infinite root) error = %v, want ErrOutOfRange", err)
	}
}
