// Package state owns the scene: every body and constellation, the rules that
// keep the orbital hierarchy consistent, and the entry points the simulation
// driver calls each tick.
package state

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/signalsfoundry/relay-network-simulator/core"
	"github.com/signalsfoundry/relay-network-simulator/internal/logging"
	"github.com/signalsfoundry/relay-network-simulator/internal/observability"
	"github.com/signalsfoundry/relay-network-simulator/kb"
	"github.com/signalsfoundry/relay-network-simulator/model"
)

// Re-export sentinel errors so callers can depend on state.* only.
var (
	ErrBodyExists            = kb.ErrBodyExists
	ErrBodyNotFound          = kb.ErrBodyNotFound
	ErrConstellationExists   = kb.ErrConstellationExists
	ErrConstellationNotFound = kb.ErrConstellationNotFound

	ErrInvalidHierarchy  = model.ErrInvalidHierarchy
	ErrOutOfRange        = model.ErrOutOfRange
	ErrUnknownEntity     = model.ErrUnknownEntity
	ErrMagnitudeOverflow = model.ErrMagnitudeOverflow

	// ErrInvalidName indicates an empty body or constellation name.
	ErrInvalidName = errors.New("invalid name")
)

const (
	// MaxGeneration is the deepest generation any body may reach.
	MaxGeneration = 4
	// TerminalGeneration bodies never become parents; that tier is left to
	// constellations.
	TerminalGeneration = 3

	DefaultConstellationSize = model.MinConstellationSize
	DefaultRating            = 5

	// viewportPixels is the canvas span the renderer fits the root's sphere
	// of influence into.
	viewportPixels = 860
)

// SceneMetricsRecorder receives scene counts and timing for graph and route
// requests.
type SceneMetricsRecorder interface {
	SetSceneCounts(bodies, constellations, satellites int)
	ObserveGraphBuild(d time.Duration, edges int)
	ObserveRoute(d time.Duration, outcome string, quality int)
	SetRouteAverage(avg float64)
}

// Scene coordinates the knowledge base and is the only mutator of bodies and
// constellations. It is meant to be driven by a single caller; the lock only
// protects readers such as metrics scrapes.
type Scene struct {
	// mu guards every access to store and the counters below. Take it before
	// any KB call to keep the Scene -> KB lock order.
	mu sync.RWMutex

	store  *kb.KnowledgeBase
	rootID string

	nextBodyID          int
	nextConstellationID int

	rng     *rand.Rand
	log     logging.Logger
	metrics SceneMetricsRecorder
	tracer  trace.Tracer
	monitor *RouteMonitor

	unsubscribe func()

	// unknownRoute throttles the warning for route requests naming missing
	// constellations, which the tick loop would otherwise repeat every tick.
	unknownRoute rate.Sometimes

	root BodyParams
}

// SceneSnapshot captures the bodies and constellations at one instant.
//
// The slices contain pointers owned by the Scene; callers MUST treat them as
// read-only.
type SceneSnapshot struct {
	Root           *model.Body
	Bodies         []*model.Body
	Constellations []*model.Constellation
}

// SceneOption customises Scene construction.
type SceneOption func(*Scene)

// WithMetricsRecorder attaches an optional metrics recorder.
func WithMetricsRecorder(m SceneMetricsRecorder) SceneOption {
	return func(s *Scene) {
		s.metrics = m
	}
}

// WithRand sets the random source used for initial phases and colours.
func WithRand(r *rand.Rand) SceneOption {
	return func(s *Scene) {
		if r != nil {
			s.rng = r
		}
	}
}

// WithTracer overrides the tracer used for step, graph and route spans.
func WithTracer(t trace.Tracer) SceneOption {
	return func(s *Scene) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithRootBody overrides the root body created with the scene. Zero fields
// keep their defaults.
func WithRootBody(p BodyParams) SceneOption {
	return func(s *Scene) {
		if p.Name != "" {
			s.root.Name = p.Name
		}
		if p.Radius > 0 {
			s.root.Radius = p.Radius
		}
		if p.SOIRadius > 0 {
			s.root.SOIRadius = p.SOIRadius
		}
		if p.MinParkingOrbit > 0 {
			s.root.MinParkingOrbit = p.MinParkingOrbit
		}
		if p.Color != nil {
			s.root.Color = p.Color
		}
	}
}

// WithRouteMonitorWindow changes how many samples the route monitor averages
// before it starts over.
func WithRouteMonitorWindow(n int) SceneOption {
	return func(s *Scene) {
		s.monitor = NewRouteMonitor(n)
	}
}

// NewScene creates a scene holding a single stationary root body at the
// origin. store must be empty.
func NewScene(store *kb.KnowledgeBase, log logging.Logger, opts ...SceneOption) (*Scene, error) {
	if store == nil {
		store = kb.NewKnowledgeBase()
	}
	if log == nil {
		log = logging.Noop()
	}
	s := &Scene{
		store:   store,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
		log:     log,
		tracer:  observability.Tracer(),
		monitor: NewRouteMonitor(DefaultMonitorWindow),
		unknownRoute: rate.Sometimes{
			First:    1,
			Interval: 10 * time.Second,
		},
		root: BodyParams{
			Name:            "Center",
			Radius:          1000,
			SOIRadius:       100000,
			MinParkingOrbit: 1,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	if err := checkFinite(
		dimension{"radius", s.root.Radius},
		dimension{"sphere of influence", s.root.SOIRadius},
		dimension{"parking orbit", s.root.MinParkingOrbit},
	); err != nil {
		return nil, fmt.Errorf("create root body: %w", err)
	}
	s.unsubscribe = store.Subscribe(s.onStoreEvent)

	root := &model.Body{
		ID:              s.newBodyIDLocked(),
		Name:            s.root.Name,
		Radius:          s.root.Radius,
		SOIRadius:       s.root.SOIRadius,
		MinParkingOrbit: s.root.MinParkingOrbit,
		Orbit:           model.Orbit{AngularRate: model.RootAngularRate},
	}
	if s.root.Color != nil {
		root.Color = *s.root.Color
	} else {
		root.Color = model.RandomColor(s.rng)
	}
	if err := store.AddBody(root); err != nil {
		s.unsubscribe()
		return nil, fmt.Errorf("create root body: %w", err)
	}
	s.rootID = root.ID
	return s, nil
}

// Close detaches the scene from its knowledge base. The scene must not be
// mutated afterwards.
func (s *Scene) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

// Root returns the root body.
func (s *Scene) Root() *model.Body {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.GetBody(s.rootID)
}

// Snapshot returns a coherent view of the current scene.
func (s *Scene) Snapshot() *SceneSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return &SceneSnapshot{
		Root:           s.store.GetBody(s.rootID),
		Bodies:         s.store.ListBodies(),
		Constellations: s.store.ListConstellations(),
	}
}

// Bodies returns every body in creation order, root first.
func (s *Scene) Bodies() []*model.Body {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.ListBodies()
}

// Constellations returns every constellation in creation order.
func (s *Scene) Constellations() []*model.Constellation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.store.ListConstellations()
}

// Body retrieves a body by ID.
func (s *Scene) Body(id string) (*model.Body, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bodyLocked(id)
}

// BodyByName retrieves a body by its display name.
func (s *Scene) BodyByName(name string) (*model.Body, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b := s.store.FindBodyByName(name)
	if b == nil {
		return nil, fmt.Errorf("%w: %w: %q", ErrUnknownEntity, ErrBodyNotFound, name)
	}
	return b, nil
}

// Constellation retrieves a constellation by ID.
func (s *Scene) Constellation(id string) (*model.Constellation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.constellationLocked(id)
}

// ConstellationByName retrieves a constellation by its display name.
func (s *Scene) ConstellationByName(name string) (*model.Constellation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := s.store.FindConstellationByName(name)
	if c == nil {
		return nil, fmt.Errorf("%w: %w: %q", ErrUnknownEntity, ErrConstellationNotFound, name)
	}
	return c, nil
}

// Generation returns the hierarchy depth of a body; the root is 1.
func (s *Scene) Generation(id string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, err := s.bodyLocked(id)
	if err != nil {
		return 0, err
	}
	return s.generationLocked(b), nil
}

// Children returns the direct children of a body.
func (s *Scene) Children(id string) ([]*model.Body, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := s.bodyLocked(id); err != nil {
		return nil, err
	}
	return s.store.Children(id), nil
}

// Descendants returns every body below a body, nearest generation first.
func (s *Scene) Descendants(id string) ([]*model.Body, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := s.bodyLocked(id); err != nil {
		return nil, err
	}
	return s.store.Descendants(id), nil
}

// ConstellationsOf returns the constellations anchored to a body.
func (s *Scene) ConstellationsOf(id string) ([]*model.Constellation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, err := s.bodyLocked(id); err != nil {
		return nil, err
	}
	return s.store.ConstellationsAnchoredTo(id), nil
}

// ViewScale returns the factor a renderer uses to fit the root's sphere of
// influence into its canvas.
func (s *Scene) ViewScale() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	root := s.store.GetBody(s.rootID)
	return viewportPixels / (root.Radius + root.SOIRadius) / 2
}

// BodyPosition is the render state of one body.
type BodyPosition struct {
	ID     string
	Name   string
	Center model.Point
	Radius float64
}

// SatellitePosition is the render state of one satellite.
type SatellitePosition struct {
	ConstellationID string
	Index           int
	Center          model.Point
}

// Positions returns the current centre of every body and satellite.
func (s *Scene) Positions() ([]BodyPosition, []SatellitePosition) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bodies := s.store.ListBodies()
	bp := make([]BodyPosition, 0, len(bodies))
	for _, b := range bodies {
		bp = append(bp, BodyPosition{ID: b.ID, Name: b.Name, Center: b.Center, Radius: b.Radius})
	}

	var sp []SatellitePosition
	for _, c := range s.store.ListConstellations() {
		for _, sat := range c.Satellites {
			sp = append(sp, SatellitePosition{ConstellationID: c.ID, Index: sat.Index, Center: sat.Center})
		}
	}
	return bp, sp
}

func (s *Scene) bodyLocked(id string) (*model.Body, error) {
	b := s.store.GetBody(id)
	if b == nil {
		return nil, fmt.Errorf("%w: %q", ErrBodyNotFound, id)
	}
	return b, nil
}

func (s *Scene) constellationLocked(id string) (*model.Constellation, error) {
	c := s.store.GetConstellation(id)
	if c == nil {
		return nil, fmt.Errorf("%w: %q", ErrConstellationNotFound, id)
	}
	return c, nil
}

func (s *Scene) lookupLocked(id string) *model.Body {
	return s.store.GetBody(id)
}

func (s *Scene) generationLocked(b *model.Body) int {
	return core.Generation(b, s.lookupLocked)
}

func (s *Scene) newBodyIDLocked() string {
	s.nextBodyID++
	return fmt.Sprintf("body-%d", s.nextBodyID)
}

func (s *Scene) newConstellationIDLocked() string {
	s.nextConstellationID++
	return fmt.Sprintf("constellation-%d", s.nextConstellationID)
}

// onStoreEvent keeps the scene counts and the structural log in step with the
// KB. Every KB mutation happens under s.mu, so the callback runs with the
// scene lock already held and must not take it again.
func (s *Scene) onStoreEvent(ev kb.Event) {
	s.log.Info(context.Background(), ev.Type.String(),
		logging.String("id", ev.ID),
		logging.String("name", ev.Name),
	)
	s.updateMetricsLocked()
}

func (s *Scene) updateMetricsLocked() {
	if s.metrics == nil {
		return
	}
	bodies, constellations, satellites := s.store.Counts()
	s.metrics.SetSceneCounts(bodies, constellations, satellites)
}

// logger prefers a logger carried on ctx, such as one the driver has
// annotated for the current run, over the scene's own.
func (s *Scene) logger(ctx context.Context) logging.Logger {
	return logging.FromContext(ctx, s.log)
}
