package state

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/signalsfoundry/relay-network-simulator/core"
	"github.com/signalsfoundry/relay-network-simulator/internal/logging"
	"github.com/signalsfoundry/relay-network-simulator/internal/observability"
	"github.com/signalsfoundry/relay-network-simulator/model"
)

// Step advances every body and satellite by dAngle, each scaled by its own
// angular rate. Parents move before their children so every centre is
// computed against the parent's new position.
func (s *Scene) Step(ctx context.Context, dAngle float64) error {
	if ctx == nil {
		ctx = context.Background()
	}
	_, span := observability.StartStep(ctx, s.tracer, dAngle)
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	bodies := s.store.ListBodies()
	gens := make(map[string]int, len(bodies))
	for _, b := range bodies {
		gens[b.ID] = s.generationLocked(b)
	}
	sort.SliceStable(bodies, func(i, j int) bool {
		return gens[bodies[i].ID] < gens[bodies[j].ID]
	})

	for _, b := range bodies {
		if !b.HasParent() {
			continue
		}
		if err := core.Advance(&b.Orbit, s.store.GetBody(b.ParentID), dAngle); err != nil {
			observability.FailSpan(span, err, "advance body")
			return fmt.Errorf("step body %q: %w", b.Name, err)
		}
	}

	constellations := s.store.ListConstellations()
	satellites := 0
	for _, c := range constellations {
		anchor := s.store.GetBody(c.AnchorID)
		for _, sat := range c.Satellites {
			if err := core.Advance(&sat.Orbit, anchor, dAngle); err != nil {
				observability.FailSpan(span, err, "advance satellite")
				return fmt.Errorf("step constellation %q: %w", c.Name, err)
			}
			satellites++
		}
	}

	observability.EndStep(span, len(bodies), satellites)
	return nil
}

// BuildGraph computes the communication graph for the current positions.
func (s *Scene) BuildGraph(ctx context.Context) *core.Graph {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buildGraphLocked(ctx)
}

func (s *Scene) buildGraphLocked(ctx context.Context) *core.Graph {
	_, span := observability.StartGraphBuild(ctx, s.tracer)
	defer span.End()

	start := time.Now()
	g := core.BuildGraph(s.store.ListConstellations(), s.store.ListBodies())
	elapsed := time.Since(start)

	edges := g.EdgeCount()
	observability.EndGraphBuild(span, len(g.Nodes), edges)
	if s.metrics != nil {
		s.metrics.ObserveGraphBuild(elapsed, edges)
	}
	return g
}

// Route finds the best path between two constellations by name. Unknown
// names yield core.NoRoute.
func (s *Scene) Route(ctx context.Context, startName, goalName string) core.Route {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.routeLocked(ctx, startName, goalName)
}

func (s *Scene) routeLocked(ctx context.Context, startName, goalName string) core.Route {
	ctx, span := observability.StartRoute(ctx, s.tracer, startName, goalName)
	defer span.End()

	begin := time.Now()
	for _, name := range []string{startName, goalName} {
		if s.store.FindConstellationByName(name) == nil {
			s.unknownRoute.Do(func() {
				s.logger(ctx).Warn(ctx, "route endpoint not found",
					logging.String("constellation", name),
					logging.Err(fmt.Errorf("%w: %q", model.ErrUnknownEntity, name)),
				)
			})
			observability.EndRoute(span, observability.OutcomeUnknown, 0, 0)
			s.observeRoute(time.Since(begin), observability.OutcomeUnknown, 0)
			return core.NoRoute()
		}
	}

	g := s.buildGraphLocked(ctx)
	route := core.FindRoute(g, startName, goalName)

	outcome := observability.OutcomeFound
	if !route.Found() {
		outcome = observability.OutcomeNoPath
	}
	observability.EndRoute(span, outcome, route.Quality, len(route.Links))
	s.observeRoute(time.Since(begin), outcome, route.Quality)

	s.logger(ctx).Debug(ctx, "route computed",
		logging.String("start", startName),
		logging.String("goal", goalName),
		logging.String("outcome", outcome),
		logging.Int("quality", route.Quality),
		logging.Float64("distance", route.Distance),
	)
	return route
}

// MonitorRoute computes the route between two constellations and feeds its
// quality into the running average. The average restarts whenever the
// endpoint pair changes.
func (s *Scene) MonitorRoute(ctx context.Context, startName, goalName string) (core.Route, float64) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	route := s.routeLocked(ctx, startName, goalName)
	avg := s.monitor.Record(startName, goalName, route.Quality)
	if s.metrics != nil {
		s.metrics.SetRouteAverage(avg)
	}
	return route, avg
}

// RouteMonitor exposes the scene's route quality monitor.
func (s *Scene) RouteMonitor() *RouteMonitor {
	return s.monitor
}

func (s *Scene) observeRoute(d time.Duration, outcome string, quality int) {
	if s.metrics != nil {
		s.metrics.ObserveRoute(d, outcome, quality)
	}
}
