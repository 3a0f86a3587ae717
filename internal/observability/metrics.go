package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Route outcome label values.
const (
	OutcomeFound   = "found"
	OutcomeNoPath  = "no_path"
	OutcomeUnknown = "unknown_endpoint"
)

// SceneCollector bundles Prometheus metrics for the scene manager: entity
// counts, graph construction and route search.
type SceneCollector struct {
	gatherer prometheus.Gatherer

	Bodies         prometheus.Gauge
	Constellations prometheus.Gauge
	Satellites     prometheus.Gauge

	GraphEdges         prometheus.Gauge
	GraphBuildDuration prometheus.Histogram

	RouteRequests       *prometheus.CounterVec
	RouteDuration       prometheus.Histogram
	RouteQuality        prometheus.Gauge
	RouteAverageQuality prometheus.Gauge
}

// NewSceneCollector registers scene metrics against the provided registerer,
// defaulting to the global Prometheus registry when nil.
func NewSceneCollector(reg prometheus.Registerer) (*SceneCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &SceneCollector{gatherer: gatherer}
	var err error

	if c.Bodies, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scene_bodies",
		Help: "Current number of bodies in the scene, root included.",
	}), "scene_bodies"); err != nil {
		return nil, err
	}
	if c.Constellations, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scene_constellations",
		Help: "Current number of relay constellations in the scene.",
	}), "scene_constellations"); err != nil {
		return nil, err
	}
	if c.Satellites, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "scene_satellites",
		Help: "Current number of relay satellites across all constellations.",
	}), "scene_satellites"); err != nil {
		return nil, err
	}
	if c.GraphEdges, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "comm_graph_edges",
		Help: "Directed edges in the most recently built communication graph.",
	}), "comm_graph_edges"); err != nil {
		return nil, err
	}
	if c.GraphBuildDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "comm_graph_build_duration_seconds",
		Help:    "Duration of communication graph construction.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
	}), "comm_graph_build_duration_seconds"); err != nil {
		return nil, err
	}
	if c.RouteRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "route_requests_total",
		Help: "Route requests handled by the scene, labeled by outcome.",
	}, []string{"outcome"}), "route_requests_total"); err != nil {
		return nil, err
	}
	if c.RouteDuration, err = register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "route_computation_duration_seconds",
		Help:    "Duration of route requests, graph construction included.",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
	}), "route_computation_duration_seconds"); err != nil {
		return nil, err
	}
	if c.RouteQuality, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "route_bottleneck_quality",
		Help: "Bottleneck quality (0-100) of the most recent route.",
	}), "route_bottleneck_quality"); err != nil {
		return nil, err
	}
	if c.RouteAverageQuality, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "route_average_quality",
		Help: "Running average bottleneck quality of the monitored route.",
	}), "route_average_quality"); err != nil {
		return nil, err
	}

	return c, nil
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SceneCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetSceneCounts satisfies the scene metrics recorder so the Scene can drive
// gauge values directly from its mutators.
func (c *SceneCollector) SetSceneCounts(bodies, constellations, satellites int) {
	if c == nil {
		return
	}
	c.Bodies.Set(float64(bodies))
	c.Constellations.Set(float64(constellations))
	c.Satellites.Set(float64(satellites))
}

// ObserveGraphBuild records one communication graph construction.
func (c *SceneCollector) ObserveGraphBuild(d time.Duration, edges int) {
	if c == nil {
		return
	}
	c.GraphBuildDuration.Observe(d.Seconds())
	c.GraphEdges.Set(float64(edges))
}

// ObserveRoute records one route request.
func (c *SceneCollector) ObserveRoute(d time.Duration, outcome string, quality int) {
	if c == nil {
		return
	}
	c.RouteRequests.WithLabelValues(outcome).Inc()
	c.RouteDuration.Observe(d.Seconds())
	c.RouteQuality.Set(float64(quality))
}

// SetRouteAverage records the monitored route's running average quality.
func (c *SceneCollector) SetRouteAverage(avg float64) {
	if c == nil {
		return
	}
	c.RouteAverageQuality.Set(avg)
}

// register adds col to reg, reusing an already registered collector of the
// same type so repeated construction against one registry is harmless.
func register[T prometheus.Collector](reg prometheus.Registerer, col T, name string) (T, error) {
	if err := reg.Register(col); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
			var zero T
			return zero, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		var zero T
		return zero, err
	}
	return col, nil
}
