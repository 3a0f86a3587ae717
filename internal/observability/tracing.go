package observability

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/signalsfoundry/relay-network-simulator/internal/logging"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// InstrumentationName identifies spans emitted by the simulator.
const InstrumentationName = "github.com/signalsfoundry/relay-network-simulator"

// Span names emitted by the scene.
const (
	SpanStep       = "scene.Step"
	SpanBuildGraph = "scene.BuildGraph"
	SpanRoute      = "scene.Route"
)

// Span attribute keys.
const (
	AttrAngle        = attribute.Key("scene.angle")
	AttrBodies       = attribute.Key("scene.bodies")
	AttrSatellites   = attribute.Key("scene.satellites")
	AttrGraphNodes   = attribute.Key("graph.nodes")
	AttrGraphEdges   = attribute.Key("graph.edges")
	AttrRouteStart   = attribute.Key("route.start")
	AttrRouteGoal    = attribute.Key("route.goal")
	AttrRouteOutcome = attribute.Key("route.outcome")
	AttrRouteQuality = attribute.Key("route.quality")
	AttrRouteHops    = attribute.Key("route.hops")
)

const shutdownTimeout = 5 * time.Second

// TracingConfig governs how tracing is initialised.
type TracingConfig struct {
	Enabled     bool
	ServiceName string
	Exporter    string // stdout | otlp
	Endpoint    string // used when Exporter == otlp
	SampleRatio float64

	// Writer receives stdout exporter output; defaults to os.Stdout.
	Writer io.Writer
}

// Tracer returns the simulator tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(InstrumentationName)
}

// StartStep opens the span covering one scene step.
func StartStep(ctx context.Context, t trace.Tracer, angle float64) (context.Context, trace.Span) {
	return t.Start(ctx, SpanStep, trace.WithAttributes(AttrAngle.Float64(angle)))
}

// EndStep records what a step moved.
func EndStep(span trace.Span, bodies, satellites int) {
	span.SetAttributes(AttrBodies.Int(bodies), AttrSatellites.Int(satellites))
}

// StartGraphBuild opens the span covering one communication graph build.
func StartGraphBuild(ctx context.Context, t trace.Tracer) (context.Context, trace.Span) {
	return t.Start(ctx, SpanBuildGraph)
}

// EndGraphBuild records the size of the built graph.
func EndGraphBuild(span trace.Span, nodes, edges int) {
	span.SetAttributes(AttrGraphNodes.Int(nodes), AttrGraphEdges.Int(edges))
}

// StartRoute opens the span covering one route request.
func StartRoute(ctx context.Context, t trace.Tracer, start, goal string) (context.Context, trace.Span) {
	return t.Start(ctx, SpanRoute, trace.WithAttributes(
		AttrRouteStart.String(start),
		AttrRouteGoal.String(goal),
	))
}

// EndRoute records a route outcome. Requests naming unknown endpoints mark the
// span as failed; a missing path is a valid answer and does not.
func EndRoute(span trace.Span, outcome string, quality, hops int) {
	span.SetAttributes(
		AttrRouteOutcome.String(outcome),
		AttrRouteQuality.Int(quality),
		AttrRouteHops.Int(hops),
	)
	if outcome == OutcomeUnknown {
		span.SetStatus(codes.Error, "unknown endpoint")
	}
}

// FailSpan marks span as failed with err.
func FailSpan(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}

// Tracing owns the provider installed by InitTracing.
type Tracing struct {
	provider *sdktrace.TracerProvider // nil when disabled
	log      logging.Logger
}

// InitTracing installs the global tracer provider described by cfg. A disabled
// config installs a noop provider.
func InitTracing(ctx context.Context, cfg TracingConfig, log logging.Logger) (*Tracing, error) {
	if log == nil {
		log = logging.Noop()
	}
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		log.Debug(ctx, "tracing disabled")
		return &Tracing{log: log}, nil
	}

	exp, err := newExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "relay-simulator"
	}
	res, err := resource.New(ctx, resource.WithAttributes(attribute.String("service.name", serviceName)))
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SampleRatio)),
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	log.Info(ctx, "tracing enabled",
		logging.String("exporter", cfg.Exporter),
		logging.String("service_name", serviceName),
		logging.Float64("sample_ratio", cfg.SampleRatio),
	)
	return &Tracing{provider: tp, log: log}, nil
}

// Shutdown flushes pending spans, giving up after a few seconds. Failures are
// logged, not returned: there is nothing left to do with them at exit.
func (t *Tracing) Shutdown(ctx context.Context) {
	if t == nil || t.provider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := t.provider.Shutdown(ctx); err != nil {
		t.log.Warn(ctx, "tracing shutdown failed", logging.Err(err))
	}
}

func newExporter(ctx context.Context, cfg TracingConfig) (sdktrace.SpanExporter, error) {
	switch strings.ToLower(cfg.Exporter) {
	case "stdout", "":
		w := cfg.Writer
		if w == nil {
			w = os.Stdout
		}
		return stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithoutTimestamps())
	case "otlp", "otlpgrpc":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4317"
		}
		return otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		))
	default:
		return nil, fmt.Errorf("unsupported tracing exporter: %s", cfg.Exporter)
	}
}
