package observability

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/signalsfoundry/relay-network-simulator/internal/logging"
)

func TestInitTracingStdoutExportsSpans(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer

	tracing, err := InitTracing(ctx, TracingConfig{
		Enabled:     true,
		Exporter:    "stdout",
		SampleRatio: 1,
		Writer:      &buf,
	}, logging.Noop())
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	t.Cleanup(func() {
		_, _ = InitTracing(ctx, TracingConfig{}, logging.Noop())
	})

	_, span := StartRoute(ctx, Tracer(), "Inner", "Outer")
	span.End()

	tracing.Shutdown(ctx)
	if !strings.Contains(buf.String(), SpanRoute) {
		t.Fatalf("expected exported span in output, got %q", buf.String())
	}
}

func TestInitTracingRejectsUnknownExporter(t *testing.T) {
	_, err := InitTracing(context.Background(), TracingConfig{Enabled: true, Exporter: "carrier-pigeon"}, nil)
	if err == nil {
		t.Fatalf("expected error for unsupported exporter")
	}
}

func TestInitTracingDisabledIsNoop(t *testing.T) {
	tracing, err := InitTracing(context.Background(), TracingConfig{}, nil)
	if err != nil {
		t.Fatalf("InitTracing: %v", err)
	}
	tracing.Shutdown(context.Background())

	_, span := Tracer().Start(context.Background(), "ignored")
	if span.SpanContext().IsSampled() {
		t.Fatalf("expected noop span when tracing is disabled")
	}
	span.End()
}

func recordingTracer(t *testing.T) (*tracetest.SpanRecorder, *sdktrace.TracerProvider) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return rec, tp
}

func attrsOf(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestRouteSpanAttributes(t *testing.T) {
	rec, tp := recordingTracer(t)
	tracer := tp.Tracer("test")

	_, found := StartRoute(context.Background(), tracer, "A", "B")
	EndRoute(found, OutcomeFound, 60, 2)
	found.End()

	_, unknown := StartRoute(context.Background(), tracer, "A", "Nowhere")
	EndRoute(unknown, OutcomeUnknown, 0, 0)
	unknown.End()

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}
	if spans[0].Name() != SpanRoute {
		t.Fatalf("span name = %q, want %q", spans[0].Name(), SpanRoute)
	}
	attrs := attrsOf(spans[0])
	if attrs[AttrRouteStart].AsString() != "A" || attrs[AttrRouteOutcome].AsString() != OutcomeFound {
		t.Fatalf("unexpected attributes: %v", attrs)
	}
	if attrs[AttrRouteQuality].AsInt64() != 60 || attrs[AttrRouteHops].AsInt64() != 2 {
		t.Fatalf("unexpected attributes: %v", attrs)
	}
	if spans[0].Status().Code == codes.Error {
		t.Fatalf("found route marked as error")
	}
	if spans[1].Status().Code != codes.Error {
		t.Fatalf("unknown endpoint status = %v, want error", spans[1].Status().Code)
	}
}

func TestStepAndGraphSpans(t *testing.T) {
	rec, tp := recordingTracer(t)
	tracer := tp.Tracer("test")

	ctx, step := StartStep(context.Background(), tracer, 0.001)
	_, graph := StartGraphBuild(ctx, tracer)
	EndGraphBuild(graph, 3, 4)
	graph.End()
	FailSpan(step, errors.New("boom"), "advance body")
	EndStep(step, 2, 6)
	step.End()

	spans := rec.Ended()
	if len(spans) != 2 {
		t.Fatalf("ended spans = %d, want 2", len(spans))
	}
	g, s := spans[0], spans[1]
	if g.Name() != SpanBuildGraph || s.Name() != SpanStep {
		t.Fatalf("span names = %q, %q", g.Name(), s.Name())
	}
	if g.Parent().SpanID() != s.SpanContext().SpanID() {
		t.Fatalf("graph span is not a child of the step span")
	}
	if attrsOf(g)[AttrGraphEdges].AsInt64() != 4 {
		t.Fatalf("graph attributes = %v", attrsOf(g))
	}
	sa := attrsOf(s)
	if sa[AttrAngle].AsFloat64() != 0.001 || sa[AttrSatellites].AsInt64() != 6 {
		t.Fatalf("step attributes = %v", sa)
	}
	if s.Status().Code != codes.Error || len(s.Events()) == 0 {
		t.Fatalf("step failure not recorded: status %v, events %d", s.Status(), len(s.Events()))
	}
}
