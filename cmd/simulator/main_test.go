package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/signalsfoundry/relay-network-simulator/internal/config"
	"github.com/signalsfoundry/relay-network-simulator/model"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load("")
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	cfg.Metrics.Address = ""
	cfg.Sim.Ticks = 20
	cfg.Sim.ReportEvery = 10
	cfg.Sim.Accelerated = true
	cfg.Scenario.Constellations = []model.ConstellationSpec{
		{Name: "Inner", OrbitHeight: 1000, Rating: model.RatingSpec{Value: 1, Magnitude: "G"}},
		{Name: "Outer", OrbitHeight: 2000, Rating: model.RatingSpec{Value: 1, Magnitude: "G"}},
	}
	for i := range cfg.Scenario.Constellations {
		cfg.Scenario.Constellations[i].Anchor = cfg.Scenario.Root.Name
	}
	cfg.Scenario.Route = model.RouteSpec{Start: "Inner", Goal: "Outer"}
	return cfg
}

func TestRunStepsAndReportsRoute(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := run(ctx, cfg, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}

	logs := out.String()
	for _, want := range []string{
		"scenario loaded",
		`msg="constellation added"`,
		"simulation started",
		`monitor="Inner -> Outer"`,
		"simulation stopped",
		"ticks=20",
		"angle=",
	} {
		if !strings.Contains(logs, want) {
			t.Fatalf("output missing %q:\n%s", want, logs)
		}
	}
	if got := strings.Count(logs, "msg=route"); got != 2 {
		t.Fatalf("route reports = %d, want 2", got)
	}
}

func TestRunWithoutRoute(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scenario.Route = model.RouteSpec{}
	var out bytes.Buffer

	if err := run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(out.String(), "msg=tick") {
		t.Fatalf("output missing tick report:\n%s", out.String())
	}
}

func TestRunRejectsBadScenario(t *testing.T) {
	cfg := testConfig(t)
	cfg.Scenario.Constellations[0].Anchor = "Nowhere"

	if err := run(context.Background(), cfg, &bytes.Buffer{}); err == nil {
		t.Fatalf("run() error = nil, want scenario failure")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sim.Ticks = 0
	cfg.Sim.Accelerated = false
	cfg.Sim.Tick = time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx, cfg, &bytes.Buffer{}) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatalf("run() did not stop after cancellation")
	}
}

func TestRunExampleConfig(t *testing.T) {
	cfg, err := config.Load("../../configs/relay.yaml")
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	cfg.Metrics.Address = ""
	cfg.Sim.Accelerated = true
	cfg.Sim.Ticks = 5
	cfg.Sim.ReportEvery = 5

	var out bytes.Buffer
	if err := run(context.Background(), cfg, &out); err != nil {
		t.Fatalf("run() error = %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "msg=route") {
		t.Fatalf("output missing route report:\n%s", out.String())
	}
}
