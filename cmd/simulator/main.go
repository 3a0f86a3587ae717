package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/signalsfoundry/relay-network-simulator/internal/config"
	"github.com/signalsfoundry/relay-network-simulator/internal/logging"
	"github.com/signalsfoundry/relay-network-simulator/internal/observability"
	sim "github.com/signalsfoundry/relay-network-simulator/internal/sim/state"
	"github.com/signalsfoundry/relay-network-simulator/kb"
	"github.com/signalsfoundry/relay-network-simulator/timectrl"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML, JSON or TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "simulator: %v\n", err)
		os.Exit(1)
	}
}

// run builds the scene described by cfg and steps it until the configured
// tick count is reached or ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, out io.Writer) error {
	log := logging.New(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: out,
	})
	ctx = logging.ContextWithLogger(ctx, log)

	tracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
		Writer:      out,
	}, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer tracing.Shutdown(context.Background())

	collector, err := observability.NewSceneCollector(prometheus.NewRegistry())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	metricsSrv := serveMetrics(cfg.Metrics.Address, collector, log)
	defer func() {
		if metricsSrv == nil {
			return
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	scene, err := sim.NewScene(kb.NewKnowledgeBase(), log, sim.WithMetricsRecorder(collector))
	if err != nil {
		return err
	}
	defer scene.Close()
	if err := sim.LoadScenario(scene, cfg.Scenario); err != nil {
		return fmt.Errorf("load scenario: %w", err)
	}

	mode := timectrl.RealTime
	if cfg.Sim.Accelerated {
		mode = timectrl.Accelerated
	}
	tc := timectrl.NewTimeController(cfg.Sim.Tick, cfg.Sim.AngleStep, mode)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	reportEvery := cfg.Sim.ReportEvery
	if reportEvery <= 0 {
		reportEvery = 1
	}
	route := cfg.Scenario.Route
	if route.Start != "" {
		runCtx = logging.ContextWithLogger(runCtx, log.With(
			logging.String("monitor", route.Start+" -> "+route.Goal),
		))
	}
	tickLog := logging.FromContext(runCtx, log)

	var stepErr error
	tc.AddListener(func(tick int, angle float64) {
		if err := scene.Step(runCtx, angle); err != nil {
			stepErr = err
			cancel()
			return
		}
		if route.Start == "" {
			if tick%reportEvery == 0 {
				bodies, sats := scene.Positions()
				tickLog.Info(runCtx, "tick",
					logging.Int("tick", tick),
					logging.Int("bodies", len(bodies)),
					logging.Int("satellites", len(sats)),
				)
			}
			return
		}

		r, avg := scene.MonitorRoute(runCtx, route.Start, route.Goal)
		if tick%reportEvery == 0 {
			tickLog.Info(runCtx, "route",
				logging.Int("tick", tick),
				logging.String("path", strings.Join(r.Nodes, " -> ")),
				logging.Int("quality", r.Quality),
				logging.Float64("distance", r.Distance),
				logging.Float64("average_quality", avg),
			)
		}
	})

	log.Info(ctx, "simulation started",
		logging.Duration("tick", cfg.Sim.Tick),
		logging.Float64("angle_step", cfg.Sim.AngleStep),
		logging.Int("max_ticks", cfg.Sim.Ticks),
		logging.Any("accelerated", cfg.Sim.Accelerated),
	)
	<-tc.Start(runCtx, cfg.Sim.Ticks)

	if stepErr != nil {
		return fmt.Errorf("step: %w", stepErr)
	}
	fields := []logging.Field{
		logging.Int("ticks", tc.Ticks()),
		logging.Float64("angle", tc.Angle()),
	}
	if route.Start != "" {
		fields = append(fields, logging.Float64("average_quality", scene.RouteMonitor().Average()))
	}
	log.Info(ctx, "simulation stopped", fields...)
	return nil
}

func serveMetrics(addr string, collector *observability.SceneCollector, log logging.Logger) *http.Server {
	if collector == nil || addr == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Warn(context.Background(), "metrics server exited", logging.Err(err))
		}
	}()

	log.Info(context.Background(), "serving Prometheus metrics", logging.String("addr", addr))
	return srv
}
