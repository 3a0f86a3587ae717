// Package config loads simulator settings from an optional config file,
// RELAYSIM_* environment variables and built-in defaults, in that order of
// precedence (env wins over file).
package config

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/signalsfoundry/relay-network-simulator/model"
)

// EnvPrefix is prepended to every environment override, e.g.
// RELAYSIM_SIM_TICK=50ms.
const EnvPrefix = "RELAYSIM"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// SimConfig controls the tick loop.
type SimConfig struct {
	Tick        time.Duration `mapstructure:"tick"`
	AngleStep   float64       `mapstructure:"angle_step"`
	Ticks       int           `mapstructure:"ticks"` // 0 runs until interrupted
	Accelerated bool          `mapstructure:"accelerated"`
	ReportEvery int           `mapstructure:"report_every"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Address string `mapstructure:"address"` // empty disables the endpoint
}

// TracingConfig controls OpenTelemetry tracing.
type TracingConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	Exporter    string  `mapstructure:"exporter"`
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
	ServiceName string  `mapstructure:"service_name"`
}

// Config is the full simulator configuration.
type Config struct {
	Sim      SimConfig      `mapstructure:"sim"`
	Log      LogConfig      `mapstructure:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Scenario model.Scenario `mapstructure:"scenario"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("sim.tick", 10*time.Millisecond)
	v.SetDefault("sim.angle_step", 0.001)
	v.SetDefault("sim.ticks", 0)
	v.SetDefault("sim.accelerated", false)
	v.SetDefault("sim.report_every", 100)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("metrics.address", ":9090")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.exporter", "stdout")
	v.SetDefault("tracing.endpoint", "")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tracing.service_name", "relay-simulator")

	v.SetDefault("scenario.root.name", "Center")
	v.SetDefault("scenario.root.radius", 1000.0)
	v.SetDefault("scenario.root.soi_radius", 100000.0)
	v.SetDefault("scenario.root.min_parking_orbit", 1.0)
	v.SetDefault("scenario.route.start", "")
	v.SetDefault("scenario.route.goal", "")
}

// Load reads configuration from path (any format viper understands; empty
// means defaults and environment only) and validates it.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that would otherwise fail deep inside the run loop.
func (c *Config) Validate() error {
	if c.Sim.Tick <= 0 {
		return fmt.Errorf("%w: sim.tick must be positive, got %s", ErrInvalidConfig, c.Sim.Tick)
	}
	if c.Sim.Ticks < 0 {
		return fmt.Errorf("%w: sim.ticks must not be negative", ErrInvalidConfig)
	}
	if c.Tracing.SampleRatio < 0 || c.Tracing.SampleRatio > 1 {
		return fmt.Errorf("%w: tracing.sample_ratio must be within [0,1], got %v", ErrInvalidConfig, c.Tracing.SampleRatio)
	}

	if !finite(c.Sim.AngleStep) {
		return fmt.Errorf("%w: sim.angle_step must be finite", ErrInvalidConfig)
	}

	sc := c.Scenario
	if !finite(sc.Root.Radius, sc.Root.SOIRadius, sc.Root.MinParkingOrbit) {
		return fmt.Errorf("%w: scenario.root dimensions must be finite", ErrInvalidConfig)
	}
	if sc.Root.Radius <= 0 || sc.Root.SOIRadius <= 0 {
		return fmt.Errorf("%w: scenario.root radius and soi_radius must be positive", ErrInvalidConfig)
	}
	for _, b := range sc.Bodies {
		if b.Name == "" {
			return fmt.Errorf("%w: scenario body without a name", ErrInvalidConfig)
		}
		if !finite(b.Radius, b.SOIRadius, b.MinParkingOrbit, b.OrbitHeight) {
			return fmt.Errorf("%w: body %q dimensions must be finite", ErrInvalidConfig, b.Name)
		}
		if b.Color != "" {
			if _, err := model.ParseHexColor(b.Color); err != nil {
				return fmt.Errorf("%w: body %q: %v", ErrInvalidConfig, b.Name, err)
			}
		}
	}
	for _, cs := range sc.Constellations {
		if cs.Anchor == "" {
			return fmt.Errorf("%w: constellation %q has no anchor", ErrInvalidConfig, cs.Name)
		}
		if !finite(cs.OrbitHeight) {
			return fmt.Errorf("%w: constellation %q orbit_height must be finite", ErrInvalidConfig, cs.Name)
		}
		if cs.Size != 0 && cs.Size < model.MinConstellationSize {
			return fmt.Errorf("%w: constellation %q size %d below %d", ErrInvalidConfig, cs.Name, cs.Size, model.MinConstellationSize)
		}
		if cs.Rating.Value != 0 {
			r, err := cs.Rating.Rating()
			if err != nil {
				return fmt.Errorf("%w: constellation %q: %v", ErrInvalidConfig, cs.Name, err)
			}
			if _, err := model.DecodeRating(r); err != nil {
				return fmt.Errorf("%w: constellation %q: %v", ErrInvalidConfig, cs.Name, err)
			}
		}
	}
	if (sc.Route.Start == "") != (sc.Route.Goal == "") {
		return fmt.Errorf("%w: scenario.route needs both start and goal", ErrInvalidConfig)
	}
	return nil
}

func finite(vals ...float64) bool {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
