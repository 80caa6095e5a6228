// Project: Hierarchical Bayesian Modeling of Arctic Sea-Ice Extent by Region

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// RunConfig collects everything a model run needs besides the data:
// prior declarations and sampler tuning. A YAML file can override any
// field; unset fields keep the defaults.
type RunConfig struct {
	Sampler SamplerConfig `yaml:"sampler"`
	Priors  PriorSet      `yaml:"priors"`
}

// DefaultConfig returns the baseline configuration. The intercept
// prior is centred near the log of typical regional extents (km^2);
// the rest are weakly informative but proper.
func DefaultConfig() RunConfig {
	return RunConfig{
		Sampler: SamplerConfig{
			Chains:        4,
			Warmup:        2000,
			Samples:       2000,
			Seed:          20060102,
			TargetAccept:  0.234,
			AdaptWindow:   50,
			InitStepScale: 0.1,
		},
		Priors: PriorSet{
			Intercept: Prior{Dist: "normal", Mu: 13, Sigma: 5},
			Slope:     Prior{Dist: "normal", Mu: 0, Sigma: 0.5},
			Sigma:     Prior{Dist: "halfnormal", Sigma: 1},
			Tau:       Prior{Dist: "halfnormal", Sigma: 2},
			Phi:       Prior{Dist: "normal", Mu: 0, Sigma: 0.5},
		},
	}
}

// LoadConfig overlays a YAML file on the defaults. An empty path
// returns the defaults unchanged.
func LoadConfig(path string) (RunConfig, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations the sampler cannot run with.
func (c RunConfig) Validate() error {
	s := c.Sampler
	if s.Chains <= 0 {
		return fmt.Errorf("sampler.chains must be > 0, got %d", s.Chains)
	}
	if s.Warmup < 0 || s.Samples <= 0 {
		return fmt.Errorf("sampler iterations invalid: warmup=%d samples=%d", s.Warmup, s.Samples)
	}
	if s.TargetAccept <= 0 || s.TargetAccept >= 1 {
		return fmt.Errorf("sampler.target_accept must be in (0,1), got %v", s.TargetAccept)
	}
	if s.AdaptWindow <= 0 {
		return fmt.Errorf("sampler.adapt_window must be > 0, got %d", s.AdaptWindow)
	}
	if s.InitStepScale <= 0 {
		return fmt.Errorf("sampler.init_step_scale must be > 0, got %v", s.InitStepScale)
	}
	for _, pr := range []struct {
		name string
		p    Prior
	}{
		{"intercept", c.Priors.Intercept},
		{"slope", c.Priors.Slope},
		{"sigma", c.Priors.Sigma},
		{"tau", c.Priors.Tau},
		{"phi", c.Priors.Phi},
	} {
		if pr.p.Sigma <= 0 {
			return fmt.Errorf("prior %s: scale must be > 0, got %v", pr.name, pr.p.Sigma)
		}
		switch pr.p.Dist {
		case "normal", "halfnormal":
		default:
			return fmt.Errorf("prior %s: unknown dist %q", pr.name, pr.p.Dist)
		}
	}
	return nil
}

// setupLogger configures the global zerolog logger for console output.
func setupLogger(verbose bool) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		Level(level).
		With().Timestamp().Logger()
}
