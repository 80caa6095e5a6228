// Project: Hierarchical Bayesian Modeling of Arctic Sea-Ice Extent by Region

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Sampler.Chains)
	assert.Equal(t, "halfnormal", cfg.Priors.Sigma.Dist)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfigOverlaysYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	content := "sampler:\n" +
		"  chains: 2\n" +
		"  seed: 99\n" +
		"priors:\n" +
		"  slope:\n" +
		"    dist: normal\n" +
		"    mu: -0.01\n" +
		"    sigma: 0.2\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	// Overridden fields
	assert.Equal(t, 2, cfg.Sampler.Chains)
	assert.Equal(t, int64(99), cfg.Sampler.Seed)
	assert.Equal(t, -0.01, cfg.Priors.Slope.Mu)
	// Untouched fields keep defaults
	assert.Equal(t, 2000, cfg.Sampler.Warmup)
	assert.Equal(t, "halfnormal", cfg.Priors.Tau.Dist)
}

func TestLoadConfigRejectsImproperPriors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	content := "priors:\n  sigma:\n    dist: halfnormal\n    sigma: 0\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scale must be > 0")
}

func TestLoadConfigRejectsBadSampler(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sampler.TargetAccept = 1.5
	assert.Error(t, cfg.Validate())

	cfg = DefaultConfig()
	cfg.Sampler.Chains = 0
	assert.Error(t, cfg.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
