// Project: Hierarchical Bayesian Modeling of Arctic Sea-Ice Extent by Region

package main

import "math/rand"

// Observation is one annual regional mean of the extent metric.
type Observation struct {
	Region string
	// Calendar year of the aggregated monthly readings
	Year int
	// Mean ice extent in km^2, strictly positive after cleaning
	Value float64
	// Natural log of Value, the model response
	LogValue float64
}

// Panel is the long-format dataset fed to both models.
// Observations are unique per (Region, Year) and sorted by region, then year.
type Panel struct {
	Obs []Observation
	// Distinct region labels, sorted
	Regions []string
	// Distinct years present anywhere in the panel, sorted
	Years []int
}

// Len returns the number of observations in the panel.
func (p *Panel) Len() int { return len(p.Obs) }

// MeanYear is the arithmetic mean of the Year column, used to centre
// the fixed effect so the intercept sits at the sample midpoint.
func (p *Panel) MeanYear() float64 {
	if len(p.Obs) == 0 {
		return 0
	}
	sum := 0.0
	for _, o := range p.Obs {
		sum += float64(o.Year)
	}
	return sum / float64(len(p.Obs))
}

// LogValues returns the response column in observation order.
func (p *Panel) LogValues() []float64 {
	ys := make([]float64, len(p.Obs))
	for i, o := range p.Obs {
		ys[i] = o.LogValue
	}
	return ys
}

// Prior is a named distribution assigned to one parameter class.
// Dist is "normal" (location Mu, scale Sigma) or "halfnormal" (scale Sigma).
type Prior struct {
	Dist  string  `yaml:"dist"`
	Mu    float64 `yaml:"mu"`
	Sigma float64 `yaml:"sigma"`
}

// PriorSet holds the full prior declaration for a model run.
// All five are proper (finite variance); Phi is only read by the AR variant.
type PriorSet struct {
	Intercept Prior `yaml:"intercept"`
	Slope     Prior `yaml:"slope"`
	Sigma     Prior `yaml:"sigma"`
	Tau       Prior `yaml:"tau"`
	Phi       Prior `yaml:"phi"`
}

// SamplerConfig are the tuning inputs of the Metropolis sampler.
type SamplerConfig struct {
	// Number of independent chains, run in parallel
	Chains int `yaml:"chains"`
	// Warmup iterations per chain, discarded, with adaptation enabled
	Warmup int `yaml:"warmup"`
	// Retained sampling iterations per chain
	Samples int `yaml:"samples"`
	// Master RNG seed; per-chain seeds are derived from it
	Seed int64 `yaml:"seed"`
	// Acceptance rate the warmup adaptation steers toward
	TargetAccept float64 `yaml:"target_accept"`
	// Iterations between step-scale adjustments during warmup
	AdaptWindow int `yaml:"adapt_window"`
	// Initial global proposal scale before adaptation
	InitStepScale float64 `yaml:"init_step_scale"`
}

// ModelVariant is the shared fitting contract of the two competing
// model structures. Both are fit, diagnosed, and scored through this
// interface so the downstream code paths are identical.
type ModelVariant interface {
	// Short label used in reports and artifact file names
	Name() string
	// Dimension of the sampling-scale parameter vector
	NumParams() int
	// Names on the natural (reporting) scale, aligned with Natural()
	ParamNames() []string
	// Log prior + log likelihood at a sampling-scale vector.
	// Returns -Inf outside the support.
	LogPosterior(theta []float64) float64
	// Per-observation log likelihood terms, in panel order
	PointwiseLogLik(theta []float64) []float64
	// Maps a sampling-scale vector to the natural scale
	// (sigma, tau, phi instead of their unconstrained transforms)
	Natural(theta []float64) []float64
	// Starting point for one chain, jittered by rng
	Init(rng *rand.Rand) []float64
	// Draws one replicated response vector for a posterior draw
	SimulateReplicate(theta []float64, rng *rand.Rand) []float64
}

// ChainResult holds the retained draws of one chain.
// Draws are written once at the end of the chain's run and never mutated.
type ChainResult struct {
	// Samples x NumParams, sampling scale
	Draws [][]float64
	// Accepted proposals during the retained phase
	Accepted int
	// Proposals whose log-posterior evaluated non-finite
	Divergences int
	Seed        int64
}

// FitResult is the posterior draw set for one model variant.
type FitResult struct {
	Variant ModelVariant
	Chains  []ChainResult
}

// TotalDraws returns the number of retained draws across chains.
func (f *FitResult) TotalDraws() int {
	n := 0
	for _, c := range f.Chains {
		n += len(c.Draws)
	}
	return n
}

// TotalDivergences sums divergent proposals across chains.
func (f *FitResult) TotalDivergences() int {
	n := 0
	for _, c := range f.Chains {
		n += c.Divergences
	}
	return n
}

// AcceptanceRate is the pooled post-warmup acceptance rate.
func (f *FitResult) AcceptanceRate() float64 {
	acc, tot := 0, 0
	for _, c := range f.Chains {
		acc += c.Accepted
		tot += len(c.Draws)
	}
	if tot == 0 {
		return 0
	}
	return float64(acc) / float64(tot)
}

// FlatDraws concatenates all chains into one draw matrix.
func (f *FitResult) FlatDraws() [][]float64 {
	out := make([][]float64, 0, f.TotalDraws())
	for _, c := range f.Chains {
		out = append(out, c.Draws...)
	}
	return out
}

// ParamSummary is one row of a posterior summary table, natural scale.
type ParamSummary struct {
	Name   string
	Mean   float64
	SD     float64
	Q2_5   float64
	Median float64
	Q97_5  float64
	ESS    float64
	RHat   float64
}

// SummaryStat is one row of a grouped descriptive-statistics table.
type SummaryStat struct {
	Group string
	Count int
	Mean  float64
	SD    float64
	Min   float64
	Max   float64
}

// LOOResult is the PSIS leave-one-out score of one fitted model.
type LOOResult struct {
	Model string
	// Expected log predictive density, summed over observations
	ELPD float64
	// Standard error of ELPD
	SE float64
	// Per-observation elpd contributions, panel order
	Pointwise []float64
	// Pareto tail-shape diagnostic per observation; NaN when the
	// tail fit was not possible
	ParetoK []float64
	// Observations with ParetoK above the stability threshold
	NumHighK int
}

// LOOComparison is the signed ELPD difference between two models.
type LOOComparison struct {
	// Model names ranked by ELPD, best first
	Best  string
	Worst string
	// ELPD(best) - ELPD(worst), always >= 0
	Diff float64
	// Standard error of the paired pointwise differences
	DiffSE float64
}
