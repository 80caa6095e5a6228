// Project: Hierarchical Bayesian Modeling of Arctic Sea-Ice Extent by Region

package main

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/rs/zerolog/log"
)

// FitModel runs the configured number of independent Metropolis chains
// for one model variant and returns the retained draws. Chains share
// only the read-only model and config; each gets its own RNG seeded
// from the master seed, runs on its own goroutine, and synchronises
// once at completion.
//
// Warmup iterations adapt the proposal (diagonal preconditioner from a
// running variance of the chain, global scale steered toward the target
// acceptance rate) and are discarded. Divergent proposals during the
// retained phase are counted and surfaced, never fatal.
func FitModel(m ModelVariant, cfg SamplerConfig) (*FitResult, error) {
	if m == nil {
		return nil, fmt.Errorf("no model provided")
	}
	dim := m.NumParams()
	if dim <= 0 {
		return nil, fmt.Errorf("model %s has no parameters", m.Name())
	}

	// Fail the variant up front if the posterior cannot be evaluated
	// at a starting point: this is the catastrophic case, unlike the
	// in-run divergences below.
	probe := rand.New(rand.NewSource(cfg.Seed))
	if lp := m.LogPosterior(m.Init(probe)); !isFinite(lp) {
		return nil, fmt.Errorf("model %s: non-finite log posterior at the initial point", m.Name())
	}

	// Per-chain seeds so RNG is not shared across goroutines
	masterRng := rand.New(rand.NewSource(cfg.Seed))
	seeds := make([]int64, cfg.Chains)
	for c := range seeds {
		seeds[c] = masterRng.Int63()
	}

	log.Info().
		Str("model", m.Name()).
		Int("chains", cfg.Chains).
		Int("warmup", cfg.Warmup).
		Int("samples", cfg.Samples).
		Int64("seed", cfg.Seed).
		Msg("starting sampler")

	results := make([]ChainResult, cfg.Chains)

	var wg sync.WaitGroup
	wg.Add(cfg.Chains)
	for c := 0; c < cfg.Chains; c++ {
		go func(c int) {
			defer wg.Done()
			results[c] = runChain(m, cfg, seeds[c])
		}(c)
	}
	wg.Wait()

	fit := &FitResult{Variant: m, Chains: results}
	if d := fit.TotalDivergences(); d > 0 {
		log.Warn().Str("model", m.Name()).Int("divergences", d).
			Msg("divergent proposals during sampling; results carry caveats")
	}
	log.Info().
		Str("model", m.Name()).
		Int("draws", fit.TotalDraws()).
		Float64("acceptance", fit.AcceptanceRate()).
		Msg("sampler finished")

	return fit, nil
}

// runChain executes one chain: warmup with adaptation, then sampling.
func runChain(m ModelVariant, cfg SamplerConfig, seed int64) ChainResult {
	rng := rand.New(rand.NewSource(seed))
	dim := m.NumParams()

	theta := m.Init(rng)
	lp := m.LogPosterior(theta)

	// Walk away from a non-finite start before sampling proper;
	// FitModel already probed the posterior, so a few retries suffice.
	for tries := 0; !isFinite(lp) && tries < 50; tries++ {
		theta = m.Init(rng)
		lp = m.LogPosterior(theta)
	}

	scale := cfg.InitStepScale

	// Welford accumulators for the diagonal preconditioner
	count := 0
	runMean := make([]float64, dim)
	runM2 := make([]float64, dim)

	prop := make([]float64, dim)
	windowAccepts := 0

	res := ChainResult{Seed: seed, Draws: make([][]float64, 0, cfg.Samples)}

	total := cfg.Warmup + cfg.Samples
	for iter := 0; iter < total; iter++ {
		warmup := iter < cfg.Warmup

		for j := 0; j < dim; j++ {
			prop[j] = theta[j] + scale*proposalWidth(count, runM2[j])*rng.NormFloat64()
		}

		lpProp := m.LogPosterior(prop)
		switch {
		case !isFinite(lpProp):
			// Divergent proposal: reject, keep the chain alive
			if !warmup {
				res.Divergences++
			}
		case math.Log(rng.Float64()) < lpProp-lp:
			copy(theta, prop)
			lp = lpProp
			windowAccepts++
			if !warmup {
				res.Accepted++
			}
		}

		if warmup {
			count++
			for j := 0; j < dim; j++ {
				delta := theta[j] - runMean[j]
				runMean[j] += delta / float64(count)
				runM2[j] += delta * (theta[j] - runMean[j])
			}
			if (iter+1)%cfg.AdaptWindow == 0 {
				rate := float64(windowAccepts) / float64(cfg.AdaptWindow)
				scale *= math.Exp(1.5 * (rate - cfg.TargetAccept))
				windowAccepts = 0
			}
		} else {
			draw := make([]float64, dim)
			copy(draw, theta)
			res.Draws = append(res.Draws, draw)
		}
	}

	return res
}

// proposalWidth is the per-coordinate step width: the running standard
// deviation of the chain once enough warmup history exists, unit width
// before that.
func proposalWidth(count int, m2 float64) float64 {
	if count < 10 {
		return 1
	}
	sd := math.Sqrt(m2 / float64(count-1))
	if sd < 1e-3 {
		return 1e-3
	}
	return sd
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
