// Project: Hierarchical Bayesian Modeling of Arctic Sea-Ice Extent by Region

package main

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawQuantileInterpolates(t *testing.T) {
	sorted := []float64{1, 2, 3, 4, 5}

	assert.Equal(t, 1.0, drawQuantile(sorted, 0))
	assert.Equal(t, 5.0, drawQuantile(sorted, 1))
	assert.InDelta(t, 3.0, drawQuantile(sorted, 0.5), 1e-12)
	assert.InDelta(t, 1.4, drawQuantile(sorted, 0.1), 1e-12)
	assert.True(t, math.IsNaN(drawQuantile(nil, 0.5)))
}

func TestAutocorrLagZeroIsOne(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	x := make([]float64, 500)
	for i := range x {
		x[i] = rng.NormFloat64()
	}

	acf := autocorr(x, 20)
	require.Len(t, acf, 21)
	assert.InDelta(t, 1.0, acf[0], 1e-12)
	for k := 1; k <= 20; k++ {
		assert.Less(t, math.Abs(acf[k]), 0.2, "lag %d", k)
	}
}

func TestEffectiveSampleSizeIID(t *testing.T) {
	rng := rand.New(rand.NewSource(10))
	chains := make([][]float64, 4)
	for c := range chains {
		chains[c] = make([]float64, 500)
		for i := range chains[c] {
			chains[c][i] = rng.NormFloat64()
		}
	}

	ess := effectiveSampleSize(chains)
	// Independent draws: ESS near the total draw count
	assert.Greater(t, ess, 1200.0)
	assert.LessOrEqual(t, ess, 2000.0)
}

func TestEffectiveSampleSizeCorrelatedChain(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	x := make([]float64, 2000)
	x[0] = rng.NormFloat64()
	for i := 1; i < len(x); i++ {
		// Strongly autocorrelated AR(1) walk
		x[i] = 0.95*x[i-1] + 0.1*rng.NormFloat64()
	}

	ess := effectiveSampleSize([][]float64{x})
	assert.Less(t, ess, 500.0)
	assert.Greater(t, ess, 0.0)
}

func TestSplitRHatMixedChains(t *testing.T) {
	rng := rand.New(rand.NewSource(12))
	chains := make([][]float64, 4)
	for c := range chains {
		chains[c] = make([]float64, 400)
		for i := range chains[c] {
			chains[c][i] = rng.NormFloat64()
		}
	}

	rhat := splitRHat(chains)
	assert.InDelta(t, 1.0, rhat, 0.05)
}

func TestSplitRHatDetectsDisagreeingChains(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	chains := make([][]float64, 2)
	for c := range chains {
		chains[c] = make([]float64, 400)
		for i := range chains[c] {
			// Chains stuck in different modes
			chains[c][i] = float64(c)*5 + 0.1*rng.NormFloat64()
		}
	}

	assert.Greater(t, splitRHat(chains), 1.5)
}

func TestSummarizeFitNaturalScale(t *testing.T) {
	panel := makeTestPanel(20, 10, 0.1)
	m := NewHierModel(panel, testPriors())

	// Hand-built draw set with a fixed log-sigma
	logSigma := math.Log(0.25)
	chains := make([]ChainResult, 2)
	for c := range chains {
		for i := 0; i < 50; i++ {
			draw := make([]float64, m.NumParams())
			draw[idxIntercept] = 13 + 0.001*float64(i)
			draw[idxLogSigma] = logSigma
			draw[idxLogTau] = math.Log(0.5)
			chains[c].Draws = append(chains[c].Draws, draw)
		}
	}
	fit := &FitResult{Variant: m, Chains: chains}

	rows := SummarizeFit(fit)
	require.Len(t, rows, m.NumParams())
	byName := make(map[string]ParamSummary)
	for _, r := range rows {
		byName[r.Name] = r
	}
	// Reported on the natural scale, not log
	assert.InDelta(t, 0.25, byName["sigma"].Mean, 1e-9)
	assert.InDelta(t, 0.5, byName["tau"].Median, 1e-9)
	assert.True(t, byName["intercept"].Q2_5 <= byName["intercept"].Median)
	assert.True(t, byName["intercept"].Median <= byName["intercept"].Q97_5)
}

func TestCheckConvergenceFlagsProblems(t *testing.T) {
	panel := makeTestPanel(21, 8, 0.1)
	m := NewHierModel(panel, testPriors())
	fit := &FitResult{Variant: m, Chains: []ChainResult{{Divergences: 3}}}

	rows := []ParamSummary{
		{Name: "sigma", RHat: 1.3, ESS: 20},
		{Name: "intercept", RHat: 1.0, ESS: 900},
	}
	caveats := CheckConvergence(fit, rows)
	assert.Contains(t, caveats, "divergent proposals present")
	assert.Contains(t, caveats, "Rhat above threshold: sigma")
	assert.Contains(t, caveats, "low effective sample size: sigma")
	assert.Len(t, caveats, 3)
}

func TestReplicateDrawsCountAndLength(t *testing.T) {
	panel := makeTestPanel(22, 10, 0.1)
	m := NewHierModel(panel, testPriors())

	fit, err := FitModel(m, quickSampler(55))
	require.NoError(t, err)

	reps := ReplicateDraws(fit, 25, 99)
	require.Len(t, reps, 25)
	for _, rep := range reps {
		assert.Len(t, rep, panel.Len())
	}
}
