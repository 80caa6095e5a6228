// Project: Hierarchical Bayesian Modeling of Arctic Sea-Ice Extent by Region

package main

import (
	"math"
	"math/rand"
	"sort"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

// Convergence thresholds used only to decide which warnings to log;
// the report always shows the numbers themselves.
const (
	rHatWarn = 1.05
	essWarn  = 100
)

// SummarizeFit builds the posterior summary table on the natural scale:
// moments, central 95% interval, effective sample size, and split-chain
// R-hat per parameter.
func SummarizeFit(fit *FitResult) []ParamSummary {
	m := fit.Variant
	names := m.ParamNames()
	dim := m.NumParams()

	// Natural-scale series per chain per parameter
	chains := make([][][]float64, len(fit.Chains))
	for c, ch := range fit.Chains {
		chains[c] = make([][]float64, dim)
		for j := 0; j < dim; j++ {
			chains[c][j] = make([]float64, 0, len(ch.Draws))
		}
		for _, draw := range ch.Draws {
			nat := m.Natural(draw)
			for j := 0; j < dim; j++ {
				chains[c][j] = append(chains[c][j], nat[j])
			}
		}
	}

	rows := make([]ParamSummary, dim)
	for j := 0; j < dim; j++ {
		series := make([][]float64, len(chains))
		var pooled []float64
		for c := range chains {
			series[c] = chains[c][j]
			pooled = append(pooled, chains[c][j]...)
		}

		sorted := make([]float64, len(pooled))
		copy(sorted, pooled)
		sort.Float64s(sorted)

		rows[j] = ParamSummary{
			Name:   names[j],
			Mean:   stat.Mean(pooled, nil),
			SD:     stat.StdDev(pooled, nil),
			Q2_5:   drawQuantile(sorted, 0.025),
			Median: drawQuantile(sorted, 0.5),
			Q97_5:  drawQuantile(sorted, 0.975),
			ESS:    effectiveSampleSize(series),
			RHat:   splitRHat(series),
		}
	}
	return rows
}

// CheckConvergence logs the non-fatal sampler caveats and returns them
// so the report can repeat them next to the tables.
func CheckConvergence(fit *FitResult, rows []ParamSummary) []string {
	var caveats []string
	if fit.TotalDivergences() > 0 {
		caveats = append(caveats, "divergent proposals present")
	}
	for _, s := range rows {
		if s.RHat > rHatWarn {
			caveats = append(caveats, "Rhat above threshold: "+s.Name)
			log.Warn().Str("model", fit.Variant.Name()).Str("param", s.Name).
				Float64("rhat", s.RHat).Msg("chains may not have mixed")
		}
		if s.ESS < essWarn {
			caveats = append(caveats, "low effective sample size: "+s.Name)
			log.Warn().Str("model", fit.Variant.Name()).Str("param", s.Name).
				Float64("ess", s.ESS).Msg("low effective sample size")
		}
	}
	return caveats
}

// drawQuantile returns the empirical q-quantile of an already sorted
// sample using linear interpolation between order statistics.
func drawQuantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[n-1]
	}

	pos := q * float64(n-1)
	below := int(math.Floor(pos))
	above := int(math.Ceil(pos))
	if above == below {
		return sorted[below]
	}
	weight := pos - float64(below)
	return sorted[below]*(1.0-weight) + sorted[above]*weight
}

// autocorr computes the autocorrelation of one series for lags
// 0..maxLag, normalised by the lag-0 variance.
func autocorr(x []float64, maxLag int) []float64 {
	n := len(x)
	if maxLag >= n {
		maxLag = n - 1
	}
	if maxLag < 0 {
		return nil
	}

	mean := stat.Mean(x, nil)
	variance := 0.0
	for _, v := range x {
		d := v - mean
		variance += d * d
	}
	if variance == 0 {
		return nil
	}

	acf := make([]float64, maxLag+1)
	for k := 0; k <= maxLag; k++ {
		sum := 0.0
		for i := k; i < n; i++ {
			sum += (x[i] - mean) * (x[i-k] - mean)
		}
		acf[k] = sum / variance
	}
	return acf
}

// effectiveSampleSize estimates ESS across chains from the chain-mean
// autocorrelation, truncated at the first negative paired sum (Geyer's
// initial positive sequence).
func effectiveSampleSize(chains [][]float64) float64 {
	total := 0
	minLen := math.MaxInt
	for _, c := range chains {
		total += len(c)
		if len(c) < minLen {
			minLen = len(c)
		}
	}
	if total == 0 || minLen < 4 {
		return 0
	}

	maxLag := minLen - 1
	if maxLag > 1000 {
		maxLag = 1000
	}

	avg := make([]float64, maxLag+1)
	contributing := 0
	for _, c := range chains {
		acf := autocorr(c, maxLag)
		if acf == nil {
			continue
		}
		contributing++
		for k := range avg {
			avg[k] += acf[k]
		}
	}
	if contributing == 0 {
		// Constant chains carry no information
		return 0
	}
	for k := range avg {
		avg[k] /= float64(contributing)
	}

	tauSum := 0.0
	for k := 1; k+1 <= maxLag; k += 2 {
		pair := avg[k] + avg[k+1]
		if pair < 0 {
			break
		}
		tauSum += pair
	}

	ess := float64(total) / (1 + 2*tauSum)
	if ess > float64(total) {
		ess = float64(total)
	}
	if ess < 0 {
		ess = 0
	}
	return ess
}

// splitRHat is the split-chain potential scale reduction factor: each
// chain is halved, then the usual between/within variance ratio is
// computed over the 2m half-chains. Values near 1 indicate mixing.
func splitRHat(chains [][]float64) float64 {
	var halves [][]float64
	for _, c := range chains {
		if len(c) < 4 {
			continue
		}
		mid := len(c) / 2
		halves = append(halves, c[:mid], c[mid:mid*2])
	}
	if len(halves) < 2 {
		return math.NaN()
	}

	n := len(halves[0])
	means := make([]float64, len(halves))
	variances := make([]float64, len(halves))
	for i, h := range halves {
		means[i] = stat.Mean(h, nil)
		variances[i] = stat.Variance(h, nil)
	}

	w := stat.Mean(variances, nil)
	b := float64(n) * stat.Variance(means, nil)
	if w == 0 {
		return math.NaN()
	}

	varPlus := float64(n-1)/float64(n)*w + b/float64(n)
	return math.Sqrt(varPlus / w)
}

// ReplicateDraws simulates replicated response vectors from up to n
// evenly spaced posterior draws, for the posterior predictive overlay.
func ReplicateDraws(fit *FitResult, n int, seed int64) [][]float64 {
	flat := fit.FlatDraws()
	if len(flat) == 0 || n <= 0 {
		return nil
	}
	if n > len(flat) {
		n = len(flat)
	}
	step := len(flat) / n

	rng := rand.New(rand.NewSource(seed))
	out := make([][]float64, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, fit.Variant.SimulateReplicate(flat[i*step], rng))
	}
	return out
}
