// Project: Hierarchical Bayesian Modeling of Arctic Sea-Ice Extent by Region

package main

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Sampling-scale parameter layout shared by both variants. Scales are
// sampled as logs so the chain moves on an unconstrained space; the AR
// coefficient is sampled as atanh(phi) so |phi| < 1 by construction.
const (
	idxIntercept = 0
	idxSlope     = 1
	idxLogSigma  = 2
	idxLogTau    = 3
)

// logDensity evaluates the prior at a natural-scale value.
func (pr Prior) logDensity(x float64) float64 {
	switch pr.Dist {
	case "halfnormal":
		if x < 0 {
			return math.Inf(-1)
		}
		return math.Ln2 + distuv.Normal{Mu: 0, Sigma: pr.Sigma}.LogProb(x)
	default:
		return distuv.Normal{Mu: pr.Mu, Sigma: pr.Sigma}.LogProb(x)
	}
}

// hierBase carries everything the two variants share: the panel, the
// prior set, the centred fixed effect, and the per-region observation
// blocks (contiguous and year-ordered, since the panel is sorted).
type hierBase struct {
	panel    *Panel
	priors   PriorSet
	yearMean float64
	// start/end index of each region's block in panel.Obs
	blocks [][2]int
	// response mean and SD, used for chain initialisation
	logMean float64
	logSD   float64
}

func newHierBase(panel *Panel, priors PriorSet) hierBase {
	ys := panel.LogValues()
	sd := 0.5
	if len(ys) > 1 {
		if s := stat.StdDev(ys, nil); s > 0 {
			sd = s
		}
	}
	b := hierBase{
		panel:    panel,
		priors:   priors,
		yearMean: panel.MeanYear(),
		logMean:  stat.Mean(ys, nil),
		logSD:    sd,
	}
	start := 0
	for i := 1; i <= len(panel.Obs); i++ {
		if i == len(panel.Obs) || panel.Obs[i].Region != panel.Obs[start].Region {
			b.blocks = append(b.blocks, [2]int{start, i})
			start = i
		}
	}
	return b
}

func (b *hierBase) numRegions() int { return len(b.blocks) }

// regionOffset is the index of the first per-region intercept in theta.
func (b *hierBase) mean(o Observation, theta []float64, regionOffset, region int) float64 {
	return theta[idxIntercept] +
		theta[idxSlope]*(float64(o.Year)-b.yearMean) +
		theta[regionOffset+region]
}

// logPriorShared accumulates the four shared prior terms plus the
// hierarchical term on the region intercepts. Scale parameters carry
// the log-transform Jacobian.
func (b *hierBase) logPriorShared(theta []float64, regionOffset int) float64 {
	sigma := math.Exp(theta[idxLogSigma])
	tau := math.Exp(theta[idxLogTau])
	if sigma <= 0 || tau <= 0 || math.IsInf(sigma, 1) || math.IsInf(tau, 1) {
		return math.Inf(-1)
	}

	lp := 0.0
	lp += b.priors.Intercept.logDensity(theta[idxIntercept])
	lp += b.priors.Slope.logDensity(theta[idxSlope])
	lp += b.priors.Sigma.logDensity(sigma) + theta[idxLogSigma]
	lp += b.priors.Tau.logDensity(tau) + theta[idxLogTau]

	group := distuv.Normal{Mu: 0, Sigma: tau}
	for r := 0; r < b.numRegions(); r++ {
		lp += group.LogProb(theta[regionOffset+r])
	}
	return lp
}

// initShared builds a jittered starting point around the data moments.
func (b *hierBase) initShared(dim int, rng *rand.Rand) []float64 {
	theta := make([]float64, dim)
	theta[idxIntercept] = b.logMean
	theta[idxSlope] = 0
	theta[idxLogSigma] = math.Log(b.logSD * 0.5)
	theta[idxLogTau] = math.Log(b.logSD)
	for i := range theta {
		theta[i] += 0.1 * rng.NormFloat64()
	}
	return theta
}

func (b *hierBase) sharedNames() []string {
	names := []string{"intercept", "year_slope", "sigma", "tau"}
	return names
}

func (b *hierBase) regionNames() []string {
	names := make([]string, 0, b.numRegions())
	for _, blk := range b.blocks {
		names = append(names, fmt.Sprintf("a[%s]", b.panel.Obs[blk[0]].Region))
	}
	return names
}

// --- Variant A: independent Gaussian residuals ---

// HierModel is the plain hierarchical regression: per-region intercepts
// around a population intercept, linear year trend, iid residuals.
type HierModel struct {
	hierBase
}

// NewHierModel builds variant A over a panel.
func NewHierModel(panel *Panel, priors PriorSet) *HierModel {
	return &HierModel{hierBase: newHierBase(panel, priors)}
}

const hierRegionOffset = 4

func (m *HierModel) Name() string   { return "hier" }
func (m *HierModel) NumParams() int { return hierRegionOffset + m.numRegions() }

func (m *HierModel) ParamNames() []string {
	return append(m.sharedNames(), m.regionNames()...)
}

func (m *HierModel) LogPosterior(theta []float64) float64 {
	lp := m.logPriorShared(theta, hierRegionOffset)
	if math.IsInf(lp, -1) {
		return lp
	}
	for _, t := range m.PointwiseLogLik(theta) {
		lp += t
	}
	return lp
}

func (m *HierModel) PointwiseLogLik(theta []float64) []float64 {
	sigma := math.Exp(theta[idxLogSigma])
	resid := distuv.Normal{Mu: 0, Sigma: sigma}

	out := make([]float64, m.panel.Len())
	for r, blk := range m.blocks {
		for i := blk[0]; i < blk[1]; i++ {
			o := m.panel.Obs[i]
			out[i] = resid.LogProb(o.LogValue - m.mean(o, theta, hierRegionOffset, r))
		}
	}
	return out
}

func (m *HierModel) Natural(theta []float64) []float64 {
	out := make([]float64, len(theta))
	copy(out, theta)
	out[idxLogSigma] = math.Exp(theta[idxLogSigma])
	out[idxLogTau] = math.Exp(theta[idxLogTau])
	return out
}

func (m *HierModel) Init(rng *rand.Rand) []float64 {
	return m.initShared(m.NumParams(), rng)
}

func (m *HierModel) SimulateReplicate(theta []float64, rng *rand.Rand) []float64 {
	sigma := math.Exp(theta[idxLogSigma])
	out := make([]float64, m.panel.Len())
	for r, blk := range m.blocks {
		for i := blk[0]; i < blk[1]; i++ {
			o := m.panel.Obs[i]
			out[i] = m.mean(o, theta, hierRegionOffset, r) + sigma*rng.NormFloat64()
		}
	}
	return out
}

// --- Variant B: AR(1) residuals within each region ---

// ARHierModel adds a first-order autoregressive residual process within
// each region, ordered by year. A gap of g missing years decays the
// residual correlation to phi^g with the matching inflated variance, so
// the process stays the stationary AR(1) observed at irregular times.
// Residuals remain independent across regions.
type ARHierModel struct {
	hierBase
}

// NewARHierModel builds variant B over a panel.
func NewARHierModel(panel *Panel, priors PriorSet) *ARHierModel {
	return &ARHierModel{hierBase: newHierBase(panel, priors)}
}

const (
	idxPhiZ        = 4
	arRegionOffset = 5
)

func (m *ARHierModel) Name() string   { return "hier-ar1" }
func (m *ARHierModel) NumParams() int { return arRegionOffset + m.numRegions() }

func (m *ARHierModel) ParamNames() []string {
	names := append(m.sharedNames(), "phi")
	return append(names, m.regionNames()...)
}

func (m *ARHierModel) LogPosterior(theta []float64) float64 {
	lp := m.logPriorShared(theta, arRegionOffset)
	if math.IsInf(lp, -1) {
		return lp
	}

	phi := math.Tanh(theta[idxPhiZ])
	if jac := 1 - phi*phi; jac > 0 {
		// Prior declared on the phi scale; tanh reparameterisation Jacobian
		lp += m.priors.Phi.logDensity(phi) + math.Log(jac)
	} else {
		return math.Inf(-1)
	}

	for _, t := range m.PointwiseLogLik(theta) {
		lp += t
	}
	return lp
}

// PointwiseLogLik decomposes each region's joint density into
// conditional terms, one per observation: the first year in a region
// uses the stationary marginal, later years condition on the previous
// observed residual.
func (m *ARHierModel) PointwiseLogLik(theta []float64) []float64 {
	sigma := math.Exp(theta[idxLogSigma])
	phi := math.Tanh(theta[idxPhiZ])

	out := make([]float64, m.panel.Len())
	// Stationary residual variance sigma^2 / (1 - phi^2)
	statVar := sigma * sigma / (1 - phi*phi)
	marginal := distuv.Normal{Mu: 0, Sigma: math.Sqrt(statVar)}

	for r, blk := range m.blocks {
		prevResid := 0.0
		prevYear := 0
		for i := blk[0]; i < blk[1]; i++ {
			o := m.panel.Obs[i]
			resid := o.LogValue - m.mean(o, theta, arRegionOffset, r)
			if i == blk[0] {
				out[i] = marginal.LogProb(resid)
			} else {
				gap := o.Year - prevYear
				rho := math.Pow(phi, float64(gap))
				condSD := math.Sqrt(statVar * (1 - rho*rho))
				out[i] = distuv.Normal{Mu: rho * prevResid, Sigma: condSD}.LogProb(resid)
			}
			prevResid = resid
			prevYear = o.Year
		}
	}
	return out
}

func (m *ARHierModel) Natural(theta []float64) []float64 {
	out := make([]float64, len(theta))
	copy(out, theta)
	out[idxLogSigma] = math.Exp(theta[idxLogSigma])
	out[idxLogTau] = math.Exp(theta[idxLogTau])
	out[idxPhiZ] = math.Tanh(theta[idxPhiZ])
	return out
}

func (m *ARHierModel) Init(rng *rand.Rand) []float64 {
	return m.initShared(m.NumParams(), rng)
}

func (m *ARHierModel) SimulateReplicate(theta []float64, rng *rand.Rand) []float64 {
	sigma := math.Exp(theta[idxLogSigma])
	phi := math.Tanh(theta[idxPhiZ])
	statSD := sigma / math.Sqrt(1-phi*phi)

	out := make([]float64, m.panel.Len())
	for r, blk := range m.blocks {
		prevResid := 0.0
		prevYear := 0
		for i := blk[0]; i < blk[1]; i++ {
			o := m.panel.Obs[i]
			var resid float64
			if i == blk[0] {
				resid = statSD * rng.NormFloat64()
			} else {
				gap := o.Year - prevYear
				rho := math.Pow(phi, float64(gap))
				condSD := statSD * math.Sqrt(1-rho*rho)
				resid = rho*prevResid + condSD*rng.NormFloat64()
			}
			out[i] = m.mean(o, theta, arRegionOffset, r) + resid
			prevResid = resid
			prevYear = o.Year
		}
	}
	return out
}
