// Project: Hierarchical Bayesian Modeling of Arctic Sea-Ice Extent by Region

package main

import (
	"fmt"
	"image/color"
	"math"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// PlotLogHistogram draws the distribution of the log response.
func PlotLogHistogram(panel *Panel, path string) error {
	p := plot.New()
	p.Title.Text = "Log Annual Sea-Ice Extent"
	p.X.Label.Text = "ln(extent km²)"
	p.Y.Label.Text = "density"

	h, err := plotter.NewHist(plotter.Values(panel.LogValues()), 20)
	if err != nil {
		return fmt.Errorf("histogram: %w", err)
	}
	h.Normalize(1)
	h.FillColor = color.RGBA{R: 70, G: 130, B: 180, A: 255}
	p.Add(h)

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// PlotRegionSeries draws each region's annual extent over time.
func PlotRegionSeries(panel *Panel, path string) error {
	p := plot.New()
	p.Title.Text = "Annual Sea-Ice Extent by Region"
	p.X.Label.Text = "year"
	p.Y.Label.Text = "extent (km²)"

	byRegion := make(map[string]plotter.XYs)
	for _, o := range panel.Obs {
		byRegion[o.Region] = append(byRegion[o.Region],
			plotter.XY{X: float64(o.Year), Y: o.Value})
	}

	args := make([]interface{}, 0, 2*len(panel.Regions))
	for _, region := range panel.Regions {
		args = append(args, region, byRegion[region])
	}
	if err := plotutil.AddLines(p, args...); err != nil {
		return fmt.Errorf("region series: %w", err)
	}

	return p.Save(8*vg.Inch, 5*vg.Inch, path)
}

// PlotTraces writes one trace figure per headline parameter, each with
// one line per retained chain, to detect non-mixing by eye.
// Region intercepts are skipped; the headline parameters carry the
// model-comparison story.
func PlotTraces(fit *FitResult, outDir string) error {
	m := fit.Variant
	names := m.ParamNames()

	for j, name := range names {
		if strings.HasPrefix(name, "a[") {
			continue
		}

		p := plot.New()
		p.Title.Text = fmt.Sprintf("Trace: %s (%s)", name, m.Name())
		p.X.Label.Text = "iteration"
		p.Y.Label.Text = name

		args := make([]interface{}, 0, 2*len(fit.Chains))
		for c, chain := range fit.Chains {
			pts := make(plotter.XYs, len(chain.Draws))
			for i, draw := range chain.Draws {
				pts[i] = plotter.XY{X: float64(i), Y: m.Natural(draw)[j]}
			}
			args = append(args, fmt.Sprintf("chain %d", c+1), pts)
		}
		if err := plotutil.AddLines(p, args...); err != nil {
			return fmt.Errorf("trace %s: %w", name, err)
		}

		path := filepath.Join(outDir, fmt.Sprintf("trace_%s_%s.png", m.Name(), sanitizeName(name)))
		if err := p.Save(8*vg.Inch, 3*vg.Inch, path); err != nil {
			return err
		}
	}
	return nil
}

func sanitizeName(s string) string {
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			out = append(out, r)
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}

// PlotPPCOverlay draws the observed log-response density against the
// densities of replicated datasets drawn from the posterior.
func PlotPPCOverlay(panel *Panel, reps [][]float64, modelName, path string) error {
	obs := panel.LogValues()
	lo, hi := rangeWithMargin(obs, reps)
	grid := linspace(lo, hi, 128)

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Posterior Predictive Check (%s)", modelName)
	p.X.Label.Text = "ln(extent km²)"
	p.Y.Label.Text = "density"

	gray := color.RGBA{R: 170, G: 170, B: 170, A: 255}
	for _, rep := range reps {
		line, err := plotter.NewLine(densityCurve(rep, grid))
		if err != nil {
			return fmt.Errorf("replicate density: %w", err)
		}
		line.Color = gray
		line.Width = vg.Points(0.5)
		p.Add(line)
	}

	obsLine, err := plotter.NewLine(densityCurve(obs, grid))
	if err != nil {
		return fmt.Errorf("observed density: %w", err)
	}
	obsLine.Color = color.RGBA{R: 178, G: 34, B: 34, A: 255}
	obsLine.Width = vg.Points(2)
	p.Add(obsLine)
	p.Legend.Add("observed", obsLine)

	return p.Save(6*vg.Inch, 4*vg.Inch, path)
}

// densityCurve evaluates a Gaussian kernel density estimate of xs on
// the grid, with Silverman's bandwidth.
func densityCurve(xs, grid []float64) plotter.XYs {
	n := len(xs)
	sd := stat.StdDev(xs, nil)
	if sd == 0 || n < 2 {
		sd = 1
	}
	bw := 1.06 * sd * math.Pow(float64(n), -0.2)

	out := make(plotter.XYs, len(grid))
	norm := 1 / (float64(n) * bw * math.Sqrt(2*math.Pi))
	for i, g := range grid {
		sum := 0.0
		for _, x := range xs {
			z := (g - x) / bw
			sum += math.Exp(-0.5 * z * z)
		}
		out[i] = plotter.XY{X: g, Y: norm * sum}
	}
	return out
}

func rangeWithMargin(obs []float64, reps [][]float64) (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	scan := func(xs []float64) {
		for _, x := range xs {
			if x < lo {
				lo = x
			}
			if x > hi {
				hi = x
			}
		}
	}
	scan(obs)
	for _, rep := range reps {
		scan(rep)
	}
	margin := 0.05 * (hi - lo)
	if margin == 0 {
		margin = 1
	}
	return lo - margin, hi + margin
}

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + float64(i)*step
	}
	return out
}
