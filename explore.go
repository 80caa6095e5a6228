// Project: Hierarchical Bayesian Modeling of Arctic Sea-Ice Extent by Region

package main

import (
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// SummarizeByRegion computes count, mean, SD, min, max of the annual
// extent per region. Regions absent from the panel produce no row.
func SummarizeByRegion(p *Panel) []SummaryStat {
	groups := make(map[string][]float64)
	for _, o := range p.Obs {
		groups[o.Region] = append(groups[o.Region], o.Value)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([]SummaryStat, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, summarizeGroup(k, groups[k]))
	}
	return rows
}

// SummarizeByYear is the same table grouped by calendar year.
func SummarizeByYear(p *Panel) []SummaryStat {
	groups := make(map[int][]float64)
	for _, o := range p.Obs {
		groups[o.Year] = append(groups[o.Year], o.Value)
	}
	years := make([]int, 0, len(groups))
	for y := range groups {
		years = append(years, y)
	}
	sort.Ints(years)

	rows := make([]SummaryStat, 0, len(years))
	for _, y := range years {
		rows = append(rows, summarizeGroup(strconv.Itoa(y), groups[y]))
	}
	return rows
}

func summarizeGroup(label string, vals []float64) SummaryStat {
	s := SummaryStat{
		Group: label,
		Count: len(vals),
		Mean:  stat.Mean(vals, nil),
		Min:   floats.Min(vals),
		Max:   floats.Max(vals),
	}
	if len(vals) > 1 {
		s.SD = stat.StdDev(vals, nil)
	}
	return s
}

// CorrelationMatrix computes the pairwise Pearson correlation of annual
// extent between regions over the years both regions observe. Pairs
// with fewer than two overlapping years are undefined and reported NaN.
// The matrix is symmetric with 1.0 on the diagonal for every region
// with at least two valid years.
func CorrelationMatrix(p *Panel) ([]string, [][]float64) {
	byRegion := make(map[string]map[int]float64)
	for _, o := range p.Obs {
		if byRegion[o.Region] == nil {
			byRegion[o.Region] = make(map[int]float64)
		}
		byRegion[o.Region][o.Year] = o.Value
	}

	regions := p.Regions
	corr := make([][]float64, len(regions))
	for i := range corr {
		corr[i] = make([]float64, len(regions))
	}

	for i, ri := range regions {
		for j := i; j < len(regions); j++ {
			rj := regions[j]
			c := overlapCorrelation(byRegion[ri], byRegion[rj])
			corr[i][j] = c
			corr[j][i] = c
		}
	}
	return regions, corr
}

// overlapCorrelation correlates two year-indexed series over their
// common years, excluding (not imputing) years missing in either.
func overlapCorrelation(a, b map[int]float64) float64 {
	years := make([]int, 0, len(a))
	for y := range a {
		if _, ok := b[y]; ok {
			years = append(years, y)
		}
	}
	if len(years) < 2 {
		return math.NaN()
	}
	sort.Ints(years)

	xs := make([]float64, len(years))
	ys := make([]float64, len(years))
	for i, y := range years {
		xs[i] = a[y]
		ys[i] = b[y]
	}
	// Degenerate series (zero variance) have no defined correlation
	if stat.Variance(xs, nil) == 0 || stat.Variance(ys, nil) == 0 {
		return math.NaN()
	}
	return stat.Correlation(xs, ys, nil)
}
