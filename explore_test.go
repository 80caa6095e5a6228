// Project: Hierarchical Bayesian Modeling of Arctic Sea-Ice Extent by Region

package main

import (
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// panelFromObs builds a panel with the loader's invariants: filled
// LogValue, sorted by region then year.
func panelFromObs(obs []Observation) *Panel {
	for i := range obs {
		if obs[i].LogValue == 0 && obs[i].Value > 0 {
			obs[i].LogValue = math.Log(obs[i].Value)
		}
	}
	sort.Slice(obs, func(i, j int) bool {
		if obs[i].Region != obs[j].Region {
			return obs[i].Region < obs[j].Region
		}
		return obs[i].Year < obs[j].Year
	})
	return &Panel{Obs: obs, Regions: distinctRegions(obs), Years: distinctYears(obs)}
}

func TestSummarizeByRegionStats(t *testing.T) {
	p := panelFromObs([]Observation{
		{Region: "Arctic", Year: 2019, Value: 10},
		{Region: "Arctic", Year: 2020, Value: 20},
		{Region: "Arctic", Year: 2021, Value: 30},
		{Region: "Bering Sea", Year: 2020, Value: 5},
	})

	rows := SummarizeByRegion(p)
	require.Len(t, rows, 2)

	arctic := rows[0]
	assert.Equal(t, "Arctic", arctic.Group)
	assert.Equal(t, 3, arctic.Count)
	assert.InDelta(t, 20, arctic.Mean, 1e-12)
	assert.InDelta(t, 10, arctic.SD, 1e-12)
	assert.InDelta(t, 10, arctic.Min, 1e-12)
	assert.InDelta(t, 30, arctic.Max, 1e-12)

	bering := rows[1]
	assert.Equal(t, 1, bering.Count)
	assert.Equal(t, 0.0, bering.SD)
}

func TestSummaryCountsSumToPanelSize(t *testing.T) {
	p := panelFromObs([]Observation{
		{Region: "A", Year: 2018, Value: 1},
		{Region: "A", Year: 2019, Value: 2},
		{Region: "B", Year: 2018, Value: 3},
		{Region: "C", Year: 2020, Value: 4},
	})

	for _, rows := range [][]SummaryStat{SummarizeByRegion(p), SummarizeByYear(p)} {
		total := 0
		for _, s := range rows {
			total += s.Count
		}
		assert.Equal(t, p.Len(), total)
	}
}

func TestSummarizeAbsentGroupHasNoRow(t *testing.T) {
	p := panelFromObs([]Observation{
		{Region: "A", Year: 2020, Value: 1},
	})
	rows := SummarizeByRegion(p)
	require.Len(t, rows, 1)
	assert.Equal(t, "A", rows[0].Group)
}

func TestCorrelationMatrixSymmetricWithUnitDiagonal(t *testing.T) {
	p := panelFromObs([]Observation{
		{Region: "A", Year: 2018, Value: 1}, {Region: "A", Year: 2019, Value: 2}, {Region: "A", Year: 2020, Value: 3},
		{Region: "B", Year: 2018, Value: 6}, {Region: "B", Year: 2019, Value: 4}, {Region: "B", Year: 2020, Value: 2},
	})

	regions, corr := CorrelationMatrix(p)
	require.Equal(t, []string{"A", "B"}, regions)

	for i := range regions {
		assert.InDelta(t, 1.0, corr[i][i], 1e-12)
		for j := range regions {
			assert.InDelta(t, corr[i][j], corr[j][i], 1e-12)
		}
	}
	// Perfectly anti-correlated series
	assert.InDelta(t, -1.0, corr[0][1], 1e-12)
}

func TestCorrelationUndefinedWithFewOverlappingYears(t *testing.T) {
	p := panelFromObs([]Observation{
		{Region: "A", Year: 2018, Value: 1}, {Region: "A", Year: 2019, Value: 2},
		// B overlaps A only in 2019
		{Region: "B", Year: 2019, Value: 4}, {Region: "B", Year: 2021, Value: 5},
	})

	_, corr := CorrelationMatrix(p)
	assert.True(t, math.IsNaN(corr[0][1]))
	assert.True(t, math.IsNaN(corr[1][0]))
	// Diagonals still defined: both regions have two valid years
	assert.InDelta(t, 1.0, corr[0][0], 1e-12)
	assert.InDelta(t, 1.0, corr[1][1], 1e-12)
}

func TestCorrelationExcludesMissingYearsRatherThanImputing(t *testing.T) {
	p := panelFromObs([]Observation{
		{Region: "A", Year: 2018, Value: 1}, {Region: "A", Year: 2019, Value: 2},
		{Region: "A", Year: 2020, Value: 3}, {Region: "A", Year: 2021, Value: 10},
		{Region: "B", Year: 2018, Value: 2}, {Region: "B", Year: 2019, Value: 4},
		{Region: "B", Year: 2020, Value: 6},
	})

	_, corr := CorrelationMatrix(p)
	// Overlap is 2018-2020 where the series are exactly linear in each
	// other; 2021 exists only for A and must not affect the estimate
	assert.InDelta(t, 1.0, corr[0][1], 1e-12)
}
