// Project: Hierarchical Bayesian Modeling of Arctic Sea-Ice Extent by Region

package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// ErrEmptyDataset is returned when no input row survives the metric filter.
var ErrEmptyDataset = errors.New("no rows matched the extent metric")

// extentMetric is the one measurement series the analysis uses.
const extentMetric = "extent"

// regionYear keys the monthly-to-annual aggregation.
type regionYear struct {
	region string
	year   int
}

// LoadPanelCSV reads the raw sea-ice CSV and produces the annual panel.
// Required columns: Date (%Y-%m-%d), Metric, Region, Value. Month and
// MonthNum columns are tolerated and ignored. The metric filter runs
// first, so rows of other metrics are skipped whole: their Date and
// Value cells are never parsed. Monthly readings are averaged per
// (Region, Year); blank Value cells are skipped inside the mean;
// aggregated values <= 0 are dropped with a counted warning before the
// log transform.
func LoadPanelCSV(path string) (*Panel, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"Date", "Metric", "Region", "Value"} {
		if _, ok := col[required]; !ok {
			return nil, fmt.Errorf("missing required column %q in %s", required, path)
		}
	}
	dateCol, metricCol := col["Date"], col["Metric"]
	regionCol, valueCol := col["Region"], col["Value"]

	sums := make(map[regionYear]float64)
	counts := make(map[regionYear]int)

	row := 0
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", row+2, err)
		}
		row++

		// Skip completely empty lines
		if len(record) == 1 && record[0] == "" {
			continue
		}
		if len(record) != len(header) {
			return nil, fmt.Errorf("row %d: expected %d columns, got %d", row+1, len(header), len(record))
		}

		if strings.TrimSpace(record[metricCol]) != extentMetric {
			continue
		}

		date, err := time.Parse("2006-01-02", strings.TrimSpace(record[dateCol]))
		if err != nil {
			return nil, fmt.Errorf("parse date at row %d (%q): %w", row+1, record[dateCol], err)
		}

		key := regionYear{region: strings.TrimSpace(record[regionCol]), year: date.Year()}

		raw := strings.TrimSpace(record[valueCol])
		if raw == "" || strings.EqualFold(raw, "na") || strings.EqualFold(raw, "nan") {
			// Missing reading: contributes nothing to the annual mean
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parse value at row %d (%q): %w", row+1, raw, err)
		}
		if math.IsNaN(v) {
			continue
		}

		sums[key] += v
		counts[key]++
	}

	if len(counts) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyDataset)
	}

	obs := make([]Observation, 0, len(counts))
	dropped := 0
	for key, n := range counts {
		mean := sums[key] / float64(n)
		if mean <= 0 {
			// Log is undefined here; drop rather than impute
			dropped++
			continue
		}
		obs = append(obs, Observation{
			Region:   key.region,
			Year:     key.year,
			Value:    mean,
			LogValue: math.Log(mean),
		})
	}
	if dropped > 0 {
		log.Warn().Int("dropped", dropped).
			Msg("dropped non-positive annual values before log transform")
	}
	if len(obs) == 0 {
		return nil, fmt.Errorf("%s: all aggregated values were non-positive: %w", path, ErrEmptyDataset)
	}

	sort.Slice(obs, func(i, j int) bool {
		if obs[i].Region != obs[j].Region {
			return obs[i].Region < obs[j].Region
		}
		return obs[i].Year < obs[j].Year
	})

	return &Panel{
		Obs:     obs,
		Regions: distinctRegions(obs),
		Years:   distinctYears(obs),
	}, nil
}

func distinctRegions(obs []Observation) []string {
	seen := make(map[string]bool)
	var out []string
	for _, o := range obs {
		if !seen[o.Region] {
			seen[o.Region] = true
			out = append(out, o.Region)
		}
	}
	sort.Strings(out)
	return out
}

func distinctYears(obs []Observation) []int {
	seen := make(map[int]bool)
	var out []int
	for _, o := range obs {
		if !seen[o.Year] {
			seen[o.Year] = true
			out = append(out, o.Year)
		}
	}
	sort.Ints(out)
	return out
}

// --- CSV artifact writers ---

// OutputSummaryToCSV writes one grouped summary table.
// Columns: <groupLabel>, Count, Mean, SD, Min, Max
func OutputSummaryToCSV(path, groupLabel string, rows []SummaryStat) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{groupLabel, "Count", "Mean", "SD", "Min", "Max"}); err != nil {
		return err
	}
	for _, s := range rows {
		rec := []string{
			s.Group,
			fmt.Sprintf("%d", s.Count),
			fmt.Sprintf("%f", s.Mean),
			fmt.Sprintf("%f", s.SD),
			fmt.Sprintf("%f", s.Min),
			fmt.Sprintf("%f", s.Max),
		}
		if err := writer.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// OutputCorrelationToCSV writes the region correlation matrix in wide form.
func OutputCorrelationToCSV(path string, regions []string, corr [][]float64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := append([]string{"Region"}, regions...)
	if err := writer.Write(header); err != nil {
		return err
	}
	for i, name := range regions {
		rec := make([]string, 0, len(regions)+1)
		rec = append(rec, name)
		for j := range regions {
			if math.IsNaN(corr[i][j]) {
				rec = append(rec, "")
			} else {
				rec = append(rec, fmt.Sprintf("%f", corr[i][j]))
			}
		}
		if err := writer.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// OutputPosteriorToCSV writes one model's parameter summary table.
func OutputPosteriorToCSV(path string, rows []ParamSummary) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Parameter", "Mean", "SD", "Q2.5", "Median", "Q97.5", "ESS", "RHat"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, s := range rows {
		rec := []string{
			s.Name,
			fmt.Sprintf("%f", s.Mean),
			fmt.Sprintf("%f", s.SD),
			fmt.Sprintf("%f", s.Q2_5),
			fmt.Sprintf("%f", s.Median),
			fmt.Sprintf("%f", s.Q97_5),
			fmt.Sprintf("%f", s.ESS),
			fmt.Sprintf("%f", s.RHat),
		}
		if err := writer.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// OutputLOOToCSV writes the per-observation LOO table for one model.
// Columns: Region, Year, ELPD, ParetoK, Flagged
func OutputLOOToCSV(path string, panel *Panel, loo *LOOResult) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"Region", "Year", "ELPD", "ParetoK", "Flagged"}); err != nil {
		return err
	}
	for i, o := range panel.Obs {
		k := loo.ParetoK[i]
		kField := ""
		if !math.IsNaN(k) {
			kField = fmt.Sprintf("%f", k)
		}
		rec := []string{
			o.Region,
			fmt.Sprintf("%d", o.Year),
			fmt.Sprintf("%f", loo.Pointwise[i]),
			kField,
			fmt.Sprintf("%t", looFlagged(k)),
		}
		if err := writer.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// OutputLOOCompareToCSV writes the two-model ranking table.
func OutputLOOCompareToCSV(path string, ranked []*LOOResult, cmp *LOOComparison) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"Rank", "Model", "ELPD", "SE", "ELPDDiff", "DiffSE", "HighParetoK"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for rank, res := range ranked {
		diff, diffSE := 0.0, 0.0
		if res.Model == cmp.Worst {
			diff, diffSE = -cmp.Diff, cmp.DiffSE
		}
		rec := []string{
			fmt.Sprintf("%d", rank+1),
			res.Model,
			fmt.Sprintf("%f", res.ELPD),
			fmt.Sprintf("%f", res.SE),
			fmt.Sprintf("%f", diff),
			fmt.Sprintf("%f", diffSE),
			fmt.Sprintf("%d", res.NumHighK),
		}
		if err := writer.Write(rec); err != nil {
			return err
		}
	}
	return nil
}

// --- Report printers ---

// PrintSummaryTable prints one grouped descriptive-statistics table.
func PrintSummaryTable(title, groupLabel string, rows []SummaryStat) {
	fmt.Printf("\n=== %s ===\n", title)
	fmt.Printf("%-24s | %5s | %14s | %12s | %14s | %14s\n",
		groupLabel, "N", "Mean", "SD", "Min", "Max")
	fmt.Println(strings.Repeat("-", 96))
	for _, s := range rows {
		fmt.Printf("%-24s | %5d | %14.2f | %12.2f | %14.2f | %14.2f\n",
			s.Group, s.Count, s.Mean, s.SD, s.Min, s.Max)
	}
}

// PrintCorrelationMatrix prints the region correlation matrix.
// Cells with fewer than two overlapping years print as a dot.
func PrintCorrelationMatrix(regions []string, corr [][]float64) {
	fmt.Println("\n=== Region Correlation of Annual Extent ===")
	fmt.Printf("%-24s", "")
	for _, name := range regions {
		fmt.Printf("%10s", truncateLabel(name, 9))
	}
	fmt.Println()
	for i, name := range regions {
		fmt.Printf("%-24s", name)
		for j := range regions {
			if math.IsNaN(corr[i][j]) {
				fmt.Printf("%10s", ".")
			} else {
				fmt.Printf("%10.3f", corr[i][j])
			}
		}
		fmt.Println()
	}
}

func truncateLabel(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// PrintPosteriorSummary prints one model's parameter table along with
// the sampler health counters.
func PrintPosteriorSummary(fit *FitResult, rows []ParamSummary) {
	fmt.Printf("\n=== Posterior Summary: %s ===\n", fit.Variant.Name())
	fmt.Printf("Chains: %d  Draws: %d  Acceptance: %.3f  Divergent proposals: %d\n",
		len(fit.Chains), fit.TotalDraws(), fit.AcceptanceRate(), fit.TotalDivergences())
	fmt.Printf("%-20s | %10s | %9s | %10s | %10s | %10s | %8s | %6s\n",
		"Parameter", "Mean", "SD", "2.5%", "50%", "97.5%", "ESS", "Rhat")
	fmt.Println(strings.Repeat("-", 104))
	for _, s := range rows {
		fmt.Printf("%-20s | %10.4f | %9.4f | %10.4f | %10.4f | %10.4f | %8.0f | %6.3f\n",
			s.Name, s.Mean, s.SD, s.Q2_5, s.Median, s.Q97_5, s.ESS, s.RHat)
	}
}

// PrintLOOComparison prints the ranked two-model comparison.
// The difference row answers "does modeling temporal correlation help":
// effect size with its uncertainty, no hard threshold.
func PrintLOOComparison(ranked []*LOOResult, cmp *LOOComparison) {
	fmt.Println("\n=== LOO Model Comparison (higher ELPD is better) ===")
	fmt.Printf("%-4s | %-12s | %12s | %8s | %10s | %8s | %8s\n",
		"Rank", "Model", "ELPD", "SE", "ELPDDiff", "DiffSE", "HighK")
	fmt.Println(strings.Repeat("-", 78))
	for rank, res := range ranked {
		diff, diffSE := 0.0, 0.0
		if res.Model == cmp.Worst {
			diff, diffSE = -cmp.Diff, cmp.DiffSE
		}
		fmt.Printf("%-4d | %-12s | %12.2f | %8.2f | %10.2f | %8.2f | %8d\n",
			rank+1, res.Model, res.ELPD, res.SE, diff, diffSE, res.NumHighK)
	}
	fmt.Printf("\n%s ahead of %s by %.2f ELPD (SE %.2f)\n",
		cmp.Best, cmp.Worst, cmp.Diff, cmp.DiffSE)
}
