// Project: Hierarchical Bayesian Modeling of Arctic Sea-Ice Extent by Region

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// The analysis is one forward pass: raw CSV -> cleaned panel ->
// (exploratory stats, model fitting) -> posterior draws -> diagnostics
// -> LOO comparison. The two model variants run through identical
// downstream code; a fatal sampler failure aborts only its own variant.

var (
	flagData    string
	flagOut     string
	flagConfig  string
	flagChains  int
	flagWarmup  int
	flagSamples int
	flagSeed    int64
	flagVerbose bool
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seaice-bayes",
		Short: "Compare hierarchical models of Arctic sea-ice extent with and without AR(1) residuals",
		Long: "Loads the regional sea-ice extent series, aggregates monthly readings to annual\n" +
			"means, fits two Bayesian hierarchical regressions (iid vs AR(1) residuals), and\n" +
			"ranks them by PSIS-LOO expected log predictive density.",
		SilenceUsage: true,
		RunE:         runAnalysis,
	}
	cmd.Flags().StringVar(&flagData, "data", "seaice.csv", "input CSV with Date, Metric, Region, Value columns")
	cmd.Flags().StringVar(&flagOut, "out", "output", "directory for figures and CSV artifacts")
	cmd.Flags().StringVar(&flagConfig, "config", "", "optional YAML file with priors and sampler settings")
	cmd.Flags().IntVar(&flagChains, "chains", 0, "override number of chains")
	cmd.Flags().IntVar(&flagWarmup, "warmup", 0, "override warmup iterations per chain")
	cmd.Flags().IntVar(&flagSamples, "samples", 0, "override retained iterations per chain")
	cmd.Flags().Int64Var(&flagSeed, "seed", 0, "override master RNG seed")
	cmd.Flags().BoolVar(&flagVerbose, "verbose", false, "debug logging")
	return cmd
}

func runAnalysis(cmd *cobra.Command, args []string) error {
	setupLogger(flagVerbose)

	cfg, err := LoadConfig(flagConfig)
	if err != nil {
		return err
	}
	if flagChains > 0 {
		cfg.Sampler.Chains = flagChains
	}
	if flagWarmup > 0 {
		cfg.Sampler.Warmup = flagWarmup
	}
	if flagSamples > 0 {
		cfg.Sampler.Samples = flagSamples
	}
	if flagSeed != 0 {
		cfg.Sampler.Seed = flagSeed
	}

	if err := os.MkdirAll(flagOut, 0o755); err != nil {
		return fmt.Errorf("create output directory %s: %w", flagOut, err)
	}

	// 1. Load and prepare the panel
	panel, err := LoadPanelCSV(flagData)
	if err != nil {
		return err
	}
	log.Info().
		Int("observations", panel.Len()).
		Int("regions", len(panel.Regions)).
		Int("years", len(panel.Years)).
		Msg("panel loaded")

	// 2. Exploratory summaries
	regionStats := SummarizeByRegion(panel)
	yearStats := SummarizeByYear(panel)
	PrintSummaryTable("Extent by Region", "Region", regionStats)
	PrintSummaryTable("Extent by Year", "Year", yearStats)

	regions, corr := CorrelationMatrix(panel)
	PrintCorrelationMatrix(regions, corr)

	if err := OutputSummaryToCSV(outPath("region_summary.csv"), "Region", regionStats); err != nil {
		return err
	}
	if err := OutputSummaryToCSV(outPath("year_summary.csv"), "Year", yearStats); err != nil {
		return err
	}
	if err := OutputCorrelationToCSV(outPath("correlation.csv"), regions, corr); err != nil {
		return err
	}
	if err := PlotLogHistogram(panel, outPath("logvalue_hist.png")); err != nil {
		return err
	}
	if err := PlotRegionSeries(panel, outPath("region_series.png")); err != nil {
		return err
	}

	// 3. Fit both variants through the shared contract
	variants := []ModelVariant{
		NewHierModel(panel, cfg.Priors),
		NewARHierModel(panel, cfg.Priors),
	}

	var loos []*LOOResult
	for _, m := range variants {
		loo, err := runVariant(m, panel, cfg.Sampler)
		if err != nil {
			// Fatal for this variant only; the other still reports
			log.Error().Err(err).Str("model", m.Name()).Msg("model fit failed")
			continue
		}
		loos = append(loos, loo)
	}

	// 4. Comparison: only meaningful with both models scored
	if len(loos) == 2 {
		cmp, err := CompareLOO(loos[0], loos[1])
		if err != nil {
			return err
		}
		ranked := RankLOO(loos)
		PrintLOOComparison(ranked, cmp)
		if err := OutputLOOCompareToCSV(outPath("loo_compare.csv"), ranked, cmp); err != nil {
			return err
		}
	} else if len(loos) == 0 {
		return fmt.Errorf("no model variant produced results")
	}

	log.Info().Str("dir", flagOut).Msg("analysis complete")
	return nil
}

// runVariant fits, diagnoses, plots, and scores one model.
func runVariant(m ModelVariant, panel *Panel, cfg SamplerConfig) (*LOOResult, error) {
	fit, err := FitModel(m, cfg)
	if err != nil {
		return nil, err
	}

	rows := SummarizeFit(fit)
	PrintPosteriorSummary(fit, rows)
	if caveats := CheckConvergence(fit, rows); len(caveats) > 0 {
		fmt.Printf("Caveats (%s):\n", m.Name())
		for _, c := range caveats {
			fmt.Printf("  - %s\n", c)
		}
	}

	if err := OutputPosteriorToCSV(outPath("posterior_"+m.Name()+".csv"), rows); err != nil {
		return nil, err
	}
	if err := PlotTraces(fit, flagOut); err != nil {
		return nil, err
	}

	reps := ReplicateDraws(fit, 50, cfg.Seed+1)
	if err := PlotPPCOverlay(panel, reps, m.Name(), outPath("ppc_"+m.Name()+".png")); err != nil {
		return nil, err
	}

	loo, err := ComputeLOO(panel, fit)
	if err != nil {
		return nil, err
	}
	if err := OutputLOOToCSV(outPath("loo_"+m.Name()+".csv"), panel, loo); err != nil {
		return nil, err
	}
	return loo, nil
}

func outPath(name string) string {
	return filepath.Join(flagOut, name)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
