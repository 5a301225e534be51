package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Sternrassler/berry-stats/internal/api"
	"github.com/Sternrassler/berry-stats/pkg/fetch"
	"github.com/Sternrassler/berry-stats/pkg/history"
	"github.com/Sternrassler/berry-stats/pkg/stats"
	"github.com/spf13/cobra"
)

// fetchCmd runs one orchestration and prints the report.
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch every berry once and print the statistics",
	Long: `Fetch every berry once and print the statistics report as JSON.

Flags override the configured mode and worker count for this run only.

Example:
  berry-stats fetch --mode sequential
  berry-stats fetch -c berry.toml --workers 4`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().String("mode", "", "execution mode: sequential or concurrent")
	fetchCmd.Flags().Int("workers", 0, "concurrent worker count")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("mode") {
		cfg.Fetch.Mode, _ = cmd.Flags().GetString("mode")
	}
	if cmd.Flags().Changed("workers") {
		cfg.Fetch.Workers, _ = cmd.Flags().GetInt("workers")
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	if cfg.APIURL == "" {
		return errors.New(api.MissingURLMessage)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	result, runErr := a.orchestrator.Run(ctx, cfg.APIURL, fetch.ParseMode(cfg.Fetch.Mode))
	if err := a.store.Save(ctx, history.FromResult(result, runErr)); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to record run history")
	}
	if runErr != nil {
		return runErr
	}

	samples, err := stats.Samples(result.Records)
	if err != nil {
		return err
	}
	summary, err := stats.Compute(samples)
	if err != nil {
		return err
	}

	if cfg.Server.HistogramPath != "" {
		hist, err := stats.NewHistogram(stats.GrowthTimes(samples), stats.DefaultBins)
		if err != nil {
			return err
		}
		if err := stats.SaveHistogram(cfg.Server.HistogramPath, hist); err != nil {
			return err
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary.Report()); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
