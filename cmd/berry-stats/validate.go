package main

import (
	"fmt"

	"github.com/Sternrassler/berry-stats/pkg/fetch"
	"github.com/spf13/cobra"
)

// validateCmd checks the configuration without contacting the upstream API.
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long: `Load the configuration file and environment, validate it and print a summary.

Example:
  berry-stats validate -c berry.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	mode := fetch.ParseMode(cfg.Fetch.Mode)
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = "(not set)"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Config is valid!")
	fmt.Fprintf(out, "  API URL:    %s\n", apiURL)
	fmt.Fprintf(out, "  Endpoint:   %s\n", fetch.ListingEndpoint(cfg.APIURL, cfg.Collection))
	fmt.Fprintf(out, "  Mode:       %s (on failure: %s)\n", mode, mode.FailurePolicy())
	fmt.Fprintf(out, "  Workers:    %d\n", cfg.Fetch.Workers)
	fmt.Fprintf(out, "  Port:       %d\n", cfg.Server.Port)
	fmt.Fprintf(out, "  History:    %s\n", cfg.History.Backend)
	return nil
}
