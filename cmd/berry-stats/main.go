// Package main is the entry point for the berry-stats CLI.
//
// Usage:
//
//	berry-stats serve -c berry.yaml      # Serve /allBerryStats
//	berry-stats fetch --mode sequential  # One run, report on stdout
//	berry-stats validate -c berry.yaml   # Check configuration
//	berry-stats version                  # Show version info
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via ldflags.
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// rootCmd shows help when called without subcommands.
var rootCmd = &cobra.Command{
	Use:   "berry-stats",
	Short: "Berry growth time statistics from PokeAPI",
	Long: `berry-stats lists every berry from a PokeAPI-compatible API, fetches each
berry's detail record and reports growth time statistics.

Configuration comes from an optional YAML/TOML file (-c) and the environment
(POKE_API_URL, FETCH_MODE, FETCH_WORKERS, ...). Environment values win.

Quick start:
  POKE_API_URL=https://pokeapi.co/api/v2 berry-stats fetch
  POKE_API_URL=https://pokeapi.co/api/v2 berry-stats serve`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		// Cobra already prints the error
		os.Exit(1)
	}
}

func main() {
	Execute()
}

// versionCmd prints version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "berry-stats %s\n", version)
		fmt.Fprintf(out, "  commit: %s\n", commit)
		fmt.Fprintf(out, "  built:  %s\n", date)
	},
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "", "path to a .yaml, .yml or .toml config file")
	rootCmd.AddCommand(versionCmd)
}
