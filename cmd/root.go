package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "TrinoEventPump",
	Short: "Correlates Trino query events into execution trees and a catalog of touched data sources",
	Long: `TrinoEventPump reads Trino event-listener messages from *.jsonl files, merges the snapshots
of every query into one view with its operator tree, discovers catalogs, schemas, tables and
collections referenced by queries, and serves the result over HTTP.`,
	SilenceUsage: true,
}

// Execute executes the root command
func Execute(version string) {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config.yaml (defaults and TEP_* environment when empty)")
}
