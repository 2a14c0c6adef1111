package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "stockquant",
	Short: "Simulated A-share trading engine with automated quant strategies",
	Long: `Stockquant is a simulated equity trading system.

It runs an internal random-walk price feed over a configurable instrument
catalog, keeps double-entry-style account and position state in SQLite,
and evaluates MA-crossover/momentum strategies on a scan loop that trades
at most once per strategy per trading day.

Live quotes are exposed over HTTP, WebSocket, and Redis PubSub.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
