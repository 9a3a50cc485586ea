package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "marketpulse",
	Short: "Hourly trading signals for one market symbol",
	Long: `marketpulse fetches hourly candles, keeps a merged price history, trains a
small model ensemble on triple-barrier labels and combines it with a
technical/macro/news strategy score into a BUY, SELL or WAIT consensus.

Configuration is read from the environment (and a .env file when present).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd, trainCmd, backtestCmd, watchCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
