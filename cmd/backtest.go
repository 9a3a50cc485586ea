package main

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"marketpulse/internal/bootstrap"
	"marketpulse/internal/domain/macro"
	"marketpulse/internal/services/backtest"
	"marketpulse/pkg/errors"
)

var backtestFlags struct {
	capital   float64
	fee       float64
	sentiment float64
	withMacro bool
}

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Replay the strategy scorer over the stored series",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := bootstrap.NewContainer()
		c.MustInitCore()
		defer c.Close()

		ctx := cmd.Context()
		p := c.Pipeline

		series, err := p.SeriesStore.Load(ctx)
		if err != nil {
			return errors.Wrap(err, "load series")
		}
		rows := p.Engine.Compute(series)

		var snapshot macro.Snapshot
		if backtestFlags.withMacro && p.Macro != nil {
			if snapshot, err = p.Macro.Snapshot(ctx); err != nil {
				c.Log.Warnw("Macro snapshot unavailable, replaying without it", "error", err)
				snapshot = nil
			}
		}

		cfg := backtest.DefaultConfig()
		cfg.InitialCapital = decimal.NewFromFloat(backtestFlags.capital)
		cfg.FeeRate = decimal.NewFromFloat(backtestFlags.fee)
		cfg.Sentiment = backtestFlags.sentiment

		report, err := backtest.New(cfg, p.Scorer, c.Log).Run(ctx, rows, snapshot)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), report.Summary())
		return nil
	},
}

func init() {
	f := backtestCmd.Flags()
	f.Float64Var(&backtestFlags.capital, "capital", 1000, "starting cash")
	f.Float64Var(&backtestFlags.fee, "fee", 0.003, "fee rate charged on each fill")
	f.Float64Var(&backtestFlags.sentiment, "sentiment", 50, "fixed sentiment score used for every candle")
	f.BoolVar(&backtestFlags.withMacro, "macro", false, "fetch the current macro snapshot and apply it to every candle")
}
