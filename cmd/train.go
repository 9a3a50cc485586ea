package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"marketpulse/internal/bootstrap"
	"marketpulse/internal/services/training"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Retrain the ensemble from the stored series, replacing saved models",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := bootstrap.NewContainer()
		c.MustInitCore()
		defer c.Close()

		p := c.Pipeline
		trainer := training.NewTrainer(p.SeriesStore, p.Engine, p.Labeler, p.Ensemble, c.Config.Series.ProcessingWindow, c.Log)

		res, err := trainer.Run(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "trained on %d labelled rows from %d candles (%d up / %d down) in %s\n",
			res.Labelled, res.Candles, res.Balance.Positive, res.Balance.Negative, res.Duration.Round(1e6))
		return nil
	},
}
