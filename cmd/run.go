package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"marketpulse/internal/bootstrap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the analysis loop, result sinks and HTTP server until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := bootstrap.NewContainer()
		c.MustInit()

		if err := c.Start(); err != nil {
			c.Log.Errorw("Startup failed", "error", err)
			c.Shutdown()
			return err
		}

		waitForShutdown(c)
		return nil
	},
}

// waitForShutdown blocks until a signal arrives or the container cancels itself
func waitForShutdown(c *bootstrap.Container) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		c.Log.Infow("Shutdown signal received", "signal", sig.String())
	case <-c.Context.Done():
		c.Log.Warnw("Context cancelled, shutting down")
	}

	c.Shutdown()
}
