package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dustin/go-humanize"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/spf13/cobra"

	"marketpulse/internal/adapters/kafka"
	"marketpulse/internal/bootstrap"
	"marketpulse/internal/services/notify"
	"marketpulse/internal/workers/analysis"
	"marketpulse/pkg/errors"
)

var watchFlags struct {
	fromBeginning bool
	failures      bool
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Tail published signals from kafka",
	RunE: func(cmd *cobra.Command, args []string) error {
		c := bootstrap.NewContainer()
		c.MustInitConfig()
		defer c.Log.Sync()

		cfg := c.Config.Kafka
		if len(cfg.Brokers) == 0 {
			return errors.Wrap(errors.ErrInvalidInput, "no kafka brokers configured")
		}

		topic := cfg.SignalTopic
		if watchFlags.failures {
			topic = cfg.FailureTopic
		}

		consumer := kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers:       cfg.Brokers,
			GroupID:       cfg.GroupID,
			Topic:         topic,
			FromBeginning: watchFlags.fromBeginning,
		}, c.Log)
		defer consumer.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		out := cmd.OutOrStdout()
		err := consumer.Consume(ctx, func(ctx context.Context, msg kafkago.Message) error {
			return printEvent(out, msg)
		})
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchFlags.fromBeginning, "from-beginning", false, "start from the oldest retained message")
	watchCmd.Flags().BoolVar(&watchFlags.failures, "failures", false, "tail the cycle failure topic instead of signals")
}

func printEvent(w io.Writer, msg kafkago.Message) error {
	switch kafka.EventType(msg) {
	case kafka.EventSignal:
		var ev notify.SignalEvent
		if err := json.Unmarshal(msg.Value, &ev); err != nil {
			return errors.Wrap(err, "decode signal")
		}
		fmt.Fprintf(w, "%s  %-8s %-4s price=%s score=%.1f ai=%s(%.2f) acc=%.1f%%  %s\n",
			ev.Timestamp.Format("2006-01-02 15:04"), ev.Symbol, ev.Consensus,
			humanize.CommafWithDigits(ev.Price, 2), ev.StrategyScore,
			ev.AIDirection, ev.AIProbability, ev.Accuracy, strings.Join(ev.Reasons, "; "))
	case kafka.EventCycleFailure:
		var f analysis.Failure
		if err := json.Unmarshal(msg.Value, &f); err != nil {
			return errors.Wrap(err, "decode failure")
		}
		fmt.Fprintf(w, "%s  %-8s FAILED (%s) %s\n", f.Timestamp.Format("2006-01-02 15:04"), f.Symbol, f.Kind, f.Message)
	default:
		fmt.Fprintf(w, "offset %d: unknown event %q (%s)\n", msg.Offset, kafka.EventType(msg), humanize.Bytes(uint64(len(msg.Value))))
	}
	return nil
}
