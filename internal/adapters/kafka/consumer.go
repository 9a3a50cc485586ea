package kafka

import (
	"context"

	"github.com/segmentio/kafka-go"

	"marketpulse/pkg/logger"
)

// Consumer reads events back from a topic (used by the watch command)
type Consumer struct {
	reader *kafka.Reader
	log    *logger.Logger
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	Brokers  []string
	GroupID  string
	Topic    string
	MinBytes int
	MaxBytes int

	// FromBeginning replays the whole topic when no offset is committed
	FromBeginning bool
}

// NewConsumer creates a new Kafka consumer
func NewConsumer(cfg ConsumerConfig, log *logger.Logger) *Consumer {
	if cfg.MinBytes == 0 {
		cfg.MinBytes = 1
	}
	if cfg.MaxBytes == 0 {
		cfg.MaxBytes = 10e6 // 10MB
	}

	start := kafka.LastOffset
	if cfg.FromBeginning {
		start = kafka.FirstOffset
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		MinBytes:    cfg.MinBytes,
		MaxBytes:    cfg.MaxBytes,
		StartOffset: start,
	})

	return &Consumer{
		reader: reader,
		log:    log.With("component", "kafka_consumer", "topic", cfg.Topic),
	}
}

// MessageHandler is a function that processes a message
type MessageHandler func(ctx context.Context, msg kafka.Message) error

// Consume reads messages until ctx is cancelled. Handler errors are logged and skipped.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	c.log.Infow("Starting consumer")

	for {
		msg, err := c.ReadMessageWithShutdownCheck(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.log.Infow("Consumer stopped")
				return ctx.Err()
			}
			c.log.Errorw("Failed to read message", "error", err)
			continue
		}

		if err := handler(ctx, msg); err != nil {
			c.log.Warnw("Failed to handle message", "key", string(msg.Key), "error", err)
		}
	}
}

// ReadMessageWithShutdownCheck checks for shutdown before blocking on the reader
func (c *Consumer) ReadMessageWithShutdownCheck(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	default:
	}

	msg, err := c.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return kafka.Message{}, ctx.Err()
		}
		return kafka.Message{}, err
	}

	return msg, nil
}

// EventType returns the event type header of msg, empty when absent
func EventType(msg kafka.Message) string {
	for _, h := range msg.Headers {
		if h.Key == HeaderEventType {
			return string(h.Value)
		}
	}
	return ""
}

// Close closes the consumer
func (c *Consumer) Close() error {
	return c.reader.Close()
}
