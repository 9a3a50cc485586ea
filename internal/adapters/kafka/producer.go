package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"marketpulse/internal/metrics"
	"marketpulse/pkg/errors"
	"marketpulse/pkg/logger"
)

// Producer handles Kafka message publishing. One writer is kept per topic.
type Producer struct {
	mu      sync.Mutex
	writers map[string]*kafka.Writer
	brokers []string
	timeout time.Duration
	log     *logger.Logger
}

// ProducerConfig holds producer configuration
type ProducerConfig struct {
	Brokers      []string
	WriteTimeout time.Duration
}

// NewProducer creates a new Kafka producer
func NewProducer(cfg ProducerConfig, log *logger.Logger) *Producer {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Producer{
		writers: make(map[string]*kafka.Writer),
		brokers: cfg.Brokers,
		timeout: cfg.WriteTimeout,
		log:     log.With("component", "kafka_producer"),
	}
}

// getWriter returns or creates a writer for a topic
func (p *Producer) getWriter(topic string) *kafka.Writer {
	p.mu.Lock()
	defer p.mu.Unlock()

	if w, ok := p.writers[topic]; ok {
		return w
	}

	w := &kafka.Writer{
		Addr:                   kafka.TCP(p.brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{}, // same symbol, same partition
		WriteTimeout:           p.timeout,
		AllowAutoTopicCreation: true,
	}

	p.writers[topic] = w
	return w
}

// Publish JSON-encodes event and sends it to topic with the given key and event type header
func (p *Producer) Publish(ctx context.Context, topic, key, eventType string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "failed to encode kafka event")
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: data,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(eventType)},
		},
	}

	if err := p.getWriter(topic).WriteMessages(ctx, msg); err != nil {
		metrics.KafkaMessages.WithLabelValues(topic, "error").Inc()
		p.log.Errorw("Failed to publish", "topic", topic, "key", key, "error", err)
		return errors.Wrapf(errors.ErrUnavailable, "kafka publish to %s: %v", topic, err)
	}

	metrics.KafkaMessages.WithLabelValues(topic, "success").Inc()
	p.log.Debugw("Published", "topic", topic, "key", key, "event_type", eventType)
	return nil
}

// Close closes all writers
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs errors.MultiError
	for topic, w := range p.writers {
		if err := w.Close(); err != nil {
			p.log.Errorw("Failed to close writer", "topic", topic, "error", err)
			errs.Add(err)
		}
	}
	return errs.ToError()
}
