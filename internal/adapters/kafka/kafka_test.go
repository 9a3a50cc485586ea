package kafka

import (
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"

	"marketpulse/pkg/logger"
)

func TestEventTypeHeader(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{
		{Key: "trace", Value: []byte("abc")},
		{Key: HeaderEventType, Value: []byte(EventSignal)},
	}}
	assert.Equal(t, EventSignal, EventType(msg))
	assert.Equal(t, "", EventType(kafka.Message{}))
}

func TestProducerReusesWriterPerTopic(t *testing.T) {
	p := NewProducer(ProducerConfig{Brokers: []string{"localhost:9092"}}, logger.Nop())

	w1 := p.getWriter(TopicSignals)
	w2 := p.getWriter(TopicSignals)
	w3 := p.getWriter(TopicCycleFailures)

	assert.Same(t, w1, w2)
	assert.NotSame(t, w1, w3)
	assert.Equal(t, TopicCycleFailures, w3.Topic)
	assert.NoError(t, p.Close())
}
