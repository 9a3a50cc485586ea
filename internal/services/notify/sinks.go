package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"marketpulse/internal/adapters/kafka"
	"marketpulse/internal/domain/prediction"
	"marketpulse/internal/workers/analysis"
	"marketpulse/pkg/errors"
)

// Broadcaster is the dashboard stream hub
type Broadcaster interface {
	Broadcast(msg []byte)
}

// Envelope is the dashboard stream message
type Envelope struct {
	Type string      `json:"type"` // bundle|failure
	Data interface{} `json:"data"`
}

// StreamSink pushes full bundles to dashboard clients
type StreamSink struct {
	hub Broadcaster
}

func NewStreamSink(hub Broadcaster) *StreamSink {
	return &StreamSink{hub: hub}
}

func (s *StreamSink) Name() string { return "stream" }

func (s *StreamSink) Deliver(ctx context.Context, b analysis.Bundle) error {
	return s.send(Envelope{Type: "bundle", Data: b})
}

func (s *StreamSink) DeliverFailure(ctx context.Context, f analysis.Failure) error {
	return s.send(Envelope{Type: "failure", Data: f})
}

func (s *StreamSink) send(env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return errors.Wrap(err, "encode stream message")
	}
	s.hub.Broadcast(data)
	return nil
}

// EventPublisher is the kafka producer
type EventPublisher interface {
	Publish(ctx context.Context, topic, key, eventType string, event interface{}) error
}

// SignalEvent is the compact kafka record of a cycle decision
type SignalEvent struct {
	CycleID       string            `json:"cycle_id"`
	Symbol        string            `json:"symbol"`
	Timestamp     time.Time         `json:"timestamp"`
	Price         float64           `json:"price"`
	Consensus     prediction.Action `json:"consensus"`
	StrategyScore float64           `json:"strategy_score"`
	StrategyCall  prediction.Action `json:"strategy_action"`
	AIDirection   prediction.Action `json:"ai_direction"`
	AIProbability float64           `json:"ai_probability"`
	Accuracy      float64           `json:"accuracy"`
	Reasons       []string          `json:"reasons"`
}

// NewSignalEvent extracts the event from a bundle
func NewSignalEvent(b analysis.Bundle) SignalEvent {
	return SignalEvent{
		CycleID:       b.CycleID,
		Symbol:        b.Symbol,
		Timestamp:     b.Timestamp,
		Price:         b.Price,
		Consensus:     b.Consensus,
		StrategyScore: b.Strategy.Score,
		StrategyCall:  b.Strategy.Action,
		AIDirection:   b.AI.Direction,
		AIProbability: b.AI.Probability,
		Accuracy:      b.Accuracy,
		Reasons:       b.Strategy.Reasons,
	}
}

// KafkaSink publishes signal events keyed by symbol
type KafkaSink struct {
	producer     EventPublisher
	signalTopic  string
	failureTopic string
}

func NewKafkaSink(producer EventPublisher, signalTopic, failureTopic string) *KafkaSink {
	if signalTopic == "" {
		signalTopic = kafka.TopicSignals
	}
	if failureTopic == "" {
		failureTopic = kafka.TopicCycleFailures
	}
	return &KafkaSink{producer: producer, signalTopic: signalTopic, failureTopic: failureTopic}
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) Deliver(ctx context.Context, b analysis.Bundle) error {
	return s.producer.Publish(ctx, s.signalTopic, b.Symbol, kafka.EventSignal, NewSignalEvent(b))
}

func (s *KafkaSink) DeliverFailure(ctx context.Context, f analysis.Failure) error {
	return s.producer.Publish(ctx, s.failureTopic, f.Symbol, kafka.EventCycleFailure, f)
}

// Sender is the telegram bot
type Sender interface {
	Send(ctx context.Context, text string) error
}

// TelegramSink alerts when the consensus changes and when a run of failures starts
type TelegramSink struct {
	sender Sender

	mu      sync.Mutex
	last    prediction.Action
	failing bool
}

func NewTelegramSink(sender Sender) *TelegramSink {
	return &TelegramSink{sender: sender, last: prediction.ActionWait}
}

func (s *TelegramSink) Name() string { return "telegram" }

func (s *TelegramSink) Deliver(ctx context.Context, b analysis.Bundle) error {
	s.mu.Lock()
	changed := b.Consensus != s.last
	previous := s.last
	recovered := s.failing
	s.last = b.Consensus
	s.failing = false
	s.mu.Unlock()

	switch {
	case changed:
		return s.sender.Send(ctx, ConsensusAlert(b, previous))
	case recovered:
		return s.sender.Send(ctx, fmt.Sprintf("✅ %s analysis recovered, consensus %s", b.Symbol, b.Consensus))
	}
	return nil
}

func (s *TelegramSink) DeliverFailure(ctx context.Context, f analysis.Failure) error {
	s.mu.Lock()
	first := !s.failing
	s.failing = true
	s.mu.Unlock()

	if !first {
		return nil
	}
	return s.sender.Send(ctx, fmt.Sprintf("⚠️ %s analysis failing (%s): %s", f.Symbol, f.Kind, f.Message))
}

// ConsensusAlert formats the alert text for a consensus change
func ConsensusAlert(b analysis.Bundle, previous prediction.Action) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s: %s → %s\n", icon(b.Consensus), b.Symbol, previous, b.Consensus)
	fmt.Fprintf(&sb, "Price: %s\n", humanize.Commaf(b.Price))
	fmt.Fprintf(&sb, "AI: %s (%.1f%%)\n", b.AI.Direction, b.AI.Probability*100)
	fmt.Fprintf(&sb, "Strategy: %s (%.1f/100)\n", b.Strategy.Action, b.Strategy.Score)
	if len(b.Strategy.Reasons) > 0 {
		fmt.Fprintf(&sb, "Reasons: %s\n", strings.Join(b.Strategy.Reasons, ", "))
	}
	fmt.Fprintf(&sb, "Accuracy: %.1f%%", b.Accuracy)
	return sb.String()
}

func icon(a prediction.Action) string {
	switch a {
	case prediction.ActionBuy:
		return "🟢"
	case prediction.ActionSell:
		return "🔴"
	default:
		return "⚪"
	}
}
