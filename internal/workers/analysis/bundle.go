package analysis

import (
	"time"

	"marketpulse/internal/domain/features"
	"marketpulse/internal/domain/macro"
	"marketpulse/internal/domain/prediction"
	"marketpulse/internal/domain/sentiment"
	"marketpulse/internal/ml/ensemble"
	"marketpulse/internal/services/strategy"
)

// AIResult is the ensemble output of a cycle with its tri-state direction
type AIResult struct {
	Direction    prediction.Action `json:"direction"` // BUY, SELL or WAIT
	Probability  float64           `json:"probability"`
	SequenceProb float64           `json:"sequence_prob"`
	LinearProb   float64           `json:"linear_prob"`
}

// Bundle is the complete result of one analysis cycle
type Bundle struct {
	CycleID    string                  `json:"cycle_id"`
	Timestamp  time.Time               `json:"timestamp"`
	Symbol     string                  `json:"symbol"`
	Price      float64                 `json:"price"`
	Features   []features.Row          `json:"features"`
	Report     string                  `json:"report"`
	Strategy   strategy.Result         `json:"strategy"`
	AI         AIResult                `json:"ai"`
	Consensus  prediction.Action       `json:"consensus"`
	Sentiment  sentiment.Summary       `json:"sentiment"`
	Macro      macro.Snapshot          `json:"macro"`
	History    []prediction.Prediction `json:"history"`
	Accuracy   float64                 `json:"accuracy"`
	Importance []ensemble.Importance   `json:"importance"`
	Warnings   []string                `json:"warnings,omitempty"`
	Duration   time.Duration           `json:"duration"`
}

// Failure is delivered instead of a Bundle when a cycle aborts
type Failure struct {
	CycleID   string    `json:"cycle_id"`
	Timestamp time.Time `json:"timestamp"`
	Symbol    string    `json:"symbol"`
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
}

// Publisher receives cycle results. Implementations must not block the worker.
type Publisher interface {
	Publish(b Bundle)
	PublishFailure(f Failure)
}

// DiscardPublisher drops every result
type DiscardPublisher struct{}

func (DiscardPublisher) Publish(Bundle)         {}
func (DiscardPublisher) PublishFailure(Failure) {}
