package prediction

import (
	"context"
	"time"
)

// Repository is the durable validation store for predictions and signals
type Repository interface {
	// AddPrediction inserts a PENDING prediction stamped at call time
	AddPrediction(ctx context.Context, symbol string, direction Direction, confidence, entryPrice float64) (int64, error)

	// ValidatePastPredictions grades PENDING predictions older than horizon and
	// returns how many were resolved
	ValidatePastPredictions(ctx context.Context, currentPrice float64, horizon time.Duration) (int, error)

	// Accuracy is correct / resolved as a percentage, 0 when nothing is resolved
	Accuracy(ctx context.Context) (float64, error)

	// History returns the most recent predictions, newest first
	History(ctx context.Context, limit int) ([]Prediction, error)

	// SaveSignal appends a consensus decision to the audit log
	SaveSignal(ctx context.Context, symbol string, action Action, score, price float64) (int64, error)

	// Signals returns the most recent signals, newest first
	Signals(ctx context.Context, limit int) ([]Signal, error)
}
