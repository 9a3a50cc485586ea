package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"marketpulse/pkg/errors"
)

type recordingTracker struct {
	captured []error
}

func (r *recordingTracker) CaptureError(ctx context.Context, err error, tags map[string]string) error {
	r.captured = append(r.captured, err)
	return nil
}

func (r *recordingTracker) CaptureMessage(ctx context.Context, message string, level errors.Level, tags map[string]string) error {
	return nil
}

func (r *recordingTracker) AddBreadcrumb(ctx context.Context, message string, category string, level errors.Level, data map[string]interface{}) {
}

func (r *recordingTracker) Flush(ctx context.Context) error { return nil }

func TestNewFallsBackToInfo(t *testing.T) {
	log, err := New("not-a-level", "development")
	require.NoError(t, err)
	assert.False(t, log.Desugar().Core().Enabled(zap.DebugLevel))
	assert.True(t, log.Desugar().Core().Enabled(zap.InfoLevel))
}

func TestWithKeepsFieldsAndTracker(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	tracker := &recordingTracker{}
	log := FromZap(zap.New(core)).WithTracker(tracker).With("worker", "analysis")

	log.Infow("cycle completed", "duration", "1s")
	log.ErrorWithContext(context.Background(), errors.ErrUnavailable, map[string]string{"stage": "fetch"})

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "analysis", logs.All()[0].ContextMap()["worker"])
	require.Len(t, tracker.captured, 1)
	assert.ErrorIs(t, tracker.captured[0], errors.ErrUnavailable)
}
