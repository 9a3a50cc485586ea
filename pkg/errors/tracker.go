package errors

import (
	"context"
)

// Tracker forwards cycle failures to an external service. Sentry in production, a no-op otherwise.
type Tracker interface {
	// CaptureError reports a failed cycle. Tags come from CycleTags.
	CaptureError(ctx context.Context, err error, tags map[string]string) error

	CaptureMessage(ctx context.Context, message string, level Level, tags map[string]string) error

	// AddBreadcrumb records a pipeline stage leading up to a later capture
	AddBreadcrumb(ctx context.Context, message string, category string, level Level, data map[string]interface{})

	// Flush blocks until queued events are sent or ctx expires. Called once on shutdown.
	Flush(ctx context.Context) error
}

// Level is the tracker severity
type Level string

const (
	LevelDebug   Level = "debug"
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
	LevelFatal   Level = "fatal"
)

func (l Level) String() string {
	return string(l)
}

// CycleTags builds the tag set attached to a captured cycle failure.
// Empty values are left out so trackers do not index blank tags.
func CycleTags(cycleID, symbol, kind string) map[string]string {
	tags := make(map[string]string, 3)
	for k, v := range map[string]string{"cycle_id": cycleID, "symbol": symbol, "kind": kind} {
		if v != "" {
			tags[k] = v
		}
	}
	return tags
}
