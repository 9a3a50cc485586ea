package main

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"marketpulse/internal/adapters/kafka"
	"marketpulse/internal/domain/prediction"
	"marketpulse/internal/services/notify"
	"marketpulse/internal/workers/analysis"
)

func message(t *testing.T, eventType string, v interface{}) kafkago.Message {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return kafkago.Message{
		Value:   data,
		Headers: []kafkago.Header{{Key: kafka.HeaderEventType, Value: []byte(eventType)}},
	}
}

func TestPrintSignal(t *testing.T) {
	ts := time.Date(2026, 3, 1, 14, 0, 0, 0, time.UTC)
	msg := message(t, kafka.EventSignal, notify.SignalEvent{
		Symbol:        "USDTTMN",
		Timestamp:     ts,
		Price:         61250,
		Consensus:     prediction.ActionBuy,
		StrategyScore: 65,
		AIDirection:   prediction.ActionBuy,
		AIProbability: 0.61,
		Accuracy:      75,
		Reasons:       []string{"Oversold RSI (25)"},
	})

	var buf bytes.Buffer
	require.NoError(t, printEvent(&buf, msg))

	out := buf.String()
	assert.Contains(t, out, "2026-03-01 14:00")
	assert.Contains(t, out, "price=61,250")
	assert.Contains(t, out, "score=65.0")
	assert.Contains(t, out, "Oversold RSI (25)")
}

func TestPrintFailure(t *testing.T) {
	msg := message(t, kafka.EventCycleFailure, analysis.Failure{
		Symbol: "USDTTMN", Kind: "transient", Message: "fetch timed out",
	})

	var buf bytes.Buffer
	require.NoError(t, printEvent(&buf, msg))
	assert.Contains(t, buf.String(), "FAILED (transient) fetch timed out")
}

func TestPrintRejectsBadPayload(t *testing.T) {
	msg := kafkago.Message{
		Value:   []byte("{"),
		Headers: []kafkago.Header{{Key: kafka.HeaderEventType, Value: []byte(kafka.EventSignal)}},
	}
	assert.Error(t, printEvent(&bytes.Buffer{}, msg))
}

func TestPrintUnknownEvent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, printEvent(&buf, kafkago.Message{Offset: 7, Value: []byte("abc")}))
	assert.Contains(t, buf.String(), "offset 7")
}
