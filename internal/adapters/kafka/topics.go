package kafka

// Default topic names. Both can be overridden through configuration.
const (
	TopicSignals       = "marketpulse.signals"
	TopicCycleFailures = "marketpulse.cycle_failures"
)

// Event types carried in the "event_type" message header
const (
	EventSignal       = "signal"
	EventCycleFailure = "cycle_failure"
)

// HeaderEventType is the message header naming the payload kind
const HeaderEventType = "event_type"
