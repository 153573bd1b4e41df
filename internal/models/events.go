package models

import "fmt"

// Event types written to an EventSink
const (
	EventTypeLog     = "log"
	EventTypeSummary = "summary"
)

// LogEvent is one record of the progress stream
type LogEvent struct {
	Type    string        `json:"type"`
	Message string        `json:"message,omitempty"`
	Data    any           `json:"data,omitempty"`
	Stats   *BatchSummary `json:"stats,omitempty"`
}

// EventSink receives progress events synchronously, in order
type EventSink interface {
	OnEvent(event LogEvent)
}

// EventSinkFunc adapts a function to EventSink
type EventSinkFunc func(event LogEvent)

// OnEvent calls f(event)
func (f EventSinkFunc) OnEvent(event LogEvent) {
	f(event)
}

// DiscardSink drops every event
var DiscardSink EventSink = EventSinkFunc(func(LogEvent) {})

// Logf emits a log event built from a format string
func Logf(sink EventSink, format string, args ...any) {
	if sink == nil {
		return
	}
	sink.OnEvent(LogEvent{Type: EventTypeLog, Message: fmt.Sprintf(format, args...)})
}

// LogWithData emits a log event carrying a payload
func LogWithData(sink EventSink, message string, data any) {
	if sink == nil {
		return
	}
	sink.OnEvent(LogEvent{Type: EventTypeLog, Message: message, Data: data})
}

// Summary emits the terminal summary event
func Summary(sink EventSink, stats *BatchSummary) {
	if sink == nil {
		return
	}
	sink.OnEvent(LogEvent{Type: EventTypeSummary, Stats: stats})
}
