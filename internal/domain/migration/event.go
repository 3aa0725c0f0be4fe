package migration

// StreamEventType tags a progress stream event
type StreamEventType string

const (
	StreamEventProgress StreamEventType = "progress"
	StreamEventStatus   StreamEventType = "status"
	StreamEventComplete StreamEventType = "complete"
	StreamEventError    StreamEventType = "error"
)

// StreamEvent is one line of a progress stream. A stream ends after a
// complete or error event.
type StreamEvent struct {
	Type     StreamEventType `json:"type"`
	Progress *int            `json:"progress,omitempty"`
	Message  string          `json:"message,omitempty"`
	Count    *int            `json:"count,omitempty"`
}

// ProgressEvent reports a 0-100 percentage
func ProgressEvent(percent int) StreamEvent {
	return StreamEvent{Type: StreamEventProgress, Progress: &percent}
}

// StatusEvent reports a human-readable step
func StatusEvent(message string) StreamEvent {
	return StreamEvent{Type: StreamEventStatus, Message: message}
}

// CompleteEvent ends a stream successfully
func CompleteEvent(message string, count int) StreamEvent {
	return StreamEvent{Type: StreamEventComplete, Message: message, Count: &count}
}

// ErrorEvent ends a stream with a failure
func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Type: StreamEventError, Message: message}
}

// IsTerminal reports whether no event may follow this one
func (e StreamEvent) IsTerminal() bool {
	return e.Type == StreamEventComplete || e.Type == StreamEventError
}

// ProgressPercent is min(100, round(done/total*100)). It returns -1 when the
// total is unknown, in which case no progress should be reported.
func ProgressPercent(done, total int) int {
	if total <= 0 {
		return -1
	}
	pct := (done*200 + total) / (total * 2)
	if pct > 100 {
		return 100
	}
	if pct < 0 {
		return 0
	}
	return pct
}

// ProgressFunc receives a monotonically non-decreasing percentage
type ProgressFunc func(percent int)
