package callback

import "time"

type EventType string

const (
	EventCreated        EventType = "callback.created"
	EventScheduled      EventType = "callback.scheduled"
	EventNotified       EventType = "callback.notified"
	EventAccepted       EventType = "callback.accepted"
	EventRejected       EventType = "callback.rejected"
	EventStarted        EventType = "callback.started"
	EventCompleted      EventType = "callback.completed"
	EventRetried        EventType = "callback.retried"
	EventRetryExhausted EventType = "callback.retry_exhausted"
	EventCancelled      EventType = "callback.cancelled"
	EventFailed         EventType = "callback.failed"
	EventPromoted       EventType = "callback.promoted"
	EventNoteAdded      EventType = "callback.note_added"
)

type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Event is what the queue tells the outside world after a command. Title and
// Message are operator-readable; formatting for display is up to the sink.
type Event struct {
	ID           string                     `json:"id"`
	Type         EventType                  `json:"type"`
	CallbackID   string                     `json:"callback_id"`
	Title        string                     `json:"title"`
	Message      string                     `json:"message"`
	Severity     Severity                   `json:"severity"`
	Callback     *CallbackRequest           `json:"callback,omitempty"`
	Notification *AgentCallbackNotification `json:"notification,omitempty"`
	OccurredAt   time.Time                  `json:"occurred_at"`
}
