package callback

import (
	"fmt"

	xerrors "callback-queue-service/internal/pkg/errors"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusScheduled  Status = "scheduled"
	StatusNotified   Status = "notified"
	StatusAccepted   Status = "accepted"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusScheduled, StatusNotified, StatusAccepted,
		StatusInProgress, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Trigger names a lifecycle command.
type Trigger string

const (
	TriggerNotify   Trigger = "notify"
	TriggerAccept   Trigger = "accept"
	TriggerReject   Trigger = "reject"
	TriggerStart    Trigger = "start"
	TriggerComplete Trigger = "complete"
	TriggerRetry    Trigger = "retry"
	TriggerCancel   Trigger = "cancel"
	TriggerFail     Trigger = "fail"
	TriggerPromote  Trigger = "promote"
)

var terminalStatuses = map[Status]bool{
	StatusCompleted: true,
	StatusFailed:    true,
	StatusCancelled: true,
}

// Which triggers each status accepts. Terminal statuses accept nothing,
// except retry on failed, which always fails the retry guard instead.
var allowedTriggers = map[Status]map[Trigger]bool{
	StatusPending: {
		TriggerNotify:   true,
		TriggerAccept:   true,
		TriggerReject:   true,
		TriggerComplete: true,
		TriggerRetry:    true,
		TriggerCancel:   true,
		TriggerFail:     true,
	},
	StatusScheduled: {
		TriggerCancel:  true,
		TriggerFail:    true,
		TriggerPromote: true,
	},
	StatusNotified: {
		TriggerAccept:   true,
		TriggerReject:   true,
		TriggerComplete: true,
		TriggerCancel:   true,
		TriggerFail:     true,
	},
	StatusAccepted: {
		TriggerReject:   true,
		TriggerStart:    true,
		TriggerComplete: true,
		TriggerCancel:   true,
		TriggerFail:     true,
	},
	StatusInProgress: {
		TriggerComplete: true,
		TriggerCancel:   true,
		TriggerFail:     true,
	},
	StatusFailed: {
		TriggerRetry: true,
	},
}

var triggerTargets = map[Trigger]Status{
	TriggerNotify:   StatusNotified,
	TriggerAccept:   StatusAccepted,
	TriggerReject:   StatusPending,
	TriggerStart:    StatusInProgress,
	TriggerComplete: StatusCompleted,
	TriggerRetry:    StatusPending,
	TriggerCancel:   StatusCancelled,
	TriggerFail:     StatusFailed,
	TriggerPromote:  StatusPending,
}

func IsTerminal(s Status) bool {
	return terminalStatuses[s]
}

// Target returns the status a trigger moves a request into.
func Target(t Trigger) (Status, bool) {
	s, ok := triggerTargets[t]
	return s, ok
}

// ValidateTransition reports whether trigger may fire from status. The
// returned error wraps xerrors.ErrInvalidTransition.
func ValidateTransition(from Status, t Trigger) error {
	if _, ok := triggerTargets[t]; !ok {
		return fmt.Errorf("unknown trigger %q: %w", t, xerrors.ErrInvalidTransition)
	}
	allowed, ok := allowedTriggers[from]
	if !ok {
		return fmt.Errorf("cannot %s from terminal status %q: %w", t, from, xerrors.ErrInvalidTransition)
	}
	if !allowed[t] {
		return fmt.Errorf("cannot %s from status %q: %w", t, from, xerrors.ErrInvalidTransition)
	}
	return nil
}
