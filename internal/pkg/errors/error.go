package xerrors

import "errors"

// Queue and API errors. Match with errors.Is; services wrap them with context.
var (
	ErrNotFound          = errors.New("callback not found")
	ErrRetryExhausted    = errors.New("max retries reached")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrPersistence       = errors.New("callback store unavailable")
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnknownAgent      = errors.New("unknown agent")
	ErrUnauthorized      = errors.New("unauthorized access")
	ErrForbidden         = errors.New("forbidden")
	ErrQueueStopped      = errors.New("callback queue is not running")
)

// Code returns a stable machine-readable code for API clients.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrRetryExhausted):
		return "retry_exhausted"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrPersistence):
		return "persistence_failure"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrUnknownAgent):
		return "unknown_agent"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrQueueStopped):
		return "queue_stopped"
	}
	return "internal"
}
