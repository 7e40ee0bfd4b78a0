package callback

import (
	"fmt"
	"time"

	"callback-queue-service/internal/domain/callback"
	xerrors "callback-queue-service/internal/pkg/errors"
)

// CheckRetry enforces the retry bound recorded on the request.
func CheckRetry(req *callback.CallbackRequest) error {
	if req.RetriesExhausted() {
		return fmt.Errorf("callback %s has used %d/%d retries: %w",
			req.ID, req.RetryCount, req.MaxRetries, xerrors.ErrRetryExhausted)
	}
	return nil
}

// applyRetry records one more contact attempt and schedules the next one.
func applyRetry(req *callback.CallbackRequest, now time.Time) {
	req.RetryCount++
	last := now
	next := now.Add(time.Duration(req.RetryInterval) * time.Minute)
	req.LastAttemptAt = &last
	req.NextRetryAt = &next
	req.AssignedAgentID = ""
	req.AssignedAgentName = ""
}

// snapshotPolicy copies the active policy into a new request, honouring
// per-request overrides.
func snapshotPolicy(req *callback.CallbackRequest, policy callback.RetryPolicy, maxRetries, interval *int) {
	req.MaxRetries = policy.MaxRetries
	req.RetryInterval = policy.RetryIntervalMinutes
	if maxRetries != nil {
		req.MaxRetries = *maxRetries
	}
	if interval != nil {
		req.RetryInterval = *interval
	}
}
