package callback

import (
	"time"

	"callback-queue-service/internal/domain/callback"
)

const DefaultNotificationTTL = 5 * time.Minute

// ProjectNotifications derives agent notifications from every notified
// request. A request that was already projected keeps its original id and
// expiry, so unrelated queue changes do not extend the offer window.
func ProjectNotifications(requests []*callback.CallbackRequest, previous []callback.AgentCallbackNotification, generatedAt time.Time, ttl time.Duration) []callback.AgentCallbackNotification {
	prev := make(map[string]callback.AgentCallbackNotification, len(previous))
	for _, n := range previous {
		prev[n.CallbackID] = n
	}

	out := make([]callback.AgentCallbackNotification, 0)
	for _, r := range requests {
		if r.Status != callback.StatusNotified {
			continue
		}
		n := callback.AgentCallbackNotification{
			ID:            "notif-" + r.ID,
			CallbackID:    r.ID,
			CustomerName:  r.CustomerName,
			CustomerPhone: r.CustomerPhone,
			CustomerEmail: r.CustomerEmail,
			Reason:        r.Reason,
			Priority:      r.Priority,
			CreatedAt:     generatedAt,
			ExpiresAt:     generatedAt.Add(ttl),
			Status:        callback.NotificationPending,
		}
		if p, ok := prev[r.ID]; ok {
			n.CreatedAt = p.CreatedAt
			n.ExpiresAt = p.ExpiresAt
		}
		out = append(out, n)
	}
	return out
}

// ActiveNotifications drops expired entries. Expiry never changes the
// underlying request.
func ActiveNotifications(all []callback.AgentCallbackNotification, now time.Time) []callback.AgentCallbackNotification {
	out := make([]callback.AgentCallbackNotification, 0, len(all))
	for _, n := range all {
		if !n.Expired(now) {
			out = append(out, n)
		}
	}
	return out
}
