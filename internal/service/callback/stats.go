package callback

import (
	"time"

	"callback-queue-service/internal/domain/callback"
)

// AggregateStats summarises the request set. AvailableAgentsForCallback is
// left at zero; it comes from the agent directory.
func AggregateStats(requests []*callback.CallbackRequest, now time.Time) callback.QueueStats {
	var stats callback.QueueStats
	totalWait := 0

	for _, r := range requests {
		switch r.Status {
		case callback.StatusPending:
			stats.TotalPending++
			totalWait += r.EstimatedWaitTime
			if waited := int(now.Sub(r.CreatedAt) / time.Minute); waited > stats.LongestWait {
				stats.LongestWait = waited
			}
		case callback.StatusScheduled:
			stats.TotalScheduled++
		case callback.StatusAccepted, callback.StatusInProgress:
			stats.TotalInProgress++
		case callback.StatusCompleted:
			if r.CompletedAt != nil && sameDay(*r.CompletedAt, now) {
				stats.CompletedToday++
			}
		case callback.StatusFailed:
			if r.FailedAt != nil && sameDay(*r.FailedAt, now) {
				stats.FailedToday++
			}
		}
	}

	if stats.TotalPending > 0 {
		stats.AverageWaitTime = float64(totalWait) / float64(stats.TotalPending)
	}
	return stats
}

func sameDay(t, now time.Time) bool {
	ty, tm, td := t.In(now.Location()).Date()
	ny, nm, nd := now.Date()
	return ty == ny && tm == nm && td == nd
}
