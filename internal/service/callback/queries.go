package callback

import (
	"context"
	"sort"
	"time"

	"callback-queue-service/internal/domain/callback"

	"go.uber.org/zap"
)

// GetPendingQueue returns pending requests in queue order.
func (s *Service) GetPendingQueue() []*callback.CallbackRequest {
	snap := s.snap.Load()
	out := make([]*callback.CallbackRequest, 0)
	for _, r := range snap.requests {
		if r.Status == callback.StatusPending {
			out = append(out, r.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].QueuePosition < out[j].QueuePosition
	})
	return out
}

// GetScheduledCallbacks returns scheduled requests, soonest first.
func (s *Service) GetScheduledCallbacks() []*callback.CallbackRequest {
	snap := s.snap.Load()
	out := make([]*callback.CallbackRequest, 0)
	for _, r := range snap.requests {
		if r.Status == callback.StatusScheduled {
			out = append(out, r.Clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].ScheduledTime, out[j].ScheduledTime
		if a == nil || b == nil {
			return a != nil
		}
		return a.Before(*b)
	})
	return out
}

func (s *Service) GetCallback(id string) (*callback.CallbackRequest, error) {
	r, ok := s.snap.Load().byID[id]
	if !ok {
		return nil, notFound(id)
	}
	return r.Clone(), nil
}

// ListCallbacks returns every request matching the filter, oldest first.
func (s *Service) ListCallbacks(filter callback.CallbackListFilters) []*callback.CallbackRequest {
	out := make([]*callback.CallbackRequest, 0)
	for _, r := range s.snap.Load().requests {
		if filter.Status != nil && r.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && r.Priority != *filter.Priority {
			continue
		}
		if filter.AgentID != "" && r.AssignedAgentID != filter.AgentID {
			continue
		}
		out = append(out, r.Clone())
	}
	return out
}

// GetNotifications returns the unexpired agent notifications at now.
func (s *Service) GetNotifications(now time.Time) []callback.AgentCallbackNotification {
	return ActiveNotifications(s.snap.Load().notifications, now)
}

// GetStats aggregates the current snapshot. A failing agent directory is
// logged and reported as zero available agents.
func (s *Service) GetStats(ctx context.Context) callback.QueueStats {
	stats := AggregateStats(s.snap.Load().requests, s.clock.Now())
	if s.agents == nil {
		return stats
	}

	available, err := s.agents.AvailableForCallback(ctx)
	if err != nil {
		s.logger.Warn("failed to count available agents", zap.Error(err))
		return stats
	}
	stats.AvailableAgentsForCallback = available
	return stats
}

// Ready is closed once the initial load has been applied.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

// Done is closed once Run has returned.
func (s *Service) Done() <-chan struct{} {
	return s.done
}
