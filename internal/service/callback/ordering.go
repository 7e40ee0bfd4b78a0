package callback

import (
	"sort"

	"callback-queue-service/internal/domain/callback"
)

// ComputePositions ranks pending requests by (priority band, creation time)
// and returns the 1-based position of every request; non-pending get 0.
// Equal creation times fall back to the id so the result is total.
func ComputePositions(requests []*callback.CallbackRequest) map[string]int {
	pending := make([]*callback.CallbackRequest, 0, len(requests))
	positions := make(map[string]int, len(requests))

	for _, r := range requests {
		positions[r.ID] = 0
		if r.Status == callback.StatusPending {
			pending = append(pending, r)
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return queueLess(pending[i], pending[j])
	})

	for i, r := range pending {
		positions[r.ID] = i + 1
	}
	return positions
}

func queueLess(a, b *callback.CallbackRequest) bool {
	if ra, rb := a.Priority.Rank(), b.Priority.Rank(); ra != rb {
		return ra < rb
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// RecomputePositions applies ComputePositions in place and returns the
// requests whose position changed.
func RecomputePositions(requests []*callback.CallbackRequest) []*callback.CallbackRequest {
	positions := ComputePositions(requests)
	var changed []*callback.CallbackRequest
	for _, r := range requests {
		if p := positions[r.ID]; p != r.QueuePosition {
			r.QueuePosition = p
			changed = append(changed, r)
		}
	}
	return changed
}
