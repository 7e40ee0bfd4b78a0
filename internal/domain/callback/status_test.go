package callback

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	xerrors "callback-queue-service/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsTerminal(t *testing.T) {
	tests := []struct {
		status   Status
		terminal bool
	}{
		{StatusPending, false},
		{StatusScheduled, false},
		{StatusNotified, false},
		{StatusAccepted, false},
		{StatusInProgress, false},
		{StatusCompleted, true},
		{StatusFailed, true},
		{StatusCancelled, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, IsTerminal(tt.status))
		})
	}
}

func TestValidateTransition_Allowed(t *testing.T) {
	valid := []struct {
		from    Status
		trigger Trigger
	}{
		{StatusPending, TriggerNotify},
		{StatusPending, TriggerAccept},
		{StatusNotified, TriggerAccept},
		{StatusAccepted, TriggerReject},
		{StatusNotified, TriggerReject},
		{StatusAccepted, TriggerStart},
		{StatusInProgress, TriggerComplete},
		{StatusAccepted, TriggerComplete},
		{StatusPending, TriggerRetry},
		{StatusFailed, TriggerRetry},
		{StatusScheduled, TriggerCancel},
		{StatusInProgress, TriggerCancel},
		{StatusInProgress, TriggerFail},
		{StatusScheduled, TriggerPromote},
	}
	for _, tt := range valid {
		t.Run(string(tt.from)+"/"+string(tt.trigger), func(t *testing.T) {
			assert.NoError(t, ValidateTransition(tt.from, tt.trigger))
		})
	}
}

func TestValidateTransition_Rejected(t *testing.T) {
	invalid := []struct {
		from    Status
		trigger Trigger
	}{
		{StatusCompleted, TriggerStart},
		{StatusCancelled, TriggerAccept},
		{StatusFailed, TriggerCancel},
		{StatusScheduled, TriggerAccept},
		{StatusPending, TriggerStart},
		{StatusInProgress, TriggerAccept},
		{StatusNotified, TriggerNotify},
		{StatusAccepted, TriggerRetry},
		{StatusPending, TriggerPromote},
		{StatusPending, Trigger("teleport")},
	}
	for _, tt := range invalid {
		t.Run(string(tt.from)+"/"+string(tt.trigger), func(t *testing.T) {
			err := ValidateTransition(tt.from, tt.trigger)
			require.Error(t, err)
			assert.True(t, errors.Is(err, xerrors.ErrInvalidTransition))
		})
	}
}

func TestTerminalStatusesAcceptNoStatusChange(t *testing.T) {
	triggers := []Trigger{
		TriggerNotify, TriggerAccept, TriggerReject, TriggerStart,
		TriggerComplete, TriggerCancel, TriggerFail, TriggerPromote,
	}
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusCancelled} {
		for _, tr := range triggers {
			assert.Error(t, ValidateTransition(s, tr), "%s/%s", s, tr)
		}
	}
}

func TestPriorityRank(t *testing.T) {
	assert.Less(t, PriorityUrgent.Rank(), PriorityHigh.Rank())
	assert.Less(t, PriorityHigh.Rank(), PriorityNormal.Rank())
	assert.False(t, Priority("critical").Valid())
}

func TestNoteTypeUnmarshal(t *testing.T) {
	var n CallbackNote
	require.NoError(t, json.Unmarshal([]byte(`{"id":"n1","type":"retry"}`), &n))
	assert.Equal(t, NoteTypeRetry, n.Type)

	err := json.Unmarshal([]byte(`{"id":"n2","type":"escalation"}`), &n)
	assert.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	failed := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	orig := &CallbackRequest{
		ID:       "cb-1",
		Notes:    []CallbackNote{{ID: "n1", Content: "created"}},
		FailedAt: &failed,
	}
	c := orig.Clone()
	c.Notes[0].Content = "changed"
	c.Notes = append(c.Notes, CallbackNote{ID: "n2"})
	*c.FailedAt = failed.Add(time.Hour)

	assert.Equal(t, "created", orig.Notes[0].Content)
	assert.Len(t, orig.Notes, 1)
	assert.Equal(t, failed, *orig.FailedAt)
}

func TestAssignedTo(t *testing.T) {
	r := &CallbackRequest{}
	assert.True(t, r.AssignedTo("agent-2"))

	r.AssignedAgentID = "agent-1"
	assert.True(t, r.IsAssigned())
	assert.True(t, r.AssignedTo("agent-1"))
	assert.False(t, r.AssignedTo("agent-2"))
}
