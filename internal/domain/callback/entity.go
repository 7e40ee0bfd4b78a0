// internal/domain/callback/entity.go
package callback

import (
	"encoding/json"
	"fmt"
	"time"
)

type Priority string

const (
	PriorityUrgent Priority = "urgent"
	PriorityHigh   Priority = "high"
	PriorityNormal Priority = "normal"
)

// Rank orders priority bands: urgent sorts before high before normal.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 0
	case PriorityHigh:
		return 1
	default:
		return 2
	}
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityNormal:
		return true
	}
	return false
}

type Channel string

const ChannelVoice Channel = "voice"

type NoteType string

const (
	NoteTypeSystem NoteType = "system"
	NoteTypeRetry  NoteType = "retry"
	NoteTypeAgent  NoteType = "agent"
)

func (t NoteType) Valid() bool {
	switch t {
	case NoteTypeSystem, NoteTypeRetry, NoteTypeAgent:
		return true
	}
	return false
}

// UnmarshalJSON rejects note types outside the closed set so persisted
// blobs cannot smuggle in unknown variants.
func (t *NoteType) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	nt := NoteType(s)
	if !nt.Valid() {
		return fmt.Errorf("unknown note type %q", s)
	}
	*t = nt
	return nil
}

// CallbackNote is one audit entry. Notes are append-only.
type CallbackNote struct {
	ID        string    `json:"id" db:"id"`
	Content   string    `json:"content" db:"content"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	CreatedBy string    `json:"created_by" db:"created_by"`
	Type      NoteType  `json:"type" db:"type"`
}

type CallbackRequest struct {
	ID string `json:"id" db:"id"`

	// Customer reference
	CustomerID    string `json:"customer_id" db:"customer_id"`
	CustomerName  string `json:"customer_name" db:"customer_name"`
	CustomerPhone string `json:"customer_phone" db:"customer_phone"`
	CustomerEmail string `json:"customer_email,omitempty" db:"customer_email"`

	// Classification
	Reason   string   `json:"reason" db:"reason"`
	Priority Priority `json:"priority" db:"priority"`
	Channel  Channel  `json:"channel" db:"channel"`
	Status   Status   `json:"status" db:"status"`

	// Scheduling
	ScheduledTime     *time.Time `json:"scheduled_time,omitempty" db:"scheduled_time"`
	ScheduledEndTime  *time.Time `json:"scheduled_end_time,omitempty" db:"scheduled_end_time"`
	EstimatedWaitTime int        `json:"estimated_wait_time" db:"estimated_wait_time"`
	QueuePosition     int        `json:"queue_position" db:"queue_position"`

	// Retry state
	RetryCount    int        `json:"retry_count" db:"retry_count"`
	MaxRetries    int        `json:"max_retries" db:"max_retries"`
	RetryInterval int        `json:"retry_interval" db:"retry_interval"`
	LastAttemptAt *time.Time `json:"last_attempt_at,omitempty" db:"last_attempt_at"`
	NextRetryAt   *time.Time `json:"next_retry_at,omitempty" db:"next_retry_at"`

	// Assignment
	AssignedAgentID   string `json:"assigned_agent_id,omitempty" db:"assigned_agent_id"`
	AssignedAgentName string `json:"assigned_agent_name,omitempty" db:"assigned_agent_name"`

	Notes []CallbackNote `json:"notes"`

	// Timestamps
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" db:"completed_at"`
	FailedAt    *time.Time `json:"failed_at,omitempty" db:"failed_at"`
}

// Clone returns a deep copy so callers outside the queue owner can never
// alias its state.
func (r *CallbackRequest) Clone() *CallbackRequest {
	if r == nil {
		return nil
	}
	c := *r
	c.ScheduledTime = cloneTime(r.ScheduledTime)
	c.ScheduledEndTime = cloneTime(r.ScheduledEndTime)
	c.LastAttemptAt = cloneTime(r.LastAttemptAt)
	c.NextRetryAt = cloneTime(r.NextRetryAt)
	c.CompletedAt = cloneTime(r.CompletedAt)
	c.FailedAt = cloneTime(r.FailedAt)
	if r.Notes != nil {
		c.Notes = make([]CallbackNote, len(r.Notes))
		copy(c.Notes, r.Notes)
	}
	return &c
}

func (r *CallbackRequest) IsAssigned() bool {
	return r.AssignedAgentID != ""
}

// AssignedTo reports whether agentID may act on the request: anyone may
// while it is unassigned.
func (r *CallbackRequest) AssignedTo(agentID string) bool {
	return !r.IsAssigned() || r.AssignedAgentID == agentID
}

func (r *CallbackRequest) RetriesExhausted() bool {
	return r.RetryCount >= r.MaxRetries
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

type NotificationStatus string

const (
	NotificationPending  NotificationStatus = "pending"
	NotificationAccepted NotificationStatus = "accepted"
	NotificationDeclined NotificationStatus = "declined"
)

// AgentCallbackNotification is a derived, ephemeral view of a notified
// request. It is rebuilt from the request set and never stored.
type AgentCallbackNotification struct {
	ID            string             `json:"id"`
	CallbackID    string             `json:"callback_id"`
	CustomerName  string             `json:"customer_name"`
	CustomerPhone string             `json:"customer_phone"`
	CustomerEmail string             `json:"customer_email,omitempty"`
	Reason        string             `json:"reason"`
	Priority      Priority           `json:"priority"`
	CreatedAt     time.Time          `json:"created_at"`
	ExpiresAt     time.Time          `json:"expires_at"`
	Status        NotificationStatus `json:"status"`
}

func (n AgentCallbackNotification) Expired(now time.Time) bool {
	return !now.Before(n.ExpiresAt)
}

type QueueStats struct {
	TotalPending               int     `json:"total_pending"`
	TotalScheduled             int     `json:"total_scheduled"`
	TotalInProgress            int     `json:"total_in_progress"`
	AverageWaitTime            float64 `json:"average_wait_time"`
	LongestWait                int     `json:"longest_wait"`
	CompletedToday             int     `json:"completed_today"`
	FailedToday                int     `json:"failed_today"`
	AvailableAgentsForCallback int     `json:"available_agents_for_callback"`
}
