// internal/domain/callback/dto.go
package callback

import "time"

type CreateCallbackRequest struct {
	CustomerID       string     `json:"customer_id"`
	CustomerName     string     `json:"customer_name" binding:"required,max=255"`
	CustomerPhone    string     `json:"customer_phone" binding:"required,max=32"`
	CustomerEmail    string     `json:"customer_email,omitempty" binding:"omitempty,email"`
	Reason           string     `json:"reason" binding:"required"`
	Priority         Priority   `json:"priority,omitempty"`
	ScheduledTime    *time.Time `json:"scheduled_time,omitempty"`
	ScheduledEndTime *time.Time `json:"scheduled_end_time,omitempty"`
	// Optional per-request override of the active policy.
	MaxRetries    *int `json:"max_retries,omitempty" binding:"omitempty,min=0"`
	RetryInterval *int `json:"retry_interval,omitempty" binding:"omitempty,min=0"`
}

type CompleteCallbackRequest struct {
	Notes string `json:"notes,omitempty"`
}

type ReasonRequest struct {
	Reason string `json:"reason,omitempty"`
}

type AddNoteRequest struct {
	Content string `json:"content" binding:"required"`
}

type CallbackListFilters struct {
	Status   *Status   `form:"status"`
	Priority *Priority `form:"priority"`
	AgentID  string    `form:"agent_id"`
}

type PresenceRequest struct {
	Available bool `json:"available"`
}
