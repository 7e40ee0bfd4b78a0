// internal/handlers/callback/callback_handler.go
package callback

import (
	"context"
	"net/http"
	"time"

	"callback-queue-service/internal/domain/callback"
	"callback-queue-service/internal/middleware"
	"callback-queue-service/internal/pkg/jwt"
	"callback-queue-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// Queue is the callback service as seen by the HTTP layer.
type Queue interface {
	CreateCallback(ctx context.Context, in callback.CreateCallbackRequest) (*callback.CallbackRequest, error)
	NotifyNextAgent(ctx context.Context, id string) (*callback.CallbackRequest, error)
	AcceptCallback(ctx context.Context, id, agentID, agentName string) (*callback.CallbackRequest, error)
	RejectCallback(ctx context.Context, id, agentID, agentName, reason string) (*callback.CallbackRequest, error)
	StartCallback(ctx context.Context, id, agentID string) (*callback.CallbackRequest, error)
	CompleteCallback(ctx context.Context, id, agentID, notes string) (*callback.CallbackRequest, error)
	RetryCallback(ctx context.Context, id string) (*callback.CallbackRequest, error)
	CancelCallback(ctx context.Context, id, reason string) (*callback.CallbackRequest, error)
	FailCallback(ctx context.Context, id, reason string) (*callback.CallbackRequest, error)
	AddAgentNote(ctx context.Context, id, author, content string) (*callback.CallbackRequest, error)

	GetCallback(id string) (*callback.CallbackRequest, error)
	ListCallbacks(filter callback.CallbackListFilters) []*callback.CallbackRequest
	GetPendingQueue() []*callback.CallbackRequest
	GetScheduledCallbacks() []*callback.CallbackRequest
	GetNotifications(now time.Time) []callback.AgentCallbackNotification
	GetStats(ctx context.Context) callback.QueueStats
}

type CallbackHandler struct {
	queue Queue
	now   func() time.Time
}

func NewCallbackHandler(queue Queue, now func() time.Time) *CallbackHandler {
	if now == nil {
		now = time.Now
	}
	return &CallbackHandler{queue: queue, now: now}
}

// CreateCallback registers a new callback request
func (h *CallbackHandler) CreateCallback(c *gin.Context) {
	var req callback.CreateCallbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	result, err := h.queue.CreateCallback(c.Request.Context(), req)
	if err != nil {
		response.FromError(c, "failed to create callback", err)
		return
	}

	response.Success(c, http.StatusCreated, "callback created", result)
}

func (h *CallbackHandler) ListCallbacks(c *gin.Context) {
	var filters callback.CallbackListFilters
	if err := c.ShouldBindQuery(&filters); err != nil {
		response.ValidationError(c, "invalid query parameters", err)
		return
	}
	if filters.Status != nil && !filters.Status.Valid() {
		response.ValidationError(c, "invalid status filter", nil)
		return
	}
	if filters.Priority != nil && !filters.Priority.Valid() {
		response.ValidationError(c, "invalid priority filter", nil)
		return
	}

	result := h.queue.ListCallbacks(filters)
	response.Success(c, http.StatusOK, "callbacks retrieved", gin.H{
		"callbacks": result,
		"total":     len(result),
	})
}

func (h *CallbackHandler) GetCallback(c *gin.Context) {
	result, err := h.queue.GetCallback(c.Param("id"))
	if err != nil {
		response.FromError(c, "callback not found", err)
		return
	}

	response.Success(c, http.StatusOK, "callback retrieved", result)
}

// GetQueue returns pending callbacks in queue order
func (h *CallbackHandler) GetQueue(c *gin.Context) {
	result := h.queue.GetPendingQueue()
	response.Success(c, http.StatusOK, "queue retrieved", gin.H{
		"callbacks": result,
		"total":     len(result),
	})
}

func (h *CallbackHandler) GetScheduled(c *gin.Context) {
	result := h.queue.GetScheduledCallbacks()
	response.Success(c, http.StatusOK, "scheduled callbacks retrieved", gin.H{
		"callbacks": result,
		"total":     len(result),
	})
}

func (h *CallbackHandler) GetStats(c *gin.Context) {
	response.Success(c, http.StatusOK, "stats retrieved", h.queue.GetStats(c.Request.Context()))
}

// GetNotifications returns the offers that have not expired yet
func (h *CallbackHandler) GetNotifications(c *gin.Context) {
	result := h.queue.GetNotifications(h.now())
	response.Success(c, http.StatusOK, "notifications retrieved", gin.H{
		"notifications": result,
		"total":         len(result),
	})
}

func (h *CallbackHandler) NotifyNextAgent(c *gin.Context) {
	result, err := h.queue.NotifyNextAgent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "failed to notify agents", err)
		return
	}

	response.Success(c, http.StatusOK, "agents notified", result)
}

// AcceptCallback assigns the callback to the calling agent
func (h *CallbackHandler) AcceptCallback(c *gin.Context) {
	agentID, agentName := middleware.MustGetAgent(c)

	result, err := h.queue.AcceptCallback(c.Request.Context(), c.Param("id"), agentID, agentName)
	if err != nil {
		response.FromError(c, "failed to accept callback", err)
		return
	}

	response.Success(c, http.StatusOK, "callback accepted", result)
}

func (h *CallbackHandler) RejectCallback(c *gin.Context) {
	var req callback.ReasonRequest
	if !bindOptional(c, &req) {
		return
	}
	_, agentName := middleware.MustGetAgent(c)

	result, err := h.queue.RejectCallback(c.Request.Context(), c.Param("id"), actingAgent(c), agentName, req.Reason)
	if err != nil {
		response.FromError(c, "failed to reject callback", err)
		return
	}

	response.Success(c, http.StatusOK, "callback rejected", result)
}

func (h *CallbackHandler) StartCallback(c *gin.Context) {
	result, err := h.queue.StartCallback(c.Request.Context(), c.Param("id"), actingAgent(c))
	if err != nil {
		response.FromError(c, "failed to start callback", err)
		return
	}

	response.Success(c, http.StatusOK, "callback started", result)
}

func (h *CallbackHandler) CompleteCallback(c *gin.Context) {
	var req callback.CompleteCallbackRequest
	if !bindOptional(c, &req) {
		return
	}

	result, err := h.queue.CompleteCallback(c.Request.Context(), c.Param("id"), actingAgent(c), req.Notes)
	if err != nil {
		response.FromError(c, "failed to complete callback", err)
		return
	}

	response.Success(c, http.StatusOK, "callback completed", result)
}

func (h *CallbackHandler) RetryCallback(c *gin.Context) {
	result, err := h.queue.RetryCallback(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "failed to retry callback", err)
		return
	}

	response.Success(c, http.StatusOK, "callback requeued", result)
}

func (h *CallbackHandler) CancelCallback(c *gin.Context) {
	var req callback.ReasonRequest
	if !bindOptional(c, &req) {
		return
	}

	result, err := h.queue.CancelCallback(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		response.FromError(c, "failed to cancel callback", err)
		return
	}

	response.Success(c, http.StatusOK, "callback cancelled", result)
}

func (h *CallbackHandler) FailCallback(c *gin.Context) {
	var req callback.ReasonRequest
	if !bindOptional(c, &req) {
		return
	}

	result, err := h.queue.FailCallback(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		response.FromError(c, "failed to mark callback failed", err)
		return
	}

	response.Success(c, http.StatusOK, "callback failed", result)
}

// AddNote appends an agent note; the author is the calling agent
func (h *CallbackHandler) AddNote(c *gin.Context) {
	var req callback.AddNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}
	_, agentName := middleware.MustGetAgent(c)

	result, err := h.queue.AddAgentNote(c.Request.Context(), c.Param("id"), agentName, req.Content)
	if err != nil {
		response.FromError(c, "failed to add note", err)
		return
	}

	response.Success(c, http.StatusCreated, "note added", result)
}

// bindOptional binds a JSON body when one was sent. Empty bodies are fine.
func bindOptional(c *gin.Context, target interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(target); err != nil {
		response.ValidationError(c, "invalid request", err)
		return false
	}
	return true
}

// actingAgent is the agent id that must own an assigned callback, or empty
// for supervisors, who may act on any callback.
func actingAgent(c *gin.Context) string {
	if middleware.HasRole(c, jwt.RoleSupervisor) {
		return ""
	}
	agentID, _ := middleware.MustGetAgent(c)
	return agentID
}
