// internal/handlers/agent/agent_handler.go
package agent

import (
	"context"
	"net/http"

	"callback-queue-service/internal/domain/callback"
	"callback-queue-service/internal/middleware"
	"callback-queue-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// PresenceUpdater records whether an agent takes callbacks right now.
type PresenceUpdater interface {
	SetAvailability(ctx context.Context, agentID, agentName string, available bool) error
}

type AgentHandler struct {
	presence PresenceUpdater
	logger   *zap.Logger
}

func NewAgentHandler(presence PresenceUpdater, logger *zap.Logger) *AgentHandler {
	return &AgentHandler{presence: presence, logger: logger}
}

// UpdatePresence is the agent heartbeat. Agents repeat it while available;
// presence lapses when heartbeats stop.
func (h *AgentHandler) UpdatePresence(c *gin.Context) {
	var req callback.PresenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request", err)
		return
	}

	agentID, agentName := middleware.MustGetAgent(c)
	if err := h.presence.SetAvailability(c.Request.Context(), agentID, agentName, req.Available); err != nil {
		h.logger.Error("failed to update agent presence",
			zap.String("agent_id", agentID),
			zap.Error(err),
		)
		response.Error(c, http.StatusServiceUnavailable, "failed to update presence", err)
		return
	}

	response.Success(c, http.StatusOK, "presence updated", gin.H{
		"agent_id":  agentID,
		"available": req.Available,
	})
}
