// internal/app/router.go
package app

import (
	agentHandler "callback-queue-service/internal/handlers/agent"
	callbackHandler "callback-queue-service/internal/handlers/callback"
	wsHandler "callback-queue-service/internal/handlers/websocket"
	"callback-queue-service/internal/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	CallbackHandler *callbackHandler.CallbackHandler
	AgentHandler    *agentHandler.AgentHandler
	WSHandler       *wsHandler.WebSocketHandler
	AuthMiddleware  *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	r.Use(
		middleware.RequestID(),
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
	)

	// ==================== Health Check ====================
	r.GET("/health", health)

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)

	api := r.Group("/api/v1")
	api.GET("/health", health)

	// ==================== Callbacks ====================
	callbacks := api.Group("/callbacks")
	callbacks.Use(h.AuthMiddleware.AgentOnly()...)
	{
		callbacks.POST("", h.CallbackHandler.CreateCallback)
		callbacks.GET("", h.CallbackHandler.ListCallbacks)
		callbacks.GET("/queue", h.CallbackHandler.GetQueue)
		callbacks.GET("/scheduled", h.CallbackHandler.GetScheduled)
		callbacks.GET("/stats", h.CallbackHandler.GetStats)
		callbacks.GET("/notifications", h.CallbackHandler.GetNotifications)
		callbacks.GET("/:id", h.CallbackHandler.GetCallback)

		callbacks.POST("/:id/notify", h.CallbackHandler.NotifyNextAgent)
		callbacks.POST("/:id/accept", h.CallbackHandler.AcceptCallback)
		callbacks.POST("/:id/reject", h.CallbackHandler.RejectCallback)
		callbacks.POST("/:id/start", h.CallbackHandler.StartCallback)
		callbacks.POST("/:id/complete", h.CallbackHandler.CompleteCallback)
		callbacks.POST("/:id/notes", h.CallbackHandler.AddNote)
	}

	// Supervisor-only transitions
	supervised := api.Group("/callbacks")
	supervised.Use(h.AuthMiddleware.SupervisorOnly()...)
	{
		supervised.POST("/:id/retry", h.CallbackHandler.RetryCallback)
		supervised.POST("/:id/cancel", h.CallbackHandler.CancelCallback)
		supervised.POST("/:id/fail", h.CallbackHandler.FailCallback)
	}

	// ==================== Agents ====================
	agents := api.Group("/agents")
	agents.Use(h.AuthMiddleware.AgentOnly()...)
	{
		agents.PUT("/presence", h.AgentHandler.UpdatePresence)
	}

	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.SupervisorOnly()...)
	{
		admin.GET("/ws/stats", h.WSHandler.GetStats)
	}
}

func health(c *gin.Context) {
	c.JSON(200, gin.H{"status": "ok", "service": "callback-queue"})
}
