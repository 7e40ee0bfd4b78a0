// internal/middleware/recovery_middleware.go
package middleware

import (
	"errors"
	"net/http"
	"syscall"

	"callback-queue-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryMiddleware turns a handler panic into a 500. A panic caused by the
// client hanging up only aborts the request.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			fields := []zap.Field{
				zap.Any("panic", rec),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("request_id", GetRequestID(c)),
			}
			if agentID, _, ok := GetAgent(c); ok {
				fields = append(fields, zap.String("agent_id", agentID))
			}

			if err, ok := rec.(error); ok && clientGone(err) {
				logger.Warn("client disconnected mid-request", fields...)
				c.Abort()
				return
			}

			logger.Error("panic recovered", append(fields, zap.Stack("stack"))...)
			response.Error(c, http.StatusInternalServerError, "internal server error", nil)
		}()
		c.Next()
	}
}

func clientGone(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}
