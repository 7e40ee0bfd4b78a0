// internal/middleware/auth_middleware.go
package middleware

import (
	"net/http"
	"strings"

	"callback-queue-service/internal/pkg/jwt"
	"callback-queue-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	ctxAgentID   = "agent_id"
	ctxAgentName = "agent_name"
	ctxRoles     = "roles"
	ctxJTI       = "jti"
)

type AuthMiddleware struct {
	verifier *jwt.Verifier
	logger   *zap.Logger
}

func NewAuthMiddleware(verifier *jwt.Verifier, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
		logger:   logger,
	}
}

// Auth validates the bearer token and puts the agent identity on the context
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractToken(c)
		if token == "" {
			response.Unauthorized(c, "missing authorization token")
			return
		}

		claims, err := m.verifier.Verify(token)
		if err != nil {
			m.logger.Debug("token rejected",
				zap.String("request_id", GetRequestID(c)),
				zap.Error(err),
			)
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		SetClaims(c, claims)
		c.Next()
	}
}

// RequireRole requires at least one of the roles. MUST be used after Auth().
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRoles := GetRoles(c)

		for _, have := range userRoles {
			for _, want := range roles {
				if have == want {
					c.Next()
					return
				}
			}
		}

		response.Error(c, http.StatusForbidden, "insufficient permissions", nil, map[string]interface{}{
			"required_roles": roles,
			"user_roles":     userRoles,
		})
	}
}

// AgentOnly returns Auth plus a check for any agent role
func (m *AuthMiddleware) AgentOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole(jwt.RoleAgent, jwt.RoleSupervisor),
	}
}

// SupervisorOnly returns Auth plus a supervisor role check
func (m *AuthMiddleware) SupervisorOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole(jwt.RoleSupervisor),
	}
}

// SetClaims copies the agent identity onto the gin context.
func SetClaims(c *gin.Context, claims *jwt.Claims) {
	c.Set(ctxAgentID, claims.AgentID)
	c.Set(ctxAgentName, claims.AgentName)
	c.Set(ctxRoles, claims.Roles)
	c.Set(ctxJTI, claims.ID)
}

// ExtractToken reads a Bearer token from the Authorization header, falling
// back to the token query parameter used by websocket clients.
func ExtractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}

	return c.Query("token")
}
