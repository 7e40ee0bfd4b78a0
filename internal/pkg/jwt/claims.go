// internal/pkg/jwt/claims.go
package jwt

import (
	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleAgent      = "agent"
	RoleSupervisor = "supervisor"
)

// Claims identifies a contact-centre agent. Tokens are minted by the
// console's auth service; this service only verifies them.
type Claims struct {
	AgentID   string   `json:"agent_id"`
	AgentName string   `json:"agent_name"`
	Roles     []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// HasRole checks if the claims contain a specific role
func (c *Claims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func (c *Claims) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if c.HasRole(role) {
			return true
		}
	}
	return false
}

func (c *Claims) IsSupervisor() bool {
	return c.HasRole(RoleSupervisor)
}

// VerifyAudience checks if the expected audience is listed in the claims.
func (c *Claims) VerifyAudience(audience string, required bool) bool {
	if len(c.Audience) == 0 {
		return !required
	}

	for _, aud := range c.Audience {
		if aud == audience {
			return true
		}
	}

	return false
}
