// internal/middleware/helpers.go
package middleware

import "github.com/gin-gonic/gin"

// GetAgent returns the authenticated agent's id and display name
func GetAgent(c *gin.Context) (string, string, bool) {
	id := c.GetString(ctxAgentID)
	name := c.GetString(ctxAgentName)
	return id, name, id != ""
}

// MustGetAgent gets the agent from context or panics
func MustGetAgent(c *gin.Context) (string, string) {
	id, name, ok := GetAgent(c)
	if !ok {
		panic("agent_id not found in context")
	}
	return id, name
}

// GetRoles gets agent roles from context
func GetRoles(c *gin.Context) []string {
	roles, exists := c.Get(ctxRoles)
	if !exists {
		return []string{}
	}

	rolesList, ok := roles.([]string)
	if !ok {
		return []string{}
	}

	return rolesList
}

func HasRole(c *gin.Context, role string) bool {
	for _, r := range GetRoles(c) {
		if r == role {
			return true
		}
	}
	return false
}
