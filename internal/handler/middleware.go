package handler

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Redennison/CampusCollab/relay-service/internal/auth"
	"github.com/Redennison/CampusCollab/relay-service/pkg/log"
	"github.com/Redennison/CampusCollab/relay-service/pkg/response"
)

const (
	userIDKey     = "user_id"
	authHeaderKey = "Authorization"
	bearerPrefix  = "Bearer "
)

// RequireAuth returns a Gin middleware that validates the bearer credential
// and stores the resolved user id in the request context.
func RequireAuth(verifier auth.TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader(authHeaderKey)
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}

		if !strings.HasPrefix(header, bearerPrefix) {
			response.Unauthorized(c, "invalid authorization format")
			c.Abort()
			return
		}

		token := strings.TrimPrefix(header, bearerPrefix)
		identity, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			response.Unauthorized(c, "invalid credential")
			c.Abort()
			return
		}

		c.Set(userIDKey, identity.UserID)
		c.Set(log.FieldUserID, identity.UserID)

		c.Next()
	}
}

// UserID extracts the authenticated user id from the Gin context.
func UserID(c *gin.Context) string {
	if id, exists := c.Get(userIDKey); exists {
		return id.(string)
	}
	return ""
}
