package middleware

import (
	"context"
	"net/http"
	"strings"

	"ordertrack/internal/modules/auth"
	"ordertrack/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

type verifier interface {
	Verify(ctx context.Context, credential string) (*auth.Identity, error)
}

// JWTAuth verifies the bearer token against the live user record and
// stores the resulting identity on the context.
func JWTAuth(v verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			response.FromError(c, auth.ErrMissingCredential)
			c.Abort()
			return
		}
		token := auth.BearerToken(header)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "INVALID_AUTH_FORMAT", "Authorization header must be 'Bearer <token>'")
			c.Abort()
			return
		}

		id, err := v.Verify(c.Request.Context(), token)
		if err != nil {
			response.FromError(c, err)
			c.Abort()
			return
		}

		auth.SetIdentity(c, id)
		c.Next()
	}
}
