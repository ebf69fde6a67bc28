package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/infra/security"
)

// ErrorResponse mirrors the handlers error payload so middleware can
// reject requests in the same wire format.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

func newErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: GetTraceID(c),
	}
}

// RequireAuth validates the Authorization header and places the
// authenticated operator on the context as a domain.Actor.
func RequireAuth(tokens *security.SessionTokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "invalid authorization format: expected 'Bearer <token>'"))
			return
		}

		token := strings.TrimSpace(parts[1])
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "missing session token"))
			return
		}

		claims, err := tokens.Verify(token)
		if err != nil {
			switch {
			case errors.Is(err, security.ErrExpiredSessionToken):
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "session token expired"))
			default:
				c.AbortWithStatusJSON(http.StatusUnauthorized,
					newErrorResponse(c, "invalid session token"))
			}
			return
		}

		SetActor(c, domain.Actor{
			ID:   claims.Subject,
			Name: claims.Name,
			Role: domain.Role(claims.Role),
		})

		c.Next()
	}
}

// RequireRole admits only operators holding one of the given roles. It
// must run after RequireAuth.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	allowed := make(map[domain.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized,
				newErrorResponse(c, "authentication required"))
			return
		}

		if _, ok := allowed[actor.Role]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden,
				newErrorResponse(c, "insufficient permissions"))
			return
		}

		c.Next()
	}
}
