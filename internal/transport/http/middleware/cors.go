package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// The API speaks JSON over GET and POST behind a bearer header, so the
// preflight grants stay that narrow. Correlation headers are exposed so
// browser frontends can surface trace ids in support tickets.
const (
	corsAllowMethods  = "GET, POST, OPTIONS"
	corsAllowHeaders  = "Content-Type, Authorization, X-Request-ID"
	corsExposeHeaders = "X-Request-ID, X-Trace-ID"
	corsMaxAge        = "600"
)

// CORS grants cross-origin access to the browser frontends listed in
// app.cors_allowed_origins. A "*" entry opens the API to any origin;
// requests from unlisted origins pass through without a grant and the
// browser enforces the refusal.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	allowAll := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		if origin == "*" {
			allowAll = true
			continue
		}
		if origin != "" {
			allowed[origin] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			c.Next()
			return
		}

		grant := ""
		if allowAll {
			grant = "*"
		} else if _, ok := allowed[strings.TrimRight(origin, "/")]; ok {
			grant = origin
		}

		if grant == "" {
			c.Next()
			return
		}

		c.Header("Access-Control-Allow-Origin", grant)
		c.Header("Access-Control-Expose-Headers", corsExposeHeaders)
		if grant != "*" {
			c.Header("Vary", "Origin")
		}

		if c.Request.Method == http.MethodOptions {
			c.Header("Access-Control-Allow-Methods", corsAllowMethods)
			c.Header("Access-Control-Allow-Headers", corsAllowHeaders)
			c.Header("Access-Control-Max-Age", corsMaxAge)
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
