package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
)

const (
	// TraceIDHeader is the HTTP header carrying the trace identifier.
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey is the gin context key for the trace identifier.
	TraceIDKey = "trace_id"

	actorKey          = "actor"
	requestContextKey = "request_context"
)

// RequestContext holds request-scoped metadata used for auditing.
type RequestContext struct {
	TraceID   string
	IP        string
	UserAgent string
}

// EnrichContext stamps each request with a trace identifier and captures
// the origin metadata the audit trail records.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		c.Set(requestContextKey, &RequestContext{
			TraceID:   traceID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})

		c.Next()
	}
}

// GetTraceID retrieves the trace identifier from the gin context.
func GetTraceID(c *gin.Context) string {
	if traceID, exists := c.Get(TraceIDKey); exists {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}

// GetRequestContext retrieves the request metadata captured by EnrichContext.
func GetRequestContext(c *gin.Context) *RequestContext {
	if ctx, exists := c.Get(requestContextKey); exists {
		if reqCtx, ok := ctx.(*RequestContext); ok {
			return reqCtx
		}
	}
	return &RequestContext{}
}

// GetOrigin builds the audit origin from the request metadata.
func GetOrigin(c *gin.Context) domain.Origin {
	reqCtx := GetRequestContext(c)
	return domain.Origin{IP: reqCtx.IP, UserAgent: reqCtx.UserAgent}
}

// SetActor stores the authenticated operator on the gin context.
func SetActor(c *gin.Context, actor domain.Actor) {
	c.Set(actorKey, actor)
}

// GetActor retrieves the authenticated operator. The second return value
// reports whether authentication middleware ran on this route.
func GetActor(c *gin.Context) (domain.Actor, bool) {
	if v, exists := c.Get(actorKey); exists {
		if actor, ok := v.(domain.Actor); ok {
			return actor, true
		}
	}
	return domain.Actor{}, false
}
