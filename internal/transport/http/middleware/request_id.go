package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/henry9622/ProgramaTelemedicina/internal/infra/logger"
)

const requestIDHeader = "X-Request-ID"

// RequestID tags every request with a correlation identifier. An
// incoming X-Request-ID is honoured only when it parses as a UUID, so
// audit origins and log lines never carry caller-chosen strings.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(requestIDHeader)
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.NewString()
		}

		c.Writer.Header().Set(requestIDHeader, reqID)
		ctx := context.WithValue(c.Request.Context(), logger.RequestIDKey{}, reqID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
