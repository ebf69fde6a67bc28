package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/transport/http/middleware"
)

// requireActor pulls the authenticated operator from the context. Routes
// behind RequireAuth always have one; a miss means a wiring mistake, so
// the request is rejected rather than attributed to a zero actor.
func requireActor(c *gin.Context) (domain.Actor, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized,
			NewErrorResponse(c, "authentication required"))
		return domain.Actor{}, false
	}
	return actor, true
}
