package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorCase maps a sentinel error to an HTTP status code and message.
// Store and usecase errors never reach the client raw: every handler
// resolves its error against a case list and falls back to a generic
// payload.
type ErrorCase struct {
	Err     error
	Status  int
	Message string
}

func respondWithMappedError(c *gin.Context, err error, cases []ErrorCase) {
	for _, cs := range cases {
		if cs.Err != nil && errors.Is(err, cs.Err) {
			c.JSON(cs.Status, NewErrorResponse(c, cs.Message))
			return
		}
	}

	c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "internal error"))
}
