package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/henry9622/ProgramaTelemedicina/internal/transport/http/middleware"
	"github.com/henry9622/ProgramaTelemedicina/internal/usecase"
)

// PlaceHandler serves health post management. Deletion and modification
// are absent on purpose: they go through the approval workflow.
type PlaceHandler struct {
	places *usecase.PlaceService
}

// NewPlaceHandler builds the place handler.
func NewPlaceHandler(places *usecase.PlaceService) *PlaceHandler {
	return &PlaceHandler{places: places}
}

// Create registers a new health post.
func (h *PlaceHandler) Create(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req CreatePlaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "nombre_posta and comuna are required"))
		return
	}

	place, err := h.places.Create(c.Request.Context(), actor, req.Name, req.Commune, middleware.GetOrigin(c))
	if err != nil {
		respondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrActionDenied, Status: http.StatusForbidden, Message: "role cannot create places"},
		})
		return
	}

	c.JSON(http.StatusCreated, toPlaceResponse(place))
}

// Get returns a single health post.
func (h *PlaceHandler) Get(c *gin.Context) {
	place, err := h.places.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrPlaceNotFound, Status: http.StatusNotFound, Message: "place not found"},
		})
		return
	}

	c.JSON(http.StatusOK, toPlaceResponse(place))
}

// List returns every health post.
func (h *PlaceHandler) List(c *gin.Context) {
	places, err := h.places.List(c.Request.Context())
	if err != nil {
		respondWithMappedError(c, err, nil)
		return
	}

	out := make([]PlaceResponse, 0, len(places))
	for i := range places {
		out = append(out, toPlaceResponse(&places[i]))
	}
	c.JSON(http.StatusOK, out)
}
