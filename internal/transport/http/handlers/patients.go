package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/henry9622/ProgramaTelemedicina/internal/infra/security"
	"github.com/henry9622/ProgramaTelemedicina/internal/transport/http/middleware"
	"github.com/henry9622/ProgramaTelemedicina/internal/usecase"
)

// PatientHandler serves the pseudonymized patient identity flows.
type PatientHandler struct {
	intake *usecase.IntakeService
	rooms  *security.RoomTokenIssuer
}

// NewPatientHandler builds the patient handler.
func NewPatientHandler(intake *usecase.IntakeService, rooms *security.RoomTokenIssuer) *PatientHandler {
	return &PatientHandler{intake: intake, rooms: rooms}
}

// Register opens, or resumes, the identity mapping for a patient. The
// call is idempotent per RUT: a patient already mapped gets the same CIP
// back.
func (h *PatientHandler) Register(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req RegisterPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "rut is required"))
		return
	}

	identity, created, err := h.intake.RegisterPatient(c.Request.Context(), actor, req.RUT, req.Facility, middleware.GetOrigin(c))
	if err != nil {
		h.respondIntakeError(c, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, toPatientResponse(identity, created))
}

// Get returns the pseudonymized identity behind a CIP.
func (h *PatientHandler) Get(c *gin.Context) {
	identity, err := h.intake.GetByCIP(c.Request.Context(), c.Param("cip"))
	if err != nil {
		h.respondIntakeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toPatientResponse(identity, false))
}

// Find locates an existing mapping by RUT. The lookup is audited as a
// clinical history access.
func (h *PatientHandler) Find(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req FindPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "rut is required"))
		return
	}

	identity, err := h.intake.FindByRUT(c.Request.Context(), actor, req.RUT, middleware.GetOrigin(c))
	if err != nil {
		h.respondIntakeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toPatientResponse(identity, false))
}

// Reveal decrypts the RUT behind a CIP for the master role.
func (h *PatientHandler) Reveal(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	cip := c.Param("cip")
	rut, err := h.intake.RevealRUT(c.Request.Context(), actor, cip, middleware.GetOrigin(c))
	if err != nil {
		h.respondIntakeError(c, err)
		return
	}

	c.JSON(http.StatusOK, RevealResponse{CIP: cip, RUT: rut})
}

// RoomToken signs a video consultation token. The room name is the CIP,
// so the video infrastructure never learns who the patient is.
func (h *PatientHandler) RoomToken(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	cip := c.Param("cip")
	if _, err := h.intake.GetByCIP(c.Request.Context(), cip); err != nil {
		h.respondIntakeError(c, err)
		return
	}

	token, err := h.rooms.Issue(actor.Name, cip)
	if err != nil {
		c.JSON(http.StatusInternalServerError, NewErrorResponse(c, "could not sign room token"))
		return
	}

	c.JSON(http.StatusOK, RoomTokenResponse{Room: cip, Token: token})
}

func (h *PatientHandler) respondIntakeError(c *gin.Context, err error) {
	var rutErr *security.RUTError
	if errors.As(err, &rutErr) {
		c.JSON(http.StatusUnprocessableEntity, NewErrorResponse(c, rutErr.Error()))
		return
	}

	respondWithMappedError(c, err, []ErrorCase{
		{Err: usecase.ErrInvalidCIP, Status: http.StatusBadRequest, Message: "invalid cip"},
		{Err: usecase.ErrPatientNotFound, Status: http.StatusNotFound, Message: "patient not found"},
		{Err: usecase.ErrRevealDenied, Status: http.StatusForbidden, Message: "identity reveal denied"},
		{Err: usecase.ErrCIPExhausted, Status: http.StatusServiceUnavailable, Message: "could not allocate a patient code, retry"},
	})
}
