package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/usecase"
)

// AuditHandler serves the tamper-evident audit trail.
type AuditHandler struct {
	audit *usecase.AuditService
}

// NewAuditHandler builds the audit handler.
func NewAuditHandler(audit *usecase.AuditService) *AuditHandler {
	return &AuditHandler{audit: audit}
}

func auditFilterFromQuery(c *gin.Context) (domain.AuditFilter, bool) {
	filter := domain.AuditFilter{
		Category: domain.AuditCategory(c.Query("categoria")),
		ActorID:  c.Query("usuario_id"),
	}

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "limit must be a non-negative integer"))
			return domain.AuditFilter{}, false
		}
		filter.Limit = limit
	}

	return filter, true
}

// List returns audit entries, newest first.
func (h *AuditHandler) List(c *gin.Context) {
	filter, ok := auditFilterFromQuery(c)
	if !ok {
		return
	}

	entries, err := h.audit.List(c.Request.Context(), filter)
	if err != nil {
		respondWithMappedError(c, err, nil)
		return
	}

	out := make([]AuditEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, toAuditEntryResponse(entry))
	}
	c.JSON(http.StatusOK, out)
}

// Verify recomputes the checksum of a single entry.
func (h *AuditHandler) Verify(c *gin.Context) {
	id := c.Param("id")
	valid, err := h.audit.Verify(c.Request.Context(), id)
	if err != nil {
		respondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrEntryNotFound, Status: http.StatusNotFound, Message: "audit entry not found"},
		})
		return
	}

	c.JSON(http.StatusOK, VerifyResponse{ID: id, Valid: valid})
}

// VerifyRange recomputes checksums over a filtered slice of the trail
// and reports the identifiers whose stored rows no longer match.
func (h *AuditHandler) VerifyRange(c *gin.Context) {
	filter, ok := auditFilterFromQuery(c)
	if !ok {
		return
	}

	tampered, err := h.audit.VerifyRange(c.Request.Context(), filter)
	if err != nil {
		respondWithMappedError(c, err, nil)
		return
	}

	if tampered == nil {
		tampered = []string{}
	}
	c.JSON(http.StatusOK, VerifyRangeResponse{Tampered: tampered})
}
