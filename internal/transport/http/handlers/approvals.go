package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/transport/http/middleware"
	"github.com/henry9622/ProgramaTelemedicina/internal/usecase"
)

// ApprovalHandler serves the two-tier approval workflow.
type ApprovalHandler struct {
	approvals *usecase.ApprovalService
}

// NewApprovalHandler builds the approval handler.
func NewApprovalHandler(approvals *usecase.ApprovalService) *ApprovalHandler {
	return &ApprovalHandler{approvals: approvals}
}

var resolutionErrorCases = []ErrorCase{
	{Err: usecase.ErrNotApprover, Status: http.StatusForbidden, Message: "role cannot resolve approval requests"},
	{Err: usecase.ErrApprovalNotFound, Status: http.StatusNotFound, Message: "approval request not found"},
	{Err: usecase.ErrApprovalNotPending, Status: http.StatusConflict, Message: "approval request already resolved"},
	{Err: usecase.ErrReasonRequired, Status: http.StatusBadRequest, Message: "motivo is required"},
	{Err: usecase.ErrLastMasterAdmin, Status: http.StatusConflict, Message: "cannot remove the last master admin"},
	{Err: usecase.ErrTemplateProtected, Status: http.StatusConflict, Message: "template place cannot be deleted"},
	{Err: usecase.ErrBackupMissing, Status: http.StatusNotFound, Message: "backup file not found"},
	{Err: usecase.ErrUserNotFound, Status: http.StatusNotFound, Message: "user not found"},
	{Err: usecase.ErrPlaceNotFound, Status: http.StatusNotFound, Message: "place not found"},
}

// Submit proposes an administrative action. Master admins see it execute
// immediately; subordinate admins get a pending request back.
func (h *ApprovalHandler) Submit(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req SubmitApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "accion, tipo_entidad and id_entidad are required"))
		return
	}

	var proposed any
	if len(req.Proposed) > 0 {
		proposed = req.Proposed
	}

	request, executed, err := h.approvals.Submit(c.Request.Context(), actor, usecase.ApprovalInput{
		Action:        domain.ActionKind(req.Action),
		EntityType:    req.EntityType,
		EntityID:      req.EntityID,
		Proposed:      proposed,
		Justification: req.Justification,
		Origin:        middleware.GetOrigin(c),
	})
	if err != nil {
		respondWithMappedError(c, err, append([]ErrorCase{
			{Err: usecase.ErrUnknownAction, Status: http.StatusBadRequest, Message: "unknown action"},
			{Err: usecase.ErrActionDenied, Status: http.StatusForbidden, Message: "role cannot perform this action"},
		}, resolutionErrorCases...))
		return
	}

	resp := SubmitApprovalResponse{Executed: executed}
	if request != nil {
		summary := toApprovalSummary(request)
		resp.Request = &summary
	}

	status := http.StatusOK
	if !executed {
		status = http.StatusAccepted
	}
	c.JSON(status, resp)
}

// Approve resolves a pending request and executes its action.
func (h *ApprovalHandler) Approve(c *gin.Context) {
	h.resolve(c, h.approvals.Approve)
}

// Reject resolves a pending request without executing it.
func (h *ApprovalHandler) Reject(c *gin.Context) {
	h.resolve(c, h.approvals.Reject)
}

func (h *ApprovalHandler) resolve(c *gin.Context, decide func(ctx context.Context, actor domain.Actor, requestID, reason string, origin domain.Origin) error) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "malformed decision payload"))
		return
	}

	if err := decide(c.Request.Context(), actor, c.Param("id"), req.Reason, middleware.GetOrigin(c)); err != nil {
		respondWithMappedError(c, err, resolutionErrorCases)
		return
	}

	c.JSON(http.StatusOK, MessageResponse{Message: "request resolved"})
}

// ListPending returns requests awaiting a decision.
func (h *ApprovalHandler) ListPending(c *gin.Context) {
	h.respondList(c, func(limit int) ([]domain.ApprovalRequest, error) {
		return h.approvals.ListPending(c.Request.Context(), limit)
	})
}

// ListMine returns the calling admin's own requests, resolved included.
func (h *ApprovalHandler) ListMine(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	h.respondList(c, func(limit int) ([]domain.ApprovalRequest, error) {
		return h.approvals.ListMine(c.Request.Context(), actor, limit)
	})
}

func (h *ApprovalHandler) respondList(c *gin.Context, list func(limit int) ([]domain.ApprovalRequest, error)) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, NewErrorResponse(c, "limit must be a non-negative integer"))
			return
		}
		limit = parsed
	}

	requests, err := list(limit)
	if err != nil {
		respondWithMappedError(c, err, nil)
		return
	}

	out := make([]ApprovalSummary, 0, len(requests))
	for i := range requests {
		out = append(out, toApprovalSummary(&requests[i]))
	}
	c.JSON(http.StatusOK, out)
}

// PendingCount feeds the approver dashboard badge.
func (h *ApprovalHandler) PendingCount(c *gin.Context) {
	count, err := h.approvals.PendingCount(c.Request.Context())
	if err != nil {
		respondWithMappedError(c, err, nil)
		return
	}

	c.JSON(http.StatusOK, PendingCountResponse{Pending: count})
}
