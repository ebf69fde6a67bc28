package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/henry9622/ProgramaTelemedicina/internal/transport/http/middleware"
	"github.com/henry9622/ProgramaTelemedicina/internal/usecase"
)

// BackupHandler serves snapshot listing and creation. Deleting a
// snapshot is approval-gated and therefore lives under /approvals.
type BackupHandler struct {
	backups *usecase.BackupService
}

// NewBackupHandler builds the backup handler.
func NewBackupHandler(backups *usecase.BackupService) *BackupHandler {
	return &BackupHandler{backups: backups}
}

// List returns the snapshots on the backup volume, newest first.
func (h *BackupHandler) List(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	files, err := h.backups.List(c.Request.Context(), actor)
	if err != nil {
		respondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrActionDenied, Status: http.StatusForbidden, Message: "role cannot manage backups"},
		})
		return
	}

	out := make([]BackupResponse, 0, len(files))
	for _, file := range files {
		out = append(out, toBackupResponse(file))
	}
	c.JSON(http.StatusOK, out)
}

// Snapshot registers a new snapshot slot for the dump job to fill.
func (h *BackupHandler) Snapshot(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}

	file, err := h.backups.Snapshot(c.Request.Context(), actor, middleware.GetOrigin(c))
	if err != nil {
		respondWithMappedError(c, err, []ErrorCase{
			{Err: usecase.ErrActionDenied, Status: http.StatusForbidden, Message: "role cannot manage backups"},
		})
		return
	}

	c.JSON(http.StatusCreated, toBackupResponse(*file))
}
