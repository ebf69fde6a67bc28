package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/core/port"
)

// BackupService exposes snapshot listing and creation. Deleting a
// snapshot is approval-gated and dispatched by the approval workflow.
type BackupService struct {
	backups port.BackupStore
	audit   *AuditService
	now     func() time.Time
}

// NewBackupService constructs a BackupService instance.
func NewBackupService(backups port.BackupStore, audit *AuditService) *BackupService {
	return &BackupService{backups: backups, audit: audit, now: time.Now}
}

// List returns the snapshots on the backup volume, newest first.
func (s *BackupService) List(ctx context.Context, actor domain.Actor) ([]domain.BackupFile, error) {
	if !actor.Role.IsMaster() && actor.Role != domain.RoleAdmin {
		return nil, ErrActionDenied
	}

	backups, err := s.backups.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	return backups, nil
}

// Snapshot creates a new backup entry.
func (s *BackupService) Snapshot(ctx context.Context, actor domain.Actor, origin domain.Origin) (*domain.BackupFile, error) {
	if !actor.Role.IsMaster() && actor.Role != domain.RoleAdmin {
		s.auditBackup(ctx, actor, "crear_respaldo", domain.OutcomeDenied, "", origin, "rol sin privilegios administrativos")
		return nil, ErrActionDenied
	}

	backup, err := s.backups.Snapshot(ctx)
	if err != nil {
		s.auditBackup(ctx, actor, "crear_respaldo", domain.OutcomeError, "", origin, err.Error())
		return nil, fmt.Errorf("create snapshot: %w", err)
	}

	s.auditBackup(ctx, actor, "crear_respaldo", domain.OutcomeSuccess, backup.Name, origin, "")

	return &backup, nil
}

func (s *BackupService) auditBackup(ctx context.Context, actor domain.Actor, action string, outcome domain.AuditOutcome, name string, origin domain.Origin, message string) {
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     action,
		Category:   domain.CategoryBackups,
		Outcome:    outcome,
		EntityType: "respaldo",
		EntityID:   name,
		Origin:     origin,
		Message:    message,
	})
}
