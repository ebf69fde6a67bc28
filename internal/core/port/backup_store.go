package port

import (
	"context"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
)

// BackupStore manages database snapshots on the backup volume. Rotation
// itself is an external job; this core only lists, snapshots, and deletes
// through the approval workflow.
type BackupStore interface {
	List(ctx context.Context) ([]domain.BackupFile, error)
	Exists(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, name string) error
	Snapshot(ctx context.Context) (domain.BackupFile, error)
}
