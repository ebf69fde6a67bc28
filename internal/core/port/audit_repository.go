package port

import (
	"context"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
)

// AuditRepository persists the append-only audit trail. Entries are never
// updated or deleted.
type AuditRepository interface {
	Insert(ctx context.Context, entry domain.AuditEntry) error
	GetByID(ctx context.Context, id string) (*domain.AuditEntry, error)
	// List returns entries matching the filter, most recent first.
	List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error)
}
