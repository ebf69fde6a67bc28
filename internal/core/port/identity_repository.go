package port

import (
	"context"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
)

// IdentityRepository persists the CIP-to-RUT mapping. The table is
// append-only: no update or delete is exposed.
type IdentityRepository interface {
	// Create inserts a new mapping. A CIP collision surfaces as
	// repository.ErrDuplicate so the caller can redraw.
	Create(ctx context.Context, identity domain.PatientIdentity) error
	GetByCIP(ctx context.Context, cip string) (*domain.PatientIdentity, error)
	// GetByRUTHash supports equality search without decryption.
	GetByRUTHash(ctx context.Context, rutHash string) (*domain.PatientIdentity, error)
	ExistsCIP(ctx context.Context, cip string) (bool, error)
}
