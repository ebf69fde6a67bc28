package port

import (
	"context"
	"time"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
)

// UserRepository exposes persistence behavior for operator accounts.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Delete(ctx context.Context, id string) error
	ApplyPatch(ctx context.Context, id string, patch domain.UserPatch) error
	CountByRole(ctx context.Context, role domain.Role) (int, error)
	// UpdatePassword stores a new hash and clears any legacy clear-text
	// credential in the same statement.
	UpdatePassword(ctx context.Context, id string, passwordHash string) error
	// RecordLoginFailure persists the incremented counter and, once the
	// threshold is reached, the lockout expiry.
	RecordLoginFailure(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error
	// RecordLoginSuccess resets the failure counter, clears the lockout,
	// and stamps the last access time.
	RecordLoginSuccess(ctx context.Context, id string, at time.Time) error
}
