package postgres

import "github.com/jackc/pgx/v5/pgxpool"

// Repositories groups concrete PostgreSQL repository implementations.
type Repositories struct {
	Users      *UserRepository
	Identities *IdentityRepository
	Approvals  *ApprovalRepository
	Audit      *AuditRepository
	Places     *PlaceRepository
}

// NewRepositories wires all repositories backed by the provided pool.
func NewRepositories(pool *pgxpool.Pool) *Repositories {
	return &Repositories{
		Users:      NewUserRepository(pool),
		Identities: NewIdentityRepository(pool),
		Approvals:  NewApprovalRepository(pool),
		Audit:      NewAuditRepository(pool),
		Places:     NewPlaceRepository(pool),
	}
}
