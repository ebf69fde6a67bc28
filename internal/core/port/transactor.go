package port

import "context"

// Transactor runs fn inside a single database transaction. Repositories
// participating in the transaction pick it up from the context, so the
// approval status flip and the dispatched mutation commit or roll back as
// one unit.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
