package port

import "context"

// PendingCounterCache caches the number of pending approval requests
// shown on operator dashboards. Misses fall through to the repository.
type PendingCounterCache interface {
	Get(ctx context.Context) (count int, ok bool, err error)
	Set(ctx context.Context, count int) error
	Invalidate(ctx context.Context) error
}
