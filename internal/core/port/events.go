package port

import (
	"context"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
)

// EventPublisher delivers security events to the operational side
// channel. Implementations must be safe to call from any goroutine.
// Callers treat publishing as best-effort: a publish error is logged,
// never propagated to the business action.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.SecurityEvent) error
	Close() error
}
