package port

import (
	"context"
	"time"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
)

// ApprovalRepository persists approval requests.
type ApprovalRepository interface {
	Create(ctx context.Context, request domain.ApprovalRequest) error
	GetByID(ctx context.Context, id string) (*domain.ApprovalRequest, error)
	ListPending(ctx context.Context, limit int) ([]domain.ApprovalRequest, error)
	ListByRequester(ctx context.Context, requesterID string, limit int) ([]domain.ApprovalRequest, error)
	CountPending(ctx context.Context) (int, error)
	// MarkResolved flips a pending request to a terminal status. The
	// update is conditioned on status still being pending; when another
	// resolver won the race it returns repository.ErrAlreadyResolved.
	MarkResolved(ctx context.Context, id string, status domain.ApprovalStatus, resolver domain.Actor, reason string, at time.Time) error
}
