package port

import (
	"context"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
)

// PlaceRepository exposes persistence behavior for health posts.
type PlaceRepository interface {
	Create(ctx context.Context, place domain.Place) error
	GetByID(ctx context.Context, id string) (*domain.Place, error)
	List(ctx context.Context) ([]domain.Place, error)
	Delete(ctx context.Context, id string) error
	ApplyPatch(ctx context.Context, id string, patch domain.PlacePatch) error
}
