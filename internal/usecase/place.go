package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/core/port"
	"github.com/henry9622/ProgramaTelemedicina/internal/repository"
)

// ErrPlaceNotFound indicates the health post does not exist.
var ErrPlaceNotFound = errors.New("place not found")

// PlaceService manages the health post registry. Deletion and
// modification of existing places go through the approval workflow.
type PlaceService struct {
	places port.PlaceRepository
	audit  *AuditService
	now    func() time.Time
}

// NewPlaceService constructs a PlaceService instance.
func NewPlaceService(places port.PlaceRepository, audit *AuditService) *PlaceService {
	return &PlaceService{places: places, audit: audit, now: time.Now}
}

// Create registers a new health post.
func (s *PlaceService) Create(ctx context.Context, actor domain.Actor, name, commune string, origin domain.Origin) (*domain.Place, error) {
	if !actor.Role.IsMaster() && actor.Role != domain.RoleAdmin {
		s.auditPlace(ctx, actor, "crear_lugar", domain.OutcomeDenied, "", origin, "rol sin privilegios administrativos")
		return nil, ErrActionDenied
	}

	name = strings.TrimSpace(name)
	commune = strings.TrimSpace(commune)
	if name == "" || commune == "" {
		return nil, fmt.Errorf("name and commune are required")
	}

	place := domain.Place{
		ID:        uuid.NewString(),
		Name:      name,
		Commune:   commune,
		CreatedAt: s.now().UTC(),
	}

	if err := s.places.Create(ctx, place); err != nil {
		return nil, fmt.Errorf("create place: %w", err)
	}

	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     "crear_lugar",
		Category:   domain.CategoryPlaces,
		Outcome:    domain.OutcomeSuccess,
		EntityType: "lugar",
		EntityID:   place.ID,
		After:      placeSnapshot(place),
		Origin:     origin,
	})

	return &place, nil
}

// Get returns one health post.
func (s *PlaceService) Get(ctx context.Context, id string) (*domain.Place, error) {
	place, err := s.places.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPlaceNotFound
		}
		return nil, fmt.Errorf("get place: %w", err)
	}
	return place, nil
}

// List returns every registered health post.
func (s *PlaceService) List(ctx context.Context) ([]domain.Place, error) {
	places, err := s.places.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list places: %w", err)
	}
	return places, nil
}

func (s *PlaceService) auditPlace(ctx context.Context, actor domain.Actor, action string, outcome domain.AuditOutcome, placeID string, origin domain.Origin, message string) {
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     action,
		Category:   domain.CategoryPlaces,
		Outcome:    outcome,
		EntityType: "lugar",
		EntityID:   placeID,
		Origin:     origin,
		Message:    message,
	})
}
