package postgres

import (
	"context"
	"errors"
	"fmt"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/core/port"
	"github.com/henry9622/ProgramaTelemedicina/internal/repository"
)

// PlaceRepository implements port.PlaceRepository using PostgreSQL.
type PlaceRepository struct {
	db      pgExecutor
	builder squirrel.StatementBuilderType
}

// NewPlaceRepository wires a PostgreSQL-backed place repository.
func NewPlaceRepository(db pgExecutor) *PlaceRepository {
	return &PlaceRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new health post.
func (r *PlaceRepository) Create(ctx context.Context, place domain.Place) error {
	query := r.builder.Insert("lugares").
		Columns("id", "nombre_posta", "comuna", "es_plantilla", "fecha_creacion").
		Values(place.ID, place.Name, place.Commune, place.IsTemplate, place.CreatedAt)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert place sql: %w", err)
	}

	if _, err := executor(ctx, r.db).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert place: %w", err)
	}

	return nil
}

// GetByID retrieves a place by identifier.
func (r *PlaceRepository) GetByID(ctx context.Context, id string) (*domain.Place, error) {
	stmt, args, err := r.builder.
		Select("id", "nombre_posta", "comuna", "es_plantilla", "fecha_creacion").
		From("lugares").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select place sql: %w", err)
	}

	var place domain.Place
	row := executor(ctx, r.db).QueryRow(ctx, stmt, args...)
	if err := row.Scan(&place.ID, &place.Name, &place.Commune, &place.IsTemplate, &place.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan place: %w", err)
	}

	return &place, nil
}

// List returns every registered place.
func (r *PlaceRepository) List(ctx context.Context) ([]domain.Place, error) {
	stmt, args, err := r.builder.
		Select("id", "nombre_posta", "comuna", "es_plantilla", "fecha_creacion").
		From("lugares").
		OrderBy("nombre_posta ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list places sql: %w", err)
	}

	rows, err := executor(ctx, r.db).Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query places: %w", err)
	}
	defer rows.Close()

	places := make([]domain.Place, 0)
	for rows.Next() {
		var place domain.Place
		if err := rows.Scan(&place.ID, &place.Name, &place.Commune, &place.IsTemplate, &place.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan place: %w", err)
		}
		places = append(places, place)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate places: %w", err)
	}

	return places, nil
}

// Delete removes a place. Template protection is enforced by the
// approval dispatcher before calling this.
func (r *PlaceRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete("lugares").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete place sql: %w", err)
	}

	ct, err := executor(ctx, r.db).Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete place: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ApplyPatch updates only the fields present in the typed patch.
func (r *PlaceRepository) ApplyPatch(ctx context.Context, id string, patch domain.PlacePatch) error {
	if patch.Empty() {
		return nil
	}

	query := r.builder.Update("lugares")
	if patch.Name != nil {
		query = query.Set("nombre_posta", *patch.Name)
	}
	if patch.Commune != nil {
		query = query.Set("comuna", *patch.Commune)
	}

	stmt, args, err := query.Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build patch place sql: %w", err)
	}

	ct, err := executor(ctx, r.db).Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("patch place: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

var _ port.PlaceRepository = (*PlaceRepository)(nil)
