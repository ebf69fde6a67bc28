package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/core/port"
	"github.com/henry9622/ProgramaTelemedicina/internal/repository"
)

// IdentityRepository implements port.IdentityRepository using PostgreSQL.
// The mapeo_pacientes table is append-only; only Create and reads exist.
type IdentityRepository struct {
	db      pgExecutor
	builder squirrel.StatementBuilderType
}

// NewIdentityRepository wires a PostgreSQL-backed identity repository.
func NewIdentityRepository(db pgExecutor) *IdentityRepository {
	return &IdentityRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new CIP mapping. The UNIQUE constraints are the
// authoritative uniqueness checks, and the two are told apart: a
// concurrent draw of the same code surfaces as repository.ErrDuplicate
// so the caller can redraw, while a concurrent registration of the same
// patient surfaces as repository.ErrDuplicateRUT so the caller can reuse
// the winning mapping instead of burning redraws.
func (r *IdentityRepository) Create(ctx context.Context, identity domain.PatientIdentity) error {
	query := r.builder.Insert("mapeo_pacientes").
		Columns("id", "cip", "rut_cifrado", "rut_hash", "rut_enmascarado", "creado_por_id", "fecha_creacion").
		Values(
			identity.ID,
			identity.CIP,
			identity.EncryptedRUT,
			identity.RUTHash,
			identity.MaskedRUT,
			identity.CreatedByID,
			identity.CreatedAt,
		)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert identity sql: %w", err)
	}

	if _, err := executor(ctx, r.db).Exec(ctx, sql, args...); err != nil {
		if constraint, ok := uniqueViolation(err); ok {
			if strings.Contains(constraint, "rut_hash") {
				return repository.ErrDuplicateRUT
			}
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert identity: %w", err)
	}

	return nil
}

// GetByCIP retrieves the mapping for a pseudonymous code.
func (r *IdentityRepository) GetByCIP(ctx context.Context, cip string) (*domain.PatientIdentity, error) {
	return r.getOne(ctx, squirrel.Eq{"cip": cip})
}

// GetByRUTHash retrieves the mapping by lookup hash, supporting equality
// search without decryption.
func (r *IdentityRepository) GetByRUTHash(ctx context.Context, rutHash string) (*domain.PatientIdentity, error) {
	return r.getOne(ctx, squirrel.Eq{"rut_hash": rutHash})
}

func (r *IdentityRepository) getOne(ctx context.Context, where squirrel.Eq) (*domain.PatientIdentity, error) {
	stmt, args, err := r.builder.
		Select("id", "cip", "rut_cifrado", "rut_hash", "rut_enmascarado", "creado_por_id", "fecha_creacion").
		From("mapeo_pacientes").
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select identity sql: %w", err)
	}

	row := executor(ctx, r.db).QueryRow(ctx, stmt, args...)

	var identity domain.PatientIdentity
	if err := row.Scan(
		&identity.ID,
		&identity.CIP,
		&identity.EncryptedRUT,
		&identity.RUTHash,
		&identity.MaskedRUT,
		&identity.CreatedByID,
		&identity.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan identity: %w", err)
	}

	return &identity, nil
}

// ExistsCIP reports whether the code is already mapped.
func (r *IdentityRepository) ExistsCIP(ctx context.Context, cip string) (bool, error) {
	stmt, args, err := r.builder.
		Select("1").
		From("mapeo_pacientes").
		Where(squirrel.Eq{"cip": cip}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists cip sql: %w", err)
	}

	var one int
	if err := executor(ctx, r.db).QueryRow(ctx, stmt, args...).Scan(&one); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("scan exists cip: %w", err)
	}

	return true, nil
}

var _ port.IdentityRepository = (*IdentityRepository)(nil)
