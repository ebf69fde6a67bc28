package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/core/port"
	"github.com/henry9622/ProgramaTelemedicina/internal/repository"
)

// UserRepository implements port.UserRepository using PostgreSQL.
type UserRepository struct {
	db      pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(db pgExecutor) *UserRepository {
	return &UserRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new operator account.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	query := r.builder.Insert("usuarios").
		Columns(
			"id", "nombre", "correo", "rol",
			"password", "password_hash", "activo",
			"intentos_fallidos", "bloqueado_hasta", "ultimo_acceso", "fecha_creacion",
		).
		Values(
			user.ID,
			user.Name,
			user.Email,
			user.Role,
			user.LegacyPassword,
			user.PasswordHash,
			user.Active,
			user.FailedAttempts,
			user.LockedUntil,
			user.LastAccess,
			user.CreatedAt,
		)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := executor(ctx, r.db).Exec(ctx, sql, args...); err != nil {
		if isUniqueViolation(err) {
			return repository.ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByEmail retrieves a user by login email, case-insensitively.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Expr("LOWER(correo) = LOWER(?)", email))
}

func (r *UserRepository) getOne(ctx context.Context, where any) (*domain.User, error) {
	stmt, args, err := r.selectUsers().
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	row := executor(ctx, r.db).QueryRow(ctx, stmt, args...)
	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return user, nil
}

// List returns all operator accounts, oldest first.
func (r *UserRepository) List(ctx context.Context) ([]domain.User, error) {
	stmt, args, err := r.selectUsers().
		OrderBy("fecha_creacion ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list users sql: %w", err)
	}

	rows, err := executor(ctx, r.db).Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}

	return users, nil
}

// Delete removes an account. Guard checks (sole master admin) belong to
// the approval dispatcher, executed inside the same transaction.
func (r *UserRepository) Delete(ctx context.Context, id string) error {
	stmt, args, err := r.builder.Delete("usuarios").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete user sql: %w", err)
	}

	ct, err := executor(ctx, r.db).Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ApplyPatch updates only the fields present in the typed patch. Identity
// and credential columns are unreachable from here by construction.
func (r *UserRepository) ApplyPatch(ctx context.Context, id string, patch domain.UserPatch) error {
	if patch.Empty() {
		return nil
	}

	query := r.builder.Update("usuarios")
	if patch.Name != nil {
		query = query.Set("nombre", *patch.Name)
	}
	if patch.Email != nil {
		query = query.Set("correo", *patch.Email)
	}
	if patch.Role != nil {
		query = query.Set("rol", *patch.Role)
	}
	if patch.Active != nil {
		query = query.Set("activo", *patch.Active)
	}

	stmt, args, err := query.Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build patch user sql: %w", err)
	}

	ct, err := executor(ctx, r.db).Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("patch user: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// CountByRole counts accounts holding the given role. Used at approval
// execution time for the sole-master protection.
func (r *UserRepository) CountByRole(ctx context.Context, role domain.Role) (int, error) {
	stmt, args, err := r.builder.Select("COUNT(*)").
		From("usuarios").
		Where(squirrel.Eq{"rol": role}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count by role sql: %w", err)
	}

	var count int64
	if err := executor(ctx, r.db).QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("scan role count: %w", err)
	}

	return int(count), nil
}

// UpdatePassword stores the new hash and purges any legacy clear-text
// credential in the same statement.
func (r *UserRepository) UpdatePassword(ctx context.Context, id string, passwordHash string) error {
	stmt, args, err := r.builder.Update("usuarios").
		Set("password_hash", passwordHash).
		Set("password", nil).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update password sql: %w", err)
	}

	ct, err := executor(ctx, r.db).Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RecordLoginFailure persists the incremented counter and the lockout
// expiry once the threshold was reached.
func (r *UserRepository) RecordLoginFailure(ctx context.Context, id string, attempts int, lockedUntil *time.Time) error {
	stmt, args, err := r.builder.Update("usuarios").
		Set("intentos_fallidos", attempts).
		Set("bloqueado_hasta", lockedUntil).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build login failure sql: %w", err)
	}

	if _, err := executor(ctx, r.db).Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}

	return nil
}

// RecordLoginSuccess resets the lockout state and stamps last access.
func (r *UserRepository) RecordLoginSuccess(ctx context.Context, id string, at time.Time) error {
	stmt, args, err := r.builder.Update("usuarios").
		Set("intentos_fallidos", 0).
		Set("bloqueado_hasta", nil).
		Set("ultimo_acceso", at).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build login success sql: %w", err)
	}

	if _, err := executor(ctx, r.db).Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("record login success: %w", err)
	}

	return nil
}

func (r *UserRepository) selectUsers() squirrel.SelectBuilder {
	return r.builder.Select(
		"id", "nombre", "correo", "rol",
		"password", "password_hash", "activo",
		"intentos_fallidos", "bloqueado_hasta", "ultimo_acceso", "fecha_creacion",
	).From("usuarios")
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	if err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Role,
		&user.LegacyPassword,
		&user.PasswordHash,
		&user.Active,
		&user.FailedAttempts,
		&user.LockedUntil,
		&user.LastAccess,
		&user.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &user, nil
}

var _ port.UserRepository = (*UserRepository)(nil)
