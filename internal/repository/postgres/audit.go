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

// AuditRepository implements port.AuditRepository using PostgreSQL. The
// auditoria table only ever receives inserts.
type AuditRepository struct {
	db      pgExecutor
	builder squirrel.StatementBuilderType
}

// NewAuditRepository wires a PostgreSQL-backed audit repository.
func NewAuditRepository(db pgExecutor) *AuditRepository {
	return &AuditRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Insert appends an entry to the trail.
func (r *AuditRepository) Insert(ctx context.Context, entry domain.AuditEntry) error {
	query := r.builder.Insert("auditoria").
		Columns(
			"id", "usuario_id", "usuario_nombre", "usuario_rol",
			"accion", "categoria", "resultado",
			"entidad_tipo", "entidad_id", "datos_antes", "datos_despues",
			"ip_origen", "user_agent", "mensaje", "fecha", "checksum",
		).
		Values(
			entry.ID,
			entry.ActorID,
			entry.ActorName,
			entry.ActorRole,
			entry.Action,
			entry.Category,
			entry.Outcome,
			entry.EntityType,
			entry.EntityID,
			entry.Before,
			entry.After,
			entry.IP,
			entry.UserAgent,
			entry.Message,
			entry.OccurredAt,
			entry.Checksum,
		)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert audit sql: %w", err)
	}

	if _, err := executor(ctx, r.db).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	return nil
}

// GetByID retrieves a single entry, used by integrity verification.
func (r *AuditRepository) GetByID(ctx context.Context, id string) (*domain.AuditEntry, error) {
	stmt, args, err := r.selectEntries().
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select audit sql: %w", err)
	}

	row := executor(ctx, r.db).QueryRow(ctx, stmt, args...)
	entry, err := scanAuditEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan audit entry: %w", err)
	}

	return entry, nil
}

// List returns entries matching the filter, most recent first.
func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	query := r.selectEntries().OrderBy("fecha DESC")

	if filter.Category != "" {
		query = query.Where(squirrel.Eq{"categoria": filter.Category})
	}
	if filter.ActorID != "" {
		query = query.Where(squirrel.Eq{"usuario_id": filter.ActorID})
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query = query.Limit(uint64(limit))

	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list audit sql: %w", err)
	}

	rows, err := executor(ctx, r.db).Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.AuditEntry, 0, limit)
	for rows.Next() {
		entry, err := scanAuditEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}

	return entries, nil
}

func (r *AuditRepository) selectEntries() squirrel.SelectBuilder {
	return r.builder.Select(
		"id", "usuario_id", "usuario_nombre", "usuario_rol",
		"accion", "categoria", "resultado",
		"entidad_tipo", "entidad_id", "datos_antes", "datos_despues",
		"ip_origen", "user_agent", "mensaje", "fecha", "checksum",
	).From("auditoria")
}

func scanAuditEntry(row pgx.Row) (*domain.AuditEntry, error) {
	var entry domain.AuditEntry
	if err := row.Scan(
		&entry.ID,
		&entry.ActorID,
		&entry.ActorName,
		&entry.ActorRole,
		&entry.Action,
		&entry.Category,
		&entry.Outcome,
		&entry.EntityType,
		&entry.EntityID,
		&entry.Before,
		&entry.After,
		&entry.IP,
		&entry.UserAgent,
		&entry.Message,
		&entry.OccurredAt,
		&entry.Checksum,
	); err != nil {
		return nil, err
	}
	return &entry, nil
}

var _ port.AuditRepository = (*AuditRepository)(nil)
