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

// ApprovalRepository implements port.ApprovalRepository using PostgreSQL.
type ApprovalRepository struct {
	db      pgExecutor
	builder squirrel.StatementBuilderType
}

// NewApprovalRepository wires a PostgreSQL-backed approval repository.
func NewApprovalRepository(db pgExecutor) *ApprovalRepository {
	return &ApprovalRepository{
		db:      db,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts a new pending request.
func (r *ApprovalRepository) Create(ctx context.Context, request domain.ApprovalRequest) error {
	query := r.builder.Insert("solicitudes_aprobacion").
		Columns(
			"id", "tipo_accion", "entidad_tipo", "entidad_id",
			"datos_originales", "datos_nuevos",
			"solicitante_id", "solicitante_nombre", "solicitante_rol",
			"justificacion", "estado", "fecha_solicitud",
		).
		Values(
			request.ID,
			request.Action,
			request.EntityType,
			request.EntityID,
			request.OriginalState,
			request.ProposedState,
			request.RequesterID,
			request.RequesterName,
			request.RequesterRole,
			request.Justification,
			request.Status,
			request.RequestedAt,
		)

	sql, args, err := query.ToSql()
	if err != nil {
		return fmt.Errorf("build insert approval sql: %w", err)
	}

	if _, err := executor(ctx, r.db).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert approval: %w", err)
	}

	return nil
}

// GetByID retrieves a request by identifier.
func (r *ApprovalRepository) GetByID(ctx context.Context, id string) (*domain.ApprovalRequest, error) {
	stmt, args, err := r.selectApprovals().
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select approval sql: %w", err)
	}

	row := executor(ctx, r.db).QueryRow(ctx, stmt, args...)
	request, err := scanApproval(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan approval: %w", err)
	}

	return request, nil
}

// ListPending returns pending requests, newest first.
func (r *ApprovalRepository) ListPending(ctx context.Context, limit int) ([]domain.ApprovalRequest, error) {
	query := r.selectApprovals().
		Where(squirrel.Eq{"estado": domain.ApprovalPending}).
		OrderBy("fecha_solicitud DESC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	return r.list(ctx, query)
}

// ListByRequester returns the requests submitted by one operator.
func (r *ApprovalRepository) ListByRequester(ctx context.Context, requesterID string, limit int) ([]domain.ApprovalRequest, error) {
	query := r.selectApprovals().
		Where(squirrel.Eq{"solicitante_id": requesterID}).
		OrderBy("fecha_solicitud DESC")
	if limit > 0 {
		query = query.Limit(uint64(limit))
	}

	return r.list(ctx, query)
}

// CountPending returns the number of requests still pending.
func (r *ApprovalRepository) CountPending(ctx context.Context) (int, error) {
	stmt, args, err := r.builder.Select("COUNT(*)").
		From("solicitudes_aprobacion").
		Where(squirrel.Eq{"estado": domain.ApprovalPending}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count pending sql: %w", err)
	}

	var count int64
	if err := executor(ctx, r.db).QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("scan pending count: %w", err)
	}

	return int(count), nil
}

// MarkResolved flips the request to a terminal status. The WHERE clause
// keeps the exactly-once invariant: only a still-pending row is updated,
// and zero affected rows means another resolver got there first.
func (r *ApprovalRepository) MarkResolved(ctx context.Context, id string, status domain.ApprovalStatus, resolver domain.Actor, reason string, at time.Time) error {
	stmt, args, err := r.builder.Update("solicitudes_aprobacion").
		Set("estado", status).
		Set("aprobador_id", resolver.ID).
		Set("aprobador_nombre", resolver.Name).
		Set("fecha_resolucion", at).
		Set("motivo_resolucion", reason).
		Where(squirrel.Eq{"id": id}).
		Where(squirrel.Eq{"estado": domain.ApprovalPending}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build resolve approval sql: %w", err)
	}

	ct, err := executor(ctx, r.db).Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("resolve approval: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return repository.ErrAlreadyResolved
	}

	return nil
}

func (r *ApprovalRepository) selectApprovals() squirrel.SelectBuilder {
	return r.builder.Select(
		"id", "tipo_accion", "entidad_tipo", "entidad_id",
		"datos_originales", "datos_nuevos",
		"solicitante_id", "solicitante_nombre", "solicitante_rol",
		"justificacion", "estado",
		"aprobador_id", "aprobador_nombre",
		"fecha_solicitud", "fecha_resolucion", "motivo_resolucion",
	).From("solicitudes_aprobacion")
}

func (r *ApprovalRepository) list(ctx context.Context, query squirrel.SelectBuilder) ([]domain.ApprovalRequest, error) {
	stmt, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list approvals sql: %w", err)
	}

	rows, err := executor(ctx, r.db).Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query approvals: %w", err)
	}
	defer rows.Close()

	requests := make([]domain.ApprovalRequest, 0)
	for rows.Next() {
		request, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("scan approval: %w", err)
		}
		requests = append(requests, *request)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate approvals: %w", err)
	}

	return requests, nil
}

func scanApproval(row pgx.Row) (*domain.ApprovalRequest, error) {
	var (
		request       domain.ApprovalRequest
		justification *string
	)

	if err := row.Scan(
		&request.ID,
		&request.Action,
		&request.EntityType,
		&request.EntityID,
		&request.OriginalState,
		&request.ProposedState,
		&request.RequesterID,
		&request.RequesterName,
		&request.RequesterRole,
		&justification,
		&request.Status,
		&request.ResolverID,
		&request.ResolverName,
		&request.RequestedAt,
		&request.ResolvedAt,
		&request.ResolutionReason,
	); err != nil {
		return nil, err
	}

	if justification != nil {
		request.Justification = *justification
	}

	return &request, nil
}

var _ port.ApprovalRepository = (*ApprovalRepository)(nil)
