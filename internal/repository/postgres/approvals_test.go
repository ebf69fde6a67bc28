package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v2"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/repository"
)

func TestApprovalRepository_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewApprovalRepository(mock)

	requestedAt := time.Now().UTC()
	request := domain.ApprovalRequest{
		ID:            "req-1",
		Action:        domain.ActionDeleteUser,
		EntityType:    "usuario",
		EntityID:      "user-9",
		OriginalState: []byte(`{"nombre":"Ana"}`),
		RequesterID:   "admin-1",
		RequesterName: "Admin Uno",
		RequesterRole: domain.RoleAdmin,
		Justification: "cuenta duplicada",
		Status:        domain.ApprovalPending,
		RequestedAt:   requestedAt,
	}

	mock.ExpectExec(`INSERT INTO solicitudes_aprobacion`).
		WithArgs(
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
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	if err := repo.Create(context.Background(), request); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApprovalRepository_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewApprovalRepository(mock)

	requestedAt := time.Now().UTC()
	justification := "auditoria anual"

	rows := pgxmock.NewRows([]string{
		"id", "tipo_accion", "entidad_tipo", "entidad_id",
		"datos_originales", "datos_nuevos",
		"solicitante_id", "solicitante_nombre", "solicitante_rol",
		"justificacion", "estado",
		"aprobador_id", "aprobador_nombre",
		"fecha_solicitud", "fecha_resolucion", "motivo_resolucion",
	}).AddRow(
		"req-1", domain.ActionExportHistory, "historial", "todos",
		[]byte(nil), []byte(nil),
		"admin-1", "Admin Uno", domain.RoleAdmin,
		&justification, domain.ApprovalPending,
		nil, nil,
		requestedAt, nil, nil,
	)

	mock.ExpectQuery(`SELECT .*FROM solicitudes_aprobacion`).
		WithArgs("req-1").
		WillReturnRows(rows)

	request, err := repo.GetByID(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	if request.ID != "req-1" {
		t.Fatalf("expected request id req-1, got %s", request.ID)
	}
	if request.Justification != justification {
		t.Fatalf("expected justification %q, got %q", justification, request.Justification)
	}
	if request.Status != domain.ApprovalPending {
		t.Fatalf("expected pending status, got %s", request.Status)
	}
	if request.ResolverID != nil {
		t.Fatalf("expected no resolver on a pending request")
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApprovalRepository_GetByID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewApprovalRepository(mock)

	mock.ExpectQuery(`SELECT .*FROM solicitudes_aprobacion`).
		WithArgs("missing").
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "tipo_accion", "entidad_tipo", "entidad_id",
			"datos_originales", "datos_nuevos",
			"solicitante_id", "solicitante_nombre", "solicitante_rol",
			"justificacion", "estado",
			"aprobador_id", "aprobador_nombre",
			"fecha_solicitud", "fecha_resolucion", "motivo_resolucion",
		}))

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApprovalRepository_MarkResolved(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewApprovalRepository(mock)

	resolver := domain.Actor{ID: "master-1", Name: "Maestro", Role: domain.RoleMasterAdmin}
	resolvedAt := time.Now().UTC()

	mock.ExpectExec(`UPDATE solicitudes_aprobacion`).
		WithArgs(
			domain.ApprovalApproved,
			resolver.ID,
			resolver.Name,
			resolvedAt,
			"procede",
			"req-1",
			domain.ApprovalPending,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := repo.MarkResolved(context.Background(), "req-1", domain.ApprovalApproved, resolver, "procede", resolvedAt); err != nil {
		t.Fatalf("MarkResolved returned error: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApprovalRepository_MarkResolved_AlreadyResolved(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewApprovalRepository(mock)

	resolver := domain.Actor{ID: "master-1", Name: "Maestro", Role: domain.RoleMasterAdmin}
	resolvedAt := time.Now().UTC()

	// Zero rows affected means the pending guard in the WHERE clause did
	// not match: someone else resolved the request first.
	mock.ExpectExec(`UPDATE solicitudes_aprobacion`).
		WithArgs(
			domain.ApprovalRejected,
			resolver.ID,
			resolver.Name,
			resolvedAt,
			"duplicada",
			"req-1",
			domain.ApprovalPending,
		).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.MarkResolved(context.Background(), "req-1", domain.ApprovalRejected, resolver, "duplicada", resolvedAt)
	if !errors.Is(err, repository.ErrAlreadyResolved) {
		t.Fatalf("expected ErrAlreadyResolved, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestApprovalRepository_CountPending(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock.NewPool: %v", err)
	}
	defer mock.Close()

	repo := NewApprovalRepository(mock)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM solicitudes_aprobacion`).
		WithArgs(domain.ApprovalPending).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))

	count, err := repo.CountPending(context.Background())
	if err != nil {
		t.Fatalf("CountPending returned error: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 pending requests, got %d", count)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
