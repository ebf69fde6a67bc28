package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/repository"
)

type approvalFixture struct {
	svc       *ApprovalService
	approvals *stubApprovalRepo
	users     *stubUserRepo
	places    *stubPlaceRepo
	backups   *stubBackupStore
	tx        *stubTransactor
	cache     *stubCounterCache
	auditRepo *stubAuditRepo
	publisher *stubPublisher
}

func newApprovalFixture(t *testing.T, users *stubUserRepo, places *stubPlaceRepo, backups *stubBackupStore) *approvalFixture {
	t.Helper()

	approvals := newStubApprovalRepo()
	tx := &stubTransactor{}
	cache := &stubCounterCache{}
	auditRepo := &stubAuditRepo{}
	publisher := &stubPublisher{}
	logger := zaptest.NewLogger(t)
	audit := NewAuditService(auditRepo, publisher, logger)

	svc := NewApprovalService(approvals, users, places, backups, tx, cache, audit, publisher, logger)

	return &approvalFixture{
		svc:       svc,
		approvals: approvals,
		users:     users,
		places:    places,
		backups:   backups,
		tx:        tx,
		cache:     cache,
		auditRepo: auditRepo,
		publisher: publisher,
	}
}

var (
	masterActor = domain.Actor{ID: "master-1", Name: "Maestro", Role: domain.RoleMasterAdmin}
	adminActor  = domain.Actor{ID: "admin-1", Name: "Admin Uno", Role: domain.RoleAdmin}
	doctorActor = domain.Actor{ID: "medic-1", Name: "Dra. Soto", Role: domain.RoleDoctor}
)

func TestSubmit_MasterExecutesImmediately(t *testing.T) {
	target := &domain.User{ID: "user-9", Name: "Ana", Email: "ana@posta.cl", Role: domain.RoleTens, Active: true}
	f := newApprovalFixture(t, newStubUserRepo(target), newStubPlaceRepo(), newStubBackupStore())

	request, executed, err := f.svc.Submit(context.Background(), masterActor, ApprovalInput{
		Action:     domain.ActionDeleteUser,
		EntityType: "usuario",
		EntityID:   "user-9",
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if !executed {
		t.Fatalf("expected immediate execution for master role")
	}
	if request != nil {
		t.Fatalf("expected no pending request, got %+v", request)
	}
	if len(f.users.deleted) != 1 || f.users.deleted[0] != "user-9" {
		t.Fatalf("expected user-9 deleted, got %v", f.users.deleted)
	}
	if f.tx.calls != 1 {
		t.Fatalf("expected execution inside a transaction")
	}
	if len(f.approvals.requests) != 0 {
		t.Fatalf("master execution must not file a request")
	}

	entry := f.auditRepo.lastEntry()
	if entry == nil || entry.Outcome != domain.OutcomeSuccess {
		t.Fatalf("expected success audit entry, got %+v", entry)
	}
	if !strings.Contains(string(entry.Before), "ana@posta.cl") {
		t.Fatalf("expected deleted state snapshot on the audit entry, got %s", entry.Before)
	}
}

func TestSubmit_AdminFilesPendingRequest(t *testing.T) {
	target := &domain.User{ID: "user-9", Name: "Ana", Email: "ana@posta.cl", Role: domain.RoleTens, Active: true}
	f := newApprovalFixture(t, newStubUserRepo(target), newStubPlaceRepo(), newStubBackupStore())

	request, executed, err := f.svc.Submit(context.Background(), adminActor, ApprovalInput{
		Action:        domain.ActionDeleteUser,
		EntityType:    "usuario",
		EntityID:      "user-9",
		Justification: "cuenta duplicada",
	})
	if err != nil {
		t.Fatalf("Submit returned error: %v", err)
	}
	if executed {
		t.Fatalf("admin submission must not execute")
	}
	if request == nil || request.Status != domain.ApprovalPending {
		t.Fatalf("expected pending request, got %+v", request)
	}
	if len(request.OriginalState) == 0 {
		t.Fatalf("expected original state snapshot")
	}
	if _, ok := f.users.users["user-9"]; !ok {
		t.Fatalf("target must remain untouched while pending")
	}
	if f.cache.invalidated != 1 {
		t.Fatalf("expected counter cache invalidation")
	}

	entry := f.auditRepo.lastEntry()
	if entry == nil || entry.Outcome != domain.OutcomePending {
		t.Fatalf("expected pending audit entry, got %+v", entry)
	}
	if !strings.Contains(string(entry.Before), "ana@posta.cl") {
		t.Fatalf("expected pre-action snapshot on the audit entry, got %s", entry.Before)
	}
}

func TestSubmit_OperationalRoleDenied(t *testing.T) {
	f := newApprovalFixture(t, newStubUserRepo(), newStubPlaceRepo(), newStubBackupStore())

	_, _, err := f.svc.Submit(context.Background(), doctorActor, ApprovalInput{
		Action:     domain.ActionDeleteUser,
		EntityType: "usuario",
		EntityID:   "user-9",
	})
	if !errors.Is(err, ErrActionDenied) {
		t.Fatalf("expected ErrActionDenied, got %v", err)
	}
}

func TestSubmit_UnknownActionRejected(t *testing.T) {
	f := newApprovalFixture(t, newStubUserRepo(), newStubPlaceRepo(), newStubBackupStore())

	_, _, err := f.svc.Submit(context.Background(), masterActor, ApprovalInput{
		Action: domain.ActionKind("formatear_disco"),
	})
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}

func TestApprove_ExecutesExactlyOnce(t *testing.T) {
	target := &domain.User{ID: "user-9", Name: "Ana", Email: "ana@posta.cl", Role: domain.RoleTens, Active: true}
	f := newApprovalFixture(t, newStubUserRepo(target), newStubPlaceRepo(), newStubBackupStore())

	request, _, err := f.svc.Submit(context.Background(), adminActor, ApprovalInput{
		Action:     domain.ActionDeleteUser,
		EntityType: "usuario",
		EntityID:   "user-9",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if err := f.svc.Approve(context.Background(), masterActor, request.ID, "procede", domain.Origin{}); err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}
	if len(f.users.deleted) != 1 {
		t.Fatalf("expected one deletion, got %d", len(f.users.deleted))
	}

	// Second resolution of the same request must refuse and not re-run.
	err = f.svc.Approve(context.Background(), masterActor, request.ID, "procede", domain.Origin{})
	if !errors.Is(err, ErrApprovalNotPending) {
		t.Fatalf("expected ErrApprovalNotPending, got %v", err)
	}
	if len(f.users.deleted) != 1 {
		t.Fatalf("second approval must not execute again")
	}

	found := false
	for _, event := range f.publisher.events {
		if event.Type == domain.EventApprovalResolved {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected approval resolved event")
	}
}

func TestApprove_NonMasterDenied(t *testing.T) {
	f := newApprovalFixture(t, newStubUserRepo(), newStubPlaceRepo(), newStubBackupStore())

	err := f.svc.Approve(context.Background(), adminActor, "req-1", "", domain.Origin{})
	if !errors.Is(err, ErrNotApprover) {
		t.Fatalf("expected ErrNotApprover, got %v", err)
	}
}

func TestApprove_LastMasterGuard(t *testing.T) {
	master := &domain.User{ID: "master-1", Name: "Maestro", Email: "maestro@posta.cl", Role: domain.RoleMasterAdmin, Active: true}
	f := newApprovalFixture(t, newStubUserRepo(master), newStubPlaceRepo(), newStubBackupStore())

	f.approvals.requests["req-1"] = &domain.ApprovalRequest{
		ID:         "req-1",
		Action:     domain.ActionDeleteUser,
		EntityType: "usuario",
		EntityID:   "master-1",
		Status:     domain.ApprovalPending,
	}

	err := f.svc.Approve(context.Background(), masterActor, "req-1", "", domain.Origin{})
	if !errors.Is(err, ErrLastMasterAdmin) {
		t.Fatalf("expected ErrLastMasterAdmin, got %v", err)
	}
	if len(f.users.deleted) != 0 {
		t.Fatalf("guard failure must not delete")
	}
}

func TestApprove_DemotingLastMasterGuard(t *testing.T) {
	master := &domain.User{ID: "master-1", Name: "Maestro", Email: "maestro@posta.cl", Role: domain.RoleMasterAdmin, Active: true}
	f := newApprovalFixture(t, newStubUserRepo(master), newStubPlaceRepo(), newStubBackupStore())

	f.approvals.requests["req-1"] = &domain.ApprovalRequest{
		ID:            "req-1",
		Action:        domain.ActionModifyUser,
		EntityType:    "usuario",
		EntityID:      "master-1",
		ProposedState: []byte(`{"rol":"admin"}`),
		Status:        domain.ApprovalPending,
	}

	err := f.svc.Approve(context.Background(), masterActor, "req-1", "", domain.Origin{})
	if !errors.Is(err, ErrLastMasterAdmin) {
		t.Fatalf("expected ErrLastMasterAdmin, got %v", err)
	}
}

func TestApprove_TemplatePlaceProtected(t *testing.T) {
	template := &domain.Place{ID: "place-1", Name: "Posta Base", Commune: "Curico", IsTemplate: true}
	f := newApprovalFixture(t, newStubUserRepo(), newStubPlaceRepo(template), newStubBackupStore())

	f.approvals.requests["req-1"] = &domain.ApprovalRequest{
		ID:         "req-1",
		Action:     domain.ActionDeletePlace,
		EntityType: "lugar",
		EntityID:   "place-1",
		Status:     domain.ApprovalPending,
	}

	err := f.svc.Approve(context.Background(), masterActor, "req-1", "", domain.Origin{})
	if !errors.Is(err, ErrTemplateProtected) {
		t.Fatalf("expected ErrTemplateProtected, got %v", err)
	}
	if len(f.places.deleted) != 0 {
		t.Fatalf("template place must survive")
	}
}

func TestApprove_MissingBackup(t *testing.T) {
	f := newApprovalFixture(t, newStubUserRepo(), newStubPlaceRepo(), newStubBackupStore())

	f.approvals.requests["req-1"] = &domain.ApprovalRequest{
		ID:         "req-1",
		Action:     domain.ActionDeleteBackup,
		EntityType: "respaldo",
		EntityID:   "respaldo_20260101.sql.gz",
		Status:     domain.ApprovalPending,
	}

	err := f.svc.Approve(context.Background(), masterActor, "req-1", "", domain.Origin{})
	if !errors.Is(err, ErrBackupMissing) {
		t.Fatalf("expected ErrBackupMissing, got %v", err)
	}
}

func TestApprove_ModifyUserAppliesPatch(t *testing.T) {
	target := &domain.User{ID: "user-9", Name: "Ana", Email: "ana@posta.cl", Role: domain.RoleTens, Active: true}
	f := newApprovalFixture(t, newStubUserRepo(target), newStubPlaceRepo(), newStubBackupStore())

	f.approvals.requests["req-1"] = &domain.ApprovalRequest{
		ID:            "req-1",
		Action:        domain.ActionModifyUser,
		EntityType:    "usuario",
		EntityID:      "user-9",
		ProposedState: []byte(`{"nombre":"Ana Maria","activo":false}`),
		Status:        domain.ApprovalPending,
	}

	if err := f.svc.Approve(context.Background(), masterActor, "req-1", "", domain.Origin{}); err != nil {
		t.Fatalf("Approve returned error: %v", err)
	}

	patch, ok := f.users.patched["user-9"]
	if !ok {
		t.Fatalf("expected patch applied")
	}
	if patch.Name == nil || *patch.Name != "Ana Maria" {
		t.Fatalf("expected name change, got %+v", patch)
	}
	if patch.Active == nil || *patch.Active {
		t.Fatalf("expected deactivation, got %+v", patch)
	}
	if patch.Email != nil || patch.Role != nil {
		t.Fatalf("unset fields must stay nil, got %+v", patch)
	}
}

func TestReject_RequiresReason(t *testing.T) {
	f := newApprovalFixture(t, newStubUserRepo(), newStubPlaceRepo(), newStubBackupStore())

	f.approvals.requests["req-1"] = &domain.ApprovalRequest{
		ID:     "req-1",
		Action: domain.ActionDeleteUser,
		Status: domain.ApprovalPending,
	}

	err := f.svc.Reject(context.Background(), masterActor, "req-1", "", domain.Origin{})
	if !errors.Is(err, ErrReasonRequired) {
		t.Fatalf("expected ErrReasonRequired, got %v", err)
	}
}

func TestReject_DoesNotExecute(t *testing.T) {
	target := &domain.User{ID: "user-9", Name: "Ana", Email: "ana@posta.cl", Role: domain.RoleTens, Active: true}
	f := newApprovalFixture(t, newStubUserRepo(target), newStubPlaceRepo(), newStubBackupStore())

	f.approvals.requests["req-1"] = &domain.ApprovalRequest{
		ID:         "req-1",
		Action:     domain.ActionDeleteUser,
		EntityType: "usuario",
		EntityID:   "user-9",
		Status:     domain.ApprovalPending,
	}

	if err := f.svc.Reject(context.Background(), masterActor, "req-1", "no procede", domain.Origin{}); err != nil {
		t.Fatalf("Reject returned error: %v", err)
	}
	if len(f.users.deleted) != 0 {
		t.Fatalf("rejection must not execute the action")
	}
	if f.approvals.requests["req-1"].Status != domain.ApprovalRejected {
		t.Fatalf("expected rejected status")
	}
}

func TestPendingCount_UsesCache(t *testing.T) {
	f := newApprovalFixture(t, newStubUserRepo(), newStubPlaceRepo(), newStubBackupStore())
	f.approvals.pendingHint = 7

	count, err := f.svc.PendingCount(context.Background())
	if err != nil {
		t.Fatalf("PendingCount returned error: %v", err)
	}
	if count != 7 {
		t.Fatalf("expected 7, got %d", count)
	}
	if f.approvals.countCalls != 1 {
		t.Fatalf("expected repository hit on cold cache")
	}

	// Warm cache short-circuits the repository.
	count, err = f.svc.PendingCount(context.Background())
	if err != nil {
		t.Fatalf("PendingCount returned error: %v", err)
	}
	if count != 7 {
		t.Fatalf("expected cached 7, got %d", count)
	}
	if f.approvals.countCalls != 1 {
		t.Fatalf("warm cache must not hit the repository")
	}
}

func TestMarkResolvedRace(t *testing.T) {
	target := &domain.User{ID: "user-9", Name: "Ana", Email: "ana@posta.cl", Role: domain.RoleTens, Active: true}
	f := newApprovalFixture(t, newStubUserRepo(target), newStubPlaceRepo(), newStubBackupStore())

	f.approvals.requests["req-1"] = &domain.ApprovalRequest{
		ID:         "req-1",
		Action:     domain.ActionDeleteUser,
		EntityType: "usuario",
		EntityID:   "user-9",
		Status:     domain.ApprovalPending,
	}
	f.approvals.resolveErr = repository.ErrAlreadyResolved

	err := f.svc.Approve(context.Background(), masterActor, "req-1", "", domain.Origin{})
	if !errors.Is(err, ErrApprovalNotPending) {
		t.Fatalf("expected ErrApprovalNotPending, got %v", err)
	}
	if len(f.users.deleted) != 0 {
		t.Fatalf("lost race must not execute")
	}
}
