package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/core/port"
	"github.com/henry9622/ProgramaTelemedicina/internal/repository"
)

var (
	// ErrUnknownAction indicates the action kind is outside the closed set.
	ErrUnknownAction = errors.New("unknown action kind")
	// ErrActionDenied indicates the caller's role may neither perform nor
	// request the action.
	ErrActionDenied = errors.New("action denied for role")
	// ErrApprovalNotFound indicates the request does not exist.
	ErrApprovalNotFound = errors.New("approval request not found")
	// ErrApprovalNotPending indicates the request was already resolved.
	ErrApprovalNotPending = errors.New("approval request already resolved")
	// ErrNotApprover indicates the caller's role may not resolve requests.
	ErrNotApprover = errors.New("role cannot resolve approval requests")
	// ErrReasonRequired indicates a rejection arrived without a reason.
	ErrReasonRequired = errors.New("rejection reason is required")
	// ErrLastMasterAdmin protects the final top-authority account from
	// deletion, demotion, or deactivation.
	ErrLastMasterAdmin = errors.New("cannot remove the last master admin")
	// ErrTemplateProtected protects template places from deletion.
	ErrTemplateProtected = errors.New("template place cannot be deleted")
	// ErrBackupMissing indicates the snapshot disappeared before execution.
	ErrBackupMissing = errors.New("backup file not found")
)

// UserChanges is the wire form of a proposed user modification.
type UserChanges struct {
	Name   *string      `json:"nombre,omitempty"`
	Email  *string      `json:"correo,omitempty"`
	Role   *domain.Role `json:"rol,omitempty"`
	Active *bool        `json:"activo,omitempty"`
}

// PlaceChanges is the wire form of a proposed place modification.
type PlaceChanges struct {
	Name    *string `json:"nombre_posta,omitempty"`
	Commune *string `json:"comuna,omitempty"`
}

// ApprovalInput describes an administrative action to perform or queue.
type ApprovalInput struct {
	Action        domain.ActionKind
	EntityType    string
	EntityID      string
	Proposed      any
	Justification string
	Origin        domain.Origin
}

// ApprovalService implements the two-tier governance workflow: the
// master role executes immediately, the subordinate admin role files a
// request that only the master role can resolve. Resolution and the
// dispatched mutation commit in one transaction.
type ApprovalService struct {
	approvals port.ApprovalRepository
	users     port.UserRepository
	places    port.PlaceRepository
	backups   port.BackupStore
	tx        port.Transactor
	cache     port.PendingCounterCache
	audit     *AuditService
	publisher port.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewApprovalService constructs an ApprovalService instance.
func NewApprovalService(
	approvals port.ApprovalRepository,
	users port.UserRepository,
	places port.PlaceRepository,
	backups port.BackupStore,
	tx port.Transactor,
	cache port.PendingCounterCache,
	audit *AuditService,
	publisher port.EventPublisher,
	logger *zap.Logger,
) *ApprovalService {
	return &ApprovalService{
		approvals: approvals,
		users:     users,
		places:    places,
		backups:   backups,
		tx:        tx,
		cache:     cache,
		audit:     audit,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// Submit performs the action immediately when the caller is exempt from
// the workflow, or files a pending request otherwise. executed reports
// which path was taken.
func (s *ApprovalService) Submit(ctx context.Context, actor domain.Actor, input ApprovalInput) (*domain.ApprovalRequest, bool, error) {
	if !input.Action.Known() {
		return nil, false, ErrUnknownAction
	}

	if actor.Role != domain.RoleMasterAdmin && actor.Role != domain.RoleAdmin {
		s.auditAction(ctx, actor, input.Action, domain.OutcomeDenied, input, nil, nil, "rol sin privilegios administrativos")
		return nil, false, ErrActionDenied
	}

	proposed, err := marshalOptional(input.Proposed)
	if err != nil {
		return nil, false, fmt.Errorf("encode proposed state: %w", err)
	}

	original, err := s.snapshotOriginal(ctx, input)
	if err != nil {
		return nil, false, err
	}

	if !domain.RequiresApproval(actor.Role, input.Action) {
		request := domain.ApprovalRequest{
			Action:        input.Action,
			EntityType:    input.EntityType,
			EntityID:      input.EntityID,
			OriginalState: original,
			ProposedState: proposed,
		}

		err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			return s.execute(ctx, request)
		})
		if err != nil {
			s.auditAction(ctx, actor, input.Action, domain.OutcomeError, input, original, proposed, err.Error())
			return nil, false, err
		}

		s.auditAction(ctx, actor, input.Action, domain.OutcomeSuccess, input, original, proposed, "")
		return nil, true, nil
	}

	request := domain.ApprovalRequest{
		ID:            uuid.NewString(),
		Action:        input.Action,
		EntityType:    input.EntityType,
		EntityID:      input.EntityID,
		OriginalState: original,
		ProposedState: proposed,
		RequesterID:   actor.ID,
		RequesterName: actor.Name,
		RequesterRole: actor.Role,
		Justification: input.Justification,
		Status:        domain.ApprovalPending,
		RequestedAt:   s.now().UTC(),
	}

	if err := s.approvals.Create(ctx, request); err != nil {
		return nil, false, fmt.Errorf("create approval request: %w", err)
	}

	s.auditAction(ctx, actor, input.Action, domain.OutcomePending, input, original, proposed, "solicitud enviada a aprobacion")
	s.invalidateCounter(ctx)

	return &request, false, nil
}

// Approve resolves a pending request and executes its action. The status
// flip and the mutation share one transaction, so a failed guard leaves
// the request pending and the data untouched.
func (s *ApprovalService) Approve(ctx context.Context, actor domain.Actor, requestID, reason string, origin domain.Origin) error {
	if !actor.Role.CanApprove() {
		s.auditResolution(ctx, actor, requestID, domain.OutcomeDenied, origin, nil, "rol no aprobador")
		return ErrNotApprover
	}

	request, err := s.approvals.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrApprovalNotFound
		}
		return fmt.Errorf("load approval request: %w", err)
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.approvals.MarkResolved(ctx, requestID, domain.ApprovalApproved, actor, reason, s.now().UTC()); err != nil {
			if errors.Is(err, repository.ErrAlreadyResolved) {
				return ErrApprovalNotPending
			}
			return fmt.Errorf("resolve approval: %w", err)
		}
		return s.execute(ctx, *request)
	})
	if err != nil {
		if !errors.Is(err, ErrApprovalNotPending) {
			s.auditResolution(ctx, actor, requestID, domain.OutcomeError, origin, request, err.Error())
		}
		return err
	}

	s.auditResolution(ctx, actor, requestID, domain.OutcomeSuccess, origin, request, "solicitud aprobada")
	s.publishResolution(ctx, actor, *request, domain.ApprovalApproved)
	s.invalidateCounter(ctx)

	return nil
}

// Reject resolves a pending request without executing it. A reason is
// mandatory so the requester learns why.
func (s *ApprovalService) Reject(ctx context.Context, actor domain.Actor, requestID, reason string, origin domain.Origin) error {
	if !actor.Role.CanApprove() {
		s.auditResolution(ctx, actor, requestID, domain.OutcomeDenied, origin, nil, "rol no aprobador")
		return ErrNotApprover
	}
	if reason == "" {
		return ErrReasonRequired
	}

	request, err := s.approvals.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrApprovalNotFound
		}
		return fmt.Errorf("load approval request: %w", err)
	}

	if err := s.approvals.MarkResolved(ctx, requestID, domain.ApprovalRejected, actor, reason, s.now().UTC()); err != nil {
		if errors.Is(err, repository.ErrAlreadyResolved) {
			return ErrApprovalNotPending
		}
		return fmt.Errorf("resolve approval: %w", err)
	}

	s.auditResolution(ctx, actor, requestID, domain.OutcomeSuccess, origin, request, "solicitud rechazada: "+reason)
	s.publishResolution(ctx, actor, *request, domain.ApprovalRejected)
	s.invalidateCounter(ctx)

	return nil
}

// ListPending returns pending requests for the approver dashboard.
func (s *ApprovalService) ListPending(ctx context.Context, limit int) ([]domain.ApprovalRequest, error) {
	requests, err := s.approvals.ListPending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	return requests, nil
}

// ListMine returns the requests the operator has filed.
func (s *ApprovalService) ListMine(ctx context.Context, actor domain.Actor, limit int) ([]domain.ApprovalRequest, error) {
	requests, err := s.approvals.ListByRequester(ctx, actor.ID, limit)
	if err != nil {
		return nil, fmt.Errorf("list own approvals: %w", err)
	}
	return requests, nil
}

// PendingCount returns the pending request counter, served from the
// cache when warm. Cache failures degrade to the repository.
func (s *ApprovalService) PendingCount(ctx context.Context) (int, error) {
	if s.cache != nil {
		count, ok, err := s.cache.Get(ctx)
		if err != nil {
			s.logger.Warn("pending counter cache read failed", zap.Error(err))
		} else if ok {
			return count, nil
		}
	}

	count, err := s.approvals.CountPending(ctx)
	if err != nil {
		return 0, fmt.Errorf("count pending approvals: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, count); err != nil {
			s.logger.Warn("pending counter cache write failed", zap.Error(err))
		}
	}

	return count, nil
}

// execute dispatches an approved action. Guards re-check state at
// execution time, not submission time: the world may have changed while
// the request sat pending.
func (s *ApprovalService) execute(ctx context.Context, request domain.ApprovalRequest) error {
	switch request.Action {
	case domain.ActionDeleteUser:
		return s.executeDeleteUser(ctx, request.EntityID)
	case domain.ActionModifyUser:
		return s.executeModifyUser(ctx, request.EntityID, request.ProposedState)
	case domain.ActionDeletePlace:
		return s.executeDeletePlace(ctx, request.EntityID)
	case domain.ActionModifyPlace:
		return s.executeModifyPlace(ctx, request.EntityID, request.ProposedState)
	case domain.ActionDeleteBackup:
		return s.executeDeleteBackup(ctx, request.EntityID)
	case domain.ActionExportHistory:
		// Nothing to mutate: approval itself authorises the export, which
		// the caller performs through the audit query path.
		return nil
	default:
		return ErrUnknownAction
	}
}

func (s *ApprovalService) executeDeleteUser(ctx context.Context, userID string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("target user: %w", err)
		}
		return fmt.Errorf("load target user: %w", err)
	}

	if user.Role.IsMaster() {
		if err := s.guardLastMaster(ctx); err != nil {
			return err
		}
	}

	if err := s.users.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	return nil
}

func (s *ApprovalService) executeModifyUser(ctx context.Context, userID string, proposed []byte) error {
	var changes UserChanges
	if err := json.Unmarshal(proposed, &changes); err != nil {
		return fmt.Errorf("decode user changes: %w", err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("load target user: %w", err)
	}

	demotes := changes.Role != nil && !changes.Role.IsMaster()
	deactivates := changes.Active != nil && !*changes.Active
	if user.Role.IsMaster() && (demotes || deactivates) {
		if err := s.guardLastMaster(ctx); err != nil {
			return err
		}
	}

	patch := domain.UserPatch{
		Name:   changes.Name,
		Email:  changes.Email,
		Role:   changes.Role,
		Active: changes.Active,
	}
	if err := s.users.ApplyPatch(ctx, userID, patch); err != nil {
		return fmt.Errorf("patch user: %w", err)
	}
	return nil
}

func (s *ApprovalService) executeDeletePlace(ctx context.Context, placeID string) error {
	place, err := s.places.GetByID(ctx, placeID)
	if err != nil {
		return fmt.Errorf("load target place: %w", err)
	}
	if place.IsTemplate {
		return ErrTemplateProtected
	}

	if err := s.places.Delete(ctx, placeID); err != nil {
		return fmt.Errorf("delete place: %w", err)
	}
	return nil
}

func (s *ApprovalService) executeModifyPlace(ctx context.Context, placeID string, proposed []byte) error {
	var changes PlaceChanges
	if err := json.Unmarshal(proposed, &changes); err != nil {
		return fmt.Errorf("decode place changes: %w", err)
	}

	patch := domain.PlacePatch{Name: changes.Name, Commune: changes.Commune}
	if err := s.places.ApplyPatch(ctx, placeID, patch); err != nil {
		return fmt.Errorf("patch place: %w", err)
	}
	return nil
}

func (s *ApprovalService) executeDeleteBackup(ctx context.Context, name string) error {
	exists, err := s.backups.Exists(ctx, name)
	if err != nil {
		return fmt.Errorf("check backup: %w", err)
	}
	if !exists {
		return ErrBackupMissing
	}

	if err := s.backups.Delete(ctx, name); err != nil {
		return fmt.Errorf("delete backup: %w", err)
	}
	return nil
}

func (s *ApprovalService) guardLastMaster(ctx context.Context) error {
	count, err := s.users.CountByRole(ctx, domain.RoleMasterAdmin)
	if err != nil {
		return fmt.Errorf("count master admins: %w", err)
	}
	if count <= 1 {
		return ErrLastMasterAdmin
	}
	return nil
}

// snapshotOriginal captures the pre-action state of the target so the
// approver sees what the request would change.
func (s *ApprovalService) snapshotOriginal(ctx context.Context, input ApprovalInput) ([]byte, error) {
	switch input.Action {
	case domain.ActionDeleteUser, domain.ActionModifyUser:
		user, err := s.users.GetByID(ctx, input.EntityID)
		if err != nil {
			return nil, fmt.Errorf("snapshot user: %w", err)
		}
		return userSnapshot(*user), nil
	case domain.ActionDeletePlace, domain.ActionModifyPlace:
		place, err := s.places.GetByID(ctx, input.EntityID)
		if err != nil {
			return nil, fmt.Errorf("snapshot place: %w", err)
		}
		return placeSnapshot(*place), nil
	case domain.ActionDeleteBackup:
		return json.Marshal(map[string]any{"nombre": input.EntityID})
	default:
		return nil, nil
	}
}

// userSnapshot captures the audited columns of an account. Credentials
// never enter the trail.
func userSnapshot(user domain.User) []byte {
	data, _ := json.Marshal(map[string]any{
		"nombre": user.Name,
		"correo": user.Email,
		"rol":    user.Role,
		"activo": user.Active,
	})
	return data
}

// placeSnapshot captures the audited columns of a health post.
func placeSnapshot(place domain.Place) []byte {
	data, _ := json.Marshal(map[string]any{
		"nombre_posta": place.Name,
		"comuna":       place.Commune,
		"es_plantilla": place.IsTemplate,
	})
	return data
}

func marshalOptional(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func (s *ApprovalService) publishResolution(ctx context.Context, actor domain.Actor, request domain.ApprovalRequest, status domain.ApprovalStatus) {
	event := domain.SecurityEvent{
		Type:       domain.EventApprovalResolved,
		ActorID:    actor.ID,
		ActorRole:  string(actor.Role),
		EntityType: request.EntityType,
		EntityID:   request.EntityID,
		Detail:     fmt.Sprintf("%s: %s", request.Action, status),
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("approval resolution event not published", zap.Error(err))
	}
}

func (s *ApprovalService) invalidateCounter(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.Warn("pending counter cache invalidation failed", zap.Error(err))
	}
}

func (s *ApprovalService) auditAction(ctx context.Context, actor domain.Actor, action domain.ActionKind, outcome domain.AuditOutcome, input ApprovalInput, before, after []byte, message string) {
	category := domain.CategorySystem
	switch action {
	case domain.ActionDeleteUser, domain.ActionModifyUser:
		category = domain.CategoryUsers
	case domain.ActionDeletePlace, domain.ActionModifyPlace:
		category = domain.CategoryPlaces
	case domain.ActionDeleteBackup:
		category = domain.CategoryBackups
	case domain.ActionExportHistory:
		category = domain.CategoryHistory
	}

	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     string(action),
		Category:   category,
		Outcome:    outcome,
		EntityType: input.EntityType,
		EntityID:   input.EntityID,
		Before:     before,
		After:      after,
		Origin:     input.Origin,
		Message:    message,
	})
}

// auditResolution records the outcome of resolving a request. When the
// request was loaded, its state snapshots ride along so the trail shows
// what the resolution did (or declined) to change.
func (s *ApprovalService) auditResolution(ctx context.Context, actor domain.Actor, requestID string, outcome domain.AuditOutcome, origin domain.Origin, request *domain.ApprovalRequest, message string) {
	rec := AuditRecord{
		Actor:      actor,
		Action:     "resolver_solicitud",
		Category:   domain.CategorySystem,
		Outcome:    outcome,
		EntityType: "solicitud_aprobacion",
		EntityID:   requestID,
		Origin:     origin,
		Message:    message,
	}
	if request != nil {
		rec.Before = request.OriginalState
		rec.After = request.ProposedState
	}
	s.audit.Record(ctx, rec)
}
