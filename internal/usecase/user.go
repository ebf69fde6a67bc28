package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/core/port"
	"github.com/henry9622/ProgramaTelemedicina/internal/infra/security"
	"github.com/henry9622/ProgramaTelemedicina/internal/repository"
)

var (
	// ErrEmailTaken indicates another account already uses the email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUnknownRole indicates the role value is outside the enumeration.
	ErrUnknownRole = errors.New("unknown role")
	// ErrUserNotFound indicates the account does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrPasswordChangeDenied indicates the caller may not change this
	// account's password.
	ErrPasswordChangeDenied = errors.New("password change denied")
)

var validRoles = map[domain.Role]struct{}{
	domain.RoleMasterAdmin: {},
	domain.RoleAdmin:       {},
	domain.RoleDoctor:      {},
	domain.RoleTens:        {},
}

// CreateUserInput carries the fields for a new operator account.
type CreateUserInput struct {
	Name     string
	Email    string
	Password string
	Role     domain.Role
}

// UserService manages operator accounts. Destructive and mutating
// operations on existing accounts are not here: they go through the
// approval workflow.
type UserService struct {
	users  port.UserRepository
	hasher *security.PasswordHasher
	audit  *AuditService
	logger *zap.Logger
	now    func() time.Time
}

// NewUserService constructs a UserService instance.
func NewUserService(users port.UserRepository, hasher *security.PasswordHasher, audit *AuditService, logger *zap.Logger) *UserService {
	return &UserService{
		users:  users,
		hasher: hasher,
		audit:  audit,
		logger: logger,
		now:    time.Now,
	}
}

// Create registers a new operator account. New accounts always receive a
// hash; the legacy clear-text column stays empty.
func (s *UserService) Create(ctx context.Context, actor domain.Actor, input CreateUserInput, origin domain.Origin) (*domain.User, error) {
	if !actor.Role.IsMaster() && actor.Role != domain.RoleAdmin {
		s.auditUser(ctx, actor, "crear_usuario", domain.OutcomeDenied, "", origin, "rol sin privilegios administrativos")
		return nil, ErrActionDenied
	}

	input.Name = strings.TrimSpace(input.Name)
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if input.Name == "" || input.Email == "" {
		return nil, fmt.Errorf("name and email are required")
	}

	if _, ok := validRoles[input.Role]; !ok {
		return nil, ErrUnknownRole
	}

	// Only the master role may mint another administrative account.
	if (input.Role == domain.RoleMasterAdmin || input.Role == domain.RoleAdmin) && !actor.Role.IsMaster() {
		s.auditUser(ctx, actor, "crear_usuario", domain.OutcomeDenied, "", origin, "solo el administrador maestro crea administradores")
		return nil, ErrActionDenied
	}

	validator := security.OperatorPasswordValidator(input.Name, input.Email)
	if err := validator.Validate(input.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Name:         input.Name,
		Email:        input.Email,
		Role:         input.Role,
		PasswordHash: &hash,
		Active:       true,
		CreatedAt:    s.now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     "crear_usuario",
		Category:   domain.CategoryUsers,
		Outcome:    domain.OutcomeSuccess,
		EntityType: "usuario",
		EntityID:   user.ID,
		After:      userSnapshot(user),
		Origin:     origin,
	})

	return &user, nil
}

// Get returns one account.
func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// List returns every operator account.
func (s *UserService) List(ctx context.Context) ([]domain.User, error) {
	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// ChangePassword sets a new credential. Operators change their own;
// the master role may reset anyone's. The update also purges any legacy
// clear-text credential still on the row.
func (s *UserService) ChangePassword(ctx context.Context, actor domain.Actor, userID, newPassword string, origin domain.Origin) error {
	if actor.ID != userID && !actor.Role.IsMaster() {
		s.auditUser(ctx, actor, "cambiar_contrasena", domain.OutcomeDenied, userID, origin, "sin permiso sobre la cuenta")
		return ErrPasswordChangeDenied
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("get user: %w", err)
	}

	validator := security.OperatorPasswordValidator(user.Name, user.Email)
	if err := validator.Validate(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	s.auditUser(ctx, actor, "cambiar_contrasena", domain.OutcomeSuccess, userID, origin, "")

	return nil
}

func (s *UserService) auditUser(ctx context.Context, actor domain.Actor, action string, outcome domain.AuditOutcome, userID string, origin domain.Origin, message string) {
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     action,
		Category:   domain.CategoryUsers,
		Outcome:    outcome,
		EntityType: "usuario",
		EntityID:   userID,
		Origin:     origin,
		Message:    message,
	})
}
