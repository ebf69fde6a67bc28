package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/core/port"
	"github.com/henry9622/ProgramaTelemedicina/internal/infra/security"
	"github.com/henry9622/ProgramaTelemedicina/internal/repository"
)

var (
	// ErrInvalidCredentials indicates the provided email or password are incorrect.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked indicates the lockout window is still in effect.
	// Correct credentials do not clear it early.
	ErrAccountLocked = errors.New("account temporarily locked")
	// ErrInactiveAccount indicates the account is disabled.
	ErrInactiveAccount = errors.New("account is not active")
)

// AuthService coordinates login, the failed-attempt lockout policy, and
// the migration of legacy clear-text credentials to Argon2id hashes.
type AuthService struct {
	users            port.UserRepository
	hasher           *security.PasswordHasher
	audit            *AuditService
	publisher        port.EventPublisher
	logger           *zap.Logger
	lockoutThreshold int
	lockoutDuration  time.Duration
	now              func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	users port.UserRepository,
	hasher *security.PasswordHasher,
	audit *AuditService,
	publisher port.EventPublisher,
	logger *zap.Logger,
	lockoutThreshold int,
	lockoutDuration time.Duration,
) (*AuthService, error) {
	if lockoutThreshold <= 0 {
		return nil, fmt.Errorf("lockout threshold must be positive")
	}
	if lockoutDuration <= 0 {
		return nil, fmt.Errorf("lockout duration must be positive")
	}

	return &AuthService{
		users:            users,
		hasher:           hasher,
		audit:            audit,
		publisher:        publisher,
		logger:           logger,
		lockoutThreshold: lockoutThreshold,
		lockoutDuration:  lockoutDuration,
		now:              time.Now,
	}, nil
}

// Login validates credentials and returns the authenticated user. Every
// outcome is audited; the lockout check runs before the credential check
// so a locked account rejects even the correct password.
func (s *AuthService) Login(ctx context.Context, email, password string, origin domain.Origin) (*domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.auditLogin(ctx, domain.Actor{}, domain.OutcomeDenied, origin, "usuario desconocido")
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	actor := domain.Actor{ID: user.ID, Name: user.Name, Role: user.Role}
	now := s.now().UTC()

	if user.Locked(now) {
		s.auditLogin(ctx, actor, domain.OutcomeDenied, origin, "cuenta bloqueada")
		return nil, ErrAccountLocked
	}

	if !user.Active {
		s.auditLogin(ctx, actor, domain.OutcomeDenied, origin, "cuenta inactiva")
		return nil, ErrInactiveAccount
	}

	ok, migrate, err := s.verifyCredential(user, password)
	if err != nil {
		return nil, err
	}

	if !ok {
		if err := s.registerFailure(ctx, user, actor, origin, now); err != nil {
			return nil, err
		}
		return nil, ErrInvalidCredentials
	}

	if migrate {
		if err := s.migrateLegacyCredential(ctx, user, password); err != nil {
			return nil, err
		}
	}

	if err := s.users.RecordLoginSuccess(ctx, user.ID, now); err != nil {
		return nil, fmt.Errorf("record login success: %w", err)
	}

	user.FailedAttempts = 0
	user.LockedUntil = nil
	user.LastAccess = &now

	s.auditLogin(ctx, actor, domain.OutcomeSuccess, origin, "")

	return user, nil
}

// verifyCredential checks the password against the stored hash, falling
// back to the legacy clear-text column when no hash exists yet. migrate
// reports that the match came from the legacy path.
func (s *AuthService) verifyCredential(user *domain.User, password string) (ok bool, migrate bool, err error) {
	if user.PasswordHash != nil && *user.PasswordHash != "" {
		ok, err = s.hasher.Verify(password, *user.PasswordHash)
		if err != nil {
			return false, false, fmt.Errorf("verify password: %w", err)
		}
		return ok, false, nil
	}

	if user.LegacyPassword != nil && *user.LegacyPassword == password {
		return true, true, nil
	}

	return false, false, nil
}

// migrateLegacyCredential rehashes a matched clear-text password and
// purges the legacy column in the same statement.
func (s *AuthService) migrateLegacyCredential(ctx context.Context, user *domain.User, password string) error {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash migrated password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return fmt.Errorf("store migrated password: %w", err)
	}

	user.PasswordHash = &hash
	user.LegacyPassword = nil

	s.logger.Info("legacy credential migrated", zap.String("user_id", user.ID))
	return nil
}

func (s *AuthService) registerFailure(ctx context.Context, user *domain.User, actor domain.Actor, origin domain.Origin, now time.Time) error {
	attempts := user.FailedAttempts + 1

	var lockedUntil *time.Time
	if attempts >= s.lockoutThreshold {
		until := now.Add(s.lockoutDuration)
		lockedUntil = &until
	}

	if err := s.users.RecordLoginFailure(ctx, user.ID, attempts, lockedUntil); err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}

	if lockedUntil != nil {
		s.auditLogin(ctx, actor, domain.OutcomeDenied, origin,
			fmt.Sprintf("cuenta bloqueada tras %d intentos fallidos", attempts))

		event := domain.SecurityEvent{
			Type:       domain.EventAccountLocked,
			ActorID:    user.ID,
			ActorRole:  string(user.Role),
			EntityType: "usuario",
			EntityID:   user.ID,
			Detail:     fmt.Sprintf("%d intentos fallidos", attempts),
			OccurredAt: now,
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Error("account locked event not published", zap.Error(err))
		}
	} else {
		s.auditLogin(ctx, actor, domain.OutcomeDenied, origin, "contrasena incorrecta")
	}

	return nil
}

func (s *AuthService) auditLogin(ctx context.Context, actor domain.Actor, outcome domain.AuditOutcome, origin domain.Origin, message string) {
	s.audit.Record(ctx, AuditRecord{
		Actor:    actor,
		Action:   "iniciar_sesion",
		Category: domain.CategoryAuthentication,
		Outcome:  outcome,
		Origin:   origin,
		Message:  message,
	})
}
