package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/core/port"
	"github.com/henry9622/ProgramaTelemedicina/internal/infra/security"
	"github.com/henry9622/ProgramaTelemedicina/internal/repository"
)

var (
	// ErrPatientNotFound indicates no mapping exists for the given key.
	ErrPatientNotFound = errors.New("patient identity not found")
	// ErrInvalidCIP indicates the code does not have the CIP shape.
	ErrInvalidCIP = errors.New("invalid cip")
	// ErrRevealDenied indicates the caller may not decrypt identities.
	ErrRevealDenied = errors.New("identity reveal denied")
	// ErrCIPExhausted indicates no free code was found within the redraw
	// budget. Practically unreachable until the code space saturates.
	ErrCIPExhausted = errors.New("cip generation attempts exhausted")
)

// IntakeService registers patients under pseudonymous CIP codes and
// guards the paths back to the real identifier.
type IntakeService struct {
	identities  port.IdentityRepository
	cipher      *security.IdentityCipher
	lookup      *security.LookupHasher
	audit       *AuditService
	publisher   port.EventPublisher
	logger      *zap.Logger
	maxAttempts int
	now         func() time.Time
}

// NewIntakeService constructs an IntakeService instance.
func NewIntakeService(
	identities port.IdentityRepository,
	cipher *security.IdentityCipher,
	lookup *security.LookupHasher,
	audit *AuditService,
	publisher port.EventPublisher,
	logger *zap.Logger,
	maxAttempts int,
) (*IntakeService, error) {
	if maxAttempts <= 0 {
		return nil, fmt.Errorf("cip max attempts must be positive")
	}

	return &IntakeService{
		identities:  identities,
		cipher:      cipher,
		lookup:      lookup,
		audit:       audit,
		publisher:   publisher,
		logger:      logger,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}, nil
}

// RegisterPatient maps a RUT to a CIP. Registration is idempotent per
// RUT: a second intake of the same patient returns the existing mapping
// so the patient keeps one stable pseudonym for their whole history.
func (s *IntakeService) RegisterPatient(ctx context.Context, actor domain.Actor, rawRUT, facilityName string, origin domain.Origin) (*domain.PatientIdentity, bool, error) {
	normalized, err := security.NormalizeRUT(rawRUT)
	if err != nil {
		s.auditIntake(ctx, actor, domain.OutcomeError, origin, "", "rut invalido")
		return nil, false, err
	}

	rutHash := s.lookup.Hash(normalized)

	existing, err := s.identities.GetByRUTHash(ctx, rutHash)
	if err == nil {
		s.auditIntake(ctx, actor, domain.OutcomeSuccess, origin, existing.CIP, "paciente ya registrado")
		return existing, false, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup identity: %w", err)
	}

	encrypted, err := s.cipher.Encrypt(normalized)
	if err != nil {
		return nil, false, fmt.Errorf("encrypt rut: %w", err)
	}

	masked := security.MaskRUT(normalized)

	identity, created, err := s.createWithFreshCIP(ctx, domain.PatientIdentity{
		EncryptedRUT: encrypted,
		RUTHash:      rutHash,
		MaskedRUT:    masked,
		CreatedByID:  actor.ID,
	}, facilityName)
	if err != nil {
		s.auditIntake(ctx, actor, domain.OutcomeError, origin, "", err.Error())
		return nil, false, err
	}

	s.auditIntake(ctx, actor, domain.OutcomeSuccess, origin, identity.CIP, "")

	return identity, created, nil
}

// createWithFreshCIP draws codes until the insert lands. ExistsCIP
// screens drawn codes cheaply, but the UNIQUE constraints stay the
// authoritative check: ErrDuplicate triggers a redraw, and losing the
// rut_hash race to a concurrent intake of the same patient returns the
// winning mapping with created=false.
func (s *IntakeService) createWithFreshCIP(ctx context.Context, template domain.PatientIdentity, facilityName string) (*domain.PatientIdentity, bool, error) {
	for attempt := 0; attempt < s.maxAttempts; attempt++ {
		cip, err := security.GenerateCIP(facilityName)
		if err != nil {
			return nil, false, fmt.Errorf("generate cip: %w", err)
		}

		taken, err := s.identities.ExistsCIP(ctx, cip)
		if err != nil {
			return nil, false, fmt.Errorf("check cip: %w", err)
		}
		if taken {
			s.logger.Warn("cip collision, redrawing", zap.String("cip", cip), zap.Int("attempt", attempt+1))
			continue
		}

		identity := template
		identity.ID = uuid.NewString()
		identity.CIP = cip
		identity.CreatedAt = s.now().UTC()

		err = s.identities.Create(ctx, identity)
		if err == nil {
			return &identity, true, nil
		}
		if errors.Is(err, repository.ErrDuplicate) {
			s.logger.Warn("cip collision, redrawing", zap.String("cip", cip), zap.Int("attempt", attempt+1))
			continue
		}
		if errors.Is(err, repository.ErrDuplicateRUT) {
			existing, lookupErr := s.identities.GetByRUTHash(ctx, template.RUTHash)
			if lookupErr != nil {
				return nil, false, fmt.Errorf("lookup concurrent registration: %w", lookupErr)
			}
			return existing, false, nil
		}
		return nil, false, fmt.Errorf("insert identity: %w", err)
	}

	return nil, false, ErrCIPExhausted
}

// GetByCIP returns the mapping for a pseudonymous code.
func (s *IntakeService) GetByCIP(ctx context.Context, cip string) (*domain.PatientIdentity, error) {
	if !security.ValidateCIP(cip) {
		return nil, ErrInvalidCIP
	}

	identity, err := s.identities.GetByCIP(ctx, cip)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("get identity: %w", err)
	}

	return identity, nil
}

// FindByRUT locates a patient by national identifier without decrypting
// anything: the salted lookup hash supports the equality search.
func (s *IntakeService) FindByRUT(ctx context.Context, actor domain.Actor, rawRUT string, origin domain.Origin) (*domain.PatientIdentity, error) {
	normalized, err := security.NormalizeRUT(rawRUT)
	if err != nil {
		return nil, err
	}

	identity, err := s.identities.GetByRUTHash(ctx, s.lookup.Hash(normalized))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPatientNotFound
		}
		return nil, fmt.Errorf("lookup identity: %w", err)
	}

	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     "buscar_paciente",
		Category:   domain.CategoryConsultations,
		Outcome:    domain.OutcomeSuccess,
		EntityType: "paciente",
		EntityID:   identity.CIP,
		Origin:     origin,
	})

	return identity, nil
}

// RevealRUT decrypts the stored identifier behind a CIP. Only the master
// role may call it; every reveal is audited and published to the
// security side channel.
func (s *IntakeService) RevealRUT(ctx context.Context, actor domain.Actor, cip string, origin domain.Origin) (string, error) {
	if !actor.Role.IsMaster() {
		s.audit.Record(ctx, AuditRecord{
			Actor:      actor,
			Action:     "revelar_identidad",
			Category:   domain.CategorySecurity,
			Outcome:    domain.OutcomeDenied,
			EntityType: "paciente",
			EntityID:   cip,
			Origin:     origin,
		})
		return "", ErrRevealDenied
	}

	identity, err := s.GetByCIP(ctx, cip)
	if err != nil {
		return "", err
	}

	rut, err := s.cipher.Decrypt(identity.EncryptedRUT)
	if err != nil {
		return "", fmt.Errorf("decrypt identity: %w", err)
	}

	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     "revelar_identidad",
		Category:   domain.CategorySecurity,
		Outcome:    domain.OutcomeSuccess,
		EntityType: "paciente",
		EntityID:   identity.CIP,
		Origin:     origin,
	})

	event := domain.SecurityEvent{
		Type:       domain.EventIdentityRevealed,
		ActorID:    actor.ID,
		ActorRole:  string(actor.Role),
		EntityType: "paciente",
		EntityID:   identity.CIP,
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("identity revealed event not published", zap.Error(err))
	}

	return rut, nil
}

func (s *IntakeService) auditIntake(ctx context.Context, actor domain.Actor, outcome domain.AuditOutcome, origin domain.Origin, cip, message string) {
	s.audit.Record(ctx, AuditRecord{
		Actor:      actor,
		Action:     "registrar_paciente",
		Category:   domain.CategoryConsultations,
		Outcome:    outcome,
		EntityType: "paciente",
		EntityID:   cip,
		Origin:     origin,
		Message:    message,
	})
}
