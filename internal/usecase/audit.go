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
	"github.com/henry9622/ProgramaTelemedicina/internal/infra/security"
	"github.com/henry9622/ProgramaTelemedicina/internal/repository"
)

// ErrEntryNotFound indicates the audit entry does not exist.
var ErrEntryNotFound = errors.New("audit entry not found")

// AuditService writes and inspects the tamper-evident audit trail.
//
// Record is deliberately infallible from the caller's perspective: an
// audited action that succeeded must not be rolled back because the
// bookkeeping failed. Persistence errors are logged and pushed to the
// operational side channel instead.
type AuditService struct {
	entries   port.AuditRepository
	publisher port.EventPublisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewAuditService constructs an AuditService instance.
func NewAuditService(entries port.AuditRepository, publisher port.EventPublisher, logger *zap.Logger) *AuditService {
	return &AuditService{
		entries:   entries,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// AuditRecord carries everything needed to append one trail entry.
type AuditRecord struct {
	Actor      domain.Actor
	Action     string
	Category   domain.AuditCategory
	Outcome    domain.AuditOutcome
	EntityType string
	EntityID   string
	Before     []byte
	After      []byte
	Origin     domain.Origin
	Message    string
}

// Record appends an entry to the trail. It never returns an error.
func (s *AuditService) Record(ctx context.Context, rec AuditRecord) {
	entry := s.buildEntry(rec)

	if err := s.entries.Insert(ctx, entry); err != nil {
		s.logger.Error("audit write failed",
			zap.String("action", rec.Action),
			zap.String("category", string(rec.Category)),
			zap.Error(err),
		)

		event := domain.SecurityEvent{
			Type:       domain.EventAuditWriteFailed,
			ActorID:    rec.Actor.ID,
			ActorRole:  string(rec.Actor.Role),
			EntityType: rec.EntityType,
			EntityID:   rec.EntityID,
			Detail:     rec.Action,
			OccurredAt: entry.OccurredAt,
		}
		if pubErr := s.publisher.Publish(ctx, event); pubErr != nil {
			s.logger.Error("audit failure event not published", zap.Error(pubErr))
		}
	}
}

func (s *AuditService) buildEntry(rec AuditRecord) domain.AuditEntry {
	entry := domain.AuditEntry{
		ID:         uuid.NewString(),
		ActorName:  rec.Actor.Name,
		ActorRole:  string(rec.Actor.Role),
		Action:     rec.Action,
		Category:   rec.Category,
		Outcome:    rec.Outcome,
		Before:     rec.Before,
		After:      rec.After,
		OccurredAt: s.now().UTC(),
	}

	if rec.Actor.ID != "" {
		entry.ActorID = &rec.Actor.ID
	}
	if rec.EntityType != "" {
		entry.EntityType = &rec.EntityType
	}
	if rec.EntityID != "" {
		entry.EntityID = &rec.EntityID
	}
	if rec.Origin.IP != "" {
		ip := rec.Origin.IP
		entry.IP = &ip
	}
	if rec.Origin.UserAgent != "" {
		ua := rec.Origin.UserAgent
		entry.UserAgent = &ua
	}
	if rec.Message != "" {
		msg := rec.Message
		entry.Message = &msg
	}

	entry.Checksum = security.RecordChecksum(checksumFields(entry))

	return entry
}

// List returns trail entries matching the filter, most recent first.
func (s *AuditService) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEntry, error) {
	entries, err := s.entries.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, nil
}

// Verify recomputes the checksum of a stored entry and reports whether
// it still matches. A false result signals the row was altered after
// being written.
func (s *AuditService) Verify(ctx context.Context, id string) (bool, error) {
	entry, err := s.entries.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, ErrEntryNotFound
		}
		return false, fmt.Errorf("load audit entry: %w", err)
	}

	fields := checksumFields(*entry)
	fields["checksum"] = entry.Checksum
	return security.VerifyRecordChecksum(fields), nil
}

// VerifyRange checks every entry the filter matches and returns the IDs
// whose checksums no longer verify.
func (s *AuditService) VerifyRange(ctx context.Context, filter domain.AuditFilter) ([]string, error) {
	entries, err := s.entries.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}

	var tampered []string
	for _, entry := range entries {
		fields := checksumFields(entry)
		fields["checksum"] = entry.Checksum
		if !security.VerifyRecordChecksum(fields) {
			tampered = append(tampered, entry.ID)
		}
	}

	return tampered, nil
}

// checksumFields flattens an entry into the canonical field map the
// checksum covers. Every persisted column except the checksum itself
// participates.
func checksumFields(entry domain.AuditEntry) map[string]any {
	return map[string]any{
		"id":             entry.ID,
		"usuario_id":     entry.ActorID,
		"usuario_nombre": entry.ActorName,
		"usuario_rol":    entry.ActorRole,
		"accion":         entry.Action,
		"categoria":      string(entry.Category),
		"resultado":      string(entry.Outcome),
		"entidad_tipo":   entry.EntityType,
		"entidad_id":     entry.EntityID,
		"datos_antes":    canonicalSnapshot(entry.Before),
		"datos_despues":  canonicalSnapshot(entry.After),
		"ip_origen":      entry.IP,
		"user_agent":     entry.UserAgent,
		"mensaje":        entry.Message,
		"fecha":          entry.OccurredAt,
	}
}

// canonicalSnapshot normalizes a JSON snapshot before hashing. The
// snapshot columns are jsonb, which preserves neither key order nor
// whitespace, so hashing the raw bytes would flag every snapshot-bearing
// row as tampered after one round trip through the database. Decoding
// and re-encoding through encoding/json (sorted keys, no insignificant
// whitespace) makes the digest stable across that round trip.
func canonicalSnapshot(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}
	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return string(raw)
	}
	canonical, err := json.Marshal(decoded)
	if err != nil {
		return string(raw)
	}
	return string(canonical)
}
