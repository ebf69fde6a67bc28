package domain

import "time"

// SecurityEventType enumerates events published on the operational side
// channel. Publishing is best-effort and never blocks the primary action.
type SecurityEventType string

const (
	// EventAuditWriteFailed fires when an audit entry could not be
	// persisted. The audited action itself proceeds regardless.
	EventAuditWriteFailed SecurityEventType = "audit.write_failed"
	// EventAccountLocked fires when failed logins trip the lockout.
	EventAccountLocked SecurityEventType = "account.locked"
	// EventApprovalResolved fires when a pending request is approved or
	// rejected.
	EventApprovalResolved SecurityEventType = "approval.resolved"
	// EventIdentityRevealed fires when an operator decrypts a mapped RUT.
	EventIdentityRevealed SecurityEventType = "identity.revealed"
)

// SecurityEvent is the envelope published to the operational channel.
type SecurityEvent struct {
	Type       SecurityEventType `json:"type"`
	ActorID    string            `json:"actor_id,omitempty"`
	ActorRole  string            `json:"actor_role,omitempty"`
	EntityType string            `json:"entity_type,omitempty"`
	EntityID   string            `json:"entity_id,omitempty"`
	Detail     string            `json:"detail,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}
