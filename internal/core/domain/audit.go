package domain

import "time"

// AuditCategory classifies audit entries. Mirrors the CHECK constraint on
// the auditoria table.
type AuditCategory string

const (
	CategoryAuthentication AuditCategory = "autenticacion"
	CategoryUsers          AuditCategory = "usuarios"
	CategoryPlaces         AuditCategory = "lugares"
	CategoryConsultations  AuditCategory = "consultas"
	CategoryHistory        AuditCategory = "historial"
	CategoryBackups        AuditCategory = "respaldos"
	CategorySystem         AuditCategory = "sistema"
	CategorySecurity       AuditCategory = "seguridad"
)

// AuditOutcome records how the audited action ended.
type AuditOutcome string

const (
	OutcomeSuccess AuditOutcome = "exito"
	OutcomeError   AuditOutcome = "error"
	OutcomeDenied  AuditOutcome = "denegado"
	OutcomePending AuditOutcome = "pendiente"
)

// AuditEntry is an immutable, append-only record of a security-relevant
// event. Checksum is computed over every other field at write time; a
// mismatch on re-verification signals tampering.
type AuditEntry struct {
	ID         string
	ActorID    *string
	ActorName  string
	ActorRole  string
	Action     string
	Category   AuditCategory
	Outcome    AuditOutcome
	EntityType *string
	EntityID   *string
	Before     []byte
	After      []byte
	IP         *string
	UserAgent  *string
	Message    *string
	OccurredAt time.Time
	Checksum   string
}

// AuditFilter narrows audit queries. Zero values mean "no filter".
type AuditFilter struct {
	Category AuditCategory
	ActorID  string
	Limit    int
}
