package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/henry9622/ProgramaTelemedicina/internal/core/domain"
	"github.com/henry9622/ProgramaTelemedicina/internal/transport/http/middleware"
)

// ErrorResponse is the generic error payload with a trace ID for support.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response carrying the request trace ID.
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	return ErrorResponse{
		Error:   errorMsg,
		TraceID: middleware.GetTraceID(c),
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is returned on a successful login.
type LoginResponse struct {
	AccessToken string      `json:"access_token"`
	TokenType   string      `json:"token_type"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        UserSummary `json:"user"`
}

// UserSummary is the API view of an operator account. Credential and
// lockout fields never leave the service.
type UserSummary struct {
	ID         string     `json:"id"`
	Name       string     `json:"nombre"`
	Email      string     `json:"correo"`
	Role       string     `json:"rol"`
	Active     bool       `json:"activo"`
	LastAccess *time.Time `json:"ultimo_acceso,omitempty"`
	CreatedAt  time.Time  `json:"creado_en"`
}

func toUserSummary(u *domain.User) UserSummary {
	return UserSummary{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Role:       string(u.Role),
		Active:     u.Active,
		LastAccess: u.LastAccess,
		CreatedAt:  u.CreatedAt,
	}
}

// CreateUserRequest carries a new operator account.
type CreateUserRequest struct {
	Name     string `json:"nombre" binding:"required"`
	Email    string `json:"correo" binding:"required,email"`
	Password string `json:"password" binding:"required"`
	Role     string `json:"rol" binding:"required"`
}

// ChangePasswordRequest carries a credential change.
type ChangePasswordRequest struct {
	NewPassword string `json:"password_nueva" binding:"required"`
}

// RegisterPatientRequest opens or resumes a patient identity mapping.
// The RUT travels in the body, never in the URL, so it cannot leak into
// access logs.
type RegisterPatientRequest struct {
	RUT      string `json:"rut" binding:"required"`
	Facility string `json:"posta"`
}

// FindPatientRequest locates an existing mapping by RUT.
type FindPatientRequest struct {
	RUT string `json:"rut" binding:"required"`
}

// PatientResponse is the pseudonymized view of a patient identity. The
// encrypted RUT and its lookup hash are storage artifacts and stay out
// of the API.
type PatientResponse struct {
	CIP       string    `json:"cip"`
	MaskedRUT string    `json:"rut_enmascarado"`
	CreatedAt time.Time `json:"creado_en"`
	Created   bool      `json:"creado,omitempty"`
}

func toPatientResponse(identity *domain.PatientIdentity, created bool) PatientResponse {
	return PatientResponse{
		CIP:       identity.CIP,
		MaskedRUT: identity.MaskedRUT,
		CreatedAt: identity.CreatedAt,
		Created:   created,
	}
}

// RevealResponse returns a decrypted RUT to the master role.
type RevealResponse struct {
	CIP string `json:"cip"`
	RUT string `json:"rut"`
}

// RoomTokenResponse grants access to a video consultation room.
type RoomTokenResponse struct {
	Room  string `json:"room"`
	Token string `json:"token"`
}

// SubmitApprovalRequest proposes an administrative action.
type SubmitApprovalRequest struct {
	Action        string         `json:"accion" binding:"required"`
	EntityType    string         `json:"tipo_entidad" binding:"required"`
	EntityID      string         `json:"id_entidad" binding:"required"`
	Proposed      map[string]any `json:"cambios_propuestos"`
	Justification string         `json:"justificacion"`
}

// SubmitApprovalResponse reports whether the action executed immediately
// or was queued for approval.
type SubmitApprovalResponse struct {
	Executed bool             `json:"ejecutado"`
	Request  *ApprovalSummary `json:"solicitud,omitempty"`
}

// DecisionRequest carries the resolution reason for approve and reject.
type DecisionRequest struct {
	Reason string `json:"motivo"`
}

// ApprovalSummary is the API view of an approval request.
type ApprovalSummary struct {
	ID            string     `json:"id"`
	Action        string     `json:"accion"`
	EntityType    string     `json:"tipo_entidad"`
	EntityID      string     `json:"id_entidad"`
	RequesterName string     `json:"solicitante"`
	Justification string     `json:"justificacion,omitempty"`
	Status        string     `json:"estado"`
	ResolverName  *string    `json:"resolutor,omitempty"`
	RequestedAt   time.Time  `json:"solicitado_en"`
	ResolvedAt    *time.Time `json:"resuelto_en,omitempty"`
	Reason        *string    `json:"motivo,omitempty"`
}

func toApprovalSummary(r *domain.ApprovalRequest) ApprovalSummary {
	return ApprovalSummary{
		ID:            r.ID,
		Action:        string(r.Action),
		EntityType:    r.EntityType,
		EntityID:      r.EntityID,
		RequesterName: r.RequesterName,
		Justification: r.Justification,
		Status:        string(r.Status),
		ResolverName:  r.ResolverName,
		RequestedAt:   r.RequestedAt,
		ResolvedAt:    r.ResolvedAt,
		Reason:        r.ResolutionReason,
	}
}

// PendingCountResponse feeds the approver dashboard badge.
type PendingCountResponse struct {
	Pending int `json:"pendientes"`
}

// AuditEntryResponse is the API view of an audit trail entry.
type AuditEntryResponse struct {
	ID         string    `json:"id"`
	ActorID    *string   `json:"usuario_id,omitempty"`
	ActorName  string    `json:"usuario"`
	ActorRole  string    `json:"rol"`
	Action     string    `json:"accion"`
	Category   string    `json:"categoria"`
	Outcome    string    `json:"resultado"`
	EntityType *string   `json:"tipo_entidad,omitempty"`
	EntityID   *string   `json:"id_entidad,omitempty"`
	Message    *string   `json:"mensaje,omitempty"`
	OccurredAt time.Time `json:"fecha"`
}

func toAuditEntryResponse(e domain.AuditEntry) AuditEntryResponse {
	return AuditEntryResponse{
		ID:         e.ID,
		ActorID:    e.ActorID,
		ActorName:  e.ActorName,
		ActorRole:  e.ActorRole,
		Action:     e.Action,
		Category:   string(e.Category),
		Outcome:    string(e.Outcome),
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Message:    e.Message,
		OccurredAt: e.OccurredAt,
	}
}

// VerifyResponse reports a single-entry checksum verification.
type VerifyResponse struct {
	ID    string `json:"id"`
	Valid bool   `json:"valido"`
}

// VerifyRangeResponse reports a bulk checksum verification.
type VerifyRangeResponse struct {
	Tampered []string `json:"alterados"`
}

// CreatePlaceRequest registers a new health post.
type CreatePlaceRequest struct {
	Name    string `json:"nombre_posta" binding:"required"`
	Commune string `json:"comuna" binding:"required"`
}

// PlaceResponse is the API view of a health post.
type PlaceResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"nombre_posta"`
	Commune    string    `json:"comuna"`
	IsTemplate bool      `json:"es_plantilla"`
	CreatedAt  time.Time `json:"creado_en"`
}

func toPlaceResponse(p *domain.Place) PlaceResponse {
	return PlaceResponse{
		ID:         p.ID,
		Name:       p.Name,
		Commune:    p.Commune,
		IsTemplate: p.IsTemplate,
		CreatedAt:  p.CreatedAt,
	}
}

// BackupResponse describes a database snapshot.
type BackupResponse struct {
	Name      string    `json:"nombre"`
	SizeBytes int64     `json:"tamano_bytes"`
	CreatedAt time.Time `json:"creado_en"`
}

func toBackupResponse(b domain.BackupFile) BackupResponse {
	return BackupResponse{Name: b.Name, SizeBytes: b.SizeBytes, CreatedAt: b.CreatedAt}
}
