package domain

import "time"

// ActionKind enumerates the administrative actions gated by the approval
// workflow. The set is closed: the approval dispatcher switches over it
// exhaustively and rejects anything else.
type ActionKind string

const (
	ActionDeleteUser    ActionKind = "eliminar_usuario"
	ActionDeletePlace   ActionKind = "eliminar_lugar"
	ActionDeleteBackup  ActionKind = "eliminar_respaldo"
	ActionModifyUser    ActionKind = "modificar_usuario"
	ActionModifyPlace   ActionKind = "modificar_lugar"
	ActionExportHistory ActionKind = "exportar_historial"
)

// riskActions holds the closed set of approval-gated kinds.
var riskActions = map[ActionKind]struct{}{
	ActionDeleteUser:    {},
	ActionDeletePlace:   {},
	ActionDeleteBackup:  {},
	ActionModifyUser:    {},
	ActionModifyPlace:   {},
	ActionExportHistory: {},
}

// Known reports whether the kind belongs to the closed enumeration.
func (k ActionKind) Known() bool {
	_, ok := riskActions[k]
	return ok
}

// RequiresApproval reports whether an operator with the given role must
// route the action through the approval workflow. The master role never
// needs approval. The subordinate administrative role needs it for every
// known risk action. Any other role is treated as approval-required,
// which effectively denies the action since those roles cannot approve.
func RequiresApproval(role Role, kind ActionKind) bool {
	if role.IsMaster() {
		return false
	}
	if role == RoleAdmin {
		return kind.Known()
	}
	return true
}

// ApprovalStatus enumerates request states. Transitions happen exactly
// once, from pending to one of the terminal states.
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pendiente"
	ApprovalApproved ApprovalStatus = "aprobada"
	ApprovalRejected ApprovalStatus = "rechazada"
)

// ApprovalRequest represents a proposed mutation awaiting a decision by
// the master role. OriginalState and ProposedState are JSON snapshots;
// ProposedState is decoded into a typed patch at execution time.
type ApprovalRequest struct {
	ID               string
	Action           ActionKind
	EntityType       string
	EntityID         string
	OriginalState    []byte
	ProposedState    []byte
	RequesterID      string
	RequesterName    string
	RequesterRole    Role
	Justification    string
	Status           ApprovalStatus
	ResolverID       *string
	ResolverName     *string
	RequestedAt      time.Time
	ResolvedAt       *time.Time
	ResolutionReason *string
}
