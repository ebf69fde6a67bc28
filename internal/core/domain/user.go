package domain

import "time"

// Role enumerates the operator roles recognised by the platform.
type Role string

const (
	// RoleMasterAdmin is the top authority role. It is exempt from the
	// approval workflow and is the only role allowed to resolve requests.
	RoleMasterAdmin Role = "admin_maestro"
	// RoleAdmin is the subordinate administrative role. High-risk actions
	// performed by it are routed through the approval workflow.
	RoleAdmin Role = "admin"
	// RoleDoctor attends consultations.
	RoleDoctor Role = "medico"
	// RoleTens registers patients and opens consultations.
	RoleTens Role = "tens"
)

// IsMaster reports whether the role holds top authority.
func (r Role) IsMaster() bool {
	return r == RoleMasterAdmin
}

// CanApprove reports whether the role may resolve approval requests.
func (r Role) CanApprove() bool {
	return r == RoleMasterAdmin
}

// User mirrors the persisted representation in the usuarios table.
//
// LegacyPassword holds a clear-text credential carried over from the
// pre-hashing era. It is consulted only when the stored hash is absent or
// does not match, and is purged as soon as the credential is migrated.
type User struct {
	ID             string
	Name           string
	Email          string
	Role           Role
	LegacyPassword *string
	PasswordHash   *string
	Active         bool
	FailedAttempts int
	LockedUntil    *time.Time
	LastAccess     *time.Time
	CreatedAt      time.Time
}

// Locked reports whether the account lockout is still in effect at now.
func (u *User) Locked(now time.Time) bool {
	return u.LockedUntil != nil && now.Before(*u.LockedUntil)
}

// UserPatch enumerates the user fields an approved modification may touch.
// Identity and credential fields are deliberately absent: a credential
// change must go through the password policy path.
type UserPatch struct {
	Name   *string
	Email  *string
	Role   *Role
	Active *bool
}

// Empty reports whether the patch carries no changes.
func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Email == nil && p.Role == nil && p.Active == nil
}

// Actor identifies the already-authenticated operator performing an
// action, as handed over by the calling layer. A zero Actor represents an
// unauthenticated caller (failed logins).
type Actor struct {
	ID   string
	Name string
	Role Role
}

// Origin captures where a request came from.
type Origin struct {
	IP        string
	UserAgent string
}
