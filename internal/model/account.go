package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// Role is the access level tag of an account.  It is fixed when the
// account is created.
type Role string

const (
	RoleClient Role = "CLIENT"
	RoleStaff  Role = "STAFF"
	RoleAdmin  Role = "ADMIN"
)

// ParseRole converts a case-insensitive role name into a Role.
func ParseRole(s string) (Role, bool) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	return r, r.Valid()
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleStaff, RoleAdmin:
		return true
	}
	return false
}

// Account mirrors a row of the `accounts` table.  Login is unique across
// every role.  Accounts are never hard-deleted; Active=false disables
// login.
//
// Fields:
//  ID           – primary key (UUID).
//  Login        – unique login, immutable after creation.
//  PasswordHash – bcrypt hash of the password.
//  Role         – CLIENT, STAFF or ADMIN, immutable.
//  Active       – whether the account may log in.
type Account struct {
	ID           uuid.UUID // accounts.id
	Login        string    // accounts.login
	PasswordHash string    // accounts.password_hash
	Role         Role      // accounts.role
	Active       bool      // accounts.active
}

// VersionClaims lists the field values the version token is derived from.
// The password hash enters only as a digest so that the token reveals
// nothing about it.
func (a Account) VersionClaims() map[string]any {
	sum := sha256.Sum256([]byte(a.PasswordHash))
	return map[string]any{
		"kind":   "account",
		"id":     a.ID.String(),
		"login":  a.Login,
		"pwd":    hex.EncodeToString(sum[:]),
		"role":   string(a.Role),
		"active": a.Active,
	}
}

// NormalizeLogin trims a login.  Logins are compared case-sensitively.
func NormalizeLogin(login string) string {
	return strings.TrimSpace(login)
}
