// Package admins models the staff identities that participate in ledger
// operations. Registration and session handling live outside this system;
// the ledger only needs names, roles and activity flags.
package admins

import "time"

// Role enumerates admin privilege levels.
type Role string

const (
	// RoleAdministrator may process transfer requests and transfer without approval.
	RoleAdministrator Role = "administrator"
	// RoleStaff is a regular admin whose outgoing transfers require approval.
	RoleStaff Role = "staff"
)

// Admin is a staff member able to act on the ledger.
type Admin struct {
	ID           int64
	Name         string
	Email        string
	Role         Role
	PasswordHash string
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsAdministrator reports whether the admin holds the elevated role.
func (a Admin) IsAdministrator() bool {
	return a.Role == RoleAdministrator
}
