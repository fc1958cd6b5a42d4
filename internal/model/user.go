package model

import (
	"fmt"
	"slices"
	"time"
)

// User represents an authenticated back-office account.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Roles.
const (
	RoleAdmin    = "admin"
	RoleChef     = "chef"
	RoleMateriel = "materiel"
)

// MinPasswordLength is the shortest accepted password.
const MinPasswordLength = 8

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleChef || role == RoleMateriel
}

// HasRole checks if role is admin or one of the allowed roles.
// Unknown roles fail closed.
func HasRole(role string, allowed ...string) bool {
	if !ValidRole(role) {
		return false
	}
	return role == RoleAdmin || slices.Contains(allowed, role)
}

// ValidatePassword checks the password policy.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}
	return nil
}
