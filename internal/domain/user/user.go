package user

import (
	"context"
	"time"
)

// Entity is the name used in NotFound messages.
const Entity = "User"

// Role grants access to groups of endpoints.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// User is a customer or staff account that can own orders.
type User struct {
	ID        string
	Email     string
	Name      string
	Role      Role
	CreatedAt time.Time
}

// Reader resolves users by identifier.
type Reader interface {
	// GetByID returns the user or an apperr NotFound error.
	GetByID(ctx context.Context, id string) (*User, error)
}
