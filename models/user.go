package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Role is the privilege level of an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Rank orders roles so that a higher rank includes every lower one.
func (r Role) Rank() int {
	switch r {
	case RoleAdmin:
		return 2
	case RoleUser:
		return 1
	default:
		return 0
	}
}

// User represents a registered account.
// It maps to the `users` table. PasswordHash is never serialized.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u" json:"-"`

	ID           int64     `bun:"id,pk,autoincrement" json:"id"`
	Username     string    `bun:"username,notnull" json:"username"`
	Email        string    `bun:"email,notnull" json:"email"`
	PasswordHash string    `bun:"password,notnull" json:"-"`
	Role         Role      `bun:"role,notnull" json:"role"`
	CreatedAt    time.Time `bun:"created_at,notnull" json:"created_at"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}
