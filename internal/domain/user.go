package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents an account in the system
type User struct {
	ID           uuid.UUID  `json:"id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Never expose password hash in JSON
	Role         Role       `json:"role"`
	BannedAt     *time.Time `json:"banned_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// IsBanned reports whether the account is globally suspended
func (u *User) IsBanned() bool {
	return u.BannedAt != nil
}

// Role is the access level attached to a user
type Role string

// Role constants
const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

// AtLeastAdmin reports whether r is admin or superadmin
func (r Role) AtLeastAdmin() bool {
	return r == RoleAdmin || r == RoleSuperadmin
}

// Profile holds optional personal details of a user
type Profile struct {
	UserID    uuid.UUID `json:"user_id"`
	Name      *string   `json:"name"`
	Telephone *string   `json:"telephone"`
	Country   *string   `json:"country"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserWithProfile is the admin console view of an account
type UserWithProfile struct {
	User
	Profile *Profile `json:"profile"`
}
