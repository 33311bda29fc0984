package dto

import (
	"time"

	"tradejournal/internal/domain"
)

// BanRequest toggles the ban state of a user; false unbans
type BanRequest struct {
	Ban *bool `json:"ban"`
}

// RoleOutput is the response of GET /api/user/role
type RoleOutput struct {
	Role domain.Role `json:"role"`
}

// APIKeyOutput wraps the current key so an absent key renders as null
type APIKeyOutput struct {
	Key *domain.APIKey `json:"key"`
}

// UserOutput represents user details in API responses
type UserOutput struct {
	ID        string      `json:"id"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	Banned    bool        `json:"banned"`
	CreatedAt time.Time   `json:"created_at"`
}

// NewUserOutput maps a user to its API representation
func NewUserOutput(u *domain.User) *UserOutput {
	role := u.Role
	if role == "" {
		role = domain.RoleUser
	}
	return &UserOutput{
		ID:        u.ID.String(),
		Email:     u.Email,
		Role:      role,
		Banned:    u.IsBanned(),
		CreatedAt: u.CreatedAt,
	}
}
