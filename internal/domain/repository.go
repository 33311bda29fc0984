package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user data operations
type UserRepository interface {
	// Create creates a new user
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID. Returns ErrNotFound when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)

	// GetByEmail retrieves a user by email. Returns ErrNotFound when absent.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// ListWithProfiles retrieves all users joined with their profiles, newest first
	ListWithProfiles(ctx context.Context) ([]*UserWithProfile, error)

	// UpdateRole sets the role of a user
	UpdateRole(ctx context.Context, id uuid.UUID, role Role) error

	// SetBannedAt sets or clears the ban timestamp of a user
	SetBannedAt(ctx context.Context, id uuid.UUID, bannedAt *time.Time) error

	// UpdateEmail changes the login email of a user
	UpdateEmail(ctx context.Context, id uuid.UUID, email string) error

	// Delete removes a user and, by cascade, everything the user owns
	Delete(ctx context.Context, id uuid.UUID) error
}

// TradeRepository defines the interface for trade data operations
type TradeRepository interface {
	// Create inserts a trade. Either the full row is written or an error is returned.
	Create(ctx context.Context, trade *Trade) error

	// ListByUser retrieves the trades of a user, newest first
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]*Trade, error)

	// GetByID retrieves a trade by ID. Returns ErrNotFound when absent.
	GetByID(ctx context.Context, id uuid.UUID) (*Trade, error)

	// Update applies a status change to a trade
	Update(ctx context.Context, id uuid.UUID, update TradeUpdate, closedAt *time.Time) (*Trade, error)

	// Delete removes a trade
	Delete(ctx context.Context, id uuid.UUID) error
}

// APIKeyRepository defines the interface for API key storage
type APIKeyRepository interface {
	// Upsert stores key as the only key of key.UserID, replacing any previous one.
	// Returns ErrConflict when the key value collides with another user's key.
	Upsert(ctx context.Context, key *APIKey) (*APIKey, error)

	// GetByUserID retrieves the current key of a user. Returns ErrNotFound when absent.
	GetByUserID(ctx context.Context, userID uuid.UUID) (*APIKey, error)

	// GetUserIDByKey resolves the owner of a key. Returns ErrNotFound when no user owns it.
	GetUserIDByKey(ctx context.Context, key string) (uuid.UUID, error)
}

// PreferencesRepository defines the interface for preference storage
type PreferencesRepository interface {
	// Get retrieves stored preferences. Returns ErrNotFound when no record exists.
	Get(ctx context.Context, userID uuid.UUID) (*Preferences, error)

	// Upsert creates or replaces the preferences of a user
	Upsert(ctx context.Context, prefs *Preferences) (*Preferences, error)
}

// ProfileRepository defines the interface for profile storage
type ProfileRepository interface {
	// Get retrieves a profile. Returns ErrNotFound when absent.
	Get(ctx context.Context, userID uuid.UUID) (*Profile, error)

	// Upsert creates or replaces a profile
	Upsert(ctx context.Context, profile *Profile) (*Profile, error)
}

// SessionRevocationRepository tracks logged-out session token ids until they expire
type SessionRevocationRepository interface {
	// Revoke records jti as revoked until expiresAt
	Revoke(ctx context.Context, jti string, expiresAt time.Time) error

	// IsRevoked reports whether jti was revoked
	IsRevoked(ctx context.Context, jti string) (bool, error)

	// PruneExpired removes revocations whose token has expired anyway
	PruneExpired(ctx context.Context, now time.Time) (int64, error)
}
