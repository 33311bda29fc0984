package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultAPIKeyLabel is the label given to generated keys
const DefaultAPIKeyLabel = "Default Key"

// APIKey is the single active key of a user
type APIKey struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Key       string    `json:"key"`
	Label     string    `json:"label"`
	CreatedAt time.Time `json:"created_at"`
}
