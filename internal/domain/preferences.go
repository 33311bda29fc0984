package domain

import "github.com/google/uuid"

// Preferences are the per-user side-effect gates
type Preferences struct {
	UserID                      uuid.UUID `json:"-"`
	EnableJournalling           bool      `json:"enable_journalling"`
	EnableTelegramNotifications bool      `json:"enable_telegram_notifications"`
}

// DefaultPreferences is what a user without a stored record gets
func DefaultPreferences(userID uuid.UUID) Preferences {
	return Preferences{
		UserID:                      userID,
		EnableJournalling:           true,
		EnableTelegramNotifications: true,
	}
}
