package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tradejournal/internal/domain"
)

// PreferencesRepositoryImpl handles user_preferences database operations
type PreferencesRepositoryImpl struct {
	db *pgxpool.Pool
}

// NewPreferencesRepository creates a new repository instance
func NewPreferencesRepository(db *pgxpool.Pool) domain.PreferencesRepository {
	return &PreferencesRepositoryImpl{db: db}
}

// Get retrieves the stored preferences of a user
func (r *PreferencesRepositoryImpl) Get(ctx context.Context, userID uuid.UUID) (*domain.Preferences, error) {
	prefs := &domain.Preferences{}
	err := r.db.QueryRow(ctx, `
		SELECT user_id, enable_journalling, enable_telegram_notifications
		FROM user_preferences
		WHERE user_id = $1
	`, userID).Scan(&prefs.UserID, &prefs.EnableJournalling, &prefs.EnableTelegramNotifications)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	return prefs, nil
}

// Upsert updates or creates the preferences of a user
func (r *PreferencesRepositoryImpl) Upsert(ctx context.Context, prefs *domain.Preferences) (*domain.Preferences, error) {
	stored := &domain.Preferences{}
	err := r.db.QueryRow(ctx, `
		INSERT INTO user_preferences (user_id, enable_journalling, enable_telegram_notifications, updated_at)
		VALUES ($1, $2, $3, CURRENT_TIMESTAMP)
		ON CONFLICT (user_id) DO UPDATE SET
			enable_journalling = EXCLUDED.enable_journalling,
			enable_telegram_notifications = EXCLUDED.enable_telegram_notifications,
			updated_at = CURRENT_TIMESTAMP
		RETURNING user_id, enable_journalling, enable_telegram_notifications
	`, prefs.UserID, prefs.EnableJournalling, prefs.EnableTelegramNotifications).
		Scan(&stored.UserID, &stored.EnableJournalling, &stored.EnableTelegramNotifications)

	if err != nil {
		return nil, fmt.Errorf("failed to upsert preferences: %w", err)
	}

	return stored, nil
}
