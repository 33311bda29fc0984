package usecase

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"tradejournal/internal/domain"
	"tradejournal/internal/policy"
)

// PreferenceUpdate requires both flags; a missing flag is rejected rather than defaulted
type PreferenceUpdate struct {
	EnableJournalling           *bool `json:"enable_journalling" validate:"required"`
	EnableTelegramNotifications *bool `json:"enable_telegram_notifications" validate:"required"`
}

// PreferenceService reads and writes per-user side-effect gates
type PreferenceService struct {
	accessor *policy.Accessor
	prefs    domain.PreferencesRepository
}

// NewPreferenceService creates a new PreferenceService
func NewPreferenceService(accessor *policy.Accessor, prefs domain.PreferencesRepository) *PreferenceService {
	return &PreferenceService{accessor: accessor, prefs: prefs}
}

// Get returns the effective preferences of userID
func (s *PreferenceService) Get(ctx context.Context, userID uuid.UUID) (domain.Preferences, error) {
	return s.accessor.PreferencesOf(ctx, userID)
}

// Set stores both flags for userID
func (s *PreferenceService) Set(ctx context.Context, userID uuid.UUID, update PreferenceUpdate) (*domain.Preferences, error) {
	if err := validateStruct(&update); err != nil {
		return nil, err
	}
	stored, err := s.prefs.Upsert(ctx, &domain.Preferences{
		UserID:                      userID,
		EnableJournalling:           *update.EnableJournalling,
		EnableTelegramNotifications: *update.EnableTelegramNotifications,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: store preferences: %v", domain.ErrUpstream, err)
	}
	return stored, nil
}
