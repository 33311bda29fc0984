package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"tradejournal/internal/domain"
)

// ProfileUpdate is the editable part of a profile. Empty strings clear a field.
type ProfileUpdate struct {
	Name      *string `json:"name" validate:"omitempty,min=1,max=100"`
	Telephone *string `json:"telephone" validate:"omitempty,max=20"`
	Country   *string `json:"country" validate:"omitempty,max=100"`
}

// ProfileService manages optional personal details
type ProfileService struct {
	profiles domain.ProfileRepository
}

// NewProfileService creates a new ProfileService
func NewProfileService(profiles domain.ProfileRepository) *ProfileService {
	return &ProfileService{profiles: profiles}
}

// Get returns the profile of userID, or an empty one when none is stored
func (s *ProfileService) Get(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	p, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return &domain.Profile{UserID: userID}, nil
		}
		return nil, storeError(err, "load profile")
	}
	return p, nil
}

// Update stores the profile of userID
func (s *ProfileService) Update(ctx context.Context, userID uuid.UUID, update ProfileUpdate) (*domain.Profile, error) {
	update.Name = trimmed(update.Name)
	update.Telephone = trimmed(update.Telephone)
	update.Country = trimmed(update.Country)
	if err := validateStruct(&update); err != nil {
		return nil, err
	}

	p, err := s.profiles.Upsert(ctx, &domain.Profile{
		UserID:    userID,
		Name:      update.Name,
		Telephone: update.Telephone,
		Country:   update.Country,
	})
	if err != nil {
		return nil, storeError(err, "store profile")
	}
	return p, nil
}

// trimmed trims v and turns a blank value into nil
func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
