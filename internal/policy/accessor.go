// Package policy answers who may do what. Accessor reads the per-user policy
// state; Guard turns that state into a decision for one action.
package policy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"tradejournal/internal/domain"
)

// Accessor reads role, ban state and preferences with a uniform error contract:
// domain.ErrNotFound for an unknown user, domain.ErrUpstream for store failures.
type Accessor struct {
	users domain.UserRepository
	prefs domain.PreferencesRepository
}

// NewAccessor creates a new Accessor
func NewAccessor(users domain.UserRepository, prefs domain.PreferencesRepository) *Accessor {
	return &Accessor{users: users, prefs: prefs}
}

// Account loads the policy-relevant row of a user
func (a *Accessor) Account(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := a.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("%w: load user %s: %v", domain.ErrUpstream, userID, err)
	}
	return user, nil
}

// RoleOf returns the role of a user; an empty stored role reads as user
func (a *Accessor) RoleOf(ctx context.Context, userID uuid.UUID) (domain.Role, error) {
	user, err := a.Account(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.Role == "" {
		return domain.RoleUser, nil
	}
	return user.Role, nil
}

// BanStateOf returns the ban timestamp of a user, nil when not banned
func (a *Accessor) BanStateOf(ctx context.Context, userID uuid.UUID) (*time.Time, error) {
	user, err := a.Account(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.BannedAt, nil
}

// PreferencesOf returns the stored preferences, or the all-enabled defaults when none are stored
func (a *Accessor) PreferencesOf(ctx context.Context, userID uuid.UUID) (domain.Preferences, error) {
	prefs, err := a.prefs.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.DefaultPreferences(userID), nil
		}
		return domain.Preferences{}, fmt.Errorf("%w: load preferences %s: %v", domain.ErrUpstream, userID, err)
	}
	return *prefs, nil
}
