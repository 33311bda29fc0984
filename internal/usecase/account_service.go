package usecase

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"tradejournal/internal/domain"
	"tradejournal/internal/policy"
)

// Account is the signed-in user's view of themselves
type Account struct {
	User        *domain.User       `json:"user"`
	Profile     *domain.Profile    `json:"profile"`
	Preferences domain.Preferences `json:"preferences"`
	HasAPIKey   bool               `json:"has_api_key"`
}

// Role is the stored role, user when unset
func (a *Account) Role() domain.Role {
	if a.User == nil || !a.User.Role.Valid() {
		return domain.RoleUser
	}
	return a.User.Role
}

// AccountService aggregates the per-user records behind GET /api/user/me
type AccountService struct {
	accessor *policy.Accessor
	profiles *ProfileService
	keys     *APIKeyService
}

// NewAccountService creates a new AccountService
func NewAccountService(accessor *policy.Accessor, profiles *ProfileService, keys *APIKeyService) *AccountService {
	return &AccountService{accessor: accessor, profiles: profiles, keys: keys}
}

// Role returns the role of userID, defaulting to user when it cannot be read
func (s *AccountService) Role(ctx context.Context, userID uuid.UUID) domain.Role {
	role, err := s.accessor.RoleOf(ctx, userID)
	if err != nil || !role.Valid() {
		return domain.RoleUser
	}
	return role
}

// Me loads the account, profile, preferences and key presence of userID concurrently
func (s *AccountService) Me(ctx context.Context, userID uuid.UUID) (*Account, error) {
	var acc Account
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		user, err := s.accessor.Account(gctx, userID)
		acc.User = user
		return err
	})
	g.Go(func() error {
		profile, err := s.profiles.Get(gctx, userID)
		acc.Profile = profile
		return err
	})
	g.Go(func() error {
		prefs, err := s.accessor.PreferencesOf(gctx, userID)
		acc.Preferences = prefs
		return err
	})
	g.Go(func() error {
		_, err := s.keys.Lookup(gctx, userID)
		if err == nil {
			acc.HasAPIKey = true
			return nil
		}
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &acc, nil
}
