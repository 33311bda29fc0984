package http

import (
	"errors"

	"github.com/labstack/echo/v4"

	"tradejournal/internal/delivery/http/dto"
	"tradejournal/internal/domain"
	"tradejournal/internal/middleware"
	"tradejournal/internal/policy"
	"tradejournal/internal/usecase"
)

// UserHandler handles the signed-in user's own records
type UserHandler struct {
	accounts    *usecase.AccountService
	profiles    *usecase.ProfileService
	preferences *usecase.PreferenceService
	keys        *usecase.APIKeyService
	auth        *middleware.Authorizer
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(
	accounts *usecase.AccountService,
	profiles *usecase.ProfileService,
	preferences *usecase.PreferenceService,
	keys *usecase.APIKeyService,
	auth *middleware.Authorizer,
) *UserHandler {
	return &UserHandler{
		accounts:    accounts,
		profiles:    profiles,
		preferences: preferences,
		keys:        keys,
		auth:        auth,
	}
}

// GetRole returns the caller's role, user when none is stored
// GET /api/user/role
func (h *UserHandler) GetRole(c echo.Context) error {
	principal, err := h.auth.RequireSession(c, policy.Authenticated(policy.ActionReadOwnAccount))
	if err != nil {
		return err
	}
	return SuccessResponse(c, dto.RoleOutput{Role: h.accounts.Role(c.Request().Context(), principal.UserID)})
}

// GetMe returns the caller's account, profile, preferences and key state
// GET /api/user/me
func (h *UserHandler) GetMe(c echo.Context) error {
	principal, err := h.auth.RequireSession(c, policy.Authenticated(policy.ActionReadOwnAccount))
	if err != nil {
		return err
	}

	account, err := h.accounts.Me(c.Request().Context(), principal.UserID)
	if err != nil {
		return err
	}
	return SuccessResponse(c, account)
}

// GetProfile returns the caller's profile
// GET /api/profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	principal, err := h.auth.RequireSession(c, policy.Authenticated(policy.ActionReadProfile))
	if err != nil {
		return err
	}

	profile, err := h.profiles.Get(c.Request().Context(), principal.UserID)
	if err != nil {
		return err
	}
	return SuccessResponse(c, profile)
}

// UpdateProfile upserts the caller's profile
// PATCH /api/profile
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	principal, err := h.auth.RequireSession(c, policy.Authenticated(policy.ActionWriteProfile))
	if err != nil {
		return err
	}

	var req usecase.ProfileUpdate
	if err := bind(c, &req); err != nil {
		return err
	}

	profile, err := h.profiles.Update(c.Request().Context(), principal.UserID, req)
	if err != nil {
		return err
	}
	return SuccessResponse(c, profile)
}

// GetPreferences returns the caller's effective preferences
// GET /api/preferences
func (h *UserHandler) GetPreferences(c echo.Context) error {
	principal, err := h.auth.RequireSession(c, policy.Authenticated(policy.ActionReadPreferences))
	if err != nil {
		return err
	}

	prefs, err := h.preferences.Get(c.Request().Context(), principal.UserID)
	if err != nil {
		return err
	}
	return SuccessResponse(c, prefs)
}

// SetPreferences stores both preference flags. Admins and superadmins only.
// POST /api/preferences
func (h *UserHandler) SetPreferences(c echo.Context) error {
	principal, err := h.auth.RequireSession(c, policy.Admin(policy.ActionWritePreferences))
	if err != nil {
		return err
	}

	var req usecase.PreferenceUpdate
	if err := bind(c, &req); err != nil {
		return err
	}

	prefs, err := h.preferences.Set(c.Request().Context(), principal.UserID, req)
	if err != nil {
		return err
	}
	return SuccessMessageResponse(c, "Preferences saved", prefs)
}

// GenerateKey issues a new API key, replacing the current one
// POST /api/keys
func (h *UserHandler) GenerateKey(c echo.Context) error {
	principal, err := h.auth.RequireSession(c, policy.Authenticated(policy.ActionGenerateKey))
	if err != nil {
		return err
	}

	key, err := h.keys.Generate(c.Request().Context(), principal.UserID)
	if err != nil {
		return err
	}
	return CreatedResponse(c, dto.APIKeyOutput{Key: key})
}

// GetKey returns the current API key, or null when none was generated
// GET /api/keys
func (h *UserHandler) GetKey(c echo.Context) error {
	principal, err := h.auth.RequireSession(c, policy.Authenticated(policy.ActionReadKey))
	if err != nil {
		return err
	}

	key, err := h.keys.Lookup(c.Request().Context(), principal.UserID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return SuccessResponse(c, dto.APIKeyOutput{Key: key})
}
