package http

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"tradejournal/internal/delivery/http/dto"
	"tradejournal/internal/domain"
	"tradejournal/internal/identity"
	"tradejournal/internal/middleware"
	"tradejournal/internal/policy"
	"tradejournal/internal/usecase"
)

// AdminHandler handles the superadmin user console
type AdminHandler struct {
	admin *usecase.AdminService
	auth  *middleware.Authorizer
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(admin *usecase.AdminService, auth *middleware.Authorizer) *AdminHandler {
	return &AdminHandler{admin: admin, auth: auth}
}

// ListUsers returns every account with its profile
// GET /api/admin/users
func (h *AdminHandler) ListUsers(c echo.Context) error {
	if _, err := h.auth.RequireSession(c, policy.Superadmin(policy.ActionListUsers)); err != nil {
		return err
	}

	users, err := h.admin.ListUsers(c.Request().Context())
	if err != nil {
		return err
	}
	return SuccessResponse(c, users)
}

// SetBan bans or unbans a user
// POST /api/admin/users/:id/ban
func (h *AdminHandler) SetBan(c echo.Context) error {
	var req dto.BanRequest
	actor, target, err := h.targeted(c, &req, func() policy.ActionKind {
		if req.Ban != nil && !*req.Ban {
			return policy.ActionUnban
		}
		return policy.ActionBan
	})
	if err != nil {
		return err
	}
	if req.Ban == nil {
		return fmt.Errorf("%w: ban is required", domain.ErrValidation)
	}

	if err := h.admin.SetBan(c.Request().Context(), actor, target, *req.Ban); err != nil {
		return err
	}
	if *req.Ban {
		return SuccessMessageResponse(c, "User banned", nil)
	}
	return SuccessMessageResponse(c, "User unbanned", nil)
}

// ChangeRole sets the role of a user
// PATCH /api/admin/users/:id/role
func (h *AdminHandler) ChangeRole(c echo.Context) error {
	var req usecase.RoleChange
	actor, target, err := h.targeted(c, &req, fixed(policy.ActionChangeRole))
	if err != nil {
		return err
	}

	if err := h.admin.ChangeRole(c.Request().Context(), actor, target, req); err != nil {
		return err
	}
	return SuccessMessageResponse(c, "Role updated", nil)
}

// UpdateEmail changes the login email of a user
// PATCH /api/admin/users/:id/email
func (h *AdminHandler) UpdateEmail(c echo.Context) error {
	var req usecase.EmailChange
	actor, target, err := h.targeted(c, &req, fixed(policy.ActionUpdateEmail))
	if err != nil {
		return err
	}

	if err := h.admin.UpdateEmail(c.Request().Context(), actor, target, req); err != nil {
		return err
	}
	return SuccessMessageResponse(c, "Email updated", nil)
}

// DeleteUser removes a user and everything they own
// DELETE /api/admin/users/:id
func (h *AdminHandler) DeleteUser(c echo.Context) error {
	actor, target, err := h.targeted(c, nil, fixed(policy.ActionDeleteUser))
	if err != nil {
		return err
	}

	if err := h.admin.DeleteUser(c.Request().Context(), actor, target); err != nil {
		return err
	}
	return SuccessMessageResponse(c, "User deleted", nil)
}

// targeted authenticates the caller, decodes body into req when given, and judges the
// action against the user named in the path. kind is evaluated after decoding.
func (h *AdminHandler) targeted(c echo.Context, req interface{}, kind func() policy.ActionKind) (uuid.UUID, uuid.UUID, error) {
	principal, err := h.auth.Authenticate(c, nil, identity.Options{SessionsOnly: true})
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	// a malformed id names no user; the guard reports it as not found after the role check
	target, _ := pathID(c)
	if req != nil {
		if err := bind(c, req); err != nil {
			return uuid.Nil, uuid.Nil, err
		}
	}

	if err := h.auth.Enforce(c.Request().Context(), principal, policy.OnUser(kind(), target)); err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return principal.UserID, target, nil
}

func fixed(kind policy.ActionKind) func() policy.ActionKind {
	return func() policy.ActionKind { return kind }
}
