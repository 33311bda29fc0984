package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"tradejournal/internal/delivery/http/dto"
	"tradejournal/internal/domain"
	"tradejournal/internal/middleware"
	"tradejournal/internal/policy"
	"tradejournal/internal/usecase"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	auth     *usecase.AuthService
	sessions *middleware.SessionManager
	logger   logrus.FieldLogger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(auth *usecase.AuthService, sessions *middleware.SessionManager, logger logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{auth: auth, sessions: sessions, logger: logger}
}

// Login handles user login from the JSON API and from the login form
// POST /auth/login
func (h *AuthHandler) Login(c echo.Context) error {
	form := isFormPost(c)

	var creds usecase.Credentials
	if err := bind(c, &creds); err != nil {
		if form {
			return loginRedirect(c, "Invalid request")
		}
		return err
	}

	user, err := h.auth.Authenticate(c.Request().Context(), creds)
	if err != nil {
		if form && !errors.Is(err, domain.ErrUpstream) {
			return loginRedirect(c, "Invalid credentials")
		}
		return err
	}

	token, claims, err := h.sessions.Issue(user.ID)
	if err != nil {
		return err
	}
	c.SetCookie(h.sessions.Cookie(token))

	h.logger.WithField("user_id", user.ID).Info("User logged in")
	if form {
		return c.Redirect(http.StatusFound, policy.DashboardPath)
	}
	return SuccessResponse(c, dto.LoginResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.UTC().Format(http.TimeFormat),
		User:      dto.NewUserOutput(user),
	})
}

// Register creates a password account with role user
// POST /auth/register
func (h *AuthHandler) Register(c echo.Context) error {
	var creds usecase.Credentials
	if err := bind(c, &creds); err != nil {
		return err
	}

	user, err := h.auth.Register(c.Request().Context(), creds)
	if err != nil {
		return err
	}
	return CreatedResponse(c, dto.NewUserOutput(user))
}

// Logout revokes the presented session token and clears the cookie
// POST /auth/logout
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(h.sessions.ClearCookie())

	if token := presentedToken(c); token != "" {
		ctx := c.Request().Context()
		claims, err := h.sessions.Verify(ctx, token)
		switch {
		case err == nil:
			if err := h.sessions.Revoke(ctx, claims); err != nil {
				return err
			}
			h.logger.WithField("user_id", claims.UserID).Info("User logged out")
		case errors.Is(err, domain.ErrUpstream):
			return err
		}
	}

	if isFormPost(c) {
		return c.Redirect(http.StatusFound, policy.LoginPath)
	}
	return SuccessMessageResponse(c, "Logged out", nil)
}

func presentedToken(c echo.Context) string {
	if cookie, err := c.Cookie(middleware.SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	scheme, token, ok := strings.Cut(c.Request().Header.Get(echo.HeaderAuthorization), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}

func isFormPost(c echo.Context) bool {
	return strings.HasPrefix(c.Request().Header.Get(echo.HeaderContentType), echo.MIMEApplicationForm)
}

func loginRedirect(c echo.Context, message string) error {
	return c.Redirect(http.StatusFound, policy.LoginPath+"?error="+url.QueryEscape(message))
}
