package middleware

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"tradejournal/configs"
	"tradejournal/internal/domain"
)

// SessionCookieName is the cookie carrying the page session token
const SessionCookieName = "token"

// JWTClaims represents the session token claims
type JWTClaims struct {
	UserID uuid.UUID `json:"user_id"`
	jwt.RegisteredClaims
}

// SessionManager issues, verifies and revokes session tokens
type SessionManager struct {
	secret        []byte
	ttl           time.Duration
	refreshWindow time.Duration
	secure        bool
	revocations   domain.SessionRevocationRepository
	now           func() time.Time
}

// NewSessionManager creates a new SessionManager. revocations may be nil.
func NewSessionManager(cfg configs.JWTConfig, revocations domain.SessionRevocationRepository) *SessionManager {
	return &SessionManager{
		secret:        []byte(cfg.Secret),
		ttl:           cfg.TTL,
		refreshWindow: cfg.RefreshWindow,
		secure:        cfg.CookieSecure,
		revocations:   revocations,
		now:           time.Now,
	}
}

// Issue generates a new session token for a user
func (m *SessionManager) Issue(userID uuid.UUID) (string, *JWTClaims, error) {
	now := m.now()
	claims := &JWTClaims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", nil, fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, claims, nil
}

// Verify parses and validates a session token. Any token problem is reported as
// domain.ErrInvalidCredential; a failing revocation lookup as domain.ErrUpstream.
func (m *SessionManager) Verify(ctx context.Context, tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithExpirationRequired(), jwt.WithTimeFunc(m.now))
	if err != nil {
		return nil, domain.ErrInvalidCredential
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.UserID == uuid.Nil {
		return nil, domain.ErrInvalidCredential
	}

	if m.revocations != nil && claims.ID != "" {
		revoked, err := m.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: session revocation lookup: %v", domain.ErrUpstream, err)
		}
		if revoked {
			return nil, domain.ErrInvalidCredential
		}
	}

	return claims, nil
}

// VerifySession satisfies identity.SessionVerifier
func (m *SessionManager) VerifySession(ctx context.Context, token string) (uuid.UUID, error) {
	claims, err := m.Verify(ctx, token)
	if err != nil {
		return uuid.Nil, err
	}
	return claims.UserID, nil
}

// Revoke invalidates a token until its natural expiry
func (m *SessionManager) Revoke(ctx context.Context, claims *JWTClaims) error {
	if m.revocations == nil || claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	return m.revocations.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

// NeedsRefresh reports whether a still-valid token is close enough to expiry to be reissued
func (m *SessionManager) NeedsRefresh(claims *JWTClaims) bool {
	if claims == nil || claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Time.Sub(m.now()) < m.refreshWindow
}

// Cookie builds the HTTP-only session cookie for a token
func (m *SessionManager) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(m.ttl.Seconds()),
	}
}

// ClearCookie builds a cookie that deletes the session cookie
func (m *SessionManager) ClearCookie() *http.Cookie {
	return &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		MaxAge:   -1,
	}
}

// IsCredentialError reports whether err is a caller credential problem rather than a server fault
func IsCredentialError(err error) bool {
	return errors.Is(err, domain.ErrInvalidCredential) || errors.Is(err, domain.ErrMissingCredential)
}
