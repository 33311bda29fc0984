// Package identity resolves who is calling. Every authenticated surface of the
// service goes through Resolver so the page perimeter and the API endpoints can
// never disagree about which credentials are trusted.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"tradejournal/internal/domain"
	"tradejournal/internal/utils"
)

// Credential locations
const (
	HeaderAPIKey       = "x-api-key"
	SessionCookieName  = "token"
	BodyFieldAPIKey    = "apiKey"
	BodyFieldPersonal  = "personalApiKey"
	MaxEchoedInputSize = 500
)

// KeyLookup resolves the owner of an API key
type KeyLookup interface {
	ResolveUser(ctx context.Context, key string) (uuid.UUID, error)
}

// SessionVerifier validates a session token and yields its user
type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) (uuid.UUID, error)
}

// Options scope a resolution to what one endpoint accepts
type Options struct {
	// BodyKeyField names the single JSON field carrying an API key; empty disables body keys.
	BodyKeyField string
	// CookieOnly restricts resolution to the session cookie (page perimeter).
	CookieOnly bool
	// SessionsOnly drops both API key schemes; account management is not reachable with a key.
	SessionsOnly bool
}

// Rejection is returned when no principal can be resolved
type Rejection struct {
	Reason error
	// Received is a bounded prefix of the offending input, only set for malformed payloads.
	Received string
	Detail   string
}

func (r *Rejection) Error() string {
	if r.Detail != "" {
		return r.Reason.Error() + ": " + r.Detail
	}
	return r.Reason.Error()
}

func (r *Rejection) Unwrap() error {
	return r.Reason
}

// Resolver tries the credential schemes in a fixed order
type Resolver struct {
	keys     KeyLookup
	sessions SessionVerifier
}

// NewResolver creates a new Resolver
func NewResolver(keys KeyLookup, sessions SessionVerifier) *Resolver {
	return &Resolver{keys: keys, sessions: sessions}
}

// Resolve identifies the caller of r. body is the already-read request body and may be empty.
//
// Precedence, first success wins: x-api-key header, body API key field,
// Authorization bearer token, session cookie.
func (res *Resolver) Resolve(ctx context.Context, r *http.Request, body []byte, opts Options) (domain.Principal, error) {
	var payload map[string]json.RawMessage
	if !opts.CookieOnly && len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &payload); err != nil {
			return domain.Principal{}, MalformedPayload(err, body)
		}
	}

	presented := false
	attempt := func(cred string, verify func(string) (uuid.UUID, error), method domain.AuthMethod) (domain.Principal, bool, error) {
		if cred == "" {
			return domain.Principal{}, false, nil
		}
		presented = true
		userID, err := verify(cred)
		if err != nil {
			if errors.Is(err, domain.ErrUpstream) {
				return domain.Principal{}, false, err
			}
			return domain.Principal{}, false, nil
		}
		return domain.Principal{UserID: userID, Method: method}, true, nil
	}

	type scheme struct {
		cred   func() string
		verify func(string) (uuid.UUID, error)
		method domain.AuthMethod
	}
	lookupKey := func(k string) (uuid.UUID, error) { return res.keys.ResolveUser(ctx, k) }
	verifySession := func(t string) (uuid.UUID, error) { return res.sessions.VerifySession(ctx, t) }

	schemes := []scheme{
		{func() string { return strings.TrimSpace(r.Header.Get(HeaderAPIKey)) }, lookupKey, domain.AuthMethodAPIKeyHeader},
		{func() string { return bodyKey(payload, opts.BodyKeyField) }, lookupKey, domain.AuthMethodAPIKeyBody},
		{func() string { return bearerToken(r) }, verifySession, domain.AuthMethodBearerToken},
		{func() string { return sessionCookie(r) }, verifySession, domain.AuthMethodSessionToken},
	}
	switch {
	case opts.CookieOnly:
		schemes = schemes[3:]
	case opts.SessionsOnly:
		schemes = schemes[2:]
	}

	for _, s := range schemes {
		p, ok, err := attempt(s.cred(), s.verify, s.method)
		if err != nil {
			return domain.Principal{}, err
		}
		if ok {
			return p, nil
		}
	}

	if presented {
		return domain.Principal{}, &Rejection{Reason: domain.ErrInvalidCredential}
	}
	return domain.Principal{}, &Rejection{Reason: domain.ErrMissingCredential}
}

// MalformedPayload builds the rejection for an unparseable body, echoing at most
// MaxEchoedInputSize characters of it.
func MalformedPayload(err error, body []byte) *Rejection {
	return &Rejection{
		Reason:   domain.ErrMalformedPayload,
		Detail:   err.Error(),
		Received: utils.TruncateRunes(string(body), MaxEchoedInputSize),
	}
}

func bodyKey(payload map[string]json.RawMessage, field string) string {
	if field == "" || payload == nil {
		return ""
	}
	raw, ok := payload[field]
	if !ok {
		return ""
	}
	var key string
	if err := json.Unmarshal(raw, &key); err != nil {
		return ""
	}
	return strings.TrimSpace(key)
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func sessionCookie(r *http.Request) string {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
