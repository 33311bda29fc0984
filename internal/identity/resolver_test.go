package identity

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradejournal/internal/domain"
)

type fakeKeys struct {
	owners map[string]uuid.UUID
	err    error
	calls  int
}

func (f *fakeKeys) ResolveUser(ctx context.Context, key string) (uuid.UUID, error) {
	f.calls++
	if f.err != nil {
		return uuid.Nil, f.err
	}
	id, ok := f.owners[key]
	if !ok {
		return uuid.Nil, domain.ErrNotFound
	}
	return id, nil
}

type fakeSessions struct {
	tokens map[string]uuid.UUID
	err    error
}

func (f *fakeSessions) VerifySession(ctx context.Context, token string) (uuid.UUID, error) {
	if f.err != nil {
		return uuid.Nil, f.err
	}
	id, ok := f.tokens[token]
	if !ok {
		return uuid.Nil, domain.ErrInvalidCredential
	}
	return id, nil
}

type fixture struct {
	resolver  *Resolver
	keys      *fakeKeys
	sessions  *fakeSessions
	headerID  uuid.UUID
	bodyID    uuid.UUID
	bearerID  uuid.UUID
	sessionID uuid.UUID
}

func newFixture() *fixture {
	f := &fixture{
		headerID:  uuid.New(),
		bodyID:    uuid.New(),
		bearerID:  uuid.New(),
		sessionID: uuid.New(),
	}
	f.keys = &fakeKeys{owners: map[string]uuid.UUID{"header-key": f.headerID, "body-key": f.bodyID}}
	f.sessions = &fakeSessions{tokens: map[string]uuid.UUID{"bearer-jwt": f.bearerID, "cookie-jwt": f.sessionID}}
	f.resolver = NewResolver(f.keys, f.sessions)
	return f
}

func request(body string, mutate func(r *http.Request)) (*http.Request, []byte) {
	r := httptest.NewRequest(http.MethodPost, "/api/trades", strings.NewReader(body))
	if mutate != nil {
		mutate(r)
	}
	return r, []byte(body)
}

func withAll(r *http.Request) {
	r.Header.Set(HeaderAPIKey, "header-key")
	r.Header.Set("Authorization", "Bearer bearer-jwt")
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-jwt"})
}

func TestResolvePrecedence(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	opts := Options{BodyKeyField: BodyFieldAPIKey}

	r, body := request(`{"apiKey":"body-key"}`, withAll)
	p, err := f.resolver.Resolve(ctx, r, body, opts)
	require.NoError(t, err)
	assert.Equal(t, f.headerID, p.UserID)
	assert.Equal(t, domain.AuthMethodAPIKeyHeader, p.Method)

	r, body = request(`{"apiKey":"body-key"}`, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer bearer-jwt")
		r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-jwt"})
	})
	p, err = f.resolver.Resolve(ctx, r, body, opts)
	require.NoError(t, err)
	assert.Equal(t, f.bodyID, p.UserID)
	assert.Equal(t, domain.AuthMethodAPIKeyBody, p.Method)

	r, body = request(`{}`, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer bearer-jwt")
		r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-jwt"})
	})
	p, err = f.resolver.Resolve(ctx, r, body, opts)
	require.NoError(t, err)
	assert.Equal(t, f.bearerID, p.UserID)
	assert.Equal(t, domain.AuthMethodBearerToken, p.Method)

	r, body = request(``, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-jwt"})
	})
	p, err = f.resolver.Resolve(ctx, r, body, opts)
	require.NoError(t, err)
	assert.Equal(t, f.sessionID, p.UserID)
	assert.Equal(t, domain.AuthMethodSessionToken, p.Method)
}

func TestResolveFallsThroughInvalidCredentials(t *testing.T) {
	f := newFixture()
	r, body := request(`{"apiKey":"wrong"}`, func(r *http.Request) {
		r.Header.Set(HeaderAPIKey, "also-wrong")
		r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-jwt"})
	})

	p, err := f.resolver.Resolve(context.Background(), r, body, Options{BodyKeyField: BodyFieldAPIKey})
	require.NoError(t, err)
	assert.Equal(t, f.sessionID, p.UserID)
}

func TestResolveOnlyNamedBodyField(t *testing.T) {
	f := newFixture()
	r, body := request(`{"personalApiKey":"body-key"}`, nil)

	_, err := f.resolver.Resolve(context.Background(), r, body, Options{BodyKeyField: BodyFieldAPIKey})
	assert.ErrorIs(t, err, domain.ErrMissingCredential)

	p, err := f.resolver.Resolve(context.Background(), r, body, Options{BodyKeyField: BodyFieldPersonal})
	require.NoError(t, err)
	assert.Equal(t, f.bodyID, p.UserID)
}

func TestResolveMissingVersusInvalid(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	r, body := request(`{"pair":"BTCUSDT"}`, nil)
	_, err := f.resolver.Resolve(ctx, r, body, Options{BodyKeyField: BodyFieldAPIKey})
	assert.ErrorIs(t, err, domain.ErrMissingCredential)

	// an unknown key and a malformed-looking key are indistinguishable
	for _, key := range []string{"unknown-key", "x"} {
		r, body = request(fmt.Sprintf(`{"apiKey":%q}`, key), nil)
		_, err = f.resolver.Resolve(ctx, r, body, Options{BodyKeyField: BodyFieldAPIKey})
		assert.ErrorIs(t, err, domain.ErrInvalidCredential)
	}

	r, body = request(``, func(r *http.Request) { r.Header.Set("Authorization", "Bearer forged") })
	_, err = f.resolver.Resolve(ctx, r, body, Options{})
	assert.ErrorIs(t, err, domain.ErrInvalidCredential)
}

func TestResolveMalformedPayloadBeforeCredentials(t *testing.T) {
	f := newFixture()
	garbage := "{not json" + strings.Repeat("a", 1200)
	r, body := request(garbage, withAll)

	_, err := f.resolver.Resolve(context.Background(), r, body, Options{BodyKeyField: BodyFieldAPIKey})
	require.ErrorIs(t, err, domain.ErrMalformedPayload)

	var rej *Rejection
	require.True(t, errors.As(err, &rej))
	assert.Len(t, []rune(rej.Received), MaxEchoedInputSize)
	assert.Zero(t, f.keys.calls)
}

func TestResolveUpstreamFailureIsNotInvalid(t *testing.T) {
	f := newFixture()
	f.keys.err = fmt.Errorf("%w: connection refused", domain.ErrUpstream)
	r, body := request(``, func(r *http.Request) {
		r.Header.Set(HeaderAPIKey, "header-key")
		r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-jwt"})
	})

	_, err := f.resolver.Resolve(context.Background(), r, body, Options{})
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.NotErrorIs(t, err, domain.ErrInvalidCredential)
}

func TestResolveCookieOnly(t *testing.T) {
	f := newFixture()
	r, body := request(`{"apiKey":"body-key"}`, func(r *http.Request) {
		r.Header.Set(HeaderAPIKey, "header-key")
		r.Header.Set("Authorization", "Bearer bearer-jwt")
	})

	_, err := f.resolver.Resolve(context.Background(), r, body, Options{CookieOnly: true, BodyKeyField: BodyFieldAPIKey})
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
	assert.Zero(t, f.keys.calls)

	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "cookie-jwt"})
	p, err := f.resolver.Resolve(context.Background(), r, body, Options{CookieOnly: true})
	require.NoError(t, err)
	assert.Equal(t, f.sessionID, p.UserID)
}

func TestResolveSessionsOnlyIgnoresKeys(t *testing.T) {
	f := newFixture()
	r, body := request(`{"apiKey":"body-key"}`, func(r *http.Request) {
		r.Header.Set(HeaderAPIKey, "header-key")
	})

	_, err := f.resolver.Resolve(context.Background(), r, body, Options{SessionsOnly: true, BodyKeyField: BodyFieldAPIKey})
	assert.ErrorIs(t, err, domain.ErrMissingCredential)
	assert.Zero(t, f.keys.calls)

	r.Header.Set("Authorization", "Bearer bearer-jwt")
	p, err := f.resolver.Resolve(context.Background(), r, body, Options{SessionsOnly: true})
	require.NoError(t, err)
	assert.Equal(t, f.bearerID, p.UserID)
}
