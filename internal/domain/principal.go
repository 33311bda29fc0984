package domain

import "github.com/google/uuid"

// AuthMethod tags how a principal was authenticated
type AuthMethod string

// AuthMethod constants
const (
	AuthMethodNone         AuthMethod = "none"
	AuthMethodSessionToken AuthMethod = "session_token"
	AuthMethodBearerToken  AuthMethod = "bearer_token"
	AuthMethodAPIKeyBody   AuthMethod = "api_key_body"
	AuthMethodAPIKeyHeader AuthMethod = "api_key_header"
)

// Principal is the resolved identity of a request. It lives for one request only.
type Principal struct {
	UserID uuid.UUID
	Method AuthMethod
}
