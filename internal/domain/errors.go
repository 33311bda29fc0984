package domain

import "errors"

// Error taxonomy shared by every layer. Delivery maps these with errors.Is.
var (
	ErrMalformedPayload  = errors.New("malformed payload")
	ErrMissingCredential = errors.New("missing credential")
	ErrInvalidCredential = errors.New("invalid credential")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrUpstream          = errors.New("upstream failure")
	ErrConflict          = errors.New("conflict")
	ErrPayloadTooLarge   = errors.New("payload too large")
)
