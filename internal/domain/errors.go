package domain

import "errors"

// Auth errors
var (
	ErrEmailTaken         = errors.New("email already registered")
	ErrWeakPassword       = errors.New("password must be at least 6 characters")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrSessionRevoked     = errors.New("session has been revoked")
	ErrUserNotFound       = errors.New("user not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrInvalidInput       = errors.New("name, email and password are required")
)

// Admission errors
var (
	ErrRateLimited = errors.New("too many requests")
)

// Video errors
var (
	ErrVideoNotFound   = errors.New("video not found")
	ErrInvalidProgress = errors.New("progress values must be non-negative")

	// ErrSourceResolutionFailed never leaves the streaming gateway; it is
	// replaced by the fallback source.
	ErrSourceResolutionFailed = errors.New("source resolution failed")
	ErrUpstreamUnavailable    = errors.New("media upstream unavailable")
)
