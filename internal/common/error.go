// Package common defines shared constants, sentinel errors and small helpers
// used by both the vault server and the CLI. Callers should use errors.Is to
// match the error values.
package common

import "errors"

var (
	// ErrorValidation marks malformed or incomplete input (400-class).
	ErrorValidation = errors.New("validation error")

	// ErrorUnauthorized covers bad credentials, unknown users and expired
	// sessions alike. The message is intentionally the same for all of them.
	ErrorUnauthorized = errors.New("invalid credentials")

	// ErrorNotFound is returned for missing or not-owned records.
	ErrorNotFound = errors.New("not found")

	// ErrorConflict marks duplicate usernames, vault names and items.
	ErrorConflict = errors.New("already exists")

	// ErrorUpstream is returned when a third-party provider is unreachable.
	ErrorUpstream = errors.New("upstream failure")

	// ErrorDecryption is returned on tag mismatch or malformed framing.
	ErrorDecryption = errors.New("decryption failed")

	ErrorInternal = errors.New("internal error")

	// Token lifecycle errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
