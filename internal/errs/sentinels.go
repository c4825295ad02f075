// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across store/service/transport layers.
var (
	// ErrNotFound indicates a query matched no row. It is a legitimate empty result, not a store failure.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized indicates failed authentication (bad credentials, bad token, bad MFA code).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMFARequired indicates the session is authenticated but still waits for a second factor.
	ErrMFARequired = errors.New("mfa required")

	// ErrRateLimited indicates temporary login lock due to rate limiting.
	ErrRateLimited = errors.New("rate limited")

	// ErrAlreadyExists indicates a unique constraint violation (e.g., username taken).
	ErrAlreadyExists = errors.New("already exists")

	// ErrArity indicates that a column list and a value list differ in length.
	ErrArity = errors.New("column/value count mismatch")

	// ErrConflict indicates a conditional write matched no row because the guarded value changed.
	ErrConflict = errors.New("conflict")
)
