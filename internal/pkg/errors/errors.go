package errors

import "errors"

var (
	// ErrNotFound is a generic sentinel for missing resources.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks caller input that failed validation.
	ErrValidation = errors.New("validation failed")
	// ErrUnauthorized is a generic sentinel for auth failures.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden marks an authenticated caller without the required role or tier.
	ErrForbidden = errors.New("forbidden")
	// ErrUpstreamRateLimited marks an upstream API refusing work for quota reasons.
	ErrUpstreamRateLimited = errors.New("upstream rate limited")
	// ErrUpstreamUnavailable marks an upstream API that failed after retries.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrUpstreamUnauthorized marks credentials rejected by an upstream API.
	ErrUpstreamUnauthorized = errors.New("upstream unauthorized")
	// ErrPersistence wraps database failures. The cause never leaves the process.
	ErrPersistence = errors.New("persistence failure")
	// ErrConflict marks a write that lost against an existing row or state.
	ErrConflict = errors.New("conflict")
)
