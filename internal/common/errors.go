// Package common defines shared constants and sentinel errors used across
// the cardsync core. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Store-level errors.
	ErrNotFound = errors.New("not found")
	ErrStorage  = errors.New("storage failure")

	// Remote-boundary errors. ErrNetwork is transient and retryable,
	// the others are terminal and must surface to the caller.
	ErrNetwork    = errors.New("network unavailable")
	ErrAuth       = errors.New("unauthorized")
	ErrValidation = errors.New("validation rejected")
	ErrConflict   = errors.New("sync conflict")

	// Token lifecycle errors.
	ErrTokenExpired = errors.New("token expired")

	// Pagination errors.
	ErrInvalidCursor = errors.New("invalid cursor")
)
