// Package common defines shared sentinel errors used across the adapter,
// cache, and HTTP layers. Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Not-found: a referenced project or comment does not exist. Read-single
	// operations return nil instead; write operations wrap this error.
	ErrNotFound = errors.New("not found")

	// Validation / collision errors. These are raised before any partial
	// write occurs.
	ErrSlugTaken          = errors.New("slug already in use")
	ErrMediaLimitExceeded = errors.New("media attachment limit exceeded")
	ErrInvalidCommentBody = errors.New("invalid comment body")
	ErrInvalidInput       = errors.New("invalid input")

	// Cache-internal: a settled fetch lost the race against a newer write
	// and its result was discarded.
	ErrStaleWrite = errors.New("stale cache write")

	// Auth errors (invalid or malformed viewer token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
