package errors

import "errors"

var (
	ErrSessionNotFound = errors.New("booking session not found")

	ErrNotFound = errors.New("reference record not found")

	ErrStoreUnavailable = errors.New("booking store unavailable")
)
