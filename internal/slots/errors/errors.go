package errors

import "errors"

var (
	ErrNotFound = errors.New("slot not found")

	ErrInvalidID = errors.New("invalid slot ID format")

	// ErrStoreUnavailable marks connectivity loss or timeouts talking to the
	// slot store. Callers may retry.
	ErrStoreUnavailable = errors.New("slot store unavailable")

	ErrOccupancyUpdateFailed = errors.New("occupancy update failed")

	ErrSubscriptionClosed = errors.New("slot subscription closed")
)
