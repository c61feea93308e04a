package errors

import "errors"

var (
	ErrSlotNotFound = errors.New("slot not found")

	// ErrSlotNotHeld means the slot is no longer occupied by the submitting
	// user, typically because another user claimed it afterwards.
	ErrSlotNotHeld = errors.New("slot is not held by the submitting user")

	ErrSlotBooked = errors.New("slot already has a visit")

	ErrNotFound = errors.New("visit not found")

	ErrStoreUnavailable = errors.New("visit store unavailable")
)
