package repository

import (
	"context"

	visitserrors "clinicbook/internal/visits/errors"
	"clinicbook/pkg/model"
)

const CollectionName = "visits"

// VisitRepository persists confirmed visits.
type VisitRepository interface {
	// Book atomically checks that the visit's slot is still held by the
	// visit's creator and unbooked, inserts the visit and marks the slot
	// as booked. The visit's ID and TherapistID are filled from the store.
	Book(ctx context.Context, visit *model.Visit) error
	FindByID(ctx context.Context, id string) (*model.Visit, error)
}

// checkBookable runs the guards shared by every backend.
func checkBookable(slot *model.Slot, userID string) error {
	if slot.IsBooked() {
		return visitserrors.ErrSlotBooked
	}
	if !slot.IsOccupiedBy(userID) {
		return visitserrors.ErrSlotNotHeld
	}
	return nil
}
