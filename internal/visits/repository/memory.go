package repository

import (
	"context"
	"errors"
	"sync"

	slotserrors "clinicbook/internal/slots/errors"
	slotsrepo "clinicbook/internal/slots/repository"
	visitserrors "clinicbook/internal/visits/errors"
	"clinicbook/pkg/model"

	"github.com/google/uuid"
)

type memoryVisitRepository struct {
	mu     sync.Mutex
	slots  slotsrepo.SlotRepository
	visits map[string]model.Visit
}

// NewMemoryVisitRepository books against slots held in the given slot
// store. Bookings are serialised by a single lock; concurrent occupancy
// writes through the slot store are not.
func NewMemoryVisitRepository(slots slotsrepo.SlotRepository) VisitRepository {
	return &memoryVisitRepository{
		slots:  slots,
		visits: make(map[string]model.Visit),
	}
}

func (r *memoryVisitRepository) Book(ctx context.Context, visit *model.Visit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	slot, err := r.slots.FindByID(ctx, visit.DateSlotID)
	if err != nil {
		if errors.Is(err, slotserrors.ErrNotFound) {
			return visitserrors.ErrSlotNotFound
		}
		return err
	}
	if err := checkBookable(slot, visit.UserCreatingID); err != nil {
		return err
	}

	id := uuid.NewString()
	slot.VisitID = &id
	slot.IsFree = false
	if err := r.slots.Update(ctx, slot.ID, slot); err != nil {
		return err
	}

	visit.ID = id
	visit.TherapistID = slot.TherapistID
	r.visits[id] = *visit
	return nil
}

func (r *memoryVisitRepository) FindByID(_ context.Context, id string) (*model.Visit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.visits[id]
	if !ok {
		return nil, visitserrors.ErrNotFound
	}
	return &v, nil
}
