package repository

import (
	"context"
	"sort"
	"sync"

	slotserrors "clinicbook/internal/slots/errors"
	"clinicbook/pkg/model"

	"github.com/google/uuid"
)

type memorySlotRepository struct {
	mu        sync.RWMutex
	slots     map[string]*model.Slot
	listeners map[chan struct{}]struct{}
}

// NewMemorySlotRepository returns a process-local store. Every write wakes
// the active watchers, which re-run their query.
func NewMemorySlotRepository() SlotRepository {
	return &memorySlotRepository{
		slots:     make(map[string]*model.Slot),
		listeners: make(map[chan struct{}]struct{}),
	}
}

func (r *memorySlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	r.mu.Lock()
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	r.slots[slot.ID] = cloneSlot(slot)
	r.mu.Unlock()

	r.notify()
	return nil
}

func (r *memorySlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	slot, ok := r.slots[id]
	if !ok {
		return nil, slotserrors.ErrNotFound
	}
	return cloneSlot(slot), nil
}

func (r *memorySlotRepository) Update(ctx context.Context, id string, slot *model.Slot) error {
	r.mu.Lock()
	if _, ok := r.slots[id]; !ok {
		r.mu.Unlock()
		return slotserrors.ErrNotFound
	}
	updated := cloneSlot(slot)
	updated.ID = id
	r.slots[id] = updated
	r.mu.Unlock()

	r.notify()
	return nil
}

func (r *memorySlotRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	if _, ok := r.slots[id]; !ok {
		r.mu.Unlock()
		return slotserrors.ErrNotFound
	}
	delete(r.slots, id)
	r.mu.Unlock()

	r.notify()
	return nil
}

func (r *memorySlotRepository) List(ctx context.Context, filter model.SlotFilter, pageSize int, cursor *model.SlotCursor) (*model.SlotPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pageSize = normalizePageSize(pageSize)

	r.mu.RLock()
	matched := r.matching(filter)
	r.mu.RUnlock()

	result := make([]*model.Slot, 0, pageSize+1)
	for _, s := range matched {
		if !cursor.Precedes(s) {
			continue
		}
		result = append(result, s)
		if len(result) > pageSize {
			break
		}
	}
	return paginate(result, pageSize), nil
}

func (r *memorySlotRepository) Count(ctx context.Context, filter model.SlotFilter) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.matching(filter))), nil
}

func (r *memorySlotRepository) UpdateOccupancy(ctx context.Context, id string, userID *string) error {
	r.mu.Lock()
	slot, ok := r.slots[id]
	if !ok {
		r.mu.Unlock()
		return slotserrors.ErrNotFound
	}
	slot.OccupyingUserID = copyString(userID)
	r.mu.Unlock()

	r.notify()
	return nil
}

func (r *memorySlotRepository) Watch(ctx context.Context, filter model.SlotFilter, pageSize int, cursor *model.SlotCursor) (Subscription, error) {
	wake := make(chan struct{}, 1)
	r.mu.Lock()
	r.listeners[wake] = struct{}{}
	r.mu.Unlock()

	sub, subCtx := newSubscription(ctx)
	go func() {
		defer sub.finish()
		defer func() {
			r.mu.Lock()
			delete(r.listeners, wake)
			r.mu.Unlock()
		}()

		var tracker pageTracker
		for {
			page, err := r.List(subCtx, filter, pageSize, cursor)
			if err != nil {
				return
			}
			if tracker.changed(page) && !sub.emit(subCtx, *page) {
				return
			}

			select {
			case <-subCtx.Done():
				return
			case <-wake:
			}
		}
	}()

	return sub, nil
}

func (r *memorySlotRepository) notify() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for wake := range r.listeners {
		select {
		case wake <- struct{}{}:
		default:
		}
	}
}

// matching returns copies of the slots accepted by filter in (datetime, id)
// order. Caller holds the lock.
func (r *memorySlotRepository) matching(filter model.SlotFilter) []*model.Slot {
	out := make([]*model.Slot, 0, len(r.slots))
	for _, s := range r.slots {
		if filter.Matches(s) {
			out = append(out, cloneSlot(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Datetime.Equal(out[j].Datetime) {
			return out[i].ID < out[j].ID
		}
		return out[i].Datetime.Before(out[j].Datetime)
	})
	return out
}

func cloneSlot(s *model.Slot) *model.Slot {
	c := *s
	c.AllowedProductIDs = append([]string(nil), s.AllowedProductIDs...)
	c.OccupyingUserID = copyString(s.OccupyingUserID)
	c.VisitID = copyString(s.VisitID)
	return &c
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
