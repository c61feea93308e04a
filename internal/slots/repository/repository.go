package repository

import (
	"context"
	"reflect"
	"sync"

	"clinicbook/pkg/model"
)

const CollectionName = "dateSlots"

// SlotRepository is the durable, observable store of appointment slots.
type SlotRepository interface {
	Create(ctx context.Context, slot *model.Slot) error
	FindByID(ctx context.Context, id string) (*model.Slot, error)
	Update(ctx context.Context, id string, slot *model.Slot) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter model.SlotFilter, pageSize int, cursor *model.SlotCursor) (*model.SlotPage, error)
	Count(ctx context.Context, filter model.SlotFilter) (int64, error)
	// Watch emits the page selected by filter and cursor, then a fresh
	// snapshot every time the contents of that page change.
	Watch(ctx context.Context, filter model.SlotFilter, pageSize int, cursor *model.SlotCursor) (Subscription, error)
	// UpdateOccupancy writes the occupying user unconditionally. A nil
	// userID releases the slot.
	UpdateOccupancy(ctx context.Context, id string, userID *string) error
}

// Subscription is the handle returned by Watch. Close stops the listener
// and closes the Pages channel; it is safe to call more than once.
type Subscription interface {
	Pages() <-chan model.SlotPage
	Close()
}

type subscription struct {
	pages  chan model.SlotPage
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func newSubscription(parent context.Context) (*subscription, context.Context) {
	ctx, cancel := context.WithCancel(parent)
	return &subscription{
		pages:  make(chan model.SlotPage, 1),
		cancel: cancel,
		done:   make(chan struct{}),
	}, ctx
}

func (s *subscription) Pages() <-chan model.SlotPage {
	return s.pages
}

func (s *subscription) Close() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// finish must be deferred by the producer goroutine.
func (s *subscription) finish() {
	close(s.pages)
	close(s.done)
}

// emit delivers page, replacing an undelivered older page if the consumer
// is behind. Returns false once the subscription is cancelled.
func (s *subscription) emit(ctx context.Context, page model.SlotPage) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case s.pages <- page:
			return true
		default:
			select {
			case <-s.pages:
			default:
			}
		}
	}
}

// pageTracker suppresses re-emission of identical snapshots.
type pageTracker struct {
	last *model.SlotPage
}

func (t *pageTracker) changed(page *model.SlotPage) bool {
	if t.last != nil && samePage(t.last, page) {
		return false
	}
	t.last = page
	return true
}

func samePage(a, b *model.SlotPage) bool {
	return reflect.DeepEqual(a.Slots, b.Slots) && reflect.DeepEqual(a.Next, b.Next)
}

// paginate trims a result fetched with limit pageSize+1 and sets Next.
func paginate(slots []*model.Slot, pageSize int) *model.SlotPage {
	page := &model.SlotPage{Slots: slots}
	if len(slots) > pageSize {
		page.Slots = slots[:pageSize]
		page.Next = model.CursorAt(page.Slots[pageSize-1])
	}
	if page.Slots == nil {
		page.Slots = []*model.Slot{}
	}
	return page
}

func normalizePageSize(pageSize int) int {
	if pageSize <= 0 {
		return model.DefaultSlotPageSize
	}
	return pageSize
}
