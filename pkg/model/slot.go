package model

import "time"

const DefaultSlotPageSize = 5

type Availability string

const (
	AvailabilityFree  Availability = "free"
	AvailabilityMine  Availability = "mine"
	AvailabilityTaken Availability = "taken"
)

// Slot is a bookable appointment unit. IsFree is informational only;
// OccupyingUserID is what the reservation protocol reads and writes.
type Slot struct {
	ID                string    `json:"id,omitempty" bson:"_id,omitempty" firestore:"-" validate:"omitempty"`
	Datetime          time.Time `json:"datetime" bson:"datetime" firestore:"datetime" validate:"required"`
	TherapistID       string    `json:"therapist_id" bson:"therapist_id" firestore:"therapistId" validate:"required"`
	TherapistName     string    `json:"therapist_name" bson:"therapist_name" firestore:"therapistNameSurname" validate:"required,min=2,max=120"`
	AllowedProductIDs []string  `json:"allowed_product_ids" bson:"allowed_product_ids" firestore:"allowedProductsIds" validate:"required,min=1,unique,dive,required"`
	IsFree            bool      `json:"is_free" bson:"is_free" firestore:"isFree"`
	OccupyingUserID   *string   `json:"occupying_user_id" bson:"occupying_user_id" firestore:"currentlyOccupyingUser"`
	VisitID           *string   `json:"visit_id" bson:"visit_id" firestore:"visitId"`
}

func (s *Slot) IsOccupied() bool {
	return s.OccupyingUserID != nil && *s.OccupyingUserID != ""
}

func (s *Slot) IsOccupiedBy(userID string) bool {
	return s.IsOccupied() && *s.OccupyingUserID == userID
}

func (s *Slot) IsBooked() bool {
	return s.VisitID != nil && *s.VisitID != ""
}

// Availability reports the slot state as seen by userID.
func (s *Slot) Availability(userID string) Availability {
	switch {
	case !s.IsOccupied():
		return AvailabilityFree
	case *s.OccupyingUserID == userID:
		return AvailabilityMine
	default:
		return AvailabilityTaken
	}
}

// Selectable is false once another user's claim has been observed.
func (s *Slot) Selectable(userID string) bool {
	return s.Availability(userID) != AvailabilityTaken
}

func (s *Slot) AllowsProduct(productID string) bool {
	for _, id := range s.AllowedProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

type SlotFilter struct {
	TherapistID string `json:"therapist_id,omitempty"`
	ProductID   string `json:"product_id,omitempty"`
	FreeOnly    bool   `json:"free_only,omitempty"`
}

// Matches applies the filter predicates to a single slot.
func (f SlotFilter) Matches(s *Slot) bool {
	if f.TherapistID != "" && s.TherapistID != f.TherapistID {
		return false
	}
	if f.ProductID != "" && !s.AllowsProduct(f.ProductID) {
		return false
	}
	if f.FreeOnly && !s.IsFree {
		return false
	}
	return true
}

// SlotCursor marks the last slot of a page. Slots sort by (Datetime, ID).
type SlotCursor struct {
	After   time.Time `json:"after"`
	AfterID string    `json:"after_id"`
}

func (c *SlotCursor) Precedes(s *Slot) bool {
	if c == nil {
		return true
	}
	if s.Datetime.Equal(c.After) {
		return s.ID > c.AfterID
	}
	return s.Datetime.After(c.After)
}

func CursorAt(s *Slot) *SlotCursor {
	return &SlotCursor{After: s.Datetime, AfterID: s.ID}
}

// SlotPage is one observation of a paged slot query. Next is nil when the
// page is the last one. Err is set when the observation itself failed.
type SlotPage struct {
	Slots []*Slot     `json:"slots"`
	Next  *SlotCursor `json:"-"`
	Err   error       `json:"-"`
}

type SlotView struct {
	*Slot
	Availability Availability `json:"availability"`
}

func ViewSlots(slots []*Slot, userID string) []SlotView {
	views := make([]SlotView, 0, len(slots))
	for _, s := range slots {
		views = append(views, SlotView{Slot: s, Availability: s.Availability(userID)})
	}
	return views
}

type OccupancyEventType string

const (
	SlotClaimed  OccupancyEventType = "slot.claimed"
	SlotReleased OccupancyEventType = "slot.released"
)

type OccupancyEvent struct {
	Type       OccupancyEventType `json:"type"`
	SlotID     string             `json:"slot_id"`
	UserID     string             `json:"user_id"`
	OccurredAt time.Time          `json:"occurred_at"`
}
