package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	slotserrors "clinicbook/internal/slots/errors"
	"clinicbook/internal/slots/events"
	"clinicbook/internal/slots/repository"
	"clinicbook/pkg/logger"
	"clinicbook/pkg/model"
)

// Reserver implements soft claims on slots. Writes are unconditional: two
// users racing for the same slot both succeed and the later write wins.
// Callers hide taken slots from selection to keep that window narrow.
type Reserver struct {
	repo      repository.SlotRepository
	publisher events.Publisher
	log       *logger.Logger
	now       func() time.Time
}

func NewReserver(repo repository.SlotRepository, publisher events.Publisher, log *logger.Logger) *Reserver {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Reserver{
		repo:      repo,
		publisher: publisher,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Claim writes userID into slotID. When previousSlotID names a different
// slot it is released first, on the calling goroutine, so the release always
// reaches the store ahead of the claim. A failed release is logged and never
// blocks the claim; a failed claim returns ErrOccupancyUpdateFailed.
func (r *Reserver) Claim(ctx context.Context, userID, slotID, previousSlotID string) error {
	if userID == "" || slotID == "" {
		return fmt.Errorf("%w: user and slot are required", slotserrors.ErrInvalidID)
	}

	if previousSlotID != "" && previousSlotID != slotID {
		if err := r.Release(context.WithoutCancel(ctx), userID, previousSlotID); err != nil {
			r.log.Warn("Failed to release previous slot, claiming anyway",
				"user_id", userID,
				"slot_id", previousSlotID,
				"error", err,
			)
		}
	}

	user := userID
	if claimErr := r.repo.UpdateOccupancy(ctx, slotID, &user); claimErr != nil {
		r.log.Error("Failed to claim slot",
			"user_id", userID,
			"slot_id", slotID,
			"error", claimErr,
		)
		return errors.Join(slotserrors.ErrOccupancyUpdateFailed, claimErr)
	}

	r.publish(ctx, model.SlotClaimed, slotID, userID)
	r.log.Info("Slot claimed",
		"user_id", userID,
		"slot_id", slotID,
		"previous_slot_id", previousSlotID,
	)
	return nil
}

// Release clears the occupant of slotID. It does not check ownership.
func (r *Reserver) Release(ctx context.Context, userID, slotID string) error {
	if slotID == "" {
		return fmt.Errorf("%w: slot is required", slotserrors.ErrInvalidID)
	}

	if err := r.repo.UpdateOccupancy(ctx, slotID, nil); err != nil {
		r.log.Error("Failed to release slot",
			"user_id", userID,
			"slot_id", slotID,
			"error", err,
		)
		return errors.Join(slotserrors.ErrOccupancyUpdateFailed, err)
	}

	r.publish(ctx, model.SlotReleased, slotID, userID)
	r.log.Info("Slot released", "user_id", userID, "slot_id", slotID)
	return nil
}

func (r *Reserver) publish(ctx context.Context, typ model.OccupancyEventType, slotID, userID string) {
	evt := model.OccupancyEvent{
		Type:       typ,
		SlotID:     slotID,
		UserID:     userID,
		OccurredAt: r.now(),
	}
	if err := r.publisher.Publish(ctx, evt); err != nil {
		r.log.Warn("Failed to publish occupancy event",
			"type", typ,
			"slot_id", slotID,
			"error", err,
		)
	}
}
