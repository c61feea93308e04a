package service

import (
	"context"
	"errors"
	"sync"

	slotserrors "clinicbook/internal/slots/errors"
	"clinicbook/internal/slots/repository"
	"clinicbook/internal/slots/reservation"
	"clinicbook/internal/slots/validator"
	"clinicbook/pkg/config"
	apperrors "clinicbook/pkg/errors"
	"clinicbook/pkg/model"
	"clinicbook/pkg/sanitizer"
	"clinicbook/pkg/validation"
)

type SlotList struct {
	Slots []model.SlotView
	Next  *model.SlotCursor
	Total int64
	Limit int
}

type SlotService interface {
	Create(ctx context.Context, slot *model.Slot) error
	GetByID(ctx context.Context, userID, id string) (*model.SlotView, error)
	Update(ctx context.Context, id string, slot *model.Slot) error
	Delete(ctx context.Context, id string) error

	List(ctx context.Context, userID string, filter model.SlotFilter, limit int, cursor *model.SlotCursor) (*SlotList, error)
	Count(ctx context.Context, filter model.SlotFilter) (int64, error)
	Watch(ctx context.Context, filter model.SlotFilter, limit int, cursor *model.SlotCursor) (repository.Subscription, error)

	Claim(ctx context.Context, userID, slotID, previousSlotID string) error
	// ReleaseHeld releases slotID if userID holds it. Releasing a free slot
	// is a no-op; a slot held by someone else is Forbidden.
	ReleaseHeld(ctx context.Context, userID, slotID string) error
	// ReleaseIfHeld releases slotID only while userID still holds it and no
	// visit has been booked on it. Reports whether a release happened.
	ReleaseIfHeld(ctx context.Context, userID, slotID string) (bool, error)
}

type slotService struct {
	repo      repository.SlotRepository
	reserver  *reservation.Reserver
	validator *validator.SlotValidator
	cfg       *config.Config
}

func NewSlotService(
	repo repository.SlotRepository,
	reserver *reservation.Reserver,
	validator *validator.SlotValidator,
	cfg *config.Config,
) SlotService {
	return &slotService{
		repo:      repo,
		reserver:  reserver,
		validator: validator,
		cfg:       cfg,
	}
}

func (s *slotService) Create(ctx context.Context, slot *model.Slot) error {
	s.sanitize(slot)

	if err := s.validator.Validate(slot); err != nil {
		s.cfg.Log.Warn("Slot validation failed",
			"therapist_id", slot.TherapistID,
			"datetime", slot.Datetime,
			"error", err,
		)
		return validationError(err)
	}

	if err := s.repo.Create(ctx, slot); err != nil {
		s.cfg.Log.Error("Failed to create slot",
			"therapist_id", slot.TherapistID,
			"datetime", slot.Datetime,
			"error", err,
		)
		return mapRepoError("create slot", slot.ID, err)
	}

	s.cfg.Log.Info("Slot created successfully",
		"id", slot.ID,
		"therapist_id", slot.TherapistID,
		"datetime", slot.Datetime,
	)
	return nil
}

func (s *slotService) GetByID(ctx context.Context, userID, id string) (*model.SlotView, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Slot ID cannot be empty")
	}

	slot, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoError("retrieve slot", id, err)
	}

	return &model.SlotView{Slot: slot, Availability: slot.Availability(userID)}, nil
}

func (s *slotService) Update(ctx context.Context, id string, slot *model.Slot) error {
	if id == "" {
		return apperrors.InvalidInput("Slot ID cannot be empty")
	}

	s.sanitize(slot)
	if err := s.validator.Validate(slot); err != nil {
		return validationError(err)
	}

	if err := s.repo.Update(ctx, id, slot); err != nil {
		return mapRepoError("update slot", id, err)
	}

	s.cfg.Log.Info("Slot updated successfully", "id", id)
	return nil
}

func (s *slotService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("Slot ID cannot be empty")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return mapRepoError("delete slot", id, err)
	}

	s.cfg.Log.Info("Slot deleted successfully", "id", id)
	return nil
}

func (s *slotService) List(ctx context.Context, userID string, filter model.SlotFilter, limit int, cursor *model.SlotCursor) (*SlotList, error) {
	limit = s.cfg.NormalizeSlotPageSize(limit)
	filter = s.sanitizeFilter(filter)

	var count int64
	var page *model.SlotPage
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		count, err = s.repo.Count(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count slots", "filter", filter, "error", err)
			errCount = mapRepoError("count slots", "", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		ctx, cancel := context.WithTimeout(ctx, s.cfg.ReadTimeout)
		defer cancel()
		page, err = s.repo.List(ctx, filter, limit, cursor)
		if err != nil {
			s.cfg.Log.Error("Failed to list slots",
				"filter", filter,
				"limit", limit,
				"error", err,
			)
			errFind = mapRepoError("retrieve slots", "", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, errCount
	}
	if errFind != nil {
		return nil, errFind
	}

	return &SlotList{
		Slots: model.ViewSlots(page.Slots, userID),
		Next:  page.Next,
		Total: count,
		Limit: limit,
	}, nil
}

func (s *slotService) Count(ctx context.Context, filter model.SlotFilter) (int64, error) {
	count, err := s.repo.Count(ctx, s.sanitizeFilter(filter))
	if err != nil {
		s.cfg.Log.Error("Failed to count slots", "filter", filter, "error", err)
		return 0, mapRepoError("count slots", "", err)
	}
	return count, nil
}

func (s *slotService) Watch(ctx context.Context, filter model.SlotFilter, limit int, cursor *model.SlotCursor) (repository.Subscription, error) {
	sub, err := s.repo.Watch(ctx, s.sanitizeFilter(filter), s.cfg.NormalizeSlotPageSize(limit), cursor)
	if err != nil {
		s.cfg.Log.Error("Failed to open slot subscription", "filter", filter, "error", err)
		return nil, mapRepoError("watch slots", "", err)
	}
	return sub, nil
}

func (s *slotService) Claim(ctx context.Context, userID, slotID, previousSlotID string) error {
	if err := s.reserver.Claim(ctx, userID, slotID, previousSlotID); err != nil {
		return mapRepoError("claim slot", slotID, err)
	}
	return nil
}

func (s *slotService) ReleaseHeld(ctx context.Context, userID, slotID string) error {
	slot, err := s.repo.FindByID(ctx, slotID)
	if err != nil {
		return mapRepoError("retrieve slot", slotID, err)
	}

	switch slot.Availability(userID) {
	case model.AvailabilityFree:
		return nil
	case model.AvailabilityTaken:
		return apperrors.Forbidden("Slot is held by another user")
	}

	if slot.IsBooked() {
		return apperrors.Conflict("Slot already has a confirmed visit")
	}

	if err := s.reserver.Release(ctx, userID, slotID); err != nil {
		return mapRepoError("release slot", slotID, err)
	}
	return nil
}

func (s *slotService) ReleaseIfHeld(ctx context.Context, userID, slotID string) (bool, error) {
	slot, err := s.repo.FindByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, slotserrors.ErrNotFound) {
			return false, nil
		}
		return false, mapRepoError("retrieve slot", slotID, err)
	}

	if !slot.IsOccupiedBy(userID) || slot.IsBooked() {
		return false, nil
	}

	if err := s.reserver.Release(ctx, userID, slotID); err != nil {
		return false, mapRepoError("release slot", slotID, err)
	}
	return true, nil
}

func (s *slotService) sanitize(slot *model.Slot) {
	slot.TherapistID = sanitizer.NormalizeID(slot.TherapistID)
	slot.TherapistName = sanitizer.NormalizeName(slot.TherapistName)
	slot.AllowedProductIDs = sanitizer.NormalizeIDs(slot.AllowedProductIDs)
	slot.Datetime = slot.Datetime.UTC()
}

func (s *slotService) sanitizeFilter(filter model.SlotFilter) model.SlotFilter {
	filter.TherapistID = sanitizer.NormalizeID(filter.TherapistID)
	filter.ProductID = sanitizer.NormalizeID(filter.ProductID)
	return filter
}

func validationError(err error) error {
	var verrs validation.ValidationErrors
	if errors.As(err, &verrs) {
		return apperrors.Validation("Slot validation failed", verrs.Details())
	}
	return apperrors.Validation("Slot validation failed", map[string]any{"error": err.Error()})
}

// mapRepoError translates slot-store sentinels into API errors. Store
// unavailability is reported as retryable on occupancy failures.
func mapRepoError(op, id string, err error) error {
	switch {
	case err == nil:
		return nil
	case apperrors.IsAppError(err):
		return err
	case errors.Is(err, slotserrors.ErrOccupancyUpdateFailed):
		appErr := apperrors.OccupancyUpdateFailed(id, err)
		appErr.Details["retryable"] = errors.Is(err, slotserrors.ErrStoreUnavailable)
		return appErr
	case errors.Is(err, slotserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Slot", id)
	case errors.Is(err, slotserrors.ErrInvalidID):
		return apperrors.InvalidInput("Invalid slot ID format")
	case errors.Is(err, slotserrors.ErrStoreUnavailable):
		return apperrors.Unavailable("Slot store")
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("Timed out trying to " + op)
	default:
		return apperrors.Internal("Failed to "+op, err)
	}
}
