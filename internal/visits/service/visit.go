package service

import (
	"context"
	"errors"
	"time"

	visitserrors "clinicbook/internal/visits/errors"
	"clinicbook/internal/visits/repository"
	"clinicbook/pkg/config"
	apperrors "clinicbook/pkg/errors"
	"clinicbook/pkg/model"
)

type VisitService interface {
	// Book turns a held slot into a confirmed visit.
	Book(ctx context.Context, visit *model.Visit) (*model.Visit, error)
	GetByID(ctx context.Context, userID, id string) (*model.Visit, error)
}

type visitService struct {
	repo repository.VisitRepository
	cfg  *config.Config
	now  func() time.Time
}

func NewVisitService(repo repository.VisitRepository, cfg *config.Config) VisitService {
	return &visitService{
		repo: repo,
		cfg:  cfg,
		now:  time.Now,
	}
}

func (s *visitService) Book(ctx context.Context, visit *model.Visit) (*model.Visit, error) {
	visit.CreatedAt = s.now().UTC()

	if err := s.repo.Book(ctx, visit); err != nil {
		s.cfg.Log.Warn("Failed to book visit",
			"slot_id", visit.DateSlotID,
			"user_id", visit.UserCreatingID,
			"error", err,
		)
		return nil, mapRepoError(visit.DateSlotID, err)
	}

	s.cfg.Log.Info("Visit booked",
		"id", visit.ID,
		"slot_id", visit.DateSlotID,
		"user_id", visit.UserCreatingID,
		"therapist_id", visit.TherapistID,
	)
	return visit, nil
}

// GetByID hides visits created by other users.
func (s *visitService) GetByID(ctx context.Context, userID, id string) (*model.Visit, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Visit ID cannot be empty")
	}

	visit, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(id, err)
	}
	if visit.UserCreatingID != userID {
		return nil, apperrors.NotFoundWithID("Visit", id)
	}
	return visit, nil
}

func mapRepoError(id string, err error) error {
	switch {
	case errors.Is(err, visitserrors.ErrSlotNotHeld):
		return apperrors.Conflict("Slot is no longer held by you")
	case errors.Is(err, visitserrors.ErrSlotBooked):
		return apperrors.Conflict("Slot already has a confirmed visit")
	case errors.Is(err, visitserrors.ErrSlotNotFound):
		return apperrors.NotFoundWithID("Slot", id)
	case errors.Is(err, visitserrors.ErrNotFound):
		return apperrors.NotFoundWithID("Visit", id)
	case errors.Is(err, visitserrors.ErrStoreUnavailable):
		return apperrors.Unavailable("Visit store")
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Timeout("Timed out booking visit")
	default:
		return apperrors.Internal("Failed to book visit", err)
	}
}
