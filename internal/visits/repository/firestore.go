package repository

import (
	"context"
	"errors"
	"fmt"

	slotsrepo "clinicbook/internal/slots/repository"
	visitserrors "clinicbook/internal/visits/errors"
	"clinicbook/pkg/config"
	"clinicbook/pkg/model"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type firestoreVisitRepository struct {
	cfg    *config.Config
	client *firestore.Client
}

func NewFirestoreVisitRepository(cfg *config.Config) VisitRepository {
	return &firestoreVisitRepository{
		cfg:    cfg,
		client: cfg.Client.Firestore,
	}
}

func (r *firestoreVisitRepository) Book(ctx context.Context, visit *model.Visit) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if visit.DateSlotID == "" {
		return visitserrors.ErrSlotNotFound
	}
	slotRef := r.client.Collection(slotsrepo.CollectionName).Doc(visit.DateSlotID)
	visitRef := r.client.Collection(CollectionName).NewDoc()

	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(slotRef)
		if err != nil {
			if status.Code(err) == codes.NotFound {
				return visitserrors.ErrSlotNotFound
			}
			return err
		}

		var slot model.Slot
		if err := snap.DataTo(&slot); err != nil {
			return fmt.Errorf("decode slot %s: %w", snap.Ref.ID, err)
		}
		if err := checkBookable(&slot, visit.UserCreatingID); err != nil {
			return err
		}

		visit.TherapistID = slot.TherapistID
		if err := tx.Create(visitRef, visit); err != nil {
			return err
		}
		return tx.Update(slotRef, []firestore.Update{
			{Path: "visitId", Value: visitRef.ID},
			{Path: "isFree", Value: false},
		})
	})
	if err != nil {
		return mapFirestoreError("book visit", err)
	}

	visit.ID = visitRef.ID
	return nil
}

func (r *firestoreVisitRepository) FindByID(ctx context.Context, id string) (*model.Visit, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if id == "" {
		return nil, visitserrors.ErrNotFound
	}

	snap, err := r.client.Collection(CollectionName).Doc(id).Get(ctx)
	if err != nil {
		return nil, mapFirestoreError("find visit", err)
	}

	var visit model.Visit
	if err := snap.DataTo(&visit); err != nil {
		return nil, fmt.Errorf("decode visit %s: %w", id, err)
	}
	visit.ID = snap.Ref.ID
	return &visit, nil
}

func mapFirestoreError(op string, err error) error {
	switch {
	case errors.Is(err, visitserrors.ErrSlotNotFound),
		errors.Is(err, visitserrors.ErrSlotNotHeld),
		errors.Is(err, visitserrors.ErrSlotBooked):
		return err
	}
	switch status.Code(err) {
	case codes.NotFound:
		return visitserrors.ErrNotFound
	case codes.Unavailable, codes.DeadlineExceeded, codes.Aborted:
		return fmt.Errorf("%w: %s: %v", visitserrors.ErrStoreUnavailable, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", visitserrors.ErrStoreUnavailable, op, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
