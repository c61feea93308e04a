package repository

import (
	"context"
	"errors"
	"fmt"

	slotserrors "clinicbook/internal/slots/errors"
	"clinicbook/pkg/config"
	"clinicbook/pkg/model"

	"cloud.google.com/go/firestore"
	"cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	fsDatetime        = "datetime"
	fsTherapistID     = "therapistId"
	fsTherapistName   = "therapistNameSurname"
	fsAllowedProducts = "allowedProductsIds"
	fsIsFree          = "isFree"
	fsOccupyingUser   = "currentlyOccupyingUser"
	fsVisitID         = "visitId"

	countAlias = "all"
)

type firestoreSlotRepository struct {
	cfg        *config.Config
	collection *firestore.CollectionRef
}

func NewFirestoreSlotRepository(cfg *config.Config) SlotRepository {
	return &firestoreSlotRepository{
		cfg:        cfg,
		collection: cfg.Client.Firestore.Collection(CollectionName),
	}
}

func (r *firestoreSlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	ref := r.collection.NewDoc()
	if _, err := ref.Create(ctx, slot); err != nil {
		return mapFirestoreError("create slot", err)
	}
	slot.ID = ref.ID
	return nil
}

func (r *firestoreSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	if id == "" {
		return nil, slotserrors.ErrInvalidID
	}

	snap, err := r.collection.Doc(id).Get(ctx)
	if err != nil {
		return nil, mapFirestoreError("find slot", err)
	}
	return decodeSlot(snap)
}

func (r *firestoreSlotRepository) Update(ctx context.Context, id string, slot *model.Slot) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if id == "" {
		return slotserrors.ErrInvalidID
	}

	_, err := r.collection.Doc(id).Update(ctx, []firestore.Update{
		{Path: fsDatetime, Value: slot.Datetime},
		{Path: fsTherapistID, Value: slot.TherapistID},
		{Path: fsTherapistName, Value: slot.TherapistName},
		{Path: fsAllowedProducts, Value: slot.AllowedProductIDs},
		{Path: fsIsFree, Value: slot.IsFree},
		{Path: fsOccupyingUser, Value: nullable(slot.OccupyingUserID)},
		{Path: fsVisitID, Value: nullable(slot.VisitID)},
	})
	if err != nil {
		return mapFirestoreError("update slot", err)
	}
	return nil
}

func (r *firestoreSlotRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if id == "" {
		return slotserrors.ErrInvalidID
	}

	if _, err := r.collection.Doc(id).Delete(ctx, firestore.Exists); err != nil {
		return mapFirestoreError("delete slot", err)
	}
	return nil
}

func (r *firestoreSlotRepository) List(ctx context.Context, filter model.SlotFilter, pageSize int, cursor *model.SlotCursor) (*model.SlotPage, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pageSize = normalizePageSize(pageSize)
	docs, err := r.pageQuery(filter, pageSize, cursor).Documents(ctx).GetAll()
	if err != nil {
		return nil, mapFirestoreError("list slots", err)
	}
	return decodePage(docs, pageSize)
}

func (r *firestoreSlotRepository) Count(ctx context.Context, filter model.SlotFilter) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	q := r.filterQuery(filter)
	result, err := q.NewAggregationQuery().WithCount(countAlias).Get(ctx)
	if err != nil {
		return 0, mapFirestoreError("count slots", err)
	}

	value, ok := result[countAlias].(*firestorepb.Value)
	if !ok {
		return 0, fmt.Errorf("failed to count slots: unexpected aggregation result %T", result[countAlias])
	}
	return value.GetIntegerValue(), nil
}

func (r *firestoreSlotRepository) UpdateOccupancy(ctx context.Context, id string, userID *string) error {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	if id == "" {
		return slotserrors.ErrInvalidID
	}

	_, err := r.collection.Doc(id).Update(ctx, []firestore.Update{
		{Path: fsOccupyingUser, Value: nullable(userID)},
	})
	if err != nil {
		return mapFirestoreError("update occupancy", err)
	}
	return nil
}

// Watch uses a snapshot listener on the paged query, so only changes to
// documents that fall inside the page produce a new emission.
func (r *firestoreSlotRepository) Watch(ctx context.Context, filter model.SlotFilter, pageSize int, cursor *model.SlotCursor) (Subscription, error) {
	pageSize = normalizePageSize(pageSize)
	sub, subCtx := newSubscription(ctx)
	it := r.pageQuery(filter, pageSize, cursor).Snapshots(subCtx)

	go func() {
		defer sub.finish()
		defer it.Stop()

		var tracker pageTracker
		for {
			snap, err := it.Next()
			if err != nil {
				if subCtx.Err() == nil {
					r.cfg.Log.Warn("Slot snapshot listener stopped", "error", err)
					sub.emit(subCtx, model.SlotPage{Err: mapFirestoreError("watch slots", err)})
				}
				return
			}

			docs, err := snap.Documents.GetAll()
			if err != nil {
				if !sub.emit(subCtx, model.SlotPage{Err: mapFirestoreError("watch slots", err)}) {
					return
				}
				continue
			}

			page, err := decodePage(docs, pageSize)
			if err != nil {
				if !sub.emit(subCtx, model.SlotPage{Err: err}) {
					return
				}
				continue
			}
			if tracker.changed(page) && !sub.emit(subCtx, *page) {
				return
			}
		}
	}()

	return sub, nil
}

func (r *firestoreSlotRepository) filterQuery(filter model.SlotFilter) firestore.Query {
	q := r.collection.Query
	if filter.TherapistID != "" {
		q = q.Where(fsTherapistID, "==", filter.TherapistID)
	}
	if filter.ProductID != "" {
		q = q.Where(fsAllowedProducts, "array-contains", filter.ProductID)
	}
	if filter.FreeOnly {
		q = q.Where(fsIsFree, "==", true)
	}
	return q
}

func (r *firestoreSlotRepository) pageQuery(filter model.SlotFilter, pageSize int, cursor *model.SlotCursor) firestore.Query {
	q := r.filterQuery(filter).
		OrderBy(fsDatetime, firestore.Asc).
		OrderBy(firestore.DocumentID, firestore.Asc)
	if cursor != nil {
		q = q.StartAfter(cursor.After, cursor.AfterID)
	}
	return q.Limit(pageSize + 1)
}

func decodeSlot(snap *firestore.DocumentSnapshot) (*model.Slot, error) {
	var slot model.Slot
	if err := snap.DataTo(&slot); err != nil {
		return nil, fmt.Errorf("failed to decode slot %s: %w", snap.Ref.ID, err)
	}
	slot.ID = snap.Ref.ID
	return &slot, nil
}

func decodePage(docs []*firestore.DocumentSnapshot, pageSize int) (*model.SlotPage, error) {
	slots := make([]*model.Slot, 0, len(docs))
	for _, doc := range docs {
		slot, err := decodeSlot(doc)
		if err != nil {
			return nil, err
		}
		slots = append(slots, slot)
	}
	return paginate(slots, pageSize), nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func mapFirestoreError(op string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return slotserrors.ErrNotFound
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s: %v", slotserrors.ErrStoreUnavailable, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", slotserrors.ErrStoreUnavailable, op, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
