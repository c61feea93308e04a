package repository

import (
	"context"
	"errors"
	"fmt"

	slotserrors "clinicbook/internal/slots/errors"
	"clinicbook/pkg/config"
	mongotx "clinicbook/pkg/db/mongo"
	"clinicbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoSlotRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoSlotRepository(cfg *config.Config) SlotRepository {
	db := cfg.Client.Mongo.Client.Database(cfg.MongoDatabaseName)
	return &mongoSlotRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoSlotRepository) Create(ctx context.Context, slot *model.Slot) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	slot.ID = ""
	result, err := r.collection.InsertOne(ctx, slot)
	if err != nil {
		return mapMongoError("create slot", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		slot.ID = oid.Hex()
	}
	return nil
}

func (r *mongoSlotRepository) FindByID(ctx context.Context, id string) (*model.Slot, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}

	var slot model.Slot
	err = r.collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&slot)
	if err != nil {
		return nil, mapMongoError("find slot", err)
	}
	return &slot, nil
}

func (r *mongoSlotRepository) Update(ctx context.Context, id string, slot *model.Slot) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}

	update := bson.M{
		"$set": bson.M{
			"datetime":            slot.Datetime,
			"therapist_id":        slot.TherapistID,
			"therapist_name":      slot.TherapistName,
			"allowed_product_ids": slot.AllowedProductIDs,
			"is_free":             slot.IsFree,
			"occupying_user_id":   slot.OccupyingUserID,
			"visit_id":            slot.VisitID,
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return mapMongoError("update slot", err)
	}
	if result.MatchedCount == 0 {
		return slotserrors.ErrNotFound
	}
	return nil
}

func (r *mongoSlotRepository) Delete(ctx context.Context, id string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return mapMongoError("delete slot", err)
	}
	if result.DeletedCount == 0 {
		return slotserrors.ErrNotFound
	}
	return nil
}

func (r *mongoSlotRepository) List(ctx context.Context, filter model.SlotFilter, pageSize int, cursor *model.SlotCursor) (*model.SlotPage, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	pageSize = normalizePageSize(pageSize)
	query, err := buildPageFilter(filter, cursor)
	if err != nil {
		return nil, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "datetime", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(pageSize + 1))

	cur, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, mapMongoError("list slots", err)
	}
	defer cur.Close(ctx)

	var slots []*model.Slot
	if err := cur.All(ctx, &slots); err != nil {
		return nil, mapMongoError("decode slots", err)
	}
	return paginate(slots, pageSize), nil
}

func (r *mongoSlotRepository) Count(ctx context.Context, filter model.SlotFilter) (int64, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildSlotFilter(filter))
	if err != nil {
		return 0, mapMongoError("count slots", err)
	}
	return count, nil
}

func (r *mongoSlotRepository) UpdateOccupancy(ctx context.Context, id string, userID *string) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", slotserrors.ErrInvalidID, id)
	}

	update := bson.M{"$set": bson.M{"occupying_user_id": userID}}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objectID}, update)
	if err != nil {
		return mapMongoError("update occupancy", err)
	}
	if result.MatchedCount == 0 {
		return slotserrors.ErrNotFound
	}
	return nil
}

// Watch listens on a collection change stream (replica set required) and
// re-reads the page on every change event.
func (r *mongoSlotRepository) Watch(ctx context.Context, filter model.SlotFilter, pageSize int, cursor *model.SlotCursor) (Subscription, error) {
	if _, err := buildPageFilter(filter, cursor); err != nil {
		return nil, err
	}

	stream, err := r.collection.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, mapMongoError("watch slots", err)
	}

	sub, subCtx := newSubscription(ctx)
	go func() {
		defer sub.finish()
		defer stream.Close(context.Background())

		var tracker pageTracker
		refresh := func() bool {
			page, err := r.List(subCtx, filter, pageSize, cursor)
			if err != nil {
				if subCtx.Err() != nil {
					return false
				}
				return sub.emit(subCtx, model.SlotPage{Err: err})
			}
			if !tracker.changed(page) {
				return true
			}
			return sub.emit(subCtx, *page)
		}

		if !refresh() {
			return
		}
		for stream.Next(subCtx) {
			if !refresh() {
				return
			}
		}
		if err := stream.Err(); err != nil && subCtx.Err() == nil {
			r.cfg.Log.Warn("Slot change stream stopped", "error", err)
			sub.emit(subCtx, model.SlotPage{Err: mapMongoError("watch slots", err)})
		}
	}()

	return sub, nil
}

func buildSlotFilter(filter model.SlotFilter) bson.M {
	query := bson.M{}
	if filter.TherapistID != "" {
		query["therapist_id"] = filter.TherapistID
	}
	if filter.ProductID != "" {
		query["allowed_product_ids"] = filter.ProductID
	}
	if filter.FreeOnly {
		query["is_free"] = true
	}
	return query
}

func buildPageFilter(filter model.SlotFilter, cursor *model.SlotCursor) (bson.M, error) {
	query := buildSlotFilter(filter)
	if cursor == nil {
		return query, nil
	}

	afterID, err := primitive.ObjectIDFromHex(cursor.AfterID)
	if err != nil {
		return nil, fmt.Errorf("%w: cursor %s", slotserrors.ErrInvalidID, cursor.AfterID)
	}

	query["$or"] = bson.A{
		bson.M{"datetime": bson.M{"$gt": cursor.After}},
		bson.M{"datetime": cursor.After, "_id": bson.M{"$gt": afterID}},
	}
	return query, nil
}

func mapMongoError(op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return slotserrors.ErrNotFound
	case mongo.IsNetworkError(err), mongo.IsTimeout(err),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%w: %s: %v", slotserrors.ErrStoreUnavailable, op, err)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
