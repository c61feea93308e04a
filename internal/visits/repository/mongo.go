package repository

import (
	"context"
	"errors"
	"fmt"

	slotsrepo "clinicbook/internal/slots/repository"
	visitserrors "clinicbook/internal/visits/errors"
	"clinicbook/pkg/config"
	mongotx "clinicbook/pkg/db/mongo"
	"clinicbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type mongoVisitRepository struct {
	cfg    *config.Config
	tx     mongotx.TransactionManager
	visits *mongo.Collection
	slots  *mongo.Collection
}

func NewMongoVisitRepository(cfg *config.Config) VisitRepository {
	db := cfg.Client.Mongo.Client.Database(cfg.MongoDatabaseName)
	return &mongoVisitRepository{
		cfg:    cfg,
		tx:     mongotx.NewTransactionManager(cfg.Client.Mongo.Client),
		visits: db.Collection(CollectionName),
		slots:  db.Collection(slotsrepo.CollectionName),
	}
}

func (r *mongoVisitRepository) Book(ctx context.Context, visit *model.Visit) error {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	slotID, err := primitive.ObjectIDFromHex(visit.DateSlotID)
	if err != nil {
		return visitserrors.ErrSlotNotFound
	}

	err = r.tx.ExecuteTransaction(ctx, func(sc mongo.SessionContext) error {
		var slot model.Slot
		if err := r.slots.FindOne(sc, bson.M{"_id": slotID}).Decode(&slot); err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return visitserrors.ErrSlotNotFound
			}
			return err
		}
		if err := checkBookable(&slot, visit.UserCreatingID); err != nil {
			return err
		}

		visit.ID = ""
		visit.TherapistID = slot.TherapistID
		result, err := r.visits.InsertOne(sc, visit)
		if err != nil {
			return err
		}
		oid, _ := result.InsertedID.(primitive.ObjectID)
		visit.ID = oid.Hex()

		update := bson.M{"$set": bson.M{"visit_id": visit.ID, "is_free": false}}
		_, err = r.slots.UpdateOne(sc, bson.M{"_id": slotID, "visit_id": nil}, update)
		return err
	})
	if err != nil {
		visit.ID = ""
		return mapMongoError("book visit", err)
	}
	return nil
}

func (r *mongoVisitRepository) FindByID(ctx context.Context, id string) (*model.Visit, error) {
	ctx, cancel := mongotx.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, visitserrors.ErrNotFound
	}

	var visit model.Visit
	if err := r.visits.FindOne(ctx, bson.M{"_id": objectID}).Decode(&visit); err != nil {
		return nil, mapMongoError("find visit", err)
	}
	return &visit, nil
}

func mapMongoError(op string, err error) error {
	switch {
	case errors.Is(err, visitserrors.ErrSlotNotFound),
		errors.Is(err, visitserrors.ErrSlotNotHeld),
		errors.Is(err, visitserrors.ErrSlotBooked):
		return err
	case errors.Is(err, mongo.ErrNoDocuments):
		return visitserrors.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		// unique date_slot_id index
		return visitserrors.ErrSlotBooked
	case mongo.IsNetworkError(err), mongo.IsTimeout(err),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%w: %s: %v", visitserrors.ErrStoreUnavailable, op, err)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
