package reference

import (
	"context"
	"errors"
	"fmt"

	bookingerrors "clinicbook/internal/booking/errors"
	"clinicbook/pkg/config"
	mongotx "clinicbook/pkg/db/mongo"
	"clinicbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoCatalog struct {
	cfg        *config.Config
	categories *mongo.Collection
	products   *mongo.Collection
	modes      *mongo.Collection
	patients   *mongo.Collection
}

// NewMongoCatalog reads reference records keyed by string IDs.
func NewMongoCatalog(cfg *config.Config) Catalog {
	db := cfg.Client.Mongo.Client.Database(cfg.MongoDatabaseName)
	return &mongoCatalog{
		cfg:        cfg,
		categories: db.Collection(CategoryCollection),
		products:   db.Collection(ProductCollection),
		modes:      db.Collection(VisitModeCollection),
		patients:   db.Collection(PatientCollection),
	}
}

func (c *mongoCatalog) Categories(ctx context.Context) ([]model.Category, error) {
	var out []model.Category
	err := c.findAll(ctx, c.categories, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}), &out)
	return out, err
}

func (c *mongoCatalog) ProductsByCategoryAndAge(ctx context.Context, categoryID string, forAdults, forChildren bool) ([]model.Product, error) {
	filter := bson.M{"category_id": categoryID}
	if forAdults {
		filter["for_adults"] = true
	}
	if forChildren {
		filter["for_children"] = true
	}

	var out []model.Product
	err := c.findAll(ctx, c.products, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}), &out)
	return out, err
}

func (c *mongoCatalog) Product(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	if err := c.findOne(ctx, c.products, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *mongoCatalog) VisitModes(ctx context.Context) ([]model.VisitMode, error) {
	var out []model.VisitMode
	err := c.findAll(ctx, c.modes, bson.M{}, options.Find(), &out)
	return out, err
}

func (c *mongoCatalog) VisitModesByIDs(ctx context.Context, ids []string) ([]model.VisitMode, error) {
	if len(ids) == 0 {
		return []model.VisitMode{}, nil
	}

	var found []model.VisitMode
	if err := c.findAll(ctx, c.modes, bson.M{"_id": bson.M{"$in": ids}}, options.Find(), &found); err != nil {
		return nil, err
	}
	return byIDs(found, ids), nil
}

func (c *mongoCatalog) PatientsByOwner(ctx context.Context, ownerID string, isAdult *bool, limit, offset int) ([]model.Patient, error) {
	filter := bson.M{"owner_id": ownerID}
	if isAdult != nil {
		filter["is_adult"] = *isAdult
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "name", Value: 1}}).
		SetSkip(int64(max(offset, 0)))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	var out []model.Patient
	err := c.findAll(ctx, c.patients, filter, opts, &out)
	return out, err
}

func (c *mongoCatalog) Patient(ctx context.Context, id string) (*model.Patient, error) {
	var p model.Patient
	if err := c.findOne(ctx, c.patients, id, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *mongoCatalog) findAll(ctx context.Context, coll *mongo.Collection, filter bson.M, opts *options.FindOptions, out any) error {
	ctx, cancel := mongotx.WithTimeout(ctx, c.cfg.ReadTimeout)
	defer cancel()

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return mapMongoError("query "+coll.Name(), err)
	}
	defer cursor.Close(ctx)

	if err := cursor.All(ctx, out); err != nil {
		return mapMongoError("decode "+coll.Name(), err)
	}
	return nil
}

func (c *mongoCatalog) findOne(ctx context.Context, coll *mongo.Collection, id string, out any) error {
	ctx, cancel := mongotx.WithTimeout(ctx, c.cfg.ReadTimeout)
	defer cancel()

	if err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(out); err != nil {
		return mapMongoError("find "+coll.Name(), err)
	}
	return nil
}

func mapMongoError(op string, err error) error {
	switch {
	case errors.Is(err, mongo.ErrNoDocuments):
		return bookingerrors.ErrNotFound
	case mongo.IsNetworkError(err), mongo.IsTimeout(err),
		errors.Is(err, context.DeadlineExceeded), errors.Is(err, mongo.ErrClientDisconnected):
		return fmt.Errorf("%w: %s: %v", bookingerrors.ErrStoreUnavailable, op, err)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
