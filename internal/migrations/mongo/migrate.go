package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"clinicbook/internal/booking/reference"
	"clinicbook/internal/migrations/mongo/validators"
	slotsrepo "clinicbook/internal/slots/repository"
	visitsrepo "clinicbook/internal/visits/repository"
	"clinicbook/pkg/logger"
)

var (
	DateSlotsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "datetime", Value: 1}, {Key: "_id", Value: 1}}},
		{Keys: bson.D{{Key: "therapist_id", Value: 1}, {Key: "datetime", Value: 1}}},
		{Keys: bson.D{{Key: "allowed_product_ids", Value: 1}, {Key: "datetime", Value: 1}}},
		{Keys: bson.D{{Key: "occupying_user_id", Value: 1}}},
	}

	// A slot carries at most one visit.
	VisitsIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "date_slot_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "user_creating_id", Value: 1}, {Key: "created_at", Value: -1}}},
	}

	ProductsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "category_id", Value: 1}, {Key: "name", Value: 1}}},
	}

	PatientsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner_id", Value: 1}, {Key: "name", Value: 1}}},
	}
)

type Collection struct {
	Name      string
	Indexes   []mongo.IndexModel
	Validator bson.M
}

// Collections lists every collection the services read or write, in the
// order migrations apply them.
func Collections() []Collection {
	return []Collection{
		{Name: reference.CategoryCollection, Validator: validators.CategoryValidator},
		{Name: reference.ProductCollection, Indexes: ProductsIndexes, Validator: validators.ProductValidator},
		{Name: reference.VisitModeCollection, Validator: validators.VisitModeValidator},
		{Name: reference.PatientCollection, Indexes: PatientsIndexes, Validator: validators.PatientValidator},
		{Name: slotsrepo.CollectionName, Indexes: DateSlotsIndexes, Validator: validators.DateSlotValidator},
		{Name: visitsrepo.CollectionName, Indexes: VisitsIndexes, Validator: validators.VisitValidator},
	}
}

func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName)

	for _, def := range Collections() {
		if err := ensureCollection(ctx, db, def.Name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", def.Name, err)
		}
		if err := ensureIndexes(ctx, db, def.Name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.Name, err)
		}
	}

	log.Info("All migrations applied")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}
