// Package reference serves the read-only catalog the booking wizard offers
// options from: categories, products, visit modes and a user's patients.
package reference

import (
	"context"

	"clinicbook/pkg/model"
)

const (
	CategoryCollection  = "category"
	ProductCollection   = "product"
	VisitModeCollection = "visitMode"
	PatientCollection   = "patients"
)

type Catalog interface {
	Categories(ctx context.Context) ([]model.Category, error)
	// ProductsByCategoryAndAge filters on forAdults / forChildren only when
	// the corresponding flag is true.
	ProductsByCategoryAndAge(ctx context.Context, categoryID string, forAdults, forChildren bool) ([]model.Product, error)
	Product(ctx context.Context, id string) (*model.Product, error)
	VisitModes(ctx context.Context) ([]model.VisitMode, error)
	VisitModesByIDs(ctx context.Context, ids []string) ([]model.VisitMode, error)
	// PatientsByOwner lists patients ordered by name. A nil isAdult skips
	// the age filter.
	PatientsByOwner(ctx context.Context, ownerID string, isAdult *bool, limit, offset int) ([]model.Patient, error)
	Patient(ctx context.Context, id string) (*model.Patient, error)
}

// byIDs keeps the order of ids and skips unknown ones.
func byIDs(modes []model.VisitMode, ids []string) []model.VisitMode {
	index := make(map[string]model.VisitMode, len(modes))
	for _, m := range modes {
		index[m.ID] = m
	}
	out := make([]model.VisitMode, 0, len(ids))
	for _, id := range ids {
		if m, ok := index[id]; ok {
			out = append(out, m)
		}
	}
	return out
}
