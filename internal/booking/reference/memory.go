package reference

import (
	"context"
	"sort"
	"sync"

	bookingerrors "clinicbook/internal/booking/errors"
	"clinicbook/pkg/model"
)

type MemoryCatalog struct {
	mu         sync.RWMutex
	categories []model.Category
	products   []model.Product
	modes      []model.VisitMode
	patients   []model.Patient
}

func NewMemoryCatalog() *MemoryCatalog {
	return &MemoryCatalog{}
}

func (c *MemoryCatalog) AddCategories(categories ...model.Category) *MemoryCatalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.categories = append(c.categories, categories...)
	return c
}

func (c *MemoryCatalog) AddProducts(products ...model.Product) *MemoryCatalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = append(c.products, products...)
	return c
}

func (c *MemoryCatalog) AddVisitModes(modes ...model.VisitMode) *MemoryCatalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.modes = append(c.modes, modes...)
	return c
}

func (c *MemoryCatalog) AddPatients(patients ...model.Patient) *MemoryCatalog {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.patients = append(c.patients, patients...)
	return c
}

func (c *MemoryCatalog) Categories(context.Context) ([]model.Category, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Category(nil), c.categories...), nil
}

func (c *MemoryCatalog) ProductsByCategoryAndAge(_ context.Context, categoryID string, forAdults, forChildren bool) ([]model.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []model.Product
	for _, p := range c.products {
		if p.CategoryID != categoryID {
			continue
		}
		if forAdults && !p.ForAdults {
			continue
		}
		if forChildren && !p.ForChildren {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (c *MemoryCatalog) Product(_ context.Context, id string) (*model.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, bookingerrors.ErrNotFound
}

func (c *MemoryCatalog) VisitModes(context.Context) ([]model.VisitMode, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.VisitMode(nil), c.modes...), nil
}

func (c *MemoryCatalog) VisitModesByIDs(_ context.Context, ids []string) ([]model.VisitMode, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return byIDs(c.modes, ids), nil
}

func (c *MemoryCatalog) PatientsByOwner(_ context.Context, ownerID string, isAdult *bool, limit, offset int) ([]model.Patient, error) {
	c.mu.RLock()
	var out []model.Patient
	for _, p := range c.patients {
		if p.OwnerID != ownerID {
			continue
		}
		if isAdult != nil && p.IsAdult != *isAdult {
			continue
		}
		out = append(out, p)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	if offset >= len(out) {
		return []model.Patient{}, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (c *MemoryCatalog) Patient(_ context.Context, id string) (*model.Patient, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, p := range c.patients {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, bookingerrors.ErrNotFound
}
