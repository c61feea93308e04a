package reference

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clinicbook/pkg/model"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// CachedCatalog memoises category, product and visit-mode lookups. Patients
// change per user and are always read through.
type CachedCatalog struct {
	next  Catalog
	cache *expirable.LRU[string, any]
}

func NewCachedCatalog(next Catalog, size int, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{
		next:  next,
		cache: expirable.NewLRU[string, any](size, nil, ttl),
	}
}

func (c *CachedCatalog) Categories(ctx context.Context) ([]model.Category, error) {
	return cached(c, "categories", func() ([]model.Category, error) {
		return c.next.Categories(ctx)
	})
}

func (c *CachedCatalog) ProductsByCategoryAndAge(ctx context.Context, categoryID string, forAdults, forChildren bool) ([]model.Product, error) {
	key := fmt.Sprintf("products:%s:%t:%t", categoryID, forAdults, forChildren)
	return cached(c, key, func() ([]model.Product, error) {
		return c.next.ProductsByCategoryAndAge(ctx, categoryID, forAdults, forChildren)
	})
}

func (c *CachedCatalog) Product(ctx context.Context, id string) (*model.Product, error) {
	return cached(c, "product:"+id, func() (*model.Product, error) {
		return c.next.Product(ctx, id)
	})
}

func (c *CachedCatalog) VisitModes(ctx context.Context) ([]model.VisitMode, error) {
	return cached(c, "modes", func() ([]model.VisitMode, error) {
		return c.next.VisitModes(ctx)
	})
}

func (c *CachedCatalog) VisitModesByIDs(ctx context.Context, ids []string) ([]model.VisitMode, error) {
	return cached(c, "modes:"+strings.Join(ids, ","), func() ([]model.VisitMode, error) {
		return c.next.VisitModesByIDs(ctx, ids)
	})
}

func (c *CachedCatalog) PatientsByOwner(ctx context.Context, ownerID string, isAdult *bool, limit, offset int) ([]model.Patient, error) {
	return c.next.PatientsByOwner(ctx, ownerID, isAdult, limit, offset)
}

func (c *CachedCatalog) Patient(ctx context.Context, id string) (*model.Patient, error) {
	return c.next.Patient(ctx, id)
}

func (c *CachedCatalog) Purge() {
	c.cache.Purge()
}

// cached returns the value stored under key or loads and stores it.
// Errors are not cached.
func cached[T any](c *CachedCatalog, key string, load func() (T, error)) (T, error) {
	if v, ok := c.cache.Get(key); ok {
		if typed, ok := v.(T); ok {
			return typed, nil
		}
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	c.cache.Add(key, v)
	return v, nil
}
