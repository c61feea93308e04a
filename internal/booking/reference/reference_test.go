package reference

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	bookingerrors "clinicbook/internal/booking/errors"
	"clinicbook/pkg/model"
)

func boolPtr(b bool) *bool { return &b }

func testCatalog() *MemoryCatalog {
	return NewMemoryCatalog().
		AddCategories(model.Category{ID: "adhd", Name: "ADHD"}).
		AddProducts(
			model.Product{ID: "adult-only", CategoryID: "adhd", ForAdults: true},
			model.Product{ID: "both", CategoryID: "adhd", ForAdults: true, ForChildren: true},
			model.Product{ID: "kids", CategoryID: "adhd", ForChildren: true},
			model.Product{ID: "other", CategoryID: "autism", ForAdults: true},
		).
		AddVisitModes(
			model.VisitMode{ID: "onsite", Name: "onsite"},
			model.VisitMode{ID: "m-remote", Name: model.VisitModeRemote},
		).
		AddPatients(
			model.Patient{ID: "p3", OwnerID: "u1", Name: "Zofia", IsAdult: true},
			model.Patient{ID: "p1", OwnerID: "u1", Name: "Adam", IsAdult: false},
			model.Patient{ID: "p2", OwnerID: "u1", Name: "Basia", IsAdult: true},
			model.Patient{ID: "p4", OwnerID: "u2", Name: "Celina", IsAdult: true},
		)
}

func productIDs(products []model.Product) []string {
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	return ids
}

func TestProductsByCategoryAndAge(t *testing.T) {
	c := testCatalog()
	ctx := context.Background()

	tests := []struct {
		name        string
		forAdults   bool
		forChildren bool
		want        []string
	}{
		{"adults", true, false, []string{"adult-only", "both"}},
		{"children", false, true, []string{"both", "kids"}},
		{"no age filter", false, false, []string{"adult-only", "both", "kids"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.ProductsByCategoryAndAge(ctx, "adhd", tt.forAdults, tt.forChildren)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ids := productIDs(got); !reflect.DeepEqual(ids, tt.want) {
				t.Errorf("products = %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestVisitModesByIDs_DropsUnknown(t *testing.T) {
	got, err := testCatalog().VisitModesByIDs(context.Background(), []string{"m-remote", "gone", "onsite"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "m-remote" || got[1].ID != "onsite" {
		t.Errorf("modes = %+v", got)
	}
}

func TestPatientsByOwner(t *testing.T) {
	c := testCatalog()
	ctx := context.Background()

	all, _ := c.PatientsByOwner(ctx, "u1", nil, 0, 0)
	if len(all) != 3 || all[0].Name != "Adam" || all[2].Name != "Zofia" {
		t.Errorf("all = %+v", all)
	}

	adults, _ := c.PatientsByOwner(ctx, "u1", boolPtr(true), 1, 1)
	if len(adults) != 1 || adults[0].ID != "p3" {
		t.Errorf("second adult page = %+v", adults)
	}

	beyond, _ := c.PatientsByOwner(ctx, "u1", nil, 5, 10)
	if len(beyond) != 0 {
		t.Errorf("beyond = %+v", beyond)
	}
}

func TestPatient_NotFound(t *testing.T) {
	_, err := testCatalog().Patient(context.Background(), "ghost")
	if !errors.Is(err, bookingerrors.ErrNotFound) {
		t.Errorf("err = %v", err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Cache
// ──────────────────────────────────────────────────────────────────────────────

type countingCatalog struct {
	Catalog
	productCalls int
	fail         bool
}

func (c *countingCatalog) ProductsByCategoryAndAge(ctx context.Context, categoryID string, forAdults, forChildren bool) ([]model.Product, error) {
	c.productCalls++
	if c.fail {
		return nil, bookingerrors.ErrStoreUnavailable
	}
	return c.Catalog.ProductsByCategoryAndAge(ctx, categoryID, forAdults, forChildren)
}

func TestCachedCatalog_MemoisesProducts(t *testing.T) {
	inner := &countingCatalog{Catalog: testCatalog()}
	c := NewCachedCatalog(inner, 16, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := c.ProductsByCategoryAndAge(ctx, "adhd", true, false); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if inner.productCalls != 1 {
		t.Errorf("calls = %d, want 1", inner.productCalls)
	}

	if _, err := c.ProductsByCategoryAndAge(ctx, "adhd", false, true); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.productCalls != 2 {
		t.Errorf("different key should miss, calls = %d", inner.productCalls)
	}

	c.Purge()
	_, _ = c.ProductsByCategoryAndAge(ctx, "adhd", true, false)
	if inner.productCalls != 3 {
		t.Errorf("purge should force reload, calls = %d", inner.productCalls)
	}
}

func TestCachedCatalog_DoesNotCacheErrors(t *testing.T) {
	inner := &countingCatalog{Catalog: testCatalog(), fail: true}
	c := NewCachedCatalog(inner, 16, time.Minute)
	ctx := context.Background()

	if _, err := c.ProductsByCategoryAndAge(ctx, "adhd", true, false); err == nil {
		t.Fatal("expected error")
	}
	inner.fail = false
	got, err := c.ProductsByCategoryAndAge(ctx, "adhd", true, false)
	if err != nil || len(got) != 2 {
		t.Errorf("after recovery: %v, %v", got, err)
	}
}
