package reference

import (
	"context"
	"errors"
	"fmt"

	bookingerrors "clinicbook/internal/booking/errors"
	"clinicbook/pkg/config"
	"clinicbook/pkg/model"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Firestore "in" filters accept at most 30 values.
const firestoreInLimit = 30

type firestoreCatalog struct {
	cfg    *config.Config
	client *firestore.Client
}

func NewFirestoreCatalog(cfg *config.Config) Catalog {
	return &firestoreCatalog{cfg: cfg, client: cfg.Client.Firestore}
}

func (c *firestoreCatalog) Categories(ctx context.Context) ([]model.Category, error) {
	docs, err := c.getAll(ctx, c.client.Collection(CategoryCollection).OrderBy("name", firestore.Asc), "list categories")
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, func(d *firestore.DocumentSnapshot, v *model.Category) { v.ID = d.Ref.ID })
}

func (c *firestoreCatalog) ProductsByCategoryAndAge(ctx context.Context, categoryID string, forAdults, forChildren bool) ([]model.Product, error) {
	q := c.client.Collection(ProductCollection).Where("categoryId", "==", categoryID)
	if forAdults {
		q = q.Where("forAdults", "==", true)
	}
	if forChildren {
		q = q.Where("forChildren", "==", true)
	}

	docs, err := c.getAll(ctx, q, "list products")
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, func(d *firestore.DocumentSnapshot, v *model.Product) { v.ID = d.Ref.ID })
}

func (c *firestoreCatalog) Product(ctx context.Context, id string) (*model.Product, error) {
	var p model.Product
	if err := c.get(ctx, ProductCollection, id, &p); err != nil {
		return nil, err
	}
	p.ID = id
	return &p, nil
}

func (c *firestoreCatalog) VisitModes(ctx context.Context) ([]model.VisitMode, error) {
	docs, err := c.getAll(ctx, c.client.Collection(VisitModeCollection).Query, "list visit modes")
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, func(d *firestore.DocumentSnapshot, v *model.VisitMode) { v.ID = d.Ref.ID })
}

func (c *firestoreCatalog) VisitModesByIDs(ctx context.Context, ids []string) ([]model.VisitMode, error) {
	var found []model.VisitMode
	for start := 0; start < len(ids); start += firestoreInLimit {
		end := min(start+firestoreInLimit, len(ids))
		q := c.client.Collection(VisitModeCollection).Where(firestore.DocumentID, "in", c.refs(VisitModeCollection, ids[start:end]))
		docs, err := c.getAll(ctx, q, "list visit modes by id")
		if err != nil {
			return nil, err
		}
		modes, err := decodeAll(docs, func(d *firestore.DocumentSnapshot, v *model.VisitMode) { v.ID = d.Ref.ID })
		if err != nil {
			return nil, err
		}
		found = append(found, modes...)
	}
	return byIDs(found, ids), nil
}

func (c *firestoreCatalog) PatientsByOwner(ctx context.Context, ownerID string, isAdult *bool, limit, offset int) ([]model.Patient, error) {
	q := c.client.Collection(PatientCollection).Where("ownerId", "==", ownerID)
	if isAdult != nil {
		q = q.Where("isAdult", "==", *isAdult)
	}
	q = q.OrderBy("name", firestore.Asc).Offset(max(offset, 0))
	if limit > 0 {
		q = q.Limit(limit)
	}

	docs, err := c.getAll(ctx, q, "list patients")
	if err != nil {
		return nil, err
	}
	return decodeAll(docs, func(d *firestore.DocumentSnapshot, v *model.Patient) { v.ID = d.Ref.ID })
}

func (c *firestoreCatalog) Patient(ctx context.Context, id string) (*model.Patient, error) {
	var p model.Patient
	if err := c.get(ctx, PatientCollection, id, &p); err != nil {
		return nil, err
	}
	p.ID = id
	return &p, nil
}

func (c *firestoreCatalog) refs(collection string, ids []string) []*firestore.DocumentRef {
	refs := make([]*firestore.DocumentRef, 0, len(ids))
	for _, id := range ids {
		refs = append(refs, c.client.Collection(collection).Doc(id))
	}
	return refs
}

func (c *firestoreCatalog) getAll(ctx context.Context, q firestore.Query, op string) ([]*firestore.DocumentSnapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ReadTimeout)
	defer cancel()

	docs, err := q.Documents(ctx).GetAll()
	if err != nil {
		return nil, mapFirestoreError(op, err)
	}
	return docs, nil
}

func (c *firestoreCatalog) get(ctx context.Context, collection, id string, out any) error {
	if id == "" {
		return bookingerrors.ErrNotFound
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.ReadTimeout)
	defer cancel()

	snap, err := c.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		return mapFirestoreError("get "+collection, err)
	}
	if err := snap.DataTo(out); err != nil {
		return fmt.Errorf("failed to decode %s %s: %w", collection, id, err)
	}
	return nil
}

func decodeAll[T any](docs []*firestore.DocumentSnapshot, setID func(*firestore.DocumentSnapshot, *T)) ([]T, error) {
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := d.DataTo(&v); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", d.Ref.Path, err)
		}
		setID(d, &v)
		out = append(out, v)
	}
	return out, nil
}

func mapFirestoreError(op string, err error) error {
	switch status.Code(err) {
	case codes.NotFound:
		return bookingerrors.ErrNotFound
	case codes.Unavailable, codes.DeadlineExceeded:
		return fmt.Errorf("%w: %s: %v", bookingerrors.ErrStoreUnavailable, op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", bookingerrors.ErrStoreUnavailable, op, err)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}
