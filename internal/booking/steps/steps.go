// Package steps derives the booking wizard's step list from the answers
// collected so far. Everything here is pure: callers fetch reference data,
// then recompute.
package steps

import (
	"errors"

	"clinicbook/pkg/model"
)

type Key string

const (
	Age      Key = "age"
	Category Key = "category"
	Product  Key = "product"
	Patient  Key = "patient"
	Mode     Key = "mode"
	Date     Key = "date"
	Payment  Key = "payment"
)

var (
	ErrIncomplete  = errors.New("active step is not complete")
	ErrAtFirstStep = errors.New("already at the first step")
)

// ReferenceData is the option catalog the step list depends on. Products
// holds the products matching the chosen category and age; VisitModes holds
// every known mode. The Failed flags mark lists that could not be loaded,
// as opposed to lists that are legitimately empty.
type ReferenceData struct {
	Products       []model.Product
	VisitModes     []model.VisitMode
	ProductsFailed bool
	ModesFailed    bool
}

// Degraded reports whether any list failed to load.
func (d ReferenceData) Degraded() bool {
	return d.ProductsFailed || d.ModesFailed
}

func (d ReferenceData) Product(id string) *model.Product {
	for i := range d.Products {
		if d.Products[i].ID == id {
			return &d.Products[i]
		}
	}
	return nil
}

func (d ReferenceData) Mode(id string) *model.VisitMode {
	for i := range d.VisitModes {
		if d.VisitModes[i].ID == id {
			return &d.VisitModes[i]
		}
	}
	return nil
}

// ModesFor resolves a product's visit modes. IDs with no matching mode are
// dropped.
func (d ReferenceData) ModesFor(productID string) []model.VisitMode {
	p := d.Product(productID)
	if p == nil {
		return nil
	}
	modes := make([]model.VisitMode, 0, len(p.VisitModeIDs))
	for _, id := range p.VisitModeIDs {
		if m := d.Mode(id); m != nil {
			modes = append(modes, *m)
		}
	}
	return modes
}

// ComputeSteps returns the visible steps in their fixed order:
// age, category, [product], [patient], [mode], date, [payment].
func ComputeSteps(s *model.BookingSession, d ReferenceData) []Key {
	keys := []Key{Age, Category}

	if len(d.Products) > 1 {
		keys = append(keys, Product)
	}
	if s.IsSet(model.FieldIsAdult) && s.IsSet(model.FieldCategoryID) && s.IsSet(model.FieldProductID) {
		keys = append(keys, Patient)
	}
	if s.IsSet(model.FieldProductID) && len(d.ModesFor(s.ProductID)) > 1 {
		keys = append(keys, Mode)
	}

	keys = append(keys, Date)

	if s.IsSet(model.FieldVisitModeID) && !s.IsRemote() {
		keys = append(keys, Payment)
	}
	return keys
}

func Complete(k Key, s *model.BookingSession) bool {
	switch k {
	case Age:
		return s.IsSet(model.FieldIsAdult)
	case Category:
		return s.IsSet(model.FieldCategoryID)
	case Product:
		return s.IsSet(model.FieldProductID)
	case Patient:
		return s.IsSet(model.FieldPatientID)
	case Mode:
		return s.IsSet(model.FieldVisitModeID)
	case Date:
		return s.IsSet(model.FieldSlotID)
	case Payment:
		return s.IsSet(model.FieldPaymentMethod)
	}
	return false
}

// Field is the session field answered on step k.
func Field(k Key) model.SessionField {
	switch k {
	case Age:
		return model.FieldIsAdult
	case Category:
		return model.FieldCategoryID
	case Product:
		return model.FieldProductID
	case Patient:
		return model.FieldPatientID
	case Mode:
		return model.FieldVisitModeID
	case Date:
		return model.FieldSlotID
	case Payment:
		return model.FieldPaymentMethod
	}
	return ""
}

// AutoSelect applies the selections implied by the reference data: a
// single eligible product or mode is chosen, and a held product or mode
// that is no longer offered is dropped. Changes go through the session
// setters so downstream answers are invalidated as usual. A list that failed
// to load never drops anything; modes are only resolved through products,
// so a product failure also leaves the mode alone.
func AutoSelect(s *model.BookingSession, d ReferenceData) bool {
	changed := false

	if s.IsSet(model.FieldIsAdult) && s.IsSet(model.FieldCategoryID) && !d.ProductsFailed {
		switch {
		case len(d.Products) == 1 && s.ProductID != d.Products[0].ID:
			s.SetProduct(d.Products[0].ID)
			changed = true
		case s.IsSet(model.FieldProductID) && d.Product(s.ProductID) == nil:
			s.SetProduct("")
			changed = true
		}
	}

	if s.IsSet(model.FieldProductID) && !d.Degraded() {
		modes := d.ModesFor(s.ProductID)
		switch {
		case len(modes) == 1 && s.VisitModeID != modes[0].ID:
			s.SetVisitMode(modes[0].ID, modes[0].Name)
			changed = true
		case s.IsSet(model.FieldVisitModeID) && !containsMode(modes, s.VisitModeID):
			s.SetVisitMode("", "")
			changed = true
		}
	}

	return changed
}

func containsMode(modes []model.VisitMode, id string) bool {
	for _, m := range modes {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Clamp keeps the active index inside the step list after recomputation.
func Clamp(s *model.BookingSession, keys []Key) {
	if s.ActiveStep >= len(keys) {
		s.ActiveStep = len(keys) - 1
	}
	if s.ActiveStep < 0 {
		s.ActiveStep = 0
	}
}

func Active(s *model.BookingSession, keys []Key) Key {
	return keys[min(max(s.ActiveStep, 0), len(keys)-1)]
}

func CanAdvance(s *model.BookingSession, keys []Key) bool {
	return Complete(Active(s, keys), s)
}

// Advance moves to the next step when the active one is complete. On the
// last step it leaves the index alone and reports submission readiness.
// An incomplete step leaves the session untouched.
func Advance(s *model.BookingSession, keys []Key) (submissionReady bool, err error) {
	if !CanAdvance(s, keys) {
		return false, ErrIncomplete
	}
	if s.ActiveStep >= len(keys)-1 {
		return true, nil
	}
	s.ActiveStep++
	return false, nil
}

func Back(s *model.BookingSession) error {
	if s.ActiveStep <= 0 {
		return ErrAtFirstStep
	}
	s.ActiveStep--
	return nil
}

// SubmissionReady reports whether every visible step is complete.
func SubmissionReady(s *model.BookingSession, keys []Key) bool {
	for _, k := range keys {
		if !Complete(k, s) {
			return false
		}
	}
	return true
}
