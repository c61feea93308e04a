package validation

import (
	"errors"
	"testing"
	"time"

	"clinicbook/pkg/model"
)

func mustNew(t *testing.T) *Validator {
	t.Helper()
	v, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return v
}

func TestStruct_Slot(t *testing.T) {
	v := mustNew(t)

	valid := &model.Slot{
		Datetime:          time.Now().Add(time.Hour),
		TherapistID:       "t1",
		TherapistName:     "Anna Nowak",
		AllowedProductIDs: []string{"p1"},
		IsFree:            true,
	}
	if err := Struct(v, valid); err != nil {
		t.Fatalf("valid slot rejected: %v", err)
	}

	invalid := &model.Slot{TherapistName: "A", AllowedProductIDs: []string{"p1", "p1"}}
	err := Struct(v, invalid)

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	fields := map[string]bool{}
	for _, e := range verrs {
		fields[e.Field] = true
	}
	for _, want := range []string{"datetime", "therapist_id", "therapist_name", "allowed_product_ids"} {
		if !fields[want] {
			t.Errorf("expected error for %s, got %v", want, verrs)
		}
	}
}

func TestStruct_VisitPaymentMethod(t *testing.T) {
	v := mustNew(t)
	visit := &model.Visit{
		UserCreatingID: "u1",
		TherapistID:    "t1",
		PatientID:      "pt1",
		CategoryID:     "c1",
		ProductID:      "p1",
		VisitModeID:    "m1",
		DateSlotID:     "s1",
		PaymentMethod:  "cash",
	}

	err := Struct(v, visit)
	var verrs ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) != 1 || verrs[0].Field != "payment_method" {
		t.Fatalf("expected single payment_method error, got %v", err)
	}

	visit.PaymentMethod = model.PaymentOnPremises
	if err := Struct(v, visit); err != nil {
		t.Fatalf("valid visit rejected: %v", err)
	}
}

func TestVar_ReportsFieldName(t *testing.T) {
	v := mustNew(t)

	err := Var(v, "categoryId", "", "required")
	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %v", err)
	}
	if verrs[0].Field != "categoryId" || verrs[0].Message != "categoryId is required" {
		t.Errorf("unexpected error %+v", verrs[0])
	}

	if err := Var(v, "categoryId", "adhd", "required"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidationErrors_Details(t *testing.T) {
	errs := ValidationErrors{{Field: "a", Message: "a is required"}}
	fields, ok := errs.Details()["fields"].(map[string]any)
	if !ok || fields["a"] != "a is required" {
		t.Errorf("unexpected details %v", errs.Details())
	}
}
