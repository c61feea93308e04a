package service

import (
	"context"
	"testing"
	"time"

	bookingerrors "clinicbook/internal/booking/errors"
	"clinicbook/internal/booking/reference"
	"clinicbook/internal/booking/repository"
	"clinicbook/internal/booking/steps"
	"clinicbook/internal/booking/validator"
	slotsrepo "clinicbook/internal/slots/repository"
	"clinicbook/internal/slots/reservation"
	slotservice "clinicbook/internal/slots/service"
	slotvalidator "clinicbook/internal/slots/validator"
	visitsrepo "clinicbook/internal/visits/repository"
	visitservice "clinicbook/internal/visits/service"
	"clinicbook/pkg/config"
	apperrors "clinicbook/pkg/errors"
	"clinicbook/pkg/logger"
	"clinicbook/pkg/model"
)

// ────────────────────────────────────────────────────────────────────────────
// Fixture
// ────────────────────────────────────────────────────────────────────────────

type fixture struct {
	svc   BookingService
	slots slotsrepo.SlotRepository
	ctx   context.Context
}

func testCatalog() *reference.MemoryCatalog {
	return reference.NewMemoryCatalog().
		AddCategories(
			model.Category{ID: "adhd", Name: "ADHD"},
			model.Category{ID: "autism", Name: "Autism"},
		).
		AddProducts(
			model.Product{ID: "consult", CategoryID: "adhd", ForAdults: true, VisitModeIDs: []string{"office", "online"}},
			model.Product{ID: "therapy", CategoryID: "adhd", ForAdults: true, VisitModeIDs: []string{"office", "ghost"}},
			model.Product{ID: "play", CategoryID: "adhd", ForChildren: true, VisitModeIDs: []string{"office"}},
			model.Product{ID: "diagnosis", CategoryID: "autism", ForAdults: true, VisitModeIDs: []string{"office"}},
		).
		AddVisitModes(
			model.VisitMode{ID: "office", Name: "onsite"},
			model.VisitMode{ID: "online", Name: model.VisitModeRemote},
		).
		AddPatients(
			model.Patient{ID: "p-adult", OwnerID: "u1", Name: "Basia", IsAdult: true},
			model.Patient{ID: "p-child", OwnerID: "u1", Name: "Adam", IsAdult: false},
			model.Patient{ID: "p-other", OwnerID: "u2", Name: "Celina", IsAdult: true},
		)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithCatalog(t, testCatalog())
}

func newFixtureWithCatalog(t *testing.T, catalog reference.Catalog) *fixture {
	t.Helper()

	log := logger.Discard()
	cfg := &config.Config{
		Log:             log,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		SlotPageSize:    model.DefaultSlotPageSize,
		MaxSlotPageSize: 10,
	}

	slots := slotsrepo.NewMemorySlotRepository()
	slotSvc := slotservice.NewSlotService(
		slots,
		reservation.NewReserver(slots, nil, log),
		slotvalidator.NewSlotValidator(log),
		cfg,
	)
	visitSvc := visitservice.NewVisitService(visitsrepo.NewMemoryVisitRepository(slots), cfg)

	return &fixture{
		svc: NewBookingService(
			repository.NewMemorySessionRepository(time.Hour),
			catalog,
			slotSvc,
			visitSvc,
			validator.NewAnswerValidator(log),
			cfg,
		),
		slots: slots,
		ctx:   context.Background(),
	}
}

func (f *fixture) addSlot(t *testing.T, products ...string) string {
	t.Helper()
	slot := &model.Slot{
		Datetime:          time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC),
		TherapistID:       "t1",
		TherapistName:     "Anna Nowak",
		AllowedProductIDs: products,
		IsFree:            true,
	}
	if err := f.slots.Create(f.ctx, slot); err != nil {
		t.Fatalf("create slot: %v", err)
	}
	return slot.ID
}

func (f *fixture) occupant(t *testing.T, slotID string) string {
	t.Helper()
	slot, err := f.slots.FindByID(f.ctx, slotID)
	if err != nil {
		t.Fatalf("find slot: %v", err)
	}
	if slot.OccupyingUserID == nil {
		return ""
	}
	return *slot.OccupyingUserID
}

func (f *fixture) answer(t *testing.T, id, field string, value any) *Wizard {
	t.Helper()
	w, err := f.svc.Answer(f.ctx, "u1", id, field, value)
	if err != nil {
		t.Fatalf("answer %s=%v: %v", field, value, err)
	}
	return w
}

// startAt answers age, category and product for u1.
func (f *fixture) startAt(t *testing.T, product string) string {
	t.Helper()
	w, err := f.svc.Start(f.ctx, "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	id := w.Session.ID
	f.answer(t, id, "isAdult", true)
	f.answer(t, id, "categoryId", "adhd")
	f.answer(t, id, "productId", product)
	return id
}

// flakyCatalog serves the test catalog until an outage is switched on.
type flakyCatalog struct {
	*reference.MemoryCatalog
	modesDown    bool
	productsDown bool
}

func (c *flakyCatalog) VisitModes(ctx context.Context) ([]model.VisitMode, error) {
	if c.modesDown {
		return nil, bookingerrors.ErrStoreUnavailable
	}
	return c.MemoryCatalog.VisitModes(ctx)
}

func (c *flakyCatalog) ProductsByCategoryAndAge(ctx context.Context, categoryID string, forAdults, forChildren bool) ([]model.Product, error) {
	if c.productsDown {
		return nil, bookingerrors.ErrStoreUnavailable
	}
	return c.MemoryCatalog.ProductsByCategoryAndAge(ctx, categoryID, forAdults, forChildren)
}

func sameKeys(a, b []steps.Key) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// ────────────────────────────────────────────────────────────────────────────
// Happy path
// ────────────────────────────────────────────────────────────────────────────

func TestBookingService_HappyPath(t *testing.T) {
	f := newFixture(t)
	slotID := f.addSlot(t, "therapy")

	w, err := f.svc.Start(f.ctx, "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if w.ActiveStep != steps.Age || !sameKeys(w.Steps, []steps.Key{steps.Age, steps.Category, steps.Date}) {
		t.Fatalf("initial wizard = %v at %s", w.Steps, w.ActiveStep)
	}
	id := w.Session.ID

	f.answer(t, id, "isAdult", true)
	w = f.answer(t, id, "categoryId", "adhd")
	if !sameKeys(w.Steps, []steps.Key{steps.Age, steps.Category, steps.Product, steps.Date}) {
		t.Fatalf("steps after category = %v", w.Steps)
	}

	w = f.answer(t, id, "productId", "therapy")
	if w.Session.VisitModeID != "office" {
		t.Errorf("single mode not auto-selected: %q", w.Session.VisitModeID)
	}
	want := []steps.Key{steps.Age, steps.Category, steps.Product, steps.Patient, steps.Date, steps.Payment}
	if !sameKeys(w.Steps, want) {
		t.Fatalf("steps after product = %v, want %v", w.Steps, want)
	}

	f.answer(t, id, "patientId", "p-adult")
	if _, err := f.svc.SelectSlot(f.ctx, "u1", id, slotID); err != nil {
		t.Fatalf("select slot: %v", err)
	}
	if got := f.occupant(t, slotID); got != "u1" {
		t.Fatalf("occupant = %q, want u1", got)
	}
	w = f.answer(t, id, "paymentMethod", model.PaymentOnPremises)
	if !w.SubmissionReady {
		t.Fatal("expected submission ready")
	}

	for i := 1; i < len(want); i++ {
		w, err = f.svc.Advance(f.ctx, "u1", id)
		if err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
		if w.ActiveStep != want[i] {
			t.Fatalf("active step = %s, want %s", w.ActiveStep, want[i])
		}
	}

	visit, err := f.svc.Submit(f.ctx, "u1", id)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if visit.TherapistID != "t1" || visit.PatientID != "p-adult" || !visit.IsAdult {
		t.Errorf("visit = %+v", visit)
	}

	slot, _ := f.slots.FindByID(f.ctx, slotID)
	if !slot.IsBooked() {
		t.Error("slot not booked after submit")
	}
	if _, err := f.svc.Get(f.ctx, "u1", id); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("session should be gone after submit, err = %v", err)
	}
}

func TestBookingService_RemoteMode(t *testing.T) {
	f := newFixture(t)
	id := f.startAt(t, "consult")

	w := f.answer(t, id, "visitModeId", "online")
	if w.Session.PaymentMethod != model.PaymentOnline {
		t.Errorf("payment = %q, want online", w.Session.PaymentMethod)
	}
	for _, k := range w.Steps {
		if k == steps.Payment {
			t.Error("payment step visible for remote visit")
		}
	}

	_, err := f.svc.Answer(f.ctx, "u1", id, "paymentMethod", model.PaymentOnPremises)
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Errorf("err = %v, want validation", err)
	}

	w = f.answer(t, id, "visitModeId", "office")
	if w.Session.PaymentMethod != "" {
		t.Errorf("payment kept after leaving remote mode: %q", w.Session.PaymentMethod)
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Slot handling
// ────────────────────────────────────────────────────────────────────────────

func TestBookingService_CascadeReleasesHeldSlot(t *testing.T) {
	f := newFixture(t)
	slotID := f.addSlot(t, "therapy")
	id := f.startAt(t, "therapy")

	if _, err := f.svc.SelectSlot(f.ctx, "u1", id, slotID); err != nil {
		t.Fatalf("select: %v", err)
	}

	w := f.answer(t, id, "categoryId", "autism")
	if w.Session.SlotID != "" {
		t.Errorf("slot kept after category change: %q", w.Session.SlotID)
	}
	if got := f.occupant(t, slotID); got != "" {
		t.Errorf("occupant = %q, want released", got)
	}
}

func TestBookingService_ReselectHandsOverSlot(t *testing.T) {
	f := newFixture(t)
	first := f.addSlot(t, "therapy")
	second := f.addSlot(t, "therapy")
	id := f.startAt(t, "therapy")

	if _, err := f.svc.SelectSlot(f.ctx, "u1", id, first); err != nil {
		t.Fatalf("select first: %v", err)
	}
	w, err := f.svc.SelectSlot(f.ctx, "u1", id, second)
	if err != nil {
		t.Fatalf("select second: %v", err)
	}

	if w.Session.SlotID != second {
		t.Errorf("session slot = %q, want %q", w.Session.SlotID, second)
	}
	if got := f.occupant(t, first); got != "" {
		t.Errorf("first slot occupant = %q, want released", got)
	}
	if got := f.occupant(t, second); got != "u1" {
		t.Errorf("second slot occupant = %q, want u1", got)
	}
}

func TestBookingService_SameAnswerKeepsHeldSlot(t *testing.T) {
	f := newFixture(t)
	slotID := f.addSlot(t, "therapy")
	id := f.startAt(t, "therapy")
	f.answer(t, id, "patientId", "p-adult")

	if _, err := f.svc.SelectSlot(f.ctx, "u1", id, slotID); err != nil {
		t.Fatalf("select: %v", err)
	}

	tests := []struct {
		field string
		value any
	}{
		{"categoryId", "adhd"},
		{"productId", "therapy"},
		{"visitModeId", "office"},
		{"patientId", "p-adult"},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			w := f.answer(t, id, tt.field, tt.value)
			if w.Session.SlotID != slotID || w.Session.PatientID != "p-adult" {
				t.Errorf("session after re-answer = %+v", w.Session)
			}
			if got := f.occupant(t, slotID); got != "u1" {
				t.Errorf("occupant = %q, want u1", got)
			}
		})
	}
}

func TestBookingService_SelectSlotRejects(t *testing.T) {
	f := newFixture(t)
	taken := f.addSlot(t, "therapy")
	other := "u2"
	if err := f.slots.UpdateOccupancy(f.ctx, taken, &other); err != nil {
		t.Fatalf("occupy: %v", err)
	}
	wrongProduct := f.addSlot(t, "consult")
	id := f.startAt(t, "therapy")

	tests := []struct {
		name     string
		slotID   string
		wantCode string
	}{
		{name: "held by another user", slotID: taken, wantCode: apperrors.CodeConflict},
		{name: "product not offered", slotID: wrongProduct, wantCode: apperrors.CodeValidation},
		{name: "unknown slot", slotID: "missing", wantCode: apperrors.CodeNotFound},
		{name: "empty id", slotID: "", wantCode: apperrors.CodeInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.SelectSlot(f.ctx, "u1", id, tt.slotID)
			if !apperrors.HasCode(err, tt.wantCode) {
				t.Errorf("err = %v, want %s", err, tt.wantCode)
			}
		})
	}
}

func TestBookingService_Abandon(t *testing.T) {
	f := newFixture(t)
	slotID := f.addSlot(t, "therapy")
	id := f.startAt(t, "therapy")

	if _, err := f.svc.SelectSlot(f.ctx, "u1", id, slotID); err != nil {
		t.Fatalf("select: %v", err)
	}
	if err := f.svc.Abandon(f.ctx, "u1", id); err != nil {
		t.Fatalf("abandon: %v", err)
	}

	if got := f.occupant(t, slotID); got != "" {
		t.Errorf("occupant = %q, want released", got)
	}
	if _, err := f.svc.Get(f.ctx, "u1", id); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Catalog outages
// ────────────────────────────────────────────────────────────────────────────

// bookedUpTo walks a session through every answer and a held slot.
func (f *fixture) bookedUpTo(t *testing.T) (id, slotID string) {
	t.Helper()
	slotID = f.addSlot(t, "therapy")
	id = f.startAt(t, "therapy")
	f.answer(t, id, "patientId", "p-adult")
	if _, err := f.svc.SelectSlot(f.ctx, "u1", id, slotID); err != nil {
		t.Fatalf("select: %v", err)
	}
	f.answer(t, id, "paymentMethod", model.PaymentOnPremises)
	return id, slotID
}

func TestBookingService_CatalogOutageKeepsAnswers(t *testing.T) {
	tests := []struct {
		name   string
		outage func(c *flakyCatalog, down bool)
	}{
		{name: "visit modes", outage: func(c *flakyCatalog, down bool) { c.modesDown = down }},
		{name: "products", outage: func(c *flakyCatalog, down bool) { c.productsDown = down }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			catalog := &flakyCatalog{MemoryCatalog: testCatalog()}
			f := newFixtureWithCatalog(t, catalog)
			id, slotID := f.bookedUpTo(t)

			tt.outage(catalog, true)
			if _, err := f.svc.Get(f.ctx, "u1", id); err != nil {
				t.Fatalf("get during outage: %v", err)
			}
			if _, err := f.svc.Advance(f.ctx, "u1", id); !apperrors.HasCode(err, apperrors.CodeUnavailable) {
				t.Errorf("advance during outage: err = %v, want unavailable", err)
			}
			if _, err := f.svc.Back(f.ctx, "u1", id); !apperrors.HasCode(err, apperrors.CodeUnavailable) {
				t.Errorf("back during outage: err = %v, want unavailable", err)
			}
			if got := f.occupant(t, slotID); got != "u1" {
				t.Errorf("occupant during outage = %q, want u1", got)
			}
			tt.outage(catalog, false)

			w, err := f.svc.Get(f.ctx, "u1", id)
			if err != nil {
				t.Fatalf("get after outage: %v", err)
			}
			sess := w.Session
			if sess.ProductID != "therapy" || sess.VisitModeID != "office" || sess.PatientID != "p-adult" ||
				sess.SlotID != slotID || sess.PaymentMethod != model.PaymentOnPremises {
				t.Errorf("answers lost across outage: %+v", sess)
			}
			if got := f.occupant(t, slotID); got != "u1" {
				t.Errorf("occupant after outage = %q, want u1", got)
			}
			if !w.SubmissionReady {
				t.Error("expected submission ready after outage")
			}
		})
	}
}

func TestBookingService_CatalogOutageRejectsOptionAnswers(t *testing.T) {
	catalog := &flakyCatalog{MemoryCatalog: testCatalog()}
	f := newFixtureWithCatalog(t, catalog)
	id := f.startAt(t, "consult")

	catalog.modesDown = true
	if _, err := f.svc.Answer(f.ctx, "u1", id, "visitModeId", "office"); !apperrors.HasCode(err, apperrors.CodeUnavailable) {
		t.Errorf("mode answer: err = %v, want unavailable", err)
	}
	catalog.modesDown = false

	catalog.productsDown = true
	if _, err := f.svc.Answer(f.ctx, "u1", id, "productId", "therapy"); !apperrors.HasCode(err, apperrors.CodeUnavailable) {
		t.Errorf("product answer: err = %v, want unavailable", err)
	}
	catalog.productsDown = false

	w, err := f.svc.Get(f.ctx, "u1", id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if w.Session.ProductID != "consult" || w.Session.VisitModeID != "" {
		t.Errorf("session changed by rejected answers: %+v", w.Session)
	}
}

// ────────────────────────────────────────────────────────────────────────────
// Validation and transitions
// ────────────────────────────────────────────────────────────────────────────

func TestBookingService_AnswerRejects(t *testing.T) {
	f := newFixture(t)
	id := f.startAt(t, "therapy")

	tests := []struct {
		name  string
		field string
		value any
	}{
		{name: "unknown category", field: "categoryId", value: "cardiology"},
		{name: "children product for adult", field: "productId", value: "play"},
		{name: "mode not offered", field: "visitModeId", value: "online"},
		{name: "child patient for adult visit", field: "patientId", value: "p-child"},
		{name: "someone else's patient", field: "patientId", value: "p-other"},
		{name: "bad payment method", field: "paymentMethod", value: "cash"},
		{name: "slot through answers", field: "slotId", value: "s1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Answer(f.ctx, "u1", id, tt.field, tt.value)
			if !apperrors.HasCode(err, apperrors.CodeValidation) {
				t.Errorf("err = %v, want validation", err)
			}
		})
	}

	w, err := f.svc.Get(f.ctx, "u1", id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if w.Session.CategoryID != "adhd" || w.Session.ProductID != "therapy" {
		t.Errorf("rejected answers changed the session: %+v", w.Session)
	}
}

func TestBookingService_Transitions(t *testing.T) {
	f := newFixture(t)

	w, err := f.svc.Start(f.ctx, "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	id := w.Session.ID

	if _, err := f.svc.Back(f.ctx, "u1", id); !apperrors.HasCode(err, apperrors.CodeConflict) {
		t.Errorf("back at first step: err = %v", err)
	}
	if _, err := f.svc.Advance(f.ctx, "u1", id); !apperrors.HasCode(err, apperrors.CodeNotReady) {
		t.Errorf("advance incomplete: err = %v", err)
	}
	if _, err := f.svc.Submit(f.ctx, "u1", id); !apperrors.HasCode(err, apperrors.CodeNotReady) {
		t.Errorf("submit incomplete: err = %v", err)
	}

	f.answer(t, id, "isAdult", false)
	w, err = f.svc.Advance(f.ctx, "u1", id)
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if w.ActiveStep != steps.Category || len(w.Options.Categories) != 2 {
		t.Errorf("active = %s options = %+v", w.ActiveStep, w.Options)
	}

	w, err = f.svc.Back(f.ctx, "u1", id)
	if err != nil {
		t.Fatalf("back: %v", err)
	}
	if w.ActiveStep != steps.Age {
		t.Errorf("active = %s, want age", w.ActiveStep)
	}
}

func TestBookingService_Ownership(t *testing.T) {
	f := newFixture(t)
	w, err := f.svc.Start(f.ctx, "u1")
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if _, err := f.svc.Get(f.ctx, "u2", w.Session.ID); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("get: err = %v", err)
	}
	if _, err := f.svc.Answer(f.ctx, "u2", w.Session.ID, "isAdult", true); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("answer: err = %v", err)
	}
	if err := f.svc.Abandon(f.ctx, "u2", w.Session.ID); !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("abandon: err = %v", err)
	}
}
