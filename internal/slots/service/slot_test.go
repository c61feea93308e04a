package service

import (
	"context"
	"errors"
	"testing"
	"time"

	slotserrors "clinicbook/internal/slots/errors"
	"clinicbook/internal/slots/repository"
	"clinicbook/internal/slots/reservation"
	"clinicbook/internal/slots/validator"
	"clinicbook/pkg/config"
	apperrors "clinicbook/pkg/errors"
	"clinicbook/pkg/logger"
	"clinicbook/pkg/model"
)

// ──────────────────────────────────────────────────────────────────────────────
// Helpers
// ──────────────────────────────────────────────────────────────────────────────

func testConfig() *config.Config {
	return &config.Config{
		Log:             logger.Discard(),
		ReadTimeout:     time.Second,
		SlotPageSize:    model.DefaultSlotPageSize,
		MaxSlotPageSize: 10,
	}
}

func newService(t *testing.T, repo repository.SlotRepository) SlotService {
	t.Helper()
	cfg := testConfig()
	return NewSlotService(
		repo,
		reservation.NewReserver(repo, nil, cfg.Log),
		validator.NewSlotValidator(cfg.Log),
		cfg,
	)
}

func newSlot(id string, hour int) *model.Slot {
	return &model.Slot{
		ID:                id,
		Datetime:          time.Date(2026, 3, 2, hour, 0, 0, 0, time.UTC),
		TherapistID:       "t1",
		TherapistName:     "Anna Nowak",
		AllowedProductIDs: []string{"p1"},
		IsFree:            true,
	}
}

func seeded(t *testing.T, slots ...*model.Slot) repository.SlotRepository {
	t.Helper()
	repo := repository.NewMemorySlotRepository()
	for _, s := range slots {
		if err := repo.Create(context.Background(), s); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return repo
}

func strPtr(s string) *string { return &s }

type failingRepo struct {
	repository.SlotRepository
	err error
}

func (f *failingRepo) Count(context.Context, model.SlotFilter) (int64, error) {
	return 0, f.err
}

func (f *failingRepo) List(context.Context, model.SlotFilter, int, *model.SlotCursor) (*model.SlotPage, error) {
	return nil, f.err
}

func (f *failingRepo) UpdateOccupancy(context.Context, string, *string) error {
	return f.err
}

// ──────────────────────────────────────────────────────────────────────────────
// Create / Get
// ──────────────────────────────────────────────────────────────────────────────

func TestCreate_SanitizesAndValidates(t *testing.T) {
	svc := newService(t, seeded(t))

	slot := newSlot("", 9)
	slot.TherapistName = "  anna   nowak "
	slot.AllowedProductIDs = []string{" p1 ", "p1", ""}
	if err := svc.Create(context.Background(), slot); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slot.ID == "" {
		t.Error("expected generated ID")
	}
	if len(slot.AllowedProductIDs) != 1 || slot.AllowedProductIDs[0] != "p1" {
		t.Errorf("allowed products = %v", slot.AllowedProductIDs)
	}

	invalid := newSlot("", 9)
	invalid.TherapistID = ""
	err := svc.Create(context.Background(), invalid)
	if !apperrors.HasCode(err, apperrors.CodeValidation) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestGetByID_Availability(t *testing.T) {
	held := newSlot("s1", 9)
	held.OccupyingUserID = strPtr("u1")
	svc := newService(t, seeded(t, held))

	tests := []struct {
		user string
		want model.Availability
	}{
		{"u1", model.AvailabilityMine},
		{"u2", model.AvailabilityTaken},
	}
	for _, tt := range tests {
		view, err := svc.GetByID(context.Background(), tt.user, "s1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if view.Availability != tt.want {
			t.Errorf("user %s: availability = %s, want %s", tt.user, view.Availability, tt.want)
		}
	}

	_, err := svc.GetByID(context.Background(), "u1", "missing")
	if !apperrors.HasCode(err, apperrors.CodeNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// List / Count
// ──────────────────────────────────────────────────────────────────────────────

func TestList_PagesWithTotal(t *testing.T) {
	var slots []*model.Slot
	for i, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		slots = append(slots, newSlot(id, 8+i))
	}
	svc := newService(t, seeded(t, slots...))

	first, err := svc.List(context.Background(), "u1", model.SlotFilter{TherapistID: "t1"}, 0, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Total != 7 {
		t.Errorf("total = %d, want 7", first.Total)
	}
	if first.Limit != model.DefaultSlotPageSize || len(first.Slots) != model.DefaultSlotPageSize {
		t.Errorf("limit = %d, slots = %d", first.Limit, len(first.Slots))
	}
	if first.Next == nil {
		t.Fatal("expected next cursor")
	}

	second, err := svc.List(context.Background(), "u1", model.SlotFilter{TherapistID: "t1"}, 0, first.Next)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(second.Slots) != 2 || second.Next != nil {
		t.Errorf("second page: %d slots, next=%v", len(second.Slots), second.Next)
	}
}

func TestList_ClampsLimit(t *testing.T) {
	svc := newService(t, seeded(t))
	list, err := svc.List(context.Background(), "u1", model.SlotFilter{}, 500, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if list.Limit != 10 {
		t.Errorf("limit = %d, want clamp to 10", list.Limit)
	}
}

func TestList_StoreUnavailable(t *testing.T) {
	svc := newService(t, &failingRepo{err: slotserrors.ErrStoreUnavailable})
	_, err := svc.List(context.Background(), "u1", model.SlotFilter{}, 5, nil)
	if !apperrors.HasCode(err, apperrors.CodeUnavailable) {
		t.Fatalf("err = %v, want unavailable", err)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Claim / Release
// ──────────────────────────────────────────────────────────────────────────────

func TestClaim_MapsOccupancyFailure(t *testing.T) {
	svc := newService(t, &failingRepo{err: slotserrors.ErrStoreUnavailable})

	err := svc.Claim(context.Background(), "u1", "s1", "")
	appErr := apperrors.AsAppError(err)
	if appErr.Code != apperrors.CodeOccupancyFailed {
		t.Fatalf("code = %s, want %s", appErr.Code, apperrors.CodeOccupancyFailed)
	}
	if appErr.Details["retryable"] != true {
		t.Errorf("retryable = %v, want true", appErr.Details["retryable"])
	}
	if !errors.Is(err, slotserrors.ErrStoreUnavailable) {
		t.Error("cause should remain inspectable")
	}
}

func TestReleaseHeld(t *testing.T) {
	mine := newSlot("mine", 9)
	mine.OccupyingUserID = strPtr("u1")
	theirs := newSlot("theirs", 10)
	theirs.OccupyingUserID = strPtr("u2")
	booked := newSlot("booked", 11)
	booked.OccupyingUserID = strPtr("u1")
	booked.VisitID = strPtr("v1")
	booked.IsFree = false
	free := newSlot("free", 12)

	repo := seeded(t, mine, theirs, booked, free)
	svc := newService(t, repo)
	ctx := context.Background()

	tests := []struct {
		name     string
		slotID   string
		wantCode string
	}{
		{"held by me", "mine", ""},
		{"free is a no-op", "free", ""},
		{"held by other", "theirs", apperrors.CodeForbidden},
		{"booked", "booked", apperrors.CodeConflict},
		{"missing", "ghost", apperrors.CodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ReleaseHeld(ctx, "u1", tt.slotID)
			if tt.wantCode == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !apperrors.HasCode(err, tt.wantCode) {
				t.Fatalf("err = %v, want %s", err, tt.wantCode)
			}
		})
	}

	s, _ := repo.FindByID(ctx, "mine")
	if s.IsOccupied() {
		t.Error("slot should be released")
	}
	s, _ = repo.FindByID(ctx, "theirs")
	if !s.IsOccupiedBy("u2") {
		t.Error("other user's claim must be untouched")
	}
}

func TestReleaseIfHeld(t *testing.T) {
	mine := newSlot("mine", 9)
	mine.OccupyingUserID = strPtr("u1")
	reclaimed := newSlot("reclaimed", 10)
	reclaimed.OccupyingUserID = strPtr("u2")

	svc := newService(t, seeded(t, mine, reclaimed))
	ctx := context.Background()

	released, err := svc.ReleaseIfHeld(ctx, "u1", "mine")
	if err != nil || !released {
		t.Errorf("mine: released=%v err=%v", released, err)
	}
	released, err = svc.ReleaseIfHeld(ctx, "u1", "reclaimed")
	if err != nil || released {
		t.Errorf("reclaimed: released=%v err=%v", released, err)
	}
	released, err = svc.ReleaseIfHeld(ctx, "u1", "deleted")
	if err != nil || released {
		t.Errorf("deleted: released=%v err=%v", released, err)
	}
}
