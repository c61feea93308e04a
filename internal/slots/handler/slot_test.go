package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"clinicbook/internal/slots/repository"
	"clinicbook/internal/slots/service"
	apperrors "clinicbook/pkg/errors"
	httputil "clinicbook/pkg/http"
	"clinicbook/pkg/logger"
	"clinicbook/pkg/middleware"
	"clinicbook/pkg/model"
	"clinicbook/pkg/sealer"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const testKey = "lfQVRuulcL2iOhOJ2r8BYTweoSKwVAJnIF9U+AL+M60="

// ──────────────────────────────────────────────────────────────────────────────
// Mocks
// ──────────────────────────────────────────────────────────────────────────────

type mockSlotService struct {
	service.SlotService
	listFunc        func(ctx context.Context, userID string, filter model.SlotFilter, limit int, cursor *model.SlotCursor) (*service.SlotList, error)
	countFunc       func(ctx context.Context, filter model.SlotFilter) (int64, error)
	getByIDFunc     func(ctx context.Context, userID, id string) (*model.SlotView, error)
	releaseHeldFunc func(ctx context.Context, userID, slotID string) error
	watchFunc       func(ctx context.Context, filter model.SlotFilter, limit int, cursor *model.SlotCursor) (repository.Subscription, error)
}

func (m *mockSlotService) List(ctx context.Context, userID string, filter model.SlotFilter, limit int, cursor *model.SlotCursor) (*service.SlotList, error) {
	return m.listFunc(ctx, userID, filter, limit, cursor)
}

func (m *mockSlotService) Count(ctx context.Context, filter model.SlotFilter) (int64, error) {
	return m.countFunc(ctx, filter)
}

func (m *mockSlotService) GetByID(ctx context.Context, userID, id string) (*model.SlotView, error) {
	return m.getByIDFunc(ctx, userID, id)
}

func (m *mockSlotService) ReleaseHeld(ctx context.Context, userID, slotID string) error {
	return m.releaseHeldFunc(ctx, userID, slotID)
}

func (m *mockSlotService) Watch(ctx context.Context, filter model.SlotFilter, limit int, cursor *model.SlotCursor) (repository.Subscription, error) {
	return m.watchFunc(ctx, filter, limit, cursor)
}

type chanSubscription struct {
	pages  chan model.SlotPage
	closed chan struct{}
}

func newChanSubscription() *chanSubscription {
	return &chanSubscription{pages: make(chan model.SlotPage, 4), closed: make(chan struct{})}
}

func (s *chanSubscription) Pages() <-chan model.SlotPage { return s.pages }

func (s *chanSubscription) Close() {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
}

func newTestHandler(t *testing.T, svc service.SlotService) (*SlotHandler, *sealer.Sealer) {
	t.Helper()
	s, err := sealer.New(testKey)
	if err != nil {
		t.Fatalf("sealer: %v", err)
	}
	return NewSlotHandler(svc, s, logger.Discard()), s
}

func serve(h *SlotHandler, userID string, req *http.Request) *httptest.ResponseRecorder {
	router := httprouter.New()
	h.RegisterRoutes(router)
	if userID != "" {
		req = req.WithContext(middleware.WithUserID(req.Context(), userID))
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func slotAt(id string, hour int, occupant *string) *model.Slot {
	return &model.Slot{
		ID:                id,
		Datetime:          time.Date(2026, 3, 2, hour, 0, 0, 0, time.UTC),
		TherapistID:       "t1",
		TherapistName:     "Anna Nowak",
		AllowedProductIDs: []string{"p1"},
		IsFree:            true,
		OccupyingUserID:   occupant,
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// List
// ──────────────────────────────────────────────────────────────────────────────

func TestList_ParsesQueryAndSealsCursor(t *testing.T) {
	next := &model.SlotCursor{After: time.Date(2026, 3, 2, 13, 0, 0, 0, time.UTC), AfterID: "e"}

	var gotFilter model.SlotFilter
	var gotLimit int
	var gotCursor *model.SlotCursor
	svc := &mockSlotService{
		listFunc: func(_ context.Context, userID string, filter model.SlotFilter, limit int, cursor *model.SlotCursor) (*service.SlotList, error) {
			gotFilter, gotLimit, gotCursor = filter, limit, cursor
			return &service.SlotList{
				Slots: model.ViewSlots([]*model.Slot{slotAt("a", 9, nil)}, userID),
				Next:  next,
				Total: 7,
				Limit: 5,
			}, nil
		},
	}
	h, s := newTestHandler(t, svc)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/slots?therapist_id=t1&product_id=p1&free_only=true&limit=5", nil)
	w := serve(h, "u1", req)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if gotFilter != (model.SlotFilter{TherapistID: "t1", ProductID: "p1", FreeOnly: true}) {
		t.Errorf("filter = %+v", gotFilter)
	}
	if gotLimit != 5 || gotCursor != nil {
		t.Errorf("limit = %d, cursor = %v", gotLimit, gotCursor)
	}

	var resp httputil.CursorPageResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.TotalCount != 7 || resp.NextCursor == "" {
		t.Fatalf("response = %+v", resp)
	}

	var opened model.SlotCursor
	if err := s.Open(resp.NextCursor, &opened); err != nil {
		t.Fatalf("open cursor: %v", err)
	}
	if !opened.After.Equal(next.After) || opened.AfterID != "e" {
		t.Errorf("cursor = %+v", opened)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/v1/slots?cursor="+resp.NextCursor, nil)
	if w := serve(h, "u1", req); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if gotCursor == nil || gotCursor.AfterID != "e" {
		t.Errorf("cursor passed to service = %v", gotCursor)
	}
}

func TestList_RejectsBadInput(t *testing.T) {
	svc := &mockSlotService{
		listFunc: func(context.Context, string, model.SlotFilter, int, *model.SlotCursor) (*service.SlotList, error) {
			t.Fatal("service must not be called")
			return nil, nil
		},
	}
	h, _ := newTestHandler(t, svc)

	tests := []struct {
		name  string
		query string
	}{
		{"tampered cursor", "?cursor=not-a-token"},
		{"alphabetic limit", "?limit=abc"},
		{"negative limit", "?limit=-1"},
		{"bad bool", "?free_only=maybe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(h, "u1", httptest.NewRequest(http.MethodGet, "/api/v1/slots"+tt.query, nil))
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestList_RequiresUser(t *testing.T) {
	h, _ := newTestHandler(t, &mockSlotService{})
	w := serve(h, "", httptest.NewRequest(http.MethodGet, "/api/v1/slots", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Count / Get / Release
// ──────────────────────────────────────────────────────────────────────────────

func TestCount_RoutedBesideID(t *testing.T) {
	svc := &mockSlotService{
		countFunc: func(_ context.Context, filter model.SlotFilter) (int64, error) {
			if filter.ProductID != "p1" {
				t.Errorf("filter = %+v", filter)
			}
			return 3, nil
		},
	}
	h, _ := newTestHandler(t, svc)

	w := serve(h, "u1", httptest.NewRequest(http.MethodGet, "/api/v1/slots/count?product_id=p1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"count":3`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestGetByID_MapsNotFound(t *testing.T) {
	svc := &mockSlotService{
		getByIDFunc: func(context.Context, string, string) (*model.SlotView, error) {
			return nil, apperrors.NotFoundWithID("Slot", "x")
		},
	}
	h, _ := newTestHandler(t, svc)

	w := serve(h, "u1", httptest.NewRequest(http.MethodGet, "/api/v1/slots/x", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRelease(t *testing.T) {
	var gotUser, gotSlot string
	svc := &mockSlotService{
		releaseHeldFunc: func(_ context.Context, userID, slotID string) error {
			gotUser, gotSlot = userID, slotID
			return nil
		},
	}
	h, _ := newTestHandler(t, svc)

	w := serve(h, "u1", httptest.NewRequest(http.MethodPost, "/api/v1/slots/s1/release", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	if gotUser != "u1" || gotSlot != "s1" {
		t.Errorf("release(%q, %q)", gotUser, gotSlot)
	}
}

// ──────────────────────────────────────────────────────────────────────────────
// Watch
// ──────────────────────────────────────────────────────────────────────────────

func TestWatch_StreamsFrames(t *testing.T) {
	sub := newChanSubscription()
	svc := &mockSlotService{
		watchFunc: func(context.Context, model.SlotFilter, int, *model.SlotCursor) (repository.Subscription, error) {
			return sub, nil
		},
	}
	h, _ := newTestHandler(t, svc)

	router := httprouter.New()
	h.RegisterRoutes(router)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		router.ServeHTTP(w, r.WithContext(middleware.WithUserID(r.Context(), "u1")))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/slots/watch?therapist_id=t1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	other := "u2"
	sub.pages <- model.SlotPage{Slots: []*model.Slot{slotAt("a", 9, nil), slotAt("b", 10, &other)}}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame WatchFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(frame.Slots) != 2 {
		t.Fatalf("frame = %+v", frame)
	}
	if frame.Slots[0].Availability != model.AvailabilityFree || frame.Slots[1].Availability != model.AvailabilityTaken {
		t.Errorf("availability = %s, %s", frame.Slots[0].Availability, frame.Slots[1].Availability)
	}

	sub.pages <- model.SlotPage{Err: context.DeadlineExceeded}
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read: %v", err)
	}
	if frame.Error == "" {
		t.Error("expected error frame")
	}
}
