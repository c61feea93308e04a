package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"clinicbook/pkg/client"
	"clinicbook/pkg/config"
	"clinicbook/pkg/logger"
	"clinicbook/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type counterHandler struct {
	calls atomic.Int32
	idem  func(http.Handler) http.Handler
}

func (h *counterHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/ping", func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		userID, _ := middleware.UserIDFromContext(r.Context())
		_, _ = w.Write([]byte(userID))
	})
	router.Handler(http.MethodPost, "/api/v1/submit", h.idem(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := h.calls.Add(1)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte{byte('0' + n)})
	})))
}

func testConfig(requests int) *config.Config {
	log := logger.Discard()
	return &config.Config{
		Log:               log,
		Client:            client.NewClient(log),
		Port:              "8080",
		AuthMode:          config.AuthJWT,
		RateLimitRequests: requests,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    time.Second,
		IdempotencyTTL:    time.Hour,
		MaxRequestSize:    1 << 20,
		ReadTimeout:       time.Second,
		WriteTimeout:      time.Second,
		IdleTimeout:       time.Second,
		ShutdownTimeout:   time.Second,
	}
}

func newTestApp(t *testing.T, requests int, checks map[string]Check) (http.Handler, *middleware.JWTAuthenticator, *counterHandler) {
	t.Helper()
	cfg := testConfig(requests)
	auth := middleware.NewJWTAuthenticator(testSecret, "clinicbook")

	a := NewApplication(cfg)
	h := &counterHandler{idem: a.Idempotency()}
	a.SetApp(auth, checks, h)
	t.Cleanup(func() {
		a.idempotencyStore.Stop()
		a.rateLimiter.Stop()
	})
	return a.Handler(), auth, h
}

func request(t *testing.T, h http.Handler, auth *middleware.JWTAuthenticator, method, path, user string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if user != "" {
		token, err := auth.Issue(user, time.Minute)
		if err != nil {
			t.Fatalf("issue token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestApplication_HealthIsPublic(t *testing.T) {
	checks := map[string]Check{
		"mongo": func(context.Context) error { return nil },
	}
	h, auth, _ := newTestApp(t, 10, checks)

	if w := request(t, h, auth, http.MethodGet, "/health", "", nil); w.Code != http.StatusOK {
		t.Errorf("/health status = %d", w.Code)
	}
	w := request(t, h, auth, http.MethodGet, "/ready", "", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"mongo":"ok"`) {
		t.Errorf("/ready = %d %s", w.Code, w.Body.String())
	}
}

func TestApplication_ReadyReportsFailingBackend(t *testing.T) {
	checks := map[string]Check{
		"mongo": func(context.Context) error { return nil },
		"redis": func(context.Context) error { return errors.New("connection refused") },
	}
	h, auth, _ := newTestApp(t, 10, checks)

	w := request(t, h, auth, http.MethodGet, "/ready", "", nil)
	if w.Code != http.StatusServiceUnavailable || !strings.Contains(w.Body.String(), `"redis":"error"`) {
		t.Errorf("/ready = %d %s", w.Code, w.Body.String())
	}
}

func TestApplication_RequiresToken(t *testing.T) {
	h, auth, _ := newTestApp(t, 10, nil)

	if w := request(t, h, auth, http.MethodGet, "/api/v1/ping", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d", w.Code)
	}
	w := request(t, h, auth, http.MethodGet, "/api/v1/ping", "u1", nil)
	if w.Code != http.StatusOK || w.Body.String() != "u1" {
		t.Errorf("authenticated = %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get(middleware.RequestIDHeader) == "" {
		t.Error("missing request id header")
	}
}

func TestApplication_RateLimitsPerUser(t *testing.T) {
	h, auth, _ := newTestApp(t, 2, nil)

	for i := 0; i < 2; i++ {
		if w := request(t, h, auth, http.MethodGet, "/api/v1/ping", "u1", nil); w.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, w.Code)
		}
	}
	if w := request(t, h, auth, http.MethodGet, "/api/v1/ping", "u1", nil); w.Code != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", w.Code)
	}
	if w := request(t, h, auth, http.MethodGet, "/api/v1/ping", "u2", nil); w.Code != http.StatusOK {
		t.Errorf("other user status = %d", w.Code)
	}
}

func TestApplication_IdempotentSubmit(t *testing.T) {
	h, auth, counter := newTestApp(t, 10, nil)
	key := map[string]string{middleware.IdempotencyHeader: "k1"}

	first := request(t, h, auth, http.MethodPost, "/api/v1/submit", "u1", key)
	second := request(t, h, auth, http.MethodPost, "/api/v1/submit", "u1", key)
	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("status = %d / %d", first.Code, second.Code)
	}
	if second.Body.String() != first.Body.String() || second.Header().Get("Idempotent-Replayed") != "true" {
		t.Errorf("second response not replayed: %q", second.Body.String())
	}

	// Keys are scoped per user.
	request(t, h, auth, http.MethodPost, "/api/v1/submit", "u2", key)
	if got := counter.calls.Load(); got != 2 {
		t.Errorf("handler calls = %d, want 2", got)
	}
}
