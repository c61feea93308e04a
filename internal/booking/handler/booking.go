package handler

import (
	"net/http"

	"clinicbook/internal/booking/service"
	apperrors "clinicbook/pkg/errors"
	httputil "clinicbook/pkg/http"
	"clinicbook/pkg/logger"
	"clinicbook/pkg/middleware"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service          service.BookingService
	submitMiddleware []func(http.Handler) http.Handler
	log              *logger.Logger
}

func NewBookingHandler(service service.BookingService, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service: service,
		log:     log,
	}
}

// WithSubmitMiddleware wraps the submit route only, outermost first.
func (h *BookingHandler) WithSubmitMiddleware(mws ...func(http.Handler) http.Handler) *BookingHandler {
	h.submitMiddleware = append(h.submitMiddleware, mws...)
	return h
}

type answerRequest struct {
	Value any `json:"value"`
}

type selectSlotRequest struct {
	SlotID string `json:"slot_id"`
}

func (h *BookingHandler) Start(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	wizard, err := h.service.Start(r.Context(), userID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, wizard)
}

func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	wizard, err := h.service.Get(r.Context(), userID, ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, wizard)
}

// Answer expects {"value": ...}. A null value clears the field.
func (h *BookingHandler) Answer(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req answerRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	wizard, err := h.service.Answer(r.Context(), userID, ps.ByName("id"), ps.ByName("field"), req.Value)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, wizard)
}

func (h *BookingHandler) SelectSlot(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req selectSlotRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.WriteError(w, err)
		return
	}

	wizard, err := h.service.SelectSlot(r.Context(), userID, ps.ByName("id"), req.SlotID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, wizard)
}

func (h *BookingHandler) Advance(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	wizard, err := h.service.Advance(r.Context(), userID, ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, wizard)
}

func (h *BookingHandler) Back(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	wizard, err := h.service.Back(r.Context(), userID, ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, wizard)
}

func (h *BookingHandler) Submit(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	visit, err := h.service.Submit(r.Context(), userID, ps.ByName("id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteCreated(w, visit)
}

func (h *BookingHandler) Abandon(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	if err := h.service.Abandon(r.Context(), userID, ps.ByName("id")); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookingHandler) Categories(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	categories, err := h.service.Categories(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, categories)
}

func (h *BookingHandler) VisitModes(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	modes, err := h.service.VisitModes(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, modes)
}

// Patients accepts optional is_adult, limit and offset query parameters.
func (h *BookingHandler) Patients(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var isAdult *bool
	if r.URL.Query().Has("is_adult") {
		v, err := httputil.QueryBool(r, "is_adult")
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		isAdult = &v
	}

	limit, err := httputil.QueryInt(r, "limit", 0)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	offset, err := httputil.QueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	patients, err := h.service.Patients(r.Context(), userID, isAdult, limit, offset)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, patients)
}

func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, apperrors.Unauthorized("authentication required"))
	}
	return userID, ok
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Start)
	router.GET("/api/v1/bookings/:id", h.Get)
	router.DELETE("/api/v1/bookings/:id", h.Abandon)
	router.PUT("/api/v1/bookings/:id/answers/:field", h.Answer)
	router.PUT("/api/v1/bookings/:id/slot", h.SelectSlot)
	router.POST("/api/v1/bookings/:id/advance", h.Advance)
	router.POST("/api/v1/bookings/:id/back", h.Back)
	router.POST("/api/v1/bookings/:id/submit", wrap(h.Submit, h.submitMiddleware...))

	router.GET("/api/v1/categories", h.Categories)
	router.GET("/api/v1/visit-modes", h.VisitModes)
	router.GET("/api/v1/patients", h.Patients)
}

func wrap(handle httprouter.Handle, mws ...func(http.Handler) http.Handler) httprouter.Handle {
	if len(mws) == 0 {
		return handle
	}
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		var next http.Handler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			handle(w, r, ps)
		})
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		next.ServeHTTP(w, r)
	}
}
