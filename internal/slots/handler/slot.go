package handler

import (
	"context"
	"net/http"
	"time"

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

const (
	watchWriteWait  = 10 * time.Second
	watchPongWait   = 60 * time.Second
	watchPingPeriod = (watchPongWait * 9) / 10
)

type SlotHandler struct {
	service  service.SlotService
	sealer   *sealer.Sealer
	upgrader websocket.Upgrader
	log      *logger.Logger
}

func NewSlotHandler(service service.SlotService, sealer *sealer.Sealer, log *logger.Logger) *SlotHandler {
	return &SlotHandler{
		service: service,
		sealer:  sealer,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		log: log,
	}
}

// WatchFrame is one message on the live slot feed.
type WatchFrame struct {
	Slots      []model.SlotView `json:"slots"`
	NextCursor string           `json:"next_cursor,omitempty"`
	Error      string           `json:"error,omitempty"`
}

func (h *SlotHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, apperrors.Unauthorized("authentication required"))
		return
	}

	filter, limit, cursor, err := h.parseQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	list, err := h.service.List(r.Context(), userID, filter, limit, cursor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	next, err := h.sealCursor(list.Next)
	if err != nil {
		h.log.Error("failed to seal cursor", "handler", "List", "error", err)
		httputil.WriteError(w, apperrors.Internal("Failed to encode cursor", err))
		return
	}

	httputil.WriteCursorPage(w, list.Slots, next, list.Limit, list.Total)
}

func (h *SlotHandler) Count(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	filter, err := parseFilter(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	count, err := h.service.Count(r.Context(), filter)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, map[string]int64{"count": count})
}

func (h *SlotHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, apperrors.Unauthorized("authentication required"))
		return
	}

	id := ps.ByName("id")
	if id == "" {
		httputil.WriteError(w, apperrors.InvalidInput("ID parameter is required"))
		return
	}

	slot, err := h.service.GetByID(r.Context(), userID, id)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteSuccess(w, slot)
}

func (h *SlotHandler) Release(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, apperrors.Unauthorized("authentication required"))
		return
	}

	if err := h.service.ReleaseHeld(r.Context(), userID, ps.ByName("id")); err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteNoContent(w)
}

// Watch upgrades to a websocket and streams a fresh page every time the
// observed page changes. The feed ends when the client disconnects.
func (h *SlotHandler) Watch(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		httputil.WriteError(w, apperrors.Unauthorized("authentication required"))
		return
	}

	filter, limit, cursor, err := h.parseQuery(r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	sub, err := h.service.Watch(ctx, filter, limit, cursor)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "handler", "Watch", "error", err)
		return
	}
	defer conn.Close()

	go h.readPump(conn, cancel)

	ping := time.NewTicker(watchPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case page, ok := <-sub.Pages():
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "subscription closed"))
				return
			}

			frame := h.frame(page, userID)
			_ = conn.SetWriteDeadline(time.Now().Add(watchWriteWait))
			if err := conn.WriteJSON(frame); err != nil {
				h.log.Debug("websocket write failed", "handler", "Watch", "user_id", userID, "error", err)
				return
			}
		}
	}
}

// readPump drains client frames so pongs and close frames are processed.
func (h *SlotHandler) readPump(conn *websocket.Conn, cancel context.CancelFunc) {
	defer cancel()
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(watchPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(watchPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *SlotHandler) frame(page model.SlotPage, userID string) WatchFrame {
	if page.Err != nil {
		h.log.Warn("slot subscription error", "user_id", userID, "error", page.Err)
		return WatchFrame{Slots: []model.SlotView{}, Error: "slot store unavailable"}
	}

	next, err := h.sealCursor(page.Next)
	if err != nil {
		h.log.Error("failed to seal cursor", "handler", "Watch", "error", err)
	}
	return WatchFrame{
		Slots:      model.ViewSlots(page.Slots, userID),
		NextCursor: next,
	}
}

func (h *SlotHandler) parseQuery(r *http.Request) (model.SlotFilter, int, *model.SlotCursor, error) {
	filter, err := parseFilter(r)
	if err != nil {
		return filter, 0, nil, err
	}

	limit, err := httputil.QueryInt(r, "limit", 0)
	if err != nil {
		return filter, 0, nil, err
	}
	if limit < 0 {
		return filter, 0, nil, apperrors.InvalidInput("limit cannot be negative")
	}

	var cursor *model.SlotCursor
	if token := r.URL.Query().Get("cursor"); token != "" {
		cursor = &model.SlotCursor{}
		if err := h.sealer.Open(token, cursor); err != nil {
			return filter, 0, nil, apperrors.InvalidInput("invalid cursor")
		}
	}

	return filter, limit, cursor, nil
}

func parseFilter(r *http.Request) (model.SlotFilter, error) {
	q := r.URL.Query()
	freeOnly, err := httputil.QueryBool(r, "free_only")
	if err != nil {
		return model.SlotFilter{}, err
	}
	return model.SlotFilter{
		TherapistID: q.Get("therapist_id"),
		ProductID:   q.Get("product_id"),
		FreeOnly:    freeOnly,
	}, nil
}

func (h *SlotHandler) sealCursor(cursor *model.SlotCursor) (string, error) {
	if cursor == nil {
		return "", nil
	}
	return h.sealer.Seal(cursor)
}

// getByName serves /slots/count and /slots/watch. httprouter cannot register
// static segments beside the :id wildcard.
func (h *SlotHandler) getByName(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	switch ps.ByName("id") {
	case "count":
		h.Count(w, r, ps)
	case "watch":
		h.Watch(w, r, ps)
	default:
		h.GetByID(w, r, ps)
	}
}

func (h *SlotHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/api/v1/slots", h.List)
	router.GET("/api/v1/slots/:id", h.getByName)
	router.POST("/api/v1/slots/:id/release", h.Release)
}
