package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/openmic-live/openmic/domains/live/be/broadcast"
	partysvc "github.com/openmic-live/openmic/domains/parties/be/service"
	"github.com/openmic-live/openmic/platform/go/httpapi"
	"github.com/openmic-live/openmic/platform/go/logging"
)

const (
	// writeWait bounds a single websocket write.
	writeWait = 10 * time.Second
	// pongWait is how long a client may stay silent before the connection is
	// considered dead. Pings go out at a fraction of it.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// PartyGetter confirms a party exists before the connection upgrades.
type PartyGetter interface {
	Get(ctx context.Context, partyID string) (partysvc.Party, error)
}

// Handler serves the live party stream over websockets.
type Handler struct {
	hub      *broadcast.Hub
	parties  PartyGetter
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

// New constructs the live stream handler.
func New(hub *broadcast.Hub, parties PartyGetter, logger *zap.Logger) *Handler {
	if hub == nil {
		panic("broadcast hub is required")
	}
	if parties == nil {
		panic("party getter is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		hub:     hub,
		parties: parties,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Browser clients connect from the party web app on another
			// origin; auth happens at the session layer, not here.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Register mounts the live route on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/parties/{partyID}/live", h.live)
}

func (h *Handler) live(w http.ResponseWriter, r *http.Request) {
	logger := logging.FromRequest(r, h.logger)
	partyID := chi.URLParam(r, "partyID")

	if _, err := h.parties.Get(r.Context(), partyID); err != nil {
		if errors.Is(err, partysvc.ErrNotFound) {
			httpapi.WriteProblem(w, httpapi.Problem{
				Type:   httpapi.ProblemTypeNotFound,
				Title:  "Party not found",
				Status: http.StatusNotFound,
			})
			return
		}
		httpapi.WriteInternal(w, logger, err)
		return
	}

	views, unsubscribe, err := h.hub.Subscribe(r.Context(), partyID)
	if err != nil {
		httpapi.WriteInternal(w, logger, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		unsubscribe()
		return
	}

	logger = logger.With(zap.String("partyId", partyID))
	logger.Debug("live observer connected")

	go h.readLoop(conn, unsubscribe)
	h.writeLoop(conn, views, logger)
}

// readLoop drains inbound frames so close and pong control messages are
// processed. The stream is one-way; client payloads are discarded.
func (h *Handler) readLoop(conn *websocket.Conn, unsubscribe func()) {
	defer unsubscribe()
	defer conn.Close()

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writeLoop(conn *websocket.Conn, views <-chan broadcast.View, logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer conn.Close()

	for {
		select {
		case view, ok := <-views:
			if !ok {
				// Feed ended, typically because the party loop stopped.
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream closed"))
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(view); err != nil {
				logger.Debug("live observer write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
