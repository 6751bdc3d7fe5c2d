package ws

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"
	"github.com/Xhand98/skillswap-realtime/internal/domain/model"
	"github.com/Xhand98/skillswap-realtime/internal/domain/registry"
	"github.com/Xhand98/skillswap-realtime/internal/service"
)

// Handler upgrades authenticated requests to websocket sessions and bridges
// them into the relay.
type Handler struct {
	logger   *slog.Logger
	relay    service.Relayer
	limiter  *AttemptLimiter
	upgrader websocket.Upgrader
}

func NewHandler(logger *slog.Logger, relay service.Relayer, limiter *AttemptLimiter) *Handler {
	return &Handler{
		logger:  logger,
		relay:   relay,
		limiter: limiter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // Security: adjust for production
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Authentication is presence of a user identifier, nothing more; the
	// surrounding application is login-optional by design.
	userID, ok := identify(r)
	if !ok {
		http.Error(w, "user_id required", http.StatusUnauthorized)
		return
	}

	if !h.limiter.Allow(userID) {
		h.logger.Warn("connection attempt rate limited", "user_id", userID)
		http.Error(w, "too many connection attempts", http.StatusTooManyRequests)
		return
	}

	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws upgrade failed", "user_id", userID, "err", err)
		return
	}
	defer sock.Close()

	conn, err := h.relay.Subscribe(r.Context(), userID)
	if err != nil {
		return
	}
	defer h.relay.Unsubscribe(conn.GetID())

	h.logger.Info("ws session opened", "user_id", userID, "conn_id", conn.GetID())

	// Write pump: hub mailbox -> wire.
	go h.writePump(sock, conn)

	// Read pump: wire -> relay dispatch. Runs on the request goroutine so
	// the deferred unsubscribe fires the moment the socket dies.
	for {
		var frame model.Frame
		if err := sock.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("ws read failed", "user_id", userID, "err", err)
			}
			return
		}
		h.relay.HandleFrame(conn, frame)
	}
}

func (h *Handler) writePump(sock *websocket.Conn, conn registry.Connector) {
	for {
		select {
		case <-conn.Done():
			// Hub-side teardown; nudge the read pump off its blocking read.
			_ = sock.Close()
			return
		case ev := <-conn.Recv():
			if err := sock.WriteJSON(ev); err != nil {
				h.logger.Warn("ws send failed", "conn_id", conn.GetID(), "err", err)
				_ = sock.Close()
				return
			}
		}
	}
}

// identify extracts the user id from the handshake: auth query parameter
// first, legacy header second. Connections without one are rejected before
// any room operation is possible.
func identify(r *http.Request) (int64, bool) {
	raw := r.URL.Query().Get("user_id")
	if raw == "" {
		raw = r.Header.Get("X-User-ID")
	}
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
