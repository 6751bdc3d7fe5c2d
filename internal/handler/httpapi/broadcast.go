package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/Xhand98/skillswap-realtime/internal/domain/model"
	"github.com/Xhand98/skillswap-realtime/internal/service"
)

// BroadcastRequest is the injection contract used by the backend data
// service. It pushes events into rooms without holding a socket of its own.
type BroadcastRequest struct {
	RoomName  string         `json:"roomName"`
	EventName string         `json:"eventName"`
	Data      map[string]any `json:"data"`
	AuthToken string         `json:"authToken"`
}

// BroadcastResponse mirrors the wire contract of the original endpoint.
type BroadcastResponse struct {
	Success   bool               `json:"success"`
	Message   string             `json:"message"`
	RoomName  string             `json:"roomName"`
	EventName string             `json:"eventName"`
	Stats     model.GatewayStats `json:"stats"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// BroadcastHandler serves the injection endpoint. Token comparison is an
// exact string match against the server-held secret.
type BroadcastHandler struct {
	logger *slog.Logger
	relay  service.Relayer
	token  string
}

func NewBroadcastHandler(logger *slog.Logger, relay service.Relayer, token string) *BroadcastHandler {
	return &BroadcastHandler{
		logger: logger,
		relay:  relay,
		token:  token,
	}
}

func (h *BroadcastHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req BroadcastRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "required parameters"})
		return
	}

	// Auth first: an invalid token must never reach the emit path.
	if req.AuthToken != h.token {
		h.logger.Warn("broadcast injection rejected: bad token", "room", req.RoomName)
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid token"})
		return
	}

	stats, err := h.relay.Inject(req.RoomName, req.EventName, req.Data)
	switch {
	case errors.Is(err, service.ErrMissingParams):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "required parameters"})
		return
	case errors.Is(err, service.ErrNotInitialized):
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "not initialized"})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "broadcast failed"})
		return
	}

	writeJSON(w, http.StatusOK, BroadcastResponse{
		Success:   true,
		Message:   "broadcast delivered",
		RoomName:  req.RoomName,
		EventName: req.EventName,
		Stats:     stats,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
