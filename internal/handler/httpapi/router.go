package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	wshandler "github.com/Xhand98/skillswap-realtime/internal/handler/ws"
	"github.com/Xhand98/skillswap-realtime/internal/service"
)

// NewRouter assembles the full HTTP surface: the websocket endpoint, the
// broadcast-injection endpoint and the diagnostic endpoints.
func NewRouter(ws *wshandler.Handler, broadcast *BroadcastHandler, relay service.Relayer) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Handle("/api/socket", ws)
	r.Method(http.MethodPost, "/api/socket-broadcast", broadcast)

	r.Get("/api/socket-stats", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, relay.Stats())
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if !relay.Ready() {
			writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "not initialized"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}
