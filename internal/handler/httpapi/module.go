package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/Xhand98/skillswap-realtime/config"
	"github.com/Xhand98/skillswap-realtime/internal/service"
	"go.uber.org/fx"
)

var Module = fx.Module("http-handler",
	fx.Provide(
		func(logger *slog.Logger, relay service.Relayer, cfg *config.Config) *BroadcastHandler {
			return NewBroadcastHandler(logger, relay, cfg.Server.AuthToken)
		},
		NewRouter,
	),
	fx.Invoke(registerServer),
)

// registerServer binds the HTTP server to the fx lifecycle: listen on start,
// drain on stop.
func registerServer(lc fx.Lifecycle, cfg *config.Config, router chi.Router, logger *slog.Logger) {
	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return err
			}
			logger.Info("http server listening", "addr", srv.Addr)
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server failed", "err", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
