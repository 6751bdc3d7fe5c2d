package service

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
)

var Module = fx.Module(
	"service",

	fx.Provide(
		NewRelayService,
		func(s *RelayService) Relayer { return s },
	),

	// Intercept the relay to add cross-cutting observability.
	fx.Decorate(func(orig Relayer, logger *slog.Logger) Relayer {
		return newRelayMiddleware(orig, logger)
	}),

	fx.Invoke(func(lc fx.Lifecycle, s *RelayService) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				s.Start()
				return nil
			},
		})
	}),
)
