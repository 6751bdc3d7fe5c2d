package ws

import (
	"github.com/Xhand98/skillswap-realtime/config"
	"go.uber.org/fx"
)

var Module = fx.Module("ws-handler",
	fx.Provide(
		func(cfg *config.Config) *AttemptLimiter {
			return NewAttemptLimiter(cfg.Server.MaxConnectionsPerMinute)
		},
		NewHandler,
	),
)
