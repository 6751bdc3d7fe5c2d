package amqp

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/fx"
)

var Module = fx.Module("amqp-handler",
	fx.Provide(
		NewPubSubProvider,
		NewBroadcastConsumer,
		func(logger watermill.LoggerAdapter) (*message.Router, error) {
			return message.NewRouter(message.RouterConfig{}, logger)
		},
	),

	fx.Invoke(RegisterHandlers),

	fx.Invoke(func(lc fx.Lifecycle, router *message.Router) {
		lc.Append(fx.Hook{
			OnStart: func(ctx context.Context) error {
				go func() {
					// Run blocks until Close; startup errors surface in logs.
					_ = router.Run(context.Background())
				}()
				return nil
			},
			OnStop: func(ctx context.Context) error {
				return router.Close()
			},
		})
	}),
)
