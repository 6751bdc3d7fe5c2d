// Package amqp is the message-bus injection path: backend services publish
// the same room broadcasts they would POST to the HTTP endpoint, but over a
// topic exchange. Bus access replaces the shared-token check.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/Xhand98/skillswap-realtime/config"
	"github.com/Xhand98/skillswap-realtime/internal/service"
)

const poisonTopicSuffix = ".poison"

// BroadcastCommand is the bus-side injection payload.
type BroadcastCommand struct {
	RoomName  string         `json:"roomName"`
	EventName string         `json:"eventName"`
	Data      map[string]any `json:"data"`
}

type BroadcastConsumer struct {
	relay  service.Relayer
	logger *slog.Logger
}

func NewBroadcastConsumer(relay service.Relayer, logger *slog.Logger) *BroadcastConsumer {
	return &BroadcastConsumer{relay: relay, logger: logger}
}

// OnBroadcast performs the room emit for one bus command. Validation errors
// are terminal (ACK); a not-ready gateway is transient and retried.
func (c *BroadcastConsumer) OnBroadcast(ctx context.Context, cmd *BroadcastCommand) error {
	_, err := c.relay.Inject(cmd.RoomName, cmd.EventName, cmd.Data)
	if errors.Is(err, service.ErrMissingParams) {
		c.logger.Warn("bus broadcast dropped: missing parameters",
			"room", cmd.RoomName,
			"event", cmd.EventName,
			"trace_id", TraceIDFromContext(ctx))
		return nil
	}
	return err
}

// RegisterHandlers wires the consumer into the router with the standard
// middleware chain: trace-id propagation, logging, bounded retry, poison
// queue, throttle, timeout.
func RegisterHandlers(router *message.Router, c *BroadcastConsumer, provider *PubSubProvider, cfg *config.Config, logger *slog.Logger) error {
	pub, err := provider.BuildPublisher()
	if err != nil {
		return err
	}

	poison, err := middleware.PoisonQueue(pub, cfg.AMQP.Queue+poisonTopicSuffix)
	if err != nil {
		return fmt.Errorf("amqp: poison queue: %w", err)
	}

	sub, err := provider.BuildSubscriber(cfg.AMQP.Queue)
	if err != nil {
		return err
	}

	router.AddConsumerHandler(
		"ON_BROADCAST",
		cfg.AMQP.Topic,
		sub,
		Bind(c, c.OnBroadcast),
	).AddMiddleware(
		TraceIDMiddleware,
		LoggingMiddleware(logger),
		NewRetryMiddleware().Middleware,
		poison,
		middleware.NewThrottle(100, time.Second).Middleware,
		middleware.Timeout(time.Second*30),
	)

	logger.Info("amqp pipeline ready", "queue", cfg.AMQP.Queue, "topic", cfg.AMQP.Topic)
	return nil
}
