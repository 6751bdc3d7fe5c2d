package amqp

import (
	"context"
	"encoding/json"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"
)

// CommandHandler is the functional signature for bus-originated commands.
type CommandHandler[T any] func(ctx context.Context, cmd *T) error

// Bind connects Watermill to relay logic, handling panic recovery and
// poison-pill decoding.
func Bind[T any](c *BroadcastConsumer, fn CommandHandler[T]) message.NoPublishHandlerFunc {
	return func(msg *message.Message) error {
		// Keep the consumer alive through handler panics.
		defer func() {
			if r := recover(); r != nil {
				c.logger.Error("amqp handler panic recovered",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID)
			}
		}()

		cmd := new(T)
		if err := json.Unmarshal(msg.Payload, cmd); err != nil {
			c.logger.Error("amqp decode failed", "err", err, "msg_id", msg.UUID)
			return nil // ACK: undecodable payloads are terminal.
		}

		// A returned error NACKs and triggers the retry policy.
		return fn(msg.Context(), cmd)
	}
}
