package amqp

import (
	"context"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/google/uuid"
)

const traceIDMetaKey = "trace_id"

type traceIDCtxKey struct{}

// TraceIDMiddleware ensures every message carries a trace id, generating one
// when the publisher did not, and propagates it on the handler context so
// downstream logs correlate across the pipeline.
func TraceIDMiddleware(h message.HandlerFunc) message.HandlerFunc {
	return func(msg *message.Message) ([]*message.Message, error) {
		traceID := msg.Metadata.Get(traceIDMetaKey)
		if traceID == "" {
			traceID = uuid.NewString()
			msg.Metadata.Set(traceIDMetaKey, traceID)
		}

		msg.SetContext(context.WithValue(msg.Context(), traceIDCtxKey{}, traceID))
		return h(msg)
	}
}

// TraceIDFromContext returns the trace id stamped by TraceIDMiddleware.
func TraceIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(traceIDCtxKey{}).(string)
	return id
}

// LoggingMiddleware records per-message latency and outcome with the trace id.
func LoggingMiddleware(logger *slog.Logger) message.HandlerMiddleware {
	return func(h message.HandlerFunc) message.HandlerFunc {
		return func(msg *message.Message) ([]*message.Message, error) {
			start := time.Now()
			msgs, err := h(msg)

			logger.Debug("amqp message handled",
				"msg_id", msg.UUID,
				"trace_id", msg.Metadata.Get(traceIDMetaKey),
				"duration_ms", time.Since(start).Milliseconds(),
				"success", err == nil,
			)
			return msgs, err
		}
	}
}

// NewRetryMiddleware backs off transient relay failures before the message
// lands on the poison queue.
func NewRetryMiddleware() middleware.Retry {
	return middleware.Retry{
		MaxRetries:      3,
		InitialInterval: time.Second * 2,
		MaxInterval:     time.Second * 15,
		Multiplier:      2.0,
	}
}
