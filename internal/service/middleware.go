package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/Xhand98/skillswap-realtime/internal/domain/model"
	"github.com/Xhand98/skillswap-realtime/internal/domain/registry"
)

// relayMiddleware decorates the relay with timing and outcome logging,
// keeping observability out of the business logic.
type relayMiddleware struct {
	next   Relayer
	logger *slog.Logger
}

func newRelayMiddleware(next Relayer, logger *slog.Logger) Relayer {
	return &relayMiddleware{next: next, logger: logger}
}

func (m *relayMiddleware) Subscribe(ctx context.Context, userID int64) (registry.Connector, error) {
	conn, err := m.next.Subscribe(ctx, userID)
	if err != nil {
		m.logger.Error("subscription rejected", "user_id", userID, "err", err)
		return nil, err
	}
	m.logger.Info("session subscribed", "user_id", userID, "conn_id", conn.GetID())
	return conn, nil
}

func (m *relayMiddleware) Unsubscribe(connID uuid.UUID) {
	m.next.Unsubscribe(connID)
	m.logger.Info("session unsubscribed", "conn_id", connID)
}

func (m *relayMiddleware) HandleFrame(conn registry.Connector, frame model.Frame) {
	m.next.HandleFrame(conn, frame)
}

func (m *relayMiddleware) Inject(roomName, eventName string, data map[string]any) (model.GatewayStats, error) {
	start := time.Now()

	stats, err := m.next.Inject(roomName, eventName, data)
	if err != nil {
		m.logger.Warn("broadcast injection refused",
			"room", roomName,
			"event", eventName,
			"err", err,
		)
		return stats, err
	}

	m.logger.Debug("broadcast injected",
		"room", roomName,
		"event", eventName,
		"connected_sockets", stats.ConnectedSockets,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return stats, nil
}

func (m *relayMiddleware) Stats() model.GatewayStats { return m.next.Stats() }

func (m *relayMiddleware) Ready() bool { return m.next.Ready() }
