package service

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/Xhand98/skillswap-realtime/internal/domain/model"
	"github.com/Xhand98/skillswap-realtime/internal/domain/registry"
)

// Broadcast-injection failure modes, returned as values so the HTTP and AMQP
// surfaces can map them to structured responses instead of exceptions.
var (
	ErrMissingParams  = errors.New("required parameters")
	ErrNotInitialized = errors.New("not initialized")
)

// Relayer is the primary interface for transport handlers (WebSocket, HTTP
// injection, AMQP). The service is a pure relay: it stamps timestamps and
// fans events out, it never persists anything.
type Relayer interface {
	Subscribe(ctx context.Context, userID int64) (registry.Connector, error)
	Unsubscribe(connID uuid.UUID)
	HandleFrame(conn registry.Connector, frame model.Frame)
	Inject(roomName, eventName string, data map[string]any) (model.GatewayStats, error)
	Stats() model.GatewayStats
	Ready() bool
}

type RelayService struct {
	hub    registry.Hubber
	logger *slog.Logger

	// started flips once the fx OnStart hook runs; injection before that
	// point reports the gateway as not initialized.
	started atomic.Bool
}

func NewRelayService(hub registry.Hubber, logger *slog.Logger) *RelayService {
	return &RelayService{
		hub:    hub,
		logger: logger,
	}
}

// Start marks the gateway ready to accept injected broadcasts.
func (s *RelayService) Start() { s.started.Store(true) }

func (s *RelayService) Ready() bool { return s.started.Load() }

// Subscribe attaches a fresh connector to the gateway. Membership starts
// empty; the client asserts rooms with explicit join frames.
func (s *RelayService) Subscribe(ctx context.Context, userID int64) (registry.Connector, error) {
	const defaultBufferSize = 256

	conn := registry.NewConnector(ctx, userID, defaultBufferSize)
	s.hub.Register(conn)
	return conn, nil
}

// Unsubscribe detaches the connection and clears all of its room memberships.
func (s *RelayService) Unsubscribe(connID uuid.UUID) {
	s.hub.Unregister(connID)
}

// HandleFrame dispatches one inbound wire frame. Malformed frames are logged
// and dropped; a bad event from one client must never take the gateway down.
func (s *RelayService) HandleFrame(conn registry.Connector, frame model.Frame) {
	switch frame.Type {
	case model.EventJoinConversation:
		s.joinConversation(conn, frame.Data)
	case model.EventLeaveConversation:
		s.leaveConversation(conn, frame.Data)
	case model.EventJoinPost:
		s.joinPost(conn, frame.Data)
	case model.EventLeavePost:
		s.leavePost(conn, frame.Data)
	case model.EventTypingStart:
		s.relayTyping(conn, frame.Data, model.EventUserTypingStart)
	case model.EventTypingStop:
		s.relayTyping(conn, frame.Data, model.EventUserTypingStop)
	case model.EventNewMessage:
		s.relayToRoom(conn, frame.Data, model.EventNewMessage, "conversation_id", model.ConversationRoom)
	case model.EventNewComment:
		s.relayToRoom(conn, frame.Data, model.EventNewComment, "post_id", model.PostRoom)
	case model.EventPing:
		conn.Send(model.NewEvent(model.EventPong, model.PongPayload{Timestamp: time.Now().UTC()}))
	default:
		s.logger.Warn("unknown frame type dropped",
			"type", frame.Type,
			"user_id", conn.GetUserID(),
		)
	}
}

func (s *RelayService) joinConversation(conn registry.Connector, data json.RawMessage) {
	ref, ok := s.decodeRoomRef(conn, data)
	if !ok || ref.ConversationID == 0 {
		return
	}

	roomName := model.ConversationRoom(ref.ConversationID)
	s.hub.Join(roomName, conn)

	// Presence echo goes to the other members only, never to the joiner.
	s.hub.Emit(roomName, model.NewEvent(model.EventUserJoinedConversation, model.PresencePayload{
		UserID:         conn.GetUserID(),
		ConversationID: ref.ConversationID,
	}), conn.GetID())

	s.logger.Debug("joined conversation", "user_id", conn.GetUserID(), "room", roomName)
}

func (s *RelayService) leaveConversation(conn registry.Connector, data json.RawMessage) {
	ref, ok := s.decodeRoomRef(conn, data)
	if !ok || ref.ConversationID == 0 {
		return
	}

	roomName := model.ConversationRoom(ref.ConversationID)
	s.hub.Leave(roomName, conn.GetID())

	s.hub.Emit(roomName, model.NewEvent(model.EventUserLeftConversation, model.PresencePayload{
		UserID:         conn.GetUserID(),
		ConversationID: ref.ConversationID,
	}), conn.GetID())
}

func (s *RelayService) joinPost(conn registry.Connector, data json.RawMessage) {
	ref, ok := s.decodeRoomRef(conn, data)
	if !ok || ref.PostID == 0 {
		return
	}
	s.hub.Join(model.PostRoom(ref.PostID), conn)
}

func (s *RelayService) leavePost(conn registry.Connector, data json.RawMessage) {
	ref, ok := s.decodeRoomRef(conn, data)
	if !ok || ref.PostID == 0 {
		return
	}
	s.hub.Leave(model.PostRoom(ref.PostID), conn.GetID())
}

// relayTyping forwards typing indicators verbatim to the rest of the room.
// No debouncing, no TTL: stop events are trusted as the client sends them.
func (s *RelayService) relayTyping(conn registry.Connector, data json.RawMessage, outType string) {
	ref, ok := s.decodeRoomRef(conn, data)
	if !ok || ref.ConversationID == 0 {
		return
	}

	s.hub.Emit(model.ConversationRoom(ref.ConversationID), model.NewEvent(outType, model.TypingPayload{
		UserID:         conn.GetUserID(),
		ConversationID: ref.ConversationID,
	}), conn.GetID())
}

// relayToRoom forwards an opaque payload to the room derived from idField,
// stamping the server timestamp. Emitting into an empty room is a no-op.
func (s *RelayService) relayToRoom(conn registry.Connector, data json.RawMessage, outType, idField string, room func(int64) string) {
	payload := make(map[string]any)
	if err := json.Unmarshal(data, &payload); err != nil {
		s.logger.Warn("malformed relay payload dropped",
			"type", outType,
			"user_id", conn.GetUserID(),
			"err", err,
		)
		return
	}

	id, ok := numericField(payload, idField)
	if !ok {
		s.logger.Warn("relay payload missing room id", "type", outType, "field", idField)
		return
	}

	s.hub.Emit(room(id), model.NewEvent(outType, payload), conn.GetID())
}

// Inject performs the same room emit a live-socket broadcast would, on behalf
// of a non-socket caller. Parameters are validated first: an incomplete
// request is the caller's bug regardless of gateway readiness.
func (s *RelayService) Inject(roomName, eventName string, data map[string]any) (model.GatewayStats, error) {
	if roomName == "" || eventName == "" || data == nil {
		return model.GatewayStats{}, ErrMissingParams
	}
	if !s.Ready() {
		return model.GatewayStats{}, ErrNotInitialized
	}

	s.hub.Emit(roomName, model.NewEvent(eventName, data), uuid.Nil)
	return s.hub.Stats(), nil
}

func (s *RelayService) Stats() model.GatewayStats {
	stats := s.hub.Stats()
	stats.Initialized = s.Ready()
	return stats
}

func (s *RelayService) decodeRoomRef(conn registry.Connector, data json.RawMessage) (model.RoomRef, bool) {
	var ref model.RoomRef
	if err := json.Unmarshal(data, &ref); err != nil {
		s.logger.Warn("malformed room reference dropped",
			"user_id", conn.GetUserID(),
			"err", err,
		)
		return ref, false
	}
	return ref, true
}

// numericField tolerates both JSON numbers and numeric strings, matching what
// the web client historically sent.
func numericField(m map[string]any, key string) (int64, bool) {
	switch v := m[key].(type) {
	case float64:
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
