package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/Xhand98/skillswap-realtime/internal/domain/model"
	"github.com/Xhand98/skillswap-realtime/internal/domain/registry"
)

func newTestRelay(t *testing.T) *RelayService {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewRelayService(registry.NewHub(), logger)
	s.Start()
	return s
}

func subscribe(t *testing.T, s *RelayService, userID int64) registry.Connector {
	t.Helper()
	conn, err := s.Subscribe(context.Background(), userID)
	require.NoError(t, err)
	return conn
}

func frame(t *testing.T, frameType string, data any) model.Frame {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return model.Frame{Type: frameType, Data: raw}
}

func recvOne(t *testing.T, conn registry.Connector) model.Event {
	t.Helper()
	select {
	case ev := <-conn.Recv():
		return ev
	default:
		t.Fatal("expected a pending event")
		return model.Event{}
	}
}

func assertNoEvent(t *testing.T, conn registry.Connector) {
	t.Helper()
	select {
	case ev := <-conn.Recv():
		t.Fatalf("unexpected event %q", ev.Type)
	default:
	}
}

func TestHandleFrame_JoinEchoesToOthersOnly(t *testing.T) {
	s := newTestRelay(t)
	alice := subscribe(t, s, 1)
	bob := subscribe(t, s, 2)

	s.HandleFrame(alice, frame(t, model.EventJoinConversation, map[string]any{"conversation_id": 42}))
	assertNoEvent(t, alice)

	s.HandleFrame(bob, frame(t, model.EventJoinConversation, map[string]any{"conversation_id": 42}))
	assertNoEvent(t, bob)

	ev := recvOne(t, alice)
	assert.Equal(t, model.EventUserJoinedConversation, ev.Type)
	payload, ok := ev.Data.(model.PresencePayload)
	require.True(t, ok)
	assert.Equal(t, int64(2), payload.UserID)
	assert.Equal(t, int64(42), payload.ConversationID)
}

func TestHandleFrame_NewMessageRelayedWithServerTimestamp(t *testing.T) {
	s := newTestRelay(t)
	alice := subscribe(t, s, 1)
	bob := subscribe(t, s, 2)

	s.HandleFrame(alice, frame(t, model.EventJoinConversation, map[string]any{"conversation_id": 42}))
	s.HandleFrame(bob, frame(t, model.EventJoinConversation, map[string]any{"conversation_id": 42}))
	recvOne(t, alice) // bob's presence echo

	s.HandleFrame(alice, frame(t, model.EventNewMessage, map[string]any{
		"conversation_id": 42,
		"text":            "hi",
	}))

	ev := recvOne(t, bob)
	assert.Equal(t, model.EventNewMessage, ev.Type)
	assert.False(t, ev.Timestamp.IsZero(), "relay must stamp the server timestamp")
	payload, ok := ev.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hi", payload["text"])

	assertNoEvent(t, alice)
}

func TestHandleFrame_StringRoomIDTolerated(t *testing.T) {
	s := newTestRelay(t)
	alice := subscribe(t, s, 1)
	bob := subscribe(t, s, 2)

	s.HandleFrame(alice, frame(t, model.EventJoinPost, map[string]any{"post_id": 7}))
	s.HandleFrame(bob, frame(t, model.EventJoinPost, map[string]any{"post_id": 7}))

	s.HandleFrame(alice, frame(t, model.EventNewComment, map[string]any{
		"post_id": "7",
		"text":    "nice",
	}))

	ev := recvOne(t, bob)
	assert.Equal(t, model.EventNewComment, ev.Type)
}

func TestHandleFrame_LeaveStopsDelivery(t *testing.T) {
	s := newTestRelay(t)
	alice := subscribe(t, s, 1)
	bob := subscribe(t, s, 2)

	s.HandleFrame(alice, frame(t, model.EventJoinConversation, map[string]any{"conversation_id": 5}))
	s.HandleFrame(bob, frame(t, model.EventJoinConversation, map[string]any{"conversation_id": 5}))
	recvOne(t, alice)

	s.HandleFrame(bob, frame(t, model.EventLeaveConversation, map[string]any{"conversation_id": 5}))
	ev := recvOne(t, alice)
	assert.Equal(t, model.EventUserLeftConversation, ev.Type)

	s.HandleFrame(alice, frame(t, model.EventNewMessage, map[string]any{
		"conversation_id": 5,
		"text":            "anyone?",
	}))
	assertNoEvent(t, bob)
}

func TestHandleFrame_TypingIndicators(t *testing.T) {
	s := newTestRelay(t)
	alice := subscribe(t, s, 1)
	bob := subscribe(t, s, 2)

	s.HandleFrame(alice, frame(t, model.EventJoinConversation, map[string]any{"conversation_id": 9}))
	s.HandleFrame(bob, frame(t, model.EventJoinConversation, map[string]any{"conversation_id": 9}))
	recvOne(t, alice)

	s.HandleFrame(bob, frame(t, model.EventTypingStart, map[string]any{"conversation_id": 9}))
	ev := recvOne(t, alice)
	assert.Equal(t, model.EventUserTypingStart, ev.Type)
	assertNoEvent(t, bob)

	s.HandleFrame(bob, frame(t, model.EventTypingStop, map[string]any{"conversation_id": 9}))
	ev = recvOne(t, alice)
	assert.Equal(t, model.EventUserTypingStop, ev.Type)
}

func TestHandleFrame_PingAnsweredDirectly(t *testing.T) {
	s := newTestRelay(t)
	alice := subscribe(t, s, 1)

	s.HandleFrame(alice, frame(t, model.EventPing, map[string]any{}))

	ev := recvOne(t, alice)
	assert.Equal(t, model.EventPong, ev.Type)
	payload, ok := ev.Data.(model.PongPayload)
	require.True(t, ok)
	assert.False(t, payload.Timestamp.IsZero())
}

func TestHandleFrame_MalformedAndUnknownFramesDropped(t *testing.T) {
	s := newTestRelay(t)
	alice := subscribe(t, s, 1)

	s.HandleFrame(alice, model.Frame{Type: model.EventJoinConversation, Data: json.RawMessage(`{bad`)})
	s.HandleFrame(alice, frame(t, model.EventNewMessage, map[string]any{"text": "no room id"}))
	s.HandleFrame(alice, frame(t, "made_up_event", map[string]any{}))

	assertNoEvent(t, alice)
	assert.Zero(t, s.Stats().Rooms)
}

func TestInject(t *testing.T) {
	s := newTestRelay(t)
	alice := subscribe(t, s, 1)
	s.HandleFrame(alice, frame(t, model.EventJoinPost, map[string]any{"post_id": 7}))

	stats, err := s.Inject(model.PostRoom(7), model.EventNewComment, map[string]any{"text": "from api"})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ConnectedSockets)

	ev := recvOne(t, alice)
	assert.Equal(t, model.EventNewComment, ev.Type, "injection reaches every member, sender excluded only on live sockets")
}

func TestInject_Validation(t *testing.T) {
	s := newTestRelay(t)

	_, err := s.Inject("", model.EventNewMessage, map[string]any{"x": 1})
	assert.ErrorIs(t, err, ErrMissingParams)

	_, err = s.Inject("conversation_1", "", map[string]any{"x": 1})
	assert.ErrorIs(t, err, ErrMissingParams)

	_, err = s.Inject("conversation_1", model.EventNewMessage, nil)
	assert.ErrorIs(t, err, ErrMissingParams)
}

func TestInject_NotStarted(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewRelayService(registry.NewHub(), logger)

	_, err := s.Inject("conversation_1", model.EventNewMessage, map[string]any{"x": 1})
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.False(t, s.Stats().Initialized)

	// Incomplete parameters are the caller's bug and win over readiness.
	_, err = s.Inject("", model.EventNewMessage, map[string]any{"x": 1})
	assert.ErrorIs(t, err, ErrMissingParams)
}
