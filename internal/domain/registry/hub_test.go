package registry

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/Xhand98/skillswap-realtime/internal/domain/model"
)

func newTestConn(t *testing.T, userID int64) Connector {
	t.Helper()
	return NewConnector(context.Background(), userID, 16)
}

func drain(conn Connector) []model.Event {
	var out []model.Event
	for {
		select {
		case ev := <-conn.Recv():
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestHub_EmitExcludesSender(t *testing.T) {
	h := NewHub()
	sender := newTestConn(t, 1)
	peer := newTestConn(t, 2)
	outsider := newTestConn(t, 3)

	h.Register(sender)
	h.Register(peer)
	h.Register(outsider)

	h.Join("conversation_42", sender)
	h.Join("conversation_42", peer)
	h.Join("conversation_99", outsider)

	n := h.Emit("conversation_42", model.NewEvent(model.EventNewMessage, map[string]any{"text": "hi"}), sender.GetID())
	assert.Equal(t, 1, n)

	peerEvents := drain(peer)
	require.Len(t, peerEvents, 1)
	assert.Equal(t, model.EventNewMessage, peerEvents[0].Type)
	assert.False(t, peerEvents[0].Timestamp.IsZero())

	assert.Empty(t, drain(sender), "sender must not receive its own emission")
	assert.Empty(t, drain(outsider), "non-members must not receive room events")
}

func TestHub_EmitToEveryone(t *testing.T) {
	h := NewHub()
	a := newTestConn(t, 1)
	b := newTestConn(t, 2)
	h.Register(a)
	h.Register(b)
	h.Join("post_7", a)
	h.Join("post_7", b)

	n := h.Emit("post_7", model.NewEvent(model.EventNewComment, map[string]any{"text": "nice"}), uuid.Nil)
	assert.Equal(t, 2, n)
	assert.Len(t, drain(a), 1)
	assert.Len(t, drain(b), 1)
}

func TestHub_EmitEmptyRoomIsNoop(t *testing.T) {
	h := NewHub()
	n := h.Emit("conversation_404", model.NewEvent(model.EventNewMessage, nil), uuid.Nil)
	assert.Zero(t, n)
}

func TestHub_JoinIsIdempotent(t *testing.T) {
	h := NewHub()
	a := newTestConn(t, 1)
	b := newTestConn(t, 2)
	h.Register(a)
	h.Register(b)

	h.Join("conversation_1", a)
	h.Join("conversation_1", a)
	h.Join("conversation_1", b)

	n := h.Emit("conversation_1", model.NewEvent(model.EventNewMessage, nil), b.GetID())
	assert.Equal(t, 1, n, "duplicate join must not duplicate membership")
	assert.Len(t, drain(a), 1)
}

func TestHub_JoinThenLeaveReturnsToEmpty(t *testing.T) {
	h := NewHub()
	a := newTestConn(t, 1)
	h.Register(a)

	h.Join("conversation_5", a)
	h.Leave("conversation_5", a.GetID())

	stats := h.Stats()
	assert.Zero(t, stats.Rooms, "last member leaving must garbage-collect the room")

	// Leaving again is harmless.
	h.Leave("conversation_5", a.GetID())
	assert.Zero(t, h.Emit("conversation_5", model.NewEvent(model.EventNewMessage, nil), uuid.Nil))
}

func TestHub_UnregisterClearsAllMemberships(t *testing.T) {
	h := NewHub()
	a := newTestConn(t, 1)
	b := newTestConn(t, 2)
	h.Register(a)
	h.Register(b)
	h.Join("conversation_1", a)
	h.Join("post_2", a)
	h.Join("conversation_1", b)

	h.Unregister(a.GetID())

	stats := h.Stats()
	assert.Equal(t, 1, stats.ConnectedSockets)
	assert.Equal(t, 1, stats.Rooms, "post room must vanish with its only member")
	assert.Zero(t, h.Emit("post_2", model.NewEvent(model.EventNewComment, nil), uuid.Nil))

	select {
	case <-a.Done():
	default:
		t.Fatal("unregister must close the connection")
	}
}

func TestHub_Shutdown(t *testing.T) {
	h := NewHub()
	a := newTestConn(t, 1)
	h.Register(a)
	h.Join("conversation_1", a)

	h.Shutdown()

	stats := h.Stats()
	assert.Zero(t, stats.ConnectedSockets)
	assert.Zero(t, stats.Rooms)
	select {
	case <-a.Done():
	default:
		t.Fatal("shutdown must close live connections")
	}
}

func TestConnector_SendAfterCloseMisses(t *testing.T) {
	c := newTestConn(t, 1)
	c.Close()
	assert.False(t, c.Send(model.NewEvent(model.EventPong, nil)))
}

func TestConnector_SendDropsWhenFull(t *testing.T) {
	c := NewConnector(context.Background(), 1, 1)
	require.True(t, c.Send(model.NewEvent(model.EventNewMessage, nil)))
	assert.False(t, c.Send(model.NewEvent(model.EventNewMessage, nil)))
}
