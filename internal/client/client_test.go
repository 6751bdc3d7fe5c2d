package client

import (
	"io"
	"log/slog"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/Xhand98/skillswap-realtime/internal/client/settings"
	"github.com/Xhand98/skillswap-realtime/internal/domain/model"
	"github.com/Xhand98/skillswap-realtime/internal/domain/registry"
	wshandler "github.com/Xhand98/skillswap-realtime/internal/handler/ws"
	"github.com/Xhand98/skillswap-realtime/internal/health"
	"github.com/Xhand98/skillswap-realtime/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startGateway runs a real relay behind a websocket endpoint.
func startGateway(t *testing.T) (string, *service.RelayService) {
	t.Helper()
	logger := testLogger()
	relay := service.NewRelayService(registry.NewHub(), logger)
	relay.Start()
	srv := httptest.NewServer(wshandler.NewHandler(logger, relay, wshandler.NewAttemptLimiter(0)))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/socket", relay
}

func newTestClient(t *testing.T, wsURL string, store settings.Store) *Client {
	t.Helper()
	cfg := DefaultConfig(wsURL)
	cfg.ReconnectDelay = 20 * time.Millisecond
	cfg.ConnectionTimeout = time.Second
	cfg.KeepAliveInterval = 0
	m := health.NewMonitor(testLogger(), store, health.WithAutoDisable(false))
	c := New(cfg, testLogger(), store, m)
	t.Cleanup(c.Disconnect)
	return c
}

// waitEvent drains the event stream until the wanted type shows up.
func waitEvent(t *testing.T, c *Client, eventType string) model.Event {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-c.Events():
			if ev.Type == eventType {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q", eventType)
		}
	}
}

func TestSendMessage_WhileDisconnectedIsDropped(t *testing.T) {
	c := newTestClient(t, "ws://127.0.0.1:9/api/socket", settings.NewMemStore())

	assert.NotPanics(t, func() {
		c.SendMessage(model.EventNewMessage, map[string]any{"text": "hi"})
	})
	assert.Equal(t, StateIdle, c.State())
}

func TestConnect_InvalidUserID(t *testing.T) {
	c := newTestClient(t, "ws://127.0.0.1:9/api/socket", settings.NewMemStore())

	c.Connect(0)
	c.Connect(-1)
	assert.Equal(t, StateIdle, c.State())
}

func TestConnect_SuppressedWhenDisabled(t *testing.T) {
	store := settings.NewMemStore()
	require.NoError(t, settings.SetEnabled(store, false))
	url, _ := startGateway(t)
	c := newTestClient(t, url, store)

	c.Connect(1)
	assert.Equal(t, StateIdle, c.State(), "disabled preference must block the attempt entirely")
}

func TestConnect_Lifecycle(t *testing.T) {
	url, _ := startGateway(t)
	c := newTestClient(t, url, settings.NewMemStore())

	c.Connect(1)
	waitEvent(t, c, model.EventConnect)
	assert.True(t, c.IsConnected())

	// Connecting again for the same user is a no-op.
	c.Connect(1)
	assert.True(t, c.IsConnected())

	c.Disconnect()
	assert.Equal(t, StateDisconnected, c.State())
	// Idempotent.
	c.Disconnect()
	assert.Equal(t, StateDisconnected, c.State())
}

func TestRoomFanout(t *testing.T) {
	url, _ := startGateway(t)
	alice := newTestClient(t, url, settings.NewMemStore())
	bob := newTestClient(t, url, settings.NewMemStore())

	alice.Connect(1)
	waitEvent(t, alice, model.EventConnect)
	bob.Connect(2)
	waitEvent(t, bob, model.EventConnect)

	alice.JoinConversation(42)
	// Alice's presence echo to bob confirms her membership is live.
	bob.JoinConversation(42)
	waitEvent(t, alice, model.EventUserJoinedConversation)

	alice.SendMessage(model.EventNewMessage, map[string]any{
		"conversation_id": 42,
		"text":            "hi",
	})

	ev := waitEvent(t, bob, model.EventNewMessage)
	assert.False(t, ev.Timestamp.IsZero(), "server must stamp the envelope")
	payload, ok := ev.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "hi", payload["text"])

	// The sender never hears its own message.
	select {
	case stray := <-alice.Events():
		assert.NotEqual(t, model.EventNewMessage, stray.Type)
	case <-time.After(300 * time.Millisecond):
	}
}

func TestTypingIndicators(t *testing.T) {
	url, _ := startGateway(t)
	alice := newTestClient(t, url, settings.NewMemStore())
	bob := newTestClient(t, url, settings.NewMemStore())

	alice.Connect(1)
	waitEvent(t, alice, model.EventConnect)
	bob.Connect(2)
	waitEvent(t, bob, model.EventConnect)

	alice.JoinConversation(9)
	bob.JoinConversation(9)
	waitEvent(t, alice, model.EventUserJoinedConversation)

	bob.StartTyping(9)
	waitEvent(t, alice, model.EventUserTypingStart)
	bob.StopTyping(9)
	waitEvent(t, alice, model.EventUserTypingStop)
}

func TestReconnect_ExhaustionDetectsLoop(t *testing.T) {
	store := settings.NewMemStore()
	cfg := DefaultConfig("ws://127.0.0.1:9/api/socket")
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.ConnectionTimeout = 200 * time.Millisecond
	cfg.MaxReconnectAttempts = 2
	cfg.KeepAliveInterval = 0

	m := health.NewMonitor(testLogger(), store)
	c := New(cfg, testLogger(), store, m)
	t.Cleanup(c.Disconnect)

	c.Connect(1)
	waitEvent(t, c, model.EventReconnectError)

	require.Eventually(t, func() bool {
		return c.State() == StateDisconnected
	}, 3*time.Second, 10*time.Millisecond)

	snap := m.Snapshot()
	assert.GreaterOrEqual(t, snap.FailedConnections, 3, "initial dial plus both retries must fail")
	assert.True(t, m.InErrorLoop(), "rapid failures must trip loop detection")
	assert.False(t, settings.Enabled(store), "loop detection must persist the disable flag")

	// Subsequent connects are suppressed by the persisted preference.
	c.Connect(1)
	assert.Equal(t, StateDisconnected, c.State())
}

func TestToggleEnabled(t *testing.T) {
	store := settings.NewMemStore()
	url, _ := startGateway(t)
	c := newTestClient(t, url, store)

	c.Connect(1)
	waitEvent(t, c, model.EventConnect)

	off := false
	c.ToggleEnabled(&off)
	assert.False(t, settings.Enabled(store))
	assert.Equal(t, StateDisconnected, c.State())

	// Flipping back on reconnects the last known user.
	c.ToggleEnabled(nil)
	assert.True(t, settings.Enabled(store))
	waitEvent(t, c, model.EventConnect)
	assert.True(t, c.IsConnected())
}

func TestReconnect_ForcesFreshConnection(t *testing.T) {
	url, _ := startGateway(t)
	c := newTestClient(t, url, settings.NewMemStore())

	c.Connect(1)
	waitEvent(t, c, model.EventConnect)

	c.Reconnect()
	waitEvent(t, c, model.EventConnect)
	assert.True(t, c.IsConnected())
}

func TestConnect_SwitchingUserReplacesSession(t *testing.T) {
	url, relay := startGateway(t)
	c := newTestClient(t, url, settings.NewMemStore())

	c.Connect(1)
	waitEvent(t, c, model.EventConnect)

	c.Connect(2)
	waitEvent(t, c, model.EventConnect)
	assert.True(t, c.IsConnected())

	// The first user's socket must be gone: one manager, one session.
	require.Eventually(t, func() bool {
		return relay.Stats().ConnectedSockets == 1
	}, 3*time.Second, 10*time.Millisecond, "stale session not torn down")

	// The replacement session is the live one.
	c.JoinConversation(3)
	assert.True(t, c.IsConnected())
}

func TestDisconnect_SupersedesInFlightDial(t *testing.T) {
	// A listener that accepts and then stays silent keeps the dial pending
	// until the handshake timeout.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	var heldMu sync.Mutex
	var held []net.Conn
	t.Cleanup(func() {
		heldMu.Lock()
		defer heldMu.Unlock()
		for _, conn := range held {
			conn.Close()
		}
	})
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			heldMu.Lock()
			held = append(held, conn)
			heldMu.Unlock()
		}
	}()

	store := settings.NewMemStore()
	cfg := DefaultConfig("ws://" + ln.Addr().String() + "/api/socket")
	cfg.ConnectionTimeout = 300 * time.Millisecond
	cfg.KeepAliveInterval = 0
	m := health.NewMonitor(testLogger(), store, health.WithAutoDisable(false))
	c := New(cfg, testLogger(), store, m)

	c.Connect(1)
	c.Disconnect()

	// Give the abandoned dial time to hit its timeout.
	time.Sleep(600 * time.Millisecond)
	assert.Zero(t, m.Snapshot().FailedConnections,
		"a dial superseded by Disconnect must not count as a failure")
	assert.Equal(t, StateDisconnected, c.State())
}

func TestDisableDuringReconnectWaitClearsState(t *testing.T) {
	store := settings.NewMemStore()
	cfg := DefaultConfig("ws://127.0.0.1:9/api/socket")
	cfg.ReconnectDelay = 50 * time.Millisecond
	cfg.ConnectionTimeout = 200 * time.Millisecond
	cfg.MaxReconnectAttempts = 100
	cfg.KeepAliveInterval = 0
	m := health.NewMonitor(testLogger(), store, health.WithAutoDisable(false))
	c := New(cfg, testLogger(), store, m)
	t.Cleanup(c.Disconnect)

	c.JoinConversation(42) // tracked optimistically even while offline
	c.Connect(1)
	require.Eventually(t, func() bool {
		return c.State() == StateReconnecting
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, settings.SetEnabled(store, false))
	require.Eventually(t, func() bool {
		return c.State() == StateDisconnected
	}, 3*time.Second, 10*time.Millisecond)

	c.mu.Lock()
	rooms := len(c.rooms)
	attempts := c.attempts
	c.mu.Unlock()
	assert.Zero(t, rooms, "terminal disable must drop memberships")
	assert.Zero(t, attempts, "terminal disable must end the reconnect cycle")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "connected", StateConnected.String())
	assert.Equal(t, "reconnecting", StateReconnecting.String())
}
