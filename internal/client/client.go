/*
Package client implements the reconnection-aware realtime connection manager.

One Client owns at most one live socket per user session. Application code
consumes inbound events and state transitions over typed channels instead of
raw callback registration; transport failures never surface as panics or
synchronous errors from the operation set, because the consumer is UI-adjacent
code that must not crash on a dropped network link.
*/
package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/Xhand98/skillswap-realtime/internal/client/settings"
	"github.com/Xhand98/skillswap-realtime/internal/domain/model"
	"github.com/Xhand98/skillswap-realtime/internal/health"
	"golang.org/x/sync/errgroup"
)

// Config carries the client's transport tuning. Defaults mirror the values
// the production deployment settled on.
type Config struct {
	// URL is the websocket endpoint, e.g. "ws://localhost:3000/api/socket".
	URL string

	AutoReconnect        bool
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	KeepAliveInterval    time.Duration
	ConnectionTimeout    time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig(wsURL string) Config {
	return Config{
		URL:                  wsURL,
		AutoReconnect:        true,
		ReconnectDelay:       2 * time.Second,
		MaxReconnectAttempts: 5,
		KeepAliveInterval:    30 * time.Second,
		ConnectionTimeout:    5 * time.Second,
	}
}

// Client is the connection manager. All exported operations are safe for
// concurrent use and never block on the network.
type Client struct {
	cfg     Config
	logger  *slog.Logger
	store   settings.Store
	monitor *health.Monitor
	dialer  *websocket.Dialer

	mu             sync.Mutex
	state          State
	userID         int64
	ws             *websocket.Conn
	rooms          map[string]struct{}
	attempts       int
	reconnectTimer *time.Timer
	pumpCancel     context.CancelFunc
	// gen invalidates callbacks from pumps of a torn-down connection.
	gen int

	writeMu sync.Mutex

	lastActivityMu sync.Mutex
	lastActivity   time.Time

	events chan model.Event
	states chan StateChange
}

// New builds a connection manager. The settings store backs the persistent
// enabled/disabled preference; the monitor records every lifecycle event for
// loop detection.
func New(cfg Config, logger *slog.Logger, store settings.Store, monitor *health.Monitor) *Client {
	return &Client{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		monitor: monitor,
		dialer: &websocket.Dialer{
			HandshakeTimeout: cfg.ConnectionTimeout,
		},
		state:  StateIdle,
		rooms:  make(map[string]struct{}),
		events: make(chan model.Event, 64),
		states: make(chan StateChange, 16),
	}
}

// Events is the typed stream of inbound server events. Events are dropped,
// not buffered indefinitely, when the consumer falls behind.
func (c *Client) Events() <-chan model.Event { return c.events }

// States is the stream of connection state transitions.
func (c *Client) States() <-chan StateChange { return c.states }

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected reports whether the transport is currently live.
func (c *Client) IsConnected() bool { return c.State() == StateConnected }

// Connect establishes the transport for the given user. It is a no-op when a
// connection for this id is already live or in progress, and it is suppressed
// entirely while the persistent enabled preference is off. Failures are
// reported through the state stream and the health monitor, never returned.
func (c *Client) Connect(userID int64) {
	if userID <= 0 {
		c.logger.Warn("connect ignored: invalid user id", "user_id", userID)
		return
	}
	if !settings.Enabled(c.store) {
		c.logger.Info("connect suppressed: realtime disabled by preference")
		return
	}

	c.mu.Lock()
	if (c.state == StateConnected || c.state == StateConnecting) && c.userID == userID {
		c.mu.Unlock()
		return
	}
	// Supersede whatever session was live or pending. One manager owns at
	// most one socket; a dial for a new session must never share the old
	// one's transport or generation.
	c.shutdownLocked()
	c.userID = userID
	c.setStateLocked(StateConnecting, nil)
	gen := c.gen
	c.mu.Unlock()

	c.monitor.RecordConnectionAttempt()
	go c.dial(userID, gen, false)
}

// dial runs off the caller's goroutine; connect() suspends logically, not
// physically.
func (c *Client) dial(userID int64, gen int, isReconnect bool) {
	wsURL, err := c.endpoint(userID)
	if err != nil {
		c.failConnect(gen, &model.TransportError{Op: "dial", URL: c.cfg.URL, Err: err})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.ConnectionTimeout)
	defer cancel()

	ws, _, err := c.dialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		c.failConnect(gen, &model.TransportError{Op: "dial", URL: wsURL, Err: err})
		return
	}

	c.mu.Lock()
	if c.gen != gen {
		// Torn down while we were dialing.
		c.mu.Unlock()
		_ = ws.Close()
		return
	}
	c.ws = ws
	c.attempts = 0
	old := c.state
	c.setStateLockedRaw(StateConnected, nil, old)
	rejoin := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		rejoin = append(rejoin, room)
	}
	c.mu.Unlock()

	c.monitor.RecordSuccess()
	eventName := model.EventConnect
	if isReconnect {
		eventName = model.EventReconnect
	}
	c.publish(model.NewEvent(eventName, nil))
	c.logger.Info("realtime connected", "user_id", userID, "reconnect", isReconnect)

	// Re-assert optimistic memberships that survived a transport drop.
	// Events emitted while disconnected are gone; there is no replay log.
	for _, room := range rejoin {
		c.sendJoinFor(room)
	}

	c.startPumps(ws, gen)
}

func (c *Client) startPumps(ws *websocket.Conn, gen int) {
	pumpCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.pumpCancel = cancel
	c.mu.Unlock()

	g, ctx := errgroup.WithContext(pumpCtx)
	g.Go(func() error { return c.readPump(ctx, ws) })
	g.Go(func() error { return c.pingLoop(ctx) })

	go func() {
		err := g.Wait()
		cancel()
		c.handleDrop(gen, err)
	}()
}

func (c *Client) readPump(ctx context.Context, ws *websocket.Conn) error {
	for {
		var ev model.Event
		if err := ws.ReadJSON(&ev); err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return &model.TransportError{Op: "read", URL: c.cfg.URL, Err: err}
		}
		c.publish(ev)
	}
}

// pingLoop sends application-level heartbeats so silently-dead links surface
// as missing traffic instead of lingering forever.
func (c *Client) pingLoop(ctx context.Context) error {
	if c.cfg.KeepAliveInterval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(c.cfg.KeepAliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			c.SendMessage(model.EventPing, nil)
		}
	}
}

// failConnect handles a failed dial: records the error and either schedules a
// retry or reports the terminal state. A dial that lost to an explicit
// Disconnect is silent; it must not feed loop detection.
func (c *Client) failConnect(gen int, terr error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.monitor.RecordError(terr)
	c.publish(model.NewEvent(model.EventConnectError, map[string]any{"error": terr.Error()}))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	if c.cfg.AutoReconnect {
		c.scheduleReconnectLocked(terr)
		return
	}
	c.setStateLocked(StateDisconnected, terr)
}

// handleDrop reacts to pump termination: an explicit local disconnect already
// bumped the generation, so only genuine transport drops get retried.
func (c *Client) handleDrop(gen int, err error) {
	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		return
	}
	c.teardownTransportLocked()

	if err == nil {
		c.setStateLocked(StateDisconnected, nil)
		c.mu.Unlock()
		return
	}

	c.mu.Unlock()
	c.monitor.RecordError(err)
	c.publish(model.NewEvent(model.EventDisconnect, map[string]any{"reason": err.Error()}))

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return
	}
	if c.cfg.AutoReconnect {
		c.scheduleReconnectLocked(err)
		return
	}
	c.setStateLocked(StateDisconnected, err)
}

// scheduleReconnectLocked arms the retry timer. A pending timer is always
// cleared first, preventing duplicate in-flight reconnection chains.
func (c *Client) scheduleReconnectLocked(cause error) {
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}

	if c.attempts >= c.cfg.MaxReconnectAttempts {
		c.logger.Error("reconnect attempts exhausted",
			"attempts", c.attempts,
			"max", c.cfg.MaxReconnectAttempts,
		)
		c.publishLocked(model.NewEvent(model.EventReconnectError, map[string]any{
			"error":    "reconnect attempts exhausted",
			"attempts": c.attempts,
		}))
		c.roomsClearLocked()
		c.setStateLocked(StateDisconnected, cause)
		return
	}

	c.attempts++
	c.setStateLocked(StateReconnecting, cause)
	c.monitor.RecordReconnectAttempt()

	attempt := c.attempts
	gen := c.gen
	c.reconnectTimer = time.AfterFunc(c.cfg.ReconnectDelay, func() {
		if !settings.Enabled(c.store) {
			// Loop protection disabled the feature while we were waiting.
			// Terminal like exhaustion: drop memberships and the cycle.
			c.mu.Lock()
			if c.gen == gen {
				c.roomsClearLocked()
				c.attempts = 0
				c.setStateLocked(StateDisconnected, nil)
			}
			c.mu.Unlock()
			return
		}

		c.mu.Lock()
		if c.gen != gen || c.state != StateReconnecting {
			c.mu.Unlock()
			return
		}
		userID := c.userID
		c.mu.Unlock()

		c.publish(model.NewEvent(model.EventReconnectAttempt, map[string]any{"attempt": attempt}))
		c.monitor.RecordConnectionAttempt()
		c.dial(userID, gen, true)
	})
}

// Disconnect is the explicit shutdown: cancels any pending reconnection,
// tears down the transport and clears all local room membership. Idempotent.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.shutdownLocked()
	if c.state != StateDisconnected {
		c.setStateLocked(StateDisconnected, nil)
	}
}

// shutdownLocked invalidates the current session: bumps the generation so
// stale dials and pumps miss, cancels the retry timer, closes the transport
// and drops all local room membership. Caller holds c.mu.
func (c *Client) shutdownLocked() {
	c.gen++
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.teardownTransportLocked()
	c.roomsClearLocked()
	c.attempts = 0
}

// Reconnect forces a disconnect/connect cycle and resets the attempt counter.
// Operator tooling uses it to recover from a stuck state.
func (c *Client) Reconnect() {
	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()

	c.Disconnect()
	if userID > 0 {
		c.Connect(userID)
	}
}

// ToggleEnabled flips (or sets, when enabled is non-nil) the persistent
// enable preference. Disabling disconnects immediately; enabling triggers a
// fresh connect for the last known user.
func (c *Client) ToggleEnabled(enabled *bool) {
	next := !settings.Enabled(c.store)
	if enabled != nil {
		next = *enabled
	}

	if err := settings.SetEnabled(c.store, next); err != nil {
		c.logger.Error("failed to persist enable preference", "err", err)
	}

	if !next {
		c.logger.Info("realtime disabled by preference")
		c.Disconnect()
		return
	}

	c.mu.Lock()
	userID := c.userID
	c.mu.Unlock()
	if userID > 0 {
		c.Connect(userID)
	}
}

func (c *Client) endpoint(userID int64) (string, error) {
	u, err := url.Parse(c.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("client: bad endpoint %q: %w", c.cfg.URL, err)
	}
	q := u.Query()
	q.Set("user_id", strconv.FormatInt(userID, 10))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (c *Client) teardownTransportLocked() {
	if c.pumpCancel != nil {
		c.pumpCancel()
		c.pumpCancel = nil
	}
	if c.ws != nil {
		_ = c.ws.Close()
		c.ws = nil
	}
}

func (c *Client) roomsClearLocked() {
	c.rooms = make(map[string]struct{})
}

func (c *Client) setStateLocked(next State, err error) {
	c.setStateLockedRaw(next, err, c.state)
}

func (c *Client) setStateLockedRaw(next State, err error, old State) {
	c.state = next
	select {
	case c.states <- StateChange{Old: old, New: next, Err: err}:
	default:
	}
}

// LastActivity reports when traffic last moved in either direction.
func (c *Client) LastActivity() time.Time {
	c.lastActivityMu.Lock()
	defer c.lastActivityMu.Unlock()
	return c.lastActivity
}

func (c *Client) touchActivity() {
	c.lastActivityMu.Lock()
	c.lastActivity = time.Now()
	c.lastActivityMu.Unlock()
}

func (c *Client) publish(ev model.Event) {
	c.touchActivity()
	select {
	case c.events <- ev:
	default:
		c.logger.Debug("event stream full, dropping", "type", ev.Type)
	}
}

// publishLocked exists only to keep call sites honest about lock state; the
// channel push itself never blocks either way.
func (c *Client) publishLocked(ev model.Event) {
	select {
	case c.events <- ev:
	default:
	}
}
