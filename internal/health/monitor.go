// Package health observes connection-lifecycle events for one client process
// and decides when the realtime layer should protectively disable itself.
package health

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Xhand98/skillswap-realtime/internal/client/settings"
	"github.com/Xhand98/skillswap-realtime/internal/domain/model"
)

// Loop-detection thresholds. Mirrors the deployment history that shaped them:
// a CORS misconfiguration shows up as rapid uninformative failures, and
// retrying through it only makes the browser console worse.
const (
	reconnectLoopThreshold = 5
	failureLoopThreshold   = 3
	failureLoopWindow      = 10 * time.Second

	defaultCheckInterval = 10 * time.Second
	defaultRecoverAfter  = 30 * time.Second
)

// Data is the per-process health record. Counters are monotonic except
// ReconnectAttempts, which resets on success or explicit reset.
type Data struct {
	TotalConnections      int       `json:"totalConnections"`
	SuccessfulConnections int       `json:"successfulConnections"`
	FailedConnections     int       `json:"failedConnections"`
	EmptyErrors           int       `json:"emptyErrors"`
	ReconnectAttempts     int       `json:"reconnectAttempts"`
	LastConnectionTime    time.Time `json:"lastConnectionTime"`
	LastErrorTime         time.Time `json:"lastErrorTime"`
	LastError             string    `json:"lastError,omitempty"`
	IsInErrorLoop         bool      `json:"isInErrorLoop"`
}

// Monitor aggregates connection health. One instance per client process.
type Monitor struct {
	logger   *slog.Logger
	settings settings.Store

	autoDisableOnLoop bool
	checkInterval     time.Duration
	recoverAfter      time.Duration
	now               func() time.Time

	mu          sync.Mutex
	data        Data
	prevErrorAt time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
}

// Option configures the Monitor.
type Option func(*Monitor)

// WithAutoDisable controls whether a detected loop persists the disabled
// preference, suppressing connect attempts until an operator re-enables.
func WithAutoDisable(enabled bool) Option {
	return func(m *Monitor) { m.autoDisableOnLoop = enabled }
}

// WithCheckInterval overrides how often the recovery check runs.
func WithCheckInterval(d time.Duration) Option {
	return func(m *Monitor) { m.checkInterval = d }
}

// WithRecoverAfter overrides the quiet period after which a loop flag clears.
func WithRecoverAfter(d time.Duration) Option {
	return func(m *Monitor) { m.recoverAfter = d }
}

// WithClock substitutes the time source. Tests drive loop windows with it.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) { m.now = now }
}

func NewMonitor(logger *slog.Logger, store settings.Store, opts ...Option) *Monitor {
	m := &Monitor{
		logger:            logger,
		settings:          store,
		autoDisableOnLoop: true,
		checkInterval:     defaultCheckInterval,
		recoverAfter:      defaultRecoverAfter,
		now:               time.Now,
		stopCh:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the periodic recovery check. The check clears the loop flag
// once the most recent error is old enough, so the system recovers without a
// process restart when the underlying issue resolves.
func (m *Monitor) Start() {
	go func() {
		ticker := time.NewTicker(m.checkInterval)
		defer ticker.Stop()
		for {
			select {
			case <-m.stopCh:
				return
			case <-ticker.C:
				m.recoveryCheck()
			}
		}
	}()
}

// Stop halts the recovery check. Idempotent.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// RecordConnectionAttempt counts every attempt, successful or not.
func (m *Monitor) RecordConnectionAttempt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.TotalConnections++
	m.data.LastConnectionTime = m.now()
}

// RecordSuccess counts an established connection and ends the current
// reconnect cycle.
func (m *Monitor) RecordSuccess() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.SuccessfulConnections++
	m.data.ReconnectAttempts = 0
}

// RecordError counts a failed connection, classifies uninformative errors,
// and re-evaluates the loop condition.
func (m *Monitor) RecordError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.prevErrorAt = m.data.LastErrorTime
	m.data.FailedConnections++
	m.data.LastErrorTime = now
	if err != nil {
		m.data.LastError = err.Error()
	}

	if IsEmptyError(err) {
		m.data.EmptyErrors++
	}

	// Trigger (b): repeated failures landing close together.
	if m.data.FailedConnections >= failureLoopThreshold &&
		!m.prevErrorAt.IsZero() &&
		now.Sub(m.prevErrorAt) < failureLoopWindow {
		m.enterLoopLocked("rapid consecutive failures")
	}
}

// RecordReconnectAttempt counts one attempt in the current reconnect cycle.
func (m *Monitor) RecordReconnectAttempt() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.data.ReconnectAttempts++

	// Trigger (a): the cycle has gone on too long without a success.
	if m.data.ReconnectAttempts >= reconnectLoopThreshold {
		m.enterLoopLocked("reconnect attempts exhausted")
	}
}

// ResetErrorState is the explicit operator action: it ends the reconnect
// cycle and clears the loop flag but keeps the cumulative counters for
// historical diagnostics.
func (m *Monitor) ResetErrorState() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked()
}

// Snapshot returns a copy of the current health record.
func (m *Monitor) Snapshot() Data {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data
}

// InErrorLoop reports whether the protective flag is currently set.
func (m *Monitor) InErrorLoop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.IsInErrorLoop
}

func (m *Monitor) enterLoopLocked(reason string) {
	if m.data.IsInErrorLoop {
		return
	}
	m.data.IsInErrorLoop = true
	m.logger.Warn("connection error loop detected",
		"reason", reason,
		"failed", m.data.FailedConnections,
		"reconnect_attempts", m.data.ReconnectAttempts,
	)

	if m.autoDisableOnLoop && m.settings != nil {
		// Persisting the preference suppresses connect() across restarts
		// until an operator flips it back.
		if err := settings.SetEnabled(m.settings, false); err != nil {
			m.logger.Error("failed to persist disable preference", "err", err)
		}
	}
}

func (m *Monitor) resetLocked() {
	m.data.ReconnectAttempts = 0
	m.data.IsInErrorLoop = false
}

func (m *Monitor) recoveryCheck() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.data.IsInErrorLoop || m.data.LastErrorTime.IsZero() {
		return
	}
	if m.now().Sub(m.data.LastErrorTime) > m.recoverAfter {
		m.logger.Info("error loop cleared after quiet period")
		m.resetLocked()
	}
}

// boilerplateFields are event-object keys that carry no diagnostic value.
// An error whose detail reduces to these alone is the classic symptom of a
// browser-level CORS or proxy failure.
var boilerplateFields = map[string]struct{}{
	"isTrusted":        {},
	"timeStamp":        {},
	"defaultPrevented": {},
	"cancelBubble":     {},
	"cancelable":       {},
	"returnValue":      {},
}

// IsEmptyError reports whether a transport error carries no actionable
// detail: no underlying cause and no metadata beyond boilerplate event keys.
func IsEmptyError(err error) bool {
	var te *model.TransportError
	if !errors.As(err, &te) {
		return false
	}
	if te.Err != nil {
		return false
	}
	for k := range te.Fields {
		if _, boilerplate := boilerplateFields[k]; !boilerplate {
			return false
		}
	}
	return true
}
