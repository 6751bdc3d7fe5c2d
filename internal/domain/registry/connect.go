package registry

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/Xhand98/skillswap-realtime/internal/domain/model"
)

// Interface guard
var _ Connector = (*connect)(nil)

// Connector is the gateway's view of one live socket session.
// Transport handlers pump Recv() onto the wire; the hub pushes into Send.
type Connector interface {
	GetID() uuid.UUID
	GetUserID() int64
	Send(ev model.Event) bool
	Recv() <-chan model.Event
	Done() <-chan struct{}
	Close()
}

// connect is the concrete implementation, unexported to force interface usage.
type connect struct {
	id     uuid.UUID
	userID int64

	ctx      context.Context
	cancelFn context.CancelFunc

	sendCh    chan model.Event
	closeOnce sync.Once

	// droppedCount tracks events shed because the session buffer was full.
	droppedCount atomic.Uint64
}

// NewConnector creates a session handle bound to the transport's context.
func NewConnector(ctx context.Context, userID int64, bufferSize int) Connector {
	childCtx, cancel := context.WithCancel(ctx)
	return &connect{
		id:       uuid.New(),
		userID:   userID,
		ctx:      childCtx,
		cancelFn: cancel,
		sendCh:   make(chan model.Event, bufferSize),
	}
}

func (c *connect) GetID() uuid.UUID { return c.id }
func (c *connect) GetUserID() int64 { return c.userID }

// Send enqueues an event for the session's write pump without blocking.
// A saturated buffer means a persistently slow consumer; the event is shed
// rather than letting one stalled socket hold up the whole room fan-out.
func (c *connect) Send(ev model.Event) bool {
	select {
	case <-c.ctx.Done():
		return false
	default:
	}

	select {
	case c.sendCh <- ev:
		return true
	default:
		c.droppedCount.Add(1)
		return false
	}
}

func (c *connect) Recv() <-chan model.Event { return c.sendCh }

// Done signals the write pump that the session ended. The send channel itself
// is never closed, so a racing Send can only miss, never panic.
func (c *connect) Done() <-chan struct{} { return c.ctx.Done() }

// Close terminates the session exactly once. Safe to call concurrently from
// the hub (shutdown), the handler (defer) and the read pump (error path).
func (c *connect) Close() {
	c.closeOnce.Do(func() {
		c.cancelFn()
	})
}
