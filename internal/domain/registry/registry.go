/*
Package registry implements the room-based broadcast gateway.

Key architectural concepts:
  - Rooms are named broadcast scopes ("conversation_42", "post_7") created
    implicitly on first join and garbage-collected when the last member
    leaves. No empty-room object is ever retained.
  - Membership is a relation on live connections only. It is never persisted;
    it vanishes with the owning connection and is rebuilt from join events.
  - Fan-out excludes the sender by connection id, so a client never observes
    its own emission echoed back.
  - A single RWMutex serializes membership mutation while allowing concurrent
    read-mostly fan-out, preserving per-room delivery order.
*/
package registry

import (
	"sync"

	"github.com/google/uuid"
)

// Hub is the single gateway instance per server process. It is constructed
// once at startup and handed explicitly to every handler that needs it.
type Hub struct {
	mu sync.RWMutex

	// conns indexes every live session by connection id.
	conns map[uuid.UUID]Connector

	// rooms maps room name to its member set.
	rooms map[string]map[uuid.UUID]Connector

	// memberships is the reverse index used to clear a connection's rooms
	// in one pass when it unregisters.
	memberships map[uuid.UUID]map[string]struct{}
}

func NewHub() *Hub {
	return &Hub{
		conns:       make(map[uuid.UUID]Connector),
		rooms:       make(map[string]map[uuid.UUID]Connector),
		memberships: make(map[uuid.UUID]map[string]struct{}),
	}
}
