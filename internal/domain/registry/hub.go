package registry

import (
	"github.com/google/uuid"
	"github.com/Xhand98/skillswap-realtime/internal/domain/model"
)

// Hubber defines the gateway for room membership and event fan-out.
type Hubber interface {
	Register(conn Connector)
	Unregister(connID uuid.UUID)
	Join(roomName string, conn Connector)
	Leave(roomName string, connID uuid.UUID)
	Emit(roomName string, ev model.Event, except uuid.UUID) int
	Stats() model.GatewayStats
	Shutdown()
}

// Emit with except == uuid.Nil delivers to every room member. Handlers pass
// the sender's connection id so a client never receives its own emission.

// Register adds a connection to the gateway with no room memberships yet.
func (h *Hub) Register(conn Connector) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[conn.GetID()] = conn
}

// Unregister tears down a connection and clears every room membership it
// held. Membership is purely a relation on live connections; nothing about
// the rooms survives the owning connection.
func (h *Hub) Unregister(connID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn, ok := h.conns[connID]
	if !ok {
		return
	}
	delete(h.conns, connID)

	for roomName := range h.memberships[connID] {
		h.dropMemberLocked(roomName, connID)
	}
	delete(h.memberships, connID)

	conn.Close()
}

// Join is idempotent: re-joining a room the connection already belongs to
// changes nothing.
func (h *Hub) Join(roomName string, conn Connector) {
	h.mu.Lock()
	defer h.mu.Unlock()

	connID := conn.GetID()
	if _, ok := h.conns[connID]; !ok {
		return
	}

	room, ok := h.rooms[roomName]
	if !ok {
		// Rooms exist implicitly, from the first member on.
		room = make(map[uuid.UUID]Connector)
		h.rooms[roomName] = room
	}
	room[connID] = conn

	held, ok := h.memberships[connID]
	if !ok {
		held = make(map[string]struct{})
		h.memberships[connID] = held
	}
	held[roomName] = struct{}{}
}

// Leave removes the connection from the room. Leaving a room the connection
// is not a member of is a no-op.
func (h *Hub) Leave(roomName string, connID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.dropMemberLocked(roomName, connID)
	if held, ok := h.memberships[connID]; ok {
		delete(held, roomName)
	}
}

// dropMemberLocked removes a member and garbage-collects the room when the
// last member leaves. Caller holds h.mu.
func (h *Hub) dropMemberLocked(roomName string, connID uuid.UUID) {
	room, ok := h.rooms[roomName]
	if !ok {
		return
	}
	delete(room, connID)
	if len(room) == 0 {
		delete(h.rooms, roomName)
	}
}

// Emit fans an event out to the room's members, skipping except when set.
// An empty or unknown room is a silent no-op. Returns the number of members
// the event was offered to; membership mutation is serialized by h.mu, so
// members observe events in the order the hub processed them.
func (h *Hub) Emit(roomName string, ev model.Event, except uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	room, ok := h.rooms[roomName]
	if !ok {
		return 0
	}

	n := 0
	for connID, conn := range room {
		if except != uuid.Nil && connID == except {
			continue
		}
		conn.Send(ev)
		n++
	}
	return n
}

// Stats reports live gateway counters for the injection and stats endpoints.
func (h *Hub) Stats() model.GatewayStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return model.GatewayStats{
		Initialized:      true,
		ConnectedSockets: len(h.conns),
		Rooms:            len(h.rooms),
	}
}

// Shutdown closes every live connection. Invoked from the fx OnStop hook.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, conn := range h.conns {
		conn.Close()
	}
	h.conns = make(map[uuid.UUID]Connector)
	h.rooms = make(map[string]map[uuid.UUID]Connector)
	h.memberships = make(map[uuid.UUID]map[string]struct{})
}
