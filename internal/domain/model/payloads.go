package model

import "time"

// RoomRef identifies the scope of a join/leave/typing control event.
// Exactly one of the two ids is set depending on the event name.
type RoomRef struct {
	ConversationID int64 `json:"conversation_id,omitempty"`
	PostID         int64 `json:"post_id,omitempty"`
}

// PresencePayload notifies the remaining room members that a peer
// joined or left. Never echoed back to the peer itself.
type PresencePayload struct {
	UserID         int64 `json:"user_id"`
	ConversationID int64 `json:"conversation_id"`
}

// TypingPayload is relayed verbatim to other room members. The server does
// no debouncing and keeps no typing state; stop events are trusted as sent.
type TypingPayload struct {
	UserID         int64 `json:"user_id"`
	ConversationID int64 `json:"conversation_id"`
}

// PongPayload answers a client heartbeat with a fresh server timestamp.
type PongPayload struct {
	Timestamp time.Time `json:"timestamp"`
}

// GatewayStats reports the live state of the socket gateway. Returned by the
// broadcast-injection endpoint and the stats endpoint.
type GatewayStats struct {
	Initialized      bool `json:"initialized"`
	ConnectedSockets int  `json:"connectedSockets"`
	Rooms            int  `json:"rooms,omitempty"`
}
