package model

import (
	"encoding/json"
	"time"
)

// Wire-level event names. These are shared with the web client and the
// backend data service and must stay bit-exact.
const (
	// Client -> server control events.
	EventJoinConversation  = "join_conversation"
	EventLeaveConversation = "leave_conversation"
	EventJoinPost          = "join_post"
	EventLeavePost         = "leave_post"
	EventTypingStart       = "typing_start"
	EventTypingStop        = "typing_stop"
	EventNewMessage        = "new_message"
	EventNewComment        = "new_comment"
	EventPing              = "ping"

	// Server -> client notifications.
	EventPong                   = "pong"
	EventUserJoinedConversation = "user_joined_conversation"
	EventUserLeftConversation   = "user_left_conversation"
	EventUserTypingStart        = "user_typing_start"
	EventUserTypingStop         = "user_typing_stop"

	// Connection lifecycle, surfaced on the client event stream only.
	EventConnect          = "connect"
	EventDisconnect       = "disconnect"
	EventConnectError     = "connect_error"
	EventReconnect        = "reconnect"
	EventReconnectAttempt = "reconnect_attempt"
	EventReconnectError   = "reconnect_error"
	EventError            = "error"
)

// Event is the envelope every room broadcast travels in. Timestamp is always
// stamped by the server at emission time, overriding whatever the client sent,
// so receivers share a single ordering reference.
type Event struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent builds a server-stamped envelope.
func NewEvent(eventType string, data any) Event {
	return Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now().UTC(),
	}
}

// Frame is the raw inbound shape read off the socket before dispatch.
// Data stays opaque until the relay knows which payload type to expect.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}
