package client

import (
	"strconv"
	"strings"

	"github.com/Xhand98/skillswap-realtime/internal/domain/model"
)

// Room operations assert membership optimistically: the local set is updated
// immediately and the join/leave control frame is fired without waiting for
// confirmation. The server never acks the joiner directly; peers observe the
// presence echoes instead.

// JoinConversation subscribes to a chat conversation's room.
func (c *Client) JoinConversation(conversationID int64) {
	c.joinRoom(model.ConversationRoom(conversationID),
		model.EventJoinConversation,
		model.RoomRef{ConversationID: conversationID})
}

// LeaveConversation leaves a chat conversation's room.
func (c *Client) LeaveConversation(conversationID int64) {
	c.leaveRoom(model.ConversationRoom(conversationID),
		model.EventLeaveConversation,
		model.RoomRef{ConversationID: conversationID})
}

// JoinPost subscribes to a post's comment room.
func (c *Client) JoinPost(postID int64) {
	c.joinRoom(model.PostRoom(postID),
		model.EventJoinPost,
		model.RoomRef{PostID: postID})
}

// LeavePost leaves a post's comment room.
func (c *Client) LeavePost(postID int64) {
	c.leaveRoom(model.PostRoom(postID),
		model.EventLeavePost,
		model.RoomRef{PostID: postID})
}

// StartTyping signals the beginning of typing in a conversation.
func (c *Client) StartTyping(conversationID int64) {
	c.SendMessage(model.EventTypingStart, model.RoomRef{ConversationID: conversationID})
}

// StopTyping signals the end of typing. The server trusts this as sent; a
// client that dies mid-typing leaves no stop behind.
func (c *Client) StopTyping(conversationID int64) {
	c.SendMessage(model.EventTypingStop, model.RoomRef{ConversationID: conversationID})
}

// SendMessage emits an arbitrary event frame over the live connection.
// Delivery is best-effort over a live link: when disconnected the call is
// dropped with a warning, never queued for later. It does not block and
// never returns an error to the caller.
func (c *Client) SendMessage(eventName string, data any) {
	c.mu.Lock()
	ws := c.ws
	connected := c.state == StateConnected
	c.mu.Unlock()

	if !connected || ws == nil {
		c.logger.Warn("message dropped: not connected", "event", eventName)
		return
	}

	frame := struct {
		Type string `json:"type"`
		Data any    `json:"data"`
	}{Type: eventName, Data: data}

	c.writeMu.Lock()
	err := ws.WriteJSON(frame)
	c.writeMu.Unlock()
	if err != nil {
		c.logger.Warn("message write failed", "event", eventName, "err", err)
		return
	}
	c.touchActivity()
}

func (c *Client) joinRoom(roomName, eventName string, ref model.RoomRef) {
	c.mu.Lock()
	c.rooms[roomName] = struct{}{}
	c.mu.Unlock()

	c.SendMessage(eventName, ref)
}

func (c *Client) leaveRoom(roomName, eventName string, ref model.RoomRef) {
	c.mu.Lock()
	delete(c.rooms, roomName)
	c.mu.Unlock()

	c.SendMessage(eventName, ref)
}

// sendJoinFor re-asserts one tracked membership after a reconnect.
func (c *Client) sendJoinFor(roomName string) {
	switch {
	case strings.HasPrefix(roomName, "conversation_"):
		id, err := strconv.ParseInt(strings.TrimPrefix(roomName, "conversation_"), 10, 64)
		if err == nil {
			c.SendMessage(model.EventJoinConversation, model.RoomRef{ConversationID: id})
		}
	case strings.HasPrefix(roomName, "post_"):
		id, err := strconv.ParseInt(strings.TrimPrefix(roomName, "post_"), 10, 64)
		if err == nil {
			c.SendMessage(model.EventJoinPost, model.RoomRef{PostID: id})
		}
	}
}
