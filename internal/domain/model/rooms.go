package model

import "fmt"

// Room name prefixes. The web client and the backend data service derive the
// same names, so the format is part of the wire contract.
const (
	conversationRoomPrefix = "conversation_"
	postRoomPrefix         = "post_"
)

// ConversationRoom returns the broadcast scope for a chat conversation.
func ConversationRoom(conversationID int64) string {
	return fmt.Sprintf("%s%d", conversationRoomPrefix, conversationID)
}

// PostRoom returns the broadcast scope for a post's comment feed.
func PostRoom(postID int64) string {
	return fmt.Sprintf("%s%d", postRoomPrefix, postID)
}
