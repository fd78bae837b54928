package model

import (
	"time"
)

// ConversationSummary is the denormalized per-conversation view holding the
// canonical participant pair and a snapshot of the most recent message.
// The message stream is the source of truth; the summary is an
// eventually-consistent cache updated with last-writer-wins by timestamp.
type ConversationSummary struct {
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	ReceiverID     int64     `json:"receiver_id"`
	LastMessageAt  time.Time `json:"last_message_at"`
	LastMessage    string    `json:"last_message"`
}

// CreateConversationRequest is the request to create a new conversation.
// The sender is taken from the authenticated caller.
type CreateConversationRequest struct {
	ReceiverID int64 `json:"receiver_id"`
}
