// Package model defines data structures for the messenger storage core.
package model

import (
	"time"
)

// Message is an immutable message row. Messages are owned by their
// conversation partition and never updated or deleted once written.
type Message struct {
	ConversationID int64     `json:"conversation_id"`
	MessageID      int64     `json:"message_id"`
	SenderID       int64     `json:"sender_id"`
	ReceiverID     int64     `json:"receiver_id"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}

// Before reports whether m sorts before other in retrieval order:
// created_at descending, message_id ascending on ties.
func (m *Message) Before(other *Message) bool {
	a, b := m.CreatedAt.UnixMilli(), other.CreatedAt.UnixMilli()
	if a != b {
		return a > b
	}
	return m.MessageID < other.MessageID
}

// SendMessageRequest is the request to append a new message.
type SendMessageRequest struct {
	SenderID   int64      `json:"sender_id"`
	ReceiverID int64      `json:"receiver_id"`
	Content    string     `json:"content"`
	CreatedAt  *time.Time `json:"created_at,omitempty"`
}

// ListMessagesResponse is the response for a message page.
type ListMessagesResponse struct {
	Messages   []Message `json:"messages"`
	HasMore    bool      `json:"has_more"`
	NextCursor string    `json:"next_cursor,omitempty"`
}
