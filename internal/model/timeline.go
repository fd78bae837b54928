package model

import (
	"time"
)

// TimelineEntry is one row of a user's conversation index: the conversation,
// who the counterpart is, and when it was last active. There is exactly one
// entry per (user, conversation) pair.
type TimelineEntry struct {
	UserID         int64     `json:"user_id"`
	ConversationID int64     `json:"conversation_id"`
	CounterpartID  int64     `json:"counterpart_id"`
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Before reports whether e sorts before other in listing order:
// last activity descending, conversation_id ascending on ties.
func (e *TimelineEntry) Before(other *TimelineEntry) bool {
	a, b := e.LastActivityAt.UnixMilli(), other.LastActivityAt.UnixMilli()
	if a != b {
		return a > b
	}
	return e.ConversationID < other.ConversationID
}

// ListTimelineResponse is the response for a user's conversation listing.
type ListTimelineResponse struct {
	Entries    []TimelineEntry `json:"entries"`
	HasMore    bool            `json:"has_more"`
	NextCursor string          `json:"next_cursor,omitempty"`
}
