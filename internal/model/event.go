package model

import (
	"time"
)

// ErrorEvent is an error pushed over a live-tail stream.
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HeartbeatEvent keeps idle live-tail connections alive.
type HeartbeatEvent struct {
	Timestamp time.Time `json:"timestamp"`
}

// ReplayCompleteEvent marks the end of history replay on a live-tail stream.
type ReplayCompleteEvent struct {
	MessageCount int    `json:"message_count"`
	NextCursor   string `json:"next_cursor,omitempty"`
}
