package store

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/relaymsg/messenger-store/internal/model"
)

// Position is a page boundary inside an ordered partition scan. For message
// pages ID is a message id; for timeline listings it is a conversation id.
// The timestamp is carried as unix milliseconds so a position that round-trips
// through a cursor string compares exactly.
type Position struct {
	TsMilli int64 `json:"ts"`
	ID      int64 `json:"id"`
}

// MessagePosition returns the position of a message in retrieval order.
func MessagePosition(m *model.Message) Position {
	return Position{TsMilli: m.CreatedAt.UnixMilli(), ID: m.MessageID}
}

// TimelinePosition returns the position of a timeline entry in listing order.
func TimelinePosition(e *model.TimelineEntry) Position {
	return Position{TsMilli: e.LastActivityAt.UnixMilli(), ID: e.ConversationID}
}

// After reports whether an item at (tsMilli, id) comes strictly after p in
// (timestamp DESC, id ASC) order.
func (p Position) After(tsMilli, id int64) bool {
	if tsMilli != p.TsMilli {
		return tsMilli < p.TsMilli
	}
	return id > p.ID
}

// EncodeCursor renders a position as an opaque cursor string.
func EncodeCursor(p Position) string {
	raw, _ := json.Marshal(p)
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses an opaque cursor string. A malformed cursor is an
// ErrInvalidArgument; an empty string decodes to no position.
func DecodeCursor(cursor string) (*Position, error) {
	if cursor == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", ErrInvalidArgument)
	}
	var p Position
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", ErrInvalidArgument)
	}
	return &p, nil
}
