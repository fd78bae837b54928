// Package store defines the storage engine contract for the messenger core:
// named sequences, partitioned messages, conversation summaries, and per-user
// timeline entries. Engines live in subpackages (memory, dynamo, mysql).
package store

import (
	"context"

	"github.com/relaymsg/messenger-store/internal/model"
)

// Sequence names used by the services.
const (
	SeqMessageID      = "message_id"
	SeqConversationID = "conversation_id"
)

// Store is the full storage engine contract. The four collections are
// independent: clearing one never affects the others. Two writers to
// different conversations never contend; two writers to the same conversation
// may race but cannot corrupt state because messages are append-only and the
// derived views are guarded by timestamp.
type Store interface {
	SequenceAllocator
	MessageStore
	ConversationDirectory
	TimelineIndex

	// Ping reports whether the backing storage is reachable.
	Ping(ctx context.Context) error
}

// SequenceAllocator issues monotonically increasing identifiers for a named
// sequence. Values are unique and strictly increasing per name, but may be
// sparse: an allocation that fails with ErrUnavailable may still have
// consumed an id, and no decrement exists.
type SequenceAllocator interface {
	NextSequence(ctx context.Context, name string) (int64, error)
}

// MessageStore appends immutable messages into per-conversation partitions
// clustered by (created_at DESC, message_id ASC).
type MessageStore interface {
	// AppendMessage durably writes a fully populated message.
	AppendMessage(ctx context.Context, msg *model.Message) error

	// PageMessages returns up to limit messages for the conversation in
	// retrieval order, starting strictly after the given position when one is
	// supplied. An unknown conversation yields an empty page, not an error.
	PageMessages(ctx context.Context, conversationID int64, after *Position, limit int) ([]model.Message, error)
}

// ConversationDirectory holds the last-message snapshot per conversation.
type ConversationDirectory interface {
	// UpsertSummary applies the snapshot iff its timestamp is not older than
	// what is stored (last-writer-wins by timestamp, not arrival order).
	UpsertSummary(ctx context.Context, summary *model.ConversationSummary) error

	// GetSummary returns ErrNotFound if no summary was ever written.
	GetSummary(ctx context.Context, conversationID int64) (*model.ConversationSummary, error)
}

// TimelineIndex holds one recency entry per (user, conversation).
type TimelineIndex interface {
	// UpsertTimelineEntry applies the entry with the same
	// last-writer-wins-by-timestamp policy as UpsertSummary.
	UpsertTimelineEntry(ctx context.Context, entry *model.TimelineEntry) error

	// ListTimeline returns up to limit entries for the user ordered by last
	// activity descending (ties by conversation id ascending), starting
	// strictly after the given position when one is supplied.
	ListTimeline(ctx context.Context, userID int64, after *Position, limit int) ([]model.TimelineEntry, error)
}
