package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/relaymsg/messenger-store/internal/model"
	"github.com/relaymsg/messenger-store/internal/store"
)

// NextSequence increments the named counter in a single atomic statement.
// LAST_INSERT_ID(expr) makes the incremented value readable from the insert
// result without a second round trip or a read-modify-write cycle.
func (s *Store) NextSequence(ctx context.Context, name string) (int64, error) {
	if name == "" {
		return 0, fmt.Errorf("%w: sequence name required", store.ErrInvalidArgument)
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO sequences (name, seq_value) VALUES (?, LAST_INSERT_ID(1))
		 ON DUPLICATE KEY UPDATE seq_value = LAST_INSERT_ID(seq_value + 1)`,
		name,
	)
	if err != nil {
		return 0, unavailable("increment sequence "+name, err)
	}
	value, err := res.LastInsertId()
	if err != nil {
		return 0, unavailable("increment sequence "+name, err)
	}
	return value, nil
}

// AppendMessage inserts the message row. A retried append of the same
// (conversation, timestamp, id) triple is a no-op.
func (s *Store) AppendMessage(ctx context.Context, msg *model.Message) error {
	if msg == nil || msg.ConversationID <= 0 || msg.MessageID <= 0 {
		return fmt.Errorf("%w: message requires conversation and message ids", store.ErrInvalidArgument)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, created_at, message_id, sender_id, receiver_id, content)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE content = content`,
		msg.ConversationID, msg.CreatedAt.UnixMilli(), msg.MessageID,
		msg.SenderID, msg.ReceiverID, msg.Content,
	)
	if err != nil {
		return unavailable("append message", err)
	}
	return nil
}

// PageMessages selects the next page in (created_at DESC, message_id ASC)
// order, strictly after the cursor position when one is supplied.
func (s *Store) PageMessages(ctx context.Context, conversationID int64, after *store.Position, limit int) ([]model.Message, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", store.ErrInvalidArgument)
	}

	query := `SELECT message_id, sender_id, receiver_id, content, created_at
		FROM messages WHERE conversation_id = ?`
	args := []any{conversationID}
	if after != nil {
		query += ` AND (created_at < ? OR (created_at = ? AND message_id > ?))`
		args = append(args, after.TsMilli, after.TsMilli, after.ID)
	}
	query += ` ORDER BY created_at DESC, message_id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("page messages", err)
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var msg model.Message
		var tsMilli int64
		if err := rows.Scan(&msg.MessageID, &msg.SenderID, &msg.ReceiverID, &msg.Content, &tsMilli); err != nil {
			return nil, unavailable("page messages", err)
		}
		msg.ConversationID = conversationID
		msg.CreatedAt = time.UnixMilli(tsMilli).UTC()
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("page messages", err)
	}
	return messages, nil
}

// UpsertSummary applies the snapshot with last-writer-wins by timestamp. The
// last_ts assignment must stay last: MySQL evaluates the update list in order
// and the IF guards read the pre-update last_ts.
func (s *Store) UpsertSummary(ctx context.Context, summary *model.ConversationSummary) error {
	if summary == nil || summary.ConversationID <= 0 {
		return fmt.Errorf("%w: summary requires a conversation id", store.ErrInvalidArgument)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conversation_summaries (conversation_id, sender_id, receiver_id, last_message, last_ts)
		 VALUES (?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE
			sender_id = IF(VALUES(last_ts) >= last_ts, VALUES(sender_id), sender_id),
			receiver_id = IF(VALUES(last_ts) >= last_ts, VALUES(receiver_id), receiver_id),
			last_message = IF(VALUES(last_ts) >= last_ts, VALUES(last_message), last_message),
			last_ts = IF(VALUES(last_ts) >= last_ts, VALUES(last_ts), last_ts)`,
		summary.ConversationID, summary.SenderID, summary.ReceiverID,
		summary.LastMessage, summary.LastMessageAt.UnixMilli(),
	)
	if err != nil {
		return unavailable("upsert summary", err)
	}
	return nil
}

// GetSummary reads the snapshot row.
func (s *Store) GetSummary(ctx context.Context, conversationID int64) (*model.ConversationSummary, error) {
	var summary model.ConversationSummary
	var tsMilli int64
	err := s.db.QueryRowContext(ctx,
		`SELECT sender_id, receiver_id, last_message, last_ts
		 FROM conversation_summaries WHERE conversation_id = ?`,
		conversationID,
	).Scan(&summary.SenderID, &summary.ReceiverID, &summary.LastMessage, &tsMilli)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: conversation %d", store.ErrNotFound, conversationID)
	}
	if err != nil {
		return nil, unavailable("get summary", err)
	}
	summary.ConversationID = conversationID
	summary.LastMessageAt = time.UnixMilli(tsMilli).UTC()
	return &summary, nil
}

// UpsertTimelineEntry applies the recency entry with the same LWW guard.
func (s *Store) UpsertTimelineEntry(ctx context.Context, entry *model.TimelineEntry) error {
	if entry == nil || entry.UserID <= 0 || entry.ConversationID <= 0 {
		return fmt.Errorf("%w: timeline entry requires user and conversation ids", store.ErrInvalidArgument)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_timeline (user_id, conversation_id, counterpart_id, last_ts)
		 VALUES (?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE
			counterpart_id = IF(VALUES(last_ts) >= last_ts, VALUES(counterpart_id), counterpart_id),
			last_ts = IF(VALUES(last_ts) >= last_ts, VALUES(last_ts), last_ts)`,
		entry.UserID, entry.ConversationID, entry.CounterpartID,
		entry.LastActivityAt.UnixMilli(),
	)
	if err != nil {
		return unavailable("upsert timeline entry", err)
	}
	return nil
}

// ListTimeline selects the user's entries in (last_ts DESC, conversation_id
// ASC) order, strictly after the cursor when one is supplied.
func (s *Store) ListTimeline(ctx context.Context, userID int64, after *store.Position, limit int) ([]model.TimelineEntry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", store.ErrInvalidArgument)
	}

	query := `SELECT conversation_id, counterpart_id, last_ts FROM user_timeline WHERE user_id = ?`
	args := []any{userID}
	if after != nil {
		query += ` AND (last_ts < ? OR (last_ts = ? AND conversation_id > ?))`
		args = append(args, after.TsMilli, after.TsMilli, after.ID)
	}
	query += ` ORDER BY last_ts DESC, conversation_id ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, unavailable("list timeline", err)
	}
	defer rows.Close()

	var entries []model.TimelineEntry
	for rows.Next() {
		var entry model.TimelineEntry
		var tsMilli int64
		if err := rows.Scan(&entry.ConversationID, &entry.CounterpartID, &tsMilli); err != nil {
			return nil, unavailable("list timeline", err)
		}
		entry.UserID = userID
		entry.LastActivityAt = time.UnixMilli(tsMilli).UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list timeline", err)
	}
	return entries, nil
}
