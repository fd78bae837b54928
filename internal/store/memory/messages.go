package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/relaymsg/messenger-store/internal/model"
	"github.com/relaymsg/messenger-store/internal/store"
)

// AppendMessage inserts the message into its conversation partition, keeping
// the partition sorted by (created_at DESC, message_id ASC). Re-appending an
// identical (timestamp, id) pair is a no-op, which makes retried appends of
// the same allocated message idempotent.
func (s *Store) AppendMessage(ctx context.Context, msg *model.Message) error {
	if msg == nil || msg.ConversationID <= 0 || msg.MessageID <= 0 {
		return fmt.Errorf("%w: message requires conversation and message ids", store.ErrInvalidArgument)
	}

	s.msgMu.Lock()
	defer s.msgMu.Unlock()

	part := s.partitions[msg.ConversationID]
	i := sort.Search(len(part), func(i int) bool {
		return !part[i].Before(msg)
	})
	if i < len(part) && part[i].CreatedAt.UnixMilli() == msg.CreatedAt.UnixMilli() && part[i].MessageID == msg.MessageID {
		return nil
	}

	part = append(part, model.Message{})
	copy(part[i+1:], part[i:])
	part[i] = *msg
	s.partitions[msg.ConversationID] = part

	return nil
}

// PageMessages scans the partition in retrieval order, skipping everything up
// to and including the cursor position.
func (s *Store) PageMessages(ctx context.Context, conversationID int64, after *store.Position, limit int) ([]model.Message, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", store.ErrInvalidArgument)
	}

	s.msgMu.RLock()
	defer s.msgMu.RUnlock()

	var page []model.Message
	for _, msg := range s.partitions[conversationID] {
		if after != nil && !after.After(msg.CreatedAt.UnixMilli(), msg.MessageID) {
			continue
		}
		page = append(page, msg)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}
