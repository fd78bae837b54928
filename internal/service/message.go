// Package service provides the coordination logic of the storage core: id
// allocation, durable appends, and fan-out to the derived views.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/relaymsg/messenger-store/internal/model"
	"github.com/relaymsg/messenger-store/internal/store"
	"github.com/relaymsg/messenger-store/pkg/logger"
	"github.com/relaymsg/messenger-store/pkg/metrics"
)

const maxPageLimit = 100

// Publisher publishes append events for asynchronous derived-view projection.
type Publisher interface {
	PublishAppend(ctx context.Context, msg *model.Message) error
}

// MessageService handles message appends and history paging.
type MessageService struct {
	store     store.Store
	publisher Publisher // nil means derived views are applied inline
	logger    *logger.Logger
	idem      *idempotencyCache
}

// NewMessageService creates a new message service. A nil publisher selects
// inline fan-out of the derived-view updates after each append.
func NewMessageService(st store.Store, pub Publisher, log *logger.Logger) *MessageService {
	return &MessageService{
		store:     st,
		publisher: pub,
		logger:    log,
		idem:      newIdempotencyCache(),
	}
}

// Append allocates a message id, durably writes the message, and fans out the
// derived-view updates. The fan-out is not atomic with the append: a crash in
// between leaves the message store authoritative and the views stale until
// they converge or Reconcile repairs them.
//
// idempotencyKey is optional. When a caller retries an append with the same
// key for the same conversation, the original message is replayed instead of
// appending again; without a key the contract is at-least-once.
func (s *MessageService) Append(ctx context.Context, conversationID int64, req *model.SendMessageRequest, idempotencyKey string) (*model.Message, error) {
	if conversationID <= 0 {
		return nil, fmt.Errorf("%w: conversation id must be positive", store.ErrInvalidArgument)
	}
	if req == nil || req.SenderID <= 0 || req.ReceiverID <= 0 {
		return nil, fmt.Errorf("%w: sender and receiver ids must be positive", store.ErrInvalidArgument)
	}
	if req.Content == "" {
		return nil, fmt.Errorf("%w: content must not be empty", store.ErrInvalidArgument)
	}

	if idempotencyKey != "" {
		if replay, ok := s.idem.get(conversationID, idempotencyKey); ok {
			return replay, nil
		}
	}

	id, err := s.store.NextSequence(ctx, store.SeqMessageID)
	if err != nil {
		return nil, fmt.Errorf("allocate message id: %w", err)
	}
	metrics.IDsAllocated.WithLabelValues(store.SeqMessageID).Inc()

	createdAt := time.Now()
	if req.CreatedAt != nil {
		createdAt = *req.CreatedAt
	}

	msg := &model.Message{
		ConversationID: conversationID,
		MessageID:      id,
		SenderID:       req.SenderID,
		ReceiverID:     req.ReceiverID,
		Content:        req.Content,
		// Millisecond precision keeps cursor round-trips exact.
		CreatedAt: createdAt.UTC().Truncate(time.Millisecond),
	}

	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	metrics.MessagesAppended.Inc()

	s.fanOut(ctx, msg)

	if idempotencyKey != "" {
		s.idem.put(conversationID, idempotencyKey, msg)
	}
	return msg, nil
}

// fanOut propagates the append to the derived views, via the event stream
// when one is configured and inline otherwise. Failures are logged, not
// returned: the append already succeeded and the views are repairable.
func (s *MessageService) fanOut(ctx context.Context, msg *model.Message) {
	if s.publisher != nil {
		err := s.publisher.PublishAppend(ctx, msg)
		if err == nil {
			return
		}
		s.logger.Warn("publish append event failed, applying views inline",
			"error", err,
			"conversation_id", msg.ConversationID,
			"message_id", msg.MessageID,
		)
	}
	if err := s.ApplyDerived(ctx, msg); err != nil {
		s.logger.Warn("derived view update failed, views stale until reconciled",
			"error", err,
			"conversation_id", msg.ConversationID,
			"message_id", msg.MessageID,
		)
	}
}

// ApplyDerived applies the conversation summary and both participants'
// timeline entries for one appended message. Every write is a timestamp-
// guarded upsert, so applying events out of order or more than once is safe.
func (s *MessageService) ApplyDerived(ctx context.Context, msg *model.Message) error {
	summaryErr := s.store.UpsertSummary(ctx, &model.ConversationSummary{
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		ReceiverID:     msg.ReceiverID,
		LastMessage:    msg.Content,
		LastMessageAt:  msg.CreatedAt,
	})

	senderErr := s.store.UpsertTimelineEntry(ctx, &model.TimelineEntry{
		UserID:         msg.SenderID,
		ConversationID: msg.ConversationID,
		CounterpartID:  msg.ReceiverID,
		LastActivityAt: msg.CreatedAt,
	})

	receiverErr := s.store.UpsertTimelineEntry(ctx, &model.TimelineEntry{
		UserID:         msg.ReceiverID,
		ConversationID: msg.ConversationID,
		CounterpartID:  msg.SenderID,
		LastActivityAt: msg.CreatedAt,
	})

	return errors.Join(summaryErr, senderErr, receiverErr)
}

// Page returns one page of conversation history in (created_at DESC,
// message_id ASC) order. Paging over an unknown conversation yields an empty
// page. Repeated calls with the same cursor return identical results.
func (s *MessageService) Page(ctx context.Context, conversationID int64, cursor string, limit int) (*model.ListMessagesResponse, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", store.ErrInvalidArgument)
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}

	after, err := store.DecodeCursor(cursor)
	if err != nil {
		return nil, err
	}

	messages, err := s.store.PageMessages(ctx, conversationID, after, limit)
	if err != nil {
		return nil, fmt.Errorf("page messages: %w", err)
	}

	resp := &model.ListMessagesResponse{Messages: messages}
	if len(messages) == limit {
		resp.HasMore = true
		resp.NextCursor = store.EncodeCursor(store.MessagePosition(&messages[len(messages)-1]))
	}
	return resp, nil
}

// Reconcile re-derives the conversation's summary and timeline entries from
// the newest stored message. It repairs views left stale by a crash between
// an append and its fan-out.
func (s *MessageService) Reconcile(ctx context.Context, conversationID int64) error {
	if conversationID <= 0 {
		return fmt.Errorf("%w: conversation id must be positive", store.ErrInvalidArgument)
	}

	newest, err := s.store.PageMessages(ctx, conversationID, nil, 1)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	if len(newest) == 0 {
		return nil
	}
	return s.ApplyDerived(ctx, &newest[0])
}
