package service

import (
	"context"
	"fmt"
	"time"

	"github.com/relaymsg/messenger-store/internal/model"
	"github.com/relaymsg/messenger-store/internal/store"
	"github.com/relaymsg/messenger-store/pkg/logger"
	"github.com/relaymsg/messenger-store/pkg/metrics"
)

// ConversationService handles conversation creation and the read side of the
// derived views.
type ConversationService struct {
	store  store.Store
	logger *logger.Logger
}

// NewConversationService creates a new conversation service.
func NewConversationService(st store.Store, log *logger.Logger) *ConversationService {
	return &ConversationService{store: st, logger: log}
}

// Create allocates a conversation id and seeds the directory and both
// participants' timelines. The participant pair is fixed at creation.
func (s *ConversationService) Create(ctx context.Context, senderID, receiverID int64) (*model.ConversationSummary, error) {
	if senderID <= 0 || receiverID <= 0 {
		return nil, fmt.Errorf("%w: sender and receiver ids must be positive", store.ErrInvalidArgument)
	}
	if senderID == receiverID {
		return nil, fmt.Errorf("%w: participants must differ", store.ErrInvalidArgument)
	}

	id, err := s.store.NextSequence(ctx, store.SeqConversationID)
	if err != nil {
		return nil, fmt.Errorf("allocate conversation id: %w", err)
	}
	metrics.IDsAllocated.WithLabelValues(store.SeqConversationID).Inc()

	now := time.Now().UTC().Truncate(time.Millisecond)
	summary := &model.ConversationSummary{
		ConversationID: id,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		LastMessageAt:  now,
	}
	if err := s.store.UpsertSummary(ctx, summary); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	for _, pair := range [][2]int64{{senderID, receiverID}, {receiverID, senderID}} {
		err := s.store.UpsertTimelineEntry(ctx, &model.TimelineEntry{
			UserID:         pair[0],
			ConversationID: id,
			CounterpartID:  pair[1],
			LastActivityAt: now,
		})
		if err != nil {
			s.logger.Warn("seed timeline entry failed",
				"error", err,
				"conversation_id", id,
				"user_id", pair[0],
			)
		}
	}

	s.logger.Info("conversation created",
		"conversation_id", id,
		"sender_id", senderID,
		"receiver_id", receiverID,
	)
	return summary, nil
}

// GetSummary returns the conversation's last-message snapshot.
func (s *ConversationService) GetSummary(ctx context.Context, conversationID int64) (*model.ConversationSummary, error) {
	if conversationID <= 0 {
		return nil, fmt.Errorf("%w: conversation id must be positive", store.ErrInvalidArgument)
	}
	return s.store.GetSummary(ctx, conversationID)
}

// ListForUser returns one page of the user's conversations ordered by last
// activity descending.
func (s *ConversationService) ListForUser(ctx context.Context, userID int64, cursor string, limit int) (*model.ListTimelineResponse, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user id must be positive", store.ErrInvalidArgument)
	}
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

	entries, err := s.store.ListTimeline(ctx, userID, after, limit)
	if err != nil {
		return nil, fmt.Errorf("list timeline: %w", err)
	}

	resp := &model.ListTimelineResponse{Entries: entries}
	if len(entries) == limit {
		resp.HasMore = true
		resp.NextCursor = store.EncodeCursor(store.TimelinePosition(&entries[len(entries)-1]))
	}
	return resp, nil
}
