package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/relaymsg/messenger-store/internal/model"
	"github.com/relaymsg/messenger-store/internal/store"
)

// UpsertSummary applies the snapshot iff it is not older than the stored one.
func (s *Store) UpsertSummary(ctx context.Context, summary *model.ConversationSummary) error {
	if summary == nil || summary.ConversationID <= 0 {
		return fmt.Errorf("%w: summary requires a conversation id", store.ErrInvalidArgument)
	}

	s.sumMu.Lock()
	defer s.sumMu.Unlock()

	current, ok := s.summaries[summary.ConversationID]
	if ok && summary.LastMessageAt.UnixMilli() < current.LastMessageAt.UnixMilli() {
		return nil
	}
	s.summaries[summary.ConversationID] = *summary
	return nil
}

// GetSummary returns the stored snapshot or store.ErrNotFound.
func (s *Store) GetSummary(ctx context.Context, conversationID int64) (*model.ConversationSummary, error) {
	s.sumMu.RLock()
	defer s.sumMu.RUnlock()

	summary, ok := s.summaries[conversationID]
	if !ok {
		return nil, fmt.Errorf("%w: conversation %d", store.ErrNotFound, conversationID)
	}
	return &summary, nil
}

// UpsertTimelineEntry applies the entry iff it is not older than the stored one.
func (s *Store) UpsertTimelineEntry(ctx context.Context, entry *model.TimelineEntry) error {
	if entry == nil || entry.UserID <= 0 || entry.ConversationID <= 0 {
		return fmt.Errorf("%w: timeline entry requires user and conversation ids", store.ErrInvalidArgument)
	}

	s.tlMu.Lock()
	defer s.tlMu.Unlock()

	timeline, ok := s.timelines[entry.UserID]
	if !ok {
		timeline = make(map[int64]model.TimelineEntry)
		s.timelines[entry.UserID] = timeline
	}
	current, ok := timeline[entry.ConversationID]
	if ok && entry.LastActivityAt.UnixMilli() < current.LastActivityAt.UnixMilli() {
		return nil
	}
	timeline[entry.ConversationID] = *entry
	return nil
}

// ListTimeline returns the user's entries ordered by last activity descending,
// conversation id ascending on ties.
func (s *Store) ListTimeline(ctx context.Context, userID int64, after *store.Position, limit int) ([]model.TimelineEntry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", store.ErrInvalidArgument)
	}

	s.tlMu.RLock()
	entries := make([]model.TimelineEntry, 0, len(s.timelines[userID]))
	for _, entry := range s.timelines[userID] {
		entries = append(entries, entry)
	}
	s.tlMu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Before(&entries[j])
	})

	var page []model.TimelineEntry
	for _, entry := range entries {
		if after != nil && !after.After(entry.LastActivityAt.UnixMilli(), entry.ConversationID) {
			continue
		}
		page = append(page, entry)
		if len(page) == limit {
			break
		}
	}
	return page, nil
}
