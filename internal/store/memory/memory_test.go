package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaymsg/messenger-store/internal/model"
	"github.com/relaymsg/messenger-store/internal/store"
)

func msgAt(conversationID, messageID int64, ts time.Time) *model.Message {
	return &model.Message{
		ConversationID: conversationID,
		MessageID:      messageID,
		SenderID:       1,
		ReceiverID:     2,
		Content:        fmt.Sprintf("message %d", messageID),
		CreatedAt:      ts.UTC().Truncate(time.Millisecond),
	}
}

func TestNextSequenceMonotonic(t *testing.T) {
	s := New()
	ctx := context.Background()

	var prev int64
	for i := 0; i < 100; i++ {
		v, err := s.NextSequence(ctx, "message_id")
		require.NoError(t, err)
		assert.Greater(t, v, prev)
		prev = v
	}
}

func TestNextSequenceConcurrentDistinct(t *testing.T) {
	s := New()
	ctx := context.Background()

	pre, err := s.NextSequence(ctx, "message_id")
	require.NoError(t, err)

	const callers = 50
	const perCaller = 20

	var mu sync.Mutex
	seen := make(map[int64]bool)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perCaller; j++ {
				v, err := s.NextSequence(ctx, "message_id")
				if err != nil {
					t.Error(err)
					return
				}
				mu.Lock()
				if seen[v] {
					t.Errorf("duplicate id %d", v)
				}
				seen[v] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, callers*perCaller)
	for v := range seen {
		assert.Greater(t, v, pre)
	}
}

func TestNextSequenceIndependentNames(t *testing.T) {
	s := New()
	ctx := context.Background()

	a, err := s.NextSequence(ctx, "message_id")
	require.NoError(t, err)
	b, err := s.NextSequence(ctx, "conversation_id")
	require.NoError(t, err)

	assert.Equal(t, int64(1), a)
	assert.Equal(t, int64(1), b)
}

func TestNextSequenceEmptyName(t *testing.T) {
	s := New()
	_, err := s.NextSequence(context.Background(), "")
	assert.True(t, errors.Is(err, store.ErrInvalidArgument))
}

func TestPageOrdering(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	// Append out of order on purpose.
	require.NoError(t, s.AppendMessage(ctx, msgAt(1, 2, base.Add(2*time.Second))))
	require.NoError(t, s.AppendMessage(ctx, msgAt(1, 1, base)))
	require.NoError(t, s.AppendMessage(ctx, msgAt(1, 3, base.Add(time.Second))))

	page, err := s.PageMessages(ctx, 1, nil, 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, int64(2), page[0].MessageID)
	assert.Equal(t, int64(3), page[1].MessageID)
	assert.Equal(t, int64(1), page[2].MessageID)
}

func TestPageTieBreakScenario(t *testing.T) {
	s := New()
	ctx := context.Background()
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Second)

	require.NoError(t, s.AppendMessage(ctx, msgAt(42, 4, t0)))
	require.NoError(t, s.AppendMessage(ctx, msgAt(42, 5, t1)))
	require.NoError(t, s.AppendMessage(ctx, msgAt(42, 6, t1)))

	// First page: both 10:00:01 messages, lower id first.
	page, err := s.PageMessages(ctx, 42, nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(5), page[0].MessageID)
	assert.Equal(t, int64(6), page[1].MessageID)

	// Second page resumes strictly after (10:00:01, 6).
	after := store.MessagePosition(&page[1])
	page, err = s.PageMessages(ctx, 42, &after, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, int64(4), page[0].MessageID)
}

func TestPaginationLosslessAndDuplicateFree(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	const total = 25
	for i := 1; i <= total; i++ {
		// Two messages per timestamp to exercise tie-breaks.
		ts := base.Add(time.Duration(i/2) * time.Second)
		require.NoError(t, s.AppendMessage(ctx, msgAt(7, int64(i), ts)))
	}

	var all []int64
	var after *store.Position
	for {
		page, err := s.PageMessages(ctx, 7, after, 4)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for i := range page {
			all = append(all, page[i].MessageID)
		}
		if len(page) < 4 {
			break
		}
		pos := store.MessagePosition(&page[len(page)-1])
		after = &pos
	}

	require.Len(t, all, total)
	seen := make(map[int64]bool)
	for _, id := range all {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
}

func TestPageIdempotent(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 1; i <= 10; i++ {
		require.NoError(t, s.AppendMessage(ctx, msgAt(9, int64(i), base.Add(time.Duration(i)*time.Second))))
	}

	after := store.Position{TsMilli: base.Add(8 * time.Second).UnixMilli(), ID: 8}
	first, err := s.PageMessages(ctx, 9, &after, 3)
	require.NoError(t, err)
	second, err := s.PageMessages(ctx, 9, &after, 3)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestPageUnknownConversationEmpty(t *testing.T) {
	s := New()
	page, err := s.PageMessages(context.Background(), 12345, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestPageInvalidLimit(t *testing.T) {
	s := New()
	_, err := s.PageMessages(context.Background(), 1, nil, 0)
	assert.True(t, errors.Is(err, store.ErrInvalidArgument))
}

func TestAppendDuplicateIsNoop(t *testing.T) {
	s := New()
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	msg := msgAt(3, 1, ts)
	require.NoError(t, s.AppendMessage(ctx, msg))
	require.NoError(t, s.AppendMessage(ctx, msg))

	page, err := s.PageMessages(ctx, 3, nil, 10)
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestSummaryLastWriterWins(t *testing.T) {
	ctx := context.Background()
	t1 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Minute)

	older := &model.ConversationSummary{ConversationID: 1, SenderID: 1, ReceiverID: 2, LastMessage: "old", LastMessageAt: t1}
	newer := &model.ConversationSummary{ConversationID: 1, SenderID: 2, ReceiverID: 1, LastMessage: "new", LastMessageAt: t2}

	// Applied in either order, t2 wins.
	for _, order := range [][2]*model.ConversationSummary{{older, newer}, {newer, older}} {
		s := New()
		require.NoError(t, s.UpsertSummary(ctx, order[0]))
		require.NoError(t, s.UpsertSummary(ctx, order[1]))

		got, err := s.GetSummary(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, "new", got.LastMessage)
		assert.Equal(t, t2.UnixMilli(), got.LastMessageAt.UnixMilli())
	}
}

func TestGetSummaryNotFound(t *testing.T) {
	s := New()
	_, err := s.GetSummary(context.Background(), 404)
	assert.True(t, errors.Is(err, store.ErrNotFound))
}

func TestTimelineOrderingAndPagination(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	// Conversations 1..5, most recent activity on 5.
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.UpsertTimelineEntry(ctx, &model.TimelineEntry{
			UserID:         10,
			ConversationID: int64(i),
			CounterpartID:  20,
			LastActivityAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	page, err := s.ListTimeline(ctx, 10, nil, 3)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, int64(5), page[0].ConversationID)
	assert.Equal(t, int64(4), page[1].ConversationID)
	assert.Equal(t, int64(3), page[2].ConversationID)

	after := store.TimelinePosition(&page[2])
	page, err = s.ListTimeline(ctx, 10, &after, 3)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, int64(2), page[0].ConversationID)
	assert.Equal(t, int64(1), page[1].ConversationID)
}

func TestTimelineTieBreakByConversationID(t *testing.T) {
	s := New()
	ctx := context.Background()
	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for _, id := range []int64{3, 1, 2} {
		require.NoError(t, s.UpsertTimelineEntry(ctx, &model.TimelineEntry{
			UserID:         10,
			ConversationID: id,
			CounterpartID:  20,
			LastActivityAt: ts,
		}))
	}

	page, err := s.ListTimeline(ctx, 10, nil, 10)
	require.NoError(t, err)
	require.Len(t, page, 3)
	assert.Equal(t, int64(1), page[0].ConversationID)
	assert.Equal(t, int64(2), page[1].ConversationID)
	assert.Equal(t, int64(3), page[2].ConversationID)
}

func TestTimelineLastWriterWins(t *testing.T) {
	s := New()
	ctx := context.Background()
	t1 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)

	require.NoError(t, s.UpsertTimelineEntry(ctx, &model.TimelineEntry{
		UserID: 10, ConversationID: 1, CounterpartID: 20, LastActivityAt: t2,
	}))
	// Stale update arrives late and must not win.
	require.NoError(t, s.UpsertTimelineEntry(ctx, &model.TimelineEntry{
		UserID: 10, ConversationID: 1, CounterpartID: 20, LastActivityAt: t1,
	}))

	page, err := s.ListTimeline(ctx, 10, nil, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, t2.UnixMilli(), page[0].LastActivityAt.UnixMilli())
}

func TestListTimelineUnknownUserEmpty(t *testing.T) {
	s := New()
	page, err := s.ListTimeline(context.Background(), 999, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, page)
}
