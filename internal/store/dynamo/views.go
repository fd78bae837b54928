package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/relaymsg/messenger-store/internal/model"
	"github.com/relaymsg/messenger-store/internal/store"
)

// lwwCondition accepts a write iff the incoming timestamp is not older than
// the stored one. A failed condition is a stale update, not an error.
const lwwCondition = "attribute_not_exists(last_ts) OR last_ts <= :ts"

// UpsertSummary applies the last-message snapshot with a conditional update.
func (s *Store) UpsertSummary(ctx context.Context, summary *model.ConversationSummary) error {
	if summary == nil || summary.ConversationID <= 0 {
		return fmt.Errorf("%w: summary requires a conversation id", store.ErrInvalidArgument)
	}

	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.summariesTable),
		Key: map[string]types.AttributeValue{
			"conversation_id": numAttr(summary.ConversationID),
		},
		UpdateExpression:    aws.String("SET sender_id = :sid, receiver_id = :rid, last_message = :msg, last_ts = :ts"),
		ConditionExpression: aws.String(lwwCondition),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid": numAttr(summary.SenderID),
			":rid": numAttr(summary.ReceiverID),
			":msg": strAttr(summary.LastMessage),
			":ts":  numAttr(summary.LastMessageAt.UnixMilli()),
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return nil
		}
		return unavailable("upsert summary", err)
	}
	return nil
}

// GetSummary reads the snapshot item.
func (s *Store) GetSummary(ctx context.Context, conversationID int64) (*model.ConversationSummary, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.summariesTable),
		Key: map[string]types.AttributeValue{
			"conversation_id": numAttr(conversationID),
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, unavailable("get summary", err)
	}
	if len(out.Item) == 0 {
		return nil, fmt.Errorf("%w: conversation %d", store.ErrNotFound, conversationID)
	}

	senderID, err := parseNum(out.Item, "sender_id")
	if err != nil {
		return nil, unavailable("get summary", err)
	}
	receiverID, err := parseNum(out.Item, "receiver_id")
	if err != nil {
		return nil, unavailable("get summary", err)
	}
	tsMilli, err := parseNum(out.Item, "last_ts")
	if err != nil {
		return nil, unavailable("get summary", err)
	}
	return &model.ConversationSummary{
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		LastMessage:    parseStr(out.Item, "last_message"),
		LastMessageAt:  time.UnixMilli(tsMilli).UTC(),
	}, nil
}

// UpsertTimelineEntry applies the recency entry with the same LWW condition.
// activity_key mirrors (last_ts, conversation_id) for the by-activity LSI.
func (s *Store) UpsertTimelineEntry(ctx context.Context, entry *model.TimelineEntry) error {
	if entry == nil || entry.UserID <= 0 || entry.ConversationID <= 0 {
		return fmt.Errorf("%w: timeline entry requires user and conversation ids", store.ErrInvalidArgument)
	}

	tsMilli := entry.LastActivityAt.UnixMilli()
	_, err := s.api.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.timelineTable),
		Key: map[string]types.AttributeValue{
			"user_id":         numAttr(entry.UserID),
			"conversation_id": numAttr(entry.ConversationID),
		},
		UpdateExpression:    aws.String("SET counterpart_id = :cp, last_ts = :ts, activity_key = :ak"),
		ConditionExpression: aws.String(lwwCondition),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cp": numAttr(entry.CounterpartID),
			":ts": numAttr(tsMilli),
			":ak": strAttr(encodeKey(tsMilli, entry.ConversationID)),
		},
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return nil
		}
		return unavailable("upsert timeline entry", err)
	}
	return nil
}

// ListTimeline queries the by-activity index descending.
func (s *Store) ListTimeline(ctx context.Context, userID int64, after *store.Position, limit int) ([]model.TimelineEntry, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", store.ErrInvalidArgument)
	}

	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.timelineTable),
		IndexName:              aws.String(activityIndex),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": numAttr(userID),
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}
	if after != nil {
		in.KeyConditionExpression = aws.String("user_id = :uid AND activity_key < :after")
		in.ExpressionAttributeValues[":after"] = strAttr(encodeKey(after.TsMilli, after.ID))
	}

	out, err := s.api.Query(ctx, in)
	if err != nil {
		return nil, unavailable("list timeline", err)
	}

	entries := make([]model.TimelineEntry, 0, len(out.Items))
	for _, item := range out.Items {
		conversationID, err := parseNum(item, "conversation_id")
		if err != nil {
			return nil, unavailable("list timeline", err)
		}
		counterpartID, err := parseNum(item, "counterpart_id")
		if err != nil {
			return nil, unavailable("list timeline", err)
		}
		tsMilli, err := parseNum(item, "last_ts")
		if err != nil {
			return nil, unavailable("list timeline", err)
		}
		entries = append(entries, model.TimelineEntry{
			UserID:         userID,
			ConversationID: conversationID,
			CounterpartID:  counterpartID,
			LastActivityAt: time.UnixMilli(tsMilli).UTC(),
		})
	}
	return entries, nil
}
