package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/relaymsg/messenger-store/internal/model"
	"github.com/relaymsg/messenger-store/internal/store"
)

// AppendMessage writes the message item. The write is an unconditional put:
// the allocator guarantees id uniqueness, so a retry of the same message
// overwrites itself with identical content.
func (s *Store) AppendMessage(ctx context.Context, msg *model.Message) error {
	if msg == nil || msg.ConversationID <= 0 || msg.MessageID <= 0 {
		return fmt.Errorf("%w: message requires conversation and message ids", store.ErrInvalidArgument)
	}

	tsMilli := msg.CreatedAt.UnixMilli()
	_, err := s.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.messagesTable),
		Item: map[string]types.AttributeValue{
			"conversation_id": numAttr(msg.ConversationID),
			"sort_key":        strAttr(encodeKey(tsMilli, msg.MessageID)),
			"message_id":      numAttr(msg.MessageID),
			"sender_id":       numAttr(msg.SenderID),
			"receiver_id":     numAttr(msg.ReceiverID),
			"content":         strAttr(msg.Content),
			"created_at":      numAttr(tsMilli),
		},
	})
	if err != nil {
		return unavailable("append message", err)
	}
	return nil
}

// PageMessages queries the conversation partition descending over sort_key.
// The cursor becomes a strict upper bound on the key, which is exactly
// "strictly after the cursor" in (timestamp DESC, id ASC) order.
func (s *Store) PageMessages(ctx context.Context, conversationID int64, after *store.Position, limit int) ([]model.Message, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", store.ErrInvalidArgument)
	}

	in := &dynamodb.QueryInput{
		TableName:              aws.String(s.messagesTable),
		KeyConditionExpression: aws.String("conversation_id = :cid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":cid": numAttr(conversationID),
		},
		ScanIndexForward: aws.Bool(false),
		Limit:            aws.Int32(int32(limit)),
	}
	if after != nil {
		in.KeyConditionExpression = aws.String("conversation_id = :cid AND sort_key < :after")
		in.ExpressionAttributeValues[":after"] = strAttr(encodeKey(after.TsMilli, after.ID))
	}

	out, err := s.api.Query(ctx, in)
	if err != nil {
		return nil, unavailable("page messages", err)
	}

	messages := make([]model.Message, 0, len(out.Items))
	for _, item := range out.Items {
		msg, err := decodeMessage(conversationID, item)
		if err != nil {
			return nil, unavailable("page messages", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func decodeMessage(conversationID int64, item map[string]types.AttributeValue) (model.Message, error) {
	messageID, err := parseNum(item, "message_id")
	if err != nil {
		return model.Message{}, err
	}
	senderID, err := parseNum(item, "sender_id")
	if err != nil {
		return model.Message{}, err
	}
	receiverID, err := parseNum(item, "receiver_id")
	if err != nil {
		return model.Message{}, err
	}
	tsMilli, err := parseNum(item, "created_at")
	if err != nil {
		return model.Message{}, err
	}
	return model.Message{
		ConversationID: conversationID,
		MessageID:      messageID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        parseStr(item, "content"),
		CreatedAt:      time.UnixMilli(tsMilli).UTC(),
	}, nil
}
