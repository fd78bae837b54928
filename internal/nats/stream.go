package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/relaymsg/messenger-store/internal/model"
)

const (
	// StreamName is the name of the append-event stream.
	StreamName = "MESSAGES"

	// SubjectPrefix is the prefix for all append-event subjects.
	SubjectPrefix = "msg"
)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream ensures the append-event stream exists with proper configuration.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	// Check if stream exists
	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil // Stream already exists
	}

	// The stream is a propagation channel for derived-view updates, not the
	// system of record; the message store remains authoritative, so a bounded
	// retention window is enough.
	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Compression: jetstream.S2Compression,
		Description: "Message append events for derived-view projection",
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// ConversationSubject returns the subject for a conversation's append events.
func ConversationSubject(conversationID int64) string {
	return fmt.Sprintf("%s.%d", SubjectPrefix, conversationID)
}

// PublishAppend publishes an appended message to JetStream.
func (m *StreamManager) PublishAppend(ctx context.Context, msg *model.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	_, err = m.client.JetStream().Publish(ctx, ConversationSubject(msg.ConversationID), data)
	if err != nil {
		return fmt.Errorf("failed to publish append event: %w", err)
	}
	return nil
}

// SubscribeConversation delivers live append events for one conversation to
// the given channel. Used by the SSE live tail.
func (m *StreamManager) SubscribeConversation(conversationID int64, ch chan *nats.Msg) (*nats.Subscription, error) {
	sub, err := m.client.Conn().ChanSubscribe(ConversationSubject(conversationID), ch)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}
	return sub, nil
}
