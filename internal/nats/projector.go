package nats

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/relaymsg/messenger-store/internal/model"
	"github.com/relaymsg/messenger-store/pkg/logger"
	"github.com/relaymsg/messenger-store/pkg/metrics"
)

// Applier applies the derived-view updates for one appended message.
type Applier interface {
	ApplyDerived(ctx context.Context, msg *model.Message) error
}

// Projector consumes append events and applies conversation summary and
// timeline updates. Events may arrive out of order or more than once; the
// timestamp-guarded upserts make replays and reordering harmless, so the
// consumer only needs at-least-once delivery.
type Projector struct {
	client  *Client
	applier Applier
	logger  *logger.Logger

	consume jetstream.ConsumeContext
}

// NewProjector creates a projector over the given client and applier.
func NewProjector(client *Client, applier Applier, log *logger.Logger) *Projector {
	return &Projector{
		client:  client,
		applier: applier,
		logger:  log,
	}
}

// Start creates the durable consumer and begins applying events.
func (p *Projector) Start(ctx context.Context) error {
	consumer, err := p.client.JetStream().CreateOrUpdateConsumer(ctx, StreamName, jetstream.ConsumerConfig{
		Durable:       "derived-views",
		FilterSubject: SubjectPrefix + ".>",
		AckPolicy:     jetstream.AckExplicitPolicy,
		MaxDeliver:    10,
	})
	if err != nil {
		return err
	}

	consume, err := consumer.Consume(func(jsMsg jetstream.Msg) {
		var msg model.Message
		if err := json.Unmarshal(jsMsg.Data(), &msg); err != nil {
			p.logger.Error("projector: bad append event", "error", err)
			jsMsg.Term()
			return
		}

		if err := p.applier.ApplyDerived(context.Background(), &msg); err != nil {
			p.logger.Warn("projector: apply failed, will redeliver",
				"error", err,
				"conversation_id", msg.ConversationID,
				"message_id", msg.MessageID,
			)
			metrics.ProjectorApplied.WithLabelValues("error").Inc()
			jsMsg.Nak()
			return
		}

		metrics.ProjectorApplied.WithLabelValues("ok").Inc()
		jsMsg.Ack()
	})
	if err != nil {
		return err
	}

	p.consume = consume
	p.logger.Info("projector started", "stream", StreamName)
	return nil
}

// Stop halts event consumption.
func (p *Projector) Stop() {
	if p.consume != nil {
		p.consume.Stop()
	}
}
