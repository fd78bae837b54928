package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/nats-io/nats.go"

	"github.com/relaymsg/messenger-store/internal/middleware"
	"github.com/relaymsg/messenger-store/internal/model"
	natsclient "github.com/relaymsg/messenger-store/internal/nats"
	"github.com/relaymsg/messenger-store/internal/service"
	"github.com/relaymsg/messenger-store/pkg/logger"
	"github.com/relaymsg/messenger-store/pkg/metrics"
)

const (
	replayBatchSize   = 50
	heartbeatInterval = 30 * time.Second
)

// StreamHandler handles SSE live-tail endpoints: replay of stored history
// followed by live append events.
type StreamHandler struct {
	messages      *service.MessageService
	streamManager *natsclient.StreamManager // nil when NATS is not configured
	logger        *logger.Logger
}

// NewStreamHandler creates a new stream handler.
func NewStreamHandler(msgSvc *service.MessageService, sm *natsclient.StreamManager, log *logger.Logger) *StreamHandler {
	return &StreamHandler{
		messages:      msgSvc,
		streamManager: sm,
		logger:        log,
	}
}

// Stream handles GET /api/v1/conversations/{id}/stream
//
// History is replayed newest-first through the cursor contract (an optional
// ?cursor= resumes a previous replay), then the connection follows live
// appends when the event stream is configured.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	conversationID, err := middleware.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	metrics.IncrementSSEConnections()
	defer metrics.DecrementSSEConnections()

	sendSSEEvent(w, flusher, "connected", map[string]int64{
		"conversation_id": conversationID,
	})

	// Subscribe before replay so appends racing the replay are not lost;
	// duplicates on the boundary are possible and harmless (messages are
	// immutable and identified by id).
	var live chan *nats.Msg
	if h.streamManager != nil {
		live = make(chan *nats.Msg, 64)
		sub, err := h.streamManager.SubscribeConversation(conversationID, live)
		if err != nil {
			h.logger.Error("live tail subscribe failed", "error", err, "conversation_id", conversationID)
			sendSSEEvent(w, flusher, "error", &model.ErrorEvent{
				Code:    "subscribe_error",
				Message: "failed to subscribe to live events",
			})
			return
		}
		defer sub.Unsubscribe()
	}

	cursor := r.URL.Query().Get("cursor")
	totalReplayed := 0
	for {
		resp, err := h.messages.Page(ctx, conversationID, cursor, replayBatchSize)
		if err != nil {
			h.logger.Error("failed to replay messages", "error", err, "conversation_id", conversationID)
			sendSSEEvent(w, flusher, "error", &model.ErrorEvent{
				Code:    "replay_error",
				Message: "failed to replay messages",
			})
			return
		}

		for i := range resp.Messages {
			select {
			case <-ctx.Done():
				return
			default:
			}
			sendSSEEvent(w, flusher, "message", &resp.Messages[i])
			totalReplayed++
		}

		if !resp.HasMore {
			sendSSEEvent(w, flusher, "replay_complete", &model.ReplayCompleteEvent{
				MessageCount: totalReplayed,
				NextCursor:   resp.NextCursor,
			})
			break
		}
		cursor = resp.NextCursor
	}

	h.logger.Info("message replay complete",
		"conversation_id", conversationID,
		"messages_replayed", totalReplayed,
	)

	if live == nil {
		return
	}

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-heartbeat.C:
			sendSSEEvent(w, flusher, "heartbeat", &model.HeartbeatEvent{Timestamp: time.Now().UTC()})
		case natsMsg := <-live:
			var msg model.Message
			if err := json.Unmarshal(natsMsg.Data, &msg); err != nil {
				h.logger.Warn("bad live append event", "error", err)
				continue
			}
			sendSSEEvent(w, flusher, "message", &msg)
		}
	}
}

// sendSSEEvent writes one SSE event frame and flushes it.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event string, data interface{}) {
	payload, err := json.Marshal(data)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	flusher.Flush()
}
