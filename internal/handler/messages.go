package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/relaymsg/messenger-store/internal/middleware"
	"github.com/relaymsg/messenger-store/internal/model"
	"github.com/relaymsg/messenger-store/internal/service"
	"github.com/relaymsg/messenger-store/pkg/logger"
)

// MessageHandler handles message endpoints.
type MessageHandler struct {
	messages *service.MessageService
	logger   *logger.Logger
}

// NewMessageHandler creates a new message handler.
func NewMessageHandler(msgSvc *service.MessageService, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		messages: msgSvc,
		logger:   log,
	}
}

// Send handles POST /api/v1/conversations/{id}/messages
//
// The sender is always the authenticated user. An optional Idempotency-Key
// header makes retries replay the original append.
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	conversationID, err := middleware.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	var req model.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.SenderID = userID

	if err := middleware.ValidateMessageContent(req.Content); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	msg, err := h.messages.Append(ctx, conversationID, &req, r.Header.Get("Idempotency-Key"))
	if err != nil {
		h.logger.Error("failed to append message", "error", err, "conversation_id", conversationID)
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// List handles GET /api/v1/conversations/{id}/messages
//
// Pages are newest-first; pass the returned next_cursor to fetch older
// messages. An unknown conversation yields an empty page.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	conversationID, err := middleware.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	resp, err := h.messages.Page(r.Context(), conversationID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		h.logger.Error("failed to page messages", "error", err, "conversation_id", conversationID)
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
