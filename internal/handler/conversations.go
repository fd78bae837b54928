// Package handler provides HTTP handlers for the API.
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

// ConversationHandler handles conversation endpoints.
type ConversationHandler struct {
	conversations *service.ConversationService
	messages      *service.MessageService
	logger        *logger.Logger
}

// NewConversationHandler creates a new conversation handler.
func NewConversationHandler(convSvc *service.ConversationService, msgSvc *service.MessageService, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversations: convSvc,
		messages:      msgSvc,
		logger:        log,
	}
}

// Create handles POST /api/v1/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req model.CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	summary, err := h.conversations.Create(ctx, userID, req.ReceiverID)
	if err != nil {
		h.logger.Error("failed to create conversation", "error", err)
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, summary)
}

// Get handles GET /api/v1/conversations/{id} — the last-message snapshot.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	conversationID, err := middleware.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	summary, err := h.conversations.GetSummary(r.Context(), conversationID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// List handles GET /api/v1/conversations — the authenticated user's
// conversations, most recently active first.
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	limit := 20
	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	resp, err := h.conversations.ListForUser(ctx, userID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		h.logger.Error("failed to list conversations", "error", err, "user_id", userID)
		writeStoreError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// Reconcile handles POST /api/v1/conversations/{id}/reconcile — re-derives
// the summary and timeline entries from the message stream.
func (h *ConversationHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	conversationID, err := middleware.ParseID(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	if err := h.messages.Reconcile(r.Context(), conversationID); err != nil {
		h.logger.Error("failed to reconcile conversation", "error", err, "conversation_id", conversationID)
		writeStoreError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
