package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaymsg/messenger-store/internal/middleware"
	"github.com/relaymsg/messenger-store/internal/model"
	"github.com/relaymsg/messenger-store/internal/service"
	"github.com/relaymsg/messenger-store/internal/store/memory"
	"github.com/relaymsg/messenger-store/pkg/logger"
)

const testSecret = "test-secret"

func signToken(t *testing.T, userID int64) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &middleware.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", userID),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

// newTestServer wires the API routes the way main does, on a memory store
// with inline fan-out.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	st := memory.New()
	log := logger.NewNop()
	messageSvc := service.NewMessageService(st, nil, log)
	conversationSvc := service.NewConversationService(st, log)

	conversationHandler := NewConversationHandler(conversationSvc, messageSvc, log)
	messageHandler := NewMessageHandler(messageSvc, log)

	r := chi.NewRouter()
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(testSecret))

		r.Route("/conversations", func(r chi.Router) {
			r.Post("/", conversationHandler.Create)
			r.Get("/", conversationHandler.List)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", conversationHandler.Get)
				r.Post("/reconcile", conversationHandler.Reconcile)
				r.Get("/messages", messageHandler.List)
				r.Post("/messages", messageHandler.Send)
			})
		})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func doRequest(t *testing.T, srv *httptest.Server, method, path, token string, body any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestAuthRequired(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, srv, http.MethodGet, "/api/v1/conversations", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodGet, "/api/v1/conversations", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateConversation(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, 7)

	resp := doRequest(t, srv, http.MethodPost, "/api/v1/conversations", token,
		model.CreateConversationRequest{ReceiverID: 8})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	summary := decodeBody[model.ConversationSummary](t, resp)
	assert.Equal(t, int64(1), summary.ConversationID)
	assert.Equal(t, int64(7), summary.SenderID)
	assert.Equal(t, int64(8), summary.ReceiverID)
}

func TestCreateConversationWithSelf(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, 7)

	resp := doRequest(t, srv, http.MethodPost, "/api/v1/conversations", token,
		model.CreateConversationRequest{ReceiverID: 7})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSendAndListMessages(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, 7)

	resp := doRequest(t, srv, http.MethodPost, "/api/v1/conversations", token,
		model.CreateConversationRequest{ReceiverID: 8})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	summary := decodeBody[model.ConversationSummary](t, resp)

	path := fmt.Sprintf("/api/v1/conversations/%d/messages", summary.ConversationID)
	for _, content := range []string{"first", "second"} {
		resp := doRequest(t, srv, http.MethodPost, path, token,
			model.SendMessageRequest{ReceiverID: 8, Content: content})
		require.Equal(t, http.StatusCreated, resp.StatusCode)

		msg := decodeBody[model.Message](t, resp)
		// The sender is always the authenticated user.
		assert.Equal(t, int64(7), msg.SenderID)
		assert.Equal(t, content, msg.Content)
	}

	resp = doRequest(t, srv, http.MethodGet, path, token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list := decodeBody[model.ListMessagesResponse](t, resp)
	require.Len(t, list.Messages, 2)
	assert.Equal(t, "second", list.Messages[0].Content)
	assert.Equal(t, "first", list.Messages[1].Content)
	assert.False(t, list.HasMore)
}

func TestSendMessageEmptyContent(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, 7)

	resp := doRequest(t, srv, http.MethodPost, "/api/v1/conversations/1/messages", token,
		model.SendMessageRequest{ReceiverID: 8, Content: ""})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSendMessageIdempotencyKey(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, 7)

	send := func() model.Message {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(model.SendMessageRequest{ReceiverID: 8, Content: "once"}))
		req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/conversations/1/messages", &buf)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Idempotency-Key", "retry-abc")
		resp, err := srv.Client().Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		return decodeBody[model.Message](t, resp)
	}

	first := send()
	second := send()
	assert.Equal(t, first.MessageID, second.MessageID)

	resp := doRequest(t, srv, http.MethodGet, "/api/v1/conversations/1/messages", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeBody[model.ListMessagesResponse](t, resp)
	assert.Len(t, list.Messages, 1)
}

func TestMessagePaginationViaCursor(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, 7)

	for i := 0; i < 5; i++ {
		resp := doRequest(t, srv, http.MethodPost, "/api/v1/conversations/1/messages", token,
			model.SendMessageRequest{ReceiverID: 8, Content: fmt.Sprintf("m%d", i)})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	var contents []string
	cursor := ""
	for {
		path := "/api/v1/conversations/1/messages?limit=2"
		if cursor != "" {
			path += "&cursor=" + cursor
		}
		resp := doRequest(t, srv, http.MethodGet, path, token, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		list := decodeBody[model.ListMessagesResponse](t, resp)
		for i := range list.Messages {
			contents = append(contents, list.Messages[i].Content)
		}
		if !list.HasMore {
			break
		}
		cursor = list.NextCursor
	}

	assert.Equal(t, []string{"m4", "m3", "m2", "m1", "m0"}, contents)
}

func TestListMessagesInvalidID(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, 7)

	resp := doRequest(t, srv, http.MethodGet, "/api/v1/conversations/abc/messages", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListMessagesInvalidLimit(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, 7)

	resp := doRequest(t, srv, http.MethodGet, "/api/v1/conversations/1/messages?limit=-5", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListMessagesMalformedCursor(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, 7)

	resp := doRequest(t, srv, http.MethodGet, "/api/v1/conversations/1/messages?cursor=%21%21%21", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetConversationNotFound(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, 7)

	resp := doRequest(t, srv, http.MethodGet, "/api/v1/conversations/404", token, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListConversations(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, 7)

	for _, receiver := range []int64{8, 9} {
		resp := doRequest(t, srv, http.MethodPost, "/api/v1/conversations", token,
			model.CreateConversationRequest{ReceiverID: receiver})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
	}

	resp := doRequest(t, srv, http.MethodGet, "/api/v1/conversations", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	list := decodeBody[model.ListTimelineResponse](t, resp)
	assert.Len(t, list.Entries, 2)
}

func TestReconcile(t *testing.T) {
	srv := newTestServer(t)
	token := signToken(t, 7)

	resp := doRequest(t, srv, http.MethodPost, "/api/v1/conversations/1/reconcile", token, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = doRequest(t, srv, http.MethodPost, "/api/v1/conversations/abc/reconcile", token, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
