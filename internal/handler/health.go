package handler

import (
	"net/http"

	natsclient "github.com/relaymsg/messenger-store/internal/nats"
	"github.com/relaymsg/messenger-store/internal/store"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	store      store.Store
	natsClient *natsclient.Client // nil when NATS is not configured
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(st store.Store, natsClient *natsclient.Client) *HealthHandler {
	return &HealthHandler{
		store:      st,
		natsClient: natsClient,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "storage not reachable",
		})
		return
	}

	if h.natsClient != nil && !h.natsClient.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ready",
	})
}
