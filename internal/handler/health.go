package handler

import (
	"net/http"

	"github.com/promptpad/memoryd/internal/events"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	publisher *events.Publisher
}

// NewHealthHandler creates a new health handler. publisher may be nil when
// event publishing is disabled.
func NewHealthHandler(publisher *events.Publisher) *HealthHandler {
	return &HealthHandler{publisher: publisher}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready. The engine is file-backed, so readiness only
// degrades when optional event publishing is configured but disconnected.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.publisher != nil && !h.publisher.IsConnected() {
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
