// Package handler provides HTTP handlers for the memory service API.
package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/promptpad/memoryd/internal/engine"
	"github.com/promptpad/memoryd/internal/events"
	"github.com/promptpad/memoryd/internal/middleware"
	"github.com/promptpad/memoryd/internal/model"
	"github.com/promptpad/memoryd/pkg/logger"
)

// MemoryHandler handles memory engine endpoints.
type MemoryHandler struct {
	engine    *engine.Engine
	publisher *events.Publisher
	logger    *logger.Logger
}

// NewMemoryHandler creates a new memory handler. publisher may be nil.
func NewMemoryHandler(eng *engine.Engine, publisher *events.Publisher, log *logger.Logger) *MemoryHandler {
	return &MemoryHandler{
		engine:    eng,
		publisher: publisher,
		logger:    log,
	}
}

// Store handles POST /api/v1/memory/conversations
func (h *MemoryHandler) Store(w http.ResponseWriter, r *http.Request) {
	var req model.StoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := middleware.ValidateMessageContent(req.UserMessage); err != nil {
		writeError(w, http.StatusBadRequest, "user_message: "+err.Error())
		return
	}
	if err := middleware.ValidateMessageContent(req.AssistantResponse); err != nil {
		writeError(w, http.StatusBadRequest, "assistant_response: "+err.Error())
		return
	}
	if err := middleware.ValidateSessionID(req.SessionID); err != nil {
		writeError(w, http.StatusBadRequest, "session_id: "+err.Error())
		return
	}

	rec, err := h.engine.StoreResponse(r.Context(), req.UserMessage, req.AssistantResponse, req.SessionID)
	if err != nil {
		h.logger.Error("failed to store conversation")
		writeError(w, http.StatusInternalServerError, "failed to store conversation")
		return
	}

	h.publisher.PublishStored(rec)

	writeJSON(w, http.StatusCreated, model.StoreResponse{
		ConversationID: rec.ID,
		ContentType:    rec.ContentType,
	})
}

// Get handles GET /api/v1/memory/conversations/{id}
func (h *MemoryHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateConversationID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.engine.Load(id)
	if err != nil {
		h.logger.Error("failed to load conversation")
		writeError(w, http.StatusInternalServerError, "failed to load conversation")
		return
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	writeJSON(w, http.StatusOK, rec)
}

// Detect handles POST /api/v1/memory/detect
func (h *MemoryHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req model.DetectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	referenced, confidence := h.engine.DetectsMemoryReference(req.Message)
	writeJSON(w, http.StatusOK, model.DetectResponse{
		ReferencesMemory: referenced,
		Confidence:       confidence,
	})
}

// Context handles POST /api/v1/memory/context
func (h *MemoryHandler) Context(w http.ResponseWriter, r *http.Request) {
	var req model.ContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result := h.engine.BuildContext(r.Context(), req.Message, req.SessionID, req.PreviousContext)
	writeJSON(w, http.StatusOK, result)
}

// Search handles GET /api/v1/memory/search?q=&limit=
func (h *MemoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, "missing query parameter q")
		return
	}

	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 50 {
			limit = parsed
		}
	}

	records := h.engine.SearchMemory(r.Context(), query, limit)
	if records == nil {
		records = []*model.ConversationRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": records,
		"total":   len(records),
	})
}
