package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/promptpad/memoryd/internal/engine"
	"github.com/promptpad/memoryd/internal/events"
	"github.com/promptpad/memoryd/internal/llm"
	"github.com/promptpad/memoryd/internal/middleware"
	"github.com/promptpad/memoryd/internal/model"
	"github.com/promptpad/memoryd/pkg/logger"
	"github.com/promptpad/memoryd/pkg/metrics"
)

// ChatHandler glues the memory engine to the external generator: build a
// context block for the prompt, forward both, store the reply afterwards.
// The engine itself never sees the generator.
type ChatHandler struct {
	engine    *engine.Engine
	generator llm.Client
	publisher *events.Publisher
	logger    *logger.Logger
}

// NewChatHandler creates a new chat handler. generator may be nil when no
// provider is configured; publisher may be nil.
func NewChatHandler(eng *engine.Engine, generator llm.Client, publisher *events.Publisher, log *logger.Logger) *ChatHandler {
	return &ChatHandler{
		engine:    eng,
		generator: generator,
		publisher: publisher,
		logger:    log,
	}
}

// ChatRequest is the request to send a prompt through the memory pipeline.
type ChatRequest struct {
	Message         string                 `json:"message"`
	SessionID       string                 `json:"session_id"`
	Model           string                 `json:"model,omitempty"`
	PreviousContext *model.PreviousContext `json:"previous_context,omitempty"`
}

// ChatResponse is the generator reply plus the memory metadata used.
type ChatResponse struct {
	Reply          string               `json:"reply"`
	ConversationID string               `json:"conversation_id"`
	Memory         *model.ContextResult `json:"memory"`
}

// Chat handles POST /api/v1/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	if h.generator == nil {
		writeError(w, http.StatusServiceUnavailable, "no generator provider configured")
		return
	}

	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateMessageContent(req.Message); err != nil {
		writeError(w, http.StatusBadRequest, "message: "+err.Error())
		return
	}
	if err := middleware.ValidateSessionID(req.SessionID); err != nil {
		writeError(w, http.StatusBadRequest, "session_id: "+err.Error())
		return
	}

	ctx := r.Context()
	memory := h.engine.BuildContext(ctx, req.Message, req.SessionID, req.PreviousContext)

	messages := make([]llm.ChatMessage, 0, 2)
	if memory.ContextText != "" {
		messages = append(messages, llm.ChatMessage{Role: "user", Content: memory.ContextText})
	}
	messages = append(messages, llm.ChatMessage{Role: "user", Content: req.Message})

	start := time.Now()
	resp, err := h.generator.Complete(ctx, &llm.CompletionRequest{
		Model:    req.Model,
		Messages: messages,
	})
	if err != nil {
		metrics.GeneratorDuration.WithLabelValues(h.generator.Name(), "error").Observe(time.Since(start).Seconds())
		h.logger.Error("generator call failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "generator call failed")
		return
	}
	metrics.GeneratorDuration.WithLabelValues(h.generator.Name(), "ok").Observe(time.Since(start).Seconds())

	rec, err := h.engine.StoreResponse(ctx, req.Message, resp.Content, req.SessionID)
	if err != nil {
		// The reply still reaches the user; it just never becomes memory.
		h.logger.Warn("failed to store exchange after generation", zap.Error(err))
		writeJSON(w, http.StatusOK, ChatResponse{Reply: resp.Content, Memory: memory})
		return
	}

	h.publisher.PublishStored(rec)

	writeJSON(w, http.StatusOK, ChatResponse{
		Reply:          resp.Content,
		ConversationID: rec.ID,
		Memory:         memory,
	})
}
