// Package engine wires the memory components into the public surface the
// surrounding application consumes: store an exchange, detect a memory
// reference, build a context block, search stored history.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/promptpad/memoryd/internal/analyze"
	"github.com/promptpad/memoryd/internal/assemble"
	"github.com/promptpad/memoryd/internal/classify"
	"github.com/promptpad/memoryd/internal/index"
	"github.com/promptpad/memoryd/internal/model"
	"github.com/promptpad/memoryd/internal/rank"
	"github.com/promptpad/memoryd/internal/store"
	"github.com/promptpad/memoryd/pkg/logger"
	"github.com/promptpad/memoryd/pkg/metrics"
)

// Engine is one process's view of the shared on-disk memory. Multiple
// engines in separate processes may point at the same root; they coordinate
// only through atomic file replacement and see each other's writes after
// their next snapshot reload. Eventual consistency is the contract.
type Engine struct {
	store  *store.Store
	index  *index.Indexer
	logger *logger.Logger
}

// Config holds engine construction parameters.
type Config struct {
	Root           string
	RecordCacheTTL time.Duration
}

// New creates an engine rooted at cfg.Root. Call Initialize before use.
func New(cfg Config, log *logger.Logger) *Engine {
	ttl := cfg.RecordCacheTTL
	if ttl == 0 {
		ttl = 5 * time.Minute
	}
	return &Engine{
		store:  store.New(cfg.Root, ttl, log),
		index:  index.New(cfg.Root, log),
		logger: log,
	}
}

// Initialize creates directories if absent and loads the index snapshot.
// Idempotent. When no snapshot exists yet, indices are rebuilt once from
// the full store; a corrupt snapshot instead degrades to empty indices
// that future writes repopulate gradually.
func (e *Engine) Initialize(ctx context.Context) error {
	if err := e.store.Init(); err != nil {
		return err
	}
	if err := e.index.Init(); err != nil {
		return err
	}

	err := e.index.Load()
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		e.logger.Warn("index snapshot unusable, starting with empty indices", zap.Error(err))
		return nil
	}

	records, loadErr := e.store.LoadAll()
	if loadErr != nil {
		return fmt.Errorf("failed to scan store at cold start: %w", loadErr)
	}
	if len(records) > 0 {
		e.index.Rebuild(records)
		if persistErr := e.index.Persist(); persistErr != nil {
			e.logger.Warn("failed to persist rebuilt index snapshot", zap.Error(persistErr))
		}
		e.logger.Info("rebuilt indices from store", zap.Int("records", len(records)))
	}
	return nil
}

// StoreResponse classifies and persists a completed exchange, then updates
// and persists the indices. Returns the assigned conversation id.
func (e *Engine) StoreResponse(ctx context.Context, userMessage, assistantResponse, sessionID string) (*model.ConversationRecord, error) {
	if strings.TrimSpace(userMessage) == "" || strings.TrimSpace(assistantResponse) == "" {
		return nil, fmt.Errorf("user message and assistant response must be non-empty")
	}

	contentType := classify.Classify(assistantResponse)

	rec := &model.ConversationRecord{
		ID:                uuid.Must(uuid.NewV7()).String(),
		SessionID:         sessionID,
		Timestamp:         time.Now().UTC(),
		UserMessage:       userMessage,
		AssistantResponse: assistantResponse,
		ContentType:       contentType,
		Topics:            classify.ExtractTopics(userMessage, assistantResponse),
		Metadata:          classify.BuildMetadata(userMessage, assistantResponse, contentType),
	}

	if err := e.store.Store(rec); err != nil {
		return nil, err
	}

	e.index.Update(rec)
	// Snapshot persistence is best effort: the record is already durable
	// and indices are rebuildable from the store.
	if err := e.index.Persist(); err != nil {
		e.logger.Warn("failed to persist index snapshot",
			zap.String("conversation_id", rec.ID),
			zap.Error(err),
		)
	}

	metrics.RecordsStored.WithLabelValues(string(contentType)).Inc()
	e.logger.Debug("stored conversation",
		zap.String("conversation_id", rec.ID),
		zap.String("session_id", sessionID),
		zap.String("content_type", string(contentType)),
	)

	return rec, nil
}

// DetectsMemoryReference reports whether a message plausibly references
// earlier conversation content, with the detection confidence. Invalid
// input is a miss, never an error.
func (e *Engine) DetectsMemoryReference(message string) (bool, float64) {
	referenced, confidence := analyze.Detect(message)
	metrics.RecordDetection(referenced)
	return referenced, confidence
}

// BuildContext is the primary read path: detect, extract, rank, assemble.
// The worst outcome of any failure in here is an empty or degraded context;
// the surrounding conversation must proceed regardless.
func (e *Engine) BuildContext(ctx context.Context, message, sessionID string, prev *model.PreviousContext) *model.ContextResult {
	start := time.Now()

	empty := &model.ContextResult{
		Summary:   "no relevant conversation history",
		Artifacts: []model.Artifact{},
	}

	if strings.TrimSpace(message) == "" {
		return empty
	}

	referenced, _ := e.DetectsMemoryReference(message)
	if !referenced {
		return empty
	}

	structured := analyze.ExtractContentQuery(message, prev)
	q := rank.Query{
		Text:       message,
		Structured: structured,
		SessionID:  sessionID,
	}

	records := e.candidates(message, structured)
	candidates := rank.Rank(q, records)
	result := assemble.Build(q, candidates)

	metrics.RecordContextBuild(time.Since(start).Seconds(), result.RelevantConversationCount)
	e.logger.Debug("built memory context",
		zap.String("session_id", sessionID),
		zap.Int("candidates", len(candidates)),
		zap.Int("selected", result.RelevantConversationCount),
	)

	return result
}

// SearchMemory is a simplified ranked lookup without the line-query source
// hierarchy, for non-prompt uses such as a memory browser. Missing or
// low-relevance results simply shrink the slice.
func (e *Engine) SearchMemory(ctx context.Context, query string, limit int) []*model.ConversationRecord {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return nil
	}

	records := e.candidates(query, nil)
	candidates := rank.Rank(rank.Query{Text: query}, records)

	out := make([]*model.ConversationRecord, 0, limit)
	for _, c := range candidates {
		if c.Score <= 0 {
			continue
		}
		out = append(out, c.Record)
		if len(out) == limit {
			break
		}
	}
	return out
}

// Load returns a single stored record, or nil when absent.
func (e *Engine) Load(id string) (*model.ConversationRecord, error) {
	return e.store.Load(id)
}

// ReloadSnapshot re-reads the index snapshot and drops cached record
// decodes. This is how a process catches up with writers in other
// processes; there is no push notification in the engine itself.
func (e *Engine) ReloadSnapshot(trigger string) {
	if err := e.index.Load(); err != nil {
		e.logger.Warn("snapshot reload failed, keeping current indices", zap.Error(err))
		return
	}
	e.store.FlushCache()
	metrics.SnapshotReloads.WithLabelValues(trigger).Inc()
	e.logger.Debug("reloaded index snapshot", zap.String("trigger", trigger))
}

// SnapshotPath exposes the snapshot file location for the change watcher.
func (e *Engine) SnapshotPath() string {
	return e.index.SnapshotPath()
}

// candidates gathers candidate ids from the indices and resolves them
// against the store. Every id goes through a store lookup, so stale index
// entries can never surface nonexistent content.
func (e *Engine) candidates(message string, structured *model.StructuredQuery) []*model.ConversationRecord {
	seen := make(map[string]struct{})
	var ids []string

	add := func(more []string) {
		for _, id := range more {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}

	for _, tok := range classify.Tokenize(message) {
		add(e.index.IDsByTopic(tok))
	}
	if structured != nil && structured.ContentTypeHint != "" {
		add(e.index.IDsByType(structured.ContentTypeHint))
	}
	if structured != nil && structured.Carried != nil {
		add([]string{structured.Carried.ContentID})
	}

	// Sparse topic hits fall back to the whole indexed set; the ranker is
	// cheap at this scale and recall matters more than candidate pruning.
	if len(ids) < 5 {
		add(e.index.AllIDs())
	}

	records, err := e.store.LoadMany(ids)
	if err != nil {
		e.logger.Warn("partial candidate load", zap.Error(err))
	}
	return records
}
