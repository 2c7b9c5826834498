// Package store provides durable persistence for conversation records.
//
// Each record lives in its own JSON file under <root>/conversations. Writes
// go through a temp-file-then-rename sequence so a concurrent reader, even
// one in another process, never observes a partially written record. That
// atomic replace is the only cross-process coordination; there are no locks.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/promptpad/memoryd/internal/model"
	"github.com/promptpad/memoryd/pkg/logger"
	"github.com/promptpad/memoryd/pkg/metrics"
)

const conversationsDir = "conversations"

// Store persists conversation records as one JSON file per record.
type Store struct {
	dir    string
	cache  *gocache.Cache
	logger *logger.Logger
}

// New creates a store rooted at dir. Call Init before first use.
func New(root string, cacheTTL time.Duration, log *logger.Logger) *Store {
	return &Store{
		dir:    filepath.Join(root, conversationsDir),
		cache:  gocache.New(cacheTTL, 2*cacheTTL),
		logger: log,
	}
}

// Init creates the conversations directory if absent. Idempotent.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create conversations dir: %w", err)
	}
	return nil
}

// Dir returns the conversations directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Store writes a record to its per-id file atomically. On failure nothing
// is left behind except a possible orphaned temp file; the caller decides
// whether to retry.
func (s *Store) Store(rec *model.ConversationRecord) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode record %s: %w", rec.ID, err)
	}

	final := s.recordPath(rec.ID)
	tmp := final + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		metrics.StorageErrors.WithLabelValues("store").Inc()
		return fmt.Errorf("failed to write record %s: %w", rec.ID, err)
	}
	if err := os.Rename(tmp, final); err != nil {
		metrics.StorageErrors.WithLabelValues("store").Inc()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to publish record %s: %w", rec.ID, err)
	}

	s.cache.Set(rec.ID, rec, gocache.DefaultExpiration)
	return nil
}

// Load returns the record with the given id, or nil if no backing file
// exists. A missing record is a normal outcome, not an error.
func (s *Store) Load(id string) (*model.ConversationRecord, error) {
	if cached, ok := s.cache.Get(id); ok {
		return cached.(*model.ConversationRecord), nil
	}

	data, err := os.ReadFile(s.recordPath(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read record %s: %w", id, err)
	}

	var rec model.ConversationRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("skipping corrupt record file",
			zap.String("id", id),
			zap.Error(err),
		)
		metrics.CorruptRecordsSkipped.Inc()
		return nil, nil
	}

	s.cache.Set(id, &rec, gocache.DefaultExpiration)
	return &rec, nil
}

// LoadMany returns the records found for the given ids, preserving order.
// Ids with no backing file are silently omitted; callers must expect fewer
// records than ids requested.
func (s *Store) LoadMany(ids []string) ([]*model.ConversationRecord, error) {
	records := make([]*model.ConversationRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.Load(id)
		if err != nil {
			return records, err
		}
		if rec != nil {
			records = append(records, rec)
		}
	}
	return records, nil
}

// LoadAll reads every record in the store. Used only at cold start to
// rebuild indices when no snapshot exists; not a hot path.
func (s *Store) LoadAll() ([]*model.ConversationRecord, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list conversations dir: %w", err)
	}

	var records []*model.ConversationRecord
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		rec, err := s.Load(strings.TrimSuffix(name, ".json"))
		if err != nil {
			return records, err
		}
		if rec != nil {
			records = append(records, rec)
		}
	}
	return records, nil
}

// FlushCache drops all cached records. Called after an external snapshot
// reload so stale decodes are not served past the reload point.
func (s *Store) FlushCache() {
	s.cache.Flush()
}

func (s *Store) recordPath(id string) string {
	return filepath.Join(s.dir, id+".json")
}
