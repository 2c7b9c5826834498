// Package index maintains the secondary indices over stored conversations.
//
// Four indices are kept in memory and persisted together as one snapshot
// file: topic token -> ids, content type -> ids, calendar date -> ids, and
// per-session activity counters. The snapshot is derived state: the record
// files remain authoritative, and a lost or corrupt snapshot degrades to
// empty indices rather than failing startup.
package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/promptpad/memoryd/internal/model"
	"github.com/promptpad/memoryd/pkg/logger"
	"github.com/promptpad/memoryd/pkg/metrics"
)

const (
	indexesDir   = "indexes"
	snapshotFile = "snapshot.json"
	dateLayout   = "2006-01-02"
)

// SessionInfo tracks activity for one session.
type SessionInfo struct {
	LastActivity      time.Time `json:"last_activity"`
	ConversationCount int       `json:"conversation_count"`
}

// Indexer owns the in-memory indices and their snapshot lifecycle.
type Indexer struct {
	mu       sync.RWMutex
	topics   map[string][]string
	types    map[model.ContentType][]string
	dates    map[string][]string
	sessions map[string]*SessionInfo

	path   string
	logger *logger.Logger
}

// New creates an indexer whose snapshot lives under root.
func New(root string, log *logger.Logger) *Indexer {
	return &Indexer{
		topics:   make(map[string][]string),
		types:    make(map[model.ContentType][]string),
		dates:    make(map[string][]string),
		sessions: make(map[string]*SessionInfo),
		path:     filepath.Join(root, indexesDir, snapshotFile),
		logger:   log,
	}
}

// Init creates the indexes directory if absent. Idempotent. The directory
// must exist before a filesystem watch can be placed on it.
func (ix *Indexer) Init() error {
	if err := os.MkdirAll(filepath.Dir(ix.path), 0o755); err != nil {
		return fmt.Errorf("failed to create indexes dir: %w", err)
	}
	return nil
}

// Update inserts a record into all four indices. Called once, immediately
// after a successful store.
func (ix *Indexer) Update(rec *model.ConversationRecord) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, topic := range rec.Topics {
		ix.topics[topic] = appendUnique(ix.topics[topic], rec.ID)
	}
	ix.types[rec.ContentType] = appendUnique(ix.types[rec.ContentType], rec.ID)

	date := rec.Timestamp.Format(dateLayout)
	ix.dates[date] = appendUnique(ix.dates[date], rec.ID)

	info := ix.sessions[rec.SessionID]
	if info == nil {
		info = &SessionInfo{}
		ix.sessions[rec.SessionID] = info
	}
	info.ConversationCount++
	if rec.Timestamp.After(info.LastActivity) {
		info.LastActivity = rec.Timestamp
	}
}

// Rebuild replaces all index state from the full record set. This is the
// administrative path that drops ids whose records no longer exist.
func (ix *Indexer) Rebuild(records []*model.ConversationRecord) {
	ix.mu.Lock()
	ix.topics = make(map[string][]string)
	ix.types = make(map[model.ContentType][]string)
	ix.dates = make(map[string][]string)
	ix.sessions = make(map[string]*SessionInfo)
	ix.mu.Unlock()

	for _, rec := range records {
		ix.Update(rec)
	}
}

// IDsByTopic returns ids indexed under a topic token.
func (ix *Indexer) IDsByTopic(topic string) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]string(nil), ix.topics[topic]...)
}

// IDsByType returns ids indexed under a content type.
func (ix *Indexer) IDsByType(t model.ContentType) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]string(nil), ix.types[t]...)
}

// IDsByDate returns ids indexed under a calendar date.
func (ix *Indexer) IDsByDate(date time.Time) []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return append([]string(nil), ix.dates[date.Format(dateLayout)]...)
}

// Session returns activity info for a session id, or nil if unknown.
func (ix *Indexer) Session(sessionID string) *SessionInfo {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	info := ix.sessions[sessionID]
	if info == nil {
		return nil
	}
	cp := *info
	return &cp
}

// AllIDs returns every id present in any index, deduplicated and sorted.
func (ix *Indexer) AllIDs() []string {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	seen := make(map[string]struct{})
	for _, ids := range ix.topics {
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}
	for _, ids := range ix.types {
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}
	for _, ids := range ix.dates {
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// snapshot is the on-disk shape: ordered pair lists, since index keys are
// dynamic strings.
type snapshot struct {
	Topics      []pair        `json:"topics"`
	Types       []pair        `json:"artifact_types"`
	Dates       []pair        `json:"dates"`
	Sessions    []sessionPair `json:"sessions"`
	LastUpdated time.Time     `json:"last_updated"`
}

type pair struct {
	Key string   `json:"key"`
	IDs []string `json:"ids"`
}

type sessionPair struct {
	Key  string      `json:"key"`
	Info SessionInfo `json:"info"`
}

// Persist writes the snapshot atomically via temp-file-then-rename.
func (ix *Indexer) Persist() error {
	ix.mu.RLock()
	snap := snapshot{
		Topics:      toPairs(ix.topics),
		Types:       typePairs(ix.types),
		Dates:       toPairs(ix.dates),
		LastUpdated: time.Now().UTC(),
	}
	for key, info := range ix.sessions {
		snap.Sessions = append(snap.Sessions, sessionPair{Key: key, Info: *info})
	}
	ix.mu.RUnlock()

	sort.Slice(snap.Sessions, func(i, j int) bool { return snap.Sessions[i].Key < snap.Sessions[j].Key })

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode index snapshot: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(ix.path), 0o755); err != nil {
		return fmt.Errorf("failed to create indexes dir: %w", err)
	}

	tmp := ix.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		metrics.StorageErrors.WithLabelValues("snapshot").Inc()
		return fmt.Errorf("failed to write index snapshot: %w", err)
	}
	if err := os.Rename(tmp, ix.path); err != nil {
		metrics.StorageErrors.WithLabelValues("snapshot").Inc()
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to publish index snapshot: %w", err)
	}
	return nil
}

// Load replaces in-memory state from the snapshot file. A missing snapshot
// returns an fs.ErrNotExist-wrapped error; a corrupt one returns the parse
// error. Either way the in-memory indices are left untouched, so a failed
// reload never wipes a working set. Callers decide whether to rebuild.
func (ix *Indexer) Load() error {
	data, err := os.ReadFile(ix.path)
	if err != nil {
		return fmt.Errorf("failed to read index snapshot: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("corrupt index snapshot: %w", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.topics = fromPairs(snap.Topics)
	ix.dates = fromPairs(snap.Dates)
	ix.types = make(map[model.ContentType][]string, len(snap.Types))
	for _, p := range snap.Types {
		ix.types[model.ContentType(p.Key)] = p.IDs
	}
	ix.sessions = make(map[string]*SessionInfo, len(snap.Sessions))
	for _, sp := range snap.Sessions {
		info := sp.Info
		ix.sessions[sp.Key] = &info
	}
	return nil
}

// SnapshotPath returns the snapshot file location, for the change watcher.
func (ix *Indexer) SnapshotPath() string {
	return ix.path
}

func toPairs(m map[string][]string) []pair {
	pairs := make([]pair, 0, len(m))
	for key, ids := range m {
		pairs = append(pairs, pair{Key: key, IDs: ids})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	return pairs
}

func typePairs(m map[model.ContentType][]string) []pair {
	pairs := make([]pair, 0, len(m))
	for key, ids := range m {
		pairs = append(pairs, pair{Key: string(key), IDs: ids})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Key < pairs[j].Key })
	return pairs
}

func fromPairs(pairs []pair) map[string][]string {
	m := make(map[string][]string, len(pairs))
	for _, p := range pairs {
		m[p.Key] = p.IDs
	}
	return m
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
