package index

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/promptpad/memoryd/internal/model"
	"github.com/promptpad/memoryd/pkg/logger"
)

var ts = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func rec(id, session string, t model.ContentType, topics []string, when time.Time) *model.ConversationRecord {
	return &model.ConversationRecord{
		ID:          id,
		SessionID:   session,
		Timestamp:   when,
		ContentType: t,
		Topics:      topics,
	}
}

func TestUpdateIndexesAllFour(t *testing.T) {
	ix := New(t.TempDir(), logger.NewNop())
	ix.Update(rec("a", "s1", model.ContentPoem, []string{"desert", "rain"}, ts))
	ix.Update(rec("b", "s1", model.ContentCode, []string{"desert"}, ts.Add(time.Hour)))

	if got := ix.IDsByTopic("desert"); len(got) != 2 {
		t.Errorf("topic desert ids = %v, want 2", got)
	}
	if got := ix.IDsByTopic("rain"); len(got) != 1 || got[0] != "a" {
		t.Errorf("topic rain ids = %v, want [a]", got)
	}
	if got := ix.IDsByType(model.ContentPoem); len(got) != 1 || got[0] != "a" {
		t.Errorf("type poem ids = %v, want [a]", got)
	}
	if got := ix.IDsByDate(ts); len(got) != 2 {
		t.Errorf("date ids = %v, want 2", got)
	}

	info := ix.Session("s1")
	if info == nil {
		t.Fatal("session s1 missing")
	}
	if info.ConversationCount != 2 {
		t.Errorf("conversation count = %d, want 2", info.ConversationCount)
	}
	if !info.LastActivity.Equal(ts.Add(time.Hour)) {
		t.Errorf("last activity = %v, want %v", info.LastActivity, ts.Add(time.Hour))
	}
}

func TestUpdateIsIdempotentPerID(t *testing.T) {
	ix := New(t.TempDir(), logger.NewNop())
	r := rec("a", "s1", model.ContentPoem, []string{"desert"}, ts)
	ix.Update(r)
	ix.Update(r)

	if got := ix.IDsByTopic("desert"); len(got) != 1 {
		t.Errorf("topic ids = %v, want deduplicated [a]", got)
	}
	if got := ix.IDsByType(model.ContentPoem); len(got) != 1 {
		t.Errorf("type ids = %v, want deduplicated [a]", got)
	}
}

func TestAllIDs(t *testing.T) {
	ix := New(t.TempDir(), logger.NewNop())
	ix.Update(rec("b", "s1", model.ContentPoem, []string{"x"}, ts))
	ix.Update(rec("a", "s2", model.ContentCode, nil, ts))

	got := ix.AllIDs()
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("AllIDs() = %v, want [a b] sorted", got)
	}
}

func TestPersistLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	ix := New(root, logger.NewNop())
	ix.Update(rec("a", "s1", model.ContentPoem, []string{"desert"}, ts))
	ix.Update(rec("b", "s2", model.ContentCode, []string{"parser"}, ts.Add(time.Hour)))

	if err := ix.Persist(); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	fresh := New(root, logger.NewNop())
	if err := fresh.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := fresh.IDsByTopic("desert"); len(got) != 1 || got[0] != "a" {
		t.Errorf("topic desert = %v, want [a]", got)
	}
	if got := fresh.IDsByType(model.ContentCode); len(got) != 1 || got[0] != "b" {
		t.Errorf("type code = %v, want [b]", got)
	}
	if got := fresh.IDsByDate(ts); len(got) != 2 {
		t.Errorf("date ids = %v, want 2", got)
	}
	info := fresh.Session("s2")
	if info == nil || info.ConversationCount != 1 {
		t.Errorf("session s2 = %+v, want count 1", info)
	}
}

func TestLoadMissingSnapshot(t *testing.T) {
	ix := New(t.TempDir(), logger.NewNop())
	err := ix.Load()
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Load() error = %v, want fs.ErrNotExist", err)
	}
}

func TestLoadCorruptSnapshotKeepsState(t *testing.T) {
	root := t.TempDir()
	ix := New(root, logger.NewNop())
	ix.Update(rec("a", "s1", model.ContentPoem, []string{"desert"}, ts))

	if err := os.MkdirAll(filepath.Dir(ix.SnapshotPath()), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(ix.SnapshotPath(), []byte("{broken"), 0o644); err != nil {
		t.Fatal(err)
	}

	err := ix.Load()
	if err == nil {
		t.Fatal("Load() = nil, want parse error")
	}
	if errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("Load() error = %v, want parse error not missing-file", err)
	}
	// The working set must survive a failed reload.
	if got := ix.IDsByTopic("desert"); len(got) != 1 {
		t.Errorf("topic ids after failed load = %v, want [a]", got)
	}
}

func TestRebuildDropsStaleEntries(t *testing.T) {
	ix := New(t.TempDir(), logger.NewNop())
	ix.Update(rec("stale", "s1", model.ContentPoem, []string{"old"}, ts))

	ix.Rebuild([]*model.ConversationRecord{
		rec("fresh", "s2", model.ContentCode, []string{"new"}, ts),
	})

	if got := ix.IDsByTopic("old"); len(got) != 0 {
		t.Errorf("stale topic survived rebuild: %v", got)
	}
	if got := ix.IDsByTopic("new"); len(got) != 1 || got[0] != "fresh" {
		t.Errorf("rebuilt topic = %v, want [fresh]", got)
	}
	if ix.Session("s1") != nil {
		t.Error("stale session survived rebuild")
	}
}

func TestPersistLeavesNoTempFile(t *testing.T) {
	ix := New(t.TempDir(), logger.NewNop())
	ix.Update(rec("a", "s1", model.ContentPoem, nil, ts))
	if err := ix.Persist(); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(filepath.Dir(ix.SnapshotPath()))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "snapshot.json" {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("indexes dir = %v, want only snapshot.json", names)
	}
}
