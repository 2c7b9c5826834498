package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/promptpad/memoryd/internal/model"
	"github.com/promptpad/memoryd/pkg/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := New(t.TempDir(), time.Minute, logger.NewNop())
	if err := s.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	return s
}

func testRecord(id string) *model.ConversationRecord {
	return &model.ConversationRecord{
		ID:                id,
		SessionID:         "s1",
		Timestamp:         time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		UserMessage:       "write me a poem",
		AssistantResponse: "line one\nline two\nline three",
		ContentType:       model.ContentPoem,
		Topics:            []string{"poem"},
	}
}

func TestStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	rec := testRecord("rec-1")

	if err := s.Store(rec); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	// Bypass the cache to prove the file itself round-trips.
	s.FlushCache()
	got, err := s.Load("rec-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got == nil {
		t.Fatal("Load() = nil, want record")
	}
	if got.ID != rec.ID || got.AssistantResponse != rec.AssistantResponse {
		t.Errorf("loaded record differs: %+v", got)
	}
	if got.ContentType != model.ContentPoem {
		t.Errorf("content type = %v, want poem", got.ContentType)
	}
	if !got.Timestamp.Equal(rec.Timestamp) {
		t.Errorf("timestamp = %v, want %v", got.Timestamp, rec.Timestamp)
	}
}

func TestStoreLeavesNoTempFile(t *testing.T) {
	s := newTestStore(t)
	if err := s.Store(testRecord("rec-1")); err != nil {
		t.Fatalf("Store() error = %v", err)
	}

	entries, err := os.ReadDir(s.Dir())
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temp file left behind: %s", e.Name())
		}
	}
}

func TestLoadMissingRecord(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Load("nope")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got != nil {
		t.Errorf("Load() = %+v, want nil for missing record", got)
	}
}

func TestLoadCorruptRecord(t *testing.T) {
	s := newTestStore(t)
	path := filepath.Join(s.Dir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, err := s.Load("bad")
	if err != nil {
		t.Fatalf("Load() error = %v, corrupt records must be skipped not fatal", err)
	}
	if got != nil {
		t.Errorf("Load() = %+v, want nil for corrupt record", got)
	}
}

func TestLoadManyOmitsMissing(t *testing.T) {
	s := newTestStore(t)
	if err := s.Store(testRecord("a")); err != nil {
		t.Fatal(err)
	}
	if err := s.Store(testRecord("c")); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadMany([]string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("LoadMany() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("LoadMany() len = %d, want 2", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "c" {
		t.Errorf("LoadMany() order = %s, %s; want a, c", got[0].ID, got[1].ID)
	}
}

func TestLoadAll(t *testing.T) {
	s := newTestStore(t)
	for _, id := range []string{"a", "b", "c"} {
		if err := s.Store(testRecord(id)); err != nil {
			t.Fatal(err)
		}
	}
	// A stray non-record file must be ignored.
	if err := os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(got) != 3 {
		t.Errorf("LoadAll() len = %d, want 3", len(got))
	}
}

func TestLoadAllMissingDir(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "never-created"), time.Minute, logger.NewNop())
	got, err := s.LoadAll()
	if err != nil {
		t.Fatalf("LoadAll() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("LoadAll() len = %d, want 0", len(got))
	}
}

func TestRewriteReplacesRecord(t *testing.T) {
	s := newTestStore(t)
	rec := testRecord("rec-1")
	if err := s.Store(rec); err != nil {
		t.Fatal(err)
	}

	updated := *rec
	updated.AssistantResponse = "a different body"
	if err := s.Store(&updated); err != nil {
		t.Fatal(err)
	}

	s.FlushCache()
	got, err := s.Load("rec-1")
	if err != nil {
		t.Fatal(err)
	}
	if got.AssistantResponse != "a different body" {
		t.Errorf("response = %q, want replacement", got.AssistantResponse)
	}
}
