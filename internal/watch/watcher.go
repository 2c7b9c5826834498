// Package watch reloads the engine's index snapshot when another process
// rewrites it.
//
// Writers publish snapshots via atomic rename, so every external update
// shows up as a single create/rename event on the snapshot path. Reload
// events are debounced because some platforms emit several notifications
// for one rename.
package watch

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/promptpad/memoryd/internal/engine"
	"github.com/promptpad/memoryd/pkg/logger"
)

const debounce = 200 * time.Millisecond

// Watcher observes the index snapshot file for external replacement.
type Watcher struct {
	engine  *engine.Engine
	watcher *fsnotify.Watcher
	logger  *logger.Logger
}

// New creates a watcher over the engine's snapshot directory. The parent
// directory is watched rather than the file itself because rename-based
// replacement swaps the inode out from under a file-level watch.
func New(eng *engine.Engine, log *logger.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := fsw.Add(filepath.Dir(eng.SnapshotPath())); err != nil {
		fsw.Close()
		return nil, err
	}

	return &Watcher{engine: eng, watcher: fsw, logger: log}, nil
}

// Run processes events until ctx is cancelled. Blocks; run in a goroutine.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()

	snapshot := w.engine.SnapshotPath()
	var timer *time.Timer
	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != snapshot {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})

		case <-pending:
			w.engine.ReloadSnapshot("watcher")

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("snapshot watcher error", zap.Error(err))
		}
	}
}
