// Copyright (C) 2026 The Selene Authors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See <https://www.gnu.org/licenses/agpl-3.0> for the full license text.

package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// InvalidateFunc is called when the watched data file changes on disk.
type InvalidateFunc func()

// DataWatcher invalidates caches when the pulse file is changed by
// something other than this process (a sync tool, a manual edit, a
// restore).
//
// # Description
//
// Watches the data directory rather than the file itself: atomic writes
// replace the file by rename, which would silently drop a watch on the
// old inode. Events are debounced so one logical save (backup + temp +
// rename) triggers a single invalidation.
type DataWatcher struct {
	watcher  *fsnotify.Watcher
	target   string
	onChange InvalidateFunc
	debounce time.Duration

	stopOnce sync.Once
	done     chan struct{}
}

// NewDataWatcher watches the file at target and calls onChange after its
// contents change.
func NewDataWatcher(target string, onChange InvalidateFunc) (*DataWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(target)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch data directory: %w", err)
	}
	return &DataWatcher{
		watcher:  watcher,
		target:   filepath.Clean(target),
		onChange: onChange,
		debounce: 200 * time.Millisecond,
		done:     make(chan struct{}),
	}, nil
}

// Run processes events until the context is canceled or Stop is called.
// Call it on its own goroutine.
func (w *DataWatcher) Run(ctx context.Context) {
	var timer *time.Timer
	var timerC <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerC:
			slog.Debug("Pulse file changed on disk, invalidating caches", "file", w.target)
			w.onChange()
			timer = nil
			timerC = nil
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("File watcher error", "error", err)
		}
	}
}

// Stop ends the watch and releases the underlying watcher.
func (w *DataWatcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.watcher.Close()
	})
}
