// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// watcherSettleDelay is how long a file must be quiet before ingestion.
// Copies into the docs directory arrive as a Create followed by a burst of
// Writes; ingesting on the first event would read a half-written file.
const watcherSettleDelay = 2 * time.Second

// IngestFunc ingests one transcript file. Called after the file settles.
type IngestFunc func(ctx context.Context, path string) error

// Watcher ingests transcript files dropped into the docs directory while
// the service runs.
//
// # Thread Safety
//
// Run is single-use. The Watcher owns its goroutines; Close via context
// cancellation.
type Watcher struct {
	dir    string
	ingest IngestFunc
	logger *slog.Logger

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// NewWatcher creates a watcher over dir that calls ingest for each new or
// rewritten transcript file.
func NewWatcher(dir string, ingest IngestFunc, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{
		dir:     dir,
		ingest:  ingest,
		logger:  logger,
		pending: make(map[string]*time.Timer),
	}
}

// Run watches until ctx is cancelled. Blocks; call from its own goroutine.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("ingest: start watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.dir); err != nil {
		return fmt.Errorf("ingest: watch %q: %w", w.dir, err)
	}
	w.logger.Info("ingest: watching docs directory", slog.String("dir", w.dir))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Op.Has(fsnotify.Create) && !event.Op.Has(fsnotify.Write) {
				continue
			}
			if !IsSupportedFile(event.Name) {
				continue
			}
			w.schedule(ctx, event.Name)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("ingest: watcher error", slog.String("error", err.Error()))
		}
	}
}

// schedule arms (or re-arms) the settle timer for one path.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(watcherSettleDelay)
		return
	}
	w.pending[path] = time.AfterFunc(watcherSettleDelay, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		if err := w.ingest(ctx, path); err != nil {
			w.logger.Error("ingest: watched file failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			return
		}
		w.logger.Info("ingest: watched file ingested", slog.String("path", path))
	})
}
