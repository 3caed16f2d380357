// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package watch uploads PDFs dropped into a directory.
//
// Events are debounced per path so a file still being written is uploaded
// once it settles. Paths uploaded recently (same size and mtime) are
// remembered for a TTL and skipped, which absorbs the duplicate events some
// editors and copy tools emit.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk/internal/api"
	"github.com/jeranaias/ragdesk/internal/documents"
	"github.com/jeranaias/ragdesk/internal/logging"
)

// Defaults.
const (
	DefaultDebounce  = 2 * time.Second
	DefaultDedupeTTL = 10 * time.Minute
	tickInterval     = 100 * time.Millisecond
)

// UploadFunc uploads one batch.
type UploadFunc func(ctx context.Context, files []api.UploadFile) error

// Options configures a Watcher.
type Options struct {
	Debounce  time.Duration
	DedupeTTL time.Duration
	Logger    *zap.Logger
	// OnBatch is called after each upload attempt with the file names and the
	// result.
	OnBatch func(names []string, err error)
}

// Watcher watches one directory (non-recursive).
type Watcher struct {
	dir      string
	upload   UploadFunc
	opts     Options
	fsw      *fsnotify.Watcher
	recent   *cache.Cache
	logger   *zap.Logger
	tick     time.Duration
	mu       sync.Mutex
	pending  map[string]time.Time
	closeErr error
	once     sync.Once
}

// New creates a watcher for dir. Nothing happens until Run.
func New(dir string, upload UploadFunc, opts Options) (*Watcher, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("watch directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch directory: %s is not a directory", dir)
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.DedupeTTL <= 0 {
		opts.DedupeTTL = DefaultDedupeTTL
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{
		dir:     dir,
		upload:  upload,
		opts:    opts,
		fsw:     fsw,
		recent:  cache.New(opts.DedupeTTL, opts.DedupeTTL),
		logger:  logging.OrNop(opts.Logger).Named("watch"),
		tick:    tickInterval,
		pending: make(map[string]time.Time),
	}, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string { return w.dir }

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.Close()

	ticker := time.NewTicker(w.tick)
	defer ticker.Stop()

	w.logger.Info("watching", zap.String("dir", w.dir))
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) {
				w.touch(event.Name, time.Now())
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				w.mu.Lock()
				delete(w.pending, event.Name)
				w.mu.Unlock()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", zap.Error(err))

		case now := <-ticker.C:
			w.flush(ctx, now)
		}
	}
}

// ScanExisting queues every file already in the directory.
func (w *Watcher) ScanExisting() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	now := time.Now().Add(-w.opts.Debounce)
	for _, e := range entries {
		if e.Type().IsRegular() {
			w.touch(filepath.Join(w.dir, e.Name()), now)
		}
	}
	return nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.once.Do(func() {
		w.closeErr = w.fsw.Close()
	})
	return w.closeErr
}

func (w *Watcher) touch(path string, at time.Time) {
	if !documents.IsPDF(api.UploadFile{Name: filepath.Base(path), Path: path}) {
		return
	}
	w.mu.Lock()
	w.pending[path] = at
	w.mu.Unlock()
}

// flush uploads every pending path that has been quiet for the debounce
// interval.
func (w *Watcher) flush(ctx context.Context, now time.Time) int {
	w.mu.Lock()
	var due []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.opts.Debounce {
			due = append(due, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	if len(due) == 0 {
		return 0
	}
	sort.Strings(due)

	var (
		files []api.UploadFile
		keys  []string
		names []string
	)
	for _, path := range due {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		key := fmt.Sprintf("%s|%d|%d", path, info.Size(), info.ModTime().UnixNano())
		if _, seen := w.recent.Get(key); seen {
			w.logger.Debug("skipping recently uploaded file", zap.String("path", path))
			continue
		}
		files = append(files, api.UploadFile{Name: filepath.Base(path), Path: path, ContentType: api.MediaTypePDF})
		keys = append(keys, key)
		names = append(names, filepath.Base(path))
	}
	if len(files) == 0 {
		return 0
	}

	err := w.upload(ctx, files)
	if err == nil {
		for _, k := range keys {
			w.recent.SetDefault(k, true)
		}
		w.logger.Info("uploaded", zap.Strings("files", names))
	} else if !errors.Is(err, context.Canceled) {
		w.logger.Warn("upload failed", zap.Strings("files", names), zap.Error(err))
	}
	if w.opts.OnBatch != nil {
		w.opts.OnBatch(names, err)
	}
	return len(files)
}
