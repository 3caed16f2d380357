// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package documents

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk/internal/api"
	"github.com/jeranaias/ragdesk/internal/logging"
	"github.com/jeranaias/ragdesk/internal/model"
	"github.com/jeranaias/ragdesk/internal/session"
	"github.com/jeranaias/ragdesk/internal/util"
)

// EmptyPlaceholder is shown when no documents are indexed.
const EmptyPlaceholder = "No documents uploaded yet."

// Gateway is the subset of api.Client the registry uses.
type Gateway interface {
	ListDocuments(ctx context.Context) ([]model.DocumentRecord, error)
	UploadDocuments(ctx context.Context, files []api.UploadFile) (*api.UploadResult, error)
}

// SessionGuard issues and checks tickets. session.Manager satisfies it.
type SessionGuard interface {
	Ticket() session.Ticket
	IsCurrent(session.Ticket) bool
}

// Registry is the document list view.
type Registry struct {
	mu     sync.RWMutex
	gw     Gateway
	guard  SessionGuard
	docs   []model.DocumentRecord
	loaded bool
	logger *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(gw Gateway, guard SessionGuard, logger *zap.Logger) *Registry {
	return &Registry{
		gw:     gw,
		guard:  guard,
		logger: logging.OrNop(logger).Named("documents"),
	}
}

// Refresh replaces the list with the server's. On failure the previous list
// is kept. A result that arrives after the session changed is dropped and
// ErrStale is returned.
func (r *Registry) Refresh(ctx context.Context) error {
	ticket := r.guard.Ticket()

	docs, err := r.gw.ListDocuments(ctx)
	if !r.guard.IsCurrent(ticket) {
		r.logger.Debug("discarding stale document list")
		return api.ErrStale
	}
	if err != nil {
		return err
	}

	snapshot := make([]model.DocumentRecord, len(docs))
	copy(snapshot, docs)

	r.mu.Lock()
	r.docs = snapshot
	r.loaded = true
	r.mu.Unlock()

	r.logger.Debug("document list refreshed", zap.Int("count", len(snapshot)))
	return nil
}

// Upload filters files to PDFs and uploads the rest as one batch. With no
// PDFs left it fails with a validation error and sends nothing. On success
// the list is refreshed; a refresh failure is logged but does not fail the
// upload.
func (r *Registry) Upload(ctx context.Context, files []api.UploadFile) (*api.UploadResult, error) {
	kept, dropped := FilterPDFs(files)
	for _, f := range dropped {
		r.logger.Debug("skipping non-PDF file", zap.String("name", displayName(f)))
	}
	if len(kept) == 0 {
		return nil, api.NewValidationError("files", "please select at least one PDF file")
	}

	ticket := r.guard.Ticket()
	res, err := r.gw.UploadDocuments(ctx, kept)
	if !r.guard.IsCurrent(ticket) {
		return nil, api.ErrStale
	}
	if err != nil {
		return nil, err
	}

	r.logger.Info("documents uploaded", zap.Int("count", len(kept)))
	if err := r.Refresh(ctx); err != nil && api.Classify(err) != api.KindStale {
		r.logger.Warn("refresh after upload failed", zap.Error(err))
	}
	return res, nil
}

// Documents returns a copy of the current list.
func (r *Registry) Documents() []model.DocumentRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]model.DocumentRecord, len(r.docs))
	copy(out, r.docs)
	return out
}

// Count returns the number of documents.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.docs)
}

// Loaded reports whether at least one Refresh has succeeded.
func (r *Registry) Loaded() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.loaded
}

// Reset drops the list.
func (r *Registry) Reset() {
	r.mu.Lock()
	r.docs = nil
	r.loaded = false
	r.mu.Unlock()
}

// Lines returns one formatted line per document, or the placeholder.
func (r *Registry) Lines() []string {
	return r.LinesWidth(0)
}

// LinesWidth is Lines with each line truncated to width display columns.
// A non-positive width disables truncation.
func (r *Registry) LinesWidth(width int) []string {
	docs := r.Documents()
	if len(docs) == 0 {
		return []string{EmptyPlaceholder}
	}
	lines := make([]string, len(docs))
	for i, d := range docs {
		line := FormatRecord(d)
		if width > 0 {
			line = util.TruncateWidth(line, width)
		}
		lines[i] = line
	}
	return lines
}

// Render returns Lines joined by newlines.
func (r *Registry) Render() string {
	return strings.Join(r.Lines(), "\n")
}

// FormatRecord renders "name - N chunks - processed".
func FormatRecord(d model.DocumentRecord) string {
	return fmt.Sprintf("%s - %s - %s", d.Filename, Chunks(d.ChunkCount), d.ProcessedAt.Display())
}

// Chunks renders a chunk count with the right plural.
func Chunks(n int) string {
	if n == 1 {
		return "1 chunk"
	}
	return fmt.Sprintf("%d chunks", n)
}

func displayName(f api.UploadFile) string {
	if f.Name != "" {
		return f.Name
	}
	return f.Path
}
