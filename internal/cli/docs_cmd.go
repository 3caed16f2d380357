// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk/internal/api"
	"github.com/jeranaias/ragdesk/internal/app"
	"github.com/jeranaias/ragdesk/internal/documents"
	"github.com/jeranaias/ragdesk/internal/model"
	"github.com/jeranaias/ragdesk/internal/watch"
)

// documentJSON is a document record as printed in JSON mode.
type documentJSON struct {
	Filename    string `json:"filename"`
	ChunkCount  int    `json:"chunk_count"`
	ProcessedAt string `json:"processed_at,omitempty"`
}

func toDocumentJSON(d model.DocumentRecord) documentJSON {
	out := documentJSON{Filename: d.Filename, ChunkCount: d.ChunkCount}
	if !d.ProcessedAt.IsZero() {
		out.ProcessedAt = d.ProcessedAt.Display()
	}
	return out
}

// =============================================================================
// UPLOAD
// =============================================================================

func runUpload(ctx context.Context, env *Env, args Args) error {
	p := NewArgParser(args.Raw)
	patterns := p.PositionalFrom(0)
	if len(patterns) == 0 {
		return NewUsageError("usage: ragdesk upload <file.pdf|dir|glob>...")
	}

	files, err := documents.ExpandPaths(patterns)
	if err != nil {
		return err
	}
	kept, dropped := documents.FilterPDFs(files)
	for _, f := range dropped {
		env.printer.Warn("skipping %s: not a PDF", f.Name)
	}

	if err := env.Ctrl.Dispatch(ctx, app.FilesSelected{Files: files}); err != nil {
		return err
	}

	summary := ""
	if m, ok := lastMessage(env); ok && m.Role == model.RoleSystem {
		summary = m.Content
	}
	if args.JSON {
		names := make([]string, 0, len(kept))
		for _, f := range kept {
			names = append(names, f.Name)
		}
		return writeJSON(env, CmdUpload, map[string]any{
			"uploaded":  names,
			"summary":   summary,
			"documents": env.Ctrl.Documents().Count(),
		})
	}
	env.printer.Success("%s", summary)
	return nil
}

// =============================================================================
// DOCS
// =============================================================================

func runDocs(ctx context.Context, env *Env, args Args) error {
	reg := env.Ctrl.Documents()
	if err := env.Ctrl.HandleError(reg.Refresh(ctx)); err != nil {
		return err
	}
	docs := reg.Documents()

	if args.JSON {
		out := make([]documentJSON, 0, len(docs))
		for _, d := range docs {
			out = append(out, toDocumentJSON(d))
		}
		return writeJSON(env, CmdDocs, map[string]any{"documents": out, "count": len(out)})
	}

	if len(docs) == 0 {
		env.printer.Info(documents.EmptyPlaceholder)
		return nil
	}
	env.printer.Title("Documents")
	for _, line := range reg.LinesWidth(env.Width) {
		env.printer.Result(line)
	}
	return nil
}

// =============================================================================
// WATCH
// =============================================================================

func runWatch(ctx context.Context, env *Env, args Args) error {
	p := NewArgParser(args.Raw, "existing")
	dir := p.Positional(0)
	if dir == "" {
		return NewUsageError("usage: ragdesk watch <dir> [--existing]")
	}

	upload := func(ctx context.Context, files []api.UploadFile) error {
		return env.Ctrl.Dispatch(ctx, app.FilesSelected{Files: files})
	}

	var authErr error
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := watch.New(dir, upload, watch.Options{
		Debounce:  env.Config.Watch.Debounce.Duration,
		DedupeTTL: env.Config.Watch.DedupeTTL.Duration,
		Logger:    env.Logger,
		OnBatch: func(names []string, err error) {
			switch {
			case err == nil:
				if m, ok := lastMessage(env); ok && m.Role == model.RoleSystem {
					env.printer.Success("%s", m.Content)
				}
			case api.Classify(err) == api.KindAuth:
				authErr = err
				env.printer.Error(ErrorMessage(err))
				cancel()
			default:
				env.printer.Warn("upload of %s failed: %s", strings.Join(names, ", "), ErrorMessage(err))
			}
		},
	})
	if err != nil {
		return NewUsageError(err.Error())
	}
	defer w.Close()

	if p.BoolFlag("existing") {
		if err := w.ScanExisting(); err != nil {
			return err
		}
	}

	env.printer.Info("Watching %s for new PDFs. Press Ctrl+C to stop.", w.Dir())
	env.Logger.Info("watch started", zap.String("dir", w.Dir()))

	err = w.Run(ctx)
	if authErr != nil {
		return authErr
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
