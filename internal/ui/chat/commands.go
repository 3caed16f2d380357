// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ragdesk/internal/api"
	"github.com/jeranaias/ragdesk/internal/app"
	chatctl "github.com/jeranaias/ragdesk/internal/chat"
	"github.com/jeranaias/ragdesk/internal/documents"
	"github.com/jeranaias/ragdesk/internal/export"
)

// =============================================================================
// COMMAND CREATORS
// =============================================================================

// withTimeout runs fn under a fresh deadline. Commands outlive the Update
// call that issued them, so they never share a context with it.
func withTimeout(d time.Duration, fn func(ctx context.Context) error) error {
	if d <= 0 {
		d = api.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return fn(ctx)
}

// restoreCmd restores the persisted session and loads its data.
func restoreCmd(ctrl *app.Controller, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		var ok bool
		_ = withTimeout(timeout, func(ctx context.Context) error {
			ok = ctrl.Restore(ctx)
			return nil
		})
		return restoredMsg{ok: ok}
	}
}

// dispatchCmd sends intent through the controller and wraps the result
// with wrap.
func dispatchCmd(ctrl *app.Controller, timeout time.Duration, intent app.Intent, wrap func(error) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		err := withTimeout(timeout, func(ctx context.Context) error {
			return ctrl.Dispatch(ctx, intent)
		})
		return wrap(err)
	}
}

// answerCmd completes an exchange started in Update.
func answerCmd(ctrl *app.Controller, timeout time.Duration, ex *chatctl.Exchange) tea.Cmd {
	return func() tea.Msg {
		err := withTimeout(timeout, func(ctx context.Context) error {
			return ctrl.RunQuestion(ctx, ex)
		})
		return answerMsg{err: err}
	}
}

// uploadCmd expands the typed patterns and uploads the result.
func uploadCmd(ctrl *app.Controller, timeout time.Duration, input string) tea.Cmd {
	return func() tea.Msg {
		files, err := documents.ExpandPaths(documents.SplitPatterns(input))
		if err != nil {
			ctrl.Chat().AppendAssistant("Upload failed: " + api.UserMessage(err))
			return uploadDoneMsg{err: err}
		}
		err = withTimeout(timeout, func(ctx context.Context) error {
			return ctrl.Dispatch(ctx, app.FilesSelected{Files: files})
		})
		return uploadDoneMsg{err: err}
	}
}

// exportCmd writes the transcript in format to opts.OutputDir.
func exportCmd(ctrl *app.Controller, format string, opts *export.Options) tea.Cmd {
	return func() tea.Msg {
		exp, err := export.ForFormat(format, opts)
		if err != nil {
			return exportDoneMsg{err: err}
		}
		path, err := export.ExportToFile(ctrl.Transcript(), exp, opts)
		return exportDoneMsg{path: path, err: err}
	}
}
