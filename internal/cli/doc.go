// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and the non-TUI commands of
// ragdesk: one-shot commands (login, ask, upload, ...), the line-oriented
// chat REPL and the watch-folder uploader.
//
// Every command goes through the same app.Controller the TUI uses, so the
// session, error and stale-response rules are identical. Errors are
// returned, never printed and swallowed; main maps them to exit codes with
// GetExitCode.
package cli
