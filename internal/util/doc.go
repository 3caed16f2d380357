// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util provides small helpers shared across ragdesk packages.
//
// # Atomic Writes
//
// AtomicWriteFile is used for every file ragdesk persists (session file,
// config, exported transcripts). It writes to a temp file, fsyncs, and
// renames, so a crash never leaves a half-written file behind.
//
// # Display Width
//
// TruncateWidth, PadWidth, and StringWidth measure strings in terminal
// columns (via go-runewidth) rather than bytes or runes.
package util
