// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package export writes chat transcripts to files.
//
// Supported formats:
//
//   - markdown (.md): readable transcript with citations as bullet lists
//   - json (.json): the model.Conversation as-is
//   - yaml (.yaml): same structure as json
//   - html (.html): markdown rendered with goldmark, code fences highlighted
//     with chroma, single self-contained file
//
// Usage:
//
//	exp, err := export.ForFormat("html", export.DefaultOptions())
//	path, err := export.ExportToFile(conv, exp, opts)
package export
