// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package components provides the visual pieces of the ragdesk TUI: the
// header, the document sidebar, message blocks with source citations, the
// status bar and the confirmation overlay.
//
// Components are plain structs with a View method. They hold no controller
// state of their own; the chat model copies what it needs in before each
// render.
package components
