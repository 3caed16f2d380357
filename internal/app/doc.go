// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package app wires the session manager, API client, document registry, and
// chat controller together and is the single entry point for user actions.
//
// Surfaces (TUI, REPL, one-shot commands) never call the API directly. They
// build an Intent, pass it to Controller.Dispatch, and re-render from
// Controller.UI and the chat snapshot.
//
// Any operation that fails because the server rejected the credential ends
// the session and leaves a "Session expired" notice for the login screen.
package app
