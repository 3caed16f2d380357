// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat is the Bubble Tea front end for ragdesk.
//
// The Model is a projection of app.Controller state. Key presses become
// intents; anything that touches the network runs inside a tea.Cmd and
// reports back with a typed message (see messages.go). Update applies those
// messages and re-reads the controller, it never performs I/O itself.
//
// Asking a question is split in two: Begin runs synchronously in Update so
// the question shows up at once and the input is disabled, and Run is
// issued as a command.
package chat
