// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat implements the conversation state machine.
//
// # States
//
//	Idle ──Begin──▶ Sending ──Run returns──▶ Idle
//	Idle ──LoadHistory──▶ LoadingHistory ──done──▶ Idle
//	Idle ──ClearHistory──▶ Clearing ──done──▶ Idle
//
// Only one operation is in flight at a time; anything started outside Idle
// fails with ErrBusy and changes nothing.
//
// # Message List
//
// Messages are append-only while a session lasts. The only wholesale
// replacements are LoadHistory (server history becomes the list) and a
// successful ClearHistory (the list becomes a single confirmation notice).
//
// # Stale Results
//
// Each request captures a session.Ticket. If the ticket is no longer
// current when the response arrives, the response is dropped and
// api.ErrStale is returned. A per-controller generation counter, bumped by
// Reset, keeps a late exchange from releasing the send flag of a newer one.
package chat
