// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session owns the authenticated session: the credential and the
// identity it was issued for.
//
// # Key Types
//
//   - Backend: durable key/value storage (FileBackend, SQLiteBackend, MemoryBackend)
//   - Store: restores, saves, and clears the two session entries on a Backend
//   - Manager: the in-memory current session plus the epoch used to detect
//     stale responses
//   - Ticket: (epoch, credential) captured when a request is issued
//
// # Storage Layout
//
// Two keyed entries: "token" holds the credential string, "user" holds the
// identity as JSON. Save writes both in a single atomic backend operation;
// Restore returns nothing unless both are present and well formed.
//
// # Usage
//
//	backend, _ := session.OpenBackend("sqlite", path)
//	store := session.NewStore(backend, session.WithExpiryCheck(true))
//	mgr := session.NewManager(store, logger)
//	mgr.RestoreOnStartup()
//
//	ticket := mgr.Ticket()
//	resp, err := client.Ask(ctx, question)
//	if !mgr.IsCurrent(ticket) {
//	    return // logged out while the request was in flight
//	}
package session
