// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures shared by the ragdesk
// controllers and surfaces.
//
// # Key Types
//
//   - Session: credential plus Identity, always set and cleared together
//   - Identity: the user profile returned at login
//   - Message: one chat entry (user, assistant, or system) with optional Sources
//   - Source: a cited document excerpt with its similarity score
//   - DocumentRecord: one indexed document as listed by the backend
//   - Timestamp: time.Time that accepts the backend's zone-less ISO-8601
//   - Conversation: frozen copy of the chat view for export
//
// # Usage
//
//	msg := model.NewAssistantMessage(answer, sources)
//	for _, src := range msg.Sources {
//	    fmt.Println(src.Label()) // "handbook.pdf (87%)"
//	}
package model
