// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

// =============================================================================
// SOURCE TYPE
// =============================================================================

// Source is a retrieved document excerpt cited by an assistant answer.
type Source struct {
	Filename       string  `json:"filename" yaml:"filename"`
	Similarity     float64 `json:"similarity" yaml:"similarity"`
	ContentPreview string  `json:"content_preview" yaml:"content_preview"`
}

// Percent returns the similarity as a whole percentage clamped to [0,100].
func (s Source) Percent() int {
	sim := s.Similarity
	if sim < 0 {
		sim = 0
	}
	if sim > 1 {
		sim = 1
	}
	return int(sim*100 + 0.5)
}

// Label returns "filename (87%)".
func (s Source) Label() string {
	return fmt.Sprintf("%s (%d%%)", s.Filename, s.Percent())
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message is a single entry in the chat view.
//
// Sources is nil when the message carries no citations. An empty non-nil
// slice is normalized to nil by the constructors so "absent" has one
// representation.
type Message struct {
	ID        string    `json:"id" yaml:"id"`
	Role      Role      `json:"role" yaml:"role"`
	Content   string    `json:"content" yaml:"content"`
	Sources   []Source  `json:"sources,omitempty" yaml:"sources,omitempty"`
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return NewMessage(RoleUser, content)
}

// NewAssistantMessage creates an assistant message with optional citations.
func NewAssistantMessage(content string, sources []Source) Message {
	msg := NewMessage(RoleAssistant, content)
	if len(sources) > 0 {
		msg.Sources = append([]Source(nil), sources...)
	}
	return msg
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return NewMessage(RoleSystem, content)
}

// HasSources reports whether the message carries citations.
func (m Message) HasSources() bool {
	return len(m.Sources) > 0
}

// Clone returns a deep copy, so snapshots handed to renderers cannot alias
// controller state.
func (m Message) Clone() Message {
	if m.Sources != nil {
		m.Sources = append([]Source(nil), m.Sources...)
	}
	return m
}

// Preview returns a truncated preview of the message content.
func (m Message) Preview(maxLen int) string {
	runes := []rune(m.Content)
	if len(runes) <= maxLen || maxLen < 4 {
		return m.Content
	}
	return string(runes[:maxLen-3]) + "..."
}

// CloneMessages deep-copies a message slice.
func CloneMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	out := make([]Message, len(msgs))
	for i, m := range msgs {
		out[i] = m.Clone()
	}
	return out
}
