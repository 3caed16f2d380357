// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"time"
)

// =============================================================================
// CONVERSATION TYPE
// =============================================================================

// Conversation is a frozen copy of the chat view, used for transcript export
// and for rendering. It never aliases the controller's live message list.
type Conversation struct {
	ID        string    `json:"id" yaml:"id"`
	Title     string    `json:"title" yaml:"title"`
	User      string    `json:"user,omitempty" yaml:"user,omitempty"`
	Server    string    `json:"server,omitempty" yaml:"server,omitempty"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Messages  []Message `json:"messages" yaml:"messages"`
}

// NewConversation builds a conversation from a message list. The messages
// are deep-copied.
func NewConversation(id string, messages []Message) *Conversation {
	c := &Conversation{
		ID:        id,
		CreatedAt: time.Now(),
		Messages:  CloneMessages(messages),
	}
	if c.Messages == nil {
		c.Messages = []Message{}
	}
	return c
}

// GetTitle returns the title, the first question, or a default.
func (c *Conversation) GetTitle() string {
	if c.Title != "" {
		return c.Title
	}
	for _, msg := range c.Messages {
		if msg.Role == RoleUser {
			return msg.Preview(50)
		}
	}
	return "Document Chat"
}

// MessageCount returns the number of messages.
func (c *Conversation) MessageCount() int {
	return len(c.Messages)
}

// ExchangeCount returns the number of user questions in the conversation.
func (c *Conversation) ExchangeCount() int {
	n := 0
	for _, msg := range c.Messages {
		if msg.Role == RoleUser {
			n++
		}
	}
	return n
}

// IsEmpty reports whether there are no messages.
func (c *Conversation) IsEmpty() bool {
	return len(c.Messages) == 0
}

// CitedFiles returns the distinct filenames cited by assistant messages in
// first-seen order.
func (c *Conversation) CitedFiles() []string {
	seen := make(map[string]bool)
	var files []string
	for _, msg := range c.Messages {
		for _, src := range msg.Sources {
			if !seen[src.Filename] {
				seen[src.Filename] = true
				files = append(files, src.Filename)
			}
		}
	}
	return files
}
