// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// Markdown renders answer text with glamour. Renderers are built lazily and
// rebuilt only when the wrap width changes.
type Markdown struct {
	style string

	mu       sync.Mutex
	width    int
	renderer *glamour.TermRenderer
}

// NewMarkdown creates a renderer for a glamour standard style ("dark",
// "light", "notty").
func NewMarkdown(style string) *Markdown {
	return &Markdown{style: style}
}

// Render renders md wrapped at width. On any glamour error the raw text is
// returned so an answer is never lost.
func (m *Markdown) Render(md string, width int) string {
	if width < 20 {
		width = 20
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.renderer == nil || m.width != width {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle(m.style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return md
		}
		m.renderer = r
		m.width = width
	}

	out, err := m.renderer.Render(md)
	if err != nil {
		return md
	}
	return strings.Trim(out, "\n")
}
