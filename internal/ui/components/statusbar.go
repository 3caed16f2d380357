// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ragdesk/internal/ui/styles"
)

// Shortcut is one key hint.
type Shortcut struct {
	Key  string
	Desc string
}

// MainShortcuts are shown on the chat screen.
var MainShortcuts = []Shortcut{
	{"enter", "send"},
	{"^u", "upload"},
	{"^r", "refresh"},
	{"^l", "clear"},
	{"^e", "export"},
	{"^o", "logout"},
	{"^c", "quit"},
}

// AuthShortcuts are shown on the auth screen.
var AuthShortcuts = []Shortcut{
	{"tab", "login/register"},
	{"up/down", "field"},
	{"enter", "submit"},
	{"^c", "quit"},
}

// StatusBar is the bottom line: a busy indicator or status text on the
// left, key hints on the right.
type StatusBar struct {
	Width     int
	Busy      bool
	Spinner   string
	Status    string
	Shortcuts []Shortcut
	theme     *styles.Theme
}

// NewStatusBar creates a status bar with the main screen hints.
func NewStatusBar(theme *styles.Theme) *StatusBar {
	return &StatusBar{
		Width:     80,
		Shortcuts: MainShortcuts,
		theme:     theme,
	}
}

// SetWidth updates the bar width.
func (s *StatusBar) SetWidth(width int) {
	s.Width = width
}

// View renders the bar.
func (s *StatusBar) View() string {
	width := s.Width
	if width < 20 {
		width = 20
	}
	inner := width - 2

	left := s.theme.Muted.Render(s.Status)
	if s.Busy {
		label := s.Status
		if label == "" {
			label = "Working..."
		}
		left = s.theme.Spinner.Render(s.Spinner) + " " + s.theme.Muted.Render(label)
	}

	// Drop hints from the end until everything fits.
	hints := s.Shortcuts
	right := s.renderShortcuts(hints)
	for len(hints) > 0 && lipgloss.Width(left)+lipgloss.Width(right)+1 > inner {
		hints = hints[:len(hints)-1]
		right = s.renderShortcuts(hints)
	}

	gap := inner - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return s.theme.StatusBar.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}

func (s *StatusBar) renderShortcuts(hints []Shortcut) string {
	parts := make([]string, 0, len(hints))
	for _, h := range hints {
		parts = append(parts, s.theme.ShortcutKey.Render(h.Key)+" "+s.theme.ShortcutDesc.Render(h.Desc))
	}
	return strings.Join(parts, "  ")
}
