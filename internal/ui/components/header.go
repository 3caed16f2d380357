// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ragdesk/internal/ui/styles"
	"github.com/jeranaias/ragdesk/internal/util"
)

// Header is the one-line title bar.
type Header struct {
	Title  string
	User   string
	Server string
	Width  int
	theme  *styles.Theme
}

// NewHeader creates a header with the default title.
func NewHeader(theme *styles.Theme) *Header {
	return &Header{
		Title: "ragdesk",
		Width: 80,
		theme: theme,
	}
}

// SetWidth updates the header width.
func (h *Header) SetWidth(width int) {
	h.Width = width
}

// View renders the brand on the left and the user on the right.
func (h *Header) View() string {
	width := h.Width
	if width < 20 {
		width = 20
	}
	inner := width - 2

	server := ""
	if h.Server != "" && h.theme.GetLayoutMode() != styles.LayoutNarrow {
		server = "  " + h.Server
	}
	user := ""
	if h.User != "" {
		user = "signed in as " + h.User
	}

	// Drop the server first, then the user, when space runs out.
	used := util.StringWidth(h.Title) + util.StringWidth(server) + util.StringWidth(user)
	if used >= inner {
		server = ""
		used = util.StringWidth(h.Title) + util.StringWidth(user)
	}
	if used >= inner {
		user = ""
	}
	title := util.TruncateWidth(h.Title, inner)

	left := h.theme.HeaderBrand.Render(title) + h.theme.Muted.Render(server)
	right := h.theme.HeaderUser.Render(user)
	gap := inner - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return h.theme.Header.Width(width).Render(left + strings.Repeat(" ", gap) + right)
}
