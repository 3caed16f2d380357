// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ragdesk/internal/ui/styles"
)

// Confirm is a yes/no dialog.
type Confirm struct {
	Title  string
	Prompt string
	theme  *styles.Theme
}

// NewConfirm creates a dialog.
func NewConfirm(theme *styles.Theme, title, prompt string) *Confirm {
	return &Confirm{Title: title, Prompt: prompt, theme: theme}
}

// View renders the dialog box.
func (c *Confirm) View() string {
	title := c.theme.RoleLabel.Foreground(styles.Amber).Render(styles.StatusIndicators.Warning + " " + c.Title)
	hint := c.theme.ShortcutKey.Render("y") + c.theme.ShortcutDesc.Render(" yes   ") +
		c.theme.ShortcutKey.Render("n") + c.theme.ShortcutDesc.Render(" no")
	return c.theme.Overlay.Render(lipgloss.JoinVertical(lipgloss.Left, title, "", c.Prompt, "", hint))
}

// Place centers box in a width x height area.
func Place(width, height int, box string) string {
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
