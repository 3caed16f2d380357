// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ragdesk/internal/app"
	"github.com/jeranaias/ragdesk/internal/ui/components"
	"github.com/jeranaias/ragdesk/internal/ui/styles"
)

// View renders the current screen.
func (m Model) View() string {
	if !m.authenticated() {
		return m.viewAuth()
	}
	return m.viewMain()
}

// =============================================================================
// AUTH SCREEN
// =============================================================================

var fieldLabels = [fieldCount]string{"Username", "Password", "Email", "Full name"}

func (m Model) viewAuth() string {
	ui := m.ctrl.UI()

	tabs := []string{}
	for _, t := range []app.Tab{app.TabLogin, app.TabRegister} {
		label := t.String()
		if t == ui.Tab {
			tabs = append(tabs, m.theme.TabActive.Render(label))
		} else {
			tabs = append(tabs, m.theme.TabInactive.Render(label))
		}
	}

	lines := []string{
		m.theme.HeaderBrand.Render("ragdesk") + m.theme.Muted.Render("  "+m.ctrl.Client().BaseURL()),
		"",
		lipgloss.JoinHorizontal(lipgloss.Top, tabs...),
		"",
	}

	for pos, idx := range m.activeFields() {
		label := m.theme.FieldLabel.Render(fieldLabels[idx])
		if pos == m.focus {
			label = m.theme.FieldFocused.Render(fieldLabels[idx])
		}
		lines = append(lines, label+m.fields[idx].View())
	}

	lines = append(lines, "")
	switch {
	case m.busy():
		lines = append(lines, m.spinner.View()+" "+m.theme.Muted.Render("Please wait..."))
	case ui.AuthMessage != nil:
		lines = append(lines, m.renderNotice(*ui.AuthMessage))
	case m.flash != "":
		lines = append(lines, m.renderFlash())
	default:
		lines = append(lines, "")
	}

	box := m.theme.AuthBox.Render(strings.Join(lines, "\n"))
	m.status.Shortcuts = components.AuthShortcuts
	m.status.Busy = false
	m.status.Status = ""

	if !m.ready {
		return box + "\n" + m.status.View()
	}
	return components.Place(m.width, m.height-1, box) + "\n" + m.status.View()
}

func (m Model) renderNotice(n app.Notice) string {
	if n.Kind == app.NoticeSuccess {
		return m.theme.NoticeSuccess.Render(styles.StatusIndicators.Success + " " + n.Text)
	}
	return m.theme.NoticeError.Render(styles.StatusIndicators.Error + " " + n.Text)
}

// =============================================================================
// MAIN SCREEN
// =============================================================================

func (m Model) viewMain() string {
	snap := m.ctrl.Chat().Snapshot()

	body := m.viewport.View()
	if m.mode == modeConfirmClear {
		dialog := components.NewConfirm(m.theme, "Clear history",
			"Delete all of your chat history on the server?")
		body = components.Place(m.viewport.Width, m.viewport.Height, dialog.View())
	}
	if side := m.sidebar.View(); side != "" {
		body = lipgloss.JoinHorizontal(lipgloss.Top, side, body)
	}

	var input string
	switch {
	case m.mode == modeUploadPrompt:
		input = m.theme.InputContainer.Width(m.width - 2).Render(m.prompt.View())
	case snap.SendDisabled:
		input = m.theme.InputDisabled.Width(m.width - 2).Render("Waiting for the answer...")
	default:
		input = m.theme.InputContainer.Width(m.width - 2).Render(m.input.View())
	}

	m.status.Shortcuts = components.MainShortcuts
	m.status.Busy = m.busy()
	m.status.Spinner = m.spinner.View()
	m.status.Status = m.statusText(snap.Busy())

	return lipgloss.JoinVertical(lipgloss.Left,
		m.header.View(),
		body,
		input,
		m.status.View(),
	)
}

func (m Model) statusText(chatBusy bool) string {
	if m.flash != "" {
		return m.renderFlash()
	}
	if chatBusy {
		return "Thinking..."
	}
	if m.busy() {
		return "Loading..."
	}
	return ""
}

func (m Model) renderFlash() string {
	if m.flashErr {
		return m.theme.Error.Render(m.flash)
	}
	return m.flash
}
