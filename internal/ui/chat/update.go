// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ragdesk/internal/api"
	"github.com/jeranaias/ragdesk/internal/app"
	chatctl "github.com/jeranaias/ragdesk/internal/chat"
)

const msgBusy = "Please wait for the current request to finish."

// Update handles messages and key presses.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.ready = true
		m.layout()
		m.sync()
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			m.ticking = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case restoredMsg:
		m.done()
		m.sync()
		return m, nil

	case authDoneMsg:
		m.done()
		if msg.err == nil && m.authenticated() {
			for i := range m.fields {
				m.fields[i].Reset()
			}
		} else {
			m.fields[fieldPassword].Reset()
		}
		m.sync()
		return m, nil

	case answerMsg, clearDoneMsg, uploadDoneMsg:
		m.done()
		m.sync()
		return m, nil

	case refreshDoneMsg:
		m.done()
		if msg.err != nil && m.authenticated() {
			m.setFlash("Refresh failed: "+api.UserMessage(msg.err), true)
		}
		m.sync()
		return m, nil

	case logoutDoneMsg:
		m.done()
		if msg.err != nil {
			m.setFlash("Logged out, but stored session could not be removed: "+msg.err.Error(), true)
		}
		m.sync()
		return m, nil

	case exportDoneMsg:
		m.done()
		if msg.err != nil {
			m.setFlash("Export failed: "+msg.err.Error(), true)
		} else {
			m.setFlash("Transcript saved to "+msg.path, false)
		}
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		m.flash = ""
		if !m.authenticated() {
			return m.updateAuth(msg)
		}
		return m.updateMain(msg)
	}
	return m, nil
}

// =============================================================================
// AUTH SCREEN
// =============================================================================

func (m Model) updateAuth(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ui := m.ctrl.UI()
	active := m.activeFields()

	switch {
	case key.Matches(msg, m.keys.NextTab):
		_ = m.ctrl.Dispatch(context.Background(), app.TabSwitched{Tab: ui.Tab.Next()})
		m.ctrl.ClearNotice()
		m.focusField(0)
		return m, nil

	case key.Matches(msg, m.keys.NextFld):
		m.focusField((m.focus + 1) % len(active))
		return m, nil

	case key.Matches(msg, m.keys.PrevFld):
		m.focusField((m.focus + len(active) - 1) % len(active))
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		if m.busy() {
			return m, nil
		}
		if m.focus < len(active)-1 {
			m.focusField(m.focus + 1)
			return m, nil
		}
		cmd := m.start(dispatchCmd(m.ctrl, m.opts.Timeout, m.authIntent(ui.Tab), func(err error) tea.Msg {
			return authDoneMsg{err: err}
		}))
		return m, cmd
	}

	idx := active[m.focus]
	var cmd tea.Cmd
	m.fields[idx], cmd = m.fields[idx].Update(msg)
	return m, cmd
}

// authIntent builds the submit intent for tab from the form.
func (m Model) authIntent(tab app.Tab) app.Intent {
	if tab == app.TabRegister {
		return app.RegisterSubmitted{
			Username: m.fields[fieldUsername].Value(),
			Email:    m.fields[fieldEmail].Value(),
			FullName: m.fields[fieldFullName].Value(),
			Password: m.fields[fieldPassword].Value(),
		}
	}
	return app.LoginSubmitted{
		Username: m.fields[fieldUsername].Value(),
		Password: m.fields[fieldPassword].Value(),
	}
}

// focusField focuses position pos of the active tab's fields.
func (m *Model) focusField(pos int) {
	active := m.activeFields()
	if pos < 0 || pos >= len(active) {
		pos = 0
	}
	m.focus = pos
	for i := range m.fields {
		m.fields[i].Blur()
	}
	m.fields[active[pos]].Focus()
}

// =============================================================================
// MAIN SCREEN
// =============================================================================

func (m Model) updateMain(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case modeConfirmClear:
		switch {
		case key.Matches(msg, m.keys.Confirm):
			m.mode = modeNormal
			confirmed := app.ClearHistoryRequested{Confirm: func() bool { return true }}
			cmd := m.start(dispatchCmd(m.ctrl, m.opts.Timeout, confirmed, func(err error) tea.Msg {
				return clearDoneMsg{err: err}
			}))
			return m, cmd
		case key.Matches(msg, m.keys.Decline):
			m.mode = modeNormal
			m.setFlash("Clear cancelled.", false)
			m.focusInput()
		}
		return m, nil

	case modeUploadPrompt:
		switch {
		case key.Matches(msg, m.keys.Cancel):
			m.mode = modeNormal
			m.prompt.Reset()
			m.focusInput()
			return m, nil
		case key.Matches(msg, m.keys.Submit):
			value := strings.TrimSpace(m.prompt.Value())
			m.mode = modeNormal
			m.prompt.Reset()
			m.focusInput()
			if value == "" {
				return m, nil
			}
			cmd := m.start(uploadCmd(m.ctrl, m.opts.Timeout, value))
			return m, cmd
		}
		var cmd tea.Cmd
		m.prompt, cmd = m.prompt.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Upload):
		m.mode = modeUploadPrompt
		m.input.Blur()
		return m, m.prompt.Focus()

	case key.Matches(msg, m.keys.Clear):
		if m.ctrl.Chat().SendDisabled() {
			return m, nil
		}
		m.mode = modeConfirmClear
		m.input.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		cmd := m.start(dispatchCmd(m.ctrl, m.opts.Timeout, app.RefreshRequested{}, func(err error) tea.Msg {
			return refreshDoneMsg{err: err}
		}))
		return m, cmd

	case key.Matches(msg, m.keys.Logout):
		cmd := m.start(dispatchCmd(m.ctrl, m.opts.Timeout, app.LogoutRequested{}, func(err error) tea.Msg {
			return logoutDoneMsg{err: err}
		}))
		return m, cmd

	case key.Matches(msg, m.keys.Export):
		cmd := m.start(exportCmd(m.ctrl, m.opts.ExportFormat, m.exportOptions()))
		return m, cmd

	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case key.Matches(msg, m.keys.Submit):
		return m.submit()
	}

	if m.ctrl.Chat().SendDisabled() {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit begins an exchange synchronously and issues the network half.
func (m Model) submit() (tea.Model, tea.Cmd) {
	if m.ctrl.Chat().SendDisabled() {
		return m, nil
	}
	ex, err := m.ctrl.BeginQuestion(m.input.Value())
	if err != nil {
		switch {
		case errors.Is(err, chatctl.ErrBusy):
			m.setFlash(msgBusy, true)
		case api.Classify(err) == api.KindValidation:
			m.setFlash(api.UserMessage(err), true)
		}
		return m, nil
	}
	m.input.Reset()
	m.input.Blur()
	m.sync()
	cmd := m.start(answerCmd(m.ctrl, m.opts.Timeout, ex))
	return m, cmd
}

// =============================================================================
// HELPERS
// =============================================================================

// start counts cmd as in flight and makes sure the spinner is running.
func (m *Model) start(cmd tea.Cmd) tea.Cmd {
	m.inflight++
	if m.ticking {
		return cmd
	}
	m.ticking = true
	return tea.Batch(cmd, m.spinner.Tick)
}

// done marks one command finished.
func (m *Model) done() {
	if m.inflight > 0 {
		m.inflight--
	}
}

func (m *Model) setFlash(text string, isErr bool) {
	m.flash = text
	m.flashErr = isErr
}

func (m *Model) focusInput() {
	if !m.ctrl.Chat().SendDisabled() {
		m.input.Focus()
	}
}

// layout sizes the panes for the current window.
func (m *Model) layout() {
	m.theme.SetSize(m.width, m.height)
	sidebarW := m.theme.SidebarWidth()

	// header, input box (3 rows) and status bar
	bodyH := m.height - 1 - 3 - 1
	if bodyH < 3 {
		bodyH = 3
	}
	chatW := m.width - sidebarW
	if chatW < 20 {
		chatW = 20
	}

	m.header.SetWidth(m.width)
	m.status.SetWidth(m.width)
	m.sidebar.SetSize(sidebarW, bodyH)
	m.viewport.Width = chatW
	m.viewport.Height = bodyH
	m.list.Width = chatW - 1
	m.input.Width = m.width - 6
	m.prompt.Width = m.width - 14
}

// sync copies controller state into the view components.
func (m *Model) sync() {
	if id := m.ctrl.Session().Identity(); id != nil {
		m.header.User = id.DisplayName()
	} else {
		m.header.User = ""
	}
	m.header.Server = m.ctrl.Client().BaseURL()
	m.sidebar.Documents = m.ctrl.Documents().Documents()

	snap := m.ctrl.Chat().Snapshot()
	m.viewport.SetContent(m.list.View(snap.Messages))
	m.viewport.GotoBottom()

	if !m.authenticated() {
		m.mode = modeNormal
		m.input.Blur()
		if !m.anyFieldFocused() {
			m.focusField(0)
		}
		return
	}
	for i := range m.fields {
		m.fields[i].Blur()
	}
	if m.mode == modeNormal {
		if snap.SendDisabled {
			m.input.Blur()
		} else {
			m.input.Focus()
		}
	}
}

func (m Model) anyFieldFocused() bool {
	for _, f := range m.fields {
		if f.Focused() {
			return true
		}
	}
	return false
}
