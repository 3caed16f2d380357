// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/ragdesk/internal/app"
	"github.com/jeranaias/ragdesk/internal/export"
	"github.com/jeranaias/ragdesk/internal/ui/components"
	"github.com/jeranaias/ragdesk/internal/ui/styles"
)

// mode is the modal state of the main screen.
type mode int

const (
	modeNormal mode = iota
	modeUploadPrompt
	modeConfirmClear
)

// Auth form field indexes. The login tab uses the first two.
const (
	fieldUsername = iota
	fieldPassword
	fieldEmail
	fieldFullName
	fieldCount
)

// Options configures the TUI.
type Options struct {
	// Timeout bounds each network command.
	Timeout time.Duration
	// Theme is "dark", "light" or "auto".
	Theme       string
	ShowSources bool
	// ExportFormat and ExportDir are used by ctrl+e.
	ExportFormat string
	ExportDir    string
	// SkipRestore starts on the auth screen without reading storage.
	SkipRestore bool
}

// Model is the root Bubble Tea model.
type Model struct {
	ctrl  *app.Controller
	opts  Options
	theme *styles.Theme
	keys  KeyMap

	width  int
	height int

	// Auth screen
	fields [fieldCount]textinput.Model
	focus  int

	// Main screen
	input    textinput.Model
	prompt   textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	ticking  bool
	mode     mode

	header  *components.Header
	sidebar *components.Sidebar
	list    *components.MessageList
	status  *components.StatusBar

	// flash is a transient line shown in the status bar.
	flash    string
	flashErr bool

	// inflight counts commands the model is waiting on.
	inflight int
	ready    bool
}

// New creates the root model.
func New(ctrl *app.Controller, opts Options) Model {
	theme := styles.NewTheme(opts.Theme)

	var fields [fieldCount]textinput.Model
	placeholders := [fieldCount]string{"username", "password", "you@example.com", "Full Name"}
	for i := range fields {
		ti := textinput.New()
		ti.Placeholder = placeholders[i]
		ti.CharLimit = 128
		ti.Prompt = ""
		fields[i] = ti
	}
	fields[fieldPassword].EchoMode = textinput.EchoPassword
	fields[fieldPassword].EchoCharacter = '*'
	fields[fieldUsername].Focus()

	input := textinput.New()
	input.Placeholder = "Ask a question about your documents..."
	input.Prompt = "> "
	input.CharLimit = 4000

	prompt := textinput.New()
	prompt.Placeholder = "path/to/file.pdf or ~/docs/*.pdf"
	prompt.Prompt = "Upload: "

	sp := spinner.New()
	sp.Spinner = spinner.Spinner{
		Frames: []string{"|", "/", "-", "\\"},
		FPS:    time.Second / 10,
	}
	sp.Style = theme.Spinner

	md := components.NewMarkdown(theme.GlamourStyle())
	list := components.NewMessageList(theme, md)
	list.ShowSources = opts.ShowSources

	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}

	return Model{
		ctrl:     ctrl,
		opts:     opts,
		theme:    theme,
		keys:     DefaultKeyMap(),
		width:    80,
		height:   24,
		fields:   fields,
		input:    input,
		prompt:   prompt,
		viewport: viewport.New(80, 10),
		spinner:  sp,
		ticking:  !opts.SkipRestore,
		header:   components.NewHeader(theme),
		sidebar:  components.NewSidebar(theme),
		list:     list,
		status:   components.NewStatusBar(theme),
	}
}

// Init restores the session unless disabled.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink}
	if !m.opts.SkipRestore {
		cmds = append(cmds, restoreCmd(m.ctrl, m.opts.Timeout), m.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

// authenticated reports which screen is showing.
func (m Model) authenticated() bool {
	return m.ctrl.Session().IsAuthenticated()
}

// busy reports whether anything is in flight.
func (m Model) busy() bool {
	return m.inflight > 0 || m.ctrl.UI().Loading
}

// activeFields returns the field indexes for the current tab.
func (m Model) activeFields() []int {
	if m.ctrl.UI().Tab == app.TabRegister {
		return []int{fieldUsername, fieldEmail, fieldFullName, fieldPassword}
	}
	return []int{fieldUsername, fieldPassword}
}

// exportOptions builds the export options for ctrl+e.
func (m Model) exportOptions() *export.Options {
	opts := export.DefaultOptions()
	opts.OutputDir = m.opts.ExportDir
	opts.IncludeSources = m.opts.ShowSources
	if !m.theme.IsDark {
		opts.Theme = "light"
	}
	return opts
}
