// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Theme names accepted by NewTheme.
const (
	ThemeAuto  = "auto"
	ThemeDark  = "dark"
	ThemeLight = "light"
)

// Theme holds the styled components for the application.
type Theme struct {
	// Terminal capabilities
	Name         string
	IsDark       bool
	ColorProfile termenv.Profile

	// Layout dimensions
	Width  int
	Height int

	// ==========================================================================
	// AUTH SCREEN
	// ==========================================================================

	AuthBox       lipgloss.Style
	TabActive     lipgloss.Style
	TabInactive   lipgloss.Style
	FieldLabel    lipgloss.Style
	FieldFocused  lipgloss.Style
	NoticeError   lipgloss.Style
	NoticeSuccess lipgloss.Style

	// ==========================================================================
	// MAIN SCREEN
	// ==========================================================================

	Header      lipgloss.Style
	HeaderBrand lipgloss.Style
	HeaderUser  lipgloss.Style

	Sidebar       lipgloss.Style
	SidebarTitle  lipgloss.Style
	SidebarItem   lipgloss.Style
	SidebarDetail lipgloss.Style
	Placeholder   lipgloss.Style

	UserBlock      lipgloss.Style
	AssistantBlock lipgloss.Style
	SystemBlock    lipgloss.Style
	RoleLabel      lipgloss.Style
	Timestamp      lipgloss.Style
	SourceLabel    lipgloss.Style
	SourcePreview  lipgloss.Style

	InputContainer lipgloss.Style
	InputDisabled  lipgloss.Style

	StatusBar    lipgloss.Style
	ShortcutKey  lipgloss.Style
	ShortcutDesc lipgloss.Style
	Spinner      lipgloss.Style

	Overlay lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
}

// NewTheme creates a theme. name is "dark", "light" or "auto"; anything
// else is treated as "auto".
func NewTheme(name string) *Theme {
	name = strings.ToLower(strings.TrimSpace(name))
	isDark := true
	switch name {
	case ThemeLight:
		isDark = false
	case ThemeDark:
	default:
		name = ThemeAuto
		isDark = termenv.HasDarkBackground()
	}

	t := &Theme{
		Name:         name,
		IsDark:       isDark,
		ColorProfile: termenv.ColorProfile(),
	}
	if name != ThemeAuto {
		lipgloss.SetHasDarkBackground(isDark)
	}
	t.initStyles()
	return t
}

// GlamourStyle returns the glamour standard style matching the theme.
func (t *Theme) GlamourStyle() string {
	if t.IsDark {
		return "dark"
	}
	return "light"
}

func (t *Theme) initStyles() {
	// Auth
	t.AuthBox = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Purple).
		Padding(1, 3)

	t.TabActive = lipgloss.NewStyle().
		Bold(true).
		Foreground(TextInverse).
		Background(Purple).
		Padding(0, 2)

	t.TabInactive = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Padding(0, 2)

	t.FieldLabel = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Width(12)

	t.FieldFocused = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true).
		Width(12)

	t.NoticeError = lipgloss.NewStyle().
		Foreground(Rose).
		Bold(true)

	t.NoticeSuccess = lipgloss.NewStyle().
		Foreground(Emerald).
		Bold(true)

	// Header
	t.Header = lipgloss.NewStyle().
		Background(SurfaceDim).
		Padding(0, 1)

	t.HeaderBrand = lipgloss.NewStyle().
		Bold(true).
		Foreground(Cyan)

	t.HeaderUser = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Italic(true)

	// Sidebar
	t.Sidebar = lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderRight(true).
		BorderForeground(Overlay).
		Padding(0, 1)

	t.SidebarTitle = lipgloss.NewStyle().
		Bold(true).
		Foreground(Purple).
		MarginBottom(1)

	t.SidebarItem = lipgloss.NewStyle().
		Foreground(TextPrimary)

	t.SidebarDetail = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Placeholder = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Messages
	t.UserBlock = lipgloss.NewStyle().
		BorderStyle(lipgloss.ThickBorder()).
		BorderLeft(true).
		BorderForeground(UserBorder).
		PaddingLeft(1)

	t.AssistantBlock = lipgloss.NewStyle().
		BorderStyle(lipgloss.ThickBorder()).
		BorderLeft(true).
		BorderForeground(AssistantBorder).
		PaddingLeft(1)

	t.SystemBlock = lipgloss.NewStyle().
		Foreground(Amber).
		Italic(true).
		PaddingLeft(2)

	t.RoleLabel = lipgloss.NewStyle().
		Bold(true)

	t.Timestamp = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.SourceLabel = lipgloss.NewStyle().
		Foreground(SourceColor)

	t.SourcePreview = lipgloss.NewStyle().
		Foreground(TextMuted).
		Italic(true)

	// Input
	t.InputContainer = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Cyan).
		Padding(0, 1)

	t.InputDisabled = t.InputContainer.
		BorderForeground(OverlayDim).
		Foreground(TextMuted)

	// Status bar
	t.StatusBar = lipgloss.NewStyle().
		Foreground(TextSecondary).
		Background(SurfaceDim).
		Padding(0, 1)

	t.ShortcutKey = lipgloss.NewStyle().
		Foreground(Cyan).
		Bold(true)

	t.ShortcutDesc = lipgloss.NewStyle().
		Foreground(TextMuted)

	t.Spinner = lipgloss.NewStyle().
		Foreground(Purple)

	t.Overlay = lipgloss.NewStyle().
		BorderStyle(lipgloss.DoubleBorder()).
		BorderForeground(Amber).
		Padding(1, 2)

	t.Error = lipgloss.NewStyle().
		Foreground(Rose)

	t.Muted = lipgloss.NewStyle().
		Foreground(TextMuted)
}

// SetSize updates the theme dimensions for responsive layouts.
func (t *Theme) SetSize(width, height int) {
	t.Width = width
	t.Height = height
}

// GetLayoutMode returns the current layout mode based on width.
func (t *Theme) GetLayoutMode() LayoutMode {
	if t.Width < 60 {
		return LayoutNarrow
	}
	if t.Width < 100 {
		return LayoutMedium
	}
	return LayoutWide
}

// SidebarWidth returns the document sidebar width for the current layout.
// Narrow terminals hide the sidebar.
func (t *Theme) SidebarWidth() int {
	switch t.GetLayoutMode() {
	case LayoutNarrow:
		return 0
	case LayoutMedium:
		return 26
	default:
		return 36
	}
}

// LayoutMode represents the current responsive layout mode.
type LayoutMode int

const (
	LayoutNarrow LayoutMode = iota // < 60 columns
	LayoutMedium                   // 60-100 columns
	LayoutWide                     // >= 100 columns
)
