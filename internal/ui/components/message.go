// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/ragdesk/internal/model"
	"github.com/jeranaias/ragdesk/internal/ui/styles"
	"github.com/jeranaias/ragdesk/internal/util"
)

// previewWidth caps a source preview line.
const previewWidth = 120

// MessageList renders the conversation for the chat viewport.
type MessageList struct {
	Width       int
	ShowSources bool
	theme       *styles.Theme
	md          *Markdown
}

// NewMessageList creates a list renderer. md may be nil, in which case
// assistant text is shown as-is.
func NewMessageList(theme *styles.Theme, md *Markdown) *MessageList {
	return &MessageList{
		Width:       80,
		ShowSources: true,
		theme:       theme,
		md:          md,
	}
}

// View renders msgs separated by blank lines.
func (l *MessageList) View(msgs []model.Message) string {
	blocks := make([]string, 0, len(msgs))
	for _, m := range msgs {
		blocks = append(blocks, l.Render(m))
	}
	return strings.Join(blocks, "\n\n")
}

// Render renders one message.
func (l *MessageList) Render(m model.Message) string {
	width := l.Width
	if width < 20 {
		width = 20
	}
	// Left border plus padding.
	inner := width - 2

	switch m.Role {
	case model.RoleSystem:
		return l.theme.SystemBlock.Width(width).Render(styles.StatusIndicators.Info + " " + m.Content)

	case model.RoleUser:
		head := l.heading(m, styles.Cyan)
		body := lipgloss.NewStyle().Width(inner).Render(m.Content)
		return l.theme.UserBlock.Render(head + "\n" + body)

	default:
		head := l.heading(m, styles.Purple)
		body := m.Content
		if l.md != nil {
			body = l.md.Render(m.Content, inner)
		} else {
			body = lipgloss.NewStyle().Width(inner).Render(body)
		}
		if l.ShowSources && m.HasSources() {
			body += "\n" + l.sources(m.Sources, inner)
		}
		return l.theme.AssistantBlock.Render(head + "\n" + body)
	}
}

func (l *MessageList) heading(m model.Message, color lipgloss.AdaptiveColor) string {
	head := l.theme.RoleLabel.Foreground(color).Render(m.Role.DisplayName())
	if !m.Timestamp.IsZero() {
		head += " " + l.theme.Timestamp.Render(m.Timestamp.Local().Format("15:04"))
	}
	return head
}

// sources renders the citation list: "filename (87%)" then an indented
// preview line.
func (l *MessageList) sources(srcs []model.Source, width int) string {
	var b strings.Builder
	b.WriteString(l.theme.Muted.Render("Sources:"))
	pw := width - 4
	if pw > previewWidth {
		pw = previewWidth
	}
	for _, s := range srcs {
		b.WriteString("\n")
		b.WriteString(l.theme.SourceLabel.Render(util.TruncateWidth("- "+s.Label(), width)))
		if p := util.SingleLine(s.ContentPreview); p != "" {
			b.WriteString("\n    ")
			b.WriteString(l.theme.SourcePreview.Render(util.TruncateWidth(p, pw)))
		}
	}
	return b.String()
}
