// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package components

import (
	"fmt"
	"strings"

	"github.com/jeranaias/ragdesk/internal/documents"
	"github.com/jeranaias/ragdesk/internal/model"
	"github.com/jeranaias/ragdesk/internal/ui/styles"
	"github.com/jeranaias/ragdesk/internal/util"
)

// Sidebar lists the uploaded documents.
type Sidebar struct {
	Documents []model.DocumentRecord
	Width     int
	Height    int
	theme     *styles.Theme
}

// NewSidebar creates an empty sidebar.
func NewSidebar(theme *styles.Theme) *Sidebar {
	return &Sidebar{theme: theme}
}

// SetSize updates the sidebar dimensions. A zero width hides it.
func (s *Sidebar) SetSize(width, height int) {
	s.Width = width
	s.Height = height
}

// View renders the list, or the placeholder when there are no documents.
func (s *Sidebar) View() string {
	if s.Width <= 0 {
		return ""
	}
	inner := s.Width - 3 // border plus padding
	if inner < 4 {
		inner = 4
	}

	var b strings.Builder
	b.WriteString(s.theme.SidebarTitle.Render(util.TruncateWidth("Documents", inner)))
	b.WriteString("\n")

	if len(s.Documents) == 0 {
		b.WriteString(s.theme.Placeholder.Render(util.TruncateWidth(documents.EmptyPlaceholder, inner)))
	} else {
		budget := s.Height - 2
		for i, d := range s.Documents {
			if budget > 0 && (i+1)*2 > budget {
				b.WriteString(s.theme.Muted.Render(util.TruncateWidth(
					fmt.Sprintf("+%d more", len(s.Documents)-i), inner)))
				break
			}
			b.WriteString(s.theme.SidebarItem.Render(util.TruncateWidth(d.Filename, inner)))
			b.WriteString("\n")
			detail := documents.Chunks(d.ChunkCount)
			if ts := d.ProcessedAt.Display(); ts != "" {
				detail += " - " + ts
			}
			b.WriteString(s.theme.SidebarDetail.Render(util.TruncateWidth(detail, inner)))
			b.WriteString("\n")
		}
	}

	st := s.theme.Sidebar.Width(s.Width - 1)
	if s.Height > 0 {
		st = st.Height(s.Height)
	}
	return st.Render(strings.TrimRight(b.String(), "\n"))
}
