// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/ragdesk/internal/model"
)

// =============================================================================
// MARKDOWN EXPORTER
// =============================================================================

// MarkdownExporter exports conversations to Markdown format.
type MarkdownExporter struct {
	options *Options
}

// NewMarkdownExporter creates a new Markdown exporter.
func NewMarkdownExporter(opts *Options) *MarkdownExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &MarkdownExporter{options: opts}
}

// Export converts a conversation to Markdown format.
func (e *MarkdownExporter) Export(conv *model.Conversation) ([]byte, error) {
	if err := validate(conv); err != nil {
		return nil, err
	}

	var sb strings.Builder

	if e.options.IncludeMetadata {
		sb.WriteString("---\n")
		fmt.Fprintf(&sb, "title: %s\n", escapeYAML(conv.GetTitle()))
		if conv.User != "" {
			fmt.Fprintf(&sb, "user: %s\n", escapeYAML(conv.User))
		}
		if conv.Server != "" {
			fmt.Fprintf(&sb, "server: %s\n", escapeYAML(conv.Server))
		}
		fmt.Fprintf(&sb, "messages: %d\n", conv.MessageCount())
		fmt.Fprintf(&sb, "exported: %s\n", e.options.now().Format(time.RFC3339))
		sb.WriteString("generator: ragdesk\n")
		sb.WriteString("---\n\n")
	}

	fmt.Fprintf(&sb, "# %s\n\n", escapeMarkdown(conv.GetTitle()))

	if e.options.IncludeMetadata {
		if files := conv.CitedFiles(); len(files) > 0 {
			fmt.Fprintf(&sb, "**Documents cited**: %s\n\n", strings.Join(files, ", "))
		}
		sb.WriteString("---\n\n")
	}

	sb.WriteString(e.renderBody(conv))
	return []byte(sb.String()), nil
}

// renderBody renders only the messages. The HTML exporter reuses it as its
// markdown source.
func (e *MarkdownExporter) renderBody(conv *model.Conversation) string {
	var sb strings.Builder
	for i, msg := range conv.Messages {
		label := msg.Role.DisplayName()
		if ts := formatShortTimestamp(msg.Timestamp); e.options.IncludeTimestamps && ts != "" {
			fmt.Fprintf(&sb, "### %s <sub>%s</sub>\n\n", label, ts)
		} else {
			fmt.Fprintf(&sb, "### %s\n\n", label)
		}

		if msg.Role == model.RoleSystem {
			fmt.Fprintf(&sb, "> %s\n\n", strings.ReplaceAll(msg.Content, "\n", "\n> "))
		} else {
			sb.WriteString(strings.TrimRight(msg.Content, "\n"))
			sb.WriteString("\n\n")
		}

		if e.options.IncludeSources && msg.HasSources() {
			sb.WriteString(formatSources(msg.Sources))
			sb.WriteString("\n")
		}

		if i < len(conv.Messages)-1 {
			sb.WriteString("---\n\n")
		}
	}
	return sb.String()
}

// FileExtension returns the file extension for Markdown.
func (e *MarkdownExporter) FileExtension() string {
	return ".md"
}

// MimeType returns the MIME type for Markdown.
func (e *MarkdownExporter) MimeType() string {
	return "text/markdown"
}

// =============================================================================
// FORMATTING HELPERS
// =============================================================================

func formatSources(sources []model.Source) string {
	var sb strings.Builder
	sb.WriteString("**Sources**\n\n")
	for _, s := range sources {
		fmt.Fprintf(&sb, "- `%s` (%d%%)", s.Filename, s.Percent())
		if preview := strings.TrimSpace(s.ContentPreview); preview != "" {
			fmt.Fprintf(&sb, ": %s", escapeMarkdown(strings.Join(strings.Fields(preview), " ")))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

var markdownEscaper = strings.NewReplacer(
	"\\", "\\\\",
	"*", "\\*",
	"_", "\\_",
	"`", "\\`",
	"[", "\\[",
	"]", "\\]",
	"<", "&lt;",
	">", "&gt;",
	"#", "\\#",
)

// escapeMarkdown escapes inline markdown in plain text such as titles.
func escapeMarkdown(s string) string {
	return markdownEscaper.Replace(s)
}

// escapeYAML quotes a frontmatter value when needed.
func escapeYAML(s string) string {
	if s == "" || strings.ContainsAny(s, ":#'\"{}[]|>&*!%@`,\n") || strings.TrimSpace(s) != s {
		return fmt.Sprintf("%q", s)
	}
	return s
}
