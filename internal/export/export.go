// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/ragdesk/internal/model"
	"github.com/jeranaias/ragdesk/internal/util"
)

// ErrEmptyConversation is returned when there is nothing to export.
var ErrEmptyConversation = errors.New("conversation has no messages")

// =============================================================================
// EXPORT INTERFACE
// =============================================================================

// Exporter converts a conversation into one output format.
type Exporter interface {
	// Export converts a conversation to the target format and returns the content.
	Export(conv *model.Conversation) ([]byte, error)

	// FileExtension returns the file extension, dot included.
	FileExtension() string

	// MimeType returns the MIME type for the exported format.
	MimeType() string
}

// =============================================================================
// EXPORT OPTIONS
// =============================================================================

// Options configures export behavior.
type Options struct {
	// OutputDir is the directory where files will be saved.
	OutputDir string

	// IncludeMetadata adds a header with user, server, and counts.
	IncludeMetadata bool

	// IncludeTimestamps adds per-message timestamps.
	IncludeTimestamps bool

	// IncludeSources lists citations under assistant answers.
	IncludeSources bool

	// Theme for HTML export ("light" or "dark").
	Theme string

	// Now is used for the export timestamp; defaults to time.Now.
	Now func() time.Time
}

// DefaultOptions returns default export options.
func DefaultOptions() *Options {
	return &Options{
		OutputDir:         ".",
		IncludeMetadata:   true,
		IncludeTimestamps: true,
		IncludeSources:    true,
		Theme:             "dark",
	}
}

func (o *Options) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// Formats lists the names accepted by ForFormat.
var Formats = []string{"markdown", "json", "yaml", "html"}

// ForFormat returns the exporter for name. "md" and "yml" are accepted as
// aliases.
func ForFormat(name string, opts *Options) (Exporter, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "markdown", "md", "":
		return NewMarkdownExporter(opts), nil
	case "json":
		return NewJSONExporter(opts), nil
	case "yaml", "yml":
		return NewYAMLExporter(opts), nil
	case "html", "htm":
		return NewHTMLExporter(opts), nil
	default:
		return nil, fmt.Errorf("unknown export format %q (want one of %s)", name, strings.Join(Formats, ", "))
	}
}

// =============================================================================
// EXPORT FUNCTIONS
// =============================================================================

// ExportToFile exports conv into opts.OutputDir under a generated name and
// returns the path written.
func ExportToFile(conv *model.Conversation, exporter Exporter, opts *Options) (string, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	filename := fmt.Sprintf("transcript_%s_%s%s",
		sanitizeFilename(titleOf(conv)),
		opts.now().Format("20060102_150405"),
		exporter.FileExtension(),
	)
	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	return ExportToPath(conv, exporter, filepath.Join(dir, filename))
}

// ExportToPath exports conv to exactly path.
func ExportToPath(conv *model.Conversation, exporter Exporter, path string) (string, error) {
	content, err := exporter.Export(conv)
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}
	if err := util.AtomicWriteFileWithDir(path, content, 0644, 0755); err != nil {
		return "", fmt.Errorf("write file: %w", err)
	}
	return path, nil
}

// Write exports conv to w.
func Write(w io.Writer, conv *model.Conversation, exporter Exporter) error {
	content, err := exporter.Export(conv)
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}
	_, err = w.Write(content)
	return err
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func validate(conv *model.Conversation) error {
	if conv == nil {
		return errors.New("conversation is nil")
	}
	if len(conv.Messages) == 0 {
		return ErrEmptyConversation
	}
	return nil
}

func titleOf(conv *model.Conversation) string {
	if conv == nil {
		return ""
	}
	return conv.GetTitle()
}

// sanitizeFilename removes or replaces characters that are invalid in filenames.
func sanitizeFilename(s string) string {
	s = util.TruncateRunes(strings.TrimSpace(s), 40)

	var b strings.Builder
	for _, r := range s {
		switch {
		case strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('-')
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			b.WriteRune('_')
		case r < 32 || r == 127:
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "transcript"
	}
	return b.String()
}

// formatTimestamp formats a timestamp for display.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// formatShortTimestamp formats a timestamp for inline display.
func formatShortTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format("15:04:05")
}
