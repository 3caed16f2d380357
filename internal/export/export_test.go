// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jeranaias/ragdesk/internal/model"
)

func sampleConversation() *model.Conversation {
	ts := time.Date(2025, 2, 3, 10, 30, 0, 0, time.UTC)
	q := model.NewUserMessage("What does *a.pdf* say about Go?")
	q.Timestamp = ts
	a := model.NewAssistantMessage("It shows:\n\n```go\nfunc main() {}\n```\n\n<script>alert(1)</script>", []model.Source{
		{Filename: "a.pdf", Similarity: 0.87, ContentPreview: "func main\nis the entry point"},
	})
	a.Timestamp = ts
	sys := model.NewSystemMessage("Uploaded 1 document(s).")
	sys.Timestamp = ts

	conv := model.NewConversation("c1", []model.Message{q, a, sys})
	conv.User = "Ada"
	conv.Server = "http://localhost:8000"
	return conv
}

func fixedOptions() *Options {
	opts := DefaultOptions()
	opts.Now = func() time.Time { return time.Date(2025, 2, 3, 11, 0, 0, 0, time.UTC) }
	return opts
}

func TestForFormat(t *testing.T) {
	for name, ext := range map[string]string{
		"markdown": ".md", "md": ".md", "json": ".json", "yaml": ".yaml", "yml": ".yaml", "html": ".html",
	} {
		exp, err := ForFormat(name, nil)
		require.NoError(t, err, name)
		assert.Equal(t, ext, exp.FileExtension(), name)
	}

	_, err := ForFormat("pdf", nil)
	assert.Error(t, err)
}

func TestMarkdownExport(t *testing.T) {
	out, err := NewMarkdownExporter(fixedOptions()).Export(sampleConversation())
	require.NoError(t, err)
	md := string(out)

	assert.True(t, strings.HasPrefix(md, "---\n"))
	assert.Contains(t, md, "user: Ada")
	assert.Contains(t, md, "### You")
	assert.Contains(t, md, "```go\nfunc main() {}\n```")
	assert.Contains(t, md, "- `a.pdf` (87%): func main is the entry point")
	assert.Contains(t, md, "> Uploaded 1 document(s).")
	assert.Contains(t, md, "**Documents cited**: a.pdf")
}

func TestMarkdownExport_NoSourcesOption(t *testing.T) {
	opts := fixedOptions()
	opts.IncludeSources = false
	opts.IncludeMetadata = false

	out, err := NewMarkdownExporter(opts).Export(sampleConversation())
	require.NoError(t, err)
	assert.NotContains(t, string(out), "**Sources**")
	assert.False(t, strings.HasPrefix(string(out), "---"))
}

func TestJSONExport(t *testing.T) {
	out, err := NewJSONExporter(nil).Export(sampleConversation())
	require.NoError(t, err)

	var decoded model.Conversation
	require.NoError(t, json.Unmarshal(out, &decoded))
	assert.Equal(t, "Ada", decoded.User)
	require.Len(t, decoded.Messages, 3)
	assert.Equal(t, model.RoleAssistant, decoded.Messages[1].Role)
	assert.Equal(t, "a.pdf", decoded.Messages[1].Sources[0].Filename)
}

func TestYAMLExport(t *testing.T) {
	out, err := NewYAMLExporter(nil).Export(sampleConversation())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	assert.Equal(t, "Ada", decoded["user"])
	msgs, ok := decoded["messages"].([]any)
	require.True(t, ok)
	assert.Len(t, msgs, 3)
}

func TestHTMLExport(t *testing.T) {
	out, err := NewHTMLExporter(fixedOptions()).Export(sampleConversation())
	require.NoError(t, err)
	page := string(out)

	assert.Contains(t, page, "<!DOCTYPE html>")
	assert.Contains(t, page, "<em>a.pdf</em>")
	assert.Contains(t, page, "user-message")
	assert.Contains(t, page, "system-message")
	assert.Contains(t, page, "<span class=\"source-name\">a.pdf</span> <span class=\"score\">87%</span>")
	assert.NotContains(t, page, "<script>alert(1)</script>", "raw HTML in answers is not emitted")
	// chroma emits inline-styled spans for the keyword
	assert.Contains(t, page, "func</span>")
}

func TestExportEmptyConversation(t *testing.T) {
	conv := model.NewConversation("empty", nil)
	for _, name := range []string{"markdown", "html"} {
		exp, err := ForFormat(name, nil)
		require.NoError(t, err)
		_, err = exp.Export(conv)
		assert.ErrorIs(t, err, ErrEmptyConversation, name)
	}
}

func TestExportToFile(t *testing.T) {
	opts := fixedOptions()
	opts.OutputDir = filepath.Join(t.TempDir(), "out")

	path, err := ExportToFile(sampleConversation(), NewMarkdownExporter(opts), opts)
	require.NoError(t, err)
	assert.Equal(t, ".md", filepath.Ext(path))
	assert.True(t, strings.HasPrefix(filepath.Base(path), "transcript_"))
	assert.Contains(t, filepath.Base(path), "20250203_110000")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "### Assistant")
}

func TestExportToPathAndWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.json")
	_, err := ExportToPath(sampleConversation(), NewJSONExporter(nil), path)
	require.NoError(t, err)
	assert.FileExists(t, path)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, sampleConversation(), NewYAMLExporter(nil)))
	assert.Contains(t, buf.String(), "messages:")
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "what_is_a-b-", sanitizeFilename("what is a/b?"))
	assert.Equal(t, "transcript", sanitizeFilename(""))
	assert.LessOrEqual(t, len([]rune(sanitizeFilename(strings.Repeat("x", 100)))), 40)
}
