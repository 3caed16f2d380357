// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"bytes"
	"fmt"
	"html"
	"strings"

	"github.com/alecthomas/chroma/v2"
	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/alecthomas/chroma/v2/lexers"
	chromaStyles "github.com/alecthomas/chroma/v2/styles"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer"
	gmutil "github.com/yuin/goldmark/util"

	"github.com/jeranaias/ragdesk/internal/model"
)

// =============================================================================
// HTML EXPORTER
// =============================================================================

// HTMLExporter exports conversations to a self-contained HTML page. Message
// bodies are treated as markdown; raw HTML inside them is escaped.
type HTMLExporter struct {
	options *Options
	md      goldmark.Markdown
}

// NewHTMLExporter creates a new HTML exporter.
func NewHTMLExporter(opts *Options) *HTMLExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	style := "monokai"
	if opts.Theme == "light" {
		style = "github"
	}
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			renderer.WithNodeRenderers(gmutil.Prioritized(&codeRenderer{style: style}, 100)),
		),
	)
	return &HTMLExporter{options: opts, md: md}
}

// Export converts a conversation to HTML format.
func (e *HTMLExporter) Export(conv *model.Conversation) ([]byte, error) {
	if err := validate(conv); err != nil {
		return nil, err
	}

	var sb strings.Builder
	title := html.EscapeString(conv.GetTitle())

	sb.WriteString("<!DOCTYPE html>\n<html lang=\"en\">\n<head>\n")
	sb.WriteString("    <meta charset=\"UTF-8\">\n")
	sb.WriteString("    <meta name=\"viewport\" content=\"width=device-width, initial-scale=1.0\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", title)
	sb.WriteString("    <meta name=\"generator\" content=\"ragdesk\">\n")
	sb.WriteString(css)
	sb.WriteString("</head>\n")
	fmt.Fprintf(&sb, "<body class=\"%s-theme\">\n<div class=\"container\">\n", themeClass(e.options.Theme))

	if e.options.IncludeMetadata {
		sb.WriteString("<header class=\"header\">\n")
		fmt.Fprintf(&sb, "  <h1>%s</h1>\n  <div class=\"metadata\">\n", title)
		if conv.User != "" {
			fmt.Fprintf(&sb, "    <span><strong>User:</strong> %s</span>\n", html.EscapeString(conv.User))
		}
		if conv.Server != "" {
			fmt.Fprintf(&sb, "    <span><strong>Server:</strong> %s</span>\n", html.EscapeString(conv.Server))
		}
		fmt.Fprintf(&sb, "    <span><strong>Messages:</strong> %d</span>\n", conv.MessageCount())
		fmt.Fprintf(&sb, "    <span><strong>Exported:</strong> %s</span>\n", formatTimestamp(e.options.now()))
		sb.WriteString("  </div>\n</header>\n")
	}

	sb.WriteString("<main class=\"conversation\">\n")
	for i := range conv.Messages {
		if err := e.renderMessage(&sb, &conv.Messages[i]); err != nil {
			return nil, err
		}
	}
	sb.WriteString("</main>\n</div>\n</body>\n</html>\n")

	return []byte(sb.String()), nil
}

func (e *HTMLExporter) renderMessage(sb *strings.Builder, msg *model.Message) error {
	fmt.Fprintf(sb, "<div class=\"message %s-message\">\n", msg.Role)
	sb.WriteString("  <div class=\"message-header\">")
	fmt.Fprintf(sb, "<span class=\"role-label\">%s</span>", html.EscapeString(msg.Role.DisplayName()))
	if ts := formatShortTimestamp(msg.Timestamp); e.options.IncludeTimestamps && ts != "" {
		fmt.Fprintf(sb, "<span class=\"timestamp\">%s</span>", ts)
	}
	sb.WriteString("</div>\n  <div class=\"message-content\">\n")

	var buf bytes.Buffer
	if err := e.md.Convert([]byte(msg.Content), &buf); err != nil {
		return fmt.Errorf("render message %s: %w", msg.ID, err)
	}
	sb.Write(buf.Bytes())
	sb.WriteString("  </div>\n")

	if e.options.IncludeSources && msg.HasSources() {
		sb.WriteString("  <ul class=\"sources\">\n")
		for _, s := range msg.Sources {
			fmt.Fprintf(sb, "    <li><span class=\"source-name\">%s</span> <span class=\"score\">%d%%</span>",
				html.EscapeString(s.Filename), s.Percent())
			if p := strings.TrimSpace(s.ContentPreview); p != "" {
				fmt.Fprintf(sb, "<div class=\"preview\">%s</div>", html.EscapeString(p))
			}
			sb.WriteString("</li>\n")
		}
		sb.WriteString("  </ul>\n")
	}
	sb.WriteString("</div>\n")
	return nil
}

// FileExtension returns the file extension for HTML.
func (e *HTMLExporter) FileExtension() string {
	return ".html"
}

// MimeType returns the MIME type for HTML.
func (e *HTMLExporter) MimeType() string {
	return "text/html"
}

func themeClass(theme string) string {
	if theme == "light" {
		return "light"
	}
	return "dark"
}

// =============================================================================
// CODE HIGHLIGHTING
// =============================================================================

// codeRenderer renders fenced code blocks through chroma with inline styles.
type codeRenderer struct {
	style string
}

// RegisterFuncs implements renderer.NodeRenderer.
func (r *codeRenderer) RegisterFuncs(reg renderer.NodeRendererFuncRegisterer) {
	reg.Register(ast.KindFencedCodeBlock, r.renderFencedCode)
}

func (r *codeRenderer) renderFencedCode(w gmutil.BufWriter, source []byte, node ast.Node, entering bool) (ast.WalkStatus, error) {
	if !entering {
		return ast.WalkContinue, nil
	}
	block := node.(*ast.FencedCodeBlock)

	var code bytes.Buffer
	lines := block.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		code.Write(seg.Value(source))
	}

	lang := string(block.Language(source))
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Analyse(code.String())
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	lexer = chroma.Coalesce(lexer)

	style := chromaStyles.Get(r.style)
	if style == nil {
		style = chromaStyles.Fallback
	}

	iterator, err := lexer.Tokenise(nil, code.String())
	if err != nil {
		// Fall back to an escaped plain block
		_, _ = fmt.Fprintf(w, "<pre><code>%s</code></pre>\n", html.EscapeString(code.String()))
		return ast.WalkSkipChildren, nil
	}
	if err := chromahtml.New(chromahtml.WithClasses(false)).Format(w, style, iterator); err != nil {
		return ast.WalkStop, err
	}
	return ast.WalkSkipChildren, nil
}

const css = `    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        .dark-theme { --bg: #1a1b26; --panel: #24283b; --text: #c0caf5; --muted: #565f89; --border: #414868; --user: #1f2335; --accent: #7aa2f7; --system: #e0af68; }
        .light-theme { --bg: #ffffff; --panel: #f7f8fa; --text: #24292e; --muted: #6a737d; --border: #e1e4e8; --user: #f6f8fa; --accent: #0366d6; --system: #b08800; }
        body { font-family: -apple-system, "Segoe UI", Roboto, sans-serif; line-height: 1.6; color: var(--text); background: var(--bg); padding: 20px; }
        .container { max-width: 900px; margin: 0 auto; background: var(--panel); border-radius: 12px; overflow: hidden; }
        .header { padding: 28px 32px; border-bottom: 2px solid var(--border); }
        .header h1 { font-size: 26px; margin-bottom: 12px; }
        .metadata { display: flex; flex-wrap: wrap; gap: 16px; color: var(--muted); font-size: 14px; }
        .conversation { padding: 24px 32px; }
        .message { margin-bottom: 20px; padding: 16px 20px; border-radius: 8px; border: 1px solid var(--border); }
        .user-message { background: var(--user); border-left: 4px solid var(--accent); }
        .system-message { border-left: 4px solid var(--system); font-style: italic; }
        .message-header { display: flex; justify-content: space-between; margin-bottom: 8px; font-weight: 600; }
        .timestamp { color: var(--muted); font-weight: 400; font-size: 13px; }
        .message-content p { margin-bottom: 10px; }
        .message-content pre { padding: 12px; border-radius: 6px; overflow-x: auto; margin: 10px 0; }
        .sources { margin-top: 12px; padding-left: 18px; font-size: 14px; color: var(--muted); }
        .source-name { font-family: monospace; color: var(--accent); }
        .preview { margin-top: 2px; font-size: 13px; }
    </style>
`
