// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jeranaias/ragdesk/internal/app"
	"github.com/jeranaias/ragdesk/internal/export"
	"github.com/jeranaias/ragdesk/internal/model"
	"github.com/jeranaias/ragdesk/internal/util"
)

// messageJSON is a message as printed in JSON mode.
type messageJSON struct {
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Sources   []model.Source `json:"sources,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

func toMessageJSON(m model.Message) messageJSON {
	out := messageJSON{Role: m.Role.String(), Content: m.Content, Sources: m.Sources}
	if !m.Timestamp.IsZero() {
		out.Timestamp = m.Timestamp.UTC().Format(time.RFC3339)
	}
	return out
}

// printMessage writes m the way the chat view shows it: a role heading,
// the rendered content and the cited sources.
func printMessage(env *Env, m model.Message, heading bool) {
	if heading {
		env.printer.Title(m.Role.DisplayName())
	}
	content := m.Content
	if m.Role == model.RoleAssistant && env.Color {
		content = env.md.Render(content, env.Width)
	}
	env.printer.Result(content)

	if !m.HasSources() || !env.Config.UI.ShowSources {
		return
	}
	env.printer.Result(env.printer.Dim("Sources:"))
	for _, s := range m.Sources {
		env.printer.Result("  - " + s.Label())
		if preview := util.SingleLine(s.ContentPreview); preview != "" && !env.printer.quiet {
			env.printer.Result("    " + env.printer.Dim(util.TruncateWidth(preview, env.Width-4)))
		}
	}
}

// lastMessage returns the newest message, if any.
func lastMessage(env *Env) (model.Message, bool) {
	msgs := env.Ctrl.Chat().Snapshot().Messages
	if len(msgs) == 0 {
		return model.Message{}, false
	}
	return msgs[len(msgs)-1], true
}

// =============================================================================
// ASK
// =============================================================================

func runAsk(ctx context.Context, env *Env, args Args) error {
	p := NewArgParser(args.Raw)
	question := strings.Join(p.PositionalFrom(0), " ")
	if question == "-" || (question == "" && !env.Interactive) {
		var sb strings.Builder
		for {
			line, err := env.readLine("")
			if err != nil {
				break
			}
			sb.WriteString(line)
			sb.WriteString("\n")
		}
		question = sb.String()
	}
	if strings.TrimSpace(question) == "" {
		return NewUsageError(`usage: ragdesk ask "question"`)
	}

	ex, err := env.Ctrl.BeginQuestion(question)
	if err != nil {
		return err
	}
	if err := env.Ctrl.RunQuestion(ctx, ex); err != nil {
		return err
	}

	reply, ok := lastMessage(env)
	if !ok {
		return nil
	}
	if args.JSON {
		return writeJSON(env, CmdAsk, map[string]any{
			"question": ex.Question,
			"answer":   toMessageJSON(reply),
		})
	}
	printMessage(env, reply, false)
	return nil
}

// =============================================================================
// HISTORY / CLEAR
// =============================================================================

func runHistory(ctx context.Context, env *Env, args Args) error {
	p := NewArgParser(args.Raw)
	limit, err := p.FlagIntOrDefault(0, "limit", "n")
	if err != nil {
		return err
	}

	if err := env.Ctrl.HandleError(env.Ctrl.Chat().LoadHistory(ctx)); err != nil {
		return err
	}
	msgs := env.Ctrl.Chat().Snapshot().Messages
	if limit > 0 && len(msgs) > limit*2 {
		msgs = msgs[len(msgs)-limit*2:]
	}

	if args.JSON {
		out := make([]messageJSON, 0, len(msgs))
		for _, m := range msgs {
			out = append(out, toMessageJSON(m))
		}
		return writeJSON(env, CmdHistory, map[string]any{"messages": out})
	}
	if len(msgs) == 0 {
		env.printer.Info("No chat history.")
		return nil
	}
	for i, m := range msgs {
		if i > 0 {
			env.printer.Result("")
		}
		printMessage(env, m, true)
	}
	return nil
}

func runClear(ctx context.Context, env *Env, args Args) error {
	p := NewArgParser(args.Raw, "confirm", "yes", "y")
	ok, err := RequireConfirmation("clear your chat history", ConfirmationOptions{
		ConfirmFlag: p.BoolFlag("confirm", "yes", "y"),
		JSONMode:    args.JSON,
		Interactive: env.Interactive,
	}, env.reader, env.Err)
	if err != nil {
		return err
	}
	if !ok {
		env.printer.Info("Cancelled.")
		return nil
	}

	err = env.Ctrl.Dispatch(ctx, app.ClearHistoryRequested{Confirm: func() bool { return true }})
	if err != nil {
		return err
	}
	if args.JSON {
		return writeJSON(env, CmdClear, map[string]bool{"cleared": true})
	}
	env.printer.Success("Chat history cleared.")
	return nil
}

// =============================================================================
// EXPORT
// =============================================================================

func runExport(ctx context.Context, env *Env, args Args) error {
	p := NewArgParser(args.Raw, "no-sources", "no-timestamps")

	opts := export.DefaultOptions()
	opts.IncludeSources = !p.BoolFlag("no-sources")
	opts.IncludeTimestamps = !p.BoolFlag("no-timestamps")
	if env.Config.UI.Theme == "light" {
		opts.Theme = "light"
	}
	exp, err := export.ForFormat(p.Flag("format", "f"), opts)
	if err != nil {
		return NewUsageError(err.Error())
	}

	if err := env.Ctrl.HandleError(env.Ctrl.Chat().LoadHistory(ctx)); err != nil {
		return err
	}
	conv := env.Ctrl.Transcript()

	output := p.Flag("output", "o")
	if output == "-" {
		return export.Write(env.Out, conv, exp)
	}

	var path string
	if output != "" {
		if info, statErr := os.Stat(output); statErr == nil && info.IsDir() {
			opts.OutputDir = output
			path, err = export.ExportToFile(conv, exp, opts)
		} else {
			path, err = export.ExportToPath(conv, exp, output)
		}
	} else {
		path, err = export.ExportToFile(conv, exp, opts)
	}
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	if args.JSON {
		return writeJSON(env, CmdExport, map[string]any{"path": path, "messages": conv.MessageCount()})
	}
	env.printer.Success("Exported %d messages to %s", conv.MessageCount(), path)
	return nil
}
