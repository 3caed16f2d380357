// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk/internal/api"
	"github.com/jeranaias/ragdesk/internal/app"
	"github.com/jeranaias/ragdesk/internal/chat"
	"github.com/jeranaias/ragdesk/internal/config"
	"github.com/jeranaias/ragdesk/internal/documents"
)

// =============================================================================
// LINE READER
// =============================================================================

// LineReader reads REPL input. Prompt returns io.EOF when input ends or the
// user aborts.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(line string)
	Close() error
}

// linerReader provides line editing and input history for the chat REPL.
type linerReader struct {
	line        *liner.State
	historyFile string
}

// NewLinerReader opens a liner session with history persisted in the
// config directory.
func NewLinerReader() (LineReader, error) {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	r := &linerReader{line: line, historyFile: filepath.Join(dir, "chat_history")}

	if f, err := os.Open(r.historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return r, nil
}

func (r *linerReader) Prompt(prompt string) (string, error) {
	s, err := r.line.Prompt(prompt)
	if errors.Is(err, liner.ErrPromptAborted) {
		return "", io.EOF
	}
	return s, err
}

func (r *linerReader) AppendHistory(line string) {
	r.line.AppendHistory(line)
}

// Close saves history (0600) and restores the terminal.
func (r *linerReader) Close() error {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = r.line.WriteHistory(f)
			f.Close()
		}
	}
	return r.line.Close()
}

// plainReader reads lines from the Env input; used when stdin is not a
// terminal.
type plainReader struct {
	env *Env
}

func (r plainReader) Prompt(prompt string) (string, error) {
	if r.env.Interactive {
		return r.env.readLine(prompt)
	}
	return r.env.readLine("")
}

func (plainReader) AppendHistory(string) {}
func (plainReader) Close() error         { return nil }

// =============================================================================
// CHAT REPL
// =============================================================================

// replCommands lists the slash commands for /help.
var replCommands = [][2]string{
	{"/clear", "Clear chat history"},
	{"/history", "Reload and show history"},
	{"/docs", "List documents"},
	{"/upload P", "Upload files matching P"},
	{"/logout", "Log out and leave"},
	{"/quit, /exit", "Leave"},
	{"/help", "Show this list"},
}

// errLeave ends the REPL without an error.
var errLeave = errors.New("leave")

func runChat(ctx context.Context, env *Env, args Args) error {
	if args.JSON {
		return NewUsageError("chat is interactive; use 'ask --json' instead")
	}

	var (
		lr  LineReader
		err error
	)
	if env.NewLineReader != nil && env.Interactive {
		lr, err = env.NewLineReader()
		if err != nil {
			return err
		}
	} else {
		lr = plainReader{env: env}
	}
	defer lr.Close()

	id := env.Ctrl.Session().Identity()
	env.printer.Title(fmt.Sprintf("ragdesk chat: %s @ %s", id.DisplayName(), env.Ctrl.Client().BaseURL()))
	env.printer.Info("%s", env.printer.Dim("Type a question, /help for commands, /quit to leave."))

	for {
		if ctx.Err() != nil {
			return nil
		}
		input, err := lr.Prompt("> ")
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		lr.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			err = replCommand(ctx, env, input)
		} else {
			err = replAsk(ctx, env, input)
		}
		switch {
		case errors.Is(err, errLeave):
			return nil
		case err == nil:
		case api.Classify(err) == api.KindAuth:
			// The controller already ended the session.
			return err
		default:
			env.printer.Error(ErrorMessage(err))
		}
	}
}

// replAsk asks one question and prints the reply.
func replAsk(ctx context.Context, env *Env, question string) error {
	ex, err := env.Ctrl.BeginQuestion(question)
	if err != nil {
		return err
	}
	err = env.Ctrl.RunQuestion(ctx, ex)
	if api.Classify(err) == api.KindAuth {
		return err
	}
	// On failure the reply describes the error.
	if reply, ok := lastMessage(env); ok && reply.ID != ex.UserMessage.ID {
		printMessage(env, reply, false)
		return nil
	}
	return err
}

func replCommand(ctx context.Context, env *Env, input string) error {
	name, rest, _ := strings.Cut(input, " ")
	rest = strings.TrimSpace(rest)

	switch strings.ToLower(name) {
	case "/quit", "/exit", "/q":
		return errLeave

	case "/help", "/?":
		for _, c := range replCommands {
			env.printer.Result(fmt.Sprintf("  %-14s %s", c[0], c[1]))
		}
		return nil

	case "/clear":
		ok, err := RequireConfirmation("clear your chat history", ConfirmationOptions{
			ConfirmFlag: rest == "--confirm" || rest == "-y",
			Interactive: env.Interactive,
		}, env.reader, env.Err)
		if err != nil || !ok {
			return err
		}
		err = env.Ctrl.Dispatch(ctx, app.ClearHistoryRequested{Confirm: func() bool { return true }})
		if err != nil {
			return err
		}
		env.printer.Success(chat.MsgHistoryCleared)
		return nil

	case "/history":
		if err := env.Ctrl.HandleError(env.Ctrl.Chat().LoadHistory(ctx)); err != nil {
			return err
		}
		msgs := env.Ctrl.Chat().Snapshot().Messages
		if len(msgs) == 0 {
			env.printer.Info("No chat history.")
		}
		for _, m := range msgs {
			printMessage(env, m, true)
		}
		return nil

	case "/docs":
		if err := env.Ctrl.HandleError(env.Ctrl.Documents().Refresh(ctx)); err != nil {
			return err
		}
		for _, line := range env.Ctrl.Documents().LinesWidth(env.Width) {
			env.printer.Result(line)
		}
		return nil

	case "/upload":
		if rest == "" {
			return NewUsageError("usage: /upload <file.pdf|dir|glob>...")
		}
		files, err := documents.ExpandPaths(documents.SplitPatterns(rest))
		if err != nil {
			return err
		}
		if err := env.Ctrl.Dispatch(ctx, app.FilesSelected{Files: files}); err != nil {
			return err
		}
		if m, ok := lastMessage(env); ok {
			env.printer.Success("%s", m.Content)
		}
		return nil

	case "/logout":
		if err := env.Ctrl.Dispatch(ctx, app.LogoutRequested{}); err != nil {
			env.Logger.Warn("logout failed", zap.Error(err))
			return err
		}
		env.printer.Success("Logged out.")
		return errLeave

	default:
		return NewUsageError(fmt.Sprintf("unknown command %s (try /help)", name))
	}
}
