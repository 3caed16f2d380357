// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk/internal/app"
	"github.com/jeranaias/ragdesk/internal/config"
	"github.com/jeranaias/ragdesk/internal/logging"
	"github.com/jeranaias/ragdesk/internal/ui/components"
	"github.com/jeranaias/ragdesk/internal/ui/styles"
)

// Env is everything a command needs from the outside world. main builds it
// from the real terminal; tests build it from buffers.
type Env struct {
	Ctrl   *app.Controller
	Config *config.Config
	Logger *zap.Logger

	In  io.Reader
	Out io.Writer
	Err io.Writer

	// Interactive reports whether prompts can be shown.
	Interactive bool
	// Color enables escape codes in human output.
	Color bool
	// Width is the wrap width for rendered answers.
	Width int

	// ReadPassword reads a secret without echo. When nil, passwords are read
	// as plain lines from In.
	ReadPassword func(prompt string) (string, error)

	// NewLineReader opens the line editor used by the chat REPL. When nil,
	// lines are read from In.
	NewLineReader func() (LineReader, error)

	printer *Printer
	reader  *bufio.Reader
	md      *components.Markdown
}

func (e *Env) init(args Args) {
	if e.Out == nil {
		e.Out = io.Discard
	}
	if e.Err == nil {
		e.Err = io.Discard
	}
	if e.In == nil {
		e.In = strings.NewReader("")
	}
	if e.Width <= 0 {
		e.Width = DefaultTerminalWidth
	}
	if e.Config == nil {
		e.Config = config.Default()
	}
	e.Logger = logging.OrNop(e.Logger)
	e.printer = NewPrinter(e.Out, e.Err, args.Quiet, e.Color && !args.JSON)
	e.reader = bufio.NewReader(e.In)

	style := "notty"
	if e.Color {
		style = styles.NewTheme(e.Config.UI.Theme).GlamourStyle()
	}
	e.md = components.NewMarkdown(style)
}

// readLine prompts on Err and reads one line from In.
func (e *Env) readLine(prompt string) (string, error) {
	if prompt != "" {
		fmt.Fprint(e.Err, prompt)
	}
	line, err := e.reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// readSecret reads a password with ReadPassword when available.
func (e *Env) readSecret(prompt string) (string, error) {
	if e.ReadPassword != nil && e.Interactive {
		return e.ReadPassword(prompt)
	}
	return e.readLine("")
}

// Execute runs cmd. CmdTUI is not handled here. Errors are returned
// unprinted; callers report them with DisplayError and exit with
// GetExitCode.
func Execute(ctx context.Context, cmd Command, args Args, env *Env) error {
	env.init(args)
	env.Logger.Debug("command", zap.String("cmd", cmd.String()))

	if cmd.NeedsSession() && (env.Ctrl == nil || !env.Ctrl.Session().IsAuthenticated()) {
		return ErrNotLoggedIn
	}

	switch cmd {
	case CmdHelp:
		fmt.Fprint(env.Out, Usage())
		return nil
	case CmdVersion:
		return runVersion(env, args)
	case CmdConfig:
		return runConfig(env, args)
	case CmdLogin:
		return runLogin(ctx, env, args)
	case CmdRegister:
		return runRegister(ctx, env, args)
	case CmdLogout:
		return runLogout(ctx, env, args)
	case CmdWhoami:
		return runWhoami(ctx, env, args)
	case CmdAsk:
		return runAsk(ctx, env, args)
	case CmdChat:
		return runChat(ctx, env, args)
	case CmdUpload:
		return runUpload(ctx, env, args)
	case CmdDocs:
		return runDocs(ctx, env, args)
	case CmdHistory:
		return runHistory(ctx, env, args)
	case CmdClear:
		return runClear(ctx, env, args)
	case CmdExport:
		return runExport(ctx, env, args)
	case CmdWatch:
		return runWatch(ctx, env, args)
	case CmdStatus:
		return runStatus(ctx, env, args)
	default:
		return NewUsageError(fmt.Sprintf("%s is not a command-line command", cmd))
	}
}

// writeJSON writes a success envelope.
func writeJSON(env *Env, cmd Command, data any) error {
	return NewJSONResponse(cmd.String(), data).Write(env.Out)
}
