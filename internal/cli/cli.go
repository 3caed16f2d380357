// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdLogin
	CmdRegister
	CmdLogout
	CmdWhoami
	CmdAsk
	CmdChat
	CmdUpload
	CmdDocs
	CmdHistory
	CmdClear
	CmdExport
	CmdWatch
	CmdStatus
	CmdConfig
	CmdVersion
	CmdHelp
)

var commandNames = map[Command]string{
	CmdTUI:      "tui",
	CmdLogin:    "login",
	CmdRegister: "register",
	CmdLogout:   "logout",
	CmdWhoami:   "whoami",
	CmdAsk:      "ask",
	CmdChat:     "chat",
	CmdUpload:   "upload",
	CmdDocs:     "docs",
	CmdHistory:  "history",
	CmdClear:    "clear",
	CmdExport:   "export",
	CmdWatch:    "watch",
	CmdStatus:   "status",
	CmdConfig:   "config",
	CmdVersion:  "version",
	CmdHelp:     "help",
}

// String returns the command word.
func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// NeedsSession reports whether the command requires a logged-in user.
func (c Command) NeedsSession() bool {
	switch c {
	case CmdWhoami, CmdAsk, CmdChat, CmdUpload, CmdDocs, CmdHistory, CmdClear, CmdExport, CmdWatch:
		return true
	}
	return false
}

// Offline reports whether the command runs without a controller.
func (c Command) Offline() bool {
	return c == CmdVersion || c == CmdHelp || c == CmdConfig
}

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	Server    string
	JSON      bool
	Quiet     bool
	Verbose   bool
	Ephemeral bool

	// Subcommand is the first positional argument after the command.
	Subcommand string

	// Raw holds the arguments after the command word, global flags removed.
	Raw []string
}

const usageText = `ragdesk - chat with your documents

Usage:
  ragdesk                          Start the TUI (default)
  ragdesk login [username]         Log in (password is read without echo)
    --password-stdin               Read the password from stdin
  ragdesk register                 Create an account
    --username --email --full-name Fields; prompted for when missing
  ragdesk logout                   Log out and forget the stored session
  ragdesk whoami [--remote]        Show the signed-in user
  ragdesk ask "question"           Ask one question (- reads stdin)
  ragdesk chat                     Interactive chat
  ragdesk upload <files...>        Upload PDF files (globs and directories allowed)
  ragdesk docs                     List uploaded documents
  ragdesk history [--limit N]      Show chat history
  ragdesk clear [--confirm]        Delete chat history on the server
  ragdesk export                   Save the chat history as a transcript
    --format md|json|yaml|html     Transcript format (default: md)
    --output PATH                  Output file or directory, or - for stdout
    --no-sources, --no-timestamps  Leave out citations or times
  ragdesk watch <dir> [--existing] Upload PDFs dropped into a directory
  ragdesk status                   Server health and session info
  ragdesk config [show|path|init] Show configuration or write config.toml
  ragdesk version                  Show version
  ragdesk help                     Show this help

Chat commands:
  /clear      Clear chat history
  /history    Reload and show history
  /docs       List documents
  /upload P   Upload files matching P
  /logout     Log out and leave
  /quit       Leave

Global flags:
  --server URL    Backend URL (overrides config and RAGDESK_SERVER_URL)
  --json          Machine-readable output
  -q, --quiet     Only print results
  -v, --verbose   Log to stderr as well as the log file
  --ephemeral     Keep the session in memory only

Exit codes:
  0 success, 1 error, 2 usage, 3 config, 4 auth, 5 network
`

// Usage returns the help text.
func Usage() string {
	return usageText
}

// VersionString returns the one-line version.
func VersionString() string {
	return fmt.Sprintf("ragdesk %s (%s, built %s, %s/%s)",
		Version, GitCommit, BuildDate, runtime.GOOS, runtime.GOARCH)
}

var commandAliases = map[string]Command{
	"tui":       CmdTUI,
	"login":     CmdLogin,
	"register":  CmdRegister,
	"signup":    CmdRegister,
	"logout":    CmdLogout,
	"whoami":    CmdWhoami,
	"ask":       CmdAsk,
	"chat":      CmdChat,
	"upload":    CmdUpload,
	"docs":      CmdDocs,
	"documents": CmdDocs,
	"history":   CmdHistory,
	"clear":     CmdClear,
	"export":    CmdExport,
	"watch":     CmdWatch,
	"status":    CmdStatus,
	"s":         CmdStatus,
	"config":    CmdConfig,
	"version":   CmdVersion,
	"--version": CmdVersion,
	"help":      CmdHelp,
	"-h":        CmdHelp,
	"--help":    CmdHelp,
}

// Parse parses argv (without the program name).
func Parse(argv []string) (Command, Args, error) {
	remaining, args, err := parseGlobalFlags(argv)
	if err != nil {
		return CmdHelp, args, err
	}
	if len(remaining) == 0 {
		return CmdTUI, args, nil
	}

	word := remaining[0]
	cmd, ok := commandAliases[strings.ToLower(word)]
	if !ok {
		return CmdHelp, args, NewUsageError(fmt.Sprintf("unknown command %q", word))
	}
	args.Raw = remaining[1:]
	for _, a := range args.Raw {
		if !strings.HasPrefix(a, "-") {
			args.Subcommand = a
			break
		}
	}
	return cmd, args, nil
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(argv []string) ([]string, Args, error) {
	var (
		remaining []string
		args      Args
	)

	for i := 0; i < len(argv); i++ {
		arg := argv[i]
		switch arg {
		case "-q", "--quiet":
			args.Quiet = true
		case "-v", "--verbose":
			args.Verbose = true
		case "--json":
			args.JSON = true
		case "--ephemeral":
			args.Ephemeral = true
		case "--server":
			if i+1 >= len(argv) {
				return nil, args, NewUsageError("--server requires a URL")
			}
			i++
			args.Server = argv[i]
		case "--":
			remaining = append(remaining, argv[i+1:]...)
			return remaining, args, nil
		default:
			if strings.HasPrefix(arg, "--server=") {
				args.Server = strings.TrimPrefix(arg, "--server=")
			} else {
				remaining = append(remaining, arg)
			}
		}
	}
	return remaining, args, nil
}
