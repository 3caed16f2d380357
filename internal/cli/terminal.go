// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// =============================================================================
// TTY DETECTION
// =============================================================================

const (
	// DefaultTerminalWidth is used when the width cannot be determined.
	DefaultTerminalWidth = 80
	// MinTerminalWidth is the narrowest width output is wrapped to.
	MinTerminalWidth = 40
)

// IsTerminal reports whether f is a terminal.
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// IsTTY returns true if stdin is a terminal.
// Use this to determine if interactive prompts are possible.
func IsTTY() bool {
	return IsTerminal(os.Stdin)
}

// IsStdoutTTY returns true if stdout is a terminal.
func IsStdoutTTY() bool {
	return IsTerminal(os.Stdout)
}

// TerminalWidth returns the width of f, or DefaultTerminalWidth when f is
// not a terminal.
func TerminalWidth(f *os.File) int {
	if !IsTerminal(f) {
		return DefaultTerminalWidth
	}
	w, _, err := term.GetSize(int(f.Fd()))
	if err != nil || w <= 0 {
		return DefaultTerminalWidth
	}
	if w < MinTerminalWidth {
		return MinTerminalWidth
	}
	return w
}

// ColorEnabled reports whether colored output should be written to f.
// NO_COLOR and a non-terminal both disable it.
func ColorEnabled(f *os.File) bool {
	if termenv.EnvNoColor() {
		return false
	}
	return IsTerminal(f)
}

// PasswordReader returns a function that reads a password from f without
// echo, writing the prompt to os.Stderr.
func PasswordReader(f *os.File) func(prompt string) (string, error) {
	return func(prompt string) (string, error) {
		os.Stderr.WriteString(prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		os.Stderr.WriteString("\n")
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
}
