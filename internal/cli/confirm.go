// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// =============================================================================
// CONFIRMATION
// =============================================================================

// ConfirmationOptions controls RequireConfirmation.
type ConfirmationOptions struct {
	// ConfirmFlag indicates --confirm was passed (skip the prompt).
	ConfirmFlag bool
	// JSONMode indicates --json; destructive actions then need ConfirmFlag.
	JSONMode bool
	// Interactive indicates stdin is a terminal.
	Interactive bool
}

// RequireConfirmation checks that the user confirmed a destructive action.
//
// Confirmation flow:
//  1. --confirm proceeds immediately
//  2. JSON mode without --confirm is a usage error
//  3. A non-interactive stdin without --confirm is a usage error
//  4. Otherwise the user is asked "[y/N]" on out and the answer read from in
func RequireConfirmation(action string, opts ConfirmationOptions, in *bufio.Reader, out io.Writer) (bool, error) {
	if opts.ConfirmFlag {
		return true, nil
	}
	if opts.JSONMode {
		return false, NewUsageError(fmt.Sprintf("%s requires --confirm in JSON mode", action))
	}
	if !opts.Interactive {
		return false, NewUsageError(fmt.Sprintf("%s requires --confirm when not running interactively", action))
	}

	fmt.Fprintf(out, "Are you sure you want to %s? [y/N]: ", action)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}
