// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"

	"github.com/jeranaias/ragdesk/internal/api"
	"github.com/jeranaias/ragdesk/internal/config"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or input
	ExitUsageError = 2
	// ExitConfigError indicates a configuration file or settings error
	ExitConfigError = 3
	// ExitAuthError indicates a missing, rejected or expired session
	ExitAuthError = 4
	// ExitNetworkError indicates the server could not be reached
	ExitNetworkError = 5
)

// ErrNotLoggedIn is returned by commands that need a session when there is
// none.
var ErrNotLoggedIn = errors.New("not logged in; run 'ragdesk login' first")

// =============================================================================
// ERROR TYPES
// =============================================================================

// UsageError is a malformed command line.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// NewUsageError creates a usage error.
func NewUsageError(msg string) error {
	return &UsageError{Message: msg}
}

// ConfigError wraps a failure to load or validate configuration.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string {
	return "configuration error: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode maps err to a process exit code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var usageErr *UsageError
	if errors.As(err, &usageErr) {
		return ExitUsageError
	}

	var cfgErr *ConfigError
	var cfgInvalid config.ValidateErrors
	if errors.As(err, &cfgErr) || errors.As(err, &cfgInvalid) {
		return ExitConfigError
	}

	if errors.Is(err, ErrNotLoggedIn) {
		return ExitAuthError
	}

	switch api.Classify(err) {
	case api.KindValidation:
		return ExitUsageError
	case api.KindAuth:
		return ExitAuthError
	case api.KindTransport:
		return ExitNetworkError
	}
	return ExitGeneralError
}

// ErrorMessage returns the text shown for err: the user-facing message for
// API errors, the error string otherwise.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	switch api.Classify(err) {
	case api.KindValidation, api.KindRejected, api.KindAuth, api.KindTransport:
		if msg := api.UserMessage(err); msg != "" {
			return msg
		}
	}
	return err.Error()
}
