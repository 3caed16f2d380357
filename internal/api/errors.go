// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// =============================================================================
// SENTINELS
// =============================================================================

var (
	// ErrUnauthorized indicates the server rejected the credential (HTTP 401).
	ErrUnauthorized = errors.New("unauthorized")

	// ErrStale indicates a response was discarded because the session that
	// issued the request is no longer current.
	ErrStale = errors.New("stale response discarded")
)

// =============================================================================
// TYPED ERRORS
// =============================================================================

// APIError is a non-2xx response from the backend.
type APIError struct {
	Op     string
	Status int
	Detail string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s: HTTP %d %s", e.Op, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Op, e.Status, e.Detail)
}

// Is lets errors.Is(err, ErrUnauthorized) match a 401 APIError directly.
func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// TransportError means no HTTP response was obtained.
type TransportError struct {
	Op  string
	Err error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying network error.
func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline.
func (e *TransportError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// ValidationError is a client-side rejection of user input.
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// =============================================================================
// CLASSIFICATION
// =============================================================================

// Kind groups errors by how the controllers must react to them.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindRejected
	KindAuth
	KindTransport
	KindStale
	KindInternal
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindValidation:
		return "validation"
	case KindRejected:
		return "rejected"
	case KindAuth:
		return "auth"
	case KindTransport:
		return "transport"
	case KindStale:
		return "stale"
	default:
		return "internal"
	}
}

// Classify maps err to its Kind. Auth is checked before Rejected because a
// 401 is also an APIError.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	var (
		validation *ValidationError
		apiErr     *APIError
		transport  *TransportError
	)
	switch {
	case errors.Is(err, ErrStale):
		return KindStale
	case errors.As(err, &validation):
		return KindValidation
	case errors.Is(err, ErrUnauthorized):
		return KindAuth
	case errors.As(err, &apiErr):
		return KindRejected
	case errors.As(err, &transport):
		return KindTransport
	default:
		return KindInternal
	}
}

// Detail returns the server-provided detail for a rejection, or the error
// text otherwise.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Detail != "" {
			return apiErr.Detail
		}
		return http.StatusText(apiErr.Status)
	}
	var validation *ValidationError
	if errors.As(err, &validation) {
		return validation.Reason
	}
	return err.Error()
}

// Display messages for transport and auth failures.
const (
	MsgTransport      = "Network error: could not reach the server. Please try again."
	MsgSessionExpired = "Session expired. Please log in again."
)

// UserMessage renders err for a notice banner. Rejections show the server
// detail verbatim; transport failures get a generic retry hint.
func UserMessage(err error) string {
	switch Classify(err) {
	case KindNone, KindStale:
		return ""
	case KindTransport:
		return MsgTransport
	case KindAuth:
		if d := Detail(err); d != "" && d != http.StatusText(http.StatusUnauthorized) {
			return d
		}
		return MsgSessionExpired
	default:
		return Detail(err)
	}
}
