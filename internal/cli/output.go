// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
)

// =============================================================================
// JSON OUTPUT
// =============================================================================

// JSONResponse is the envelope every command writes in --json mode.
type JSONResponse struct {
	// Success indicates whether the command completed successfully
	Success bool `json:"success"`

	// Data contains the command-specific response data
	Data interface{} `json:"data"`

	// Error contains the error message if Success is false, null otherwise
	Error *string `json:"error"`

	// Timestamp is the RFC3339 time the response was generated
	Timestamp string `json:"timestamp"`

	// Command is the command that was executed
	Command string `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	msg := ErrorMessage(err)
	return &JSONResponse{
		Success:   false,
		Error:     &msg,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Write writes the response as indented JSON.
func (r *JSONResponse) Write(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// =============================================================================
// PRINTER
// =============================================================================

// Printer writes human-readable command output. In quiet mode only results
// and errors are printed.
type Printer struct {
	out   io.Writer
	err   io.Writer
	quiet bool

	ok    *color.Color
	warn  *color.Color
	fail  *color.Color
	title *color.Color
	dim   *color.Color
}

// NewPrinter creates a printer. colored=false strips all escape codes.
func NewPrinter(out, errw io.Writer, quiet, colored bool) *Printer {
	p := &Printer{
		out:   out,
		err:   errw,
		quiet: quiet,
		ok:    color.New(color.FgGreen),
		warn:  color.New(color.FgYellow),
		fail:  color.New(color.FgRed, color.Bold),
		title: color.New(color.FgCyan, color.Bold),
		dim:   color.New(color.FgHiBlack),
	}
	for _, c := range []*color.Color{p.ok, p.warn, p.fail, p.title, p.dim} {
		if colored {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return p
}

// Success prints "[OK] msg".
func (p *Printer) Success(format string, args ...any) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", p.ok.Sprint("[OK]"), fmt.Sprintf(format, args...))
}

// Info prints a plain line.
func (p *Printer) Info(format string, args ...any) {
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Warn prints "[!] msg" to the error stream.
func (p *Printer) Warn(format string, args ...any) {
	fmt.Fprintf(p.err, "%s %s\n", p.warn.Sprint("[!]"), fmt.Sprintf(format, args...))
}

// Error prints "[X] msg" to the error stream.
func (p *Printer) Error(msg string) {
	fmt.Fprintf(p.err, "%s %s\n", p.fail.Sprint("[X]"), msg)
}

// Title prints a section heading.
func (p *Printer) Title(text string) {
	if p.quiet {
		return
	}
	fmt.Fprintln(p.out, p.title.Sprint(text))
}

// Field prints an aligned "label: value" pair.
func (p *Printer) Field(label, value string) {
	fmt.Fprintf(p.out, "  %-12s %s\n", label+":", value)
}

// Dim returns s in the muted color.
func (p *Printer) Dim(s string) string {
	return p.dim.Sprint(s)
}

// Result prints s regardless of quiet mode.
func (p *Printer) Result(s string) {
	fmt.Fprintln(p.out, s)
}

// =============================================================================
// ERROR DISPLAY
// =============================================================================

// DisplayError reports err for command on w: a JSON error envelope in JSON
// mode, a one-line message otherwise.
func DisplayError(w io.Writer, command string, err error, jsonMode, colored bool) {
	if err == nil {
		return
	}
	if jsonMode {
		_ = NewJSONErrorResponse(command, err).Write(w)
		return
	}
	NewPrinter(w, w, false, colored).Error(ErrorMessage(err))
}
