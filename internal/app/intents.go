// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package app

import "github.com/jeranaias/ragdesk/internal/api"

// Intent is a user action. The concrete types below are the full set.
type Intent interface {
	intentName() string
}

// Tab selects the form shown on the auth screen.
type Tab int

const (
	TabLogin Tab = iota
	TabRegister
)

// String returns the tab label.
func (t Tab) String() string {
	if t == TabRegister {
		return "Register"
	}
	return "Login"
}

// Next returns the other tab.
func (t Tab) Next() Tab {
	if t == TabLogin {
		return TabRegister
	}
	return TabLogin
}

// LoginSubmitted is the login form.
type LoginSubmitted struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// RegisterSubmitted is the registration form.
type RegisterSubmitted struct {
	Username string `validate:"required,min=3,max=50"`
	Email    string `validate:"required,email"`
	FullName string `validate:"required,max=100"`
	Password string `validate:"required,min=6"`
}

// LogoutRequested ends the session.
type LogoutRequested struct{}

// QuestionSubmitted asks a question.
type QuestionSubmitted struct {
	Text string
}

// FilesSelected uploads files. Non-PDFs are dropped before sending.
type FilesSelected struct {
	Files []api.UploadFile
}

// ClearHistoryRequested clears the server-side history once Confirm
// returns true.
type ClearHistoryRequested struct {
	Confirm func() bool
}

// TabSwitched changes the auth form.
type TabSwitched struct {
	Tab Tab
}

// RefreshRequested reloads documents and history.
type RefreshRequested struct{}

func (LoginSubmitted) intentName() string        { return "login" }
func (RegisterSubmitted) intentName() string     { return "register" }
func (LogoutRequested) intentName() string       { return "logout" }
func (QuestionSubmitted) intentName() string     { return "question" }
func (FilesSelected) intentName() string         { return "upload" }
func (ClearHistoryRequested) intentName() string { return "clear_history" }
func (TabSwitched) intentName() string           { return "tab" }
func (RefreshRequested) intentName() string      { return "refresh" }
