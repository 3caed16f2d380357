// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

// restoredMsg reports the startup session restore.
type restoredMsg struct {
	ok bool
}

// authDoneMsg reports a login or register attempt.
type authDoneMsg struct {
	err error
}

// answerMsg reports the end of an exchange.
type answerMsg struct {
	err error
}

// uploadDoneMsg reports an upload batch.
type uploadDoneMsg struct {
	err error
}

// clearDoneMsg reports a history clear.
type clearDoneMsg struct {
	err error
}

// refreshDoneMsg reports a document and history refresh.
type refreshDoneMsg struct {
	err error
}

// logoutDoneMsg reports a logout.
type logoutDoneMsg struct {
	err error
}

// exportDoneMsg reports a transcript export.
type exportDoneMsg struct {
	path string
	err  error
}
