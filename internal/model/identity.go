// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"errors"
	"strings"
)

// ErrInvalidIdentity is returned when an identity record is missing the
// fields needed to show who is logged in.
var ErrInvalidIdentity = errors.New("identity has no username or full name")

// Identity is the user profile returned alongside a credential.
type Identity struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// DisplayName returns the full name, falling back to the username.
func (i Identity) DisplayName() string {
	if name := strings.TrimSpace(i.FullName); name != "" {
		return name
	}
	return i.Username
}

// Validate checks that the identity can be displayed.
func (i Identity) Validate() error {
	if strings.TrimSpace(i.FullName) == "" && strings.TrimSpace(i.Username) == "" {
		return ErrInvalidIdentity
	}
	return nil
}

// Session pairs a credential with the identity it was issued for. The two
// are always set and cleared together; a Session with only one of them is
// never stored or returned.
type Session struct {
	Credential string
	Identity   Identity
}

// Complete reports whether both halves of the session are present.
func (s *Session) Complete() bool {
	return s != nil && s.Credential != "" && s.Identity.Validate() == nil
}
