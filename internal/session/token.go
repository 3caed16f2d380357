// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiresAt returns the exp claim of a JWT credential. ok is false for
// opaque credentials or tokens without an exp claim. The signature is not
// verified; the server remains the authority.
func ExpiresAt(credential string) (exp time.Time, ok bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(credential, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// IsExpired reports whether credential is a JWT whose exp is at or before now.
func IsExpired(credential string, now time.Time) bool {
	exp, ok := ExpiresAt(credential)
	if !ok {
		return false
	}
	return !now.Before(exp)
}
