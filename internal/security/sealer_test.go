// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSealer_RoundTrip(t *testing.T) {
	s, err := LoadOrCreateSealer(t.TempDir(), "")
	require.NoError(t, err)

	sealed, err := s.Seal("eyJhbGciOiJIUzI1NiJ9.payload.sig")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(sealed, SealedPrefix))
	assert.NotContains(t, sealed, "payload")

	opened, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "eyJhbGciOiJIUzI1NiJ9.payload.sig", opened)
}

func TestSealer_NoncesDiffer(t *testing.T) {
	s, err := LoadOrCreateSealer(t.TempDir(), "")
	require.NoError(t, err)

	a, _ := s.Seal("same")
	b, _ := s.Seal("same")
	if a == b {
		t.Error("two seals of the same plaintext should differ")
	}
}

func TestSealer_KeyPersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()

	first, err := LoadOrCreateSealer(dir, "")
	require.NoError(t, err)
	sealed, err := first.Seal("tok1")
	require.NoError(t, err)

	second, err := LoadOrCreateSealer(dir, "")
	require.NoError(t, err)
	opened, err := second.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "tok1", opened)

	info, err := os.Stat(filepath.Join(dir, "sealer.key"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestSealer_PassphraseMismatchFails(t *testing.T) {
	dir := t.TempDir()

	right, err := LoadOrCreateSealer(dir, "correct horse")
	require.NoError(t, err)
	sealed, err := right.Seal("tok1")
	require.NoError(t, err)

	wrong, err := LoadOrCreateSealer(dir, "battery staple")
	require.NoError(t, err)
	_, err = wrong.Open(sealed)
	assert.True(t, errors.Is(err, ErrDecryptionFailed), "got %v", err)
}

func TestSealer_OpenPlaintextPassthrough(t *testing.T) {
	s, err := LoadOrCreateSealer(t.TempDir(), "")
	require.NoError(t, err)

	got, err := s.Open("plain-token")
	require.NoError(t, err)
	assert.Equal(t, "plain-token", got)
}

func TestSealer_OpenMalformed(t *testing.T) {
	s, err := LoadOrCreateSealer(t.TempDir(), "")
	require.NoError(t, err)

	_, err = s.Open(SealedPrefix + "!!!not-base64")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = s.Open(SealedPrefix + "AAAA")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)
}

func TestNewSealer_RejectsShortKey(t *testing.T) {
	_, err := NewSealer([]byte("short"))
	assert.Error(t, err)
}

func TestWipeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"token":"secret"}`), 0o600))

	require.NoError(t, WipeFile(path))
	_, err := os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	// Already gone.
	assert.NoError(t, WipeFile(path))
	assert.Error(t, WipeFile(t.TempDir()))
}
