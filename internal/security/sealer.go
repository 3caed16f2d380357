// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/jeranaias/ragdesk/internal/util"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// SealedPrefix marks a sealed value: "ENC:" + base64(nonce|ciphertext|tag).
const SealedPrefix = "ENC:"

const (
	// KeySize is the AES-256 key size in bytes.
	KeySize = 32

	// SaltSize is the PBKDF2 salt size in bytes.
	SaltSize = 32

	// PBKDF2Iterations follows the OWASP 2023 recommendation for
	// PBKDF2-SHA-256.
	PBKDF2Iterations = 600000
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrInvalidCiphertext indicates the sealed value is malformed.
	ErrInvalidCiphertext = errors.New("invalid ciphertext format")

	// ErrDecryptionFailed indicates a wrong key or tampered data.
	ErrDecryptionFailed = errors.New("decryption failed: authentication tag mismatch")
)

// =============================================================================
// SEALER
// =============================================================================

// Sealer encrypts small secrets (the session credential) with AES-256-GCM.
// It is safe for concurrent use; cipher.AEAD is stateless and each Seal
// draws a fresh random nonce.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer creates a Sealer from a raw 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM cipher: %w", err)
	}
	return &Sealer{aead: gcm}, nil
}

// DeriveKey derives a key from a passphrase with PBKDF2-SHA-256.
func DeriveKey(passphrase string, salt []byte) []byte {
	return pbkdf2.Key([]byte(passphrase), salt, PBKDF2Iterations, KeySize, sha256.New)
}

// LoadOrCreateSealer returns a Sealer whose key material lives in dir.
//
// With a passphrase, the key is derived with PBKDF2 from a persisted random
// salt (sealer.salt). Without one, a random key is generated once and kept
// in sealer.key. Both files are 0600 in a 0700 directory.
func LoadOrCreateSealer(dir, passphrase string) (*Sealer, error) {
	if passphrase != "" {
		salt, err := loadOrCreateRandom(filepath.Join(dir, "sealer.salt"), SaltSize)
		if err != nil {
			return nil, err
		}
		key := DeriveKey(passphrase, salt)
		defer zeroBytes(key)
		return NewSealer(key)
	}

	key, err := loadOrCreateRandom(filepath.Join(dir, "sealer.key"), KeySize)
	if err != nil {
		return nil, err
	}
	defer zeroBytes(key)
	return NewSealer(key)
}

// Seal encrypts plaintext and returns the prefixed base64 form.
func (s *Sealer) Seal(plaintext string) (string, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := s.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return SealedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Open decrypts a value produced by Seal. Values without the prefix are
// returned unchanged, so enabling sealing does not invalidate a session
// stored earlier in plaintext.
func (s *Sealer) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, SealedPrefix))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCiphertext, err)
	}
	ns := s.aead.NonceSize()
	if len(data) < ns {
		return "", ErrInvalidCiphertext
	}
	plaintext, err := s.aead.Open(nil, data[:ns], data[ns:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// IsSealed reports whether value carries the sealed prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}

// =============================================================================
// HELPERS
// =============================================================================

func loadOrCreateRandom(path string, size int) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		if len(data) != size {
			return nil, fmt.Errorf("%s: expected %d bytes, found %d", path, size, len(data))
		}
		return data, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	data = make([]byte, size)
	if _, err := io.ReadFull(rand.Reader, data); err != nil {
		return nil, fmt.Errorf("failed to generate key material: %w", err)
	}
	// RELIABILITY: Atomic write so a crash never leaves a short key file
	if err := util.AtomicWriteFileWithDir(path, data, 0600, 0700); err != nil {
		return nil, fmt.Errorf("failed to save key material: %w", err)
	}
	return data, nil
}

// zeroBytes clears key material once it has been handed to the cipher.
func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
