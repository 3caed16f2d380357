// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk/internal/logging"
	"github.com/jeranaias/ragdesk/internal/model"
	"github.com/jeranaias/ragdesk/internal/security"
)

// Storage keys for the two session entries.
const (
	KeyCredential = "token"
	KeyIdentity   = "user"
)

// ErrIncompleteSession is returned by Save for a session missing either the
// credential or a displayable identity.
var ErrIncompleteSession = errors.New("session must carry both a credential and an identity")

// =============================================================================
// BACKEND INTERFACE
// =============================================================================

// Backend is durable key/value storage for the session entries.
//
// PutAll must apply every entry or none of them. Get returns only the keys
// that exist; a missing key is not an error.
type Backend interface {
	Get(keys ...string) (map[string]string, error)
	PutAll(entries map[string]string) error
	Delete(keys ...string) error
	Close() error
}

// OpenBackend opens the backend named by kind ("file", "sqlite", "memory").
func OpenBackend(kind, path string) (Backend, error) {
	switch kind {
	case "file", "":
		return NewFileBackend(path), nil
	case "sqlite":
		return OpenSQLiteBackend(path)
	case "memory":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", kind)
	}
}

// =============================================================================
// STORE
// =============================================================================

// Store maps a model.Session onto a Backend.
type Store struct {
	backend        Backend
	sealer         *security.Sealer
	discardExpired bool
	now            func() time.Time
	logger         *zap.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithSealer encrypts the credential at rest.
func WithSealer(s *security.Sealer) StoreOption {
	return func(st *Store) { st.sealer = s }
}

// WithExpiryCheck makes Restore drop JWT credentials whose exp has passed.
func WithExpiryCheck(enabled bool) StoreOption {
	return func(st *Store) { st.discardExpired = enabled }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) StoreOption {
	return func(st *Store) { st.logger = logging.OrNop(l).Named("session") }
}

// WithClock overrides time.Now for the expiry check.
func WithClock(now func() time.Time) StoreOption {
	return func(st *Store) { st.now = now }
}

// NewStore creates a Store over backend.
func NewStore(backend Backend, opts ...StoreOption) *Store {
	st := &Store{
		backend: backend,
		now:     time.Now,
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(st)
	}
	return st
}

// Restore reads the persisted session. It returns (nil, false) when either
// entry is missing, the identity is not valid JSON, the credential cannot
// be unsealed, or the credential is an expired JWT. It never returns an
// error; failures are logged.
func (s *Store) Restore() (*model.Session, bool) {
	entries, err := s.backend.Get(KeyCredential, KeyIdentity)
	if err != nil {
		s.logger.Warn("session storage unreadable", zap.Error(err))
		return nil, false
	}

	credential, hasCred := entries[KeyCredential]
	rawIdentity, hasIdentity := entries[KeyIdentity]
	if !hasCred || !hasIdentity || credential == "" || rawIdentity == "" {
		if hasCred != hasIdentity {
			s.logger.Warn("ignoring half-written session",
				zap.Bool("has_credential", hasCred),
				zap.Bool("has_identity", hasIdentity))
		}
		return nil, false
	}

	var identity model.Identity
	if err := json.Unmarshal([]byte(rawIdentity), &identity); err != nil {
		s.logger.Warn("stored identity is not valid JSON", zap.Error(err))
		return nil, false
	}
	if err := identity.Validate(); err != nil {
		s.logger.Warn("stored identity rejected", zap.Error(err))
		return nil, false
	}

	if s.sealer != nil {
		opened, err := s.sealer.Open(credential)
		if err != nil {
			s.logger.Warn("stored credential could not be unsealed", zap.Error(err))
			return nil, false
		}
		credential = opened
	}
	if credential == "" {
		return nil, false
	}

	if s.discardExpired && IsExpired(credential, s.now()) {
		s.logger.Info("stored credential expired, discarding", zap.String("user", identity.Username))
		if err := s.Clear(); err != nil {
			s.logger.Warn("failed to clear expired session", zap.Error(err))
		}
		return nil, false
	}

	return &model.Session{Credential: credential, Identity: identity}, true
}

// Save persists both entries in one backend operation.
func (s *Store) Save(sess *model.Session) error {
	if !sess.Complete() {
		return ErrIncompleteSession
	}

	identity, err := json.Marshal(sess.Identity)
	if err != nil {
		return fmt.Errorf("failed to encode identity: %w", err)
	}

	credential := sess.Credential
	if s.sealer != nil {
		credential, err = s.sealer.Seal(credential)
		if err != nil {
			return fmt.Errorf("failed to seal credential: %w", err)
		}
	}

	if err := s.backend.PutAll(map[string]string{
		KeyCredential: credential,
		KeyIdentity:   string(identity),
	}); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

// Clear removes both entries. Clearing an empty store is not an error.
func (s *Store) Clear() error {
	if err := s.backend.Delete(KeyCredential, KeyIdentity); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
