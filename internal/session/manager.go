// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"sync"

	"go.uber.org/zap"

	"github.com/jeranaias/ragdesk/internal/logging"
	"github.com/jeranaias/ragdesk/internal/model"
)

// =============================================================================
// TICKET
// =============================================================================

// Ticket identifies the session a request was issued under. A response is
// applied only if the ticket is still current when it arrives.
type Ticket struct {
	Epoch      uint64
	Credential string
}

// =============================================================================
// SESSION MANAGER
// =============================================================================

// Manager holds the current session in memory and mirrors it to a Store.
// Every Establish and Destroy advances the epoch, which invalidates all
// outstanding tickets.
type Manager struct {
	mu      sync.RWMutex
	store   *Store
	current *model.Session
	epoch   uint64
	logger  *zap.Logger
}

// NewManager creates a manager with no session.
func NewManager(store *Store, logger *zap.Logger) *Manager {
	return &Manager{
		store:  store,
		logger: logging.OrNop(logger).Named("session"),
	}
}

// RestoreOnStartup loads a persisted session, if one exists.
func (m *Manager) RestoreOnStartup() bool {
	sess, ok := m.store.Restore()
	if !ok {
		return false
	}

	m.mu.Lock()
	m.current = sess
	m.epoch++
	m.mu.Unlock()

	m.logger.Info("session restored", zap.String("user", sess.Identity.Username))
	return true
}

// Establish persists sess and makes it current. If persisting fails the
// previous state is left in place.
func (m *Manager) Establish(sess *model.Session) error {
	if !sess.Complete() {
		return ErrIncompleteSession
	}
	if err := m.store.Save(sess); err != nil {
		return err
	}

	copied := *sess
	m.mu.Lock()
	m.current = &copied
	m.epoch++
	m.mu.Unlock()

	m.logger.Info("session established", zap.String("user", sess.Identity.Username))
	return nil
}

// Destroy clears the session from memory and storage. The in-memory session
// is always dropped; a storage error is returned for reporting only.
func (m *Manager) Destroy() error {
	m.mu.Lock()
	had := m.current != nil
	m.current = nil
	m.epoch++
	m.mu.Unlock()

	err := m.store.Clear()
	if err != nil {
		m.logger.Warn("failed to clear stored session", zap.Error(err))
	}
	if had {
		m.logger.Info("session destroyed")
	}
	return err
}

// Current returns a copy of the current session, or nil.
func (m *Manager) Current() *model.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	copied := *m.current
	return &copied
}

// Credential returns the current credential, or "". It satisfies
// api.CredentialSource.
func (m *Manager) Credential() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return ""
	}
	return m.current.Credential
}

// Identity returns the current identity, or nil.
func (m *Manager) Identity() *model.Identity {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.current == nil {
		return nil
	}
	id := m.current.Identity
	return &id
}

// IsAuthenticated reports whether a session is present.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current != nil
}

// Ticket captures the current epoch and credential.
func (m *Manager) Ticket() Ticket {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t := Ticket{Epoch: m.epoch}
	if m.current != nil {
		t.Credential = m.current.Credential
	}
	return t
}

// IsCurrent reports whether t still matches the live session.
func (m *Manager) IsCurrent(t Ticket) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cred := ""
	if m.current != nil {
		cred = m.current.Credential
	}
	return t.Epoch == m.epoch && t.Credential == cred
}

// Close releases the underlying store.
func (m *Manager) Close() error {
	return m.store.Close()
}
