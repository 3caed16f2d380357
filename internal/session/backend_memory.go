// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import "sync"

// MemoryBackend keeps entries in process memory. Used by tests and by
// --ephemeral runs.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]string)}
}

func (b *MemoryBackend) Get(keys ...string) (map[string]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := b.entries[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (b *MemoryBackend) PutAll(entries map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range entries {
		b.entries[k] = v
	}
	return nil
}

func (b *MemoryBackend) Delete(keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, k := range keys {
		delete(b.entries, k)
	}
	return nil
}

func (b *MemoryBackend) Close() error { return nil }

// Len returns the number of stored entries.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
