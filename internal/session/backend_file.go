// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/jeranaias/ragdesk/internal/security"
	"github.com/jeranaias/ragdesk/internal/util"
)

// FileBackend stores entries as one JSON object on disk. Every write
// replaces the whole file through an atomic rename, so a reader never sees
// one entry without the other.
type FileBackend struct {
	path string
	mu   sync.Mutex
}

// NewFileBackend returns a backend rooted at path. The file is created on
// first write.
func NewFileBackend(path string) *FileBackend {
	return &FileBackend{path: path}
}

// Path returns the backing file path.
func (b *FileBackend) Path() string { return b.path }

// Get returns the requested keys that exist.
func (b *FileBackend) Get(keys ...string) (map[string]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	all, err := b.read()
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := all[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

// PutAll merges entries into the file.
func (b *FileBackend) PutAll(entries map[string]string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	all, err := b.read()
	if err != nil {
		// A corrupt file is replaced rather than blocking login forever.
		all = make(map[string]string)
	}
	for k, v := range entries {
		all[k] = v
	}
	return b.write(all)
}

// Delete removes keys. Removing the last key deletes the file.
func (b *FileBackend) Delete(keys ...string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	all, err := b.read()
	if err != nil {
		// Unreadable content cannot hold a usable session either.
		return b.remove()
	}
	for _, k := range keys {
		delete(all, k)
	}
	if len(all) == 0 {
		return b.remove()
	}
	return b.write(all)
}

// Close is a no-op.
func (b *FileBackend) Close() error { return nil }

func (b *FileBackend) read() (map[string]string, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	all := make(map[string]string)
	if len(data) == 0 {
		return all, nil
	}
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	return all, nil
}

func (b *FileBackend) write(all map[string]string) error {
	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session file: %w", err)
	}
	return util.AtomicWriteFileWithDir(b.path, data, 0600, 0700)
}

// remove overwrites the file before unlinking it so the credential does not
// linger in the freed blocks of a plain file.
func (b *FileBackend) remove() error {
	if err := security.WipeFile(b.path); err != nil {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
