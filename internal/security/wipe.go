// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
)

// wipeBufSize is the chunk size used when overwriting.
const wipeBufSize = 64 * 1024

// WipeFile overwrites path with zeros and then random bytes, syncs, and
// removes it. A missing file is not an error.
//
// Copy-on-write and wear-levelled storage may keep old blocks; this removes
// the credential from the file itself, not from the device.
func WipeFile(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("cannot wipe directory %s", path)
	}

	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("failed to open file for overwrite: %w", err)
	}
	size := info.Size()
	if err := overwrite(f, size, zeroReader{}); err != nil {
		f.Close()
		return fmt.Errorf("zero pass failed: %w", err)
	}
	if err := overwrite(f, size, rand.Reader); err != nil {
		f.Close()
		return fmt.Errorf("random pass failed: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("failed to sync file: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove file: %w", err)
	}
	return nil
}

// overwrite writes size bytes from src over f starting at offset 0.
func overwrite(f *os.File, size int64, src io.Reader) error {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	buf := make([]byte, wipeBufSize)
	for written := int64(0); written < size; {
		n := int64(len(buf))
		if size-written < n {
			n = size - written
		}
		if _, err := io.ReadFull(src, buf[:n]); err != nil {
			return err
		}
		m, err := f.Write(buf[:n])
		if err != nil {
			return err
		}
		written += int64(m)
	}
	return nil
}

type zeroReader struct{}

func (zeroReader) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}
