// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package lock serialises mutating commands on one root directory.
package lock

import (
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/janderssonse/nvmw/internal/domain"
)

// FileName is the lock file created inside the root.
const FileName = ".nvmw.lock"

// Lock is an exclusive advisory lock on a root directory.
type Lock struct {
	file *flock.Flock
}

// Acquire takes the lock for root without waiting. It returns
// domain.ErrLocked when another process holds it.
func Acquire(root string) (*Lock, error) {
	path := filepath.Join(root, FileName)
	file := flock.New(path)

	locked, err := file.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w", path, err)
	}

	if !locked {
		return nil, fmt.Errorf("%w: %s", domain.ErrLocked, path)
	}

	return &Lock{file: file}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.file.Path()
}

// Release drops the lock. Releasing twice is harmless.
func (l *Lock) Release() error {
	if err := l.file.Unlock(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.file.Path(), err)
	}

	return nil
}
