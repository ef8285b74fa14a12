// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package platform provides direct filesystem operations on version trees
// and the active link.
package platform

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/janderssonse/nvmw/internal/console"
	"github.com/janderssonse/nvmw/internal/domain"
)

// FileManager implements domain.LinkOperator with direct filesystem calls.
type FileManager struct {
	logger *log.Logger
}

// NewFileManager creates a new file manager.
func NewFileManager(logger *log.Logger) *FileManager {
	return &FileManager{logger: console.OrDiscard(logger)}
}

// CreateDirLink creates link pointing at the target directory.
func (f *FileManager) CreateDirLink(_ context.Context, link, target string) error {
	f.logger.Debug("Creating link", "link", link, "target", target)

	if err := os.Symlink(target, link); err != nil {
		return ClassifyError(err)
	}

	return nil
}

// RemoveLink removes link. A missing link is not an error.
func (f *FileManager) RemoveLink(_ context.Context, link string) error {
	f.logger.Debug("Removing link", "link", link)

	if err := os.Remove(link); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return ClassifyError(err)
	}

	return nil
}

// RemoveDir removes a directory tree.
func (f *FileManager) RemoveDir(_ context.Context, path string) error {
	f.logger.Debug("Removing directory", "path", path)

	if err := os.RemoveAll(path); err != nil {
		return ClassifyError(err)
	}

	return nil
}

// ClassifyError wraps filesystem errors with the matching domain sentinel.
func ClassifyError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %w", domain.ErrPermissionDenied, err)
	case errors.Is(err, fs.ErrExist):
		return fmt.Errorf("%w: %w", domain.ErrAlreadyExists, err)
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %w", domain.ErrPathMissing, err)
	default:
		return err
	}
}

// MockFileManager implements domain.LinkOperator in memory for testing.
// Errors queued in the *Errs slices are returned by successive calls.
type MockFileManager struct {
	mu sync.Mutex

	Links   map[string]string
	Removed []string
	Calls   []string

	CreateErrs     []error
	RemoveLinkErrs []error
	RemoveDirErrs  []error
}

// NewMockFileManager creates a new mock file manager for testing.
func NewMockFileManager() *MockFileManager {
	return &MockFileManager{Links: make(map[string]string)}
}

func pop(errs *[]error) error {
	if len(*errs) == 0 {
		return nil
	}

	err := (*errs)[0]
	*errs = (*errs)[1:]

	return err
}

// CreateDirLink records the link unless an error is queued.
func (m *MockFileManager) CreateDirLink(_ context.Context, link, target string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, "create "+link)

	if err := pop(&m.CreateErrs); err != nil {
		return err
	}

	if _, exists := m.Links[link]; exists {
		return domain.ErrAlreadyExists
	}

	m.Links[link] = target

	return nil
}

// RemoveLink forgets the link unless an error is queued.
func (m *MockFileManager) RemoveLink(_ context.Context, link string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, "unlink "+link)

	if err := pop(&m.RemoveLinkErrs); err != nil {
		return err
	}

	delete(m.Links, link)

	return nil
}

// RemoveDir records the removal unless an error is queued.
func (m *MockFileManager) RemoveDir(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, "rmdir "+path)

	if err := pop(&m.RemoveDirErrs); err != nil {
		return err
	}

	m.Removed = append(m.Removed, path)

	return nil
}
