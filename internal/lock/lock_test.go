// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package lock_test

import (
	"path/filepath"
	"testing"

	"github.com/janderssonse/nvmw/internal/domain"
	"github.com/janderssonse/nvmw/internal/lock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire(t *testing.T) {
	t.Parallel()

	root := t.TempDir()

	held, err := lock.Acquire(root)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, lock.FileName), held.Path())

	_, err = lock.Acquire(root)
	require.ErrorIs(t, err, domain.ErrLocked)

	require.NoError(t, held.Release())
	require.NoError(t, held.Release())

	again, err := lock.Acquire(root)
	require.NoError(t, err)
	require.NoError(t, again.Release())
}

func TestAcquire_IndependentRoots(t *testing.T) {
	t.Parallel()

	a, err := lock.Acquire(t.TempDir())
	require.NoError(t, err)

	t.Cleanup(func() { _ = a.Release() })

	b, err := lock.Acquire(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, b.Release())
}

func TestAcquire_MissingRoot(t *testing.T) {
	t.Parallel()

	_, err := lock.Acquire(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrLocked)
}
