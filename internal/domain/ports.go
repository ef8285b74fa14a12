// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package domain

import (
	"context"

	"github.com/Masterminds/semver/v3"
)

// ReleaseIndex provides the remote release catalogue.
type ReleaseIndex interface {
	// Releases returns every published release, newest first.
	Releases(ctx context.Context) ([]Release, error)

	// Latest returns the version the mirror marks as latest.
	Latest(ctx context.Context) (*semver.Version, error)

	// IndexURL returns the location the catalogue is read from.
	IndexURL() string
}

// Downloader performs the network transfers of an install.
type Downloader interface {
	// Download fetches url into dest following the redirect rules.
	Download(ctx context.Context, url, dest string) error

	// Exists performs a metadata-only request and reports a 200 response.
	Exists(ctx context.Context, url string) bool
}

// Inventory answers questions about installed versions.
type Inventory interface {
	// Installed returns installed versions, newest first.
	Installed() ([]*semver.Version, error)

	// IsInstalled reports whether the version has an executable for arch.
	IsInstalled(v *semver.Version, arch Arch) bool

	// Active returns the version the active link points at.
	Active() (*semver.Version, error)
}

// LinkOperator manipulates the active link and version trees, either
// directly or through the privileged filesystem helper.
type LinkOperator interface {
	// CreateDirLink creates link as a directory link to target.
	CreateDirLink(ctx context.Context, link, target string) error

	// RemoveLink removes the link itself, never its target.
	RemoveLink(ctx context.Context, link string) error

	// RemoveDir removes a directory tree.
	RemoveDir(ctx context.Context, path string) error
}

// Chooser asks the user to pick one option.
type Chooser interface {
	// Choose returns the index of the chosen option. current is preselected.
	Choose(ctx context.Context, title string, options []string, current int) (int, error)
}
