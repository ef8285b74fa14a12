// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package testutil provides testify mocks for the domain ports.
package testutil

import (
	"context"

	"github.com/Masterminds/semver/v3"
	"github.com/janderssonse/nvmw/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockReleaseIndex mocks the ReleaseIndex port for testing.
type MockReleaseIndex struct {
	mock.Mock
}

// Releases mocks reading the release catalogue.
func (m *MockReleaseIndex) Releases(ctx context.Context) ([]domain.Release, error) {
	args := m.Called(ctx)
	if result := args.Get(0); result != nil {
		res, ok := result.([]domain.Release)
		if !ok {
			return nil, args.Error(1)
		}

		return res, args.Error(1)
	}

	return nil, args.Error(1)
}

// Latest mocks reading the latest marker.
func (m *MockReleaseIndex) Latest(ctx context.Context) (*semver.Version, error) {
	args := m.Called(ctx)
	if v, ok := args.Get(0).(*semver.Version); ok {
		return v, args.Error(1)
	}

	return nil, args.Error(1)
}

// IndexURL returns the configured index location.
func (m *MockReleaseIndex) IndexURL() string {
	args := m.Called()

	return args.String(0)
}

// MockDownloader mocks the Downloader port for testing.
type MockDownloader struct {
	mock.Mock
}

// Download mocks a download into dest.
func (m *MockDownloader) Download(ctx context.Context, url, dest string) error {
	args := m.Called(ctx, url, dest)

	return args.Error(0)
}

// Exists mocks a metadata-only request.
func (m *MockDownloader) Exists(ctx context.Context, url string) bool {
	args := m.Called(ctx, url)

	return args.Bool(0)
}

// MockInventory mocks the Inventory port for testing.
type MockInventory struct {
	mock.Mock
}

// Installed mocks listing installed versions.
func (m *MockInventory) Installed() ([]*semver.Version, error) {
	args := m.Called()
	if res, ok := args.Get(0).([]*semver.Version); ok {
		return res, args.Error(1)
	}

	return nil, args.Error(1)
}

// IsInstalled mocks the per-width installed check.
func (m *MockInventory) IsInstalled(v *semver.Version, arch domain.Arch) bool {
	args := m.Called(v.String(), arch)

	return args.Bool(0)
}

// Active mocks reading the active version.
func (m *MockInventory) Active() (*semver.Version, error) {
	args := m.Called()
	if v, ok := args.Get(0).(*semver.Version); ok {
		return v, args.Error(1)
	}

	return nil, args.Error(1)
}

// MockChooser mocks the Chooser port for testing.
type MockChooser struct {
	mock.Mock
}

// Choose mocks an interactive selection.
func (m *MockChooser) Choose(ctx context.Context, title string, options []string, current int) (int, error) {
	args := m.Called(ctx, title, options, current)

	return args.Int(0), args.Error(1)
}

// Versions parses version strings for test fixtures.
func Versions(vs ...string) []*semver.Version {
	out := make([]*semver.Version, 0, len(vs))
	for _, v := range vs {
		out = append(out, semver.MustParse(v))
	}

	return out
}

// Release builds an index entry for test fixtures.
func Release(version, lts, npm string) domain.Release {
	return domain.Release{
		Version: version,
		NPM:     npm,
		LTS:     domain.LTS{Name: lts},
		Files:   []string{"linux-x64", "win-x64-zip"},
	}
}
