// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package install manages the version directories under the root.
package install

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"
	"github.com/janderssonse/nvmw/internal/adapters/archive"
	"github.com/janderssonse/nvmw/internal/adapters/platform"
	"github.com/janderssonse/nvmw/internal/console"
	"github.com/janderssonse/nvmw/internal/domain"
	"github.com/janderssonse/nvmw/internal/remote"
	"github.com/janderssonse/nvmw/internal/resolver"
)

// npmExtractDir is the scratch subdirectory the npm archive is unpacked into.
const npmExtractDir = "nvm-npm"

// RelocationBackoff is the wait before each retry of moving the package
// manager into place.
var RelocationBackoff = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	3 * time.Second,
	8 * time.Second,
	16 * time.Second,
}

// npmExecutables are moved next to the runtime when present.
var npmExecutables = []string{"npm", "npm.cmd", "npx", "npx.cmd"}

// Resolver resolves version tokens.
type Resolver interface {
	Resolve(ctx context.Context, token, archHint string, localOnly bool) (domain.Resolved, error)
}

// Fetcher downloads runtimes and package managers.
type Fetcher interface {
	FetchRuntime(ctx context.Context, v *semver.Version, arch domain.Arch, appendWidth bool) error
	FetchPackageManager(ctx context.Context, npmVersion string) (string, error)
}

// Manager installs and uninstalls versions.
type Manager struct {
	resolver Resolver
	index    domain.ReleaseIndex
	layout   *Layout
	fetcher  Fetcher
	links    domain.LinkOperator
	helper   domain.LinkOperator
	logger   *log.Logger
	sleep    func(time.Duration)
	rename   func(src, dst string) error
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithSleep replaces the wait used between relocation retries.
func WithSleep(sleep func(time.Duration)) Option {
	return func(m *Manager) {
		m.sleep = sleep
	}
}

// WithRename replaces the move used to relocate the package manager.
func WithRename(rename func(src, dst string) error) Option {
	return func(m *Manager) {
		m.rename = rename
	}
}

// WithHelper sets the privileged operator that removals fall back to after a
// permission failure.
func WithHelper(helper domain.LinkOperator) Option {
	return func(m *Manager) {
		m.helper = helper
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(m *Manager) {
		m.logger = console.OrDiscard(logger)
	}
}

// NewManager creates an installation manager.
func NewManager(res Resolver, index domain.ReleaseIndex, layout *Layout, fetcher Fetcher, links domain.LinkOperator, opts ...Option) *Manager {
	m := &Manager{
		resolver: res,
		index:    index,
		layout:   layout,
		fetcher:  fetcher,
		links:    links,
		logger:   console.Discard(),
		sleep:    time.Sleep,
		rename:   os.Rename,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

func (m *Manager) enter(v *semver.Version, s State) {
	m.logger.Debug("Install state", "version", v, "state", s)
}

// Install resolves token and installs every width the request implies.
func (m *Manager) Install(ctx context.Context, token, archHint string) (*domain.InstallOutcome, error) {
	start := m.now()

	m.logger.Debug("Install state", "token", token, "state", StateResolving)

	resolved, err := m.resolver.Resolve(ctx, token, archHint, false)
	if err != nil {
		return nil, err
	}

	v, arch := resolved.Version, resolved.Arch

	if err := m.checkAvailable(ctx, v, arch); err != nil {
		m.enter(v, StateFailed)

		return nil, err
	}

	outcome := &domain.InstallOutcome{
		Version:   v.String(),
		Arch:      arch.String(),
		Path:      m.layout.VersionDir(v),
		Timestamp: start,
	}

	if m.layout.IsInstalled(v, arch) {
		outcome.AlreadyInstalled = true
		outcome.Installed = m.installedWidths(v)

		return outcome, nil
	}

	release, err := m.release(ctx, v)
	if err != nil {
		m.enter(v, StateFailed)

		return nil, err
	}

	outcome.NPM = release.NPM

	if err := m.prepare(v); err != nil {
		m.enter(v, StateFailed)

		return nil, err
	}

	if err := m.populate(ctx, v, arch, release); err != nil {
		m.enter(v, StateFailed)

		if rmErr := os.RemoveAll(m.layout.VersionDir(v)); rmErr != nil {
			m.logger.Warn("Failed to remove partial install", "path", m.layout.VersionDir(v), "error", rmErr)
		}

		return nil, err
	}

	if err := os.RemoveAll(m.layout.TempDir()); err != nil {
		m.logger.Warn("Failed to remove scratch directory", "path", m.layout.TempDir(), "error", err)
	}

	m.enter(v, StateComplete)

	outcome.Installed = m.installedWidths(v)
	outcome.Duration = m.now().Sub(start)

	return outcome, nil
}

func (m *Manager) checkAvailable(ctx context.Context, v *semver.Version, arch domain.Arch) error {
	latest, err := m.index.Latest(ctx)
	if err != nil {
		return err
	}

	if v.GreaterThan(latest) {
		return fmt.Errorf("%w: Node.js %s is not yet released or is not available", domain.ErrNotYetReleased, domain.VersionTag(v))
	}

	if arch == domain.Arch64 && !domain.Offers64Bit(v) {
		return fmt.Errorf("%w: Node.js %s is only available in 32-bit", domain.ErrArchUnavailable, domain.VersionTag(v))
	}

	return nil
}

func (m *Manager) release(ctx context.Context, v *semver.Version) (domain.Release, error) {
	releases, err := m.index.Releases(ctx)
	if err != nil {
		return domain.Release{}, err
	}

	release, ok := remote.Find(releases, v)
	if !ok {
		return domain.Release{}, fmt.Errorf("%w: version %s is not available, the complete list of available versions can be found at %s",
			domain.ErrVersionUnavailable, v, m.index.IndexURL())
	}

	return release, nil
}

func (m *Manager) prepare(v *semver.Version) error {
	for _, dir := range []string{m.layout.VersionDir(v), m.layout.ModulesDir(v)} {
		// #nosec G301 -- version trees are shared by every user of the runtime
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, platform.ClassifyError(err))
		}
	}

	m.enter(v, StateDirectoryPrepared)

	return nil
}

func (m *Manager) populate(ctx context.Context, v *semver.Version, arch domain.Arch, release domain.Release) error {
	m.enter(v, StateFetchingRuntime)

	for _, width := range arch.Widths() {
		if m.layout.IsInstalled(v, width) {
			continue
		}

		if err := m.fetcher.FetchRuntime(ctx, v, width, m.layout.HasExecutable(v)); err != nil {
			return fmt.Errorf("could not download node.js %s %s-bit executable: %w", domain.VersionTag(v), width, err)
		}
	}

	m.enter(v, StateFetchingPackageManager)

	if m.layout.HasBundledNPM(v) {
		return nil
	}

	if release.NPM == "" {
		m.logger.Warn("Release ships without npm", "version", v)

		return nil
	}

	archivePath, err := m.fetcher.FetchPackageManager(ctx, release.NPM)
	if err != nil {
		return err
	}

	m.enter(v, StateRelocating)

	return m.relocate(v, release.NPM, archivePath)
}

func (m *Manager) relocate(v *semver.Version, npmVersion, archivePath string) error {
	extractDir := filepath.Join(m.layout.TempDir(), npmExtractDir)

	if err := archive.Extract(archivePath, extractDir, false); err != nil {
		return fmt.Errorf("could not extract npm %s: %w", npmVersion, err)
	}

	source, err := packageRoot(extractDir, npmVersion)
	if err != nil {
		return err
	}

	binDir := filepath.Join(source, "bin")
	for _, name := range npmExecutables {
		from := filepath.Join(binDir, name)
		if _, err := os.Stat(from); err != nil {
			continue
		}

		if err := os.Rename(from, filepath.Join(m.layout.BinDir(v), name)); err != nil {
			m.logger.Warn("Failed to move npm executable", "file", name, "error", err)
		}
	}

	dest := filepath.Join(m.layout.ModulesDir(v), "npm")

	err = m.rename(source, dest)
	for _, wait := range RelocationBackoff {
		if err == nil {
			break
		}

		m.logger.Warn("Moving npm failed, retrying", "from", source, "to", dest, "wait", wait, "error", err)
		m.sleep(wait)

		err = m.rename(source, dest)
	}

	if err != nil {
		return fmt.Errorf("%w: unable to move %s: %w", domain.ErrRelocationFailed, source, err)
	}

	return nil
}

// packageRoot finds the unpacked npm tree, named cli-<v> or npm-<v>.
func packageRoot(extractDir, npmVersion string) (string, error) {
	for _, name := range []string{"cli-" + npmVersion, "npm-" + npmVersion} {
		dir := filepath.Join(extractDir, name)
		if _, err := os.Stat(filepath.Join(dir, "bin")); err == nil {
			return dir, nil
		}
	}

	return "", fmt.Errorf("%w: no cli-%s/bin or npm-%s/bin in %s", domain.ErrPackageManagerBin, npmVersion, npmVersion, extractDir)
}

func (m *Manager) installedWidths(v *semver.Version) []string {
	var widths []string

	for _, w := range []domain.Arch{domain.Arch32, domain.Arch64} {
		if m.layout.IsInstalled(v, w) {
			widths = append(widths, w.String())
		}
	}

	return widths
}

// Uninstall removes an installed version, tearing down the active link
// first when it points at that version.
func (m *Manager) Uninstall(ctx context.Context, token string) (*domain.UninstallOutcome, error) {
	v, err := m.uninstallTarget(ctx, token)
	if err != nil {
		return nil, err
	}

	if !m.layout.IsInstalledAny(v) {
		return nil, fmt.Errorf("%w: node %s is not installed, type \"nvmw list\" to see what is installed", domain.ErrNotInstalled, domain.VersionTag(v))
	}

	outcome := &domain.UninstallOutcome{
		Version:   v.String(),
		Path:      m.layout.VersionDir(v),
		Timestamp: m.now(),
	}

	active, err := m.layout.Active()
	if err == nil && active.Equal(v) {
		err := m.elevated(func(op domain.LinkOperator) error {
			return op.RemoveLink(ctx, m.layout.Link())
		})
		if err != nil {
			return nil, fmt.Errorf("failed to deactivate %s: %w", domain.VersionTag(v), err)
		}

		outcome.Deactivated = true
	}

	err = m.elevated(func(op domain.LinkOperator) error {
		return op.RemoveDir(ctx, outcome.Path)
	})
	if err != nil {
		return nil, fmt.Errorf("error removing node %s, remove %s manually: %w", domain.VersionTag(v), outcome.Path, err)
	}

	return outcome, nil
}

// elevated runs op directly and repeats it once through the helper after a
// permission failure.
func (m *Manager) elevated(op func(domain.LinkOperator) error) error {
	err := op(m.links)
	if !errors.Is(err, domain.ErrPermissionDenied) || m.helper == nil || m.helper == m.links {
		return err
	}

	m.logger.Debug("Retrying through the helper", "error", err)

	return op(m.helper)
}

func (m *Manager) uninstallTarget(ctx context.Context, token string) (*semver.Version, error) {
	token = strings.ToLower(strings.TrimSpace(token))

	switch token {
	case "":
		return nil, domain.ErrEmptyVersion
	case resolver.AliasLatest, resolver.AliasNode, resolver.AliasLTS, resolver.AliasNewest:
		return m.resolveVersion(ctx, token)
	}

	if resolver.IsCodename(token) {
		return m.resolveVersion(ctx, token)
	}

	return CleanVersion(token)
}

func (m *Manager) resolveVersion(ctx context.Context, token string) (*semver.Version, error) {
	resolved, err := m.resolver.Resolve(ctx, token, "", false)
	if err != nil {
		return nil, err
	}

	return resolved.Version, nil
}

// CleanVersion pads a numeric version to three components, so "18" is
// 18.0.0 and "v18.2" is 18.2.0.
func CleanVersion(token string) (*semver.Version, error) {
	fields := strings.Split(strings.TrimPrefix(strings.TrimSpace(token), "v"), ".")
	if len(fields) > 3 {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnrecognizedVersion, token)
	}

	var parts [3]uint64

	for i, f := range fields {
		n, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", domain.ErrUnrecognizedVersion, token, err)
		}

		parts[i] = n
	}

	return semver.New(parts[0], parts[1], parts[2], "", ""), nil
}
