// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package activation points the active link at an installed version.
package activation

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"
	"github.com/janderssonse/nvmw/internal/console"
	"github.com/janderssonse/nvmw/internal/domain"
	"github.com/janderssonse/nvmw/internal/install"
)

// ErrNoSelection is returned when an interactive pick keeps the active version.
var ErrNoSelection = errors.New("selection unchanged")

// Resolver resolves version tokens.
type Resolver interface {
	Resolve(ctx context.Context, token, archHint string, localOnly bool) (domain.Resolved, error)
}

// Manager switches the active version.
type Manager struct {
	resolver Resolver
	layout   *install.Layout
	direct   domain.LinkOperator
	helper   domain.LinkOperator
	primary  domain.LinkOperator
	logger   *log.Logger
	rename   func(src, dst string) error
	now      func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithHelperFirst routes every link operation through the helper.
func WithHelperFirst() Option {
	return func(m *Manager) {
		m.primary = m.helper
	}
}

// WithRename replaces the rename used to finalise the executable width.
func WithRename(rename func(src, dst string) error) Option {
	return func(m *Manager) {
		m.rename = rename
	}
}

// WithLogger sets the logger.
func WithLogger(logger *log.Logger) Option {
	return func(m *Manager) {
		m.logger = console.OrDiscard(logger)
	}
}

// NewManager creates an activation manager. direct performs link operations
// in-process; helper is the privileged fallback used after a permission
// failure.
func NewManager(res Resolver, layout *install.Layout, direct, helper domain.LinkOperator, opts ...Option) *Manager {
	m := &Manager{
		resolver: res,
		layout:   layout,
		direct:   direct,
		helper:   helper,
		primary:  direct,
		logger:   console.Discard(),
		rename:   os.Rename,
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.helper == nil {
		m.helper = m.direct
	}

	if m.primary == nil {
		m.primary = m.direct
	}

	return m
}

// Activate makes token the active version with the given width.
func (m *Manager) Activate(ctx context.Context, token, archHint string) (*domain.ActivationOutcome, error) {
	resolved, err := m.resolver.Resolve(ctx, token, archHint, true)
	if err != nil {
		return nil, err
	}

	return m.activate(ctx, resolved.Version, resolved.Arch)
}

func (m *Manager) activate(ctx context.Context, v *semver.Version, arch domain.Arch) (*domain.ActivationOutcome, error) {
	if arch == domain.ArchAll {
		arch = domain.HostArch()
	}

	if !m.layout.IsInstalled(v, arch) {
		return nil, m.notInstalled(v, arch)
	}

	target := m.layout.VersionDir(v)
	outcome := &domain.ActivationOutcome{
		Version:   v.String(),
		Arch:      arch.String(),
		Link:      m.layout.Link(),
		Target:    target,
		Timestamp: m.now(),
	}

	retried, err := m.relink(ctx, target, true)
	if err != nil {
		return nil, err
	}

	outcome.Retried = retried

	m.logger.Debug("Activation state", "version", v, "state", "renaming")

	if err := m.finalize(v, arch); err != nil {
		return outcome, err
	}

	return outcome, nil
}

func (m *Manager) notInstalled(v *semver.Version, arch domain.Arch) error {
	err := fmt.Errorf("%w: node %s (%s-bit) is not installed", domain.ErrNotInstalled, domain.VersionTag(v), arch)

	other := arch.Other()
	if m.layout.IsInstalled(v, other) {
		return fmt.Errorf("%w. Did you mean node %s (%s-bit)? If so, type \"nvmw use %s %s\" to use it",
			err, domain.VersionTag(v), other, v, other)
	}

	return err
}

// relink replaces the active link. A permission failure on either step is
// retried once through the helper; an existing link is removed and the
// whole step repeated once.
func (m *Manager) relink(ctx context.Context, target string, reloadable bool) (bool, error) {
	link := m.layout.Link()

	m.logger.Debug("Activation state", "state", "link-removing", "link", link)

	retried := false

	err := m.primary.RemoveLink(ctx, link)
	if errors.Is(err, domain.ErrPermissionDenied) {
		m.logger.Debug("Activation state", "state", "retrying", "via", "helper")

		retried = true
		err = m.helper.RemoveLink(ctx, link)
	}

	if err != nil {
		return retried, fmt.Errorf("failed to remove active link: %w", err)
	}

	m.logger.Debug("Activation state", "state", "link-creating", "target", target)

	err = m.primary.CreateDirLink(ctx, link, target)

	switch {
	case err == nil:
		return retried, nil
	case errors.Is(err, domain.ErrPermissionDenied):
		m.logger.Debug("Activation state", "state", "retrying", "via", "helper")

		if err := m.helper.CreateDirLink(ctx, link, target); err != nil {
			return true, fmt.Errorf("failed to create active link: %w", err)
		}

		return true, nil
	case errors.Is(err, domain.ErrAlreadyExists) && reloadable:
		m.logger.Debug("Activation state", "state", "retrying", "reason", "link exists")

		if _, err := m.relink(ctx, target, false); err != nil {
			return true, err
		}

		return true, nil
	default:
		return retried, fmt.Errorf("failed to create active link: %w", err)
	}
}

// finalize renames executables so the plain name has the requested width
// and the displaced width keeps its suffixed name. When the second rename
// fails the first is undone, so every executable always has a name.
func (m *Manager) finalize(v *semver.Version, arch domain.Arch) error {
	plain := m.layout.ExecutablePath(v, "")
	wanted := m.layout.ExecutablePath(v, arch)
	displaced := m.layout.ExecutablePath(v, arch.Other())

	if !fileExists(wanted) {
		return nil
	}

	movedPlain := false

	if fileExists(plain) {
		if err := m.rename(plain, displaced); err != nil {
			return fmt.Errorf("failed to keep the %s-bit executable as %s: %w", arch.Other(), displaced, err)
		}

		movedPlain = true
	}

	if err := m.rename(wanted, plain); err != nil {
		if movedPlain {
			if rbErr := m.rename(displaced, plain); rbErr != nil {
				return errors.Join(
					fmt.Errorf("failed to select the %s-bit executable: %w", arch, err),
					fmt.Errorf("failed to restore %s: %w", plain, rbErr),
				)
			}
		}

		return fmt.Errorf("failed to select the %s-bit executable, run use again to retry: %w", arch, err)
	}

	return nil
}

// Deactivate removes the active link.
func (m *Manager) Deactivate(ctx context.Context) error {
	link := m.layout.Link()

	err := m.primary.RemoveLink(ctx, link)
	if errors.Is(err, domain.ErrPermissionDenied) {
		err = m.helper.RemoveLink(ctx, link)
	}

	if err != nil {
		return fmt.Errorf("failed to remove active link: %w", err)
	}

	return nil
}

// Active returns the active version and the width of its plain executable.
// ok is false when no version is active.
func (m *Manager) Active() (*semver.Version, domain.Arch, bool, error) {
	v, err := m.layout.Active()
	if errors.Is(err, domain.ErrNoActiveVersion) {
		return nil, "", false, nil
	}

	if err != nil {
		return nil, "", false, err
	}

	arch, err := m.layout.ActiveArch()
	if err != nil {
		m.logger.Debug("Cannot determine active width", "error", err)

		arch = ""
	}

	return v, arch, true, nil
}

// Switch lets chooser pick among installed versions, newest first, with
// the active one preselected, and activates a different pick.
func (m *Manager) Switch(ctx context.Context, archHint string, chooser domain.Chooser) (*domain.ActivationOutcome, error) {
	installed, err := m.layout.Installed()
	if err != nil {
		return nil, err
	}

	if len(installed) == 0 {
		return nil, domain.ErrNoInstalledVersions
	}

	active, _ := m.layout.Active()

	current := 0
	options := make([]string, len(installed))

	for i, v := range installed {
		options[i] = domain.VersionTag(v)
		if active != nil && v.Equal(active) {
			current = i
		}
	}

	selection, err := chooser.Choose(ctx, "Pick node, hint it might be on the second page", options, current)
	if err != nil {
		return nil, err
	}

	if selection < 0 || selection >= len(installed) {
		return nil, fmt.Errorf("%w: selection %d out of range", domain.ErrUnrecognizedVersion, selection)
	}

	if active != nil && selection == current {
		return nil, fmt.Errorf("%w: %s", ErrNoSelection, domain.VersionTag(active))
	}

	return m.Activate(ctx, installed[selection].String(), archHint)
}

// Enable activates the newest installed version.
func (m *Manager) Enable(ctx context.Context, archHint string) (*domain.ActivationOutcome, error) {
	installed, err := m.layout.Installed()
	if err != nil {
		return nil, err
	}

	if len(installed) == 0 {
		return nil, domain.ErrNoInstalledVersions
	}

	return m.Activate(ctx, installed[0].String(), archHint)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}
