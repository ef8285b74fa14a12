// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package install

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/janderssonse/nvmw/internal/adapters/platform"
	"github.com/janderssonse/nvmw/internal/domain"
)

// ProbeFunc reports the bit width of an executable.
type ProbeFunc func(path string) (domain.Arch, error)

// Layout knows where versions live under the root and implements
// domain.Inventory.
type Layout struct {
	root    string
	link    string
	windows bool
	probe   ProbeFunc
}

// NewLayout creates a layout for the host platform.
func NewLayout(root, link string) *Layout {
	return &Layout{
		root:    root,
		link:    link,
		windows: runtime.GOOS == "windows",
		probe:   platform.ProbeArch,
	}
}

// WithProbe replaces the executable probe.
func (l *Layout) WithProbe(probe ProbeFunc) *Layout {
	l.probe = probe

	return l
}

// WithWindows switches between the Windows and unix directory shapes.
func (l *Layout) WithWindows(windows bool) *Layout {
	l.windows = windows

	return l
}

// Root returns the root directory.
func (l *Layout) Root() string {
	return l.root
}

// Link returns the active link path.
func (l *Layout) Link() string {
	return l.link
}

// Windows reports whether the Windows directory shape is used.
func (l *Layout) Windows() bool {
	return l.windows
}

// VersionDir returns <root>/v<version>.
func (l *Layout) VersionDir(v *semver.Version) string {
	return filepath.Join(l.root, domain.VersionTag(v))
}

// BinDir returns the directory holding the executables.
func (l *Layout) BinDir(v *semver.Version) string {
	if l.windows {
		return l.VersionDir(v)
	}

	return filepath.Join(l.VersionDir(v), "bin")
}

// ModulesDir returns the directory holding global packages.
func (l *Layout) ModulesDir(v *semver.Version) string {
	if l.windows {
		return filepath.Join(l.VersionDir(v), "node_modules")
	}

	return filepath.Join(l.VersionDir(v), "lib", "node_modules")
}

// ExecutablePath returns the runtime executable for arch. An empty arch
// names the plain executable.
func (l *Layout) ExecutablePath(v *semver.Version, arch domain.Arch) string {
	name := "node" + string(arch)
	if l.windows {
		name += ".exe"
	}

	return filepath.Join(l.BinDir(v), name)
}

// TempDir returns the scratch directory used by installs.
func (l *Layout) TempDir() string {
	return filepath.Join(l.root, "temp")
}

// Installed returns the installed versions, newest first.
func (l *Layout) Installed() ([]*semver.Version, error) {
	entries, err := os.ReadDir(l.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read root %s: %w", l.root, platform.ClassifyError(err))
	}

	var versions []*semver.Version

	for _, e := range entries {
		name, ok := strings.CutPrefix(e.Name(), "v")
		if !ok || !(e.IsDir() || e.Type()&fs.ModeSymlink != 0) {
			continue
		}

		v, err := semver.StrictNewVersion(name)
		if err != nil {
			continue
		}

		versions = append(versions, v)
	}

	sort.Slice(versions, func(i, j int) bool {
		return versions[i].GreaterThan(versions[j])
	})

	return versions, nil
}

// IsInstalled reports whether v has an executable usable as arch. Two
// suffixed executables, or one suffixed plus the plain one, count as both
// widths. A lone plain executable counts for the width its header declares.
func (l *Layout) IsInstalled(v *semver.Version, arch domain.Arch) bool {
	e32 := exists(l.ExecutablePath(v, domain.Arch32))
	e64 := exists(l.ExecutablePath(v, domain.Arch64))
	plain := exists(l.ExecutablePath(v, ""))
	both := ((e32 || e64) && plain) || (e32 && e64)

	switch arch {
	case domain.ArchAll:
		return both
	case domain.Arch32:
		if e32 || both {
			return true
		}
	case domain.Arch64:
		if e64 || both {
			return true
		}
	default:
		return false
	}

	if !plain || e32 || e64 {
		return false
	}

	width, err := l.probe(l.ExecutablePath(v, ""))

	return err == nil && width == arch
}

// IsInstalledAny reports whether either width is installed.
func (l *Layout) IsInstalledAny(v *semver.Version) bool {
	return l.IsInstalled(v, domain.Arch32) || l.IsInstalled(v, domain.Arch64)
}

// HasExecutable reports whether any runtime executable is present.
func (l *Layout) HasExecutable(v *semver.Version) bool {
	for _, arch := range []domain.Arch{"", domain.Arch32, domain.Arch64} {
		if exists(l.ExecutablePath(v, arch)) {
			return true
		}
	}

	return false
}

// HasBundledNPM reports whether the package manager is in place.
func (l *Layout) HasBundledNPM(v *semver.Version) bool {
	return exists(filepath.Join(l.ModulesDir(v), "npm"))
}

// Active returns the version the active link points at.
func (l *Layout) Active() (*semver.Version, error) {
	target, err := os.Readlink(l.link)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, fs.ErrInvalid) {
			return nil, domain.ErrNoActiveVersion
		}

		return nil, fmt.Errorf("failed to read active link: %w", platform.ClassifyError(err))
	}

	name := filepath.Base(filepath.Clean(target))

	v, err := semver.StrictNewVersion(strings.TrimPrefix(name, "v"))
	if err != nil {
		return nil, fmt.Errorf("%w: link points at %s", domain.ErrNoActiveVersion, target)
	}

	return v, nil
}

// ActiveArch reports the width of the active plain executable.
func (l *Layout) ActiveArch() (domain.Arch, error) {
	v, err := l.Active()
	if err != nil {
		return "", err
	}

	return l.probe(l.ExecutablePath(v, ""))
}

func exists(path string) bool {
	_, err := os.Stat(path)

	return err == nil
}
