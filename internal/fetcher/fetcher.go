// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package fetcher downloads runtime and package-manager archives into a
// version directory.
package fetcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"
	"github.com/janderssonse/nvmw/internal/adapters/archive"
	"github.com/janderssonse/nvmw/internal/adapters/platform"
	"github.com/janderssonse/nvmw/internal/console"
	"github.com/janderssonse/nvmw/internal/domain"
)

// Archive extensions.
const (
	ExtZip   = "zip"
	ExtTarGz = "tar.gz"
	ExtTarXz = "tar.xz"
)

// archiveBaseline is the first release published as a single archive per
// platform on every mirror.
var archiveBaseline = semver.New(16, 9, 0, "", "")

// Paths locates files inside a version directory.
type Paths interface {
	VersionDir(v *semver.Version) string
	BinDir(v *semver.Version) string
	ExecutablePath(v *semver.Version, arch domain.Arch) string
	TempDir() string
	Windows() bool
}

// Options configures a Fetcher.
type Options struct {
	NodeMirror string
	NPMMirror  string
	// Format is the unix archive extension, tar.gz or tar.xz.
	Format string
	// GOARCH selects the artifact family; defaults to runtime.GOARCH.
	GOARCH string
	// GOOS selects the platform name; defaults to runtime.GOOS.
	GOOS   string
	Logger *log.Logger
}

// Fetcher builds artifact URLs and downloads them.
type Fetcher struct {
	downloader domain.Downloader
	paths      Paths
	nodeMirror string
	npmMirror  string
	format     string
	goos       string
	goarch     string
	logger     *log.Logger
}

// New creates a fetcher.
func New(downloader domain.Downloader, paths Paths, opts Options) *Fetcher {
	f := &Fetcher{
		downloader: downloader,
		paths:      paths,
		nodeMirror: opts.NodeMirror,
		npmMirror:  opts.NPMMirror,
		format:     opts.Format,
		goos:       opts.GOOS,
		goarch:     opts.GOARCH,
		logger:     console.OrDiscard(opts.Logger),
	}

	if f.goos == "" {
		f.goos = runtime.GOOS
	}

	if f.goarch == "" {
		f.goarch = runtime.GOARCH
	}

	if f.format != ExtTarXz {
		f.format = ExtTarGz
	}

	return f
}

// Prefix returns the <os>-<cpu> artifact name for a width.
func Prefix(goos, goarch string, arch domain.Arch) string {
	osName := "linux"

	switch goos {
	case "windows":
		osName = "win"
	case "darwin":
		osName = "darwin"
	}

	var cpu string

	switch {
	case strings.HasPrefix(goarch, "arm"):
		cpu = "armv7l"
		if arch == domain.Arch64 {
			cpu = "arm64"
		}
	case arch == domain.Arch64:
		cpu = "x64"
	default:
		cpu = "x86"
	}

	return osName + "-" + cpu
}

// RuntimeURL returns the artifact URL for the version and width. appendWidth
// marks a second width added next to an existing one.
func (f *Fetcher) RuntimeURL(v *semver.Version, arch domain.Arch, appendWidth bool) string {
	tag := domain.VersionTag(v)
	prefix := Prefix(f.goos, f.goarch, arch)

	if !f.paths.Windows() {
		return fmt.Sprintf("%s%s/node-%s-%s.%s", f.nodeMirror, tag, tag, prefix, f.format)
	}

	if !appendWidth && !v.LessThan(archiveBaseline) {
		return fmt.Sprintf("%s%s/node-%s-%s.%s", f.nodeMirror, tag, tag, prefix, ExtZip)
	}

	if v.Major() == 0 {
		if arch == domain.Arch64 {
			return fmt.Sprintf("%s%s/x64/node.exe", f.nodeMirror, tag)
		}

		return fmt.Sprintf("%s%s/node.exe", f.nodeMirror, tag)
	}

	return fmt.Sprintf("%s%s/%s/node.exe", f.nodeMirror, tag, prefix)
}

// FetchRuntime downloads the runtime for one width into the version
// directory. Archives are extracted with their top level stripped and then
// removed. A second unix width is unpacked into a staging directory and
// only its executable is kept, under its suffixed name.
func (f *Fetcher) FetchRuntime(ctx context.Context, v *semver.Version, arch domain.Arch, appendWidth bool) error {
	url := f.RuntimeURL(v, arch, appendWidth)

	if !f.downloader.Exists(ctx, url) {
		return fmt.Errorf("%w: Node.js %s %s-bit isn't available right now", domain.ErrArchUnavailable, domain.VersionTag(v), arch)
	}

	f.logger.Info("Downloading Node.js", "version", domain.VersionTag(v), "arch", arch.String()+"-bit")

	if strings.HasSuffix(url, ".exe") {
		return f.downloader.Download(ctx, url, f.paths.ExecutablePath(v, arch))
	}

	versionDir := f.paths.VersionDir(v)
	archivePath := filepath.Join(versionDir, "node."+archiveExt(url))

	if err := f.downloader.Download(ctx, url, archivePath); err != nil {
		return err
	}

	dest := versionDir
	if appendWidth {
		dest = filepath.Join(versionDir, ".stage-"+arch.String())
	}

	f.logger.Info("Extracting node and npm")

	extractErr := archive.Extract(archivePath, dest, true)

	if err := os.Remove(archivePath); err != nil {
		f.logger.Warn("Failed to remove archive after extraction, please remove it manually", "path", archivePath, "error", err)
	}

	if extractErr != nil {
		return fmt.Errorf("failed to extract %s: %w", url, extractErr)
	}

	if !appendWidth {
		return nil
	}

	defer func() {
		_ = os.RemoveAll(dest)
	}()

	staged := filepath.Join(dest, "bin", "node")
	if err := os.Rename(staged, f.paths.ExecutablePath(v, arch)); err != nil {
		return fmt.Errorf("failed to add %s-bit executable: %w", arch, platform.ClassifyError(err))
	}

	return nil
}

// PackageManagerURL returns the npm archive URL.
func (f *Fetcher) PackageManagerURL(npmVersion string) string {
	return fmt.Sprintf("%sv%s.%s", f.npmMirror, npmVersion, f.npmExt())
}

// FetchPackageManager downloads the npm archive into the scratch directory
// and returns its path.
func (f *Fetcher) FetchPackageManager(ctx context.Context, npmVersion string) (string, error) {
	tempDir := f.paths.TempDir()

	// #nosec G301 -- scratch directory inside the configured root
	if err := os.MkdirAll(tempDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create %s: %w", tempDir, platform.ClassifyError(err))
	}

	dest := filepath.Join(tempDir, fmt.Sprintf("npm-v%s.%s", npmVersion, f.npmExt()))

	f.logger.Info("Downloading npm", "version", npmVersion)

	if err := f.downloader.Download(ctx, f.PackageManagerURL(npmVersion), dest); err != nil {
		return "", fmt.Errorf("could not download npm %s: %w", npmVersion, err)
	}

	return dest, nil
}

func (f *Fetcher) npmExt() string {
	if f.paths.Windows() {
		return ExtZip
	}

	return ExtTarGz
}

func archiveExt(url string) string {
	for _, ext := range []string{ExtZip, ExtTarGz, ExtTarXz} {
		if strings.HasSuffix(url, "."+ext) {
			return ext
		}
	}

	return ExtTarGz
}
