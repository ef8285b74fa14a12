// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package config holds the explicit configuration value every component is
// constructed with, and the store that persists it.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/janderssonse/nvmw/internal/domain"
)

// Defaults for the remote locations and the helper endpoint.
const (
	DefaultNodeMirror = "https://nodejs.org/dist/"
	DefaultNPMMirror  = "https://github.com/npm/cli/archive/"
	DefaultHelperAddr = "127.0.0.1:7878"

	FormatTarGz = "tar.gz"
	FormatTarXz = "tar.xz"

	proxyNone = "none"
)

var (
	// ErrRootMissing is returned when the configured root does not exist.
	ErrRootMissing = errors.New("root directory does not exist")
	// ErrInvalidFormat is returned for an unknown archive format.
	ErrInvalidFormat = errors.New("invalid archive format")
)

// Config is the complete runtime configuration.
type Config struct {
	Root            string `toml:"root"`
	Symlink         string `toml:"symlink"`
	Arch            string `toml:"arch"`
	Proxy           string `toml:"proxy"`
	VerifyTLS       bool   `toml:"verify_ssl"`
	NodeMirror      string `toml:"node_mirror"`
	NPMMirror       string `toml:"npm_mirror"`
	OriginalPath    string `toml:"original_path,omitempty"`
	OriginalVersion string `toml:"original_version,omitempty"`
	HelperAddr      string `toml:"helper_addr"`
	UseHelper       bool   `toml:"use_helper"`
	ArchiveFormat   string `toml:"archive_format"`
}

// Default returns the configuration used when no settings file exists.
// The active link defaults to <root>/current once Normalize runs.
func Default() *Config {
	return &Config{
		Root:          DefaultRoot(),
		Arch:          string(domain.HostArch()),
		Proxy:         proxyNone,
		VerifyTLS:     true,
		HelperAddr:    DefaultHelperAddr,
		UseHelper:     runtime.GOOS == "windows",
		ArchiveFormat: FormatTarGz,
	}
}

// ApplyEnv applies the NVM_HOME and NVM_SYMLINK overrides.
func (c *Config) ApplyEnv() {
	if env := os.Getenv("NVM_HOME"); env != "" {
		c.Root = env
	}

	if env := os.Getenv("NVM_SYMLINK"); env != "" {
		c.Symlink = env
	}
}

// Normalize canonicalises every field.
func (c *Config) Normalize() {
	c.Root = ExpandPath(strings.TrimSpace(c.Root))
	c.Symlink = ExpandPath(strings.TrimSpace(c.Symlink))

	if c.Symlink == "" && c.Root != "" {
		c.Symlink = filepath.Join(c.Root, "current")
	}

	c.Arch = string(domain.ValidateArch(c.Arch))
	c.Proxy = NormalizeProxy(c.Proxy)

	if c.HelperAddr == "" {
		c.HelperAddr = DefaultHelperAddr
	}

	if c.ArchiveFormat == "" || runtime.GOOS == "windows" {
		c.ArchiveFormat = FormatTarGz
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Root == "" {
		return fmt.Errorf("%w: root is not set", ErrRootMissing)
	}

	info, err := os.Stat(c.Root)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrRootMissing, c.Root)
	}

	switch c.ArchiveFormat {
	case FormatTarGz, FormatTarXz:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.ArchiveFormat)
	}

	return nil
}

// DefaultArch returns the configured default bit width.
func (c *Config) DefaultArch() domain.Arch {
	return domain.ValidateArch(c.Arch)
}

// NodeMirrorURL returns the runtime mirror with a trailing slash.
func (c *Config) NodeMirrorURL() string {
	return NormalizeMirror(c.NodeMirror, DefaultNodeMirror)
}

// NPMMirrorURL returns the package-manager mirror with a trailing slash.
func (c *Config) NPMMirrorURL() string {
	return NormalizeMirror(c.NPMMirror, DefaultNPMMirror)
}

// ProxyURL returns the configured proxy, or nil when none is set.
func (c *Config) ProxyURL() (*url.URL, error) {
	p := NormalizeProxy(c.Proxy)
	if p == proxyNone {
		return nil, nil //nolint:nilnil // no proxy is a valid answer
	}

	u, err := url.Parse(p)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy %q: %w", p, err)
	}

	return u, nil
}

// NormalizeMirror falls back to def for empty or "none" values and makes
// sure the result has a scheme and ends with a slash.
func NormalizeMirror(mirror, def string) string {
	mirror = strings.TrimSpace(mirror)
	if mirror == "" || strings.EqualFold(mirror, proxyNone) {
		return def
	}

	if !strings.Contains(mirror, "://") {
		mirror = "https://" + mirror
	}

	if !strings.HasSuffix(mirror, "/") {
		mirror += "/"
	}

	return mirror
}

// NormalizeProxy returns "none" for an unset proxy and adds an http scheme
// to a bare host:port.
func NormalizeProxy(proxy string) string {
	proxy = strings.TrimSpace(proxy)
	if proxy == "" || strings.EqualFold(proxy, proxyNone) {
		return proxyNone
	}

	if !strings.HasPrefix(strings.ToLower(proxy), "http") && !strings.Contains(proxy, "://") {
		return "http://" + proxy
	}

	return proxy
}
