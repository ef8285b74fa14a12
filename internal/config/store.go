// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package config

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Store loads and persists the configuration in a settings directory.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Path returns the TOML settings path.
func (s *Store) Path() string {
	return filepath.Join(s.dir, SettingsFile)
}

// LegacyPath returns the key: value settings path.
func (s *Store) LegacyPath() string {
	return filepath.Join(s.dir, LegacySettingsFile)
}

// Load reads the settings, falling back to the legacy file and then to
// defaults. Environment overrides are applied and the value is normalised.
func (s *Store) Load() (*Config, error) {
	cfg, err := s.read()
	if err != nil {
		return nil, err
	}

	cfg.ApplyEnv()
	cfg.Normalize()

	return cfg, nil
}

func (s *Store) read() (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(s.Path())

	switch {
	case err == nil:
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", s.Path(), err)
		}
	case errors.Is(err, fs.ErrNotExist):
		if err := s.loadLegacy(cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("failed to read %s: %w", s.Path(), err)
	}

	return cfg, nil
}

// Save writes the configuration as TOML, replacing the file atomically.
func (s *Store) Save(cfg *Config) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}

	// #nosec G301 - settings directory is user owned
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	tmp := s.Path() + ".tmp"

	// #nosec G306 - settings carry no secrets beyond an optional proxy URL
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write settings: %w", err)
	}

	if err := os.Rename(tmp, s.Path()); err != nil {
		_ = os.Remove(tmp)

		return fmt.Errorf("failed to replace settings: %w", err)
	}

	return nil
}

// Update reads the persisted settings, applies fn and saves the result.
// Environment overrides are not written back.
func (s *Store) Update(fn func(*Config) error) (*Config, error) {
	cfg, err := s.read()
	if err != nil {
		return nil, err
	}

	if err := fn(cfg); err != nil {
		return nil, err
	}

	cfg.Normalize()

	if err := s.Save(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (s *Store) loadLegacy(cfg *Config) error {
	// #nosec G304 - path is derived from the settings directory
	data, err := os.ReadFile(s.LegacyPath())
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to read %s: %w", s.LegacyPath(), err)
	}

	ApplyLegacy(cfg, ParseLegacy(data))

	return nil
}

// ParseLegacy parses newline-delimited "key: value" pairs. Values may contain
// further colons and environment references.
func ParseLegacy(data []byte) map[string]string {
	values := make(map[string]string)

	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}

		key = strings.ToLower(strings.TrimSpace(key))
		key = strings.ReplaceAll(key, "_", "")
		values[key] = os.ExpandEnv(strings.TrimSpace(value))
	}

	return values
}

// ApplyLegacy copies parsed legacy values onto cfg.
func ApplyLegacy(cfg *Config, values map[string]string) {
	set := func(key string, dst *string) {
		if v, ok := values[key]; ok && v != "" {
			*dst = v
		}
	}

	set("root", &cfg.Root)
	set("symlink", &cfg.Symlink)
	set("arch", &cfg.Arch)
	set("proxy", &cfg.Proxy)
	set("originalpath", &cfg.OriginalPath)
	set("originalversion", &cfg.OriginalVersion)
	set("nodemirror", &cfg.NodeMirror)
	set("npmmirror", &cfg.NPMMirror)

	if v, ok := values["verifyssl"]; ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.VerifyTLS = b
		}
	}
}
