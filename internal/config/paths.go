// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package config

import (
	"os"
	"path/filepath"
	"strings"
)

// SettingsFile is the TOML settings file name.
const SettingsFile = "settings.toml"

// LegacySettingsFile is the key: value settings file read when no TOML
// settings exist yet.
const LegacySettingsFile = "settings.txt"

// GetSettingsDir returns the directory holding the settings file.
func GetSettingsDir() string {
	return GetSettingsDirWithEnv(os.Getenv("NVMW_HOME"), os.Getenv("XDG_CONFIG_HOME"))
}

// GetSettingsDirWithEnv returns the settings directory with custom environment overrides for testing.
func GetSettingsDirWithEnv(nvmwHome, xdgConfigHome string) string {
	if nvmwHome != "" {
		return nvmwHome
	}

	return filepath.Join(GetXDGConfigHomeWithEnv(xdgConfigHome), "nvmw")
}

// GetXDGConfigHomeWithEnv returns XDG config directory with custom environment override for testing.
func GetXDGConfigHomeWithEnv(xdgConfigHome string) string {
	if xdgConfigHome != "" {
		return xdgConfigHome
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".config")
	}

	return ""
}

// GetXDGDataHomeWithEnv returns XDG data directory with custom environment override for testing.
func GetXDGDataHomeWithEnv(xdgDataHome string) string {
	if xdgDataHome != "" {
		return xdgDataHome
	}

	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share")
	}

	return ""
}

// DefaultRoot returns the directory versions are installed under when no
// root is configured.
func DefaultRoot() string {
	return filepath.Join(GetXDGDataHomeWithEnv(os.Getenv("XDG_DATA_HOME")), "nvmw")
}

// ExpandPath expands ~ and environment variables.
func ExpandPath(path string) string {
	if path == "" {
		return ""
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}

	return filepath.Clean(os.ExpandEnv(path))
}
