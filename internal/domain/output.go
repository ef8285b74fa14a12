// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package domain

import "time"

// OutputPort defines the interface for presenting command results.
// This is a domain port that adapters implement for different output formats.
type OutputPort interface {
	// Success outputs a success message with optional structured data
	Success(message string, data interface{}) error

	// Error outputs an error message
	Error(message string) error

	// Info outputs an informational message
	Info(message string) error

	// Progress outputs progress information for long-running operations
	Progress(message string) error

	// Table outputs tabular data
	Table(headers []string, rows [][]string) error

	// IsQuiet returns true if output should be suppressed
	IsQuiet() bool
}

// InstallOutcome represents the result of an install.
type InstallOutcome struct {
	Version          string        `json:"version"`
	Arch             string        `json:"arch"`
	Path             string        `json:"path"`
	NPM              string        `json:"npm,omitempty"`
	AlreadyInstalled bool          `json:"already_installed"`
	Installed        []string      `json:"installed_arches,omitempty"`
	Duration         time.Duration `json:"duration"`
	Timestamp        time.Time     `json:"timestamp"`
}

// UninstallOutcome represents the result of an uninstall.
type UninstallOutcome struct {
	Version     string    `json:"version"`
	Path        string    `json:"path"`
	Deactivated bool      `json:"deactivated"`
	Timestamp   time.Time `json:"timestamp"`
}

// ActivationOutcome represents the result of making a version active.
type ActivationOutcome struct {
	Version   string    `json:"version"`
	Arch      string    `json:"arch"`
	Link      string    `json:"link"`
	Target    string    `json:"target"`
	Retried   bool      `json:"retried,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// InstalledEntry describes one installed version in listings.
type InstalledEntry struct {
	Version string `json:"version"`
	Active  bool   `json:"active"`
	Arch    string `json:"arch,omitempty"`
}

// ListResult represents installed versions.
type ListResult struct {
	Versions  []InstalledEntry `json:"versions"`
	Total     int              `json:"total"`
	Timestamp time.Time        `json:"timestamp"`
}

// AvailableResult represents the remote release listing grouped by channel.
type AvailableResult struct {
	Current     []string  `json:"current"`
	LTS         []string  `json:"lts"`
	OldStable   []string  `json:"old_stable"`
	OldUnstable []string  `json:"old_unstable"`
	Timestamp   time.Time `json:"timestamp"`
}

// SettingResult represents a configuration value shown or changed.
type SettingResult struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Changed bool   `json:"changed"`
}
