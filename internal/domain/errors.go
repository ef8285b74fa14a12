// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Resolution errors.
var (
	ErrEmptyVersion        = errors.New("version is required")
	ErrInvalidArch         = errors.New("invalid architecture")
	ErrUnrecognizedVersion = errors.New("unrecognized version")
	ErrNoInstalledVersions = errors.New("no installed versions")
)

// Availability errors.
var (
	ErrNotYetReleased     = errors.New("version has not been released yet")
	ErrArchUnavailable    = errors.New("architecture not available for version")
	ErrVersionUnavailable = errors.New("version not available")
)

// Network errors.
var (
	ErrNetworkFailure    = errors.New("network failure")
	ErrHTTPStatus        = errors.New("unexpected HTTP status")
	ErrTooManyRedirects  = errors.New("too many redirects")
	ErrRedirectFailure   = errors.New("redirect could not be followed")
	ErrRelocationFailed  = errors.New("package manager relocation failed")
	ErrPackageManagerBin = errors.New("package manager archive has no bin directory")
)

// Filesystem, protocol and locking errors.
var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrAlreadyExists    = errors.New("already exists")
	ErrNotInstalled     = errors.New("not installed")
	ErrPathMissing      = errors.New("path does not exist")
	ErrHelper           = errors.New("filesystem helper error")
	ErrLocked           = errors.New("another nvmw process holds the root lock")
	ErrNoActiveVersion  = errors.New("no active version")
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

// NewExitError creates an ExitError with the specified code and message.
func NewExitError(code int, message string, err error) *ExitError {
	return &ExitError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}

	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ErrorInfo provides user-friendly error information.
type ErrorInfo struct {
	Message     string   // User-friendly message
	Suggestions []string // Actionable suggestions
	ShowDetails bool     // Whether to show technical details
	Known       bool     // Error matched a domain sentinel and its text is meant for users
}

type sentinelMatcher struct {
	target  error
	message string
	hints   []string
}

type patternMatcher struct {
	patterns []string
	message  string
	hints    []string
}

func sentinelMatchers() []sentinelMatcher {
	return []sentinelMatcher{
		{ErrLocked, "Another nvmw command is running", []string{"Wait for it to finish and try again"}},
		{ErrNotYetReleased, "That version has not been released yet", []string{"Run 'nvmw list available' to see published versions"}},
		{ErrArchUnavailable, "No build exists for that architecture", []string{"Try the other architecture: 32 or 64"}},
		{ErrVersionUnavailable, "Version not found in the remote index", []string{"Run 'nvmw list available' to see published versions"}},
		{ErrUnrecognizedVersion, "Version could not be resolved", []string{"Use a full version such as 20.11.1, or an alias: latest, lts, newest"}},
		{ErrInvalidArch, "Invalid architecture", []string{"Use 32, 64 or all"}},
		{ErrNoActiveVersion, "No version is active", []string{"Activate one with: nvmw use <version>"}},
		{ErrNoInstalledVersions, "No versions installed", []string{"Install one first: nvmw install lts"}},
		{ErrNotInstalled, "Version is not installed", []string{"Run 'nvmw list' to see installed versions"}},
		{ErrTooManyRedirects, "Download redirected too many times", []string{"Check the configured mirror: nvmw node_mirror"}},
		{ErrHTTPStatus, "Download failed", []string{"Check the configured mirror: nvmw node_mirror", "Try again in a few moments"}},
		{ErrRelocationFailed, "Could not move npm into place", []string{"Close programs using the install directory and retry"}},
		{ErrHelper, "Filesystem helper failed", []string{"Check that 'nvmw helper' is running with enough privileges"}},
		{ErrPermissionDenied, "Permission denied", []string{"Run from an elevated shell", "Enable the filesystem helper with use_helper = true"}},
		{ErrNetworkFailure, "Network connection failed", []string{"Check your internet connection", "Check the proxy setting: nvmw proxy"}},
	}
}

func patternMatchers() []patternMatcher {
	return []patternMatcher{
		{[]string{"permission", "denied", "access is denied"}, "Permission denied", []string{"Run from an elevated shell"}},
		{[]string{"network", "connection", "timeout", "no such host"}, "Network connection failed", []string{"Check your internet connection", "Try again in a few moments"}},
		{[]string{"not found", "no such file"}, "Not found", []string{"Check the path and version"}},
	}
}

// GetErrorInfo analyzes an error and returns user-friendly information.
func GetErrorInfo(err error, verbose bool) ErrorInfo {
	if err == nil {
		return ErrorInfo{}
	}

	for _, m := range sentinelMatchers() {
		if errors.Is(err, m.target) {
			return ErrorInfo{Message: m.message, Suggestions: m.hints, ShowDetails: verbose, Known: true}
		}
	}

	errStr := strings.ToLower(err.Error())

	for _, m := range patternMatchers() {
		for _, pattern := range m.patterns {
			if strings.Contains(errStr, pattern) {
				return ErrorInfo{Message: m.message, Suggestions: m.hints, ShowDetails: verbose}
			}
		}
	}

	return ErrorInfo{
		Message:     "Operation failed",
		Suggestions: []string{"Run with --verbose for more details"},
		ShowDetails: verbose,
	}
}

// FormatErrorMessage formats an error for display. The subject, when set,
// names what was being worked on ("install 20.11.1").
func FormatErrorMessage(err error, subject string, verbose bool) string {
	info := GetErrorInfo(err, verbose)

	var result strings.Builder

	result.WriteString("✗ ")

	if subject != "" {
		result.WriteString("Failed to ")
		result.WriteString(subject)
		result.WriteString(": ")
	}

	result.WriteString(info.Message)

	if info.Known && !info.ShowDetails {
		result.WriteString(" (")
		result.WriteString(err.Error())
		result.WriteString(")")
	}

	if info.ShowDetails && err != nil {
		result.WriteString("\n  Technical details: ")
		result.WriteString(err.Error())
	}

	if len(info.Suggestions) > 0 {
		if verbose {
			result.WriteString("\n  Suggestions:")

			for _, suggestion := range info.Suggestions {
				result.WriteString("\n    • ")
				result.WriteString(suggestion)
			}
		} else {
			result.WriteString("\n  ")
			result.WriteString(info.Suggestions[0])
		}
	}

	return result.String()
}
