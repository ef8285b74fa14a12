// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/janderssonse/nvmw/internal/domain"
	"github.com/stretchr/testify/assert"
)

// TestExitErrorFormatting tests that ExitError properly formats messages.
func TestExitErrorFormatting(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name            string
		exitError       *domain.ExitError
		expectedCode    int
		expectedMessage string
	}{
		{
			name: "exit error with underlying error",
			exitError: domain.NewExitError(1, "Operation failed",
				errors.New("permission denied")),
			expectedCode:    1,
			expectedMessage: "Operation failed: permission denied",
		},
		{
			name:            "exit error without underlying error",
			exitError:       domain.NewExitError(2, "Invalid configuration", nil),
			expectedCode:    2,
			expectedMessage: "Invalid configuration",
		},
		{
			name: "exit error with network failure",
			exitError: domain.NewExitError(11, "Download failed",
				domain.ErrNetworkFailure),
			expectedCode:    11,
			expectedMessage: "Download failed: network failure",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expectedMessage, tc.exitError.Error())
			assert.Equal(t, tc.expectedCode, tc.exitError.Code)
		})
	}
}

func TestExitErrorUnwrap(t *testing.T) {
	t.Parallel()

	err := domain.NewExitError(25, "locked", domain.ErrLocked)

	assert.ErrorIs(t, err, domain.ErrLocked)
}

// TestFormatErrorMessage tests user-friendly error formatting.
func TestFormatErrorMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		err              error
		subject          string
		verbose          bool
		shouldContain    []string
		shouldNotContain []string
	}{
		{
			name:    "wrapped sentinel shows its message inline",
			err:     fmt.Errorf("%w: v99.0.0", domain.ErrNotYetReleased),
			subject: "install 99",
			shouldContain: []string{
				"Failed to install 99",
				"That version has not been released yet",
				"v99.0.0",
				"nvmw list available",
			},
			shouldNotContain: []string{"Technical details"},
		},
		{
			name:    "not installed suggests list",
			err:     fmt.Errorf("%w: v18.0.0 64-bit", domain.ErrNotInstalled),
			subject: "use 18",
			shouldContain: []string{
				"Version is not installed",
				"nvmw list",
			},
		},
		{
			name:    "permission error verbose",
			err:     fmt.Errorf("create link: %w", domain.ErrPermissionDenied),
			verbose: true,
			shouldContain: []string{
				"Permission denied",
				"Technical details",
				"Suggestions:",
				"use_helper",
			},
		},
		{
			name: "plain network text is categorized",
			err:  errors.New("dial tcp: connection refused"),
			shouldContain: []string{
				"Network connection failed",
				"Check your internet connection",
			},
			shouldNotContain: []string{"dial tcp"},
		},
		{
			name: "generic error non-verbose hides details",
			err:  errors.New("unexpected error occurred"),
			shouldContain: []string{
				"Operation failed",
				"Run with --verbose for more details",
			},
			shouldNotContain: []string{"unexpected error occurred"},
		},
		{
			name:    "generic error verbose",
			err:     errors.New("unexpected error occurred"),
			verbose: true,
			shouldContain: []string{
				"Operation failed",
				"Technical details",
				"unexpected error occurred",
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			result := domain.FormatErrorMessage(tc.err, tc.subject, tc.verbose)

			for _, expected := range tc.shouldContain {
				assert.Contains(t, result, expected)
			}

			for _, unexpected := range tc.shouldNotContain {
				assert.NotContains(t, result, unexpected)
			}
		})
	}
}

func TestGetErrorInfoPrefersSentinels(t *testing.T) {
	t.Parallel()

	// The message mentions "connection" but the wrapped sentinel wins.
	err := fmt.Errorf("helper connection: %w", domain.ErrHelper)

	info := domain.GetErrorInfo(err, false)

	assert.Equal(t, "Filesystem helper failed", info.Message)
	assert.True(t, info.Known)
	assert.Equal(t, domain.ErrorInfo{}, domain.GetErrorInfo(nil, true))
}
