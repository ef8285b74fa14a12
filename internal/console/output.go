// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package console provides stderr messaging and logger construction.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// OutputState writes human-facing status lines to stderr. Command results
// go through the OutputPort instead.
type OutputState struct {
	Verbose bool
	JSON    bool
	Plain   bool
	Writer  io.Writer
}

// DefaultOutput provides output formatting utilities.
var DefaultOutput = &OutputState{} //nolint:gochecknoglobals

// SetMode configures output mode.
func (o *OutputState) SetMode(verbose, json, plain bool) {
	o.Verbose = verbose
	o.JSON = json
	o.Plain = plain
}

func (o *OutputState) writer() io.Writer {
	if o.Writer != nil {
		return o.Writer
	}

	return os.Stderr
}

// IsTTY checks if output is going to a terminal (not piped/redirected).
func IsTTY(f *os.File) bool {
	return term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// ColorEnabled reports whether ANSI styling should be used on stdout.
func ColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" || os.Getenv("TERM") == "dumb" {
		return false
	}

	return IsTTY(os.Stdout)
}

// Errorf writes error messages (always visible).
func (o *OutputState) Errorf(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)

	if o.Plain || o.JSON {
		_, _ = fmt.Fprintf(o.writer(), "error: %s\n", strings.TrimPrefix(msg, "✗ "))

		return
	}

	if !strings.HasPrefix(msg, "✗") {
		msg = "✗ " + msg
	}

	_, _ = fmt.Fprintln(o.writer(), msg)
}
