// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package console

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// NewLogger builds the diagnostic logger. Debug output is enabled by verbose.
func NewLogger(w io.Writer, verbose bool) *log.Logger {
	level := log.InfoLevel
	if verbose {
		level = log.DebugLevel
	}

	return log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: false,
		Prefix:          "nvmw",
	})
}

// NewDaemonLogger builds the timestamped logger used by the filesystem helper.
func NewDaemonLogger(w io.Writer, verbose bool) *log.Logger {
	logger := NewLogger(w, verbose)
	logger.SetReportTimestamp(true)
	logger.SetTimeFormat(time.DateTime)
	logger.SetPrefix("nvmw-helper")

	return logger
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}

// OrDiscard returns logger, or a discarding logger when it is nil.
func OrDiscard(logger *log.Logger) *log.Logger {
	if logger == nil {
		return Discard()
	}

	return logger
}
