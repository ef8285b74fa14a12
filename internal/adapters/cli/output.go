// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package cli provides output adapters for CLI operations.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/janderssonse/nvmw/internal/domain"
)

// OutputAdapter implements domain.OutputPort for CLI output.
type OutputAdapter struct {
	writer io.Writer
	format OutputFormat
	quiet  bool
	styled bool
}

// OutputFormat represents the output format type.
type OutputFormat int

const (
	// TextFormat outputs human-readable text.
	TextFormat OutputFormat = iota
	// JSONFormat outputs machine-readable JSON.
	JSONFormat
)

// NewOutputAdapter creates an output adapter writing to stdout.
func NewOutputAdapter(format OutputFormat, quiet, styled bool) *OutputAdapter {
	return &OutputAdapter{
		writer: os.Stdout,
		format: format,
		quiet:  quiet,
		styled: styled,
	}
}

// NewOutputAdapterWithWriter creates a new output adapter with a custom writer for testing.
func NewOutputAdapterWithWriter(writer io.Writer, format OutputFormat, quiet bool) *OutputAdapter {
	return &OutputAdapter{
		writer: writer,
		format: format,
		quiet:  quiet,
	}
}

// Success outputs a success message with optional structured data.
func (o *OutputAdapter) Success(message string, data interface{}) error {
	if o.format == JSONFormat && data != nil {
		return o.outputJSON(data)
	}

	if message != "" && !o.quiet {
		_, _ = fmt.Fprintln(o.writer, message)
	}

	return nil
}

// Error outputs an error message.
func (o *OutputAdapter) Error(message string) error {
	if o.format == JSONFormat {
		return o.outputJSON(map[string]string{"error": message})
	}

	if o.quiet {
		return nil
	}

	_, _ = fmt.Fprintf(o.writer, "Error: %s\n", message)

	return nil
}

// Info outputs an informational message.
func (o *OutputAdapter) Info(message string) error {
	if o.quiet {
		return nil
	}

	if o.format == JSONFormat {
		return o.outputJSON(map[string]string{"info": message})
	}

	_, _ = fmt.Fprintln(o.writer, message)

	return nil
}

// Progress outputs progress information for long-running operations.
func (o *OutputAdapter) Progress(message string) error {
	if o.quiet || o.format == JSONFormat {
		return nil
	}

	_, _ = fmt.Fprintln(o.writer, message)

	return nil
}

// Table outputs tabular data.
func (o *OutputAdapter) Table(headers []string, rows [][]string) error {
	if o.format == JSONFormat {
		return o.outputJSON(map[string]interface{}{
			"headers": headers,
			"rows":    rows,
		})
	}

	if o.quiet {
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...)

	if o.styled {
		header := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86")).Padding(0, 1)
		cell := lipgloss.NewStyle().Padding(0, 1)

		t = t.BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("63"))).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return header
				}

				return cell
			})
	} else {
		cell := lipgloss.NewStyle().Padding(0, 1)
		t = t.StyleFunc(func(_, _ int) lipgloss.Style { return cell })
	}

	_, _ = fmt.Fprintln(o.writer, t.Render())

	return nil
}

// IsQuiet returns true if output should be suppressed.
func (o *OutputAdapter) IsQuiet() bool {
	return o.quiet
}

// outputJSON outputs data as JSON.
func (o *OutputAdapter) outputJSON(data interface{}) error {
	encoder := json.NewEncoder(o.writer)
	encoder.SetIndent("", "  ")

	return encoder.Encode(data)
}

// OutputFromFlags creates an OutputAdapter from the global CLI flags.
func OutputFromFlags(jsonFlag, quietFlag, styled bool) domain.OutputPort {
	format := TextFormat
	if jsonFlag {
		format = JSONFormat
	}

	return NewOutputAdapter(format, quietFlag, styled)
}
