// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/janderssonse/nvmw/internal/console"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// ErrNotTerminal is returned when an interactive picker has no terminal.
	ErrNotTerminal = errors.New("an interactive terminal is required")
	// ErrAborted is returned when the user leaves the picker.
	ErrAborted = errors.New("selection aborted")
)

func activeStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86"))
}

// TerminalChooser asks with a huh select on the controlling terminal.
type TerminalChooser struct{}

// Choose shows options with current preselected and returns the pick.
func (TerminalChooser) Choose(ctx context.Context, title string, options []string, current int) (int, error) {
	if !console.IsTTY(os.Stdin) || !console.IsTTY(os.Stdout) {
		return 0, fmt.Errorf("%w: use 'nvmw use <version>' instead", ErrNotTerminal)
	}

	selected := current
	choices := make([]huh.Option[int], len(options))

	for i, option := range options {
		choices[i] = huh.NewOption(option, i)
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title(title).
				Options(choices...).
				Height(12).
				Value(&selected),
		),
	)

	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return 0, ErrAborted
		}

		return 0, err
	}

	return selected, nil
}

// titleName title-cases an LTS code name.
func titleName(name string) string {
	return cases.Title(language.English).String(name)
}
