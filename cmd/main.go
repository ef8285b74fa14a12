// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package main provides the CLI entry point for nvmw.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/janderssonse/nvmw/internal/cli"
	"github.com/janderssonse/nvmw/internal/domain"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Interrupts cancel downloads and the helper loop; the root lock is
	// released by the deferred unlock in the command.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewCLI().Run(ctx, os.Args); err != nil {
		exitErr := &domain.ExitError{}
		if errors.As(err, &exitErr) {
			fmt.Fprintf(os.Stderr, "%s\n", exitErr.Message)

			return exitErr.Code
		}

		// flag parsing and other framework errors
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)

		return cli.ExitCode(err)
	}

	return cli.ExitSuccess
}
