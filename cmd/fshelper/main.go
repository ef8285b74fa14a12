// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package main runs the nvmw filesystem helper as a standalone daemon, for
// installations where link changes need elevated rights.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/janderssonse/nvmw/internal/config"
	"github.com/janderssonse/nvmw/internal/console"
	"github.com/janderssonse/nvmw/internal/fshelper"
	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		addr    string
		verbose bool
	)

	cmd := &cli.Command{
		Name:  "nvmw-fshelper",
		Usage: "Serve nvmw link and directory requests over UDP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address, defaults to helper_addr from the nvmw settings",
				Destination: &addr,
			},
			&cli.BoolFlag{
				Name:        "verbose",
				Aliases:     []string{"v"},
				Usage:       "log every request",
				Destination: &verbose,
			},
		},
		Action: func(ctx context.Context, _ *cli.Command) error {
			if addr == "" {
				cfg, err := config.NewStore(config.GetSettingsDir()).Load()
				if err != nil {
					return fmt.Errorf("failed to load settings: %w", err)
				}

				addr = cfg.HelperAddr
			}

			return fshelper.NewServer(addr, console.NewDaemonLogger(os.Stderr, verbose)).Serve(ctx)
		},
	}

	if err := cmd.Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1) //nolint:gocritic // stop already ran
	}
}
