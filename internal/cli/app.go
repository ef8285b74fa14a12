// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package cli wires the nvmw command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
	cliAdapter "github.com/janderssonse/nvmw/internal/adapters/cli"
	"github.com/janderssonse/nvmw/internal/cli/handlers"
	"github.com/janderssonse/nvmw/internal/config"
	"github.com/janderssonse/nvmw/internal/console"
	"github.com/janderssonse/nvmw/internal/domain"
	"github.com/janderssonse/nvmw/internal/install"
	"github.com/janderssonse/nvmw/internal/lock"
	"github.com/urfave/cli/v3"
)

// Exit codes follow standard Unix conventions for better scripting support.
const (
	ExitSuccess         = 0  // Operation completed successfully
	ExitGeneralError    = 1  // Generic failure (catch-all)
	ExitUsageError      = 2  // Invalid command line usage
	ExitConfigError     = 3  // Settings or root directory problem
	ExitPermissionError = 4  // Permission denied
	ExitNotFoundError   = 5  // Version or path not found
	ExitNetworkError    = 11 // Network operation failed
	ExitSystemError     = 12 // Filesystem or helper failure
	ExitInstallError    = 22 // Installation failed
	ExitLockedError     = 25 // Another nvmw process holds the root
)

// Version is the nvmw release, set at build time.
var Version = "dev" //nolint:gochecknoglobals // set by -ldflags

var (
	// ErrInvalidArgument is returned when a command argument is invalid.
	ErrInvalidArgument = errors.New("invalid argument")
)

// CLI holds the parsed global flags and the components built from them.
type CLI struct {
	app      *cli.Command
	verbose  bool
	json     bool
	quiet    bool
	insecure bool
	timeout  time.Duration

	store   *config.Store
	cfg     *config.Config
	logger  *log.Logger
	handler *handlers.BaseHandler

	writer  io.Writer
	chooser domain.Chooser
	probe   install.ProbeFunc
}

// Option customises a CLI.
type Option func(*CLI)

// WithStore reads and writes settings through store.
func WithStore(store *config.Store) Option {
	return func(c *CLI) {
		c.store = store
	}
}

// WithWriter sends command output to w instead of stdout.
func WithWriter(w io.Writer) Option {
	return func(c *CLI) {
		c.writer = w
	}
}

// WithChooser replaces the interactive picker used by switch.
func WithChooser(chooser domain.Chooser) Option {
	return func(c *CLI) {
		c.chooser = chooser
	}
}

// WithProbe replaces the executable bit-width probe.
func WithProbe(probe install.ProbeFunc) Option {
	return func(c *CLI) {
		c.probe = probe
	}
}

// WithLogger replaces the diagnostic logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *CLI) {
		c.logger = logger
	}
}

// NewCLI creates the command tree.
func NewCLI(opts ...Option) *CLI {
	app := &CLI{chooser: TerminalChooser{}}

	for _, opt := range opts {
		opt(app)
	}

	if app.store == nil {
		app.store = config.NewStore(config.GetSettingsDir())
	}

	app.app = &cli.Command{
		Name:    "nvmw",
		Usage:   "Install and switch between Node.js versions",
		Version: Version,
		Suggest: true,
		// version is a command; -v belongs to --verbose
		HideVersion: true,
		Description: `Keeps several Node.js runtimes side by side under one root directory and
points a single link at the active one.

QUICK START:
  nvmw install lts          # Install the newest long-term-support release
  nvmw use 20               # Activate the newest installed 20.x.x
  nvmw list available       # Browse published releases`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "verbose",
				Usage:       "show diagnostic messages on stderr",
				Aliases:     []string{"v"},
				Destination: &app.verbose,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output structured JSON results",
				Aliases:     []string{"j"},
				Destination: &app.json,
			},
			&cli.BoolFlag{
				Name:        "quiet",
				Usage:       "suppress non-essential output",
				Aliases:     []string{"q"},
				Destination: &app.quiet,
			},
			&cli.BoolFlag{
				Name:        "insecure",
				Usage:       "do not validate the download server's TLS certificate",
				Destination: &app.insecure,
			},
			&cli.DurationFlag{
				Name:        "timeout",
				Usage:       "timeout for network operations (0 = no timeout)",
				Value:       10 * time.Minute,
				Destination: &app.timeout,
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			return app.initConfig(ctx, cmd)
		},
		Commands:        app.createCommands(),
		CommandNotFound: app.commandNotFound,
	}

	return app
}

// Run executes the CLI application.
func (app *CLI) Run(ctx context.Context, args []string) error {
	return app.app.Run(ctx, args)
}

// App returns the root command.
func App() *cli.Command {
	return NewCLI().app
}

// initConfig loads settings and builds the shared handler.
func (app *CLI) initConfig(ctx context.Context, _ *cli.Command) (context.Context, error) {
	console.DefaultOutput.SetMode(app.verbose, app.json, false)

	if app.logger == nil {
		app.logger = console.NewLogger(os.Stderr, app.verbose)
	}

	cfg, err := app.store.Load()
	if err != nil {
		return ctx, domain.NewExitError(ExitConfigError, fmt.Sprintf("Failed to load settings from %s", app.store.Path()), err)
	}

	if app.insecure {
		cfg.VerifyTLS = false
	}

	app.cfg = cfg

	var output domain.OutputPort
	if app.writer != nil {
		format := cliAdapter.TextFormat
		if app.json {
			format = cliAdapter.JSONFormat
		}

		output = cliAdapter.NewOutputAdapterWithWriter(app.writer, format, app.quiet)
	}

	app.handler = handlers.NewBaseHandler(app.verbose, app.json, app.quiet, app.timeout, output)

	app.logger.Debug("Settings loaded", "file", app.store.Path(), "root", cfg.Root, "link", cfg.Symlink)

	return ctx, nil
}

// requireRoot fails unless the configured root directory exists.
func (app *CLI) requireRoot() error {
	if err := app.cfg.Validate(); err != nil {
		return domain.NewExitError(ExitConfigError,
			fmt.Sprintf("✗ %v\n  Set an existing directory with: nvmw root <path>", err), err)
	}

	return nil
}

// withRootLock runs fn while holding the root lock.
func (app *CLI) withRootLock(subject string, fn func() error) error {
	held, err := lock.Acquire(app.cfg.Root)
	if err != nil {
		return app.fail(err, subject)
	}

	defer func() {
		if err := held.Release(); err != nil {
			app.logger.Warn("Failed to release root lock", "error", err)
		}
	}()

	return fn()
}

// fail converts err into an ExitError carrying a readable message.
func (app *CLI) fail(err error, subject string) error {
	var exitErr *domain.ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}

	return domain.NewExitError(ExitCode(err), domain.FormatErrorMessage(err, subject, app.verbose), err)
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	var exitErr *domain.ExitError

	switch {
	case err == nil:
		return ExitSuccess
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errors.Is(err, domain.ErrLocked):
		return ExitLockedError
	case errors.Is(err, domain.ErrEmptyVersion),
		errors.Is(err, domain.ErrInvalidArch),
		errors.Is(err, ErrInvalidArgument),
		errors.Is(err, ErrNotTerminal):
		return ExitUsageError
	case errors.Is(err, config.ErrRootMissing), errors.Is(err, config.ErrInvalidFormat):
		return ExitConfigError
	case errors.Is(err, domain.ErrPermissionDenied):
		return ExitPermissionError
	case errors.Is(err, domain.ErrNotInstalled),
		errors.Is(err, domain.ErrNoInstalledVersions),
		errors.Is(err, domain.ErrUnrecognizedVersion),
		errors.Is(err, domain.ErrNotYetReleased),
		errors.Is(err, domain.ErrArchUnavailable),
		errors.Is(err, domain.ErrVersionUnavailable),
		errors.Is(err, domain.ErrNoActiveVersion),
		errors.Is(err, domain.ErrPathMissing):
		return ExitNotFoundError
	case errors.Is(err, domain.ErrNetworkFailure),
		errors.Is(err, domain.ErrHTTPStatus),
		errors.Is(err, domain.ErrTooManyRedirects),
		errors.Is(err, domain.ErrRedirectFailure):
		return ExitNetworkError
	case errors.Is(err, domain.ErrHelper), errors.Is(err, domain.ErrAlreadyExists):
		return ExitSystemError
	case errors.Is(err, domain.ErrRelocationFailed), errors.Is(err, domain.ErrPackageManagerBin):
		return ExitInstallError
	default:
		return ExitGeneralError
	}
}

// commandNotFound handles unknown commands.
func (app *CLI) commandNotFound(_ context.Context, _ *cli.Command, command string) {
	console.DefaultOutput.Errorf("'%s' is not a command.", command)
	fmt.Fprintf(os.Stderr, "\nRun 'nvmw --help' to see available commands.\n")

	os.Exit(ExitUsageError)
}
