// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/janderssonse/nvmw/internal/activation"
	"github.com/janderssonse/nvmw/internal/config"
	"github.com/janderssonse/nvmw/internal/console"
	"github.com/janderssonse/nvmw/internal/domain"
	"github.com/janderssonse/nvmw/internal/fshelper"
	"github.com/janderssonse/nvmw/internal/remote"
	"github.com/urfave/cli/v3"
)

// availableRows is the number of releases shown per channel.
const availableRows = 20

func (app *CLI) createCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:      "install",
			Usage:     "Install a Node.js version",
			ArgsUsage: "<version> [32|64|all]",
			Description: `The version can be a full or partial version number, "latest" or "node" for
the newest current release, "lts" for the newest long-term-support release, or
an LTS code name such as "iron". The width defaults to the configured arch;
"all" installs both.`,
			Action: app.runInstall,
		},
		{
			Name:      "uninstall",
			Usage:     "Remove an installed version",
			ArgsUsage: "<version>",
			Action:    app.runUninstall,
		},
		{
			Name:      "use",
			Usage:     "Activate an installed version",
			ArgsUsage: "<version|newest|32|64> [32|64]",
			Description: `"newest" is the newest installed version. "nvmw use 32" or "nvmw use 64"
keeps the active version and switches its executable width.`,
			Action: app.runUse,
		},
		{
			Name:      "switch",
			Aliases:   []string{"sw"},
			Usage:     "Pick the active version interactively",
			ArgsUsage: "[32|64]",
			Action:    app.runSwitch,
		},
		{
			Name:      "list",
			Aliases:   []string{"ls"},
			Usage:     "List installed or available versions",
			ArgsUsage: "[installed|available]",
			Action:    app.runList,
		},
		{
			Name:   "current",
			Usage:  "Show the active version",
			Action: app.runCurrent,
		},
		{
			Name:   "on",
			Usage:  "Activate the newest installed version",
			Action: app.runOn,
		},
		{
			Name:   "off",
			Usage:  "Remove the active link",
			Action: app.runOff,
		},
		{
			Name:      "root",
			Usage:     "Show or set the directory versions are installed under",
			ArgsUsage: "[path]",
			Action:    app.runRoot,
		},
		{
			Name:      "arch",
			Usage:     "Show or set the default width",
			ArgsUsage: "[32|64]",
			Action:    app.runArch,
		},
		{
			Name:      "proxy",
			Usage:     "Show or set the download proxy",
			ArgsUsage: "[url|none]",
			Action:    app.runProxy,
		},
		{
			Name:      "node_mirror",
			Usage:     "Set the Node.js mirror, blank restores " + config.DefaultNodeMirror,
			ArgsUsage: "[url]",
			Action:    app.runNodeMirror,
		},
		{
			Name:      "npm_mirror",
			Usage:     "Set the npm mirror, blank restores " + config.DefaultNPMMirror,
			ArgsUsage: "[url]",
			Action:    app.runNPMMirror,
		},
		{
			Name:   "helper",
			Usage:  "Run the privileged filesystem helper in the foreground",
			Action: app.runHelper,
		},
		{
			Name:   "version",
			Usage:  "Show version information",
			Action: app.runVersion,
		},
	}
}

func usageError(message string) error {
	return domain.NewExitError(ExitUsageError, message, ErrInvalidArgument)
}

func archLabel(arch domain.Arch) string {
	if arch == "" {
		return "unknown"
	}

	return arch.String()
}

// prepare checks the root and builds the services for a command.
func (app *CLI) prepare() (*services, error) {
	if err := app.requireRoot(); err != nil {
		return nil, err
	}

	return app.services()
}

func (app *CLI) runInstall(ctx context.Context, cmd *cli.Command) error {
	token, archHint := cmd.Args().Get(0), cmd.Args().Get(1)
	if strings.TrimSpace(token) == "" {
		return usageError("Provide the version you want to install. Example: nvmw install lts")
	}

	svc, err := app.prepare()
	if err != nil {
		return err
	}

	ctx, cancel := app.handler.WithTimeout(ctx)
	defer cancel()

	output := app.handler.GetOutput()
	subject := "install " + token

	if !app.cfg.VerifyTLS {
		_ = output.Info("WARNING: The remote SSL certificate will not be validated during the download process.")
	}

	_ = output.Progress(fmt.Sprintf("Installing node %s...", token))

	var outcome *domain.InstallOutcome

	err = app.withRootLock(subject, func() error {
		outcome, err = svc.installer.Install(ctx, token, archHint)

		return err
	})
	if err != nil {
		return app.fail(err, subject)
	}

	if outcome.AlreadyInstalled {
		return output.Success(fmt.Sprintf("Version %s is already installed.", outcome.Version), outcome)
	}

	var msg strings.Builder

	fmt.Fprintf(&msg, "✓ Installed node v%s (%s-bit) in %s", outcome.Version, strings.Join(outcome.Installed, "/"), outcome.Duration.Round(100*time.Millisecond))

	if outcome.NPM != "" {
		fmt.Fprintf(&msg, "\n✓ npm v%s installed successfully.", outcome.NPM)
	}

	fmt.Fprintf(&msg, "\n\nInstallation complete. If you want to use this version, type\n\n  nvmw use %s", outcome.Version)

	return output.Success(msg.String(), outcome)
}

func (app *CLI) runUninstall(ctx context.Context, cmd *cli.Command) error {
	token := cmd.Args().Get(0)
	if strings.TrimSpace(token) == "" {
		return usageError("Provide the version you want to uninstall.")
	}

	svc, err := app.prepare()
	if err != nil {
		return err
	}

	ctx, cancel := app.handler.WithTimeout(ctx)
	defer cancel()

	output := app.handler.GetOutput()
	subject := "uninstall " + token

	_ = output.Progress(fmt.Sprintf("Uninstalling node %s...", token))

	var outcome *domain.UninstallOutcome

	err = app.withRootLock(subject, func() error {
		outcome, err = svc.installer.Uninstall(ctx, token)

		return err
	})
	if err != nil {
		return app.fail(err, subject)
	}

	msg := fmt.Sprintf("✓ Uninstalled node v%s", outcome.Version)
	if outcome.Deactivated {
		msg += "\n  It was the active version. Run 'nvmw use <version>' to pick another."
	}

	return output.Success(msg, outcome)
}

func (app *CLI) runUse(ctx context.Context, cmd *cli.Command) error {
	token, archHint := cmd.Args().Get(0), cmd.Args().Get(1)
	if strings.TrimSpace(token) == "" {
		return usageError("Provide the version you want to use. Example: nvmw use 20.11.1")
	}

	svc, err := app.prepare()
	if err != nil {
		return err
	}

	ctx, cancel := app.handler.WithTimeout(ctx)
	defer cancel()

	subject := "use " + token

	var outcome *domain.ActivationOutcome

	err = app.withRootLock(subject, func() error {
		outcome, err = svc.activation.Activate(ctx, token, archHint)

		return err
	})
	if err != nil {
		return app.fail(err, subject)
	}

	return app.handler.GetOutput().Success(fmt.Sprintf("Now using node v%s (%s-bit)", outcome.Version, outcome.Arch), outcome)
}

func (app *CLI) runSwitch(ctx context.Context, cmd *cli.Command) error {
	archHint := cmd.Args().Get(0)

	svc, err := app.prepare()
	if err != nil {
		return err
	}

	output := app.handler.GetOutput()

	var outcome *domain.ActivationOutcome

	err = app.withRootLock("switch", func() error {
		outcome, err = svc.activation.Switch(ctx, archHint, app.chooser)

		return err
	})

	switch {
	case errors.Is(err, activation.ErrNoSelection):
		v, arch, _, activeErr := svc.activation.Active()
		if activeErr != nil || v == nil {
			return nil //nolint:nilerr // nothing changed and nothing to report
		}

		return output.Success(fmt.Sprintf("Now using node %s (%s-bit)", domain.VersionTag(v), archLabel(arch)), nil)
	case errors.Is(err, ErrAborted):
		return domain.NewExitError(ExitGeneralError, "Selection aborted", err)
	case err != nil:
		return app.fail(err, "switch")
	}

	return output.Success(fmt.Sprintf("Now using node v%s (%s-bit)", outcome.Version, outcome.Arch), outcome)
}

func (app *CLI) runList(ctx context.Context, cmd *cli.Command) error {
	switch kind := cmd.Args().Get(0); kind {
	case "", "installed":
		return app.listInstalled()
	case "available":
		return app.listAvailable(ctx)
	default:
		return usageError("Invalid list option.\n\nPlease use one of the following:\n  - nvmw list\n  - nvmw list installed\n  - nvmw list available")
	}
}

func (app *CLI) listInstalled() error {
	svc, err := app.prepare()
	if err != nil {
		return err
	}

	versions, err := svc.layout.Installed()
	if err != nil {
		return app.fail(err, "list installed versions")
	}

	active, arch, _, err := svc.activation.Active()
	if err != nil {
		app.logger.Debug("Cannot read active version", "error", err)
	}

	result := domain.ListResult{
		Versions:  make([]domain.InstalledEntry, 0, len(versions)),
		Total:     len(versions),
		Timestamp: time.Now(),
	}

	if len(versions) == 0 {
		return app.handler.GetOutput().Success("No installations recognized.", result)
	}

	lines := make([]string, 0, len(versions))

	for _, v := range versions {
		entry := domain.InstalledEntry{Version: v.String()}

		if active != nil && v.Equal(active) {
			entry.Active = true
			entry.Arch = arch.String()

			line := fmt.Sprintf("  * %s (Currently using %s-bit executable)", v, archLabel(arch))
			if app.handler.Styled() {
				line = activeStyle().Render(line)
			}

			lines = append(lines, line)
		} else {
			lines = append(lines, "    "+v.String())
		}

		result.Versions = append(result.Versions, entry)
	}

	return app.handler.GetOutput().Success(strings.Join(lines, "\n"), result)
}

func (app *CLI) listAvailable(ctx context.Context) error {
	svc, err := app.services()
	if err != nil {
		return err
	}

	ctx, cancel := app.handler.WithTimeout(ctx)
	defer cancel()

	releases, err := svc.index.Releases(ctx)
	if err != nil {
		return app.fail(err, "list available versions")
	}

	groups := remote.Group(releases)
	columns := [][]string{
		releaseNames(groups.Current, false),
		releaseNames(groups.LTS, true),
		releaseNames(groups.OldStable, false),
		releaseNames(groups.OldUnstable, false),
	}

	output := app.handler.GetOutput()

	if app.json {
		return output.Success("", domain.AvailableResult{
			Current:     columns[0],
			LTS:         columns[1],
			OldStable:   columns[2],
			OldUnstable: columns[3],
			Timestamp:   time.Now(),
		})
	}

	rows := make([][]string, groups.Rows(availableRows))
	for i := range rows {
		rows[i] = make([]string, len(columns))
		for c, column := range columns {
			if i < len(column) {
				rows[i][c] = column[i]
			}
		}
	}

	headers := []string{
		domain.ChannelCurrent.String(),
		domain.ChannelLTS.String(),
		domain.ChannelOldStable.String(),
		domain.ChannelOldUnstable.String(),
	}

	if err := output.Table(headers, rows); err != nil {
		return err
	}

	return output.Info("The complete list of available versions can be found at " + svc.index.IndexURL())
}

// releaseNames renders up to availableRows versions, LTS ones with their
// title-cased code name.
func releaseNames(releases []domain.Release, withCodename bool) []string {
	names := make([]string, 0, min(len(releases), availableRows))

	for _, r := range releases {
		if len(names) == availableRows {
			break
		}

		v, err := r.SemVer()
		if err != nil {
			continue
		}

		name := v.String()
		if withCodename && r.IsLTS() {
			name += " (" + titleName(r.LTS.Name) + ")"
		}

		names = append(names, name)
	}

	return names
}

func (app *CLI) runCurrent(_ context.Context, _ *cli.Command) error {
	svc, err := app.services()
	if err != nil {
		return err
	}

	v, arch, ok, err := svc.activation.Active()
	if err != nil {
		return app.fail(err, "read the active version")
	}

	output := app.handler.GetOutput()

	if !ok {
		return output.Info("No current version. Run 'nvmw use x.x.x' to set a version.")
	}

	return output.Success(domain.VersionTag(v), domain.InstalledEntry{Version: v.String(), Active: true, Arch: arch.String()})
}

func (app *CLI) runOn(ctx context.Context, _ *cli.Command) error {
	svc, err := app.prepare()
	if err != nil {
		return err
	}

	var outcome *domain.ActivationOutcome

	err = app.withRootLock("enable nvmw", func() error {
		outcome, err = svc.activation.Enable(ctx, "")

		return err
	})
	if err != nil {
		return app.fail(err, "enable nvmw")
	}

	return app.handler.GetOutput().Success(fmt.Sprintf("nvmw enabled, now using node v%s (%s-bit)", outcome.Version, outcome.Arch), outcome)
}

func (app *CLI) runOff(ctx context.Context, _ *cli.Command) error {
	svc, err := app.prepare()
	if err != nil {
		return err
	}

	err = app.withRootLock("disable nvmw", func() error {
		return svc.activation.Deactivate(ctx)
	})
	if err != nil {
		return app.fail(err, "disable nvmw")
	}

	return app.handler.GetOutput().Success("nvmw disabled", domain.SettingResult{Key: "link", Value: app.cfg.Symlink, Changed: true})
}

func (app *CLI) runRoot(_ context.Context, cmd *cli.Command) error {
	output := app.handler.GetOutput()

	path := strings.TrimSpace(cmd.Args().Get(0))
	if path == "" {
		return output.Success("Current Root: "+app.cfg.Root, domain.SettingResult{Key: "root", Value: app.cfg.Root})
	}

	path = config.ExpandPath(path)

	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return domain.NewExitError(ExitNotFoundError, path+" does not exist or could not be found.", domain.ErrPathMissing)
	}

	previous := app.cfg.Root

	cfg, err := app.store.Update(func(c *config.Config) error {
		if config.ExpandPath(c.Symlink) == filepath.Join(config.ExpandPath(c.Root), "current") {
			c.Symlink = ""
		}

		c.Root = path

		return nil
	})
	if err != nil {
		return domain.NewExitError(ExitConfigError, "Failed to save settings", err)
	}

	app.cfg.Root = cfg.Root

	if previous == cfg.Root {
		return output.Success("Root is already "+cfg.Root, domain.SettingResult{Key: "root", Value: cfg.Root})
	}

	return output.Success(fmt.Sprintf("Root has been changed from %s to %s", previous, cfg.Root),
		domain.SettingResult{Key: "root", Value: cfg.Root, Changed: true})
}

func (app *CLI) runArch(_ context.Context, cmd *cli.Command) error {
	value := strings.TrimSpace(cmd.Args().Get(0))
	changed := false

	var lines []string

	if value != "" {
		if value != domain.Arch32.String() && value != domain.Arch64.String() {
			return usageError(fmt.Sprintf("%q is an invalid architecture. Use 32 or 64.", value))
		}

		if value == domain.Arch64.String() && domain.HostArch() == domain.Arch32 {
			return usageError("This computer only supports 32-bit processing.")
		}

		cfg, err := app.store.Update(func(c *config.Config) error {
			c.Arch = value

			return nil
		})
		if err != nil {
			return domain.NewExitError(ExitConfigError, "Failed to save settings", err)
		}

		app.cfg.Arch = cfg.Arch
		changed = true

		lines = append(lines, fmt.Sprintf("Default architecture set to %s-bit", cfg.Arch))
	}

	active := domain.Arch("")

	if svc, err := app.services(); err == nil {
		if _, arch, ok, err := svc.activation.Active(); err == nil && ok {
			active = arch
		}
	}

	lines = append(lines,
		fmt.Sprintf("System Default: %s-bit.", app.cfg.Arch),
		fmt.Sprintf("Currently Configured: %s-bit.", archLabel(active)),
	)

	return app.handler.GetOutput().Success(strings.Join(lines, "\n"), domain.SettingResult{Key: "arch", Value: app.cfg.Arch, Changed: changed})
}

func (app *CLI) runProxy(_ context.Context, cmd *cli.Command) error {
	output := app.handler.GetOutput()

	value := strings.TrimSpace(cmd.Args().Get(0))
	if value == "" {
		return output.Success("Current proxy: "+app.cfg.Proxy, domain.SettingResult{Key: "proxy", Value: app.cfg.Proxy})
	}

	if _, err := (&config.Config{Proxy: value}).ProxyURL(); err != nil {
		return usageError(err.Error())
	}

	cfg, err := app.store.Update(func(c *config.Config) error {
		c.Proxy = value

		return nil
	})
	if err != nil {
		return domain.NewExitError(ExitConfigError, "Failed to save settings", err)
	}

	return output.Success("Proxy set to "+cfg.Proxy, domain.SettingResult{Key: "proxy", Value: cfg.Proxy, Changed: true})
}

func (app *CLI) runNodeMirror(_ context.Context, cmd *cli.Command) error {
	return app.setMirror("node_mirror", cmd.Args().Get(0), func(c *config.Config, v string) string {
		c.NodeMirror = v

		return c.NodeMirrorURL()
	})
}

func (app *CLI) runNPMMirror(_ context.Context, cmd *cli.Command) error {
	return app.setMirror("npm_mirror", cmd.Args().Get(0), func(c *config.Config, v string) string {
		c.NPMMirror = v

		return c.NPMMirrorURL()
	})
}

func (app *CLI) setMirror(key, value string, set func(*config.Config, string) string) error {
	var effective string

	_, err := app.store.Update(func(c *config.Config) error {
		effective = set(c, strings.TrimSpace(value))

		return nil
	})
	if err != nil {
		return domain.NewExitError(ExitConfigError, "Failed to save settings", err)
	}

	return app.handler.GetOutput().Success(fmt.Sprintf("%s set to %s", key, effective),
		domain.SettingResult{Key: key, Value: effective, Changed: true})
}

func (app *CLI) runHelper(ctx context.Context, _ *cli.Command) error {
	server := fshelper.NewServer(app.cfg.HelperAddr, console.NewDaemonLogger(os.Stderr, app.verbose))

	if err := server.Serve(ctx); err != nil {
		return domain.NewExitError(ExitSystemError, "✗ Failed to start the filesystem helper on "+app.cfg.HelperAddr, err)
	}

	return nil
}

func (app *CLI) runVersion(_ context.Context, _ *cli.Command) error {
	return app.handler.GetOutput().Success(Version, domain.SettingResult{Key: "version", Value: Version})
}
