// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package cli

import (
	"io"
	"os"

	"github.com/janderssonse/nvmw/internal/activation"
	"github.com/janderssonse/nvmw/internal/adapters/network"
	"github.com/janderssonse/nvmw/internal/adapters/platform"
	"github.com/janderssonse/nvmw/internal/console"
	"github.com/janderssonse/nvmw/internal/domain"
	"github.com/janderssonse/nvmw/internal/fetcher"
	"github.com/janderssonse/nvmw/internal/fshelper"
	"github.com/janderssonse/nvmw/internal/install"
	"github.com/janderssonse/nvmw/internal/remote"
	"github.com/janderssonse/nvmw/internal/resolver"
)

// services are the components one command works with, all built from the
// loaded configuration.
type services struct {
	layout     *install.Layout
	index      *remote.Client
	installer  *install.Manager
	activation *activation.Manager
}

func (app *CLI) services() (*services, error) {
	cfg := app.cfg

	proxy, err := cfg.ProxyURL()
	if err != nil {
		return nil, domain.NewExitError(ExitConfigError, "✗ "+err.Error()+"\n  Fix it with: nvmw proxy <url|none>", err)
	}

	var progress io.Writer
	if !app.handler.GetOutput().IsQuiet() && !app.json && console.IsTTY(os.Stderr) {
		progress = os.Stderr
	}

	client := network.NewHTTPClient(network.Options{
		Proxy:     proxy,
		VerifyTLS: cfg.VerifyTLS,
		Progress:  progress,
		Logger:    app.logger,
	})

	layout := install.NewLayout(cfg.Root, cfg.Symlink)
	if app.probe != nil {
		layout.WithProbe(app.probe)
	}

	index := remote.NewClient(client, cfg.NodeMirrorURL(), app.logger)
	res := resolver.New(index, layout, cfg.DefaultArch(), app.logger)

	fetch := fetcher.New(client, layout, fetcher.Options{
		NodeMirror: cfg.NodeMirrorURL(),
		NPMMirror:  cfg.NPMMirrorURL(),
		Format:     cfg.ArchiveFormat,
		Logger:     app.logger,
	})

	direct := platform.NewFileManager(app.logger)
	helper := fshelper.NewClient(cfg.HelperAddr, app.logger)

	var links domain.LinkOperator = direct

	activationOpts := []activation.Option{activation.WithLogger(app.logger)}
	if cfg.UseHelper {
		links = helper
		activationOpts = append(activationOpts, activation.WithHelperFirst())
	}

	return &services{
		layout:     layout,
		index:      index,
		installer:  install.NewManager(res, index, layout, fetch, links, install.WithHelper(helper), install.WithLogger(app.logger)),
		activation: activation.NewManager(res, layout, direct, helper, activationOpts...),
	}, nil
}
