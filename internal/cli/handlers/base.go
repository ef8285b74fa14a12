// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package handlers holds state shared by every command action.
package handlers

import (
	"context"
	"time"

	cliAdapter "github.com/janderssonse/nvmw/internal/adapters/cli"
	"github.com/janderssonse/nvmw/internal/console"
	"github.com/janderssonse/nvmw/internal/domain"
)

// BaseHandler provides common functionality for all command handlers.
type BaseHandler struct {
	Verbose bool
	JSON    bool
	Quiet   bool
	Timeout time.Duration
	Output  domain.OutputPort
}

// NewBaseHandler creates a base handler. A nil output is replaced by a
// stdout adapter matching the flags.
func NewBaseHandler(verbose, json, quiet bool, timeout time.Duration, output domain.OutputPort) *BaseHandler {
	return &BaseHandler{
		Verbose: verbose,
		JSON:    json,
		Quiet:   quiet,
		Timeout: timeout,
		Output:  output,
	}
}

// WithTimeout applies timeout to context if configured.
func (h *BaseHandler) WithTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if h.Timeout > 0 {
		return context.WithTimeout(ctx, h.Timeout)
	}

	return ctx, func() {}
}

// GetOutput returns the output port for CLI rendering.
func (h *BaseHandler) GetOutput() domain.OutputPort {
	if h.Output == nil {
		h.Output = cliAdapter.OutputFromFlags(h.JSON, h.Quiet, !h.JSON && console.ColorEnabled())
	}

	return h.Output
}

// Styled reports whether text output may carry ANSI styling.
func (h *BaseHandler) Styled() bool {
	return !h.JSON && console.ColorEnabled()
}
