// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package fshelper

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/charmbracelet/log"
	"github.com/janderssonse/nvmw/internal/console"
	"github.com/janderssonse/nvmw/internal/domain"
)

// Client sends requests to a helper daemon and implements
// domain.LinkOperator.
type Client struct {
	addr   string
	logger *log.Logger
}

// NewClient creates a client for the daemon at addr.
func NewClient(addr string, logger *log.Logger) *Client {
	return &Client{addr: addr, logger: console.OrDiscard(logger)}
}

// Send issues one request and waits for its single response. It only
// gives up early when ctx is cancelled or reaches its deadline.
func (c *Client) Send(ctx context.Context, command string, args ...string) (Result, error) {
	request := Encode(command, args...)
	if len(request) > MaxRequestSize {
		return Result{}, fmt.Errorf("%w: %s: %w (%d bytes)", domain.ErrHelper, command, errTooLong, len(request))
	}

	var d net.Dialer

	conn, err := d.DialContext(ctx, "udp", c.addr)
	if err != nil {
		return Result{}, fmt.Errorf("%w: dial %s: %w", domain.ErrHelper, c.addr, err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	c.logger.Debug("Helper request", "addr", c.addr, "request", request)

	if _, err := conn.Write([]byte(request)); err != nil {
		return Result{}, fmt.Errorf("%w: send: %w", domain.ErrHelper, err)
	}

	buf := make([]byte, BufferSize)

	n, err := conn.Read(buf)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, fmt.Errorf("%w: %w", domain.ErrHelper, ctx.Err())
		}

		return Result{}, fmt.Errorf("%w: receive: %w", domain.ErrHelper, err)
	}

	result := Decode(command, string(buf[:n]))
	c.logger.Debug("Helper response", "kind", result.Kind, "detail", result.Detail)

	return result, nil
}

// CreateDir creates a directory tree. An existing path is not an error.
func (c *Client) CreateDir(ctx context.Context, path string) error {
	result, err := c.Send(ctx, CmdCreateDir, path)
	if err != nil {
		return err
	}

	if result.Kind == KindAlreadyExists {
		return nil
	}

	return result.Err()
}

// CreateDirLink creates link pointing at target.
func (c *Client) CreateDirLink(ctx context.Context, link, target string) error {
	result, err := c.Send(ctx, CmdCreateSymlinkDir, link, target)
	if err != nil {
		return err
	}

	return result.Err()
}

// RemoveLink removes link. A missing link is not an error.
func (c *Client) RemoveLink(ctx context.Context, link string) error {
	result, err := c.Send(ctx, CmdDeleteFile, link)
	if err != nil {
		return err
	}

	if result.Kind == KindNotFound {
		return nil
	}

	return result.Err()
}

// RemoveDir removes a directory tree. A missing directory is not an error.
func (c *Client) RemoveDir(ctx context.Context, path string) error {
	result, err := c.Send(ctx, CmdDeleteDir, path)
	if err != nil {
		return err
	}

	if result.Kind == KindNotFound {
		return nil
	}

	return result.Err()
}
