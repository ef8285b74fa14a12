// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package fshelper

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"

	"github.com/charmbracelet/log"
	"github.com/janderssonse/nvmw/internal/console"
)

// Server answers helper requests one datagram at a time.
type Server struct {
	addr   string
	logger *log.Logger
}

// NewServer creates a server that will bind addr.
func NewServer(addr string, logger *log.Logger) *Server {
	return &Server{addr: addr, logger: console.OrDiscard(logger)}
}

// Serve binds the configured address and serves until ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	var lc net.ListenConfig

	conn, err := lc.ListenPacket(ctx, "udp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to bind helper on %s: %w", s.addr, err)
	}

	s.logger.Info("Daemon is running", "addr", conn.LocalAddr())

	return s.ServeConn(ctx, conn)
}

// ServeConn serves requests arriving on conn until ctx is cancelled. conn
// is closed on return.
func (s *Server) ServeConn(ctx context.Context, conn net.PacketConn) error {
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()
	defer conn.Close()

	buf := make([]byte, BufferSize)

	for {
		n, src, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil //nolint:nilerr // shutdown requested by the owner
			}

			s.logger.Warn("Receive failed", "error", err)

			continue
		}

		request := string(buf[:n])

		response := TagInvalid + " " + errTooLong.Error()
		if n <= MaxRequestSize {
			response = s.Handle(request)
		}

		s.logger.Debug("Handled request", "from", src, "request", request, "response", response)

		if _, err := conn.WriteTo([]byte(response), src); err != nil {
			s.logger.Warn("Reply failed", "to", src, "error", err)
		}
	}
}

// Handle executes one request line and returns the response line.
func (s *Server) Handle(request string) string {
	tokens, err := Tokenize(request)
	if err != nil {
		return TagInvalid + " " + err.Error()
	}

	if len(tokens) == 0 {
		return RespUnknown
	}

	command := tokens[0]

	var path, target string
	if len(tokens) > 1 {
		path = tokens[1]
	}

	hasTarget := len(tokens) > 2
	if hasTarget {
		target = tokens[2]
	}

	switch command {
	case CmdDeleteDir:
		return deleteDir(path)
	case CmdCreateDir:
		return createDir(path)
	case CmdCreateSymlinkDir, CmdCreateSymlinkFile:
		if !hasTarget {
			return command + suffixNo
		}

		return createSymlink(command, path, target)
	case CmdDeleteFile:
		return deleteFile(path)
	default:
		return RespUnknown
	}
}

func deleteDir(path string) string {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return CmdDeleteDir + suffixNo
	}

	if err := os.RemoveAll(path); err != nil {
		return errorResponse(err)
	}

	return CmdDeleteDir + suffixYes
}

func createDir(path string) string {
	if _, err := os.Stat(path); err == nil {
		return CmdCreateDir + suffixExists
	}

	// #nosec G301 -- version trees are shared by every user of the runtime
	if err := os.MkdirAll(path, 0755); err != nil {
		return errorResponse(err)
	}

	return CmdCreateDir + suffixYes
}

// createSymlink treats a dangling link at path as existing.
func createSymlink(command, path, target string) string {
	if _, err := os.Lstat(path); err == nil {
		return command + suffixExists
	}

	if err := os.Symlink(target, path); err != nil {
		return errorResponse(err)
	}

	return command + suffixYes
}

// deleteFile removes a regular file or a link, never a directory.
func deleteFile(path string) string {
	info, err := os.Lstat(path)
	if err != nil || info.IsDir() {
		return CmdDeleteFile + suffixNo
	}

	if !info.Mode().IsRegular() && info.Mode()&fs.ModeSymlink == 0 {
		return CmdDeleteFile + suffixNo
	}

	if err := os.Remove(path); err != nil {
		return errorResponse(err)
	}

	return CmdDeleteFile + suffixYes
}
