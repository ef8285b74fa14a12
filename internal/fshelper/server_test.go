// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package fshelper_test

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/janderssonse/nvmw/internal/domain"
	"github.com/janderssonse/nvmw/internal/fshelper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startDaemon serves on an ephemeral loopback port until the test ends.
func startDaemon(t *testing.T) *fshelper.Client {
	t.Helper()

	return fshelper.NewClient(startDaemonAddr(t), nil)
}

func startDaemonAddr(t *testing.T) string {
	t.Helper()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() {
		done <- fshelper.NewServer("", nil).ServeConn(ctx, conn)
	}()

	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	return conn.LocalAddr().String()
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	return ctx
}

func TestDaemon_CreateDir(t *testing.T) {
	t.Parallel()

	client := startDaemon(t)
	ctx := testContext(t)
	dir := filepath.Join(t.TempDir(), "a", "b")

	result, err := client.Send(ctx, fshelper.CmdCreateDir, dir)
	require.NoError(t, err)
	assert.Equal(t, fshelper.KindOk, result.Kind)
	assert.DirExists(t, dir)

	result, err = client.Send(ctx, fshelper.CmdCreateDir, dir)
	require.NoError(t, err)
	assert.Equal(t, fshelper.KindAlreadyExists, result.Kind)

	require.NoError(t, client.CreateDir(ctx, dir))
}

func TestDaemon_DeleteDir(t *testing.T) {
	t.Parallel()

	client := startDaemon(t)
	ctx := testContext(t)
	dir := filepath.Join(t.TempDir(), "v20.11.1")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bin", "node"), []byte("x"), 0o600))

	result, err := client.Send(ctx, fshelper.CmdDeleteDir, dir)
	require.NoError(t, err)
	assert.Equal(t, fshelper.KindOk, result.Kind)
	assert.NoDirExists(t, dir)

	result, err = client.Send(ctx, fshelper.CmdDeleteDir, dir)
	require.NoError(t, err)
	assert.Equal(t, fshelper.KindNotFound, result.Kind)

	require.NoError(t, client.RemoveDir(ctx, dir))
}

func TestDaemon_DeleteFile(t *testing.T) {
	t.Parallel()

	client := startDaemon(t)
	ctx := testContext(t)
	root := t.TempDir()

	result, err := client.Send(ctx, fshelper.CmdDeleteFile, filepath.Join(root, "missing"))
	require.NoError(t, err)
	assert.Equal(t, fshelper.KindNotFound, result.Kind)

	result, err = client.Send(ctx, fshelper.CmdDeleteFile, root)
	require.NoError(t, err)
	assert.Equal(t, fshelper.KindNotFound, result.Kind, "directories are not files")
	assert.DirExists(t, root)

	file := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))

	result, err = client.Send(ctx, fshelper.CmdDeleteFile, file)
	require.NoError(t, err)
	assert.Equal(t, fshelper.KindOk, result.Kind)
	assert.NoFileExists(t, file)
}

func TestDaemon_Links(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("directory symlinks need privileges on windows")
	}

	client := startDaemon(t)
	ctx := testContext(t)
	root := t.TempDir()
	target := filepath.Join(root, "v20.11.1")
	link := filepath.Join(root, "my node")
	require.NoError(t, os.Mkdir(target, 0o755))

	require.NoError(t, client.CreateDirLink(ctx, link, target))

	got, err := os.Readlink(link)
	require.NoError(t, err)
	assert.Equal(t, target, got)

	err = client.CreateDirLink(ctx, link, target)
	require.ErrorIs(t, err, domain.ErrAlreadyExists)

	require.NoError(t, client.RemoveLink(ctx, link))
	assert.NoFileExists(t, link)
	assert.DirExists(t, target)

	require.NoError(t, client.RemoveLink(ctx, link))
}

func TestDaemon_InvalidRequests(t *testing.T) {
	t.Parallel()

	client := startDaemon(t)
	ctx := testContext(t)

	result, err := client.Send(ctx, "RENAME", "/a", "/b")
	require.NoError(t, err)
	assert.Equal(t, fshelper.KindInvalidRequest, result.Kind)
	require.ErrorIs(t, result.Err(), domain.ErrHelper)

	result, err = client.Send(ctx, fshelper.CmdCreateSymlinkDir, filepath.Join(t.TempDir(), "link"))
	require.NoError(t, err)
	assert.Equal(t, fshelper.KindInvalidRequest, result.Kind)
}

func TestDaemon_ErrorsAreTagged(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	blocker := filepath.Join(root, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	response := fshelper.NewServer("", nil).Handle(fshelper.Encode(fshelper.CmdCreateDir, filepath.Join(blocker, "sub")))
	result := fshelper.Decode(fshelper.CmdCreateDir, response)

	assert.NotEqual(t, fshelper.KindOk, result.Kind)
	assert.NotEmpty(t, result.Detail)
	require.Error(t, result.Err())
}

func TestClient_Unreachable(t *testing.T) {
	t.Parallel()

	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	addr := conn.LocalAddr().String()
	require.NoError(t, conn.Close())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err = fshelper.NewClient(addr, nil).Send(ctx, fshelper.CmdCreateDir, t.TempDir())
	require.ErrorIs(t, err, domain.ErrHelper)
}

func TestClient_HonoursCancellation(t *testing.T) {
	t.Parallel()

	// A bound socket that never answers.
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err = fshelper.NewClient(conn.LocalAddr().String(), nil).Send(ctx, fshelper.CmdCreateDir, t.TempDir())
	require.ErrorIs(t, err, domain.ErrHelper)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDaemon_LongPaths(t *testing.T) {
	t.Parallel()

	if runtime.GOOS != "linux" {
		t.Skip("path limits below the request size")
	}

	client := startDaemon(t)
	ctx := testContext(t)

	parent := t.TempDir()
	for _, c := range "abcde" {
		parent = filepath.Join(parent, strings.Repeat(string(c), 240))
	}

	version := filepath.Join(parent, "v18.0.0")
	sibling := filepath.Join(parent, "keep")

	require.Greater(t, len(version), 1024)
	require.NoError(t, os.MkdirAll(filepath.Join(version, "bin"), 0o755))
	require.NoError(t, os.MkdirAll(sibling, 0o755))

	require.NoError(t, client.RemoveDir(ctx, version))
	assert.NoDirExists(t, version)
	assert.DirExists(t, sibling)
	assert.DirExists(t, parent)
}

func TestDaemon_OversizedDatagram(t *testing.T) {
	t.Parallel()

	if runtime.GOOS != "linux" {
		t.Skip("loopback datagram limits vary")
	}

	addr := startDaemonAddr(t)

	victim := t.TempDir()
	request := fshelper.Encode(fshelper.CmdDeleteDir, victim) + " " + strings.Repeat("x", fshelper.MaxRequestSize)

	conn, err := net.Dial("udp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))

	_, err = conn.Write([]byte(request))
	require.NoError(t, err)

	buf := make([]byte, fshelper.BufferSize)
	n, err := conn.Read(buf)
	require.NoError(t, err)

	assert.Equal(t, fshelper.TagInvalid+" request too long", string(buf[:n]))
	assert.DirExists(t, victim)
}

func TestClient_RejectsOversizedRequests(t *testing.T) {
	t.Parallel()

	// Nothing listens here; the request must fail before any send.
	client := fshelper.NewClient("127.0.0.1:1", nil)
	long := "/" + strings.Repeat("a", fshelper.MaxRequestSize)

	tests := []struct {
		name string
		call func(ctx context.Context) error
	}{
		{"remove dir", func(ctx context.Context) error { return client.RemoveDir(ctx, long) }},
		{"create dir", func(ctx context.Context) error { return client.CreateDir(ctx, long) }},
		{"create link", func(ctx context.Context) error { return client.CreateDirLink(ctx, "/link", long) }},
		{"remove link", func(ctx context.Context) error { return client.RemoveLink(ctx, long) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.call(testContext(t))
			require.ErrorIs(t, err, domain.ErrHelper)
			assert.Contains(t, err.Error(), "request too long")
		})
	}
}
