// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package install_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/janderssonse/nvmw/internal/domain"
	"github.com/janderssonse/nvmw/internal/install"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// contentProbe treats the file body as the executable's width.
func contentProbe(path string) (domain.Arch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	return domain.ParseArch(string(data))
}

func touch(t *testing.T, path, body string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
}

func TestLayout_Paths(t *testing.T) {
	t.Parallel()

	v := semver.MustParse("20.11.1")
	root := filepath.Join("srv", "nvmw")

	unix := install.NewLayout(root, "").WithWindows(false)
	assert.Equal(t, filepath.Join(root, "v20.11.1"), unix.VersionDir(v))
	assert.Equal(t, filepath.Join(root, "v20.11.1", "bin", "node64"), unix.ExecutablePath(v, domain.Arch64))
	assert.Equal(t, filepath.Join(root, "v20.11.1", "bin", "node"), unix.ExecutablePath(v, ""))
	assert.Equal(t, filepath.Join(root, "v20.11.1", "lib", "node_modules"), unix.ModulesDir(v))

	win := install.NewLayout(root, "").WithWindows(true)
	assert.Equal(t, filepath.Join(root, "v20.11.1", "node32.exe"), win.ExecutablePath(v, domain.Arch32))
	assert.Equal(t, filepath.Join(root, "v20.11.1", "node.exe"), win.ExecutablePath(v, ""))
	assert.Equal(t, filepath.Join(root, "v20.11.1", "node_modules"), win.ModulesDir(v))
	assert.Equal(t, filepath.Join(root, "temp"), win.TempDir())
}

func TestLayout_Installed(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	for _, dir := range []string{"v18.0.0", "v20.1.0", "v9.11.2", "temp", "vfoo", "current-ish"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
	}

	touch(t, filepath.Join(root, "v7.0.0"), "not a directory")

	versions, err := install.NewLayout(root, "").Installed()
	require.NoError(t, err)

	got := make([]string, 0, len(versions))
	for _, v := range versions {
		got = append(got, v.String())
	}

	assert.Equal(t, []string{"20.1.0", "18.0.0", "9.11.2"}, got)

	_, err = install.NewLayout(filepath.Join(root, "missing"), "").Installed()
	require.ErrorIs(t, err, domain.ErrPathMissing)
}

func TestLayout_IsInstalled(t *testing.T) {
	t.Parallel()

	v := semver.MustParse("18.20.1")

	tests := []struct {
		name  string
		files map[domain.Arch]string
		want  map[domain.Arch]bool
	}{
		{
			name:  "nothing",
			files: nil,
			want:  map[domain.Arch]bool{domain.Arch32: false, domain.Arch64: false, domain.ArchAll: false},
		},
		{
			name:  "plain 64-bit only",
			files: map[domain.Arch]string{"": "64"},
			want:  map[domain.Arch]bool{domain.Arch32: false, domain.Arch64: true, domain.ArchAll: false},
		},
		{
			name:  "plain 32-bit only",
			files: map[domain.Arch]string{"": "32"},
			want:  map[domain.Arch]bool{domain.Arch32: true, domain.Arch64: false, domain.ArchAll: false},
		},
		{
			name:  "suffixed 32 only",
			files: map[domain.Arch]string{domain.Arch32: "32"},
			want:  map[domain.Arch]bool{domain.Arch32: true, domain.Arch64: false, domain.ArchAll: false},
		},
		{
			name:  "plain plus suffixed",
			files: map[domain.Arch]string{"": "64", domain.Arch32: "32"},
			want:  map[domain.Arch]bool{domain.Arch32: true, domain.Arch64: true, domain.ArchAll: true},
		},
		{
			name:  "both suffixed",
			files: map[domain.Arch]string{domain.Arch32: "32", domain.Arch64: "64"},
			want:  map[domain.Arch]bool{domain.Arch32: true, domain.Arch64: true, domain.ArchAll: true},
		},
		{
			name:  "unreadable plain",
			files: map[domain.Arch]string{"": "garbage"},
			want:  map[domain.Arch]bool{domain.Arch32: false, domain.Arch64: false, domain.ArchAll: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			layout := install.NewLayout(t.TempDir(), "").WithWindows(false).WithProbe(contentProbe)
			for arch, body := range tt.files {
				touch(t, layout.ExecutablePath(v, arch), body)
			}

			for arch, want := range tt.want {
				assert.Equal(t, want, layout.IsInstalled(v, arch), "arch %s", arch)
			}

			assert.Equal(t, len(tt.files) > 0, layout.HasExecutable(v))
		})
	}
}

func TestLayout_Active(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("directory symlinks need privileges on windows")
	}

	root := t.TempDir()
	link := filepath.Join(root, "current")
	layout := install.NewLayout(root, link).WithProbe(contentProbe)

	_, err := layout.Active()
	require.ErrorIs(t, err, domain.ErrNoActiveVersion)

	v := semver.MustParse("20.11.1")
	touch(t, layout.ExecutablePath(v, ""), "64")
	require.NoError(t, os.Symlink(layout.VersionDir(v), link))

	active, err := layout.Active()
	require.NoError(t, err)
	assert.Equal(t, "20.11.1", active.String())

	arch, err := layout.ActiveArch()
	require.NoError(t, err)
	assert.Equal(t, domain.Arch64, arch)

	other := filepath.Join(root, "elsewhere")
	require.NoError(t, os.Remove(link))
	require.NoError(t, os.Symlink(other, link))

	_, err = layout.Active()
	require.ErrorIs(t, err, domain.ErrNoActiveVersion)
}
