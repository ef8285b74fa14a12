// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package activation_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/Masterminds/semver/v3"
	"github.com/janderssonse/nvmw/internal/activation"
	"github.com/janderssonse/nvmw/internal/adapters/platform"
	"github.com/janderssonse/nvmw/internal/domain"
	"github.com/janderssonse/nvmw/internal/install"
	"github.com/janderssonse/nvmw/internal/resolver"
	"github.com/janderssonse/nvmw/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func contentProbe(path string) (domain.Arch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	return domain.ParseArch(string(data))
}

type fixture struct {
	layout *install.Layout
	direct *platform.MockFileManager
	helper *platform.MockFileManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	root := t.TempDir()

	return &fixture{
		layout: install.NewLayout(root, filepath.Join(root, "current")).WithWindows(false).WithProbe(contentProbe),
		direct: platform.NewMockFileManager(),
		helper: platform.NewMockFileManager(),
	}
}

func (f *fixture) manager(opts ...activation.Option) *activation.Manager {
	res := resolver.New(&testutil.MockReleaseIndex{}, f.layout, domain.Arch64, nil)

	return activation.NewManager(res, f.layout, f.direct, f.helper, opts...)
}

// place writes executables for v; the key is the suffix and the body the width.
func (f *fixture) place(t *testing.T, version string, files map[domain.Arch]string) *semver.Version {
	t.Helper()

	v := semver.MustParse(version)
	require.NoError(t, os.MkdirAll(f.layout.BinDir(v), 0o755))

	for suffix, body := range files {
		require.NoError(t, os.WriteFile(f.layout.ExecutablePath(v, suffix), []byte(body), 0o600))
	}

	return v
}

func (f *fixture) body(t *testing.T, v *semver.Version, suffix domain.Arch) string {
	t.Helper()

	data, err := os.ReadFile(f.layout.ExecutablePath(v, suffix))
	if errors.Is(err, os.ErrNotExist) {
		return ""
	}

	require.NoError(t, err)

	return string(data)
}

func TestActivate_LinksVersion(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	v := f.place(t, "20.11.1", map[domain.Arch]string{"": "64"})

	outcome, err := f.manager().Activate(context.Background(), "20.11.1", "64")
	require.NoError(t, err)

	assert.Equal(t, "20.11.1", outcome.Version)
	assert.Equal(t, "64", outcome.Arch)
	assert.False(t, outcome.Retried)
	assert.Equal(t, f.layout.VersionDir(v), f.direct.Links[f.layout.Link()])
	assert.Equal(t, "64", f.body(t, v, ""))
	assert.Empty(t, f.helper.Calls)
}

func TestActivate_Idempotent(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	v := f.place(t, "20.11.1", map[domain.Arch]string{"": "64", domain.Arch32: "32"})
	m := f.manager()

	for range 2 {
		_, err := m.Activate(context.Background(), "20.11.1", "64")
		require.NoError(t, err)
	}

	assert.Equal(t, f.layout.VersionDir(v), f.direct.Links[f.layout.Link()])
	assert.Equal(t, "64", f.body(t, v, ""))
	assert.Equal(t, "32", f.body(t, v, domain.Arch32))
	assert.Empty(t, f.body(t, v, domain.Arch64))
}

func TestActivate_SwapsWidths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		files map[domain.Arch]string
		arch  string
		want  map[domain.Arch]string
	}{
		{
			name:  "plain 64 to 32",
			files: map[domain.Arch]string{"": "64", domain.Arch32: "32"},
			arch:  "32",
			want:  map[domain.Arch]string{"": "32", domain.Arch32: "", domain.Arch64: "64"},
		},
		{
			name:  "plain 32 to 64",
			files: map[domain.Arch]string{"": "32", domain.Arch64: "64"},
			arch:  "64",
			want:  map[domain.Arch]string{"": "64", domain.Arch32: "32", domain.Arch64: ""},
		},
		{
			name:  "both suffixed",
			files: map[domain.Arch]string{domain.Arch32: "32", domain.Arch64: "64"},
			arch:  "32",
			want:  map[domain.Arch]string{"": "32", domain.Arch32: "", domain.Arch64: "64"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			v := f.place(t, "18.20.1", tt.files)

			_, err := f.manager().Activate(context.Background(), "18.20.1", tt.arch)
			require.NoError(t, err)

			for suffix, body := range tt.want {
				assert.Equal(t, body, f.body(t, v, suffix), "executable node%s", suffix)
			}
		})
	}
}

func TestActivate_SuggestsOtherWidth(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.place(t, "18.20.1", map[domain.Arch]string{"": "32"})

	_, err := f.manager().Activate(context.Background(), "18.20.1", "64")
	require.ErrorIs(t, err, domain.ErrNotInstalled)
	assert.Contains(t, err.Error(), "Did you mean node v18.20.1 (32-bit)?")
	assert.Contains(t, err.Error(), "nvmw use 18.20.1 32")
	assert.Empty(t, f.direct.Links)
}

func TestActivate_NotInstalled(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.manager().Activate(context.Background(), "19.0.0", "64")
	require.ErrorIs(t, err, domain.ErrNotInstalled)
	assert.NotContains(t, err.Error(), "Did you mean")
}

func TestActivate_PermissionRetriesThroughHelper(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	v := f.place(t, "20.11.1", map[domain.Arch]string{"": "64"})
	f.direct.CreateErrs = []error{domain.ErrPermissionDenied}

	outcome, err := f.manager().Activate(context.Background(), "20.11.1", "64")
	require.NoError(t, err)

	assert.True(t, outcome.Retried)
	assert.Empty(t, f.direct.Links)
	assert.Equal(t, f.layout.VersionDir(v), f.helper.Links[f.layout.Link()])
}

func TestActivate_PermissionRetryFails(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.place(t, "20.11.1", map[domain.Arch]string{"": "64"})
	f.direct.CreateErrs = []error{domain.ErrPermissionDenied}
	f.helper.CreateErrs = []error{domain.ErrHelper}

	_, err := f.manager().Activate(context.Background(), "20.11.1", "64")
	require.ErrorIs(t, err, domain.ErrHelper)
}

func TestActivate_RemovalPermissionRetriesThroughHelper(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		createErrs []error
		helperWant []string
		directLink bool
	}{
		{
			name:       "link created directly",
			helperWant: []string{"unlink "},
			directLink: true,
		},
		{
			name:       "link created by helper",
			createErrs: []error{domain.ErrPermissionDenied},
			helperWant: []string{"unlink ", "create "},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			v := f.place(t, "20.11.1", map[domain.Arch]string{"": "64"})
			link := f.layout.Link()

			f.direct.RemoveLinkErrs = []error{domain.ErrPermissionDenied}
			f.direct.CreateErrs = tt.createErrs
			f.helper.Links[link] = "stale"

			outcome, err := f.manager().Activate(context.Background(), "20.11.1", "64")
			require.NoError(t, err)
			assert.True(t, outcome.Retried)

			want := make([]string, len(tt.helperWant))
			for i, call := range tt.helperWant {
				want[i] = call + link
			}

			assert.Equal(t, want, f.helper.Calls)

			if tt.directLink {
				assert.Equal(t, f.layout.VersionDir(v), f.direct.Links[link])
				assert.NotContains(t, f.helper.Links, link)
			} else {
				assert.Equal(t, f.layout.VersionDir(v), f.helper.Links[link])
			}
		})
	}
}

func TestActivate_RemovalFailsThroughHelper(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.place(t, "20.11.1", map[domain.Arch]string{"": "64"})
	f.direct.RemoveLinkErrs = []error{domain.ErrPermissionDenied}
	f.helper.RemoveLinkErrs = []error{domain.ErrHelper}

	_, err := f.manager().Activate(context.Background(), "20.11.1", "64")
	require.ErrorIs(t, err, domain.ErrHelper)
	assert.Equal(t, []string{"unlink " + f.layout.Link()}, f.direct.Calls)
}

func TestActivate_ExistingLinkRetriedOnce(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	v := f.place(t, "20.11.1", map[domain.Arch]string{"": "64"})
	f.direct.CreateErrs = []error{domain.ErrAlreadyExists}

	outcome, err := f.manager().Activate(context.Background(), "20.11.1", "64")
	require.NoError(t, err)

	assert.True(t, outcome.Retried)
	assert.Equal(t, f.layout.VersionDir(v), f.direct.Links[f.layout.Link()])
	assert.Equal(t, []string{
		"unlink " + f.layout.Link(),
		"create " + f.layout.Link(),
		"unlink " + f.layout.Link(),
		"create " + f.layout.Link(),
	}, f.direct.Calls)

	f.direct.CreateErrs = []error{domain.ErrAlreadyExists, domain.ErrAlreadyExists}

	_, err = f.manager().Activate(context.Background(), "20.11.1", "64")
	require.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestActivate_RenameRollback(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	v := f.place(t, "18.20.1", map[domain.Arch]string{"": "64", domain.Arch32: "32"})

	calls := 0
	rename := func(src, dst string) error {
		calls++
		if calls == 2 {
			return os.ErrPermission
		}

		return os.Rename(src, dst)
	}

	_, err := f.manager(activation.WithRename(rename)).Activate(context.Background(), "18.20.1", "32")
	require.ErrorIs(t, err, os.ErrPermission)

	assert.Equal(t, 3, calls)
	assert.Equal(t, "64", f.body(t, v, ""))
	assert.Equal(t, "32", f.body(t, v, domain.Arch32))
	assert.Empty(t, f.body(t, v, domain.Arch64))
}

func TestDeactivate(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.direct.Links[f.layout.Link()] = "somewhere"

	require.NoError(t, f.manager().Deactivate(context.Background()))
	assert.Empty(t, f.direct.Links)

	f.direct.RemoveLinkErrs = []error{domain.ErrPermissionDenied}
	f.helper.Links[f.layout.Link()] = "somewhere"

	require.NoError(t, f.manager().Deactivate(context.Background()))
	assert.Empty(t, f.helper.Links)
}

// realFixture links on the actual filesystem so Active can read it back.
func realFixture(t *testing.T) (*install.Layout, *activation.Manager) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("directory symlinks need privileges on windows")
	}

	root := t.TempDir()
	layout := install.NewLayout(root, filepath.Join(root, "current")).WithWindows(false).WithProbe(contentProbe)
	files := platform.NewFileManager(nil)
	res := resolver.New(&testutil.MockReleaseIndex{}, layout, domain.Arch64, nil)

	return layout, activation.NewManager(res, layout, files, files)
}

func installAt(t *testing.T, layout *install.Layout, version, width string) {
	t.Helper()

	v := semver.MustParse(version)
	require.NoError(t, os.MkdirAll(layout.BinDir(v), 0o755))
	require.NoError(t, os.WriteFile(layout.ExecutablePath(v, ""), []byte(width), 0o600))
}

func TestActive(t *testing.T) {
	t.Parallel()

	layout, m := realFixture(t)

	_, _, ok, err := m.Active()
	require.NoError(t, err)
	assert.False(t, ok)

	installAt(t, layout, "20.11.1", "64")

	_, err = m.Activate(context.Background(), "20", "")
	require.NoError(t, err)

	v, arch, ok, err := m.Active()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "20.11.1", v.String())
	assert.Equal(t, domain.Arch64, arch)

	require.NoError(t, m.Deactivate(context.Background()))

	_, _, ok, err = m.Active()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSwitch(t *testing.T) {
	t.Parallel()

	layout, m := realFixture(t)
	for _, version := range []string{"18.20.1", "20.11.1", "21.6.1"} {
		installAt(t, layout, version, "64")
	}

	_, err := m.Activate(context.Background(), "20.11.1", "64")
	require.NoError(t, err)

	chooser := &testutil.MockChooser{}
	chooser.On("Choose", mock.Anything, mock.Anything, []string{"v21.6.1", "v20.11.1", "v18.20.1"}, 1).Return(2, nil).Once()

	outcome, err := m.Switch(context.Background(), "64", chooser)
	require.NoError(t, err)
	assert.Equal(t, "18.20.1", outcome.Version)

	chooser.On("Choose", mock.Anything, mock.Anything, mock.Anything, 2).Return(2, nil).Once()

	_, err = m.Switch(context.Background(), "64", chooser)
	require.ErrorIs(t, err, activation.ErrNoSelection)

	chooser.AssertExpectations(t)
}

func TestSwitch_NothingInstalled(t *testing.T) {
	t.Parallel()

	_, m := realFixture(t)

	_, err := m.Switch(context.Background(), "", &testutil.MockChooser{})
	require.ErrorIs(t, err, domain.ErrNoInstalledVersions)

	_, err = m.Enable(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrNoInstalledVersions)
}

func TestEnable_PicksNewest(t *testing.T) {
	t.Parallel()

	layout, m := realFixture(t)
	installAt(t, layout, "18.20.1", "64")
	installAt(t, layout, "21.6.1", "64")

	outcome, err := m.Enable(context.Background(), "64")
	require.NoError(t, err)
	assert.Equal(t, "21.6.1", outcome.Version)

	target, err := os.Readlink(layout.Link())
	require.NoError(t, err)
	assert.Equal(t, layout.VersionDir(semver.MustParse("21.6.1")), target)
}
