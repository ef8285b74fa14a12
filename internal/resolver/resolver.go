// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package resolver turns user version tokens into concrete versions.
package resolver

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"
	"github.com/janderssonse/nvmw/internal/console"
	"github.com/janderssonse/nvmw/internal/domain"
	"github.com/janderssonse/nvmw/internal/remote"
)

// Version aliases.
const (
	AliasLatest = "latest"
	AliasNode   = "node"
	AliasLTS    = "lts"
	AliasNewest = "newest"

	codenamePrefix = "lts/"
)

// Resolver resolves version tokens against the remote index and the local
// inventory.
type Resolver struct {
	index       domain.ReleaseIndex
	inventory   domain.Inventory
	defaultArch domain.Arch
	logger      *log.Logger
}

// New creates a resolver. An empty defaultArch means the host width.
func New(index domain.ReleaseIndex, inventory domain.Inventory, defaultArch domain.Arch, logger *log.Logger) *Resolver {
	if defaultArch == "" {
		defaultArch = domain.HostArch()
	}

	return &Resolver{
		index:       index,
		inventory:   inventory,
		defaultArch: defaultArch,
		logger:      console.OrDiscard(logger),
	}
}

// Resolve maps token and archHint onto exactly one version and width.
// With localOnly set, partial versions are completed from installed
// versions instead of the remote index.
func (r *Resolver) Resolve(ctx context.Context, token, archHint string, localOnly bool) (domain.Resolved, error) {
	token = strings.TrimSpace(token)
	if strings.HasPrefix(token, "--") {
		r.logger.Warn("Versions are plain arguments, ignoring the leading dashes", "token", token)
		token = strings.TrimLeft(token, "-")
	}

	token = strings.ToLower(token)
	if token == "" {
		return domain.Resolved{}, domain.ErrEmptyVersion
	}

	arch, err := r.arch(archHint)
	if err != nil {
		return domain.Resolved{}, err
	}

	v, arch, err := r.version(ctx, token, arch, localOnly)
	if err != nil {
		return domain.Resolved{}, err
	}

	r.logger.Debug("Resolved version", "token", token, "version", v.String(), "arch", arch)

	return domain.Resolved{Version: v, Arch: arch}, nil
}

func (r *Resolver) arch(hint string) (domain.Arch, error) {
	hint = strings.TrimSpace(hint)
	if hint == "" {
		return r.defaultArch, nil
	}

	arch, err := domain.ParseArch(hint)
	if err != nil {
		return "", err
	}

	if arch == domain.ArchAll {
		return arch, nil
	}

	return domain.ValidateArch(string(arch)), nil
}

func (r *Resolver) version(ctx context.Context, token string, arch domain.Arch, localOnly bool) (*semver.Version, domain.Arch, error) {
	switch token {
	case AliasLatest, AliasNode:
		v, err := r.latest(ctx)

		return v, arch, err
	case AliasLTS:
		v, err := r.lts(ctx)

		return v, arch, err
	case AliasNewest:
		v, err := r.newestInstalled()

		return v, arch, err
	case string(domain.Arch32), string(domain.Arch64):
		v, err := r.inventory.Active()
		if err != nil {
			return nil, "", fmt.Errorf("cannot switch to %s-bit: %w", token, err)
		}

		return v, domain.Arch(token), nil
	}

	// Code names need the index, which local resolution never reads.
	if !localOnly && IsCodename(token) {
		v, found, err := r.codename(ctx, strings.TrimPrefix(token, codenamePrefix))
		if err != nil {
			return nil, "", err
		}

		if found {
			return v, arch, nil
		}
	}

	v, err := r.numeric(ctx, token, localOnly)

	return v, arch, err
}

func (r *Resolver) latest(ctx context.Context) (*semver.Version, error) {
	releases, err := r.index.Releases(ctx)
	if err != nil {
		return nil, err
	}

	if v, ok := remote.NewestCurrent(releases); ok {
		return v, nil
	}

	return r.index.Latest(ctx)
}

func (r *Resolver) lts(ctx context.Context) (*semver.Version, error) {
	releases, err := r.index.Releases(ctx)
	if err != nil {
		return nil, err
	}

	if v, ok := remote.NewestLTS(releases); ok {
		return v, nil
	}

	return nil, fmt.Errorf("%w: %s (the index lists no LTS release)", domain.ErrUnrecognizedVersion, AliasLTS)
}

func (r *Resolver) newestInstalled() (*semver.Version, error) {
	installed, err := r.inventory.Installed()
	if err != nil {
		return nil, err
	}

	if len(installed) == 0 {
		return nil, domain.ErrNoInstalledVersions
	}

	return installed[0], nil
}

func (r *Resolver) codename(ctx context.Context, name string) (*semver.Version, bool, error) {
	releases, err := r.index.Releases(ctx)
	if err != nil {
		return nil, false, err
	}

	v, ok := remote.NewestOfLine(releases, name)

	return v, ok, nil
}

func (r *Resolver) numeric(ctx context.Context, token string, localOnly bool) (*semver.Version, error) {
	trimmed := strings.TrimLeftFunc(token, func(c rune) bool { return c < '0' || c > '9' })

	prefix, err := parsePrefix(trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnrecognizedVersion, token)
	}

	if len(prefix) == 3 {
		return semver.New(prefix[0], prefix[1], prefix[2], "", ""), nil
	}

	candidates, err := r.candidates(ctx, localOnly)
	if err != nil {
		return nil, err
	}

	if v := HighestMatch(candidates, prefix); v != nil {
		return v, nil
	}

	return nil, fmt.Errorf("%w: %s", domain.ErrUnrecognizedVersion, token)
}

func (r *Resolver) candidates(ctx context.Context, localOnly bool) ([]*semver.Version, error) {
	if localOnly {
		return r.inventory.Installed()
	}

	releases, err := r.index.Releases(ctx)
	if err != nil {
		return nil, err
	}

	versions := make([]*semver.Version, 0, len(releases))
	for _, rel := range releases {
		if v, err := rel.SemVer(); err == nil {
			versions = append(versions, v)
		}
	}

	return versions, nil
}

// HighestMatch returns the highest version whose leading components equal
// prefix, or nil.
func HighestMatch(versions []*semver.Version, prefix []uint64) *semver.Version {
	var best *semver.Version

	for _, v := range versions {
		if !matches(v, prefix) {
			continue
		}

		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}

	return best
}

func matches(v *semver.Version, prefix []uint64) bool {
	parts := [3]uint64{v.Major(), v.Minor(), v.Patch()}
	for i, want := range prefix {
		if parts[i] != want {
			return false
		}
	}

	return true
}

// parsePrefix splits a dotted numeric version of one to three components.
func parsePrefix(s string) ([]uint64, error) {
	fields := strings.Split(s, ".")
	if s == "" || len(fields) > 3 {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnrecognizedVersion, s)
	}

	out := make([]uint64, 0, len(fields))

	for _, f := range fields {
		n, err := strconv.ParseUint(f, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnrecognizedVersion, s)
		}

		out = append(out, n)
	}

	return out, nil
}

// IsCodename reports whether token has the shape of an LTS code name,
// either "lts/<name>" or a bare lowercase word.
func IsCodename(token string) bool {
	return strings.HasPrefix(token, codenamePrefix) || isWord(token)
}

func isWord(s string) bool {
	for _, c := range s {
		if c < 'a' || c > 'z' {
			return false
		}
	}

	return s != ""
}
