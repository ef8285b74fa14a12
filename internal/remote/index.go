// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package remote reads the release catalogue published by a Node.js mirror.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/charmbracelet/log"
	"github.com/janderssonse/nvmw/internal/console"
	"github.com/janderssonse/nvmw/internal/domain"
)

const (
	indexPath    = "index.json"
	manifestPath = "latest/SHASUMS256.txt"
)

// ErrNoLatestMarker is returned when the manifest names no release.
var ErrNoLatestMarker = errors.New("latest manifest names no release")

var latestPattern = regexp.MustCompile(`node-v(\d+\.\d+\.\d+)`)

// Getter fetches small documents.
type Getter interface {
	GetBytes(ctx context.Context, url string) ([]byte, error)
	GetText(ctx context.Context, url string) (string, error)
}

// Client implements domain.ReleaseIndex. Both documents are fetched at most
// once per Client; failures are not cached.
type Client struct {
	getter Getter
	mirror string
	logger *log.Logger

	mu       sync.Mutex
	releases []domain.Release
	latest   *semver.Version
}

// NewClient creates a client for the mirror, which must end with a slash.
func NewClient(getter Getter, mirror string, logger *log.Logger) *Client {
	return &Client{
		getter: getter,
		mirror: mirror,
		logger: console.OrDiscard(logger),
	}
}

// IndexURL returns the location of index.json.
func (c *Client) IndexURL() string {
	return c.mirror + indexPath
}

// Releases returns every parseable release, newest first.
func (c *Client) Releases(ctx context.Context) ([]domain.Release, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.releases != nil {
		return c.releases, nil
	}

	c.logger.Debug("Fetching release index", "url", c.IndexURL())

	data, err := c.getter.GetBytes(ctx, c.IndexURL())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch release index: %w", err)
	}

	releases, err := ParseIndex(data)
	if err != nil {
		return nil, err
	}

	c.releases = releases

	return releases, nil
}

// Latest returns the version named by latest/SHASUMS256.txt.
func (c *Client) Latest(ctx context.Context) (*semver.Version, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.latest != nil {
		return c.latest, nil
	}

	url := c.mirror + manifestPath
	c.logger.Debug("Fetching latest manifest", "url", url)

	manifest, err := c.getter.GetText(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest manifest: %w", err)
	}

	v, err := ParseLatest(manifest)
	if err != nil {
		return nil, err
	}

	c.latest = v

	return v, nil
}

// ParseIndex decodes index.json. Entries whose version does not parse are
// skipped.
func ParseIndex(data []byte) ([]domain.Release, error) {
	var raw []domain.Release
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode release index: %w", err)
	}

	releases := make([]domain.Release, 0, len(raw))
	versions := make(map[string]*semver.Version, len(raw))

	for _, r := range raw {
		v, err := r.SemVer()
		if err != nil {
			continue
		}

		versions[r.Version] = v
		releases = append(releases, r)
	}

	sort.SliceStable(releases, func(i, j int) bool {
		return versions[releases[i].Version].GreaterThan(versions[releases[j].Version])
	})

	return releases, nil
}

// ParseLatest extracts the first node-vX.Y.Z token from a checksum manifest.
func ParseLatest(manifest string) (*semver.Version, error) {
	m := latestPattern.FindStringSubmatch(manifest)
	if m == nil {
		return nil, ErrNoLatestMarker
	}

	v, err := semver.NewVersion(m[1])
	if err != nil {
		return nil, fmt.Errorf("invalid latest version %q: %w", m[1], err)
	}

	return v, nil
}

// Find returns the release for exactly v.
func Find(releases []domain.Release, v *semver.Version) (domain.Release, bool) {
	for _, r := range releases {
		rv, err := r.SemVer()
		if err == nil && rv.Equal(v) {
			return r, true
		}
	}

	return domain.Release{}, false
}

// NewestCurrent returns the newest release on the Current channel.
func NewestCurrent(releases []domain.Release) (*semver.Version, bool) {
	return newest(releases, func(r domain.Release) bool { return r.Channel() == domain.ChannelCurrent })
}

// NewestLTS returns the newest long-term-support release.
func NewestLTS(releases []domain.Release) (*semver.Version, bool) {
	return newest(releases, domain.Release.IsLTS)
}

// NewestOfLine returns the newest release of the LTS line with the given
// code name, compared case-insensitively.
func NewestOfLine(releases []domain.Release, codename string) (*semver.Version, bool) {
	return newest(releases, func(r domain.Release) bool {
		return r.IsLTS() && strings.EqualFold(r.LTS.Name, codename)
	})
}

func newest(releases []domain.Release, keep func(domain.Release) bool) (*semver.Version, bool) {
	var best *semver.Version

	for _, r := range releases {
		if !keep(r) {
			continue
		}

		v, err := r.SemVer()
		if err != nil {
			continue
		}

		if best == nil || v.GreaterThan(best) {
			best = v
		}
	}

	return best, best != nil
}

// Grouped holds releases split by channel, each newest first.
type Grouped struct {
	Current     []domain.Release
	LTS         []domain.Release
	OldStable   []domain.Release
	OldUnstable []domain.Release
}

// Rows returns the number of table rows needed to show at most limit
// entries per channel.
func (g Grouped) Rows(limit int) int {
	rows := 0
	for _, col := range [][]domain.Release{g.Current, g.LTS, g.OldStable, g.OldUnstable} {
		rows = max(rows, min(len(col), limit))
	}

	return rows
}

// Group splits releases by channel.
func Group(releases []domain.Release) Grouped {
	var g Grouped

	for _, r := range releases {
		switch r.Channel() {
		case domain.ChannelLTS:
			g.LTS = append(g.LTS, r)
		case domain.ChannelOldStable:
			g.OldStable = append(g.OldStable, r)
		case domain.ChannelOldUnstable:
			g.OldUnstable = append(g.OldUnstable, r)
		default:
			g.Current = append(g.Current, r)
		}
	}

	return g
}
