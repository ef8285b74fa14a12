// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Arch is a runtime bit width. ArchAll is only meaningful at request time.
type Arch string

// Supported architectures.
const (
	Arch32  Arch = "32"
	Arch64  Arch = "64"
	ArchAll Arch = "all"
)

// ValidateArch maps any architecture hint onto a concrete width.
// Anything mentioning 64 is 64-bit, everything else is 32-bit.
func ValidateArch(hint string) Arch {
	if strings.Contains(hint, "64") {
		return Arch64
	}

	return Arch32
}

// ParseArch accepts "32", "64" or "all" and rejects everything else.
func ParseArch(hint string) (Arch, error) {
	switch strings.ToLower(strings.TrimSpace(hint)) {
	case "all":
		return ArchAll, nil
	case "32":
		return Arch32, nil
	case "64":
		return Arch64, nil
	default:
		return "", fmt.Errorf("%w: %q (expected 32, 64 or all)", ErrInvalidArch, hint)
	}
}

// HostArch returns the bit width of the running process.
func HostArch() Arch {
	return ValidateArch(runtime.GOARCH)
}

// Widths expands ArchAll into both concrete widths.
func (a Arch) Widths() []Arch {
	if a == ArchAll {
		return []Arch{Arch32, Arch64}
	}

	return []Arch{a}
}

// Other returns the opposite concrete width.
func (a Arch) Other() Arch {
	if a == Arch64 {
		return Arch32
	}

	return Arch64
}

func (a Arch) String() string {
	return string(a)
}

// Channel is the release line a version belongs to in listings.
type Channel int

// Release channels.
const (
	ChannelCurrent Channel = iota
	ChannelLTS
	ChannelOldStable
	ChannelOldUnstable
)

func (c Channel) String() string {
	switch c {
	case ChannelLTS:
		return "LTS"
	case ChannelOldStable:
		return "Old Stable"
	case ChannelOldUnstable:
		return "Old Unstable"
	default:
		return "Current"
	}
}

// LTS holds the long-term-support code name of a release. The index encodes
// non-LTS releases as the boolean false and LTS releases as the code name.
type LTS struct {
	Name string
}

// UnmarshalJSON accepts either a string or a boolean.
func (l *LTS) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		l.Name = ""

		return nil
	}

	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		l.Name = name

		return nil
	}

	var flag bool
	if err := json.Unmarshal(data, &flag); err != nil {
		return fmt.Errorf("lts must be a string or boolean: %w", err)
	}

	if flag {
		l.Name = "lts"
	} else {
		l.Name = ""
	}

	return nil
}

// MarshalJSON writes the code name, or false when the release is not LTS.
func (l LTS) MarshalJSON() ([]byte, error) {
	if l.Name == "" {
		return []byte("false"), nil
	}

	return json.Marshal(l.Name)
}

// FlexString decodes a JSON string or number into its textual form.
type FlexString string

// UnmarshalJSON accepts strings, numbers and null.
func (f *FlexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*f = ""

		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}

	*f = FlexString(n.String())

	return nil
}

// Release is one entry of the remote version index.
type Release struct {
	Version  string     `json:"version"`
	Date     string     `json:"date"`
	Files    []string   `json:"files"`
	NPM      string     `json:"npm,omitempty"`
	V8       string     `json:"v8"`
	UV       string     `json:"uv,omitempty"`
	Zlib     string     `json:"zlib,omitempty"`
	OpenSSL  string     `json:"openssl,omitempty"`
	Modules  FlexString `json:"modules,omitempty"`
	LTS      LTS        `json:"lts"`
	Security bool       `json:"security"`
}

// SemVer parses the release version.
func (r Release) SemVer() (*semver.Version, error) {
	v, err := semver.NewVersion(r.Version)
	if err != nil {
		return nil, fmt.Errorf("invalid release version %q: %w", r.Version, err)
	}

	return v, nil
}

// IsLTS reports whether the release belongs to a long-term-support line.
func (r Release) IsLTS() bool {
	return r.LTS.Name != ""
}

// Channel classifies the release for listings.
func (r Release) Channel() Channel {
	if r.IsLTS() {
		return ChannelLTS
	}

	v, err := r.SemVer()
	if err != nil || v.Major() >= 1 {
		return ChannelCurrent
	}

	if v.Minor()%2 == 0 {
		return ChannelOldStable
	}

	return ChannelOldUnstable
}

// Offers64Bit reports whether official 64-bit builds exist for the version.
// Nothing older than 0.8 shipped one.
func Offers64Bit(v *semver.Version) bool {
	return v.Major() > 0 || v.Minor() >= 8
}

// Resolved is the outcome of version resolution.
type Resolved struct {
	Version *semver.Version
	Arch    Arch
}

// Tag renders the version the way directories and download paths name it.
func (r Resolved) Tag() string {
	return VersionTag(r.Version)
}

// VersionTag renders a version as "vX.Y.Z".
func VersionTag(v *semver.Version) string {
	return "v" + v.String()
}
