// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package install

// State is a step of an install.
type State int

// Install states in the order they are entered. StateFailed can follow any
// of them.
const (
	StateRequested State = iota
	StateResolving
	StateDirectoryPrepared
	StateFetchingRuntime
	StateFetchingPackageManager
	StateRelocating
	StateComplete
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRequested:
		return "requested"
	case StateResolving:
		return "resolving"
	case StateDirectoryPrepared:
		return "directory-prepared"
	case StateFetchingRuntime:
		return "fetching-runtime"
	case StateFetchingPackageManager:
		return "fetching-package-manager"
	case StateRelocating:
		return "relocating"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
