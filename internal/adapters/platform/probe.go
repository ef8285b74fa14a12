// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

package platform

import (
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"errors"
	"fmt"

	"github.com/janderssonse/nvmw/internal/domain"
)

// ErrUnknownExecutable is returned when a file is not ELF, PE or Mach-O.
var ErrUnknownExecutable = errors.New("unrecognized executable format")

// ProbeArch reads the executable header at path and reports its bit width.
func ProbeArch(path string) (domain.Arch, error) {
	if f, err := elf.Open(path); err == nil {
		defer func() { _ = f.Close() }()

		if f.Class == elf.ELFCLASS64 {
			return domain.Arch64, nil
		}

		return domain.Arch32, nil
	}

	if f, err := pe.Open(path); err == nil {
		defer func() { _ = f.Close() }()

		if _, ok := f.OptionalHeader.(*pe.OptionalHeader64); ok {
			return domain.Arch64, nil
		}

		return domain.Arch32, nil
	}

	if f, err := macho.Open(path); err == nil {
		defer func() { _ = f.Close() }()

		return machoArch(f.Cpu), nil
	}

	if f, err := macho.OpenFat(path); err == nil {
		defer func() { _ = f.Close() }()

		for _, a := range f.Arches {
			if machoArch(a.Cpu) == domain.Arch64 {
				return domain.Arch64, nil
			}
		}

		return domain.Arch32, nil
	}

	return "", fmt.Errorf("%w: %s", ErrUnknownExecutable, path)
}

func machoArch(cpu macho.Cpu) domain.Arch {
	switch cpu {
	case macho.CpuAmd64, macho.CpuArm64, macho.CpuPpc64:
		return domain.Arch64
	default:
		return domain.Arch32
	}
}
