// SPDX-FileCopyrightText: 2025 The Karei Authors
// SPDX-License-Identifier: EUPL-1.2

// Package archive unpacks the zip, tar.gz and tar.xz artifacts published by
// runtime and package-manager mirrors.
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/ulikunitz/xz"
)

var (
	// ErrUnsafePath is returned for entries that would land outside the destination.
	ErrUnsafePath = errors.New("unsafe archive path")
	// ErrUnknownFormat is returned when the archive type cannot be derived from its name.
	ErrUnknownFormat = errors.New("unknown archive format")
)

const (
	dirPerm = 0o755
)

// Extract unpacks archivePath into dest. With strip set the first path
// component of every entry is dropped, which flattens the single top-level
// directory release archives wrap their content in.
func Extract(archivePath, dest string, strip bool) error {
	switch {
	case strings.HasSuffix(archivePath, ".zip"):
		return ExtractZip(archivePath, dest, strip)
	case strings.HasSuffix(archivePath, ".tar.gz"), strings.HasSuffix(archivePath, ".tgz"):
		return ExtractTarGz(archivePath, dest, strip)
	case strings.HasSuffix(archivePath, ".tar.xz"):
		return ExtractTarXz(archivePath, dest, strip)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownFormat, filepath.Base(archivePath))
	}
}

// ExtractTarGz unpacks a gzip-compressed tarball.
func ExtractTarGz(archivePath, dest string, strip bool) error {
	// #nosec G304 -- archive path is created by the fetcher
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() { _ = file.Close() }()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("create gzip reader for %s: %w", archivePath, err)
	}

	defer func() { _ = gzr.Close() }()

	return extractTar(tar.NewReader(gzr), dest, strip)
}

// ExtractTarXz unpacks an xz-compressed tarball.
func ExtractTarXz(archivePath, dest string, strip bool) error {
	// #nosec G304 -- archive path is created by the fetcher
	file, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() { _ = file.Close() }()

	xzr, err := xz.NewReader(file)
	if err != nil {
		return fmt.Errorf("create xz reader for %s: %w", archivePath, err)
	}

	return extractTar(tar.NewReader(xzr), dest, strip)
}

func extractTar(tr *tar.Reader, dest string, strip bool) error {
	if err := os.MkdirAll(dest, dirPerm); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read tar entry: %w", err)
		}

		rel, skip, err := entryPath(header.Name, strip)
		if err != nil {
			return err
		}

		if skip {
			continue
		}

		target := filepath.Join(dest, rel)
		if err := ensureWithinRoot(dest, target); err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, dirPerm); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeFile(target, tr, os.FileMode(header.Mode).Perm()); err != nil { //nolint:gosec // mode comes from tar header
				return err
			}
		case tar.TypeSymlink:
			if err := writeSymlink(dest, target, header.Linkname); err != nil {
				return err
			}
		case tar.TypeLink:
			linkRel, linkSkip, err := entryPath(header.Linkname, strip)
			if err != nil || linkSkip {
				return fmt.Errorf("%w: hard link %s -> %s", ErrUnsafePath, header.Name, header.Linkname)
			}

			source := filepath.Join(dest, linkRel)
			if err := ensureWithinRoot(dest, source); err != nil {
				return err
			}

			_ = os.Remove(target)

			if err := os.Link(source, target); err != nil {
				return fmt.Errorf("create hard link %s: %w", target, err)
			}
		default:
			// Pax headers and device nodes carry nothing a runtime needs.
		}
	}
}

// ExtractZip unpacks a zip archive.
func ExtractZip(archivePath, dest string, strip bool) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}

	defer func() { _ = r.Close() }()

	if err := os.MkdirAll(dest, dirPerm); err != nil {
		return fmt.Errorf("create destination: %w", err)
	}

	for _, file := range r.File {
		rel, skip, err := entryPath(file.Name, strip)
		if err != nil {
			return err
		}

		if skip {
			continue
		}

		target := filepath.Join(dest, rel)
		if err := ensureWithinRoot(dest, target); err != nil {
			return err
		}

		if err := extractZipEntry(file, dest, target); err != nil {
			return err
		}
	}

	return nil
}

func extractZipEntry(file *zip.File, dest, target string) error {
	mode := file.Mode()

	if mode.IsDir() {
		if err := os.MkdirAll(target, dirPerm); err != nil {
			return fmt.Errorf("create directory %s: %w", target, err)
		}

		return nil
	}

	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("open archive file %s: %w", file.Name, err)
	}

	defer func() { _ = rc.Close() }()

	if mode&os.ModeSymlink != 0 {
		linkTarget, err := io.ReadAll(io.LimitReader(rc, 4096))
		if err != nil {
			return fmt.Errorf("read link %s: %w", file.Name, err)
		}

		return writeSymlink(dest, target, string(linkTarget))
	}

	perm := mode.Perm()
	if perm == 0 {
		perm = 0o644
	}

	return writeFile(target, rc, perm)
}

// entryPath cleans an archive entry name and applies stripping. skip is set
// for entries that reduce to nothing (the stripped top-level directory).
func entryPath(name string, strip bool) (string, bool, error) {
	clean := path.Clean(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	clean = strings.TrimPrefix(clean, "./")

	if clean == "." || clean == "" {
		return "", true, nil
	}

	if clean == ".." || strings.HasPrefix(clean, "../") || path.IsAbs(clean) || filepath.IsAbs(clean) {
		return "", false, fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}

	if strip {
		_, rest, found := strings.Cut(clean, "/")
		if !found || rest == "" {
			return "", true, nil
		}

		clean = rest
	}

	return filepath.FromSlash(clean), false, nil
}

func ensureWithinRoot(root, target string) error {
	root = filepath.Clean(root)
	target = filepath.Clean(target)

	if target == root {
		return nil
	}

	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: %s", ErrUnsafePath, target)
	}

	return nil
}

func writeFile(target string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
		return fmt.Errorf("create parent of %s: %w", target, err)
	}

	// #nosec G304 -- target was checked against the destination root
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("create %s: %w", target, err)
	}

	// #nosec G110 -- release archives are fetched from the configured mirror
	if _, err := io.Copy(out, r); err != nil {
		_ = out.Close()

		return fmt.Errorf("write %s: %w", target, err)
	}

	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", target, err)
	}

	return nil
}

func writeSymlink(root, target, linkname string) error {
	resolved := linkname
	if !filepath.IsAbs(resolved) {
		resolved = filepath.Join(filepath.Dir(target), linkname)
	}

	if err := ensureWithinRoot(root, resolved); err != nil {
		return fmt.Errorf("%w: link %s -> %s", ErrUnsafePath, target, linkname)
	}

	if err := os.MkdirAll(filepath.Dir(target), dirPerm); err != nil {
		return fmt.Errorf("create parent of %s: %w", target, err)
	}

	_ = os.Remove(target)

	if err := os.Symlink(linkname, target); err != nil {
		return fmt.Errorf("create symlink %s: %w", target, err)
	}

	return nil
}
