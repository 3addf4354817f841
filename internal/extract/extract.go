package extract

import (
	"archive/tar"
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
)

var (
	// ErrUnknownFormat is returned for archive suffixes the extractor does
	// not dispatch on. Nothing is written in that case.
	ErrUnknownFormat = errors.New("unknown archive format")

	// errUnsafePath is returned when an entry would escape the destination.
	errUnsafePath = errors.New("archive entry escapes destination")
)

const (
	// defaultDirPermissions is used for directories the archive does not describe.
	defaultDirPermissions = 0o755

	// defaultFilePermissions is used for files whose archive entry carries no
	// permission bits at all.
	defaultFilePermissions = 0o644
)

// Extract unpacks the archive at archivePath into destDir, choosing the
// decoder from the filename suffix alone. On success destDir contains the
// archive contents directly. A failure mid-archive aborts the whole
// operation; already-written entries are left behind for the caller.
func Extract(ctx context.Context, archivePath, destDir string) error {
	switch {
	case strings.HasSuffix(archivePath, ".zip"):
		return extractZip(ctx, archivePath, destDir)
	case strings.HasSuffix(archivePath, ".tar.gz"), strings.HasSuffix(archivePath, ".tgz"):
		return extractTarGz(ctx, archivePath, destDir)
	default:
		return fmt.Errorf("%s: %w", archivePath, ErrUnknownFormat)
	}
}

// extractZip unpacks a zip archive entry by entry.
func extractZip(ctx context.Context, archivePath, destDir string) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open zip %s: %w", archivePath, err)
	}

	defer func() {
		_ = reader.Close()
	}()

	if err = os.MkdirAll(destDir, defaultDirPermissions); err != nil {
		return fmt.Errorf("create destination %s: %w", destDir, err)
	}

	for _, entry := range reader.File {
		if err = ctx.Err(); err != nil {
			return err
		}

		if err = writeZipEntry(entry, destDir); err != nil {
			return fmt.Errorf("extract %s: %w", entry.Name, err)
		}
	}

	return nil
}

// writeZipEntry writes one zip entry beneath destDir.
func writeZipEntry(entry *zip.File, destDir string) error {
	target, err := securePath(destDir, entry.Name)
	if err != nil {
		return err
	}

	mode := entry.Mode().Perm()
	if mode == 0 {
		// Archives written without permission bits still need readable output.
		mode = defaultFilePermissions
	}

	if entry.FileInfo().IsDir() {
		return os.MkdirAll(target, mode|0o700)
	}

	if err = os.MkdirAll(filepath.Dir(target), defaultDirPermissions); err != nil {
		return err
	}

	source, err := entry.Open()
	if err != nil {
		return err
	}

	defer func() {
		_ = source.Close()
	}()

	return writeFile(target, source, mode)
}

// extractTarGz runs the three-stage pipeline: file read, gunzip, untar.
// An error at any stage aborts the whole operation exactly once.
func extractTarGz(ctx context.Context, archivePath, destDir string) error {
	file, err := os.Open(filepath.Clean(archivePath))
	if err != nil {
		return fmt.Errorf("open archive %s: %w", archivePath, err)
	}

	defer func() {
		_ = file.Close()
	}()

	gunzip, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("gunzip %s: %w", archivePath, err)
	}

	defer func() {
		_ = gunzip.Close()
	}()

	if err = os.MkdirAll(destDir, defaultDirPermissions); err != nil {
		return fmt.Errorf("create destination %s: %w", destDir, err)
	}

	reader := tar.NewReader(gunzip)

	for {
		if err = ctx.Err(); err != nil {
			return err
		}

		header, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}

		if err != nil {
			return fmt.Errorf("read tar %s: %w", archivePath, err)
		}

		if err = writeTarEntry(header, reader, destDir); err != nil {
			return fmt.Errorf("extract %s: %w", header.Name, err)
		}
	}
}

// writeTarEntry writes one tar entry beneath destDir.
// Entry kinds other than directories, regular files, and symlinks are skipped.
func writeTarEntry(header *tar.Header, contents io.Reader, destDir string) error {
	target, err := securePath(destDir, header.Name)
	if err != nil {
		return err
	}

	switch header.Typeflag {
	case tar.TypeDir:
		return os.MkdirAll(target, header.FileInfo().Mode().Perm()|0o700)
	case tar.TypeReg:
		if err = os.MkdirAll(filepath.Dir(target), defaultDirPermissions); err != nil {
			return err
		}

		return writeFile(target, contents, header.FileInfo().Mode().Perm())
	case tar.TypeSymlink:
		if err = os.MkdirAll(filepath.Dir(target), defaultDirPermissions); err != nil {
			return err
		}

		// Links are common in shared-library layouts (libxl.so -> libxl.so.N).
		if filepath.IsAbs(header.Linkname) {
			return fmt.Errorf("%s -> %s: %w", header.Name, header.Linkname, errUnsafePath)
		}

		_ = os.Remove(target)

		return os.Symlink(header.Linkname, target)
	default:
		return nil
	}
}

// writeFile creates target with the given mode and copies contents into it.
func writeFile(target string, contents io.Reader, mode os.FileMode) error {
	file, err := os.OpenFile(filepath.Clean(target), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	if _, err = io.Copy(file, contents); err != nil {
		_ = file.Close()

		return err
	}

	return file.Close()
}

// securePath joins an archive entry name onto destDir and rejects entries
// that would resolve outside it.
func securePath(destDir, name string) (string, error) {
	target := filepath.Join(destDir, filepath.Clean(name))

	relative, err := filepath.Rel(destDir, target)
	if err != nil || relative == ".." || strings.HasPrefix(relative, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%s: %w", name, errUnsafePath)
	}

	return target, nil
}
