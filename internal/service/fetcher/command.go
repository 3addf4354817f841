package fetcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/SebastienElet/libxl-fetch/internal/config"
	"github.com/SebastienElet/libxl-fetch/internal/domain/release"
	"github.com/SebastienElet/libxl-fetch/internal/downloader"
	"github.com/SebastienElet/libxl-fetch/internal/extract"
	"github.com/SebastienElet/libxl-fetch/internal/logger"
	"github.com/SebastienElet/libxl-fetch/internal/repository/archive"
)

// Options are inputs accepted by the fetcher entry point.
type Options struct {
	// ConfigPath is the optional path to the settings YAML file.
	ConfigPath string
	// Quiet suppresses the download progress bar.
	Quiet bool
}

// repositoryDialer opens a connection to the release host. It is a field on
// the runner so tests can substitute an in-memory repository.
type repositoryDialer func(ctx context.Context, cfg *config.Config) (archive.Repository, error)

// runner holds the mutable state for a single fetch execution.
// It is intentionally unexported. Call Run(ctx, Options) from callers.
type runner struct {
	cfg             *config.Config // Connection and layout configuration.
	dial            repositoryDialer
	system          release.System // Platform tag archives are matched against.
	quiet           bool
	archivePath     string // Local archive to extract, downloaded or overridden.
	preserveArchive bool   // Override archives are never deleted.
}

// Run executes the fetch lifecycle and is the public entry point for the CLI.
func Run(ctx context.Context, opts *Options) error {
	ctx = logger.WithName(ctx, "libxl-fetch")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}

	f := newRunner(cfg, dialFTP, opts.Quiet)

	if err = f.Run(ctx); err != nil {
		logger.ErrorKV(ctx, "Fetch failed", "error", err)
		return err
	}

	return nil
}

// dialFTP is the production dialer.
func dialFTP(ctx context.Context, cfg *config.Config) (archive.Repository, error) {
	return archive.Dial(ctx, cfg)
}

// newRunner prepares a run against the current platform.
func newRunner(cfg *config.Config, dial repositoryDialer, quiet bool) *runner {
	return &runner{
		cfg:    cfg,
		dial:   dial,
		system: release.CurrentSystem(),
		quiet:  quiet,
	}
}

// Run executes the workflow for this runner instance:
// 1) Skip everything when the target directory already exists.
// 2) Obtain an archive, from the environment override or the release host.
// 3) Extract it into the dependency directory.
// 4) Rename the extracted directory onto the fixed target path.
// 5) Clean up the downloaded archive.
func (f *runner) Run(ctx context.Context) error {
	target := f.cfg.TargetPath()

	if _, err := os.Stat(target); err == nil {
		logger.InfoKV(ctx, "Dependency already present, nothing to do", "path", target)
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("inspect target %s: %w", target, err)
	}

	if err := os.MkdirAll(f.cfg.DepsDir, dirPermissions); err != nil {
		return fmt.Errorf("create dependency directory %s: %w", f.cfg.DepsDir, err)
	}

	defer f.cleanup(ctx)

	if err := f.resolveArchive(ctx); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Extracting archive", "path", f.archivePath)

	if err := extract.Extract(ctx, f.archivePath, f.cfg.DepsDir); err != nil {
		return fmt.Errorf("extract archive: %w", err)
	}

	if err := f.finalize(ctx); err != nil {
		return err
	}

	logger.InfoKV(ctx, "Dependency installed", "path", target)

	return nil
}

// resolveArchive decides where the archive comes from: a local override
// supplied through the environment, or a fresh download from the host.
func (f *runner) resolveArchive(ctx context.Context) error {
	override := config.ArchiveOverride()
	if override == "" {
		return f.fetchFromServer(ctx)
	}

	if _, err := os.Stat(override); err != nil {
		return fmt.Errorf("archive override %s: %w", override, err)
	}

	logger.InfoKV(ctx, "Using archive override, skipping download",
		"variable", config.ArchiveOverrideEnv, "path", override)

	f.archivePath = override
	f.preserveArchive = true

	return nil
}

// fetchFromServer connects, lists the release directory, selects the newest
// archive for this platform, and streams it to the dependency directory.
func (f *runner) fetchFromServer(ctx context.Context) error {
	repo, err := f.dial(ctx, f.cfg)
	if err != nil {
		return err
	}

	defer func() {
		if err := repo.Close(); err != nil {
			logger.Warnf(ctx, "Closing release host connection: %v", err)
		}
	}()

	names, err := repo.List(ctx)
	if err != nil {
		return err
	}

	candidate, err := release.Select(names, f.system)
	if err != nil {
		return err
	}

	logger.InfoKV(ctx, "Selected archive",
		"file", candidate.File, "version", candidate.Version.String())

	stream, err := repo.Fetch(ctx, candidate.File)
	if err != nil {
		return err
	}

	label := ""
	if !f.quiet {
		label = candidate.File
	}

	destPath := filepath.Join(f.cfg.DepsDir, candidate.File)

	result, err := downloader.Download(ctx, stream, destPath, downloader.Options{
		ProgressLabel: label,
	})
	if err != nil {
		_ = stream.Close()

		// Keep cleanup responsible for the partial file.
		f.archivePath = destPath

		return err
	}

	// The transfer is complete; an error surfacing on stream close now is
	// informational, not a failure.
	if err = stream.Close(); err != nil {
		logger.Warnf(ctx, "Late transfer error after completion: %v", err)
	}

	logger.InfoKV(ctx, "Downloaded archive",
		"path", result.Path, "bytes", result.Bytes, "md5", result.Checksum)

	f.archivePath = result.Path

	return nil
}

// finalize locates the directory the archive unpacked to and renames it onto
// the fixed target path.
func (f *runner) finalize(ctx context.Context) error {
	extracted, err := locateExtracted(f.cfg.DepsDir, f.cfg.TargetName)
	if err != nil {
		return err
	}

	target := f.cfg.TargetPath()

	logger.InfoKV(ctx, "Renaming extracted directory", "from", extracted, "to", target)

	if err = os.Rename(extracted, target); err != nil {
		return fmt.Errorf("rename %s to %s: %w", extracted, target, err)
	}

	return nil
}

// cleanup deletes the downloaded archive. Override archives are preserved,
// and a half-extracted directory is deliberately left behind on failure.
func (f *runner) cleanup(ctx context.Context) {
	if f.archivePath == "" || f.preserveArchive {
		return
	}

	if err := os.Remove(f.archivePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warnf(ctx, "Removing downloaded archive %s: %v", f.archivePath, err)
	}
}
