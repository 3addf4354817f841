package fetcher

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"

	"github.com/SebastienElet/libxl-fetch/internal/config"
	"github.com/SebastienElet/libxl-fetch/internal/domain/release"
	"github.com/SebastienElet/libxl-fetch/internal/repository/archive"
)

var errTestStream = errors.New("test stream error")

// memoryRepository is a minimal in-memory Repository implementation for tests.
type memoryRepository struct {
	// names is the directory listing to return.
	names []string
	// files maps listing names to archive bytes.
	files map[string][]byte
	// listErr is the error to return from List operations.
	listErr error
	// fetched records the names requested through Fetch.
	fetched []string
	// closed reports whether Close was called.
	closed bool
}

// List returns the canned listing.
func (m *memoryRepository) List(context.Context) ([]string, error) {
	return m.names, m.listErr
}

// Fetch serves the canned archive bytes for a name.
func (m *memoryRepository) Fetch(_ context.Context, name string) (io.ReadCloser, error) {
	m.fetched = append(m.fetched, name)

	contents, ok := m.files[name]
	if !ok {
		return io.NopCloser(&failingStream{}), nil
	}

	return io.NopCloser(bytes.NewReader(contents)), nil
}

// Close marks the repository closed.
func (m *memoryRepository) Close() error {
	m.closed = true

	return nil
}

// failingStream errors on the first read.
type failingStream struct{}

func (*failingStream) Read([]byte) (int, error) {
	return 0, errTestStream
}

// buildReleaseTarGz packs a minimal release tree (top directory plus one
// file) the way the vendor archives are laid out.
func buildReleaseTarGz(t *testing.T, topDir string) []byte {
	t.Helper()

	var buf bytes.Buffer

	compressor := gzip.NewWriter(&buf)
	writer := tar.NewWriter(compressor)

	require.NoError(t, writer.WriteHeader(&tar.Header{
		Name:     topDir + "/",
		Typeflag: tar.TypeDir,
		Mode:     0o755,
	}))

	payload := []byte("native library payload")
	require.NoError(t, writer.WriteHeader(&tar.Header{
		Name:     topDir + "/lib/libxl.so",
		Typeflag: tar.TypeReg,
		Mode:     0o644,
		Size:     int64(len(payload)),
	}))

	_, err := writer.Write(payload)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	require.NoError(t, compressor.Close())

	return buf.Bytes()
}

// testConfig returns a configuration rooted in a temporary directory.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.DepsDir = filepath.Join(t.TempDir(), "deps")

	return cfg
}

// newTestRunner builds a runner pinned to the Linux platform tag so the
// fixtures do not depend on the machine running the tests.
func newTestRunner(cfg *config.Config, dial repositoryDialer) *runner {
	f := newRunner(cfg, dial, true)
	f.system = release.SystemLinux

	return f
}

// failingDialer returns a dialer that records whether it was used.
func failingDialer(used *bool) repositoryDialer {
	return func(context.Context, *config.Config) (archive.Repository, error) {
		*used = true

		return nil, errors.New("dialer must not be used")
	}
}

// TestRunNoOpWhenTargetExists asserts the idempotent fast path: no network,
// immediate success.
func TestRunNoOpWhenTargetExists(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.TargetPath(), 0o755))

	var dialed bool

	f := newTestRunner(cfg, failingDialer(&dialed))

	require.NoError(t, f.Run(context.Background()))
	require.False(t, dialed)
}

// TestRunDownloadsExtractsRenames drives the whole pipeline against a fake
// repository: select newest, download, extract, rename, delete the archive.
func TestRunDownloadsExtractsRenames(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)

	repo := &memoryRepository{
		names: []string{
			"notes.txt",
			"libxl-win-9.9.9.zip",
			"libxl-lin-3.8.5.tar.gz",
			"libxl-lin-4.6.4.tar.gz",
		},
		files: map[string][]byte{
			"libxl-lin-4.6.4.tar.gz": buildReleaseTarGz(t, "libxl-4.6.4"),
		},
	}

	f := newTestRunner(cfg, func(context.Context, *config.Config) (archive.Repository, error) {
		return repo, nil
	})

	require.NoError(t, f.Run(context.Background()))

	// Newest matching archive was fetched, connection closed.
	require.Equal(t, []string{"libxl-lin-4.6.4.tar.gz"}, repo.fetched)
	require.True(t, repo.closed)

	// Extracted tree renamed onto the fixed target.
	contents, err := os.ReadFile(filepath.Join(cfg.TargetPath(), "lib", "libxl.so"))
	require.NoError(t, err)
	require.Equal(t, "native library payload", string(contents))

	// The downloaded archive was deleted afterward.
	_, err = os.Stat(filepath.Join(cfg.DepsDir, "libxl-lin-4.6.4.tar.gz"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestRunOverridePreservesArchive checks the environment escape hatch: no
// network fetch and the override file survives the run.
func TestRunOverridePreservesArchive(t *testing.T) {
	// Not parallel: the test mutates the process environment.
	cfg := testConfig(t)

	override := filepath.Join(t.TempDir(), "libxl-local.tar.gz")
	require.NoError(t, os.WriteFile(override, buildReleaseTarGz(t, "libxl-5.0.1"), 0o600))
	t.Setenv(config.ArchiveOverrideEnv, override)

	var dialed bool

	f := newTestRunner(cfg, failingDialer(&dialed))

	require.NoError(t, f.Run(context.Background()))
	require.False(t, dialed)

	// Target populated and the override archive untouched.
	_, err := os.Stat(filepath.Join(cfg.TargetPath(), "lib", "libxl.so"))
	require.NoError(t, err)

	_, err = os.Stat(override)
	require.NoError(t, err)
}

// TestRunOverrideMissingFile ensures a dangling override path fails fast.
func TestRunOverrideMissingFile(t *testing.T) {
	// Not parallel: the test mutates the process environment.
	cfg := testConfig(t)
	t.Setenv(config.ArchiveOverrideEnv, filepath.Join(t.TempDir(), "missing.tar.gz"))

	var dialed bool

	f := newTestRunner(cfg, failingDialer(&dialed))

	require.Error(t, f.Run(context.Background()))
	require.False(t, dialed)
}

// TestRunNoSuitableArchive surfaces the selector error through the pipeline.
func TestRunNoSuitableArchive(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	repo := &memoryRepository{
		names: []string{"libxl-win-4.6.4.zip", "readme.txt"},
	}

	f := newTestRunner(cfg, func(context.Context, *config.Config) (archive.Repository, error) {
		return repo, nil
	})

	err := f.Run(context.Background())
	require.ErrorIs(t, err, release.ErrNoSuitableArchive)
	require.True(t, repo.closed)
}

// TestRunStreamFailureCleansArchive ensures a failed transfer propagates and
// the partial file does not survive cleanup.
func TestRunStreamFailureCleansArchive(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t)
	repo := &memoryRepository{
		names: []string{"libxl-lin-4.6.4.tar.gz"},
	}

	f := newTestRunner(cfg, func(context.Context, *config.Config) (archive.Repository, error) {
		return repo, nil
	})

	err := f.Run(context.Background())
	require.ErrorIs(t, err, errTestStream)

	_, err = os.Stat(filepath.Join(cfg.DepsDir, "libxl-lin-4.6.4.tar.gz"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// TestLocateExtracted covers the directory scan used during finalization.
func TestLocateExtracted(t *testing.T) {
	t.Parallel()

	depsDir := t.TempDir()

	// Nothing extracted yet.
	_, err := locateExtracted(depsDir, "libxl")
	require.ErrorIs(t, err, errExtractedDirNotFound)

	// Archive files sharing the prefix do not count.
	require.NoError(t, os.WriteFile(filepath.Join(depsDir, "libxl-lin-4.6.4.tar.gz"), []byte("x"), 0o600))

	_, err = locateExtracted(depsDir, "libxl")
	require.ErrorIs(t, err, errExtractedDirNotFound)

	// A matching directory wins.
	require.NoError(t, os.MkdirAll(filepath.Join(depsDir, "libxl-4.6.4"), 0o755))

	found, err := locateExtracted(depsDir, "libxl")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(depsDir, "libxl-4.6.4"), found)
}
