package fetcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// dirPermissions is used for directories the fetcher creates itself.
	dirPermissions = 0o755

	// extractedPrefix is the directory name prefix releases unpack to,
	// e.g. libxl-4.6.4.
	extractedPrefix = "libxl"
)

// errExtractedDirNotFound is returned when extraction produced no directory
// matching the release layout.
var errExtractedDirNotFound = errors.New("extracted release directory not found")

// locateExtracted scans depsDir for the directory the archive unpacked to.
// The downloaded archive file shares the prefix, so only directories count,
// and the target itself is excluded in case of leftovers from earlier runs.
func locateExtracted(depsDir, targetName string) (string, error) {
	entries, err := os.ReadDir(depsDir)
	if err != nil {
		return "", fmt.Errorf("read dependency directory %s: %w", depsDir, err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		name := entry.Name()
		if name == targetName || !strings.HasPrefix(name, extractedPrefix) {
			continue
		}

		return filepath.Join(depsDir, name), nil
	}

	return "", fmt.Errorf("%w in %s", errExtractedDirNotFound, depsDir)
}
