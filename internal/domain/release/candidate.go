package release

import (
	"errors"
	"regexp"
	"runtime"
	"sort"
)

// System identifies the platform tag the vendor uses in archive names.
type System string

// Platform tags as they appear in published archive names.
const (
	SystemWindows System = "win"
	SystemMac     System = "mac"
	SystemLinux   System = "lin"
)

// ErrNoSuitableArchive is returned when a listing contains no archive
// matching the running system's tag and suffix.
var ErrNoSuitableArchive = errors.New("no suitable archive for this system")

// namePattern matches the vendor's fixed naming scheme:
// libxl-<system>-<dotted version>.<suffix>.
var namePattern = regexp.MustCompile(`^libxl-(win|mac|lin)-(\d+(?:\.\d+)*)\.(zip|tar\.gz)$`)

// CurrentSystem maps the running operating system to its platform tag.
// Anything that is neither Windows nor macOS is treated as Linux.
func CurrentSystem() System {
	return systemFor(runtime.GOOS)
}

// systemFor is the GOOS mapping behind CurrentSystem, split out for tests.
func systemFor(goos string) System {
	switch goos {
	case "windows":
		return SystemWindows
	case "darwin":
		return SystemMac
	default:
		return SystemLinux
	}
}

// ArchiveSuffix is the archive format the vendor publishes for the system.
func (s System) ArchiveSuffix() string {
	if s == SystemWindows {
		return "zip"
	}

	return "tar.gz"
}

// Candidate is one remote archive decoded from a directory listing entry.
type Candidate struct {
	// File is the raw listing name, used to request the download.
	File string
	// System is the platform tag embedded in the name.
	System System
	// Version is the dotted numeric version embedded in the name.
	Version Version
	// Suffix is the archive format extension ("zip" or "tar.gz").
	Suffix string
}

// ParseCandidate decodes a listing entry against the fixed naming scheme.
// Names that do not match are not an error: they are simply not candidates,
// so the second return value reports a non-match instead.
func ParseCandidate(name string) (Candidate, bool) {
	groups := namePattern.FindStringSubmatch(name)
	if groups == nil {
		return Candidate{}, false
	}

	version, err := ParseVersion(groups[2])
	if err != nil {
		// The pattern only admits digits and dots, so this only trips on
		// pathological values such as out-of-range components.
		return Candidate{}, false
	}

	return Candidate{
		File:    name,
		System:  System(groups[1]),
		Version: version,
		Suffix:  groups[3],
	}, true
}

// Select filters a raw listing down to archives for the given system and
// returns the newest one. Selection is deterministic for a given listing and
// system; entries that do not decode are dropped silently.
func Select(names []string, sys System) (Candidate, error) {
	suffix := sys.ArchiveSuffix()
	matched := make([]Candidate, 0, len(names))

	for _, name := range names {
		candidate, ok := ParseCandidate(name)
		if !ok {
			continue
		}

		if candidate.System != sys || candidate.Suffix != suffix {
			continue
		}

		matched = append(matched, candidate)
	}

	if len(matched) == 0 {
		return Candidate{}, ErrNoSuitableArchive
	}

	// Newest first.
	sort.SliceStable(matched, func(i, j int) bool {
		return Compare(matched[i].Version, matched[j].Version) < 0
	})

	return matched[0], nil
}
