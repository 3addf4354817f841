package release

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedVersion is returned when a version component is empty or not a
// non-negative integer. Malformed versions are rejected up front so the
// comparator never has to guess an ordering for them.
var ErrMalformedVersion = errors.New("malformed version")

// Version is a sequence of numeric components parsed from a dotted string,
// e.g. "4.6.4" -> [4 6 4].
type Version []int

// ParseVersion parses a dotted version string strictly.
func ParseVersion(s string) (Version, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty string", ErrMalformedVersion)
	}

	parts := strings.Split(s, ".")
	v := make(Version, 0, len(parts))

	for _, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: component %q in %q", ErrMalformedVersion, part, s)
		}

		v = append(v, n)
	}

	return v, nil
}

// Compare orders two versions numerically.
// It returns a negative value when a is newer than b, positive when older,
// and zero when equal, so sorting with Compare ascending yields newest first.
// When one version is a strict prefix of the other, the longer one is newer.
func Compare(a, b Version) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return b[i] - a[i]
		}
	}

	return len(b) - len(a)
}

// String renders the version back in dotted form.
func (v Version) String() string {
	parts := make([]string, 0, len(v))
	for _, n := range v {
		parts = append(parts, strconv.Itoa(n))
	}

	return strings.Join(parts, ".")
}
