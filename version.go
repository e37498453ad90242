package epub

import (
	"strconv"
	"strings"
)

// Version is an EPUB package format version. Only major versions 2 and 3
// exist in the wild; the accepted numeric range is [2,4).
type Version struct {
	Major int
	Minor int
}

// Well-known format versions.
var (
	EPUB2 = Version{Major: 2}
	EPUB3 = Version{Major: 3}
)

func (v Version) String() string {
	return strconv.Itoa(v.Major) + "." + strconv.Itoa(v.Minor)
}

// IsEPUB2 reports whether the major version is 2.
func (v Version) IsEPUB2() bool { return v.Major == 2 }

// IsEPUB3 reports whether the major version is 3.
func (v Version) IsEPUB3() bool { return v.Major == 3 }

// asMajor drops the minor component. Toc groups are keyed by major version
// so that, e.g., 3.2 and 3.0 navigation documents land in the same group.
func (v Version) asMajor() Version { return Version{Major: v.Major} }

// parseVersion parses a package version attribute such as "2.0", "3", or
// "3.2". It reports false for values outside [2,4) or not numeric.
func parseVersion(raw string) (Version, bool) {
	s := strings.TrimSpace(raw)
	majorStr, minorStr, hasMinor := strings.Cut(s, ".")

	major, err := strconv.Atoi(majorStr)
	if err != nil {
		return Version{}, false
	}
	v := Version{Major: major}
	if hasMinor {
		minor, err := strconv.Atoi(minorStr)
		if err != nil {
			return Version{}, false
		}
		v.Minor = minor
	}
	if v.Major < 2 || v.Major >= 4 || v.Minor < 0 {
		return v, false
	}
	return v, true
}
