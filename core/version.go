package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a PDF structural version such as 1.7.
type Version struct {
	Major int
	Minor int
}

// Common versions.
var (
	V1_4 = Version{1, 4}
	V1_7 = Version{1, 7}
)

// String returns the version as a string (e.g., "1.7")
func (v Version) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Less reports whether v is older than w.
func (v Version) Less(w Version) bool {
	if v.Major != w.Major {
		return v.Major < w.Major
	}
	return v.Minor < w.Minor
}

// IsZero reports whether v is unset.
func (v Version) IsZero() bool {
	return v.Major == 0 && v.Minor == 0
}

// ParseVersion parses "x.y", as found after "%PDF-" or in a catalog /Version.
func ParseVersion(s string) (Version, error) {
	s = strings.TrimSpace(s)
	major, minor, ok := strings.Cut(s, ".")
	if !ok {
		return Version{}, fmt.Errorf("invalid version format: %q", s)
	}
	maj, err := strconv.Atoi(major)
	if err != nil || maj < 1 {
		return Version{}, fmt.Errorf("invalid major version: %q", s)
	}

	// tolerate trailing junk such as "7\r" or "4 "
	end := 0
	for end < len(minor) && minor[end] >= '0' && minor[end] <= '9' {
		end++
	}
	if end == 0 {
		return Version{}, fmt.Errorf("invalid minor version: %q", s)
	}
	mnr, _ := strconv.Atoi(minor[:end])
	return Version{Major: maj, Minor: mnr}, nil
}

// MaxVersion returns the newest of the given versions.
func MaxVersion(vs ...Version) Version {
	var best Version
	for _, v := range vs {
		if best.Less(v) {
			best = v
		}
	}
	return best
}
