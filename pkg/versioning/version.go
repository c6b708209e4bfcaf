// Package versioning provides the semantic versions assigned to event-type schemas.
// Only MAJOR.MINOR.PATCH is meaningful here; pre-release and build metadata are rejected.
package versioning

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Initial is the version assigned to every newly registered event type.
var Initial = Version{Major: 1, Minor: 0, Patch: 0}

// Version represents a schema version.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// String returns the string representation of the version.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// Parse parses a "major.minor.patch" string. A leading "v" is tolerated.
func Parse(version string) (Version, error) {
	sv, err := semver.NewVersion(version)
	if err != nil {
		return Version{}, fmt.Errorf("invalid version string %q: %w", version, err)
	}
	if sv.Prerelease() != "" || sv.Metadata() != "" {
		return Version{}, fmt.Errorf("invalid version string %q: pre-release and build metadata are not supported", version)
	}
	if sv.Original() != version || !isFullTriple(version) {
		return Version{}, fmt.Errorf("invalid version string %q: expected major.minor.patch", version)
	}
	return Version{Major: int(sv.Major()), Minor: int(sv.Minor()), Patch: int(sv.Patch())}, nil
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(version string) Version {
	v, err := Parse(version)
	if err != nil {
		panic(err)
	}
	return v
}

// semver.NewVersion coerces "1" and "1.2" into full versions; stored versions must be explicit.
func isFullTriple(s string) bool {
	dots := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '.' {
			dots++
		}
	}
	return dots == 2
}

// Compare compares two versions.
// Returns -1 if v < other, 0 if v == other, 1 if v > other.
func (v Version) Compare(other Version) int {
	if v.Major != other.Major {
		return compareInt(v.Major, other.Major)
	}
	if v.Minor != other.Minor {
		return compareInt(v.Minor, other.Minor)
	}
	return compareInt(v.Patch, other.Patch)
}

func compareInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// IsZero reports whether v is the zero version (never assigned).
func (v Version) IsZero() bool {
	return v == Version{}
}

// IncrementMajor returns a new version with major incremented.
func (v Version) IncrementMajor() Version {
	return Version{Major: v.Major + 1, Minor: 0, Patch: 0}
}

// IncrementMinor returns a new version with minor incremented.
func (v Version) IncrementMinor() Version {
	return Version{Major: v.Major, Minor: v.Minor + 1, Patch: 0}
}

// IncrementPatch returns a new version with patch incremented.
func (v Version) IncrementPatch() Version {
	return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
}

// Bump increments exactly the component named by level and zeroes the ones to its right.
// LevelNone returns v unchanged.
func (v Version) Bump(level Level) Version {
	switch level {
	case LevelMajor:
		return v.IncrementMajor()
	case LevelMinor:
		return v.IncrementMinor()
	case LevelPatch:
		return v.IncrementPatch()
	default:
		return v
	}
}

// MarshalText encodes the version as "major.minor.patch".
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText decodes a "major.minor.patch" string.
func (v *Version) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
