// Package gps supplies the version and version-requirement vocabulary shared
// by the index, inventory and solver: thin wrappers over semver that know how
// to serialize as the canonical SemVer string and compare for solver
// ordering.
package gps

import (
	"encoding/json"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// Version is a parsed semantic version.
type Version struct {
	v *semver.Version
}

// ParseVersion parses s as a semantic version. Pre-release and build
// metadata are preserved for ordering and round-tripping.
func ParseVersion(s string) (Version, error) {
	sv, err := semver.NewVersion(s)
	if err != nil {
		return Version{}, errors.Wrapf(err, "parsing version %q", s)
	}
	return Version{v: sv}, nil
}

// String renders the version in canonical SemVer form.
func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.String()
}

// Compare returns -1, 0 or 1 per SemVer precedence, matching
// (*semver.Version).Compare.
func (v Version) Compare(other Version) int {
	return v.v.Compare(other.v)
}

// Less reports whether v sorts strictly before other.
func (v Version) Less(other Version) bool {
	return v.Compare(other) < 0
}

// Zero reports whether v is the unparsed zero value.
func (v Version) Zero() bool { return v.v == nil }

// MarshalJSON renders the version as its canonical string form, matching the
// index/inventory documents' "version as string" convention.
func (v Version) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.String())
}

// UnmarshalJSON parses the version from its canonical string form.
func (v *Version) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseVersion(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Versions implements sort.Interface in ascending order; callers needing
// descending (highest-preferred) order reverse the result, matching
// inventory.SortCandidates.
type Versions []Version

func (vs Versions) Len() int           { return len(vs) }
func (vs Versions) Less(i, j int) bool { return vs[i].Less(vs[j]) }
func (vs Versions) Swap(i, j int)      { vs[i], vs[j] = vs[j], vs[i] }
