package gps

import (
	"encoding/json"

	"github.com/Masterminds/semver/v3"
	"github.com/pkg/errors"
)

// VersionReq is a parsed version-requirement expression (caret, tilde,
// comparator set, or exact) acting as the solver's "version set".
type VersionReq struct {
	raw string
	c   *semver.Constraints
}

// ParseVersionReq parses s as a version requirement.
func ParseVersionReq(s string) (VersionReq, error) {
	c, err := semver.NewConstraint(s)
	if err != nil {
		return VersionReq{}, errors.Wrapf(err, "parsing version requirement %q", s)
	}
	return VersionReq{raw: s, c: c}, nil
}

// Matches reports whether v satisfies the requirement.
func (r VersionReq) Matches(v Version) bool {
	if r.c == nil || v.v == nil {
		return false
	}
	return r.c.Check(v.v)
}

// String renders the requirement in its original, as-parsed form.
func (r VersionReq) String() string { return r.raw }

// MarshalJSON renders the requirement as its raw requirement string.
func (r VersionReq) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.raw)
}

// UnmarshalJSON parses the requirement from its raw requirement string.
func (r *VersionReq) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseVersionReq(s)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
