// Package manifest parses the per-package and project-root manifest.toml
// documents: a dependencies table of name to version-requirement string, plus
// an optional registries.default override carried only by the root project
// manifest.
package manifest

import (
	"io"

	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"

	"github.com/jasal82/metabuild/internal/gps"
)

// Registries holds the project manifest's index-URL override.
type Registries struct {
	Default string `toml:"default"`
}

// Manifest is a parsed manifest.toml document. Dependencies is present on
// both package manifests and the project root manifest; Registries is only
// meaningful on the root manifest.
type Manifest struct {
	Dependencies map[string]string `toml:"dependencies"`
	Registries   Registries        `toml:"registries"`
}

// Parse reads and parses a manifest.toml document from r.
func Parse(r io.Reader) (Manifest, error) {
	var m Manifest
	dec := toml.NewDecoder(r)
	if err := dec.Decode(&m); err != nil {
		return Manifest{}, errors.Wrap(err, "parsing manifest.toml")
	}
	if m.Dependencies == nil {
		m.Dependencies = map[string]string{}
	}
	return m, nil
}

// ParseBytes is Parse over an in-memory byte slice, the common case when the
// manifest was just fetched over the network or read from a Git blob.
func ParseBytes(data []byte) (Manifest, error) {
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return Manifest{}, errors.Wrap(err, "parsing manifest.toml")
	}
	if m.Dependencies == nil {
		m.Dependencies = map[string]string{}
	}
	return m, nil
}

// Requirements parses every dependency requirement string into a
// gps.VersionReq, failing on the first unparseable entry.
func (m Manifest) Requirements() (map[string]gps.VersionReq, error) {
	out := make(map[string]gps.VersionReq, len(m.Dependencies))
	for name, raw := range m.Dependencies {
		req, err := gps.ParseVersionReq(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "dependency %q", name)
		}
		out[name] = req
	}
	return out, nil
}

// IndexOverride returns the root manifest's registries.default value, and
// whether one was present.
func (m Manifest) IndexOverride() (string, bool) {
	return m.Registries.Default, m.Registries.Default != ""
}
