// Package inventory is the persistent on-disk cache of package -> version ->
// dependency-requirements, incrementally refreshed from the metadata
// retrievers, and the solver-facing oracle built on top of that cache.
package inventory

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/jasal82/metabuild/internal/gps"
)

// Dependency is one entry of a Package's dependency list.
type Dependency struct {
	Name string
	Req  gps.VersionReq
}

// Package is a single (name, version) record: the unit the solver reasons
// about.
type Package struct {
	Name         string
	Version      gps.Version
	Dependencies []Dependency
}

type packageJSON struct {
	Name         string     `json:"name"`
	Version      string     `json:"version"`
	Dependencies [][]string `json:"dependencies"`
}

// MarshalJSON renders the package as {name, version, dependencies: [name,
// requirement][]}, matching spec.md §6's cache file structure.
func (p Package) MarshalJSON() ([]byte, error) {
	deps := make([][]string, len(p.Dependencies))
	for i, d := range p.Dependencies {
		deps[i] = []string{d.Name, d.Req.String()}
	}
	return json.Marshal(packageJSON{
		Name:         p.Name,
		Version:      p.Version.String(),
		Dependencies: deps,
	})
}

// UnmarshalJSON parses the package from its cache file representation.
func (p *Package) UnmarshalJSON(data []byte) error {
	var raw packageJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "decoding package record")
	}
	v, err := gps.ParseVersion(raw.Version)
	if err != nil {
		return errors.Wrapf(err, "package %q", raw.Name)
	}
	deps := make([]Dependency, 0, len(raw.Dependencies))
	for _, pair := range raw.Dependencies {
		if len(pair) != 2 {
			return errors.Errorf("package %q: malformed dependency entry", raw.Name)
		}
		req, err := gps.ParseVersionReq(pair[1])
		if err != nil {
			return errors.Wrapf(err, "package %q dependency %q", raw.Name, pair[0])
		}
		deps = append(deps, Dependency{Name: pair[0], Req: req})
	}
	p.Name = raw.Name
	p.Version = v
	p.Dependencies = deps
	return nil
}
