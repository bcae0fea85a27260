package inventory

import "github.com/jasal82/metabuild/internal/gps"

// Candidates returns every cached version of name, in the order it was
// inserted into the cache. Callers wanting highest-version-first order pass
// the result through SortCandidates.
func (c *Cache) Candidates(name string) []gps.Version {
	entry, ok := c.byName[name]
	if !ok {
		return nil
	}
	out := make([]gps.Version, 0, len(entry.versions))
	for _, v := range entry.versions {
		out = append(out, entry.byVersion[v].Version)
	}
	return out
}

// Dependencies returns the cached dependency list for (name, version). An
// unknown pair yields an empty (not error) result: the solver may
// legitimately ask about any (name, version) it already received as a
// candidate.
func (c *Cache) Dependencies(name string, version gps.Version) []Dependency {
	entry, ok := c.byName[name]
	if !ok {
		return nil
	}
	pkg, ok := entry.byVersion[version.String()]
	if !ok {
		return nil
	}
	return pkg.Dependencies
}

// SortCandidates stably sorts candidates by version descending (highest
// preferred), the order the solver consumes them in.
func SortCandidates(candidates []gps.Version) []gps.Version {
	out := make([]gps.Version, len(candidates))
	copy(out, candidates)
	// Insertion sort: stable, and candidate lists are small (one index
	// entry's worth of versions), so the simplicity outweighs asymptotic
	// cost here.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].Compare(out[j-1]) > 0; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}
