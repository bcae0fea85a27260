package inventory

import (
	"context"
	"path/filepath"
	"sort"

	"github.com/jasal82/metabuild/internal/gps"
	"github.com/jasal82/metabuild/internal/index"
	"github.com/jasal82/metabuild/internal/mberr"
	"github.com/jasal82/metabuild/internal/retriever"
)

const cacheFileName = "cache.json"

// CachePath returns the inventory's dump location under cacheDir.
func CachePath(cacheDir string) string {
	return filepath.Join(cacheDir, cacheFileName)
}

// Refresh loads the existing cache (if any) under cacheDir, then for each
// name in idx walks its available versions and fetches manifests for any
// version not already cached, finally writing the cache back.
//
// Refresh is incremental by construction: existing (name, version) entries
// are never re-fetched, so their stored Dependencies are immutable once
// written. Ground truth: original_source/metabuild-resolver/src/inventory.rs
// update_cache.
//
// The cache file is only written after the full loop succeeds (spec.md §9
// open question #2 — preserved as written): an error partway through a
// refresh leaves the on-disk cache.json from the previous successful
// refresh intact, and the in-memory Cache returned to the caller is
// discarded along with the error.
func Refresh(ctx context.Context, idx *index.Index, tokens map[string]string, cacheDir string) (*Cache, error) {
	cache, err := LoadCache(CachePath(cacheDir))
	if err != nil {
		return nil, err
	}

	gitCacheRoot := filepath.Join(cacheDir, "git")

	for _, name := range idx.List() {
		src, err := idx.Get(name)
		if err != nil {
			return nil, err
		}

		r := retriever.New(src, name, gitCacheRoot, tokens)

		versions, err := r.FetchVersions(ctx)
		if err != nil {
			return nil, err
		}

		for _, raw := range versions {
			v, perr := gps.ParseVersion(raw)
			if perr != nil {
				// Unparseable version strings are silently skipped, per
				// spec.md §4.C/§4.D.
				continue
			}
			if cache.has(name, v.String()) {
				continue
			}

			m, err := r.FetchManifest(ctx, raw)
			if err != nil {
				return nil, err
			}
			reqs, err := m.Requirements()
			if err != nil {
				return nil, mberr.Wrapf(err, mberr.Corrupt, "manifest for %s@%s", name, raw)
			}

			depNames := make([]string, 0, len(reqs))
			for dn := range reqs {
				depNames = append(depNames, dn)
			}
			sort.Strings(depNames)

			deps := make([]Dependency, 0, len(depNames))
			for _, dn := range depNames {
				deps = append(deps, Dependency{Name: dn, Req: reqs[dn]})
			}

			cache.insert(name, Package{Name: name, Version: v, Dependencies: deps})
		}
	}

	if err := cache.Save(CachePath(cacheDir)); err != nil {
		return nil, err
	}
	return cache, nil
}
