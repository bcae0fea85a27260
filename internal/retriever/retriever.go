// Package retriever talks to the remote named by an index entry: enumerate
// available versions and fetch the manifest of a specific version. Git and
// Artifactory sources share one capability set but are modeled as a tagged
// union dispatched per call (spec design note: no plugin story), not as two
// types behind an open interface.
package retriever

import (
	"context"
	"path/filepath"

	"github.com/jasal82/metabuild/internal/gitrepo"
	"github.com/jasal82/metabuild/internal/index"
	"github.com/jasal82/metabuild/internal/manifest"
	"github.com/jasal82/metabuild/internal/mberr"
)

const manifestFile = "manifest.toml"

// Retriever fetches versions and manifests for a single index entry.
type Retriever struct {
	kind index.SourceKind

	// Git
	gitCachePath string
	gitURL       string

	// Artifactory
	server string
	repo   string
	path   string
	token  string
}

// New builds a Retriever for src. gitCacheRoot is where Git-backed sources
// are mirrored (<inventory_root>/git/<package_name>, per spec.md §4.C);
// tokens is the server-URL-prefix -> bearer-token map consulted for
// Artifactory sources.
func New(src index.Source, name, gitCacheRoot string, tokens map[string]string) *Retriever {
	switch src.Kind {
	case index.SourceGit:
		return &Retriever{
			kind:         index.SourceGit,
			gitCachePath: filepath.Join(gitCacheRoot, name),
			gitURL:       src.URL,
		}
	default:
		return &Retriever{
			kind:   index.SourceArtifactory,
			server: src.Server,
			repo:   src.Repo,
			path:   src.Path,
			token:  longestPrefixToken(src.Server, tokens),
		}
	}
}

func longestPrefixToken(server string, tokens map[string]string) string {
	best := ""
	bestLen := -1
	for prefix, token := range tokens {
		if len(prefix) > bestLen && hasPrefix(server, prefix) {
			best = token
			bestLen = len(prefix)
		}
	}
	return best
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[:len(prefix)] == prefix
}

// FetchVersions enumerates available version strings. Strings are
// unparsed; callers (the inventory) parse and silently skip invalid SemVer.
func (r *Retriever) FetchVersions(ctx context.Context) ([]string, error) {
	if r.kind == index.SourceGit {
		return r.fetchVersionsGit(ctx)
	}
	return r.fetchVersionsArtifactory(ctx)
}

// FetchManifest fetches and parses the manifest of the named version.
func (r *Retriever) FetchManifest(ctx context.Context, version string) (manifest.Manifest, error) {
	if r.kind == index.SourceGit {
		return r.fetchManifestGit(ctx, version)
	}
	return r.fetchManifestArtifactory(ctx, version)
}

// FetchManifestBytes fetches the raw, unparsed manifest.toml of version.
// Used by the installer, which writes it to disk verbatim rather than
// consuming the parsed form.
func (r *Retriever) FetchManifestBytes(ctx context.Context, version string) ([]byte, error) {
	if r.kind == index.SourceGit {
		repo, err := gitrepo.Open(ctx, r.gitURL, r.gitCachePath)
		if err != nil {
			return nil, err
		}
		defer repo.Close()
		return repo.ReadFile(gitrepo.TagRef(version), manifestFile)
	}
	return r.getArtifact(ctx, version, manifestFile)
}

func (r *Retriever) fetchVersionsGit(ctx context.Context) ([]string, error) {
	repo, err := gitrepo.Open(ctx, r.gitURL, r.gitCachePath)
	if err != nil {
		return nil, err
	}
	defer repo.Close()
	return repo.Tags()
}

func (r *Retriever) fetchManifestGit(ctx context.Context, version string) (manifest.Manifest, error) {
	repo, err := gitrepo.Open(ctx, r.gitURL, r.gitCachePath)
	if err != nil {
		return manifest.Manifest{}, err
	}
	defer repo.Close()

	data, err := repo.ReadFile(gitrepo.TagRef(version), manifestFile)
	if err != nil {
		return manifest.Manifest{}, err
	}
	m, err := manifest.ParseBytes(data)
	if err != nil {
		return manifest.Manifest{}, mberr.Wrap(err, mberr.Corrupt, "parsing "+manifestFile+" at "+version)
	}
	return m, nil
}
