// Package installer materializes a resolved dependency set on disk: every
// package named in a solved version assignment is fetched from the source
// its index entry names and unpacked under a per-project deps directory.
package installer

import (
	"context"
	"os"
	"path/filepath"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/jasal82/metabuild/internal/fs"
	"github.com/jasal82/metabuild/internal/gitrepo"
	"github.com/jasal82/metabuild/internal/gps"
	"github.com/jasal82/metabuild/internal/index"
	"github.com/jasal82/metabuild/internal/mberr"
	"github.com/jasal82/metabuild/internal/retriever"
)

const manifestFile = "manifest.toml"

// Sources resolves index entries by package name; *index.Index satisfies it
// directly.
type Sources interface {
	Get(name string) (index.Source, error)
}

// Install wipes depsRoot and repopulates it with one directory per resolved
// package (spec property 8: the deps directory is empty immediately before
// the first install action, every time). The directory is left wiped and
// partially populated if any package fails to install; the caller re-runs
// install rather than attempting a partial repair.
func Install(ctx context.Context, depsRoot string, sources Sources, versions map[string]gps.Version, gitCacheRoot string, tokens map[string]string) error {
	if err := os.RemoveAll(depsRoot); err != nil {
		return mberr.Wrap(err, mberr.IO, "clearing "+depsRoot)
	}
	if err := os.MkdirAll(depsRoot, 0o755); err != nil {
		return mberr.Wrap(err, mberr.IO, "creating "+depsRoot)
	}

	names := make([]string, 0, len(versions))
	for name := range versions {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		version := versions[name]
		src, err := sources.Get(name)
		if err != nil {
			return err
		}

		staging := filepath.Join(depsRoot, "."+name+".staging")
		target := filepath.Join(depsRoot, name)

		switch src.Kind {
		case index.SourceGit:
			err = installGit(ctx, src.URL, version.String(), staging)
		default:
			r := retriever.New(src, name, gitCacheRoot, tokens)
			err = installArtifactory(ctx, r, version.String(), staging)
		}
		if err != nil {
			os.RemoveAll(staging)
			return mberr.Wrapf(err, mberr.Upstream, "installing %s@%s", name, version)
		}

		// Stage into a hidden sibling directory first, then publish with a
		// single rename, so a package directory under depsRoot is either
		// absent or fully populated — never observed half-written.
		if err := fs.RenameWithFallback(staging, target); err != nil {
			return mberr.Wrapf(err, mberr.IO, "publishing %s into %s", name, target)
		}
	}
	return nil
}

// installGit clones the package repository into target and checks out the
// tag named version, leaving target a normal (non-bare) working tree at
// that revision.
func installGit(ctx context.Context, url, version, target string) error {
	repo, err := git.PlainCloneContext(ctx, target, false, &git.CloneOptions{
		URL:  url,
		Auth: gitrepo.Auth(url),
		Tags: git.AllTags,
	})
	if err != nil {
		return mberr.Wrap(err, mberr.Upstream, "cloning "+url)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return mberr.Wrap(err, mberr.IO, "opening worktree for "+target)
	}
	tagRef := plumbing.NewTagReferenceName(version)
	if err := wt.Checkout(&git.CheckoutOptions{Branch: tagRef}); err != nil {
		return mberr.Newf(mberr.NotFound, "tag %q not found in %s", version, url)
	}
	return nil
}

// installArtifactory writes the version's manifest.toml verbatim and
// unpacks its package.tar.gz under target.
func installArtifactory(ctx context.Context, r *retriever.Retriever, version, target string) error {
	if err := os.MkdirAll(target, 0o755); err != nil {
		return mberr.Wrap(err, mberr.IO, "creating "+target)
	}

	manifestBytes, err := r.FetchManifestBytes(ctx, version)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(target, manifestFile), manifestBytes, 0o644); err != nil {
		return mberr.Wrap(err, mberr.IO, "writing "+manifestFile)
	}

	pkg, err := r.FetchPackage(ctx, version)
	if err != nil {
		return err
	}
	return extractTarGz(pkg, target)
}
