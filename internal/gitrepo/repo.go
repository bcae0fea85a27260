// Package gitrepo maintains a stable local mirror of a remote Git
// repository: a bare clone that can be read at any ref without ever
// materializing a working tree, and whose branch tips can be committed to
// and pushed. It is the cache layer underneath both the index store and the
// Git-backed metadata retriever.
package gitrepo

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Masterminds/vcs"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"

	"github.com/jasal82/metabuild/internal/mberr"
)

// RefKind distinguishes a tag ref from a branch ref: tags are read-only,
// branches accept writes.
type RefKind int

const (
	Tag RefKind = iota
	Branch
)

// Ref names a specific tag or branch.
type Ref struct {
	Kind RefKind
	Name string
}

// TagRef builds a Ref addressing the named tag.
func TagRef(name string) Ref { return Ref{Kind: Tag, Name: name} }

// BranchRef builds a Ref addressing the named branch.
func BranchRef(name string) Ref { return Ref{Kind: Branch, Name: name} }

func (r Ref) referenceName() plumbing.ReferenceName {
	if r.Kind == Tag {
		return plumbing.NewTagReferenceName(r.Name)
	}
	return plumbing.NewBranchReferenceName(r.Name)
}

var commitIdentity = object.Signature{
	Name:  "metabuild",
	Email: "metabuild@localhost",
}

// Repo is a handle onto a bare local mirror of a remote repository.
type Repo struct {
	path      string
	temp      bool
	remoteURL string
	repo      *git.Repository
}

// CachePath derives the content-addressed local path for remoteURL under
// cacheRoot, <cacheRoot>/<hex(md5(remoteURL))>: a pure function of the URL
// alone. cmd/mb does not use it for the index mirror, which lives at the
// fixed path .mb/index-cache; a changed index URL is handled there by Open's
// origin check, which wipes and re-clones.
func CachePath(cacheRoot, remoteURL string) string {
	sum := md5.Sum([]byte(remoteURL))
	return filepath.Join(cacheRoot, hex.EncodeToString(sum[:]))
}

// Open opens or creates a bare mirror of remoteURL at path. If path is
// empty, a process-scoped temporary directory is allocated and owned by the
// returned handle (released by Close). If a repository already exists at
// path but its origin URL differs from remoteURL, the directory is wiped
// and a fresh clone takes its place (spec invariant 3 / scenario S6).
func Open(ctx context.Context, remoteURL, path string) (*Repo, error) {
	temp := path == ""
	if temp {
		dir, err := os.MkdirTemp("", "metabuild-gitrepo-")
		if err != nil {
			return nil, mberr.Wrap(err, mberr.IO, "allocating temporary git cache dir")
		}
		path = dir
	}

	repo, err := git.PlainOpen(path)
	switch {
	case err == nil:
		if sameOrigin(repo, remoteURL) {
			if ferr := fetchAll(ctx, repo, remoteURL); ferr != nil {
				return nil, ferr
			}
		} else {
			if rerr := os.RemoveAll(path); rerr != nil {
				return nil, mberr.Wrap(rerr, mberr.IO, "removing stale git cache at "+path)
			}
			repo, err = cloneBare(ctx, path, remoteURL)
			if err != nil {
				return nil, err
			}
		}
	case err == git.ErrRepositoryNotExists:
		if merr := os.MkdirAll(path, 0o755); merr != nil {
			return nil, mberr.Wrap(merr, mberr.IO, "creating git cache dir "+path)
		}
		repo, err = cloneBare(ctx, path, remoteURL)
		if err != nil {
			return nil, err
		}
	default:
		return nil, mberr.Wrap(err, mberr.IO, "opening git cache at "+path)
	}

	return &Repo{path: path, temp: temp, remoteURL: remoteURL, repo: repo}, nil
}

func sameOrigin(repo *git.Repository, remoteURL string) bool {
	remote, err := repo.Remote("origin")
	if err != nil {
		return false
	}
	cfg := remote.Config()
	return len(cfg.URLs) > 0 && cfg.URLs[0] == remoteURL
}

func cloneBare(ctx context.Context, path, remoteURL string) (*git.Repository, error) {
	repo, err := git.PlainCloneContext(ctx, path, true, &git.CloneOptions{
		URL:  remoteURL,
		Auth: resolveAuth(remoteURL),
		Tags: git.AllTags,
	})
	if err == transport.ErrEmptyRemoteRepository {
		// An index repository starts out with no commits at all (scenario
		// S5). Clone degrades to a bare init with origin configured, so the
		// first push still lands on the right remote.
		repo, err = git.PlainInit(path, true)
		if err != nil {
			return nil, mberr.Wrap(err, mberr.IO, "initializing cache for empty remote "+remoteURL)
		}
		if _, err := repo.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{remoteURL}}); err != nil {
			return nil, mberr.Wrap(err, mberr.IO, "configuring origin remote")
		}
		return repo, nil
	}
	if err != nil {
		return nil, classifyTransport(err, remoteURL)
	}
	return repo, nil
}

func fetchAll(ctx context.Context, repo *git.Repository, remoteURL string) error {
	err := repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: "origin",
		RefSpecs: []config.RefSpec{
			"+refs/heads/*:refs/heads/*",
			"+refs/tags/*:refs/tags/*",
		},
		Auth:  resolveAuth(remoteURL),
		Tags:  git.AllTags,
		Force: true,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return classifyTransport(err, remoteURL)
	}
	return nil
}

func classifyTransport(err error, remoteURL string) error {
	return mberr.Wrap(vcs.NewRemoteError("git transport failure", err, remoteURL), mberr.Upstream, "talking to "+remoteURL)
}

// Close releases the handle. If the handle owns a temporary directory (Open
// was called with an empty path), the directory is removed.
func (r *Repo) Close() error {
	if !r.temp {
		return nil
	}
	if err := os.RemoveAll(r.path); err != nil {
		return mberr.Wrap(err, mberr.IO, "removing temporary git cache")
	}
	return nil
}

// Path returns the on-disk location of the mirror.
func (r *Repo) Path() string { return r.path }

// Tags returns every tag name in the mirror.
func (r *Repo) Tags() ([]string, error) {
	iter, err := r.repo.Tags()
	if err != nil {
		return nil, mberr.Wrap(err, mberr.IO, "listing tags")
	}
	var names []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		names = append(names, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, mberr.Wrap(err, mberr.IO, "listing tags")
	}
	return names, nil
}

// ReadFile resolves ref, peels it to its tree and returns the content of
// the blob at path. It fails with NotFound if ref or path does not exist.
func (r *Repo) ReadFile(ref Ref, path string) ([]byte, error) {
	commit, err := r.resolveCommit(ref)
	if err != nil {
		return nil, err
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, mberr.Wrap(err, mberr.IO, "reading commit tree")
	}
	file, err := tree.File(path)
	if err != nil {
		return nil, mberr.Newf(mberr.NotFound, "%s not found at %s", path, ref.Name)
	}
	rc, err := file.Reader()
	if err != nil {
		return nil, mberr.Wrap(err, mberr.IO, "opening blob reader")
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, mberr.Wrap(err, mberr.IO, "reading blob")
	}
	return data, nil
}

func (r *Repo) resolveCommit(ref Ref) (*object.Commit, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(ref.referenceName().String() + "^{commit}"))
	if err != nil {
		return nil, mberr.Newf(mberr.NotFound, "ref %q not found", ref.Name)
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, mberr.Wrap(err, mberr.IO, "loading commit")
	}
	return commit, nil
}

// WriteFileAndCommit atomically replaces the blob at path in the tree of
// branch's tip, commits under a fixed author identity, and advances the
// branch ref. It fails with InvalidRef if given a tag ref.
func (r *Repo) WriteFileAndCommit(branch Ref, path string, data []byte, message string) (plumbing.Hash, error) {
	if branch.Kind != Branch {
		return plumbing.ZeroHash, mberr.Newf(mberr.InvalidRef, "cannot write to tag ref %q", branch.Name)
	}

	refName := branch.referenceName()
	var parents []plumbing.Hash
	var baseTree *object.Tree

	ref, err := r.repo.Reference(refName, true)
	switch err {
	case nil:
		commit, cerr := r.repo.CommitObject(ref.Hash())
		if cerr != nil {
			return plumbing.ZeroHash, mberr.Wrap(cerr, mberr.IO, "loading branch tip")
		}
		parents = []plumbing.Hash{commit.Hash}
		tree, terr := commit.Tree()
		if terr != nil {
			return plumbing.ZeroHash, mberr.Wrap(terr, mberr.IO, "loading branch tree")
		}
		baseTree = tree
	case plumbing.ErrReferenceNotFound:
		baseTree = nil
	default:
		return plumbing.ZeroHash, mberr.Wrap(err, mberr.IO, "resolving branch ref")
	}

	blobHash, err := r.writeBlob(data)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	treeHash, err := r.replaceInTree(baseTree, splitPath(path), blobHash)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	now := time.Now()
	author := commitIdentity
	author.When = now
	committer := commitIdentity
	committer.When = now

	commit := &object.Commit{
		Author:       author,
		Committer:    committer,
		Message:      message,
		TreeHash:     treeHash,
		ParentHashes: parents,
	}
	obj := r.repo.Storer.NewEncodedObject()
	if err := commit.Encode(obj); err != nil {
		return plumbing.ZeroHash, mberr.Wrap(err, mberr.IO, "encoding commit")
	}
	commitHash, err := r.repo.Storer.SetEncodedObject(obj)
	if err != nil {
		return plumbing.ZeroHash, mberr.Wrap(err, mberr.IO, "storing commit")
	}

	newRef := plumbing.NewHashReference(refName, commitHash)
	if err := r.repo.Storer.SetReference(newRef); err != nil {
		return plumbing.ZeroHash, mberr.Wrap(err, mberr.IO, "advancing branch ref")
	}

	return commitHash, nil
}

func (r *Repo) writeBlob(data []byte) (plumbing.Hash, error) {
	obj := r.repo.Storer.NewEncodedObject()
	obj.SetType(plumbing.BlobObject)
	w, err := obj.Writer()
	if err != nil {
		return plumbing.ZeroHash, mberr.Wrap(err, mberr.IO, "opening blob writer")
	}
	if _, err := w.Write(data); err != nil {
		return plumbing.ZeroHash, mberr.Wrap(err, mberr.IO, "writing blob")
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroHash, mberr.Wrap(err, mberr.IO, "closing blob writer")
	}
	return r.repo.Storer.SetEncodedObject(obj)
}

// replaceInTree rebuilds base (nil for an empty repository) with the blob
// at segments replaced, writing every touched tree object and returning the
// new root tree hash.
func (r *Repo) replaceInTree(base *object.Tree, segments []string, blobHash plumbing.Hash) (plumbing.Hash, error) {
	var entries []object.TreeEntry
	if base != nil {
		entries = append(entries, base.Entries...)
	}

	name := segments[0]
	idx := -1
	for i, e := range entries {
		if e.Name == name {
			idx = i
			break
		}
	}

	if len(segments) == 1 {
		entry := object.TreeEntry{Name: name, Mode: filemode.Regular, Hash: blobHash}
		if idx >= 0 {
			entries[idx] = entry
		} else {
			entries = append(entries, entry)
		}
	} else {
		var childTree *object.Tree
		if idx >= 0 && entries[idx].Mode == filemode.Dir {
			t, err := object.GetTree(r.repo.Storer, entries[idx].Hash)
			if err != nil {
				return plumbing.ZeroHash, mberr.Wrap(err, mberr.IO, "loading subtree")
			}
			childTree = t
		}
		childHash, err := r.replaceInTree(childTree, segments[1:], blobHash)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entry := object.TreeEntry{Name: name, Mode: filemode.Dir, Hash: childHash}
		if idx >= 0 {
			entries[idx] = entry
		} else {
			entries = append(entries, entry)
		}
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	tree := &object.Tree{Entries: entries}
	obj := r.repo.Storer.NewEncodedObject()
	if err := tree.Encode(obj); err != nil {
		return plumbing.ZeroHash, mberr.Wrap(err, mberr.IO, "encoding tree")
	}
	return r.repo.Storer.SetEncodedObject(obj)
}

func splitPath(path string) []string {
	return strings.Split(filepath.ToSlash(path), "/")
}

// Revert fetches branch from origin and hard-sets the local ref to the
// fetched commit, discarding any local-only commits. It fails with
// InvalidRef if given a tag ref.
func (r *Repo) Revert(branch Ref) error {
	if branch.Kind != Branch {
		return mberr.Newf(mberr.InvalidRef, "cannot revert tag ref %q", branch.Name)
	}
	refSpec := config.RefSpec("+refs/heads/" + branch.Name + ":refs/heads/" + branch.Name)
	err := r.repo.Fetch(&git.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{refSpec},
		Auth:       resolveAuth(r.remoteURL),
		Force:      true,
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return classifyTransport(err, r.remoteURL)
	}
	return nil
}

// Push publishes branch's local commits to origin.
func (r *Repo) Push(branch Ref) error {
	if branch.Kind != Branch {
		return mberr.Newf(mberr.InvalidRef, "cannot push tag ref %q", branch.Name)
	}
	refSpec := config.RefSpec("refs/heads/" + branch.Name + ":refs/heads/" + branch.Name)
	err := r.repo.Push(&git.PushOptions{
		RemoteName: "origin",
		RefSpecs:   []config.RefSpec{refSpec},
		Auth:       resolveAuth(r.remoteURL),
	})
	if err != nil && err != git.NoErrAlreadyUpToDate {
		return classifyTransport(err, r.remoteURL)
	}
	return nil
}
