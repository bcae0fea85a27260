package inventory_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jasal82/metabuild/internal/gps"
	"github.com/jasal82/metabuild/internal/index"
	"github.com/jasal82/metabuild/internal/inventory"
)

func commitTaggedManifest(t *testing.T, dir, tag, manifestContent string) {
	t.Helper()
	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.toml"), []byte(manifestContent), 0o644))
	_, err = wt.Add("manifest.toml")
	require.NoError(t, err)
	sig := &object.Signature{Name: "t", Email: "t@example.com", When: time.Now()}
	_, err = wt.Commit("rel", &git.CommitOptions{Author: sig})
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	_, err = repo.CreateTag(tag, head.Hash(), nil)
	require.NoError(t, err)
}

func newModuleRepo(t *testing.T, name string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), name)
	_, err := git.PlainInit(dir, false)
	require.NoError(t, err)
	return dir
}

func newIndexRemote(t *testing.T, entries map[string]string) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "index.git")
	_, err := git.PlainInit(dir, true)
	require.NoError(t, err)

	idx, err := index.Open(context.Background(), dir, "main", filepath.Join(t.TempDir(), "idx-cache"))
	require.NoError(t, err)
	defer idx.Close()

	for name, url := range entries {
		require.NoError(t, idx.Add(name, index.Source{Kind: index.SourceGit, URL: url}))
	}
	require.NoError(t, idx.Push())
	return dir
}

func TestRefreshIsIdempotentWhenNothingChanges(t *testing.T) {
	module1 := newModuleRepo(t, "module1")
	commitTaggedManifest(t, module1, "1.0.0", "[dependencies]\n")
	commitTaggedManifest(t, module1, "1.0.1", "[dependencies]\n")

	indexRemote := newIndexRemote(t, map[string]string{"module1": module1})
	cacheDir := t.TempDir()

	openIdx := func() *index.Index {
		idx, err := index.Open(context.Background(), indexRemote, "main", filepath.Join(t.TempDir(), "reader"))
		require.NoError(t, err)
		return idx
	}

	idx1 := openIdx()
	defer idx1.Close()
	_, err := inventory.Refresh(context.Background(), idx1, nil, cacheDir)
	require.NoError(t, err)

	first, err := os.ReadFile(inventory.CachePath(cacheDir))
	require.NoError(t, err)

	idx2 := openIdx()
	defer idx2.Close()
	_, err = inventory.Refresh(context.Background(), idx2, nil, cacheDir)
	require.NoError(t, err)

	second, err := os.ReadFile(inventory.CachePath(cacheDir))
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestRefreshSkipsUnparseableVersionsAndRecordsDependencies(t *testing.T) {
	module1 := newModuleRepo(t, "module1")
	commitTaggedManifest(t, module1, "1.0.1", "[dependencies]\nmodule2 = \"^2.0.0\"\n")
	commitTaggedManifest(t, module1, "not-semver", "[dependencies]\n")

	indexRemote := newIndexRemote(t, map[string]string{"module1": module1})
	cacheDir := t.TempDir()

	idx, err := index.Open(context.Background(), indexRemote, "main", filepath.Join(t.TempDir(), "reader"))
	require.NoError(t, err)
	defer idx.Close()

	cache, err := inventory.Refresh(context.Background(), idx, nil, cacheDir)
	require.NoError(t, err)

	v101, err := gps.ParseVersion("1.0.1")
	require.NoError(t, err)
	candidates := cache.Candidates("module1")
	require.Len(t, candidates, 1)
	assert.Equal(t, "1.0.1", candidates[0].String())

	deps := cache.Dependencies("module1", v101)
	require.Len(t, deps, 1)
	assert.Equal(t, "module2", deps[0].Name)
}

func TestDependenciesOfUnknownPairIsEmptyNotError(t *testing.T) {
	cache := inventory.NewCache()
	v, err := gps.ParseVersion("1.0.0")
	require.NoError(t, err)
	assert.Empty(t, cache.Dependencies("nope", v))
}

func TestSortCandidatesDescending(t *testing.T) {
	v1, _ := gps.ParseVersion("1.0.0")
	v2, _ := gps.ParseVersion("1.0.1")
	v3, _ := gps.ParseVersion("2.4.0")

	sorted := inventory.SortCandidates([]gps.Version{v1, v3, v2})
	assert.Equal(t, []string{"2.4.0", "1.0.1", "1.0.0"}, []string{sorted[0].String(), sorted[1].String(), sorted[2].String()})
}
