// Package index maintains the name-to-source table stored as a document on
// a branch of a bare Git repository: add/remove/revert/push, insertion
// order preserved across mutation.
package index

import (
	"bytes"
	"context"
	"encoding/json"

	"gopkg.in/yaml.v3"

	"github.com/jasal82/metabuild/internal/gitrepo"
	"github.com/jasal82/metabuild/internal/mberr"
)

const (
	jsonDocPath = "index.json"
	yamlDocPath = "index.yaml"
	commitMsg   = "Update index"
)

// Index is a typed, mutable view over an index document.
type Index struct {
	repo   *gitrepo.Repo
	branch gitrepo.Ref

	names []string
	byKey map[string]Source
}

// Open wraps a Bare Git Repository Cache for indexURL, reads the document
// at branch's tip and parses it into an ordered name-to-source map. The
// canonical format is index.json; a read-only legacy index.yaml is
// consulted only when index.json is absent.
func Open(ctx context.Context, indexURL, branch, localCachePath string) (*Index, error) {
	repo, err := gitrepo.Open(ctx, indexURL, localCachePath)
	if err != nil {
		return nil, err
	}

	ref := gitrepo.BranchRef(branch)
	idx := &Index{repo: repo, branch: ref, byKey: map[string]Source{}}

	data, err := repo.ReadFile(ref, jsonDocPath)
	switch {
	case err == nil:
		if perr := idx.parseJSON(data); perr != nil {
			return nil, perr
		}
	case mberr.Is(err, mberr.NotFound):
		legacy, lerr := repo.ReadFile(ref, yamlDocPath)
		switch {
		case lerr == nil:
			if perr := idx.parseYAML(legacy); perr != nil {
				return nil, perr
			}
		case mberr.Is(lerr, mberr.NotFound):
			// Empty index: neither document exists yet.
		default:
			return nil, lerr
		}
	default:
		return nil, err
	}

	return idx, nil
}

func (idx *Index) parseJSON(data []byte) error {
	var raw map[string]Source
	if err := json.Unmarshal(data, &raw); err != nil {
		return mberr.Wrap(err, mberr.Corrupt, "parsing index.json")
	}

	// encoding/json does not expose key order on decode, but our own writer
	// always emits keys in insertion order, so re-derive it by scanning the
	// raw token stream once.
	order, err := jsonKeyOrder(data)
	if err != nil {
		return mberr.Wrap(err, mberr.Corrupt, "parsing index.json")
	}

	idx.names = order
	idx.byKey = raw
	return nil
}

func jsonKeyOrder(data []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, mberr.New(mberr.Corrupt, "index.json root is not an object")
	}

	var order []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, mberr.New(mberr.Corrupt, "index.json key is not a string")
		}
		order = append(order, key)

		var discard json.RawMessage
		if err := dec.Decode(&discard); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func (idx *Index) parseYAML(data []byte) error {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return mberr.Wrap(err, mberr.Corrupt, "parsing legacy index.yaml")
	}
	if len(doc.Content) == 0 {
		return nil
	}
	mapping := doc.Content[0]
	if mapping.Kind != yaml.MappingNode {
		return mberr.New(mberr.Corrupt, "legacy index.yaml root is not a mapping")
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		name := mapping.Content[i].Value
		src, err := sourceFromYAMLNode(mapping.Content[i+1])
		if err != nil {
			return mberr.Wrapf(err, mberr.Corrupt, "legacy index.yaml entry %q", name)
		}
		idx.names = append(idx.names, name)
		idx.byKey[name] = src
	}
	return nil
}

func sourceFromYAMLNode(n *yaml.Node) (Source, error) {
	if n.Kind == yaml.ScalarNode {
		return Source{Kind: SourceGit, URL: n.Value}, nil
	}
	var raw rawSource
	if err := n.Decode(&raw); err != nil {
		return Source{}, err
	}
	switch raw.Type {
	case "git", "":
		return Source{Kind: SourceGit, URL: raw.URL}, nil
	case "artifactory":
		return Source{Kind: SourceArtifactory, Server: raw.Server, Repo: raw.Repo, Path: raw.Path}, nil
	default:
		return Source{}, mberr.Newf(mberr.Corrupt, "unknown source type %q", raw.Type)
	}
}

// List returns every package name in insertion order.
func (idx *Index) List() []string {
	out := make([]string, len(idx.names))
	copy(out, idx.names)
	return out
}

// Get returns the Source registered for name.
func (idx *Index) Get(name string) (Source, error) {
	src, ok := idx.byKey[name]
	if !ok {
		return Source{}, mberr.Newf(mberr.NotFound, "package %q is not in the index", name)
	}
	return src, nil
}

// Add registers src under name, appending name to List's order if it is
// new, and commits the updated document. Re-adding an existing name
// overwrites its Source in place without moving its position.
func (idx *Index) Add(name string, src Source) error {
	if _, exists := idx.byKey[name]; !exists {
		idx.names = append(idx.names, name)
	}
	idx.byKey[name] = src
	return idx.commit()
}

// Remove deletes name from the index, shifting remaining entries while
// preserving their relative order, and commits the updated document.
func (idx *Index) Remove(name string) error {
	if _, exists := idx.byKey[name]; !exists {
		return mberr.Newf(mberr.NotFound, "package %q is not in the index", name)
	}
	delete(idx.byKey, name)
	for i, n := range idx.names {
		if n == name {
			idx.names = append(idx.names[:i], idx.names[i+1:]...)
			break
		}
	}
	return idx.commit()
}

func (idx *Index) commit() error {
	data, err := idx.encode()
	if err != nil {
		return err
	}
	_, err = idx.repo.WriteFileAndCommit(idx.branch, jsonDocPath, data, commitMsg)
	return err
}

// encode renders the in-memory map as pretty-printed JSON with keys in
// insertion order, matching spec.md's "writers emit pretty-printed JSON
// with keys in insertion order".
func (idx *Index) encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, name := range idx.names {
		keyJSON, err := json.Marshal(name)
		if err != nil {
			return nil, mberr.Wrap(err, mberr.IO, "encoding index entry key")
		}
		valJSON, err := json.MarshalIndent(idx.byKey[name], "  ", "  ")
		if err != nil {
			return nil, mberr.Wrap(err, mberr.IO, "encoding index entry value")
		}
		buf.WriteString("  ")
		buf.Write(keyJSON)
		buf.WriteString(": ")
		buf.Write(valJSON)
		if i < len(idx.names)-1 {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

// Revert discards local changes, delegating to the underlying bare
// repository cache.
func (idx *Index) Revert() error {
	if err := idx.repo.Revert(idx.branch); err != nil {
		return err
	}
	data, err := idx.repo.ReadFile(idx.branch, jsonDocPath)
	if err != nil {
		if mberr.Is(err, mberr.NotFound) {
			idx.names = nil
			idx.byKey = map[string]Source{}
			return nil
		}
		return err
	}
	return idx.parseJSON(data)
}

// Push publishes local commits to origin.
func (idx *Index) Push() error {
	return idx.repo.Push(idx.branch)
}

// Close releases the underlying bare repository handle.
func (idx *Index) Close() error {
	return idx.repo.Close()
}
