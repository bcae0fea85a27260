package inventory

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/jasal82/metabuild/internal/mberr"
)

type nameEntry struct {
	versions  []string
	byVersion map[string]Package
}

// Cache is the ordered name -> (ordered version -> Package) document backing
// the inventory. An ordered-map library would have been the natural fit
// here, but none appears anywhere in the retrieval pack (see DESIGN.md), so
// order is tracked with a parallel slice alongside the lookup map.
type Cache struct {
	names  []string
	byName map[string]*nameEntry
}

// NewCache returns an empty cache, the state of a project that has never
// been refreshed.
func NewCache() *Cache {
	return &Cache{byName: map[string]*nameEntry{}}
}

// LoadCache reads path if it exists; a missing file yields an empty cache,
// matching spec.md §4.D ("the file is absent on first run"). A present but
// unparseable file fails with Corrupt.
func LoadCache(path string) (*Cache, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return NewCache(), nil
	}
	if err != nil {
		return nil, mberr.Wrap(err, mberr.IO, "reading "+path)
	}
	return parseCache(data)
}

func parseCache(data []byte) (*Cache, error) {
	c := NewCache()

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectObjectOpen(dec); err != nil {
		return nil, mberr.Wrap(err, mberr.Corrupt, "parsing cache.json")
	}

	for dec.More() {
		nameTok, err := dec.Token()
		if err != nil {
			return nil, mberr.Wrap(err, mberr.Corrupt, "parsing cache.json")
		}
		name, ok := nameTok.(string)
		if !ok {
			return nil, mberr.New(mberr.Corrupt, "cache.json key is not a string")
		}

		var rawVersions json.RawMessage
		if err := dec.Decode(&rawVersions); err != nil {
			return nil, mberr.Wrapf(err, mberr.Corrupt, "parsing cache.json entry %q", name)
		}

		entry, err := parseVersionsObject(rawVersions)
		if err != nil {
			return nil, mberr.Wrapf(err, mberr.Corrupt, "parsing cache.json entry %q", name)
		}

		c.names = append(c.names, name)
		c.byName[name] = entry
	}

	return c, nil
}

func parseVersionsObject(data []byte) (*nameEntry, error) {
	entry := &nameEntry{byVersion: map[string]Package{}}

	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectObjectOpen(dec); err != nil {
		return nil, err
	}

	for dec.More() {
		verTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		version, ok := verTok.(string)
		if !ok {
			return nil, mberr.New(mberr.Corrupt, "cache.json version key is not a string")
		}

		var pkg Package
		if err := dec.Decode(&pkg); err != nil {
			return nil, err
		}

		entry.versions = append(entry.versions, version)
		entry.byVersion[version] = pkg
	}

	return entry, nil
}

func expectObjectOpen(dec *json.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return mberr.New(mberr.Corrupt, "expected a JSON object")
	}
	return nil
}

// Save writes the cache to path as pretty-printed JSON with keys in
// insertion order, atomically replacing any existing file.
func (c *Cache) Save(path string) error {
	data, err := c.encode()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return mberr.Wrap(err, mberr.IO, "creating inventory directory")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return mberr.Wrap(err, mberr.IO, "writing cache.json")
	}
	if err := os.Rename(tmp, path); err != nil {
		return mberr.Wrap(err, mberr.IO, "replacing cache.json")
	}
	return nil
}

func (c *Cache) encode() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("{\n")
	for i, name := range c.names {
		entry := c.byName[name]
		keyJSON, err := json.Marshal(name)
		if err != nil {
			return nil, mberr.Wrap(err, mberr.IO, "encoding cache.json")
		}
		buf.WriteString("  ")
		buf.Write(keyJSON)
		buf.WriteString(": {\n")

		for j, version := range entry.versions {
			verKeyJSON, err := json.Marshal(version)
			if err != nil {
				return nil, mberr.Wrap(err, mberr.IO, "encoding cache.json")
			}
			pkgJSON, err := json.MarshalIndent(entry.byVersion[version], "    ", "  ")
			if err != nil {
				return nil, mberr.Wrap(err, mberr.IO, "encoding cache.json")
			}
			buf.WriteString("    ")
			buf.Write(verKeyJSON)
			buf.WriteString(": ")
			buf.Write(pkgJSON)
			if j < len(entry.versions)-1 {
				buf.WriteString(",")
			}
			buf.WriteString("\n")
		}

		buf.WriteString("  }")
		if i < len(c.names)-1 {
			buf.WriteString(",")
		}
		buf.WriteString("\n")
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

func (c *Cache) has(name, version string) bool {
	entry, ok := c.byName[name]
	if !ok {
		return false
	}
	_, ok = entry.byVersion[version]
	return ok
}

func (c *Cache) insert(name string, pkg Package) {
	entry, ok := c.byName[name]
	if !ok {
		entry = &nameEntry{byVersion: map[string]Package{}}
		c.byName[name] = entry
		c.names = append(c.names, name)
	}
	version := pkg.Version.String()
	if _, exists := entry.byVersion[version]; !exists {
		entry.versions = append(entry.versions, version)
	}
	entry.byVersion[version] = pkg
}
