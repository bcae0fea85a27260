package index

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// SourceKind discriminates the two Source variants. There is no plugin
// story for a third kind (spec design note: prefer a tagged union over an
// open interface), so dispatch is a plain switch wherever Source is
// consumed.
type SourceKind int

const (
	SourceGit SourceKind = iota
	SourceArtifactory
)

// Source describes where a package's versions live.
type Source struct {
	Kind SourceKind

	// Git
	URL string

	// Artifactory
	Server string
	Repo   string
	Path   string
}

type rawSource struct {
	Type   string `json:"type"`
	URL    string `json:"url,omitempty"`
	Server string `json:"server,omitempty"`
	Repo   string `json:"repo,omitempty"`
	Path   string `json:"path,omitempty"`
}

// MarshalJSON renders Git sources as the tagged object form; the bare-string
// shorthand is accepted on read but never produced on write.
func (s Source) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case SourceGit:
		return json.Marshal(rawSource{Type: "git", URL: s.URL})
	case SourceArtifactory:
		return json.Marshal(rawSource{Type: "artifactory", Server: s.Server, Repo: s.Repo, Path: s.Path})
	default:
		return nil, errors.Errorf("unknown source kind %d", s.Kind)
	}
}

// UnmarshalJSON accepts either a bare string (shorthand for a Git source) or
// a {"type": ...} tagged object.
func (s *Source) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		*s = Source{Kind: SourceGit, URL: bare}
		return nil
	}

	var raw rawSource
	if err := json.Unmarshal(data, &raw); err != nil {
		return errors.Wrap(err, "decoding index entry")
	}
	switch raw.Type {
	case "git":
		*s = Source{Kind: SourceGit, URL: raw.URL}
	case "artifactory":
		*s = Source{Kind: SourceArtifactory, Server: raw.Server, Repo: raw.Repo, Path: raw.Path}
	default:
		return errors.Errorf("unknown index entry type %q", raw.Type)
	}
	return nil
}
