package solver

import (
	"fmt"
	"strings"

	"github.com/jasal82/metabuild/internal/gps"
)

type conflictKind int

const (
	conflictNoCandidates conflictKind = iota
	conflictNoneMatch
	conflictAlreadyAssigned
)

// conflict records why the search gave up on one requirement. A subtree that
// succeeds returns the zero value alongside ok=true; the zero value's kind is
// conflictNoCandidates, so it is only meaningful together with ok=false.
type conflict struct {
	kind               conflictKind
	name               string
	req                gps.VersionReq
	from               string
	conflictingVersion gps.Version
	considered         []gps.Version
}

func requester(from string) string {
	if from == "" {
		return "the project manifest"
	}
	return from
}

// render produces the user-level explanation for the one conflict at which
// the search gave up: a single line citing the package, the requirement, who
// asked for it, and why no version could be used. Other conflicts met
// earlier in the search are not reported.
func (c conflict) render() string {
	switch c.kind {
	case conflictNoCandidates:
		return fmt.Sprintf("unsolvable: no candidates for package %q (requested by %s)", c.name, requester(c.from))
	case conflictAlreadyAssigned:
		return fmt.Sprintf("unsolvable: %s requires %q %s, but %q is already selected at version %s",
			requester(c.from), c.name, c.req, c.name, c.conflictingVersion)
	case conflictNoneMatch:
		return fmt.Sprintf("unsolvable: no version of %q satisfies %s (requested by %s); considered: %s",
			c.name, c.req, requester(c.from), joinVersions(c.considered))
	default:
		return "unsolvable: no consistent set of versions could be found"
	}
}

func joinVersions(vs []gps.Version) string {
	if len(vs) == 0 {
		return "(none)"
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, ", ")
}
