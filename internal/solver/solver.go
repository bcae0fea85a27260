// Package solver runs SAT-style version resolution over an inventory
// oracle: one concrete version chosen per package reachable from a set of
// root requirements, every choice satisfying every requirement that reaches
// it.
package solver

import (
	"github.com/jasal82/metabuild/internal/gps"
	"github.com/jasal82/metabuild/internal/inventory"
)

// Root is one top-level requirement from the project manifest.
type Root struct {
	Name string
	Req  gps.VersionReq
}

// Kind distinguishes the three possible solve outcomes.
type Kind int

const (
	// Resolved means Versions holds a consistent assignment.
	Resolved Kind = iota
	// Unsolvable means no assignment satisfies every requirement;
	// Explanation renders why at the user level.
	Unsolvable
	// Cancelled is reserved for a future cancellation hook; the
	// synchronous driver never produces it (spec.md §4.E.1).
	Cancelled
)

// Result is the outcome of a Solve call.
type Result struct {
	Kind        Kind
	Versions    map[string]gps.Version
	Explanation string
}

// Oracle is the solver-facing view of the inventory. *inventory.Cache
// satisfies it directly.
type Oracle interface {
	Candidates(name string) []gps.Version
	Dependencies(name string, version gps.Version) []inventory.Dependency
}

type pendingReq struct {
	name string
	req  gps.VersionReq
	from string // requesting package name, or "" for a root requirement
}

// Solve resolves roots against oracle.
func Solve(roots []Root, oracle Oracle) Result {
	pending := make([]pendingReq, 0, len(roots))
	for _, r := range roots {
		pending = append(pending, pendingReq{name: r.Name, req: r.Req})
	}

	assigned, ok, conf := resolve(pending, map[string]gps.Version{}, oracle)
	if !ok {
		return Result{Kind: Unsolvable, Explanation: conf.render()}
	}
	return Result{Kind: Resolved, Versions: assigned}
}

// resolve is a chronological-backtracking search: it tries candidates for
// the head of pending highest-version-first (inventory.SortCandidates),
// recursing with that choice fixed and that package's own dependencies
// appended to the queue; a dead end unwinds to try the next lower
// candidate. Grounded in structure (unselected queue / selection stack,
// highest-version-first) on the teacher's solver.go, scaled down to the
// spec's package-level graph (no import-path resolution).
func resolve(pending []pendingReq, assigned map[string]gps.Version, oracle Oracle) (map[string]gps.Version, bool, conflict) {
	if len(pending) == 0 {
		return assigned, true, conflict{}
	}

	item := pending[0]
	rest := pending[1:]

	if v, ok := assigned[item.name]; ok {
		if item.req.Matches(v) {
			return resolve(rest, assigned, oracle)
		}
		return nil, false, conflict{
			kind:               conflictAlreadyAssigned,
			name:               item.name,
			req:                item.req,
			from:               item.from,
			conflictingVersion: v,
		}
	}

	candidates := oracle.Candidates(item.name)
	if len(candidates) == 0 {
		return nil, false, conflict{kind: conflictNoCandidates, name: item.name, req: item.req, from: item.from}
	}
	sorted := inventory.SortCandidates(candidates)

	var last conflict
	tried := false
	for _, v := range sorted {
		if !item.req.Matches(v) {
			continue
		}
		tried = true

		next := make(map[string]gps.Version, len(assigned)+1)
		for k, val := range assigned {
			next[k] = val
		}
		next[item.name] = v

		deps := oracle.Dependencies(item.name, v)
		nextPending := make([]pendingReq, 0, len(rest)+len(deps))
		nextPending = append(nextPending, rest...)
		for _, d := range deps {
			nextPending = append(nextPending, pendingReq{name: d.Name, req: d.Req, from: item.name})
		}

		result, ok, conf := resolve(nextPending, next, oracle)
		if ok {
			return result, true, conflict{}
		}
		last = conf
	}

	if !tried {
		last = conflict{kind: conflictNoneMatch, name: item.name, req: item.req, from: item.from, considered: sorted}
	}
	return nil, false, last
}
