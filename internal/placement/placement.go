// Package placement implements the Placement Planner (§4.8): given an
// install candidate and an ancestor chain of already-installed package
// roots, it searches for an existing compatible installation and, failing
// that, the first free slot along the chain, searched from the current frame
// outward past any conflicting installs.
//
// Grounded on the hoisting shape of the npm resolver in
// other_examples/5a465f58_google-deps.dev__util-resolve-npm-resolve.go.go:
// "plug the node in the tree as close to the root as possible under the
// constraint that no two children of a given node can have the same name".
// This package implements the same walk-the-parent-chain idea at a much
// smaller scale (no transitive resolution, no bundled-version handling —
// just the single-dependency ancestor search of §4.8), the way
// internal/gps/selection.go's version-selection queue classifies one
// candidate at a time rather than solving a full SAT problem.
package placement

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/braydonf/gpk/internal/gpkerr"
	"github.com/braydonf/gpk/internal/manifest"
	"github.com/braydonf/gpk/internal/semver"
	"github.com/braydonf/gpk/internal/source"
)

// Candidate describes what an install must satisfy at a given slot: either
// a fixed commit (branch installs) or a version range (tag installs), never
// both.
type Candidate struct {
	Name   string
	Range  string
	Commit string
}

// Site is the outcome of Plan: either an existing compatible Install Site
// (NoAction true) or a fresh directory to copy into.
type Site struct {
	// NoAction reports that a compatible Install Site already exists and
	// nothing further needs placing.
	NoAction bool
	// Container is the ancestor package root the new Install Site is
	// placed under (<Container>/node_modules/<name>). Unset when
	// NoAction is true.
	Container string
	// Dst is Container's node_modules/<name> child. Unset when NoAction
	// is true.
	Dst string
}

// classifyAt inspects the Install Site at dst, reporting (existing, ok) per
// §4.8's classification table.
func classifyAt(dst string, c Candidate) (existing bool, ok bool, err error) {
	m, err := manifest.Read(dst)
	if err != nil {
		return false, false, err
	}
	if m == nil {
		return false, false, nil
	}

	if c.Commit != "" {
		return true, m.Commit == c.Commit, nil
	}

	v, err := semver.Parse(m.Version)
	if err != nil {
		// An unparsable installed version can never satisfy a range;
		// treat it as an incompatible existing install rather than
		// failing the whole search.
		return true, false, nil
	}
	satisfies, err := semver.Satisfies(v, c.Range)
	if err != nil {
		return true, false, errors.Wrapf(err, "evaluating range %q for %s", c.Range, c.Name)
	}
	return true, satisfies, nil
}

// Plan implements §4.8's search over an ancestor chain (current frame
// first, root last). The bundle path of the current frame is simply the
// first iteration of this loop, since ancestors[0] is that frame's own
// root. The first compatible site found yields "no action"; the first
// absent site is the selected placement; a chain that is entirely
// satisfied-elsewhere or conflicting, with no free slot, fails with
// PlacementConflict.
func Plan(ancestors []string, c Candidate) (*Site, error) {
	if len(ancestors) == 0 {
		return nil, errors.New("placement: empty ancestor chain")
	}

	for _, a := range ancestors {
		dst := filepath.Join(a, "node_modules", c.Name)

		existing, ok, err := classifyAt(dst, c)
		if err != nil {
			return nil, err
		}
		if existing && ok {
			return &Site{NoAction: true}, nil
		}
		if existing && !ok {
			continue
		}
		return &Site{Container: a, Dst: dst}, nil
	}

	last := ancestors[len(ancestors)-1]
	return nil, &gpkerr.PlacementConflict{
		Name: c.Name,
		Path: filepath.Join(last, "node_modules", c.Name),
	}
}

// PlanGlobal implements §4.8's global-mode search: the single global
// library root is the only candidate slot, and any conflict there is fatal
// — there is no ancestor chain to fall back through.
func PlanGlobal(globalRoot string, c Candidate) (*Site, error) {
	dst := filepath.Join(globalRoot, c.Name)

	existing, ok, err := classifyAt(dst, c)
	if err != nil {
		return nil, err
	}
	if !existing {
		return &Site{Container: globalRoot, Dst: dst}, nil
	}
	if !ok {
		return nil, &gpkerr.PlacementConflict{Name: c.Name, Path: dst}
	}
	return &Site{NoAction: true}, nil
}

// MatchesSource reports whether an already-installed manifest satisfies a
// declared dependency source, per the Uninstaller's is_required rule
// (§4.10). Unlike classifyAt, a branch-tracking dependency is matched by
// branch name equality alone: the Uninstaller's reachability analysis never
// resolves a branch tip commit over the network, so it compares against
// whatever `_branch` the Install Site already recorded.
func MatchesSource(installed *manifest.Manifest, resolved *source.Resolved) (bool, error) {
	if resolved.Branch != "" {
		return installed.Branch == resolved.Branch, nil
	}
	v, err := semver.Parse(installed.Version)
	if err != nil {
		return false, nil
	}
	return semver.Satisfies(v, resolved.VersionRange)
}
