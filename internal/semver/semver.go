// Package semver implements the Version Range Evaluator (§4.1): tag
// parsing, range satisfaction and tag ordering, on top of
// Masterminds/semver/v3 — the same library other Git-backed installers in
// this ecosystem (e.g. Helm's plugin VCSInstaller) use to select the
// highest tag satisfying a constraint.
package semver

import (
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// Parse strips a leading "v" and parses tag as a semantic version, per
// §4.1 ("strips a leading v and returns a structured version").
func Parse(tag string) (*semver.Version, error) {
	return semver.NewVersion(strings.TrimPrefix(tag, "v"))
}

// Satisfies reports whether version satisfies the given range expression.
func Satisfies(version *semver.Version, rng string) (bool, error) {
	c, err := semver.NewConstraint(rng)
	if err != nil {
		return false, err
	}
	return c.Check(version), nil
}

// taggedVersion pairs a tag's original name with its parsed version, or a
// parse failure for invalid tags, which §4.1 requires to sort lower than any
// valid tag rather than being dropped.
type taggedVersion struct {
	tag     string
	version *semver.Version
	valid   bool
}

func tagVersions(tags []string) []taggedVersion {
	out := make([]taggedVersion, 0, len(tags))
	for _, t := range tags {
		v, err := Parse(t)
		out = append(out, taggedVersion{tag: t, version: v, valid: err == nil})
	}
	return out
}

func lessTagged(a, c taggedVersion) bool {
	switch {
	case !a.valid && !c.valid:
		return a.tag < c.tag
	case !a.valid:
		return true
	case !c.valid:
		return false
	}
	cmp := a.version.Compare(c.version)
	if cmp != 0 {
		return cmp < 0
	}
	return a.tag < c.tag
}

// SortTags orders tags by semver precedence, descending or ascending.
// Invalid tags sort lower than any valid tag; ties break on tag name.
func SortTags(tags []string, descending bool) []string {
	tv := tagVersions(tags)
	sort.SliceStable(tv, func(i, j int) bool {
		if descending {
			return lessTagged(tv[j], tv[i])
		}
		return lessTagged(tv[i], tv[j])
	})
	out := make([]string, len(tv))
	for i, t := range tv {
		out[i] = t.tag
	}
	return out
}

// MatchTag returns the highest tag whose parsed version (after stripping a
// leading "v") satisfies rng, or "", false if none does.
func MatchTag(tags []string, rng string) (string, bool, error) {
	c, err := semver.NewConstraint(rng)
	if err != nil {
		return "", false, err
	}

	tv := tagVersions(tags)
	best := -1
	for i, t := range tv {
		if !t.valid || !c.Check(t.version) {
			continue
		}
		if best == -1 || lessTagged(tv[best], t) {
			best = i
		}
	}
	if best == -1 {
		return "", false, nil
	}
	return tv[best].tag, true, nil
}

// HighestNonPrerelease returns the highest tag with no prerelease component,
// used by repo discovery (§4.9.1) when no range is supplied.
func HighestNonPrerelease(tags []string) (string, bool) {
	tv := tagVersions(tags)
	best := -1
	for i, t := range tv {
		if !t.valid || t.version.Prerelease() != "" {
			continue
		}
		if best == -1 || lessTagged(tv[best], t) {
			best = i
		}
	}
	if best == -1 {
		return "", false
	}
	return tv[best].tag, true
}
