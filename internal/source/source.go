// Package source implements the Source URL Resolver (§4.2): it parses a
// dependency's source string, together with the enclosing package's
// remotes table, into a canonical {git_url, version_range, branch}.
//
// Grounded on the teacher's deduce.go/deducers.go, which perform the
// analogous job of turning an import path plus a set of known scheme
// prefixes into a canonical fetchable URL; generalized here from Go import
// path deduction to the spec's <alias>:<repo>#<fragment> grammar.
package source

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/braydonf/gpk/internal/gpkerr"
)

// directGitPrefixes are the scheme prefixes that name a fetchable Git URL
// directly, without going through a remotes alias. Adapted from the
// teacher's own gitSchemes list (https, ssh, git, file): git:// is accepted
// as is, while https, ssh and file are recognized only in their git+ form.
var directGitPrefixes = []string{
	"git+https://",
	"git+ssh://",
	"git+file://",
	"git://",
}

// Resolved is the canonical {git_url, version_range, branch} triple. Empty
// string stands for "null" in all three fields; after a successful Resolve,
// GitURL is empty only for a bare version-only source, and at most one of
// VersionRange/Branch is non-empty.
type Resolved struct {
	GitURL       string
	VersionRange string
	Branch       string
}

var commitSHA = regexp.MustCompile(`^[0-9a-f]{40}$`)

// IsCommitSHA reports whether ref looks like a 40-character hex commit SHA,
// per the open question in §9: such a fragment must be treated as a commit,
// verified with verify-commit, and must never be passed to branch listing.
func IsCommitSHA(ref string) bool {
	return commitSHA.MatchString(ref)
}

// Resolve parses source against remotes (the enclosing package's remotes
// table), name (the dependency name, used as the default repo), pkgDir and
// baseDir (candidates for resolving a relative git+file:// template path;
// baseDir, the configured default, takes precedence when both are set - see
// resolveFileBase), and global
// (true disables alias expansion entirely, per §4.2 inputs).
func Resolve(remotes map[string]string, name, src, pkgDir, baseDir string, global bool) (*Resolved, error) {
	if r, ok := matchDirectPrefix(src); ok {
		return r, nil
	}

	alias, tail, hasTail := cutFirst(src, ':')
	if !hasTail {
		// Bare version-only legacy source: resolves against no remote.
		return &Resolved{VersionRange: src}, nil
	}

	if global {
		return nil, &gpkerr.UnknownRemote{Alias: alias}
	}

	template, ok := remotes[alias]
	if !ok {
		return nil, &gpkerr.UnknownRemote{Alias: alias}
	}

	repoPart, fragment, hasFragment := cutFirst(tail, '#')
	repo := repoPart
	if repo == "" {
		repo = name
	}

	gitURL, err := composeURL(template, repo, pkgDir, baseDir)
	if err != nil {
		return nil, err
	}

	versionRange, branch := classifyFragment(fragment, hasFragment)
	return &Resolved{GitURL: gitURL, VersionRange: versionRange, Branch: branch}, nil
}

func matchDirectPrefix(src string) (*Resolved, bool) {
	for _, prefix := range directGitPrefixes {
		if !strings.HasPrefix(src, prefix) {
			continue
		}
		urlPart, fragment, hasFragment := cutFirst(src, '#')
		normalized := strings.TrimPrefix(urlPart, "git+")
		versionRange, branch := classifyFragment(fragment, hasFragment)
		return &Resolved{GitURL: normalized, VersionRange: versionRange, Branch: branch}, true
	}
	return nil, false
}

// composeURL builds the final git URL per §4.2 step 5: for a git+file://
// template, strip the scheme, resolve a relative path against the supplied
// base, and append <repo>/.git; for any other template, append <repo>.git.
func composeURL(template, repo, pkgDir, baseDir string) (string, error) {
	if strings.HasPrefix(template, "git+file://") {
		path := strings.TrimPrefix(template, "git+file://")
		if !filepath.IsAbs(path) {
			base := resolveFileBase(pkgDir, baseDir)
			if base == "" {
				return "", &gpkerr.UnknownBase{Template: template}
			}
			path = filepath.Join(base, path)
		}
		return "file://" + filepath.ToSlash(path) + "/" + repo + "/.git", nil
	}
	return strings.TrimSuffix(template, "/") + "/" + repo + ".git", nil
}

// resolveFileBase prefers an explicitly configured base directory (§6:
// GPK_BASE_DIR or equivalent) and falls back to the enclosing package's
// directory when none is configured.
func resolveFileBase(pkgDir, baseDir string) string {
	if baseDir != "" {
		return baseDir
	}
	return pkgDir
}

// classifyFragment turns a source string's fragment into version_range or
// branch. A fragment of the form "semver:<range>" yields version_range;
// any other fragment is a raw ref (branch name or commit SHA) and yields
// branch. No fragment at all yields both empty, deferring to the
// installer's default resolution (highest non-prerelease tag).
func classifyFragment(fragment string, present bool) (versionRange, branch string) {
	if !present {
		return "", ""
	}
	if rng, ok := strings.CutPrefix(fragment, "semver:"); ok {
		return rng, ""
	}
	return "", fragment
}

// cutFirst splits s on the first occurrence of sep, reporting whether sep
// was present at all.
func cutFirst(s string, sep byte) (before, after string, found bool) {
	idx := strings.IndexByte(s, sep)
	if idx < 0 {
		return s, "", false
	}
	return s[:idx], s[idx+1:], true
}
