// Package filter implements the File Filter (§4.5): the layered
// "files"-keep-list plus per-directory ignore-file rules plus
// bundled-dependency classification applied while copying a source tree
// into an install site.
//
// Grounded on the teacher's own filtered-copy callback —
// vcs_source.go/project_manager.go build a
// shutil.CopyTreeOptions.Ignore func(src string, contents []os.FileInfo)
// (ignore []string) that walks directory contents and returns the names to
// skip. This package generalizes that same shape from a fixed VCS-directory
// denylist to the full §4.5 rule set.
package filter

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// ignoreFileNames is the priority order of ignore files read per directory.
var ignoreFileNames = []string{".gpkignore", ".yarnignore", ".npmignore", ".gitignore"}

// alwaysIgnoreGlobs can never be kept, regardless of any user pattern or
// keep-layer entry (composition rule: "always-ignore patterns can" override
// a kept top-level entry).
var alwaysIgnoreGlobs = []string{
	"*.swp", "*.swo", "*~",
	".DS_Store",
	".git", ".hg", ".svn",
	"config.gypi",
	"CVS",
	"npm-debug.log",
	".gpkignore", ".yarnignore", ".npmignore", ".gitignore",
}

// alwaysKeepRegexp matches the readme/license/changelog variants that are
// never ignored, per §4.5's keep-layer seed.
var alwaysKeepRegexp = regexp.MustCompile(`(?i)^(readme|license|licence|changelog)(\..*)?$`)

func isAlwaysKept(name string) bool {
	return alwaysKeepRegexp.MatchString(name) || strings.EqualFold(name, "package.json")
}

func isAlwaysIgnored(name string) bool {
	for _, g := range alwaysIgnoreGlobs {
		if ok, _ := filepath.Match(g, name); ok {
			return true
		}
	}
	return false
}

// pattern is one line of a files-list or ignore-file, after parsing.
type pattern struct {
	glob    string
	invert  bool
	dirOnly bool
}

// Patterns is the parsed form of one directory's ignore file, as returned by
// LoadIgnore and consumed by Allow. It is exported as an alias so the Tree
// Copier can cache a per-directory value between Walk callbacks without
// needing to know the shape of a single pattern.
type Patterns = []pattern

// parsePatternLines turns raw keep/ignore-file lines into patterns,
// skipping blanks and "#" comments, recognizing a leading "!" inversion and
// a trailing "/" directory anchor, and dropping any "node_modules" entry
// (that path is owned by bundled-dependency classification, not user
// patterns, per §4.5).
func parsePatternLines(lines []string) []pattern {
	var out []pattern
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		invert := false
		if rest, ok := strings.CutPrefix(line, "!"); ok {
			invert = true
			line = rest
		}
		dirOnly := strings.HasSuffix(line, "/")
		line = strings.TrimSuffix(line, "/")
		if line == "node_modules" {
			continue
		}
		out = append(out, pattern{glob: line, invert: invert, dirOnly: dirOnly})
	}
	return out
}

func matchBase(name string, isDir bool, p pattern) bool {
	if p.dirOnly && !isDir {
		return false
	}
	ok, _ := filepath.Match(p.glob, name)
	return ok
}

// evaluate applies gitignore-style "last match wins" semantics over an
// ordered pattern list.
func evaluate(name string, isDir bool, patterns []pattern) bool {
	matched := false
	for _, p := range patterns {
		if matchBase(name, isDir, p) {
			matched = !p.invert
		}
	}
	return matched
}

// Filter holds the static configuration for one tree copy: the declared
// `files` keep-list (if any) and the set of bundled dependency names.
type Filter struct {
	keepEnabled  bool
	keepPatterns []pattern
	bundleDeps   map[string]bool
}

// New builds a Filter. files is the package manifest's declared `files`
// list (nil/empty means the keep layer is inactive, per §4.5: "applies
// only at the top of the copied tree, when files is declared"). bundleDeps
// is bundleDependencies/bundledDependencies.
func New(files []string, bundleDeps []string) *Filter {
	f := &Filter{bundleDeps: make(map[string]bool, len(bundleDeps))}
	for _, d := range bundleDeps {
		f.bundleDeps[d] = true
	}

	if len(files) > 0 {
		f.keepEnabled = true
		f.keepPatterns = parsePatternLines(files)
		if len(bundleDeps) > 0 {
			f.keepPatterns = append(f.keepPatterns, pattern{glob: "node_modules", dirOnly: true})
		}
	}
	return f
}

// LoadIgnore reads the first existing ignore file in dir, in priority
// order .gpkignore, .yarnignore, .npmignore, .gitignore, and returns its
// parsed patterns. A directory with no ignore file returns a nil slice.
func LoadIgnore(dir string) (Patterns, error) {
	for _, name := range ignoreFileNames {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err == nil {
			return parsePatternLines(strings.Split(string(data), "\n")), nil
		}
		if !os.IsNotExist(err) {
			return nil, errors.Wrapf(err, "reading %s", name)
		}
	}
	return nil, nil
}

// Decision is the outcome of evaluating one entry, passed back to the Tree
// Copier so it knows whether to copy a file or descend into a directory.
type Decision struct {
	Keep bool
	// BundleBoundary is true when this entry is a direct child of a
	// root-level node_modules directory, i.e. its Keep decision came from
	// bundled-dependency classification rather than the keep/ignore
	// layers, and nothing beneath relDir=="node_modules" should be
	// re-evaluated against the root files list.
	BundleBoundary bool
}

// Allow decides whether to keep a single directory entry during the copy.
//
//   - relDir is the entry's containing directory, relative to the root of
//     the copy ("" for the root itself), using forward slashes.
//   - name is the entry's base name.
//   - isDir reports whether the entry is itself a directory.
//   - ignorePatterns are the patterns loaded via LoadIgnore for relDir
//     (the Ignore layer, recomputed per directory per §4.5).
func (f *Filter) Allow(relDir, name string, isDir bool, ignorePatterns Patterns) Decision {
	if isAlwaysIgnored(name) {
		return Decision{Keep: false}
	}

	if relDir == "node_modules" {
		// Bundled-dependency classification precedes user pattern
		// evaluation and owns this path entirely (§4.5, §9).
		return Decision{Keep: isDir && f.bundleDeps[name], BundleBoundary: true}
	}

	if relDir == "" {
		if isAlwaysKept(name) {
			return Decision{Keep: true}
		}
		if f.keepEnabled {
			if !evaluate(name, isDir, f.keepPatterns) {
				return Decision{Keep: false}
			}
			// A kept top-level entry cannot be overridden by the
			// ignore layer's user patterns (composition rule); we
			// already cleared always-ignore above.
			return Decision{Keep: true}
		}
	}

	return Decision{Keep: !evaluate(name, isDir, ignorePatterns)}
}
