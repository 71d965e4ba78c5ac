// Package copier implements the Tree Copier (§4.6): a recursive,
// deterministic copy of one Verified Cache Entry into an install site, with
// the File Filter's keep/ignore/bundle decisions applied per directory
// entry along the way.
//
// Grounded on the same call sites internal/filter is grounded on —
// vcs_source.go's exportVersionTo and project_manager.go build a
// shutil.CopyTreeOptions{Ignore: ...} and hand it to shutil.CopyTree. This
// package keeps both teacher libraries but splits their roles: godirwalk
// drives the traversal (so the Ignore decision can be recomputed per
// directory rather than once via shutil's own os.ReadDir-based Ignore
// callback), and go-shutil's Copy does the actual per-file copy, preserving
// its symlink-handling behavior.
package copier

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/karrick/godirwalk"
	"github.com/pkg/errors"
	"github.com/termie/go-shutil"

	"github.com/braydonf/gpk/internal/filter"
)

// Copier copies a source tree into an install site, applying f to every
// entry encountered along the way.
type Copier struct {
	filter *filter.Filter
}

// New returns a Copier that applies f to every copied entry.
func New(f *filter.Filter) *Copier {
	return &Copier{filter: f}
}

// Copy recursively copies src into dst, creating dst if necessary. Entries
// the filter rejects are skipped entirely; rejecting a directory skips its
// whole subtree without descending into it, matching §4.5's avoid-wasted-work
// note. Traversal is lexically sorted so the resulting operation order (and
// any reported errors) are reproducible between runs on the same tree.
func (c *Copier) Copy(ctx context.Context, src, dst string) error {
	src = filepath.Clean(src)
	dst = filepath.Clean(dst)

	if err := os.MkdirAll(dst, 0o755); err != nil {
		return errors.Wrapf(err, "creating install destination %s", dst)
	}

	ignoreCache := make(map[string]filter.Patterns)
	loadIgnore := func(dirAbs string) (filter.Patterns, error) {
		if p, ok := ignoreCache[dirAbs]; ok {
			return p, nil
		}
		p, err := filter.LoadIgnore(dirAbs)
		if err != nil {
			return nil, err
		}
		ignoreCache[dirAbs] = p
		return p, nil
	}

	// bundleRoots holds the rel path of every bundled-dependency directory
	// encountered so far. Per §4.5 the whole subtree of a bundled dependency
	// is kept verbatim, so anything beneath a recorded root bypasses the
	// ignore/keep layers entirely instead of being re-evaluated per
	// directory.
	var bundleRoots []string
	insideBundle := func(rel string) bool {
		for _, root := range bundleRoots {
			if rel == root || strings.HasPrefix(rel, root+"/") {
				return true
			}
		}
		return false
	}

	return godirwalk.Walk(src, &godirwalk.Options{
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if err := ctx.Err(); err != nil {
				return err
			}

			if osPathname == src {
				return nil
			}

			rel, err := filepath.Rel(src, osPathname)
			if err != nil {
				return errors.Wrapf(err, "computing relative path for %s", osPathname)
			}
			rel = filepath.ToSlash(rel)

			relDir := filepath.ToSlash(filepath.Dir(rel))
			if relDir == "." {
				relDir = ""
			}
			name := filepath.Base(rel)

			isDir := de.IsDir()

			var decision filter.Decision
			if insideBundle(relDir) {
				decision = filter.Decision{Keep: true}
			} else {
				ignorePatterns, err := loadIgnore(filepath.Dir(osPathname))
				if err != nil {
					return err
				}
				decision = c.filter.Allow(relDir, name, isDir, ignorePatterns)
			}
			if !decision.Keep {
				if isDir {
					return filepath.SkipDir
				}
				return nil
			}
			if decision.BundleBoundary && isDir {
				bundleRoots = append(bundleRoots, rel)
			}

			dstPathname := filepath.Join(dst, rel)

			if isDir {
				if err := os.MkdirAll(dstPathname, 0o755); err != nil {
					return errors.Wrapf(err, "creating %s", dstPathname)
				}
				return nil
			}

			if err := os.MkdirAll(filepath.Dir(dstPathname), 0o755); err != nil {
				return errors.Wrapf(err, "creating %s", filepath.Dir(dstPathname))
			}
			if _, err := shutil.Copy(osPathname, dstPathname, true); err != nil {
				return errors.Wrapf(err, "copying %s", osPathname)
			}
			return nil
		},
	})
}
