// Package uninstaller implements the Uninstaller (§4.10): removing named
// dependencies from the root manifest, then pruning every installed package
// that is no longer transitively reachable from it.
//
// Grounded on the teacher's remove.go (manifest dependency removal) and
// internal/gps/prune.go's reachability-based pruning of packages a solve no
// longer needs, generalized here from "unused Go import path" to
// "unreferenced node_modules entry", using a mark-and-sweep walk of the
// installed tree instead of gps's whole-graph solve output.
package uninstaller

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/braydonf/gpk/internal/env"
	"github.com/braydonf/gpk/internal/gpkerr"
	"github.com/braydonf/gpk/internal/linker"
	"github.com/braydonf/gpk/internal/manifest"
	"github.com/braydonf/gpk/internal/placement"
	"github.com/braydonf/gpk/internal/source"
)

// Uninstaller removes dependencies and prunes unreachable installs.
type Uninstaller struct {
	Env *env.Environment
}

// New builds an Uninstaller against e.
func New(e *env.Environment) *Uninstaller {
	return &Uninstaller{Env: e}
}

// Options controls one uninstall() call.
type Options struct {
	Global     bool
	Production bool
}

// Uninstall implements uninstall(names, {global, production}) per §4.10.
func (u *Uninstaller) Uninstall(startDir string, names []string, opts Options) error {
	if opts.Global {
		return u.uninstallGlobal(names)
	}
	return u.uninstallLocal(startDir, names, opts.Production)
}

// uninstallGlobal reads each name's global install manifest, unlinks its
// executables, and recursively removes its directory.
func (u *Uninstaller) uninstallGlobal(names []string) error {
	for _, name := range names {
		dir := filepath.Join(u.Env.GlobalLibraryRoot(), name)
		m, err := manifest.Read(dir)
		if err != nil {
			return err
		}
		if m == nil {
			continue
		}
		if len(m.Bin) > 0 {
			if err := linker.Unlink(u.Env.GlobalBinRoot(), binNames(m.Bin)); err != nil {
				return err
			}
		}
		if err := os.RemoveAll(dir); err != nil {
			return &gpkerr.IoError{Op: "remove", Path: dir, Err: err}
		}
	}
	return nil
}

// uninstallLocal removes names from the root manifest, then performs the
// reachability analysis of §4.10 over the whole installed tree, removing
// whatever is no longer reachable.
func (u *Uninstaller) uninstallLocal(startDir string, names []string, production bool) error {
	rootDir, rootManifest, err := manifest.Locate(startDir, true)
	if err != nil {
		return err
	}

	if err := manifest.WithLock(rootDir, func() error {
		m, err := manifest.Read(rootDir)
		if err != nil {
			return err
		}
		if m == nil {
			m = rootManifest
		}
		return manifest.Write(rootDir, removeNames(m, names))
	}); err != nil {
		return err
	}

	rootDir, rootManifest, err = manifest.Locate(startDir, true)
	if err != nil {
		return err
	}

	tree, index, err := buildTree(rootDir, rootManifest, []string{rootDir})
	if err != nil {
		return err
	}

	reachable, err := mark(u.Env.BaseDir, tree, index, rootDir, production)
	if err != nil {
		return err
	}

	return sweep(u.Env, tree, reachable, rootDir)
}

// node is one Install Site in the installed tree, together with the
// ancestor chain its own dependency resolution would search (itself first,
// root last).
type node struct {
	dir       string
	manifest  *manifest.Manifest
	ancestors []string
	children  []*node
}

// buildTree walks dir's node_modules tree (and every nested node_modules
// under it) into a node tree, plus a dir-path index for ancestor-chain
// lookups during the mark phase.
func buildTree(dir string, m *manifest.Manifest, ancestors []string) (*node, map[string]*node, error) {
	index := make(map[string]*node)
	root, err := buildNode(dir, m, ancestors, index)
	if err != nil {
		return nil, nil, err
	}
	return root, index, nil
}

func buildNode(dir string, m *manifest.Manifest, ancestors []string, index map[string]*node) (*node, error) {
	n := &node{dir: dir, manifest: m, ancestors: ancestors}
	index[dir] = n

	nmDir := filepath.Join(dir, "node_modules")
	entries, err := os.ReadDir(nmDir)
	if os.IsNotExist(err) {
		return n, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s", nmDir)
	}

	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		childDir := filepath.Join(nmDir, e.Name())
		childManifest, err := manifest.Read(childDir)
		if err != nil {
			return nil, err
		}
		if childManifest == nil {
			continue
		}
		childAncestors := append([]string{childDir}, ancestors...)
		childNode, err := buildNode(childDir, childManifest, childAncestors, index)
		if err != nil {
			return nil, err
		}
		n.children = append(n.children, childNode)
	}
	return n, nil
}

// mark runs the §4.10 reachability walk: a dependency is required iff some
// reachable package declares a source whose resolved remote matches the
// Install Site actually found by walking that package's ancestor chain.
func mark(baseDir string, root *node, index map[string]*node, rootDir string, production bool) (map[string]bool, error) {
	reachable := map[string]bool{rootDir: true}
	queue := []*node{root}

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]

		includeDev := n.dir == rootDir && !production
		deps := dependencySet(n.manifest, includeDev)

		for _, depName := range manifest.SortedNames(deps) {
			resolved, err := source.Resolve(n.manifest.Remotes, depName, deps[depName], n.dir, baseDir, false)
			if err != nil {
				return nil, err
			}
			if resolved.GitURL == "" {
				continue
			}

			child := findAncestor(index, n.ancestors, depName)
			if child == nil {
				continue
			}
			if reachable[child.dir] {
				continue
			}

			ok, err := placement.MatchesSource(child.manifest, resolved)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}

			reachable[child.dir] = true
			queue = append(queue, child)
		}
	}

	return reachable, nil
}

// findAncestor walks ancestors (current frame first) looking for an
// existing Install Site at <a>/node_modules/<name>, mirroring the Node
// module resolution order the Placement Planner hoists installs for.
func findAncestor(index map[string]*node, ancestors []string, name string) *node {
	for _, a := range ancestors {
		if n, ok := index[filepath.Join(a, "node_modules", name)]; ok {
			return n
		}
	}
	return nil
}

// dependencySet merges dependencies with devDependencies when includeDev is
// set. Unlike the Installer's mergedDeps, overlapping names are not an
// error here: reachability analysis never re-creates anything, it only
// decides what to keep.
func dependencySet(m *manifest.Manifest, includeDev bool) map[string]string {
	out := make(map[string]string, len(m.Dependencies))
	for k, v := range m.Dependencies {
		out[k] = v
	}
	if includeDev {
		for k, v := range m.DevDependencies {
			out[k] = v
		}
	}
	return out
}

// sweep recursively removes every child not in reachable, unlinking its
// executables first; reachable subtrees are swept for their own unreachable
// descendants.
func sweep(e *env.Environment, n *node, reachable map[string]bool, rootDir string) error {
	for _, c := range n.children {
		if !reachable[c.dir] {
			e.Logger.Verbosef(e.Verbose, "removing unreachable %s", c.dir)
			if len(c.manifest.Bin) > 0 {
				if err := linker.Unlink(linker.BinDir(rootDir), binNames(c.manifest.Bin)); err != nil {
					return err
				}
			}
			if err := os.RemoveAll(c.dir); err != nil {
				return &gpkerr.IoError{Op: "remove", Path: c.dir, Err: err}
			}
			continue
		}
		if err := sweep(e, c, reachable, rootDir); err != nil {
			return err
		}
	}
	return nil
}

// removeNames strips names from both dependencies and devDependencies,
// re-sorting what remains (manifest.RemoveDeps only covers dependencies, so
// devDependencies is filtered here to match npm's uninstall semantics of
// removing a name from wherever it's declared).
func removeNames(m *manifest.Manifest, names []string) *manifest.Manifest {
	out := manifest.RemoveDeps(m, names)
	if len(out.DevDependencies) == 0 {
		return out
	}

	remove := make(map[string]bool, len(names))
	for _, n := range names {
		remove[n] = true
	}

	filtered := make(map[string]string, len(out.DevDependencies))
	for k, v := range out.DevDependencies {
		if !remove[k] {
			filtered[k] = v
		}
	}
	if len(filtered) == 0 {
		filtered = nil
	}

	devOut := *out
	devOut.DevDependencies = filtered
	return &devOut
}

func binNames(bin map[string]string) []string {
	names := make([]string, 0, len(bin))
	for n := range bin {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
