// Package installer implements the Resolver/Installer (§4.9): the
// depth-first orchestration that resolves, places, fetches-and-verifies,
// copies, and links every dependency of a root package.
//
// Grounded on the teacher's ensure.go (top-level install orchestration),
// solver.go/bridge.go (dependency expansion order) and project_manager.go
// (per-project fetch-then-copy sequencing), generalized from gps's SAT-based
// whole-graph solve to this spec's simpler depth-first greedy-hoisting walk.
package installer

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/braydonf/gpk/internal/cache"
	"github.com/braydonf/gpk/internal/copier"
	"github.com/braydonf/gpk/internal/env"
	"github.com/braydonf/gpk/internal/filter"
	"github.com/braydonf/gpk/internal/gitadapter"
	"github.com/braydonf/gpk/internal/gpkerr"
	"github.com/braydonf/gpk/internal/linker"
	"github.com/braydonf/gpk/internal/manifest"
	"github.com/braydonf/gpk/internal/placement"
	gsemver "github.com/braydonf/gpk/internal/semver"
	"github.com/braydonf/gpk/internal/source"
)

// Installer orchestrates install() calls against one Environment and its
// Verified Cache.
type Installer struct {
	Env   *env.Environment
	Cache *cache.Cache

	// RuntimeExe is the executable used for linker shims and native
	// rebuild invocation (§6 "<runtime> <addon-build-script> rebuild").
	RuntimeExe string
	// RebuildScript is the addon-build-script path. Rebuild is skipped
	// entirely when empty.
	RebuildScript string
}

// New builds an Installer with a Verified Cache rooted at e.CacheDir().
func New(e *env.Environment) (*Installer, error) {
	c, err := cache.New(e.CacheDir())
	if err != nil {
		return nil, err
	}
	return &Installer{Env: e, Cache: c, RuntimeExe: "node"}, nil
}

// Options controls one install() call.
type Options struct {
	Global     bool
	Production bool
}

// frame is one stack frame of the depth-first install walk.
type frame struct {
	dir       string
	manifest  *manifest.Manifest
	ancestors []string // current frame first, root last
	rootDir   string   // the top-level project root, for bin-dir placement
}

// resolution is the fully-settled ref to fetch-and-verify: exactly one of
// (verifyTag) or (verifyCommit) is set, chosen by the OID priority of §4.4.
type resolution struct {
	gitURL                         string
	cloneRef, verifyTag, verifyCommit, oid string
	branch                          string
}

// Install implements the public install(sources?, {global, production})
// operation of §4.9.
func (in *Installer) Install(ctx context.Context, startDir string, sources []string, opts Options) error {
	rootDir, rootManifest, err := manifest.Locate(startDir, true)
	if err != nil {
		return err
	}

	if opts.Global {
		for _, src := range sources {
			if err := in.installStandaloneGlobal(ctx, src); err != nil {
				return err
			}
		}
		return nil
	}

	if len(sources) > 0 {
		if err := in.mergeDiscoveredSources(ctx, rootDir, rootManifest, sources); err != nil {
			return err
		}
		rootDir, rootManifest, err = manifest.Locate(startDir, true)
		if err != nil {
			return err
		}
	}

	deps, err := mergedDeps(rootManifest, opts.Production)
	if err != nil {
		return err
	}

	f := frame{dir: rootDir, manifest: rootManifest, ancestors: []string{rootDir}, rootDir: rootDir}
	for _, name := range manifest.SortedNames(deps) {
		if err := in.installModule(ctx, name, deps[name], f); err != nil {
			return err
		}
	}

	return in.linkFrame(rootDir, rootManifest, false, rootDir)
}

// mergedDeps combines dependencies with devDependencies unless production is
// set, per §4.9 step 2. Overlapping names are a DuplicateDependency error.
func mergedDeps(m *manifest.Manifest, production bool) (map[string]string, error) {
	out := make(map[string]string, len(m.Dependencies))
	for k, v := range m.Dependencies {
		out[k] = v
	}
	if !production {
		for k, v := range m.DevDependencies {
			if _, ok := out[k]; ok {
				return nil, &gpkerr.DuplicateDependency{Name: k}
			}
			out[k] = v
		}
	}
	return out, nil
}

// mergeDiscoveredSources resolves each CLI source via discover_repo (§4.9.1)
// and merges the result into the root manifest as a new dependency, under
// the manifest lock (§5).
func (in *Installer) mergeDiscoveredSources(ctx context.Context, rootDir string, rootManifest *manifest.Manifest, sources []string) error {
	return manifest.WithLock(rootDir, func() error {
		m, err := manifest.Read(rootDir)
		if err != nil {
			return err
		}
		if m == nil {
			m = rootManifest
		}

		added := make(map[string]string, len(sources))
		for _, src := range sources {
			resolved, err := source.Resolve(m.Remotes, "", src, rootDir, in.Env.BaseDir, false)
			if err != nil {
				return err
			}
			if resolved.GitURL == "" {
				return &gpkerr.RemoteMissing{Name: src}
			}

			name, err := in.discoverRepo(ctx, src, resolved.GitURL, resolved.VersionRange, resolved.Branch)
			if err != nil {
				return err
			}
			added[name] = src
		}

		return manifest.Write(rootDir, manifest.AddDeps(m, added))
	})
}

// discoverRepo implements §4.9.1: resolve a ref (by range or branch),
// fetch-and-verify it into the cache, and read the cached manifest to
// recover the canonical package name.
func (in *Installer) discoverRepo(ctx context.Context, label, gitURL, rng, branch string) (string, error) {
	res, err := in.resolveRef(ctx, label, gitURL, rng, branch)
	if err != nil {
		return "", err
	}
	entryDir, err := in.fetchEntry(ctx, res)
	if err != nil {
		return "", err
	}
	m, err := manifest.Read(entryDir)
	if err != nil {
		return "", err
	}
	if m == nil {
		return "", &gpkerr.ManifestMissing{Start: entryDir}
	}
	return m.Name, nil
}

// installModule implements §4.9 steps 3a-3h plus the recursion of step 4 for
// one (name, source) dependency of f.
func (in *Installer) installModule(ctx context.Context, name, src string, f frame) error {
	resolved, err := source.Resolve(f.manifest.Remotes, name, src, f.dir, in.Env.BaseDir, false)
	if err != nil {
		return err
	}
	if resolved.GitURL == "" {
		return &gpkerr.RemoteMissing{Name: name}
	}

	candidate := placement.Candidate{Name: name, Range: resolved.VersionRange}
	if resolved.Branch != "" {
		branchCommit, err := in.branchTipCommit(ctx, name, resolved.GitURL, resolved.Branch)
		if err != nil {
			return err
		}
		candidate.Commit = branchCommit
	}

	site, err := placement.Plan(f.ancestors, candidate)
	if err != nil {
		return err
	}
	if site.NoAction {
		in.Env.Logger.Verbosef(in.Env.Verbose, "%s already satisfied at %s", name, site.Dst)
		return nil
	}

	res, err := in.resolveRef(ctx, name, resolved.GitURL, resolved.VersionRange, resolved.Branch)
	if err != nil {
		return err
	}

	installed, err := in.materialize(ctx, src, site.Dst, res)
	if err != nil {
		return err
	}
	in.Env.Logger.Verbosef(in.Env.Verbose, "installed %s@%s at %s", name, installed.Version, site.Dst)

	if err := in.linkFrame(site.Dst, installed, false, f.rootDir); err != nil {
		return err
	}

	childDeps, err := mergedDeps(installed, true)
	if err != nil {
		return err
	}
	child := frame{
		dir:       site.Dst,
		manifest:  installed,
		ancestors: append([]string{site.Dst}, f.ancestors...),
		rootDir:   f.rootDir,
	}
	for _, childName := range manifest.SortedNames(childDeps) {
		if err := in.installModule(ctx, childName, childDeps[childName], child); err != nil {
			return err
		}
	}

	return in.rebuild(ctx, site.Dst)
}

// installStandaloneGlobal installs one CLI source directly into the global
// library root, per §4.9 step 1's "except in global mode" clause: there is
// no manifest merge, and the package name is recovered only after fetching,
// exactly as discover_repo does.
func (in *Installer) installStandaloneGlobal(ctx context.Context, src string) error {
	resolved, err := source.Resolve(nil, "", src, "", in.Env.BaseDir, true)
	if err != nil {
		return err
	}
	if resolved.GitURL == "" {
		return &gpkerr.RemoteMissing{Name: src}
	}

	res, err := in.resolveRef(ctx, src, resolved.GitURL, resolved.VersionRange, resolved.Branch)
	if err != nil {
		return err
	}

	entryDir, err := in.fetchEntry(ctx, res)
	if err != nil {
		return err
	}
	entryManifest, err := manifest.Read(entryDir)
	if err != nil {
		return err
	}
	if entryManifest == nil {
		return &gpkerr.ManifestMissing{Start: entryDir}
	}

	candidate := placement.Candidate{Name: entryManifest.Name, Range: resolved.VersionRange}
	if resolved.Branch != "" {
		candidate.Commit = res.oid
	}

	site, err := placement.PlanGlobal(in.Env.GlobalLibraryRoot(), candidate)
	if err != nil {
		return err
	}
	if site.NoAction {
		return nil
	}

	installed, err := in.materialize(ctx, src, site.Dst, res)
	if err != nil {
		return err
	}

	if err := in.linkFrame(site.Dst, installed, true, site.Dst); err != nil {
		return err
	}

	childDeps, err := mergedDeps(installed, true)
	if err != nil {
		return err
	}
	child := frame{dir: site.Dst, manifest: installed, ancestors: []string{site.Dst}, rootDir: site.Dst}
	for _, name := range manifest.SortedNames(childDeps) {
		if err := in.installModule(ctx, name, childDeps[name], child); err != nil {
			return err
		}
	}

	return in.rebuild(ctx, site.Dst)
}

// branchTipCommit resolves a branch name to its tip commit, per §4.9 step
// 3b, without yet fetching or verifying anything.
func (in *Installer) branchTipCommit(ctx context.Context, name, gitURL, branch string) (string, error) {
	if source.IsCommitSHA(branch) {
		return branch, nil
	}
	branches, err := gitadapter.ListBranches(ctx, gitURL)
	if err != nil {
		return "", err
	}
	commit, ok := branches.Branches[branch]
	if !ok {
		return "", &gpkerr.UnknownRef{Name: name, Ref: branch}
	}
	return commit, nil
}

// resolveRef settles the exact ref to fetch-and-verify: a branch tip commit,
// or the tag matching a version range (§4.9 step 3e; §4.9.1 for the
// no-range/no-branch "highest absolute tag" default). The OID priority rule
// of §4.4 (annotated_oid > commit_oid_of_tag > commit_oid_of_branch) is
// applied here.
func (in *Installer) resolveRef(ctx context.Context, name, gitURL, rng, branch string) (resolution, error) {
	res := resolution{gitURL: gitURL, branch: branch}

	if branch != "" {
		if source.IsCommitSHA(branch) {
			// A 40-hex fragment is always a commit pin, never passed to
			// branch listing (§9 open question).
			res.cloneRef, res.verifyCommit, res.oid = branch, branch, branch
			return res, nil
		}
		branches, err := gitadapter.ListBranches(ctx, gitURL)
		if err != nil {
			return resolution{}, err
		}
		commit, ok := branches.Branches[branch]
		if !ok {
			return resolution{}, &gpkerr.UnknownRef{Name: name, Ref: branch}
		}
		res.cloneRef, res.verifyCommit, res.oid = branch, commit, commit
		return res, nil
	}

	tags, err := gitadapter.ListTags(ctx, gitURL)
	if err != nil {
		return resolution{}, err
	}
	names := make([]string, 0, len(tags))
	for t := range tags {
		names = append(names, t)
	}

	var tagName string
	var ok bool
	if rng != "" {
		tagName, ok, err = gsemver.MatchTag(names, rng)
	} else {
		tagName, ok = gsemver.HighestNonPrerelease(names)
	}
	if err != nil {
		return resolution{}, err
	}
	if !ok {
		return resolution{}, &gpkerr.UnknownRef{Name: name, Ref: rng}
	}

	tagRef := tags[tagName]
	res.cloneRef = tagName
	if tagRef.AnnotatedOID != "" {
		res.oid, res.verifyTag = tagRef.AnnotatedOID, tagName
	} else {
		res.oid, res.verifyCommit = tagRef.CommitOID, tagRef.CommitOID
	}
	return res, nil
}

// fetchEntry ensures a Verified Cache Entry exists for res, per §4.4.
func (in *Installer) fetchEntry(ctx context.Context, res resolution) (string, error) {
	return in.Cache.FetchVerified(ctx, res.gitURL, cache.Ref{
		OID:          res.oid,
		CloneRef:     res.cloneRef,
		VerifyTag:    res.verifyTag,
		VerifyCommit: res.verifyCommit,
	})
}

// materialize implements §4.9 steps 3d/3f/3g/3h: ensure the cache entry,
// read its HEAD commit, copy it into dst through the File Filter, and inject
// resolution metadata. Returns the freshly-written manifest at dst.
func (in *Installer) materialize(ctx context.Context, src, dst string, res resolution) (*manifest.Manifest, error) {
	entryDir, err := in.fetchEntry(ctx, res)
	if err != nil {
		return nil, err
	}

	commit, err := gitadapter.HeadCommit(ctx, entryDir)
	if err != nil {
		return nil, err
	}

	entryManifest, err := manifest.Read(entryDir)
	if err != nil {
		return nil, err
	}
	if entryManifest == nil {
		entryManifest = &manifest.Manifest{}
	}

	f := filter.New(entryManifest.Files, entryManifest.BundledNames())
	if err := copier.New(f).Copy(ctx, entryDir, dst); err != nil {
		return nil, err
	}

	if err := manifest.InjectMeta(dst, manifest.Meta{
		From:   src,
		URL:    res.gitURL,
		Commit: commit,
		Branch: res.branch,
	}); err != nil {
		return nil, err
	}

	return manifest.Read(dst)
}

// linkFrame materializes an installed package's own bin map, per §4.11. The
// bin directory is rootDir's node_modules/.bin for a local install, or the
// global bin root in global mode.
func (in *Installer) linkFrame(installedDir string, m *manifest.Manifest, global bool, rootDir string) error {
	if len(m.Bin) == 0 {
		return nil
	}
	binDir := linker.BinDir(rootDir)
	if global {
		binDir = in.Env.GlobalBinRoot()
	}
	return linker.Link(binDir, installedDir, m.Bin, in.RuntimeExe)
}

// rebuild invokes the configured native build helper when dir declares a
// binding.gyp, per §6's "Native build" external interface. Core
// responsibility ends at choosing where and when to invoke it.
func (in *Installer) rebuild(ctx context.Context, dir string) error {
	if in.RebuildScript == "" {
		return nil
	}
	if !hasBindingGyp(dir) {
		return nil
	}

	cmd := exec.CommandContext(ctx, in.RuntimeExe, in.RebuildScript, "rebuild")
	cmd.Dir = dir
	cmd.Stdout = in.Env.Stdout
	cmd.Stderr = in.Env.Stderr
	if err := cmd.Run(); err != nil {
		return errors.Wrapf(err, "rebuilding %s", dir)
	}
	return nil
}

// hasBindingGyp reports whether dir declares a native addon build.
func hasBindingGyp(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, "binding.gyp"))
	return err == nil
}
