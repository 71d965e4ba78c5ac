// Package manifest implements the Manifest Store (§4.7): reading and
// writing package manifests, climbing parent directories to locate the
// nearest one, injecting resolution metadata into installed copies, and
// maintaining the dependency map in sorted order.
//
// Grounded on the teacher's manifest.go/lock.go JSON codec — readManifest
// decodes into a raw struct and MarshalJSON re-encodes with a fixed indent,
// the same shape this package follows for the npm-style package.json this
// domain's manifests actually are. Cross-process serialization of the root
// manifest's read-modify-write cycle (§5) uses go-flock, the same way the
// teacher serializes access to its on-disk solution via a lock file in
// cmd/dep/root.go.
package manifest

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"github.com/theckman/go-flock"

	"github.com/braydonf/gpk/internal/gpkerr"
)

// FileName is the manifest's fixed on-disk name, per §3/§6.
const FileName = "package.json"

// LockFileName is the sidecar lock file guarding a root manifest's
// read-modify-write cycle against concurrent OS processes (§5).
const LockFileName = ".package.json.lock"

// Manifest is the Package Manifest of §3, plus the `_from`/`_resolved`/
// `_commit`/`_branch` fields an Install Site carries once populated.
type Manifest struct {
	Name      string `json:"name"`
	Version   string `json:"version,omitempty"`
	Main      string `json:"main,omitempty"`

	Bin     map[string]string `json:"bin,omitempty"`
	Scripts map[string]string `json:"scripts,omitempty"`

	Dependencies    map[string]string `json:"dependencies,omitempty"`
	DevDependencies map[string]string `json:"devDependencies,omitempty"`

	Remotes map[string]string `json:"remotes,omitempty"`

	Files               []string `json:"files,omitempty"`
	BundleDependencies  []string `json:"bundleDependencies,omitempty"`
	BundledDependencies []string `json:"bundledDependencies,omitempty"`

	// From is the exact source string that produced this Install Site.
	From string `json:"_from,omitempty"`
	// Resolved is "git+<url>#<commit>".
	Resolved string `json:"_resolved,omitempty"`
	// Commit is the HEAD commit OID of the cache entry this site was
	// copied from.
	Commit string `json:"_commit,omitempty"`
	// Branch is set only when this site tracks a branch tip rather than a
	// tag.
	Branch string `json:"_branch,omitempty"`
}

// BundledNames returns whichever of bundleDependencies/bundledDependencies
// is populated (both spellings are accepted per §3).
func (m *Manifest) BundledNames() []string {
	if len(m.BundleDependencies) > 0 {
		return m.BundleDependencies
	}
	return m.BundledDependencies
}

// Read decodes the manifest at <dir>/package.json. A missing file is not an
// error: it returns (nil, nil) so callers can distinguish "no manifest here"
// from a malformed one, matching locate's climbing contract below.
func Read(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "reading manifest in %s", dir)
	}

	m := &Manifest{}
	if err := json.Unmarshal(data, m); err != nil {
		return nil, errors.Wrapf(err, "parsing manifest in %s", dir)
	}
	return m, nil
}

// Locate climbs from start toward the filesystem root looking for a
// manifest, stopping at the first directory that has one. If walk is false
// only start itself is checked. Returns gpkerr.ManifestMissing if the
// filesystem root is reached with nothing found.
func Locate(start string, walk bool) (string, *Manifest, error) {
	dir, err := filepath.Abs(start)
	if err != nil {
		return "", nil, errors.Wrapf(err, "resolving %s", start)
	}

	for {
		m, err := Read(dir)
		if err != nil {
			return "", nil, err
		}
		if m != nil {
			return dir, m, nil
		}
		if !walk {
			return "", nil, &gpkerr.ManifestMissing{Start: start}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil, &gpkerr.ManifestMissing{Start: start}
		}
		dir = parent
	}
}

// Write encodes m as pretty JSON (2-space indent, per §4.7/§6) to
// <dir>/package.json with a trailing newline.
func Write(dir string, m *Manifest) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(m); err != nil {
		return errors.Wrapf(err, "encoding manifest for %s", dir)
	}

	path := filepath.Join(dir, FileName)
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "writing %s", path)
	}
	return nil
}

// Meta is the resolution metadata injected into an installed manifest by
// InjectMeta.
type Meta struct {
	From   string
	URL    string
	Commit string
	Branch string
}

// InjectMeta reads the manifest at dir, sets its `_from`/`_resolved`/
// `_commit`/optional `_branch` fields, and writes it back.
func InjectMeta(dir string, meta Meta) error {
	m, err := Read(dir)
	if err != nil {
		return err
	}
	if m == nil {
		return &gpkerr.ManifestMissing{Start: dir}
	}

	m.From = meta.From
	m.Resolved = "git+" + meta.URL + "#" + meta.Commit
	m.Commit = meta.Commit
	m.Branch = meta.Branch

	return Write(dir, m)
}

// AddDeps merges deps into m.Dependencies and returns the result with the
// dependency map re-sorted lexicographically (§4.7, §5's ordering
// guarantee). m is not mutated; the caller persists the result with Write.
func AddDeps(m *Manifest, deps map[string]string) *Manifest {
	out := *m
	out.Dependencies = sortedMerge(m.Dependencies, deps, nil)
	return &out
}

// RemoveDeps returns a copy of m with names removed from Dependencies, the
// remaining map re-sorted lexicographically.
func RemoveDeps(m *Manifest, names []string) *Manifest {
	out := *m
	out.Dependencies = sortedMerge(m.Dependencies, nil, names)
	return &out
}

// sortedMerge builds a new map from base plus add minus remove, returning it
// as a map whose JSON field order is irrelevant (Go's encoding/json always
// sorts map keys), so "lexicographically sorted" is satisfied by construction
// once encoded; SortedNames below exposes that order to callers who need it
// before encoding (e.g. for deterministic installation order per §5).
func sortedMerge(base, add map[string]string, remove []string) map[string]string {
	out := make(map[string]string, len(base)+len(add))
	for k, v := range base {
		out[k] = v
	}
	for _, n := range remove {
		delete(out, n)
	}
	for k, v := range add {
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// SortedNames returns the keys of m in lexicographic order, the iteration
// order §5 mandates for dependency installation and for merging
// dependencies with devDependencies.
func SortedNames(m map[string]string) []string {
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// WithLock runs fn while holding an exclusive lock on dir's sidecar lock
// file, serializing the root manifest's read-modify-write cycle across
// concurrent OS processes (§5). Within a single process the cooperative
// scheduler already serializes access; this guards the multi-process case.
func WithLock(dir string, fn func() error) error {
	lockPath := filepath.Join(dir, LockFileName)
	fl := flock.NewFlock(lockPath)
	if err := fl.Lock(); err != nil {
		return errors.Wrapf(err, "locking %s", lockPath)
	}
	defer fl.Unlock()

	return fn()
}
