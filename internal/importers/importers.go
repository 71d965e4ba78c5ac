// Package importers supplements the core spec with ecosystem interop
// (SPEC_FULL.md "EXPANSION — SUPPLEMENTED FEATURES"): converting a legacy,
// non-gpk `package.json` whose dependency ranges are plain semver
// constraints (no Source String grammar, no git remote) into one gpk can
// resolve and install, by qualifying each range with a configured default
// remote alias.
//
// Grounded on the teacher's internal/importers/{glide,godep,govend,...}
// family's shape: a Name(), a HasDepMetadata(dir) probe, and an Import that
// translates a foreign manifest into the tool's own. This package collapses
// that family of per-tool adapters into the single adapter this domain
// needs, since there is exactly one foreign format worth importing here (a
// pre-gpk `package.json`), per SPEC_FULL.md.
package importers

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/braydonf/gpk/internal/manifest"
)

// Importer converts a foreign package.json's dependency ranges into gpk
// Source Strings, qualified against DefaultAlias.
type Importer struct {
	// DefaultAlias is the remotes key (per §4.2/§3 Remote Template) every
	// converted dependency is resolved against.
	DefaultAlias string
}

// New builds an Importer that qualifies foreign ranges against
// defaultAlias.
func New(defaultAlias string) *Importer {
	return &Importer{DefaultAlias: defaultAlias}
}

// Name identifies this importer, matching the base.Importer shape the
// teacher's per-tool adapters expose.
func (i *Importer) Name() string {
	return "package.json"
}

// HasForeignMetadata reports whether dir holds a manifest with at least one
// foreign (plain semver, no Source String grammar) dependency range.
func (i *Importer) HasForeignMetadata(dir string) (bool, error) {
	m, err := manifest.Read(dir)
	if err != nil {
		return false, err
	}
	if m == nil {
		return false, nil
	}
	return hasForeignRange(m.Dependencies) || hasForeignRange(m.DevDependencies), nil
}

// Import reads the manifest at dir and returns a copy with every foreign
// dependency range rewritten to a Source String resolvable against
// i.DefaultAlias. Ranges that already look like a Source String (they
// contain a ':', the one character no bare semver range ever does) are left
// untouched.
func (i *Importer) Import(dir string) (*manifest.Manifest, error) {
	m, err := manifest.Read(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}

	deps, err := i.convert(m.Dependencies)
	if err != nil {
		return nil, err
	}
	devDeps, err := i.convert(m.DevDependencies)
	if err != nil {
		return nil, err
	}

	out := *m
	out.Dependencies = deps
	out.DevDependencies = devDeps
	return &out, nil
}

// Apply runs Import and writes the result back to dir's manifest, under the
// same manifest lock the Installer and Uninstaller use to serialize
// read-modify-write cycles (§5).
func (i *Importer) Apply(dir string) error {
	return manifest.WithLock(dir, func() error {
		converted, err := i.Import(dir)
		if err != nil {
			return err
		}
		if converted == nil {
			return nil
		}
		return manifest.Write(dir, converted)
	})
}

func (i *Importer) convert(deps map[string]string) (map[string]string, error) {
	if len(deps) == 0 {
		return nil, nil
	}

	out := make(map[string]string, len(deps))
	for name, rng := range deps {
		if !isForeignRange(rng) {
			out[name] = rng
			continue
		}
		if i.DefaultAlias == "" {
			return nil, errors.Errorf("%s: no default remote alias configured to import a plain range", name)
		}
		out[name] = i.DefaultAlias + ":" + name + "#semver:" + rng
	}
	return out, nil
}

func hasForeignRange(deps map[string]string) bool {
	for _, rng := range deps {
		if isForeignRange(rng) {
			return true
		}
	}
	return false
}

// isForeignRange reports whether rng is a bare semver range rather than a
// Source String: every Source String grammar (§4.2) contains a ':' --
// either the `<alias>:` prefix or a `git+scheme://` direct URL -- which a
// plain range expression never does.
func isForeignRange(rng string) bool {
	return rng != "" && !strings.Contains(rng, ":")
}
