// Package gpkerr defines the typed error kinds raised by the core engine.
//
// Each kind is a distinct struct type so callers can recover it with
// errors.As instead of matching on error strings; the underlying cause, if
// any, is preserved through github.com/pkg/errors.
package gpkerr

import "fmt"

// ManifestMissing is raised when locate reaches the filesystem root without
// finding a manifest.
type ManifestMissing struct {
	Start string
}

func (e *ManifestMissing) Error() string {
	return fmt.Sprintf("no manifest found above %q", e.Start)
}

// UnknownRemote is raised when a source references an alias absent from the
// enclosing package's remotes table.
type UnknownRemote struct {
	Alias string
}

func (e *UnknownRemote) Error() string {
	return fmt.Sprintf("unknown remote alias %q", e.Alias)
}

// UnknownBase is raised when a relative git+file:// template is used with no
// configured base directory.
type UnknownBase struct {
	Template string
}

func (e *UnknownBase) Error() string {
	return fmt.Sprintf("relative file template %q requires a base directory", e.Template)
}

// UnknownRef is raised when no tag in the remote view satisfies a range, or
// a named branch does not exist.
type UnknownRef struct {
	Name string
	Ref  string
}

func (e *UnknownRef) Error() string {
	return fmt.Sprintf("%s: no ref matching %q", e.Name, e.Ref)
}

// RemoteMissing is raised when a source resolves to no git_url at install
// time (a bare version-only legacy source).
type RemoteMissing struct {
	Name string
}

func (e *RemoteMissing) Error() string {
	return fmt.Sprintf("%s: source has no git remote and cannot be fetched", e.Name)
}

// VerificationFailure is raised when a signature verification subprocess
// exits non-zero. It is never recovered from; the unverified clone it refers
// to is left in place for the caller to discard or retry against.
type VerificationFailure struct {
	Ref    string
	Stderr string
}

func (e *VerificationFailure) Error() string {
	return fmt.Sprintf("signature verification failed for %q: %s", e.Ref, e.Stderr)
}

// PlacementConflict is raised when every ancestor in the placement chain is
// either already satisfied or incompatible, with no free slot.
type PlacementConflict struct {
	Name string
	Path string
}

func (e *PlacementConflict) Error() string {
	return fmt.Sprintf("cannot place %s: incompatible install already present along %s", e.Name, e.Path)
}

// DuplicateDependency is raised when the same name appears in both
// dependencies and devDependencies.
type DuplicateDependency struct {
	Name string
}

func (e *DuplicateDependency) Error() string {
	return fmt.Sprintf("%s is listed in both dependencies and devDependencies", e.Name)
}

// GitError wraps any underlying git subprocess failure other than
// verification.
type GitError struct {
	Stage  string
	Stderr string
}

func (e *GitError) Error() string {
	return fmt.Sprintf("git %s failed: %s", e.Stage, e.Stderr)
}

// IoError wraps file-system failures other than "not found", which callers
// are expected to handle locally as an absence rather than an error.
type IoError struct {
	Op   string
	Path string
	Err  error
}

func (e *IoError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *IoError) Unwrap() error {
	return e.Err
}
