// Package linker implements the Linker (§4.11): materializing executable
// symlinks, and Windows `.cmd` shims, for a package's declared `bin` map.
//
// Grounded on the install-then-activate shape of
// other_examples/b15c62f3_helm-helm__internal-plugin-installer-vcs_installer.go.go
// (fetch a ref, then make it runnable) generalized with the standard
// os.Symlink idiom; the teacher vendors no executables of its own, so there
// is no golang-dep file this package adapts directly.
package linker

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"

	"github.com/braydonf/gpk/internal/gpkerr"
)

// BinDir returns the executable directory for a local install rooted at
// root: <root>/node_modules/.bin.
func BinDir(root string) string {
	return filepath.Join(root, "node_modules", ".bin")
}

// GlobalBinDir returns <prefix>/bin (non-Windows) or <prefix> (Windows), per
// §6's global bin root rule.
func GlobalBinDir(prefix string) string {
	if runtime.GOOS == "windows" {
		return prefix
	}
	return filepath.Join(prefix, "bin")
}

// Link creates, for every (name, relPath) pair in bin, a symlink at
// <binDir>/<name> targeting the relative path from binDir to
// <installDir>/<relPath>. On Windows it additionally writes a <name>.cmd
// shim invoking runtimeExe against the target file.
//
// An existing symlink already pointing at the correct target is left
// intact. A symlink pointing elsewhere, or any non-symlink file occupying
// the same path, is an error (§4.11).
func Link(binDir, installDir string, bin map[string]string, runtimeExe string) error {
	if len(bin) == 0 {
		return nil
	}
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		return errors.Wrapf(err, "creating %s", binDir)
	}

	for name, relPath := range bin {
		target := filepath.Join(installDir, relPath)
		linkPath := filepath.Join(binDir, name)

		rel, err := filepath.Rel(binDir, target)
		if err != nil {
			return errors.Wrapf(err, "computing relative link target for %s", name)
		}

		if err := linkOne(linkPath, rel); err != nil {
			return err
		}

		if runtime.GOOS == "windows" {
			if err := writeShim(binDir, name, target, runtimeExe); err != nil {
				return err
			}
		}
	}
	return nil
}

// linkOne creates linkPath -> target, tolerating an existing symlink that
// already points at target.
func linkOne(linkPath, target string) error {
	fi, err := os.Lstat(linkPath)
	if err == nil {
		if fi.Mode()&os.ModeSymlink == 0 {
			return errors.Errorf("%s exists and is not a symlink", linkPath)
		}
		existing, err := os.Readlink(linkPath)
		if err != nil {
			return errors.Wrapf(err, "reading existing link %s", linkPath)
		}
		if existing == target {
			return nil
		}
		return errors.Errorf("%s is a symlink to %s, not %s", linkPath, existing, target)
	}
	if !os.IsNotExist(err) {
		return errors.Wrapf(err, "inspecting %s", linkPath)
	}

	if err := os.Symlink(target, linkPath); err != nil {
		return errors.Wrapf(err, "linking %s", linkPath)
	}
	return nil
}

// writeShim writes a Windows .cmd wrapper invoking runtimeExe against
// target.
func writeShim(binDir, name, target, runtimeExe string) error {
	shimPath := filepath.Join(binDir, name+".cmd")
	contents := "@\"" + runtimeExe + "\" \"" + target + "\" %*\r\n"
	if err := os.WriteFile(shimPath, []byte(contents), 0o755); err != nil {
		return errors.Wrapf(err, "writing shim %s", shimPath)
	}
	return nil
}

// Unlink removes the symlinks (and any Windows shim) for the named
// executables from binDir. Missing entries are not an error.
func Unlink(binDir string, names []string) error {
	for _, name := range names {
		if err := removeIfExists(filepath.Join(binDir, name)); err != nil {
			return err
		}
		if err := removeIfExists(filepath.Join(binDir, name+".cmd")); err != nil {
			return err
		}
	}
	return nil
}

func removeIfExists(path string) error {
	err := os.Remove(path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return &gpkerr.IoError{Op: "remove", Path: path, Err: err}
}
