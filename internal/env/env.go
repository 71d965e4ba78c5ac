// Package env resolves the process-wide configuration described in §4.12
// and §6 of the specification: stdio streams, home directory, cache
// directory, global prefix and the base directory used to resolve relative
// git+file:// remote templates.
//
// Modeled on the teacher's Ctx (context.go): a single struct resolved once
// and threaded down through the installer/uninstaller instead of consulted
// as global state.
package env

import (
	"io"
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"

	"github.com/braydonf/gpk/log"
)

// Environment is the process-wide configuration threaded through every
// install/uninstall call.
type Environment struct {
	// Home is the root of gpk's own state, <user-home>/.gpk by default.
	Home string

	// GlobalPrefix is the root under which global installs live.
	GlobalPrefix string

	// BaseDir resolves relative git+file:// remote templates. Empty means
	// "none configured"; resolving against it is an UnknownBase error.
	BaseDir string

	Stdout io.Writer
	Stderr io.Writer
	Logger *log.Logger

	Verbose bool
}

// CacheDir is <home>/cache, the root of the Verified Cache (§4.4).
func (e *Environment) CacheDir() string {
	return filepath.Join(e.Home, "cache")
}

// GlobalLibraryRoot is <prefix>/lib/node_modules on non-Windows and
// <prefix>/node_modules on Windows, per §6.
func (e *Environment) GlobalLibraryRoot() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(e.GlobalPrefix, "node_modules")
	}
	return filepath.Join(e.GlobalPrefix, "lib", "node_modules")
}

// GlobalBinRoot is <prefix>/bin on non-Windows and <prefix> on Windows.
func (e *Environment) GlobalBinRoot() string {
	if runtime.GOOS == "windows" {
		return e.GlobalPrefix
	}
	return filepath.Join(e.GlobalPrefix, "bin")
}

// New resolves an Environment from the process environment and an optional
// explicit prefix override (e.g. from a CLI front-end's --prefix flag; the
// core never parses flags itself, see §1).
func New(explicitPrefix string, stdout, stderr io.Writer) (*Environment, error) {
	home, err := resolveHome()
	if err != nil {
		return nil, errors.Wrap(err, "resolving home directory")
	}

	prefix, err := resolvePrefix(explicitPrefix)
	if err != nil {
		return nil, errors.Wrap(err, "resolving global prefix")
	}

	return &Environment{
		Home:         home,
		GlobalPrefix: prefix,
		BaseDir:      os.Getenv("GPK_BASE_DIR"),
		Stdout:       stdout,
		Stderr:       stderr,
		Logger:       log.New(stderr),
	}, nil
}

func resolveHome() (string, error) {
	if h := os.Getenv("GPK_HOME"); h != "" {
		return h, nil
	}
	uh, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(uh, ".gpk"), nil
}

// resolvePrefix implements the §6 precedence: explicit configuration, then
// PREFIX env, then the runtime installation prefix (parent of the runtime
// binary on non-Windows, binary directory on Windows), optionally prefixed
// by DESTDIR.
func resolvePrefix(explicit string) (string, error) {
	prefix := explicit
	if prefix == "" {
		prefix = os.Getenv("PREFIX")
	}
	if prefix == "" {
		exe, err := os.Executable()
		if err != nil {
			return "", errors.Wrap(err, "locating runtime binary")
		}
		exe, err = filepath.EvalSymlinks(exe)
		if err != nil {
			return "", errors.Wrap(err, "resolving runtime binary")
		}
		bindir := filepath.Dir(exe)
		if runtime.GOOS == "windows" {
			prefix = bindir
		} else {
			prefix = filepath.Dir(bindir)
		}
	}
	if destdir := os.Getenv("DESTDIR"); destdir != "" {
		prefix = filepath.Join(destdir, prefix)
	}
	return prefix, nil
}
