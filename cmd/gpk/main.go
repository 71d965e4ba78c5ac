// Command gpk is the CLI front-end over the core engine. Per §1 the CLI
// itself is out of scope ("an external collaborator is expected to build a
// CLI"); this is a thin wiring layer, not a full UX, in the spirit of the
// teacher's own flag-based command dispatch (main.go).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/braydonf/gpk/internal/env"
	"github.com/braydonf/gpk/internal/importers"
	"github.com/braydonf/gpk/internal/installer"
	"github.com/braydonf/gpk/internal/manifest"
	"github.com/braydonf/gpk/internal/uninstaller"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 1
	}

	verb, rest := args[0], args[1:]

	if verb == "help" || verb == "-h" || verb == "--help" {
		usage()
		return 0
	}

	fs := flag.NewFlagSet(verb, flag.ContinueOnError)
	global := fs.Bool("g", false, "operate on the global install tree")
	fs.BoolVar(global, "global", false, "operate on the global install tree")
	production := fs.Bool("production", false, "skip devDependencies")
	prefix := fs.String("prefix", "", "override the global install prefix")
	fs.Bool("v", false, "log verbose progress")
	fs.Bool("verbose", false, "log verbose progress")
	if err := fs.Parse(rest); err != nil {
		return 1
	}

	e, err := env.New(*prefix, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "gpk:", err)
		return 1
	}
	e.Verbose = hasVerboseFlag(rest)

	cwd, err := os.Getwd()
	if err != nil {
		fmt.Fprintln(os.Stderr, "gpk:", err)
		return 1
	}

	switch verb {
	case "init":
		err = cmdInit(cwd, fs.Args())
	case "install", "i":
		err = cmdInstall(e, cwd, fs.Args(), *global, *production)
	case "uninstall", "rm", "remove":
		err = cmdUninstall(e, cwd, fs.Args(), *global, *production)
	case "rebuild":
		err = cmdRebuild(e, cwd, *production)
	case "run":
		err = cmdRun(cwd, fs.Args())
	case "test":
		err = cmdRun(cwd, []string{"test"})
	case "import":
		err = cmdImport(cwd, fs.Args())
	default:
		usage()
		return 1
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "gpk:", err)
		return 1
	}
	return 0
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: gpk <command> [args]")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Commands:")
	fmt.Fprintln(os.Stderr, "  init                 write a starter manifest in the current directory")
	fmt.Fprintln(os.Stderr, "  install [sources...]  install declared or given dependencies")
	fmt.Fprintln(os.Stderr, "  uninstall <names...>  remove dependencies and prune unreachable installs")
	fmt.Fprintln(os.Stderr, "  rebuild               re-run install; installed packages are skipped, no native build runs")
	fmt.Fprintln(os.Stderr, "  run <script>          run a script declared in the manifest")
	fmt.Fprintln(os.Stderr, "  test                  alias for `run test`")
	fmt.Fprintln(os.Stderr, "  import                qualify a foreign package.json's plain ranges")
	fmt.Fprintln(os.Stderr)
	fmt.Fprintln(os.Stderr, "Flags: -g, --global, --production, -v, --prefix")
}

func hasVerboseFlag(args []string) bool {
	for _, a := range args {
		if a == "-v" || a == "--verbose" {
			return true
		}
	}
	return false
}

func cmdInit(cwd string, args []string) error {
	name := filepath.Base(cwd)
	if len(args) > 0 {
		name = args[0]
	}
	if _, err := os.Stat(filepath.Join(cwd, manifest.FileName)); err == nil {
		return fmt.Errorf("%s already exists", manifest.FileName)
	}
	return manifest.Write(cwd, &manifest.Manifest{Name: name, Version: "1.0.0"})
}

func cmdInstall(e *env.Environment, cwd string, sources []string, global, production bool) error {
	in, err := installer.New(e)
	if err != nil {
		return err
	}
	return in.Install(context.Background(), cwd, sources, installer.Options{
		Global:     global,
		Production: production,
	})
}

func cmdUninstall(e *env.Environment, cwd string, names []string, global, production bool) error {
	if len(names) == 0 {
		return fmt.Errorf("uninstall requires at least one package name")
	}
	u := uninstaller.New(e)
	return u.Uninstall(cwd, names, uninstaller.Options{Global: global, Production: production})
}

func cmdRebuild(e *env.Environment, cwd string, production bool) error {
	in, err := installer.New(e)
	if err != nil {
		return err
	}
	return in.Install(context.Background(), cwd, nil, installer.Options{Production: production})
}

func cmdRun(cwd string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("run requires a script name")
	}
	rootDir, m, err := manifest.Locate(cwd, true)
	if err != nil {
		return err
	}
	script, ok := m.Scripts[args[0]]
	if !ok {
		return fmt.Errorf("no script named %q", args[0])
	}

	cmd := exec.Command("sh", "-c", strings.Join(append([]string{script}, args[1:]...), " "))
	cmd.Dir = rootDir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin
	cmd.Env = append(os.Environ(), "PATH="+filepath.Join(rootDir, "node_modules", ".bin")+string(os.PathListSeparator)+os.Getenv("PATH"))
	return cmd.Run()
}

func cmdImport(cwd string, args []string) error {
	alias := ""
	if len(args) > 0 {
		alias = args[0]
	}
	return importers.New(alias).Apply(cwd)
}
