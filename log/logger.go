package log

import (
	"fmt"
	"io"
)

// Logger is a minimal wrapper around an io.Writer.
type Logger struct {
	io.Writer
}

// New returns a new logger which writes to w.
func New(w io.Writer) *Logger {
	return &Logger{Writer: w}
}

// Logln logs a line.
func (l *Logger) Logln(args ...interface{}) {
	fmt.Fprintln(l, args...)
}

// Logf logs a formatted string.
func (l *Logger) Logf(f string, args ...interface{}) {
	fmt.Fprintf(l, f, args...)
}

// LogGpkfln logs a formatted line, prefixed with `gpk: `.
func (l *Logger) LogGpkfln(format string, args ...interface{}) {
	fmt.Fprintf(l, "gpk: "+format+"\n", args...)
}

// Verbosef logs a formatted line only when verbose is true, prefixed with
// `gpk: verbose: `. Installer/uninstaller frames pass their own verbosity
// flag through rather than consulting global state.
func (l *Logger) Verbosef(verbose bool, format string, args ...interface{}) {
	if !verbose {
		return
	}
	fmt.Fprintf(l, "gpk: verbose: "+format+"\n", args...)
}
