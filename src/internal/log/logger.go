package log

import (
	"fmt"
	"io"
	"os"
	"sync"
)

type level int

const (
	levelDebug level = iota
	levelInfo
	levelWarn
	levelError
)

var (
	mu          sync.Mutex
	verbose     = false
	forceStdErr = false
	plain       = false

	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr

	colorPrefixes = map[level]string{
		levelDebug: "\033[37m[DBG]\033[0m", // White
		levelInfo:  "\033[36m[INF]\033[0m", // Cyan
		levelWarn:  "\033[33m[WRN]\033[0m", // Yellow
		levelError: "\033[31m[ERR]\033[0m", // Red
	}
	plainPrefixes = map[level]string{
		levelDebug: "[DBG]",
		levelInfo:  "[INF]",
		levelWarn:  "[WRN]",
		levelError: "[ERR]",
	}
)

// SetVerbose sets the logging verbosity. If true, debug messages are displayed.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	verbose = v
}

// SetForceStdErr sends every level to stderr. Commands that print
// machine-readable output on stdout (e.g. "firewall render") enable it.
func SetForceStdErr(v bool) {
	mu.Lock()
	defer mu.Unlock()
	forceStdErr = v
}

// SetPlain drops ANSI colors from level prefixes.
func SetPlain(v bool) {
	mu.Lock()
	defer mu.Unlock()
	plain = v
}

// ConfigureForJournal enables plain prefixes when stderr is connected to the
// systemd journal, which sets JOURNAL_STREAM for the units it starts.
func ConfigureForJournal() {
	if os.Getenv("JOURNAL_STREAM") != "" {
		SetPlain(true)
	}
}

// SetOutput replaces the writers used for stdout and stderr levels and
// returns a function restoring the previous ones.
func SetOutput(out, errOut io.Writer) (restore func()) {
	mu.Lock()
	defer mu.Unlock()
	prevOut, prevErr := stdout, stderr
	stdout, stderr = out, errOut
	return func() {
		mu.Lock()
		defer mu.Unlock()
		stdout, stderr = prevOut, prevErr
	}
}

// Debugf logs a debug message if verbose is true.
func Debugf(format string, args ...interface{}) {
	logMessage(levelDebug, format, args...)
}

// Infof logs an info message.
func Infof(format string, args ...interface{}) {
	logMessage(levelInfo, format, args...)
}

// Warnf logs a warning message.
func Warnf(format string, args ...interface{}) {
	logMessage(levelWarn, format, args...)
}

// Errorf logs an error message.
func Errorf(format string, args ...interface{}) {
	logMessage(levelError, format, args...)
}

// Fatalf logs an error message and exits the program with code 1.
func Fatalf(format string, args ...interface{}) {
	logMessage(levelError, format, args...)
	os.Exit(1)
}

func logMessage(lvl level, format string, args ...interface{}) {
	mu.Lock()
	defer mu.Unlock()

	if lvl == levelDebug && !verbose {
		return
	}

	prefix := colorPrefixes[lvl]
	if plain {
		prefix = plainPrefixes[lvl]
	}
	line := prefix + " " + fmt.Sprintf(format, args...) + "\n"

	w := stdout
	if forceStdErr || lvl == levelError {
		w = stderr
	}
	_, _ = io.WriteString(w, line)
}
