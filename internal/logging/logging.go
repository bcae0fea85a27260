// Package logging provides the structured logger shared by every command
// and internal package, replacing the teacher's bare os.Stderr print
// helpers (internal/util/log.go) with github.com/sirupsen/logrus.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

var std = logrus.New()

func init() {
	std.SetOutput(os.Stderr)
	std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	std.SetLevel(logrus.InfoLevel)
}

// SetVerbose toggles debug-level logging, the equivalent of the teacher's
// -v flag (internal/util.Verbose).
func SetVerbose(verbose bool) {
	if verbose {
		std.SetLevel(logrus.DebugLevel)
		return
	}
	std.SetLevel(logrus.InfoLevel)
}

// For returns a logger scoped to component, tagging every entry it emits.
func For(component string) *logrus.Entry {
	return std.WithField("component", component)
}

// Std returns the shared root logger, for callers that don't need a
// component tag or that inspect the logger itself (level, hooks).
func Std() *logrus.Logger {
	return std
}
