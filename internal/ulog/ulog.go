// Package ulog sets up the structured logger shared by every ubervisor
// component, replacing the teacher's bare log.Printf with logrus fields so
// log lines can be filtered by component and group.
package ulog

import (
	"os"

	"github.com/sirupsen/logrus"
)

// New builds the base logger. level is a logrus level name ("debug",
// "info", "warn", "error"); an unrecognized or empty value falls back to
// info, matching the teacher's default (unconditional log.Printf, i.e.
// "log everything at one level").
func New(level string) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

// For returns a logger entry scoped to component, mirroring the
// "component=..." convention used throughout this codebase.
func For(l *logrus.Logger, component string) *logrus.Entry {
	return l.WithField("component", component)
}
