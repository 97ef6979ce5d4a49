// Package logging provides the call-site-convenience logging helpers used
// throughout the core: Debugf/Infof/Warnf/Errorf backed by logrus. Debug
// output is gated either by building with the "debug" tag (matching the
// teacher's original scheme) or by setting PKGCTL_DEBUG at runtime, so
// library callers don't need a build flag just to see diagnostics.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

var log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	l.SetLevel(logrus.InfoLevel)
	if debugBuildTag || os.Getenv("PKGCTL_DEBUG") != "" {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// Debugf logs a formatted debug-level message. Suppressed unless debug
// output is enabled (see package doc).
func Debugf(format string, args ...interface{}) {
	log.Debugf(format, args...)
}

// Infof logs a formatted info-level message.
func Infof(format string, args ...interface{}) {
	log.Infof(format, args...)
}

// Warnf logs a formatted warning-level message.
func Warnf(format string, args ...interface{}) {
	log.Warnf(format, args...)
}

// Errorf logs a formatted error-level message.
func Errorf(format string, args ...interface{}) {
	log.Errorf(format, args...)
}
