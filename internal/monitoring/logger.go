// Package monitoring holds the diagnostic logging hook and the Prometheus
// collectors shared by the extraction pipeline.
package monitoring

import (
	"log"
	"sync"
)

var (
	logMu sync.RWMutex
	logf  = log.Printf
)

// Logf writes a diagnostic line through the current logger. It defaults to
// log.Printf and may be redirected or muted with SetLogger.
func Logf(format string, v ...interface{}) {
	logMu.RLock()
	f := logf
	logMu.RUnlock()
	f(format, v...)
}

// SetLogger replaces the package logger. Passing nil installs a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	logMu.Lock()
	defer logMu.Unlock()
	if f == nil {
		logf = func(string, ...interface{}) {}
		return
	}
	logf = f
}

// Component returns a logger that prefixes every line with "[name] ".
// The returned func resolves the package logger on each call, so a later
// SetLogger still takes effect.
func Component(name string) func(format string, v ...interface{}) {
	prefix := "[" + name + "] "
	return func(format string, v ...interface{}) {
		Logf(prefix+format, v...)
	}
}
