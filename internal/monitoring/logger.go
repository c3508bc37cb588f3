// Package monitoring holds the package-level diagnostic logger shared by
// the estimation pipeline.
package monitoring

import "log"

// Logf is the diagnostic logger used across the module. It defaults to
// log.Printf; tests or embedding programs may redirect or mute it with
// SetLogger.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. A nil argument installs a no-op
// logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}
