// Package chk provides the error-checking idiom used throughout this
// codebase: chk.E logs and reports whether an error occurred, so call sites
// read as `if err = f(); chk.E(err) { ... }` instead of the usual two-line
// `if err != nil { log... }`.
package chk

import "nostrelay.dev/internal/xlog"

// E logs err at error level and reports whether it is non-nil.
func E(err error) bool {
	if err == nil {
		return false
	}
	xlog.E.Ln(err)
	return true
}

// T is like E but logs at trace level, for errors that are expected often
// enough in normal operation that error level would be noisy (e.g. a
// duplicate event, a cancelled query).
func T(err error) bool {
	if err == nil {
		return false
	}
	xlog.T.Ln(err)
	return true
}
