//go:build debug

// Package check holds invariant assertions that are compiled in only with
// the debug build tag.
package check

import "fmt"

// Assert panics if cond is false. Only active in debug builds.
func Assert(cond bool, msg string) {
	if !cond {
		panic("dockwatch: invariant violated: " + msg)
	}
}

// Assertf panics if cond is false with a formatted message. Only active in debug builds.
func Assertf(cond bool, format string, args ...any) {
	if !cond {
		panic("dockwatch: invariant violated: " + fmt.Sprintf(format, args...))
	}
}

// Enabled reports whether assertions are compiled in.
func Enabled() bool { return true }
