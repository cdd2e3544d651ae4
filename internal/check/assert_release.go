//go:build !debug

// Package check holds invariant assertions that are compiled in only with
// the debug build tag.
package check

// Assert is a no-op in release builds.
func Assert(_ bool, _ string) {}

// Assertf is a no-op in release builds.
func Assertf(_ bool, _ string, _ ...any) {}

// Enabled reports whether assertions are compiled in.
func Enabled() bool { return false }
