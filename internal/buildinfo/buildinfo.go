// Package buildinfo reports the dockwatch build version.
package buildinfo

import "runtime/debug"

// Version is set at link time with -ldflags "-X dockwatch/internal/buildinfo.Version=...".
var Version = ""

// Current returns Version, falling back to the module version recorded in
// the binary and then "dev".
func Current() string {
	if Version != "" {
		return Version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	return "dev"
}
