// Package platform maps the running host onto the canonical platform keys
// used by bundle manifests ("<os>-<arch>", e.g. "linux-x86_64").
//
// OS names normalize to linux/darwin/windows and architectures to
// x86_64/aarch64 (with amd64/arm64 accepted as aliases). Unrecognized values
// pass through lowercased so tooling can still report them.
package platform

import "context"

// Info contains host platform information.
type Info struct {
	OS      string // "linux", "darwin", "windows"
	Arch    string // "x86_64", "aarch64" (normalized)
	ArchRaw string // original GOARCH (e.g. "amd64", "arm64")

	// Linux distribution details, best effort. Empty on other systems or
	// when detection fails.
	Distro        string // distro ID (e.g. "ubuntu")
	DistroVersion string // distro version (e.g. "22.04")
}

// Key returns the canonical platform key for this host.
func (i *Info) Key() string {
	return i.OS + "-" + i.Arch
}

// IsWindows returns true if the host runs Windows.
func (i *Info) IsWindows() bool {
	return i.OS == "windows"
}

// Detector is the interface for host platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}
