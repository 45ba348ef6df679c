package platform

import "strings"

// osMap maps host OS identifiers to canonical manifest OS names.
var osMap = map[string]string{
	"linux":   "linux",
	"darwin":  "darwin",
	"macos":   "darwin",
	"windows": "windows",
}

// archMap maps architecture identifiers to canonical manifest names.
// Both the Go runtime spellings and the uname-style spellings are accepted.
var archMap = map[string]string{
	"x86_64":  "x86_64",
	"amd64":   "x86_64",
	"aarch64": "aarch64",
	"arm64":   "aarch64",
}

// NormalizeOS maps an OS identifier to its canonical name. Unrecognized
// values pass through lowercased.
func NormalizeOS(os string) string {
	normalized := strings.ToLower(strings.TrimSpace(os))
	if canonical, ok := osMap[normalized]; ok {
		return canonical
	}
	return normalized
}

// NormalizeArch maps an architecture identifier to its canonical name.
// Unrecognized values pass through lowercased.
func NormalizeArch(arch string) string {
	normalized := strings.ToLower(strings.TrimSpace(arch))
	if canonical, ok := archMap[normalized]; ok {
		return canonical
	}
	return normalized
}

// Key builds a canonical "<os>-<arch>" platform key from raw identifiers.
func Key(os, arch string) string {
	return NormalizeOS(os) + "-" + NormalizeArch(arch)
}
