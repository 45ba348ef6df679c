package platform

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v4/host"
)

// RealDetector implements Detector using the Go runtime and gopsutil.
type RealDetector struct{}

// NewDetector creates a new host platform detector.
func NewDetector() Detector {
	return &RealDetector{}
}

// CurrentKey returns the canonical platform key for the running process,
// derived from runtime.GOOS and runtime.GOARCH.
func CurrentKey() string {
	return Key(runtime.GOOS, runtime.GOARCH)
}

// Detect returns platform information for the running host. OS and
// architecture come from the Go runtime; on Linux, gopsutil supplies
// distribution details with a graceful fallback when detection fails.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	info := &Info{
		OS:      NormalizeOS(runtime.GOOS),
		Arch:    NormalizeArch(runtime.GOARCH),
		ArchRaw: runtime.GOARCH,
	}

	if runtime.GOOS == "linux" {
		distro, _, version, err := host.PlatformInformationWithContext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
			}
			// Distro details are informational only; OS/arch already suffice
			// for platform resolution.
			return info, nil
		}
		info.Distro = distro
		info.DistroVersion = version
	}

	return info, nil
}
