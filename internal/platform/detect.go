package platform

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/host"
)

// RealDetector implements Detector using actual platform detection.
type RealDetector struct{}

// NewDetector creates a new platform detector.
func NewDetector() Detector {
	return &RealDetector{}
}

// Detect performs platform detection and returns platform information.
//
// On Linux, if gopsutil fails to detect the distribution, distro fields are
// left empty and detection still succeeds. Only context cancellation is a
// hard failure.
func (d *RealDetector) Detect(ctx context.Context) (*Info, error) {
	info := &Info{
		OS:      runtime.GOOS,
		ArchRaw: runtime.GOARCH,
		Arch:    normalizeArch(runtime.GOARCH),
	}

	if runtime.GOOS == OSLinux {
		platform, family, version, err := host.PlatformInformationWithContext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("platform detection cancelled: %w", ctx.Err())
			}
			return info, nil
		}

		platform = normalizePlatform(platform)
		if platform != "" {
			info.Platform = platform
			info.Family = mapFamily(family, platform)
			info.Version = normalizePlatform(version)
		}
	}

	return info, nil
}

// ForOS returns a minimal Info for an explicitly requested target OS.
// It is used when the operator overrides detection (e.g. dry runs planned on
// another machine).
func ForOS(goos string) *Info {
	return &Info{
		OS:      normalizePlatform(goos),
		Arch:    normalizeArch(runtime.GOARCH),
		ArchRaw: runtime.GOARCH,
	}
}

// CollectSystemInfo gathers the host summary via gopsutil.
func CollectSystemInfo(ctx context.Context) (*SystemInfo, error) {
	hi, err := host.InfoWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect host info: %w", err)
	}

	return &SystemInfo{
		Hostname:      hi.Hostname,
		OS:            hi.OS,
		Platform:      hi.Platform,
		Version:       hi.PlatformVersion,
		KernelVersion: hi.KernelVersion,
		KernelArch:    hi.KernelArch,
		Uptime:        time.Duration(hi.Uptime) * time.Second,
	}, nil
}
