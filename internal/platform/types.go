// Package platform detects the host the drivers are being installed on.
//
// It reports OS, architecture and Linux distribution family. The family picks
// the dependency-resolving package manager for rpm installs, and the whole
// Info is exposed read-only to Lua manifests so one manifest can serve both
// Windows and Linux machines. Distribution details come from gopsutil; when
// detection fails the OS and architecture are still reported.
package platform

import (
	"context"
	"time"
)

// Operating systems drivers can be installed on.
const (
	OSWindows = "windows"
	OSLinux   = "linux"
)

// Linux distribution family constants.
const (
	FamilyDebian  = "debian"  // Debian, Ubuntu, Linux Mint
	FamilyRHEL    = "rhel"    // RHEL, CentOS, Rocky Linux, AlmaLinux
	FamilyFedora  = "fedora"  // Fedora
	FamilySUSE    = "suse"    // openSUSE, SLES
	FamilyArch    = "arch"    // Arch Linux, Manjaro
	FamilyUnknown = "unknown" // Unrecognized distributions
)

// Info contains platform detection information.
type Info struct {
	OS       string // "linux", "windows"
	Arch     string // "amd64", "arm64", "386" (normalized)
	ArchRaw  string // original GOARCH
	Platform string // distro ID (Linux only, e.g., "ubuntu")
	Family   string // canonical family (e.g., "debian", "rhel")
	Version  string // distro version (Linux only, e.g., "22.04")
}

// Distro contains Linux distribution information.
type Distro struct {
	ID      string
	Family  string
	Version string
}

// GetDistro returns distro information if this is a Linux platform.
// Returns nil for non-Linux platforms or if distro detection failed.
func (i *Info) GetDistro() *Distro {
	if i.OS != OSLinux || i.Platform == "" {
		return nil
	}
	return &Distro{
		ID:      i.Platform,
		Family:  i.Family,
		Version: i.Version,
	}
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == OSLinux
}

// IsWindows returns true if the platform is Windows.
func (i *Info) IsWindows() bool {
	return i.OS == OSWindows
}

// Supported reports whether drivers can be installed on this OS.
func (i *Info) Supported() bool {
	return i.IsLinux() || i.IsWindows()
}

// IsDebianFamily returns true if the Linux distribution is Debian-based.
func (i *Info) IsDebianFamily() bool {
	return i.IsLinux() && i.Family == FamilyDebian
}

// IsRHELFamily returns true if the Linux distribution is RHEL-based.
func (i *Info) IsRHELFamily() bool {
	return i.IsLinux() && i.Family == FamilyRHEL
}

// IsFedoraFamily returns true if the Linux distribution is Fedora-based.
func (i *Info) IsFedoraFamily() bool {
	return i.IsLinux() && i.Family == FamilyFedora
}

// IsSUSEFamily returns true if the Linux distribution is SUSE-based.
func (i *Info) IsSUSEFamily() bool {
	return i.IsLinux() && i.Family == FamilySUSE
}

// SystemInfo is the host summary logged at the start of a run.
type SystemInfo struct {
	Hostname      string
	OS            string
	Platform      string
	Version       string
	KernelVersion string
	KernelArch    string
	Uptime        time.Duration
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}
