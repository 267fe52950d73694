package platform

import (
	"strings"
)

// familyMap maps distribution names to their canonical family names.
var familyMap = map[string]string{
	"debian":    FamilyDebian,
	"ubuntu":    FamilyDebian,
	"linuxmint": FamilyDebian,
	"rhel":      FamilyRHEL,
	"centos":    FamilyRHEL,
	"rocky":     FamilyRHEL,
	"almalinux": FamilyRHEL,
	"fedora":    FamilyFedora,
	"suse":      FamilySUSE,
	"opensuse":  FamilySUSE,
	"sles":      FamilySUSE,
	"arch":      FamilyArch,
	"manjaro":   FamilyArch,
}

// normalizeArch converts GOARCH values to normalized architecture names.
// Unknown values pass through lowercased; drivers are arch-specific
// artifacts chosen by the manifest author, not by this tool.
func normalizeArch(arch string) string {
	switch strings.ToLower(arch) {
	case "amd64", "x86_64":
		return "amd64"
	case "arm64", "aarch64":
		return "arm64"
	case "386", "i386", "i686":
		return "386"
	default:
		return strings.ToLower(arch)
	}
}

// normalizePlatform converts platform IDs to lowercase for consistency.
func normalizePlatform(platform string) string {
	return strings.ToLower(strings.TrimSpace(platform))
}

// mapFamily maps a gopsutil family string to a canonical family name.
// gopsutil sometimes reports an empty family; the platform ID is tried next.
func mapFamily(family, platform string) string {
	for _, candidate := range []string{family, platform} {
		normalized := normalizePlatform(candidate)
		if canonical, ok := familyMap[normalized]; ok {
			return canonical
		}
	}
	return FamilyUnknown
}
