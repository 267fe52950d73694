//go:build !windows

package preflight

import "golang.org/x/sys/unix"

// IsElevated reports whether the process runs as root.
func IsElevated() (bool, error) {
	return unix.Geteuid() == 0, nil
}
