// Package preflight checks that the host can run driver installs before any
// work starts.
package preflight

import (
	"errors"
	"fmt"

	"github.com/ZebulonRouseFrantzich/drvsetup/internal/platform"
)

var (
	ErrUnsupportedOS = errors.New("unsupported operating system")
	ErrNotElevated   = errors.New("insufficient privileges")
)

// Check is one preflight result.
type Check struct {
	Name    string
	Passed  bool
	Message string
}

// Options configures Run.
type Options struct {
	OS string
	// SkipPrivileges skips the elevation check (dry runs, tests).
	SkipPrivileges bool
	// Elevated overrides the privilege probe; nil uses the host check.
	Elevated func() (bool, error)
}

// Run performs every check and returns them with the first failure as an
// error wrapping ErrUnsupportedOS or ErrNotElevated.
func Run(opts Options) ([]Check, error) {
	var checks []Check

	if !platform.ForOS(opts.OS).Supported() {
		checks = append(checks, Check{Name: "os", Message: fmt.Sprintf("%s is not supported (windows or linux required)", opts.OS)})
		return checks, fmt.Errorf("%w: %s", ErrUnsupportedOS, opts.OS)
	}
	checks = append(checks, Check{Name: "os", Passed: true, Message: opts.OS})

	if opts.SkipPrivileges {
		checks = append(checks, Check{Name: "privileges", Passed: true, Message: "skipped"})
		return checks, nil
	}

	probe := opts.Elevated
	if probe == nil {
		probe = IsElevated
	}
	elevated, err := probe()
	if err != nil {
		checks = append(checks, Check{Name: "privileges", Message: err.Error()})
		return checks, fmt.Errorf("%w: %w", ErrNotElevated, err)
	}
	if !elevated {
		msg := privilegeHint(opts.OS)
		checks = append(checks, Check{Name: "privileges", Message: msg})
		return checks, fmt.Errorf("%w: %s", ErrNotElevated, msg)
	}
	checks = append(checks, Check{Name: "privileges", Passed: true, Message: "elevated"})
	return checks, nil
}

func privilegeHint(goos string) string {
	if goos == platform.OSWindows {
		return "Administrator privileges required. Run as Administrator."
	}
	return "Root privileges required. Run with sudo."
}
