package installer

import (
	"context"

	"github.com/ZebulonRouseFrantzich/drvsetup/internal/manifest"
)

// Mode records how an install was carried out.
type Mode string

const (
	// ModeSilent is a cascade success with silent arguments.
	ModeSilent Mode = "silent"
	// ModeInteractive is the final no-argument attempt after every silent
	// argument failed. It is a degraded result whether or not it succeeded.
	ModeInteractive Mode = "interactive"
	// ModePackage is a package-manager or msiexec invocation.
	ModePackage Mode = "package"
	// ModeManual means an instruction note was written instead of installing.
	ModeManual Mode = "manual"
	// ModeDryRun means nothing was executed.
	ModeDryRun Mode = "dry-run"
	// ModeUnsupported means no strategy exists for the (type, OS) pair.
	ModeUnsupported Mode = "unsupported"
)

// Attempt is one process invocation made while installing.
type Attempt struct {
	Command  string `json:"command"`
	Args     string `json:"args"`
	ExitCode int    `json:"exitCode"`
	Error    string `json:"error,omitempty"`
}

// Outcome is the result of installing one entry.
type Outcome struct {
	Succeeded bool
	// ExitCode of the deciding attempt; command.ExitCodeNotRun when nothing ran.
	ExitCode int
	Mode     Mode
	// Args is the argument string of the deciding attempt.
	Args string
	// Attempts lists every invocation in order.
	Attempts []Attempt
	// InnerFile is the installer picked from inside a zip archive.
	InnerFile string
	// NotePath is the manual instruction file, for manual entries.
	NotePath string
	// RebootRequested is set on every successful non-manual install.
	RebootRequested bool
	Message         string
}

// Request carries everything a strategy needs.
type Request struct {
	Entry manifest.DriverEntry
	// Path is the validated local artifact.
	Path string
	// OS is the target operating system ("windows" or "linux").
	OS string
}

// Strategy installs one kind of artifact.
type Strategy interface {
	Install(ctx context.Context, req Request) Outcome
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context, req Request) Outcome

// Install implements Strategy.
func (f StrategyFunc) Install(ctx context.Context, req Request) Outcome {
	return f(ctx, req)
}

// Success exit codes shared by Windows installers: 3010 means a reboot is
// pending, 1641 means the installer started one.
const (
	ExitRebootPending   = 3010
	ExitRebootInitiated = 1641
)

func windowsSuccess(code int) bool {
	return code == 0 || code == ExitRebootPending || code == ExitRebootInitiated
}

func zeroSuccess(code int) bool {
	return code == 0
}
