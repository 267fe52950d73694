// Package reboot tracks whether a run left the machine needing a restart
// and resolves that once at the end of the run.
package reboot

import (
	"context"
	"fmt"

	"github.com/ZebulonRouseFrantzich/drvsetup/internal/command"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/logging"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/platform"
)

// State is the coordinator's reboot state.
type State int

const (
	// NotRequired is the initial state.
	NotRequired State = iota
	// Required is entered after the first successful non-manual install and
	// is never left.
	Required
)

func (s State) String() string {
	if s == Required {
		return "required"
	}
	return "not-required"
}

// ManualInstruction is shown when a reboot is needed but not automatic.
const ManualInstruction = "A system reboot is required to complete driver installation. Please restart the computer."

// Resolution describes what happened at end-of-run.
type Resolution struct {
	Required  bool   `json:"required"`
	Triggered bool   `json:"triggered"`
	Command   string `json:"command,omitempty"`
	// Instruction is set when a reboot is needed and was not triggered.
	Instruction string `json:"instruction,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Options configures a Coordinator.
type Options struct {
	Runner command.Runner
	Logger logging.Logger
	// OS selects the reboot command ("windows" or "linux").
	OS string
	// DryRun reports the decision without running anything.
	DryRun bool
}

// Coordinator owns the reboot flag for one run.
type Coordinator struct {
	state    State
	resolved bool
	runner   command.Runner
	logger   logging.Logger
	os       string
	dryRun   bool
}

// New creates a coordinator in the NotRequired state.
func New(opts Options) *Coordinator {
	if opts.Runner == nil {
		opts.Runner = command.NewExecRunner(opts.Logger)
	}
	return &Coordinator{
		runner: opts.Runner,
		logger: logging.OrNop(opts.Logger),
		os:     opts.OS,
		dryRun: opts.DryRun,
	}
}

// MarkRequired moves the coordinator to Required. Repeated calls are no-ops.
func (c *Coordinator) MarkRequired() {
	if c.state != Required {
		c.logger.Debug("reboot now required")
	}
	c.state = Required
}

// State returns the current state.
func (c *Coordinator) State() State {
	return c.state
}

// Required reports whether a reboot is pending.
func (c *Coordinator) Required() bool {
	return c.state == Required
}

// Command returns the reboot command for goos.
func Command(goos string) (command.Command, error) {
	switch goos {
	case platform.OSWindows:
		return command.Command{Name: "shutdown", Args: []string{"/r", "/t", "0"}}, nil
	case platform.OSLinux:
		return command.Command{Name: "reboot"}, nil
	default:
		return command.Command{}, fmt.Errorf("no reboot command for %q", goos)
	}
}

// Resolve performs the end-of-run reboot decision. It acts at most once;
// later calls return the NotRequired resolution without side effects.
func (c *Coordinator) Resolve(ctx context.Context, autoReboot bool) Resolution {
	if c.resolved || c.state != Required {
		c.resolved = true
		return Resolution{}
	}
	c.resolved = true

	res := Resolution{Required: true}
	if !autoReboot || c.dryRun {
		res.Instruction = ManualInstruction
		c.logger.Warn(ManualInstruction)
		return res
	}

	cmd, err := Command(c.os)
	if err != nil {
		res.Instruction = ManualInstruction
		res.Error = err.Error()
		c.logger.Error("cannot reboot automatically", logging.KeyError, err)
		return res
	}
	res.Command = cmd.String()

	c.logger.Info("rebooting system", "command", res.Command)
	code, err := c.runner.Run(ctx, cmd)
	switch {
	case err != nil:
		res.Error = err.Error()
	case code != 0:
		res.Error = fmt.Sprintf("%s exited with code %d", cmd.Name, code)
	default:
		res.Triggered = true
		return res
	}

	c.logger.Error("automatic reboot failed", logging.KeyError, res.Error)
	res.Instruction = ManualInstruction
	return res
}
