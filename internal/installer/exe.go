package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/drvsetup/internal/command"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/logging"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/platform"
)

// SilentArgCascade is tried in order after an entry's own silentArgs.
var SilentArgCascade = []string{
	"/S",
	"/silent",
	"/quiet",
	"/verysilent",
	"/s",
	`/s /v"/qn"`,
	`/S /v"/qn"`,
}

// cascadeFor returns the argument strings to try for an entry.
func cascadeFor(silentArgs string) []string {
	out := make([]string, 0, len(SilentArgCascade)+1)
	if silentArgs != "" {
		out = append(out, silentArgs)
	}
	return append(out, SilentArgCascade...)
}

func (in *installers) exe(ctx context.Context, req Request) Outcome {
	path, err := filepath.Abs(req.Path)
	if err != nil {
		return Outcome{ExitCode: command.ExitCodeNotRun, Mode: ModeSilent, Message: fmt.Sprintf("resolve installer path: %v", err)}
	}

	if req.OS != platform.OSWindows {
		if err := setExecutable(path); err != nil {
			return Outcome{ExitCode: command.ExitCodeNotRun, Mode: ModeSilent, Message: err.Error()}
		}
	}

	var out Outcome
	for _, args := range cascadeFor(req.Entry.SilentArgs) {
		if err := ctx.Err(); err != nil {
			out.ExitCode = command.ExitCodeNotRun
			out.Mode = ModeSilent
			out.Message = fmt.Sprintf("install cancelled: %v", err)
			return out
		}

		argv, err := command.SplitArgs(args)
		if err != nil {
			in.logger.Warn("skipping malformed silent arguments", logging.KeyEntry, req.Entry.Label(), "args", args, logging.KeyError, err)
			out.Attempts = append(out.Attempts, Attempt{Command: path, Args: args, ExitCode: command.ExitCodeNotRun, Error: err.Error()})
			continue
		}

		a := in.run(ctx, command.Command{Name: path, Args: argv, RawArgs: args, Dir: filepath.Dir(path)}, args)
		out.Attempts = append(out.Attempts, a)
		in.logger.Debug("silent install attempt", logging.KeyEntry, req.Entry.Label(), "args", args, logging.KeyExitCode, a.ExitCode)

		if a.Error == "" && windowsSuccess(a.ExitCode) {
			out.Succeeded = true
			out.ExitCode = a.ExitCode
			out.Mode = ModeSilent
			out.Args = args
			out.RebootRequested = true
			out.Message = fmt.Sprintf("installed silently with %s", args)
			return out
		}
	}

	// Every silent argument failed: one last run without arguments, attached
	// to the terminal so an operator can finish the wizard.
	in.logger.Warn("silent install failed, falling back to interactive", logging.KeyEntry, req.Entry.Label())
	a := in.run(ctx, command.Command{Name: path, Dir: filepath.Dir(path), Interactive: true}, "")
	out.Attempts = append(out.Attempts, a)
	out.ExitCode = a.ExitCode
	out.Mode = ModeInteractive
	if a.Error == "" && windowsSuccess(a.ExitCode) {
		out.Succeeded = true
		out.RebootRequested = true
		out.Message = "installed interactively"
		return out
	}
	if a.Error != "" {
		out.Message = fmt.Sprintf("interactive install failed: %s", a.Error)
	} else {
		out.Message = fmt.Sprintf("interactive install exited with code %d", a.ExitCode)
	}
	return out
}

// setExecutable sets 0755 permissions on an installer.
func setExecutable(path string) error {
	if err := os.Chmod(path, 0755); err != nil {
		return fmt.Errorf("set executable: %w", err)
	}
	return nil
}
