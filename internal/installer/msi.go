package installer

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/drvsetup/internal/command"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/logging"
)

// MSIExec is the Windows Installer binary.
const MSIExec = "msiexec.exe"

func (in *installers) msi(ctx context.Context, req Request) Outcome {
	path, err := filepath.Abs(req.Path)
	if err != nil {
		return Outcome{ExitCode: command.ExitCodeNotRun, Mode: ModePackage, Message: fmt.Sprintf("resolve package path: %v", err)}
	}

	args := []string{"/i", path, "/qn", "/norestart"}
	line := fmt.Sprintf("/i %s /qn /norestart", path)
	a := in.run(ctx, command.Command{Name: MSIExec, Args: args}, line)
	in.logger.Debug("msiexec finished", logging.KeyEntry, req.Entry.Label(), logging.KeyExitCode, a.ExitCode)

	out := Outcome{
		ExitCode: a.ExitCode,
		Mode:     ModePackage,
		Args:     line,
		Attempts: []Attempt{a},
	}
	switch {
	case a.Error != "":
		out.Message = fmt.Sprintf("msiexec failed: %s", a.Error)
	case windowsSuccess(a.ExitCode):
		out.Succeeded = true
		out.RebootRequested = true
		out.Message = "installed with msiexec"
	default:
		out.Message = fmt.Sprintf("msiexec exited with code %d", a.ExitCode)
	}
	return out
}
