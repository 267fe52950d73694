package installer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ZebulonRouseFrantzich/drvsetup/internal/command"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/logging"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/platform"
)

// packageStep is one package-manager invocation with the file appended.
type packageStep struct {
	name string
	args []string
}

func (s packageStep) command(path string) command.Command {
	args := append(append([]string{}, s.args...), path)
	return command.Command{Name: s.name, Args: args}
}

var (
	dpkgInstall = packageStep{name: "dpkg", args: []string{"-i"}}
	aptInstall  = packageStep{name: "apt-get", args: []string{"install", "-y"}}
	rpmInstall  = packageStep{name: "rpm", args: []string{"-i"}}

	dnfInstall    = packageStep{name: "dnf", args: []string{"install", "-y"}}
	yumInstall    = packageStep{name: "yum", args: []string{"install", "-y"}}
	zypperInstall = packageStep{name: "zypper", args: []string{"--non-interactive", "install"}}
)

// rpmResolvers returns the dependency-resolving managers to try after a
// plain rpm -i, in preference order for the distribution family.
func rpmResolvers(family string) []packageStep {
	if family == platform.FamilySUSE {
		return []packageStep{zypperInstall, dnfInstall, yumInstall}
	}
	return []packageStep{dnfInstall, yumInstall, zypperInstall}
}

func (in *installers) deb(ctx context.Context, req Request) Outcome {
	return in.packageInstall(ctx, req, dpkgInstall, []packageStep{aptInstall})
}

func (in *installers) rpm(ctx context.Context, req Request) Outcome {
	var fallbacks []packageStep
	for _, step := range rpmResolvers(in.family) {
		if _, err := in.lookPath(step.name); err != nil {
			in.logger.Debug("package manager not found", "manager", step.name)
			continue
		}
		fallbacks = append(fallbacks, step)
	}
	return in.packageInstall(ctx, req, rpmInstall, fallbacks)
}

// packageInstall runs primary, then each fallback until one exits 0.
// Fallbacks exist to pull in dependencies the primary could not resolve.
func (in *installers) packageInstall(ctx context.Context, req Request, primary packageStep, fallbacks []packageStep) Outcome {
	path, err := filepath.Abs(req.Path)
	if err != nil {
		return Outcome{ExitCode: command.ExitCodeNotRun, Mode: ModePackage, Message: fmt.Sprintf("resolve package path: %v", err)}
	}

	out := Outcome{Mode: ModePackage, ExitCode: command.ExitCodeNotRun}
	for _, step := range append([]packageStep{primary}, fallbacks...) {
		if err := ctx.Err(); err != nil {
			out.Message = fmt.Sprintf("install cancelled: %v", err)
			return out
		}

		cmd := step.command(path)
		line := strings.Join(cmd.Args, " ")
		a := in.run(ctx, cmd, line)
		out.Attempts = append(out.Attempts, a)
		out.ExitCode = a.ExitCode
		out.Args = line
		in.logger.Debug("package install attempt", logging.KeyEntry, req.Entry.Label(), "manager", step.name, logging.KeyExitCode, a.ExitCode)

		if a.Error == "" && zeroSuccess(a.ExitCode) {
			out.Succeeded = true
			out.RebootRequested = true
			out.Message = "installed with " + step.name
			return out
		}
		in.logger.Warn("package install failed", logging.KeyEntry, req.Entry.Label(), "manager", step.name, logging.KeyExitCode, a.ExitCode)
	}

	last := out.Attempts[len(out.Attempts)-1]
	if last.Error != "" {
		out.Message = fmt.Sprintf("%s failed: %s", last.Command, last.Error)
	} else {
		out.Message = fmt.Sprintf("%s exited with code %d", last.Command, last.ExitCode)
	}
	return out
}
