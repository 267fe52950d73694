//go:build windows

package command

import (
	"os/exec"
	"syscall"
)

// applyRawArgs hands the operator's argument string to CreateProcess as-is.
// Go's default argv escaping would turn /v"/qn" into /v\"/qn\", which
// InstallShield wrappers do not understand.
func applyRawArgs(cmd *exec.Cmd, c Command) {
	if c.RawArgs == "" {
		return
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CmdLine: syscall.EscapeArg(cmd.Path) + " " + c.RawArgs,
	}
}
