//go:build !windows

package command

import "os/exec"

// applyRawArgs is a no-op outside Windows; Args already carries the
// tokenized form.
func applyRawArgs(cmd *exec.Cmd, c Command) {}
