// Package command runs external installer and system processes and reports
// their exit codes.
//
// Exit codes are the only success signal consumed from installers, so the
// Runner contract separates "the process ran and exited with N" from "the
// process could not be run at all".
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/ZebulonRouseFrantzich/drvsetup/internal/logging"
)

// ExitCodeNotRun is reported when a process never produced an exit status.
const ExitCodeNotRun = -1

// maxLoggedOutput bounds how much captured output is attached to a log line.
const maxLoggedOutput = 4 << 10

// Command describes one process invocation. No shell is involved.
type Command struct {
	// Name is the executable path or a name resolved through PATH.
	Name string
	// Args are passed verbatim as argv[1:].
	Args []string
	// RawArgs, when set, is the argument string exactly as an operator
	// wrote it. On Windows it is passed through to the command line
	// untouched so that nested quoting like /v"/qn" survives.
	RawArgs string
	// Dir is the working directory; empty means the current one.
	Dir string
	// Interactive attaches the process to the terminal instead of capturing
	// its output.
	Interactive bool
}

// String renders the command for logs.
func (c Command) String() string {
	if c.RawArgs != "" {
		return c.Name + " " + c.RawArgs
	}
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Runner executes commands.
type Runner interface {
	// Run starts the command and waits for it. A non-zero exit is not an
	// error; err is set only when the process could not be started or was
	// interrupted, in which case the exit code is ExitCodeNotRun.
	Run(ctx context.Context, cmd Command) (exitCode int, err error)
}

// ExecRunner implements Runner with os/exec.
type ExecRunner struct {
	logger logging.Logger
}

// NewExecRunner creates a runner that logs captured output at debug level.
func NewExecRunner(logger logging.Logger) *ExecRunner {
	return &ExecRunner{logger: logging.OrNop(logger)}
}

// Run implements Runner.
func (r *ExecRunner) Run(ctx context.Context, c Command) (int, error) {
	if c.Name == "" {
		return ExitCodeNotRun, errors.New("command name is empty")
	}

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	applyRawArgs(cmd, c)

	var out bytes.Buffer
	if c.Interactive {
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	} else {
		cmd.Stdout = &out
		cmd.Stderr = &out
	}

	r.logger.Debug("running command", "command", c.String())
	err := cmd.Run()

	if out.Len() > 0 {
		r.logger.Debug("command output", "command", c.Name, "output", truncate(out.String(), maxLoggedOutput))
	}

	if err == nil {
		return 0, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && ctx.Err() == nil {
		return exitErr.ExitCode(), nil
	}
	if ctx.Err() != nil {
		return ExitCodeNotRun, fmt.Errorf("run %s: %w", c.Name, ctx.Err())
	}
	return ExitCodeNotRun, fmt.Errorf("run %s: %w", c.Name, err)
}

// LookPath resolves an executable through PATH.
func LookPath(name string) (string, error) {
	return exec.LookPath(name)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "... (truncated)"
}
