package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/drvsetup/internal/command"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/config"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/manifest"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/pipeline"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/platform"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/preflight"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/workdir"
)

// Version will be set at build time via -ldflags
var Version = "v0.1.0"

// Process exit codes.
const (
	ExitOK            = 0
	ExitEntriesFailed = 1
	ExitManifest      = 2
	ExitEnvironment   = 3
)

// exitError carries an explicit exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func withCode(code int, err error) error {
	if err == nil {
		return nil
	}
	return &exitError{code: code, err: err}
}

// exitCode maps an error returned by a command onto a process exit code.
func exitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}

	var (
		mverr *manifest.ValidationError
		mperr *manifest.ParseError
		cverr *config.ValidationError
	)
	switch {
	case errors.As(err, &mverr), errors.As(err, &mperr), errors.As(err, &cverr):
		return ExitManifest
	case errors.Is(err, pipeline.ErrWorkDir),
		errors.Is(err, workdir.ErrLockExists),
		errors.Is(err, preflight.ErrUnsupportedOS),
		errors.Is(err, preflight.ErrNotElevated):
		return ExitEnvironment
	}
	return ExitEntriesFailed
}

// app holds the host-facing dependencies so tests can replace them.
type app struct {
	stdout io.Writer
	stderr io.Writer

	detector   platform.Detector
	runner     command.Runner
	elevated   func() (bool, error)
	systemInfo func(ctx context.Context) (*platform.SystemInfo, error)

	// verbose is set from the parsed settings so errors can be rendered
	// with full detail.
	verbose bool
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:     stdout,
		stderr:     stderr,
		detector:   platform.NewDetector(),
		elevated:   preflight.IsElevated,
		systemInfo: platform.CollectSystemInfo,
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "drvsetup",
		Short: "Silent driver installer",
		Long: `drvsetup downloads, verifies and silently installs the drivers listed in a
manifest, then reboots once if any install requires it.

Running drvsetup without a subcommand is the same as "drvsetup run".`,
		Version:       Version,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE:          a.runPipeline,
	}
	root.SetVersionTemplate("drvsetup {{.Version}}\n")

	root.PersistentFlags().StringP("config", "c", "", "Config file path (default: ./drvsetup.yaml or the user config dir)")
	addRunFlags(root)

	root.AddCommand(a.runCmd(), a.validateCmd(), a.hashCmd(), versionCmd())
	return root
}

// execute runs the CLI with args and returns the process exit code.
func (a *app) execute(ctx context.Context, args []string) int {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitOK
	}

	code := exitCode(err)
	if code == ExitEntriesFailed && isUsageError(err) {
		code = ExitManifest
	}
	fmt.Fprintf(a.stderr, "Error: %s\n", manifest.FormatError(unwrapExit(err), a.verbose))
	return code
}

func unwrapExit(err error) error {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.err
	}
	return err
}

// isUsageError matches cobra's argument and flag errors, which have no type.
func isUsageError(err error) bool {
	var ee *exitError
	if errors.As(err, &ee) {
		return false
	}
	msg := err.Error()
	for _, prefix := range []string{"unknown command", "unknown flag", "unknown shorthand flag", "accepts ", "requires at least", "invalid argument", "flag needs an argument"} {
		if strings.HasPrefix(msg, prefix) {
			return true
		}
	}
	return false
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := newApp(os.Stdout, os.Stderr).execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
