package installer

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ZebulonRouseFrantzich/drvsetup/internal/clock"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/command"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/logging"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/manifest"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/platform"
)

// Options configures a Dispatcher.
type Options struct {
	Runner command.Runner
	Clock  clock.Clock
	Logger logging.Logger
	// DryRun reports what would be installed without running anything.
	DryRun bool
	// LookPath resolves package managers; defaults to command.LookPath.
	LookPath func(name string) (string, error)
	// Family is the Linux distribution family, used to order rpm fallbacks.
	Family string
	// TempDir is the parent for zip scratch directories; empty means os.TempDir.
	TempDir string
}

type strategyKey struct {
	installType manifest.InstallType
	os          string
}

// Dispatcher routes install requests to strategies.
type Dispatcher struct {
	table  map[strategyKey]Strategy
	dryRun bool
	logger logging.Logger
}

// New creates a dispatcher with the built-in strategy table:
//
//	exe    windows, linux  silent-argument cascade
//	msi    windows         msiexec /i <file> /qn /norestart
//	zip    windows, linux  extract, install first inner exe/msi
//	deb    linux           dpkg -i, then apt-get install -y
//	rpm    linux           rpm -i, then dnf/yum/zypper
//	manual windows, linux  write an instruction note
func New(opts Options) *Dispatcher {
	if opts.Runner == nil {
		opts.Runner = command.NewExecRunner(opts.Logger)
	}
	if opts.LookPath == nil {
		opts.LookPath = command.LookPath
	}

	in := &installers{
		runner:   opts.Runner,
		clock:    clock.OrReal(opts.Clock),
		logger:   logging.OrNop(opts.Logger),
		lookPath: opts.LookPath,
		family:   opts.Family,
		tempDir:  opts.TempDir,
	}

	d := &Dispatcher{
		table:  make(map[strategyKey]Strategy),
		dryRun: opts.DryRun,
		logger: in.logger,
	}

	for _, goos := range []string{platform.OSWindows, platform.OSLinux} {
		d.Register(manifest.TypeExe, goos, StrategyFunc(in.exe))
		d.Register(manifest.TypeZip, goos, StrategyFunc(func(ctx context.Context, req Request) Outcome {
			return in.zip(ctx, req, d)
		}))
		d.Register(manifest.TypeManual, goos, StrategyFunc(in.manual))
	}
	d.Register(manifest.TypeMSI, platform.OSWindows, StrategyFunc(in.msi))
	d.Register(manifest.TypeDeb, platform.OSLinux, StrategyFunc(in.deb))
	d.Register(manifest.TypeRPM, platform.OSLinux, StrategyFunc(in.rpm))

	return d
}

// Register installs s for the (installType, OS) pair, replacing any
// existing strategy.
func (d *Dispatcher) Register(t manifest.InstallType, goos string, s Strategy) {
	d.table[strategyKey{installType: t, os: normalizeOS(goos)}] = s
}

// Supports reports whether a strategy exists for the pair.
func (d *Dispatcher) Supports(t manifest.InstallType, goos string) bool {
	_, ok := d.table[strategyKey{installType: t, os: normalizeOS(goos)}]
	return ok
}

// Install installs entry from path on targetOS. It never panics across
// entries and never returns an error; failures are reported in the Outcome.
func (d *Dispatcher) Install(ctx context.Context, entry manifest.DriverEntry, path, targetOS string) Outcome {
	targetOS = normalizeOS(targetOS)
	s, ok := d.table[strategyKey{installType: entry.InstallType, os: targetOS}]
	if !ok {
		msg := fmt.Sprintf("install type %q is not supported on %s", entry.InstallType, targetOS)
		d.logger.Error("unsupported install", logging.KeyEntry, entry.Label(), "type", string(entry.InstallType), "os", targetOS)
		return Outcome{ExitCode: command.ExitCodeNotRun, Mode: ModeUnsupported, Message: msg}
	}

	if d.dryRun {
		d.logger.Info("dry run: skipping install", logging.KeyEntry, entry.Label(), logging.KeyFile, path)
		return Outcome{
			Succeeded: true,
			ExitCode:  command.ExitCodeNotRun,
			Mode:      ModeDryRun,
			Message:   fmt.Sprintf("would install %s as %s", path, entry.InstallType),
		}
	}

	d.logger.Info("installing driver", logging.KeyEntry, entry.Label(), "type", string(entry.InstallType))
	return s.Install(ctx, Request{Entry: entry, Path: path, OS: targetOS})
}

// installInner dispatches a file found inside an archive by its extension.
func (d *Dispatcher) installInner(ctx context.Context, req Request, inner string) Outcome {
	var t manifest.InstallType
	switch strings.ToLower(filepath.Ext(inner)) {
	case ".exe":
		t = manifest.TypeExe
	case ".msi":
		t = manifest.TypeMSI
	default:
		return Outcome{ExitCode: command.ExitCodeNotRun, Mode: ModeUnsupported, Message: "unknown inner installer type: " + inner}
	}

	s, ok := d.table[strategyKey{installType: t, os: req.OS}]
	if !ok {
		return Outcome{
			ExitCode: command.ExitCodeNotRun,
			Mode:     ModeUnsupported,
			Message:  fmt.Sprintf("inner installer type %q is not supported on %s", t, req.OS),
		}
	}

	innerReq := req
	innerReq.Entry.InstallType = t
	innerReq.Path = inner
	return s.Install(ctx, innerReq)
}

func normalizeOS(goos string) string {
	return strings.ToLower(strings.TrimSpace(goos))
}

// installers holds the dependencies shared by the built-in strategies.
type installers struct {
	runner   command.Runner
	clock    clock.Clock
	logger   logging.Logger
	lookPath func(string) (string, error)
	family   string
	tempDir  string
}

// run executes cmd once and records it as an attempt.
func (in *installers) run(ctx context.Context, cmd command.Command, args string) Attempt {
	code, err := in.runner.Run(ctx, cmd)
	a := Attempt{Command: cmd.Name, Args: args, ExitCode: code}
	if err != nil {
		a.Error = err.Error()
		in.logger.Warn("installer could not run", "command", cmd.Name, logging.KeyError, err)
	}
	return a
}
