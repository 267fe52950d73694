package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/google/uuid"

	"github.com/ZebulonRouseFrantzich/drvsetup/internal/clock"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/command"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/download"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/installer"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/integrity"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/logging"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/manifest"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/reboot"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/workdir"
)

// ErrWorkDir is returned when the working directory cannot be established.
var ErrWorkDir = errors.New("working directory unavailable")

// SignatureSuffix is appended to fileName for downloaded detached signatures.
const SignatureSuffix = manifest.SignatureSuffix

// Fetcher downloads artifacts.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string, force bool) download.Result
}

// Verifier checks artifacts before install.
type Verifier interface {
	Verify(path, expected string) (integrity.Result, error)
	CheckSize(path string, want int64) error
	HasKeyring() bool
	VerifySignature(path, signaturePath string) (string, error)
}

// Installer installs a validated artifact.
type Installer interface {
	Install(ctx context.Context, entry manifest.DriverEntry, path, targetOS string) installer.Outcome
}

// Options are the per-run switches.
type Options struct {
	ForceRefresh bool
	AutoReboot   bool
	DryRun       bool
}

// Config wires an Orchestrator.
type Config struct {
	WorkDir   string
	OS        string
	Fetcher   Fetcher
	Verifier  Verifier
	Installer Installer
	// RebootRunner executes the end-of-run reboot command.
	RebootRunner command.Runner
	Clock        clock.Clock
	Logger       logging.Logger
	// RunID overrides the generated run identifier.
	RunID string
}

// Orchestrator drives one or more runs over the same collaborators.
type Orchestrator struct {
	cfg    Config
	clock  clock.Clock
	logger logging.Logger
}

// New creates an orchestrator. Fetcher, Verifier and Installer are required.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Fetcher == nil || cfg.Verifier == nil || cfg.Installer == nil {
		return nil, errors.New("pipeline requires a fetcher, verifier and installer")
	}
	if cfg.WorkDir == "" {
		return nil, fmt.Errorf("%w: no path configured", ErrWorkDir)
	}
	if cfg.OS == "" {
		cfg.OS = runtime.GOOS
	}
	return &Orchestrator{
		cfg:    cfg,
		clock:  clock.OrReal(cfg.Clock),
		logger: logging.OrNop(cfg.Logger),
	}, nil
}

// Run processes every entry of m in order.
//
// The returned error is non-nil only when the working directory cannot be
// created; per-entry failures are recorded in the Summary.
func (o *Orchestrator) Run(ctx context.Context, m *manifest.Manifest, opts Options) (*Summary, error) {
	runID := o.cfg.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	log := logging.With(o.logger, logging.KeyRunID, runID)

	if err := workdir.Ensure(o.cfg.WorkDir); err != nil {
		log.Error("cannot prepare working directory", "dir", o.cfg.WorkDir, logging.KeyError, err)
		return nil, fmt.Errorf("%w: %w", ErrWorkDir, err)
	}

	coordinator := reboot.New(reboot.Options{
		Runner: o.cfg.RebootRunner,
		Logger: log,
		OS:     o.cfg.OS,
		DryRun: opts.DryRun,
	})

	sum := &Summary{
		RunID:     runID,
		StartedAt: o.clock.Now(),
		WorkDir:   o.cfg.WorkDir,
		OS:        o.cfg.OS,
		DryRun:    opts.DryRun,
		Results:   make([]EntryResult, 0, m.Len()),
	}

	log.Info("processing drivers", "count", m.Len(), "dir", o.cfg.WorkDir, "force", opts.ForceRefresh, "dryRun", opts.DryRun)

	for i, entry := range m.Drivers {
		res := o.processEntry(ctx, log, i, entry, opts)
		if res.Installed && entry.InstallType != manifest.TypeManual && res.RebootRequested {
			coordinator.MarkRequired()
		}
		sum.Results = append(sum.Results, res)
	}

	sum.RebootRequired = coordinator.Required()
	sum.Reboot = coordinator.Resolve(ctx, opts.AutoReboot)
	sum.FinishedAt = o.clock.Now()
	sum.tally()

	log.Info("run complete", "total", sum.Total, "succeeded", sum.Succeeded, "failed", sum.Failed, "rebootRequired", sum.RebootRequired)
	return sum, nil
}

func (o *Orchestrator) processEntry(ctx context.Context, log logging.Logger, index int, entry manifest.DriverEntry, opts Options) (res EntryResult) {
	start := o.clock.Now()
	res = EntryResult{
		Index:        index,
		Name:         entry.Name,
		FileName:     entry.FileName,
		InstallType:  entry.InstallType,
		URL:          entry.URL,
		ExpectedHash: entry.ExpectedHash,
		ExitCode:     command.ExitCodeNotRun,
	}
	defer func() { res.Duration = o.clock.Now().Sub(start) }()

	elog := logging.With(log, logging.KeyEntry, entry.Label())

	path, err := workdir.ArtifactPath(o.cfg.WorkDir, entry.FileName)
	if err != nil {
		res.fail(StageDownload, err)
		elog.Error("invalid artifact path", logging.KeyError, err)
		return res
	}
	res.Path = path

	// Manual entries without a URL have nothing to fetch or verify.
	if entry.InstallType == manifest.TypeManual && entry.URL == "" {
		o.install(ctx, elog, &res, entry, path)
		return res
	}

	if !o.download(ctx, elog, &res, entry, path, opts) {
		return res
	}
	if !o.verify(ctx, elog, &res, entry, path, opts) {
		return res
	}
	o.install(ctx, elog, &res, entry, path)
	return res
}

func (o *Orchestrator) download(ctx context.Context, log logging.Logger, res *EntryResult, entry manifest.DriverEntry, path string, opts Options) bool {
	log.Info("fetching driver", logging.KeyURL, entry.URL, logging.KeyFile, entry.FileName)
	dl := o.cfg.Fetcher.Fetch(ctx, entry.URL, path, opts.ForceRefresh)
	res.DownloadAttempts = dl.Attempts
	res.Bytes = dl.Bytes

	if !dl.OK() {
		err := dl.Err
		if err == nil {
			err = errors.New("download failed")
		}
		res.fail(StageDownload, err)
		log.Error("download failed", logging.KeyURL, entry.URL, logging.KeyAttempt, dl.Attempts, logging.KeyError, err)
		return false
	}

	res.Downloaded = true
	res.Cached = dl.Status == download.StatusCached
	if res.Cached {
		log.Info("using cached artifact", logging.KeyFile, path)
	}
	return true
}

func (o *Orchestrator) verify(ctx context.Context, log logging.Logger, res *EntryResult, entry manifest.DriverEntry, path string, opts Options) bool {
	if entry.Size > 0 {
		if err := o.cfg.Verifier.CheckSize(path, entry.Size); err != nil {
			res.fail(StageIntegrity, err)
			log.Error("size check failed", logging.KeyFile, path, logging.KeyError, err)
			return false
		}
	}

	ir, err := o.cfg.Verifier.Verify(path, entry.ExpectedHash)
	if err != nil {
		res.fail(StageIntegrity, err)
		log.Error("cannot verify artifact", logging.KeyFile, path, logging.KeyError, err)
		return false
	}
	res.ComputedHash = ir.Computed
	res.HashSkipped = ir.Skipped

	switch {
	case ir.Skipped:
		log.Warn("no checksum provided, skipping hash verification", logging.KeyFile, path)
	case !ir.Valid:
		res.fail(StageIntegrity, fmt.Errorf("sha256 mismatch: expected %s, computed %s", ir.Expected, ir.Computed))
		log.Error("hash mismatch", "expected", ir.Expected, "computed", ir.Computed)
		return false
	default:
		log.Info("hash verified", "computed", ir.Computed)
	}

	if entry.SignatureURL != "" {
		if !o.verifySignature(ctx, log, res, entry, path, opts) {
			return false
		}
	}

	res.Validated = true
	return true
}

func (o *Orchestrator) verifySignature(ctx context.Context, log logging.Logger, res *EntryResult, entry manifest.DriverEntry, path string, opts Options) bool {
	if !o.cfg.Verifier.HasKeyring() {
		log.Warn("signature url set but no keyring configured, skipping signature check", "signatureUrl", entry.SignatureURL)
		return true
	}

	sigPath := filepath.Join(filepath.Dir(path), entry.FileName+SignatureSuffix)
	dl := o.cfg.Fetcher.Fetch(ctx, entry.SignatureURL, sigPath, opts.ForceRefresh)
	if !dl.OK() {
		err := dl.Err
		if err == nil {
			err = errors.New("download failed")
		}
		res.fail(StageSignature, fmt.Errorf("fetch signature: %w", err))
		log.Error("signature download failed", logging.KeyURL, entry.SignatureURL, logging.KeyError, err)
		return false
	}

	signer, err := o.cfg.Verifier.VerifySignature(path, sigPath)
	if err != nil {
		res.fail(StageSignature, err)
		log.Error("signature verification failed", logging.KeyError, err)
		return false
	}
	res.Signer = signer
	log.Info("signature verified", "signer", signer)
	return true
}

func (o *Orchestrator) install(ctx context.Context, log logging.Logger, res *EntryResult, entry manifest.DriverEntry, path string) {
	out := o.cfg.Installer.Install(ctx, entry, path, o.cfg.OS)

	res.ExitCode = out.ExitCode
	res.Mode = out.Mode
	res.Args = out.Args
	res.Attempts = out.Attempts
	res.InnerFile = out.InnerFile
	res.NotePath = out.NotePath
	res.RebootRequested = out.RebootRequested
	res.Message = out.Message

	if !out.Succeeded {
		res.fail(StageInstall, errors.New(out.Message))
		log.Error("install failed", logging.KeyExitCode, out.ExitCode, "mode", string(out.Mode), "message", out.Message)
		return
	}

	res.Installed = true
	if out.Mode == installer.ModeInteractive {
		log.Warn("installed through interactive fallback", logging.KeyExitCode, out.ExitCode)
		return
	}
	log.Info("install succeeded", logging.KeyExitCode, out.ExitCode, "mode", string(out.Mode), "args", out.Args)
}
