package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ZebulonRouseFrantzich/drvsetup/internal/command"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/config"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/download"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/installer"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/integrity"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/logging"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/manifest"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/pipeline"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/platform"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/preflight"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/report"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/workdir"
)

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("manifest", "m", config.DefaultManifest, "Path to the driver manifest (JSON, YAML or Lua)")
	f.String("work-dir", "", "Download and working directory (default: the manifest's directory)")
	f.Bool("auto-reboot", false, "Reboot automatically after installation if required")
	f.Bool("force", false, "Re-download files even if they already exist")
	f.Bool("dry-run", false, "Download and verify, but install nothing")
	f.BoolP("verbose", "v", false, "Enable verbose logging output")
	f.String("log-file", config.DefaultLogFile, "Log file path (empty disables file logging)")
	f.String("log-format", config.DefaultLogFormat, "Console log format: text or json")
	f.String("keyring", "", "OpenPGP public keyring for detached driver signatures")
	f.Duration("download-timeout", config.DefaultDownloadTimeout, "Timeout for each download attempt")
	f.Int("download-retries", config.DefaultDownloadRetries, "Retries after a failed download attempt")
	f.Bool("skip-preflight", false, "Skip the elevated-privileges check")
	f.String("target-os", "", "Install for this OS instead of the detected one (windows or linux)")
}

func (a *app) runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Download, verify and install every driver in the manifest",
		Long: `Process every manifest entry in order: download with retry, verify the
SHA-256 checksum (and OpenPGP signature when configured), install silently,
then resolve the reboot once at the end.

A failing entry never stops the run. The exit code is 1 when any entry
failed, 2 for manifest or configuration errors and 3 when the environment
is unusable (privileges, working directory, lock).`,
		Example: `  drvsetup run
  drvsetup run --manifest custom-drivers.json
  drvsetup run --auto-reboot --force
  drvsetup run --dry-run --verbose`,
		Args: cobra.NoArgs,
		RunE: a.runPipeline,
	}
	addRunFlags(cmd)
	return cmd
}

// loadSettings reads and validates settings using cmd's flags.
func (a *app) loadSettings(cmd *cobra.Command) (*config.Settings, string, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	loaded, err := config.Load(config.LoadOptions{ConfigFile: cfgFile, Flags: cmd.Flags()})
	if err != nil {
		return nil, "", withCode(ExitManifest, err)
	}
	if err := loaded.Settings.Validate(); err != nil {
		return nil, "", err
	}
	a.verbose = loaded.Settings.Verbose
	return loaded.Settings, loaded.File, nil
}

// resolvePlatform detects the host and applies a target OS override.
func (a *app) resolvePlatform(ctx context.Context, target string) (*platform.Info, error) {
	info, err := a.detector.Detect(ctx)
	if err != nil {
		return nil, fmt.Errorf("detect platform: %w", err)
	}
	if target != "" && target != info.OS {
		info = platform.ForOS(target)
	}
	return info, nil
}

func (a *app) runPipeline(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	s, cfgFile, err := a.loadSettings(cmd)
	if err != nil {
		return err
	}

	zl, err := logging.New(logging.Options{Verbose: s.Verbose, Format: s.LogFormat, File: s.LogFile})
	if err != nil {
		return withCode(ExitEnvironment, err)
	}
	defer zl.Close()
	logger := zl.Component("drvsetup")

	logger.Info("drvsetup starting", "version", Version)
	logger.Info("configuration",
		"manifest", s.Manifest,
		"workDir", s.EffectiveWorkDir(),
		"autoReboot", s.AutoReboot,
		"force", s.Force,
		"dryRun", s.DryRun,
		"verbose", s.Verbose,
		"configFile", cfgFile,
	)

	info, err := a.resolvePlatform(ctx, s.TargetOS)
	if err != nil {
		return withCode(ExitEnvironment, err)
	}
	a.logSystemInfo(ctx, logger, info)

	checks, err := preflight.Run(preflight.Options{
		OS:             info.OS,
		SkipPrivileges: s.SkipPreflight || s.DryRun,
		Elevated:       a.elevated,
	})
	for _, c := range checks {
		logger.Debug("preflight check", "check", c.Name, "passed", c.Passed, "message", c.Message)
	}
	if err != nil {
		logger.Error("environment validation failed", logging.KeyError, err)
		return withCode(ExitEnvironment, err)
	}

	loader := manifest.NewLoader(staticDetector{info: info}, zl.Component("manifest"))
	m, err := loader.Load(ctx, s.Manifest)
	if err != nil {
		logger.Error("cannot load manifest", logging.KeyFile, s.Manifest, logging.KeyError, err)
		return withCode(ExitManifest, err)
	}
	m, skipped := m.ForOS(info.OS)
	for _, e := range skipped {
		logger.Info("skipping entry for another OS", logging.KeyEntry, e.Label(), "os", e.OS)
	}

	dir := s.EffectiveWorkDir()
	if err := workdir.Ensure(dir); err != nil {
		return withCode(ExitEnvironment, fmt.Errorf("%w: %w", pipeline.ErrWorkDir, err))
	}
	lock, err := workdir.AcquireLock(ctx, dir)
	if err != nil {
		return withCode(ExitEnvironment, err)
	}
	defer lock.Release()

	if removed, err := workdir.CleanPartials(dir); err != nil {
		logger.Warn("failed to clean partial downloads", logging.KeyError, err)
	} else if len(removed) > 0 {
		logger.Info("removed partial downloads", "files", removed)
	}

	var signatures *integrity.SignatureVerifier
	if s.Keyring != "" {
		signatures, err = integrity.NewSignatureVerifier(s.Keyring)
		if err != nil {
			return withCode(ExitManifest, err)
		}
	}

	runner := a.runner
	if runner == nil {
		runner = command.NewExecRunner(zl.Component("command"))
	}

	retries := s.DownloadRetries
	if retries == 0 {
		retries = -1
	}

	orch, err := pipeline.New(pipeline.Config{
		WorkDir: dir,
		OS:      info.OS,
		Fetcher: download.New(download.Options{
			Timeout:   s.DownloadTimeout,
			Retries:   retries,
			UserAgent: s.UserAgent,
			Logger:    zl.Component("download"),
		}),
		Verifier: integrity.NewValidator(signatures),
		Installer: installer.New(installer.Options{
			Runner: runner,
			Logger: zl.Component("installer"),
			DryRun: s.DryRun,
			Family: info.Family,
		}),
		RebootRunner: runner,
		Logger:       zl.Component("pipeline"),
	})
	if err != nil {
		return withCode(ExitEnvironment, err)
	}

	sum, err := orch.Run(ctx, m, pipeline.Options{
		ForceRefresh: s.Force,
		AutoReboot:   s.AutoReboot,
		DryRun:       s.DryRun,
	})
	if err != nil {
		return withCode(ExitEnvironment, err)
	}

	fmt.Fprint(cmd.OutOrStdout(), report.Format(sum))
	if path, err := report.WriteJSON(dir, sum); err != nil {
		logger.Warn("failed to write report", logging.KeyError, err)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "\nReport: %s\n", path)
	}

	if sum.HasFailures() {
		return withCode(ExitEntriesFailed, fmt.Errorf("%d of %d drivers failed", sum.Failed, sum.Total))
	}
	return nil
}

func (a *app) logSystemInfo(ctx context.Context, logger logging.Logger, info *platform.Info) {
	logger.Info("platform", "os", info.OS, "arch", info.Arch, "distro", info.Platform, "family", info.Family, "version", info.Version)

	if a.systemInfo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	si, err := a.systemInfo(ctx)
	if err != nil {
		logger.Warn("could not collect system information", logging.KeyError, err)
		return
	}
	logger.Info("system information",
		"hostname", si.Hostname,
		"platform", si.Platform,
		"platformVersion", si.Version,
		"kernel", si.KernelVersion,
		"kernelArch", si.KernelArch,
		"uptime", si.Uptime.String(),
	)
}

// staticDetector serves an already-resolved Info to the manifest loader.
type staticDetector struct {
	info *platform.Info
}

func (d staticDetector) Detect(ctx context.Context) (*platform.Info, error) {
	return d.info, nil
}
