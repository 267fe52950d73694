// Package testutil provides helpers for testing drvsetup in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// settingEnvVars are the DRVSETUP_ variables the config layer reads. They
// are cleared so a developer's shell never leaks into a test.
var settingEnvVars = []string{
	"DRVSETUP_MANIFEST",
	"DRVSETUP_AUTO_REBOOT",
	"DRVSETUP_FORCE",
	"DRVSETUP_DRY_RUN",
	"DRVSETUP_VERBOSE",
	"DRVSETUP_LOG_FORMAT",
	"DRVSETUP_KEYRING",
	"DRVSETUP_DOWNLOAD_TIMEOUT",
	"DRVSETUP_DOWNLOAD_RETRIES",
	"DRVSETUP_TARGET_OS",
	"DRVSETUP_USER_AGENT",
	"DRVSETUP_SKIP_PREFLIGHT",
}

// Env describes the isolated directories created by SetupTestEnv.
type Env struct {
	Root      string
	ConfigDir string
	WorkDir   string
	LogFile   string
}

// SetupTestEnv creates isolated directories for a test and points HOME,
// the user config dir and the drvsetup work dir and log file at them.
//
// Cleanup is handled by t.TempDir().
func SetupTestEnv(t *testing.T) Env {
	t.Helper()

	tmpDir := t.TempDir()
	env := Env{
		Root:      tmpDir,
		ConfigDir: filepath.Join(tmpDir, "config"),
		WorkDir:   filepath.Join(tmpDir, "work"),
		LogFile:   filepath.Join(tmpDir, "work", "setup-drivers.log"),
	}

	t.Setenv("HOME", tmpDir)
	t.Setenv("USERPROFILE", tmpDir)
	t.Setenv("XDG_CONFIG_HOME", env.ConfigDir)
	t.Setenv("APPDATA", env.ConfigDir)

	for _, name := range settingEnvVars {
		t.Setenv(name, "")
	}
	t.Setenv("DRVSETUP_WORK_DIR", env.WorkDir)
	t.Setenv("DRVSETUP_LOG_FILE", env.LogFile)

	for _, dir := range []string{env.ConfigDir, env.WorkDir} {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			t.Fatalf("failed to create test directory %s: %v", dir, err)
		}
	}

	return env
}
