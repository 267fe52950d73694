package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ZebulonRouseFrantzich/drvsetup/internal/config"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/manifest"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/pipeline"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/platform"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/preflight"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/testutil"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/workdir"
)

type fakeDetector struct {
	info *platform.Info
}

func (d fakeDetector) Detect(ctx context.Context) (*platform.Info, error) {
	return d.info, nil
}

type testApp struct {
	*app
	out    *bytes.Buffer
	errOut *bytes.Buffer
	runner *testutil.FakeRunner
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	var out, errOut bytes.Buffer
	ta := &testApp{
		app:    newApp(&out, &errOut),
		out:    &out,
		errOut: &errOut,
		runner: &testutil.FakeRunner{},
	}
	ta.detector = fakeDetector{info: &platform.Info{OS: platform.OSWindows, Arch: "amd64"}}
	ta.app.runner = ta.runner
	ta.elevated = func() (bool, error) { return true, nil }
	ta.systemInfo = nil
	return ta
}

func (ta *testApp) run(args ...string) int {
	return ta.execute(context.Background(), args)
}

func sha(body string) string {
	sum := sha256.Sum256([]byte(body))
	return hex.EncodeToString(sum[:])
}

func writeManifest(t *testing.T, dir string, entries []map[string]any) string {
	t.Helper()
	data, err := json.Marshal(map[string]any{"drivers": entries})
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "drivers.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func driverServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chipset.exe":
			fmt.Fprint(w, "chipset")
		case "/nic.msi":
			fmt.Fprint(w, "nic")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRun_Success(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	srv := driverServer(t)
	path := writeManifest(t, env.Root, []map[string]any{
		{"name": "Chipset", "url": srv.URL + "/chipset.exe", "fileName": "chipset.exe", "sha256": sha("chipset"), "type": "exe"},
		{"name": "NIC", "url": srv.URL + "/nic.msi", "fileName": "nic.msi", "sha256": sha("nic"), "type": "msi"},
		{"name": "Linux only", "url": srv.URL + "/x.deb", "fileName": "x.deb", "type": "deb", "os": "linux"},
	})

	ta := newTestApp(t)
	code := ta.run("run", "--manifest", path)
	if code != ExitOK {
		t.Fatalf("exit code = %d, stderr: %s", code, ta.errOut.String())
	}

	if !strings.Contains(ta.out.String(), "Installation Summary:") || !strings.Contains(ta.out.String(), "Total drivers: 2") {
		t.Errorf("summary output:\n%s", ta.out.String())
	}
	if ta.runner.CallCount() != 2 {
		t.Errorf("installer calls = %d, want 2", ta.runner.CallCount())
	}

	reports, _ := filepath.Glob(filepath.Join(env.WorkDir, "drvsetup-report-*.json"))
	if len(reports) != 1 {
		t.Fatalf("reports = %q, want one", reports)
	}
	if _, err := os.Stat(filepath.Join(env.WorkDir, workdir.LockFileName)); !os.IsNotExist(err) {
		t.Error("lock file not released")
	}
	if _, err := os.Stat(env.LogFile); err != nil {
		t.Errorf("log file not written: %v", err)
	}
}

func TestRun_ManifestInCurrentDirectory(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	t.Setenv("DRVSETUP_WORK_DIR", "")
	srv := driverServer(t)
	writeManifest(t, env.Root, []map[string]any{
		{"name": "Chipset", "url": srv.URL + "/chipset.exe", "fileName": "chipset.exe", "sha256": sha("chipset"), "type": "exe"},
	})
	t.Chdir(env.Root)

	ta := newTestApp(t)
	if code := ta.run("run", "-m", "drivers.json"); code != ExitOK {
		t.Fatalf("exit code = %d, stderr: %s\n%s", code, ta.errOut.String(), ta.out.String())
	}
	if ta.runner.CallCount() != 1 {
		t.Errorf("installer calls = %d, want 1", ta.runner.CallCount())
	}
	if _, err := os.Stat(filepath.Join(env.Root, "chipset.exe")); err != nil {
		t.Errorf("artifact not downloaded next to the manifest: %v", err)
	}
	reports, _ := filepath.Glob(filepath.Join(env.Root, "drvsetup-report-*.json"))
	if len(reports) != 1 {
		t.Errorf("reports = %q, want one", reports)
	}
}

func TestRun_DefaultCommand(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	path := writeManifest(t, env.Root, []map[string]any{})

	ta := newTestApp(t)
	if code := ta.run("--manifest", path); code != ExitOK {
		t.Fatalf("exit code = %d, stderr: %s", code, ta.errOut.String())
	}
}

func TestRun_ExitCodes(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, ta *testApp, env testutil.Env, srvURL string) []string
		want  int
	}{
		{
			name: "entry_failure",
			setup: func(t *testing.T, ta *testApp, env testutil.Env, srvURL string) []string {
				path := writeManifest(t, env.Root, []map[string]any{
					{"name": "Missing", "url": srvURL + "/missing.exe", "fileName": "missing.exe", "type": "exe"},
				})
				return []string{"run", "--manifest", path, "--download-retries", "0"}
			},
			want: ExitEntriesFailed,
		},
		{
			name: "invalid_manifest",
			setup: func(t *testing.T, ta *testApp, env testutil.Env, srvURL string) []string {
				path := writeManifest(t, env.Root, []map[string]any{
					{"name": "Bad", "url": srvURL + "/x", "fileName": "x", "type": "pkg"},
				})
				return []string{"run", "--manifest", path}
			},
			want: ExitManifest,
		},
		{
			name: "missing_manifest",
			setup: func(t *testing.T, ta *testApp, env testutil.Env, srvURL string) []string {
				return []string{"run", "--manifest", filepath.Join(env.Root, "nope.json")}
			},
			want: ExitManifest,
		},
		{
			name: "invalid_setting",
			setup: func(t *testing.T, ta *testApp, env testutil.Env, srvURL string) []string {
				return []string{"run", "--log-format", "xml"}
			},
			want: ExitManifest,
		},
		{
			name: "not_elevated",
			setup: func(t *testing.T, ta *testApp, env testutil.Env, srvURL string) []string {
				ta.elevated = func() (bool, error) { return false, nil }
				path := writeManifest(t, env.Root, []map[string]any{})
				return []string{"run", "--manifest", path}
			},
			want: ExitEnvironment,
		},
		{
			name: "lock_held",
			setup: func(t *testing.T, ta *testApp, env testutil.Env, srvURL string) []string {
				lock, err := workdir.AcquireLock(context.Background(), env.WorkDir)
				if err != nil {
					t.Fatal(err)
				}
				t.Cleanup(func() { lock.Release() })
				path := writeManifest(t, env.Root, []map[string]any{})
				return []string{"run", "--manifest", path}
			},
			want: ExitEnvironment,
		},
		{
			name: "unknown_flag",
			setup: func(t *testing.T, ta *testApp, env testutil.Env, srvURL string) []string {
				return []string{"run", "--no-such-flag"}
			},
			want: ExitManifest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testutil.SetupTestEnv(t)
			srv := driverServer(t)
			ta := newTestApp(t)
			args := tt.setup(t, ta, env, srv.URL)

			if code := ta.run(args...); code != tt.want {
				t.Errorf("exit code = %d, want %d (stderr: %s)", code, tt.want, ta.errOut.String())
			}
		})
	}
}

func TestRun_DryRunSkipsPrivilegesAndInstalls(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	srv := driverServer(t)
	path := writeManifest(t, env.Root, []map[string]any{
		{"name": "Chipset", "url": srv.URL + "/chipset.exe", "fileName": "chipset.exe", "type": "exe"},
	})

	ta := newTestApp(t)
	ta.elevated = func() (bool, error) { return false, nil }

	if code := ta.run("run", "--manifest", path, "--dry-run", "--auto-reboot"); code != ExitOK {
		t.Fatalf("exit code = %d, stderr: %s", code, ta.errOut.String())
	}
	if ta.runner.CallCount() != 0 {
		t.Errorf("dry run spawned %d processes", ta.runner.CallCount())
	}
	if _, err := os.Stat(filepath.Join(env.WorkDir, "chipset.exe")); err != nil {
		t.Errorf("dry run did not download: %v", err)
	}
}

func TestRun_ConfigFile(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	path := writeManifest(t, env.Root, []map[string]any{})

	cfg := filepath.Join(env.Root, "custom.yaml")
	if err := os.WriteFile(cfg, []byte("manifest: "+path+"\nskip_preflight: true\n"), 0644); err != nil {
		t.Fatal(err)
	}

	ta := newTestApp(t)
	ta.elevated = func() (bool, error) { return false, errors.New("should not be called") }
	if code := ta.run("run", "--config", cfg); code != ExitOK {
		t.Fatalf("exit code = %d, stderr: %s", code, ta.errOut.String())
	}
}

func TestValidateCommand(t *testing.T) {
	env := testutil.SetupTestEnv(t)

	t.Run("valid manifest", func(t *testing.T) {
		path := writeManifest(t, env.Root, []map[string]any{
			{"name": "Chipset", "url": "https://vendor.example/c.exe", "fileName": "c.exe", "type": "exe"},
			{"name": "Printer", "fileName": "p.txt", "type": "manual"},
		})
		ta := newTestApp(t)
		if code := ta.run("validate", path); code != ExitOK {
			t.Fatalf("exit code = %d, stderr: %s", code, ta.errOut.String())
		}
		out := ta.out.String()
		for _, want := range []string{"Manifest OK", "(2 entries)", "Chipset", "warning: no sha256", "Printer"} {
			if !strings.Contains(out, want) {
				t.Errorf("output missing %q:\n%s", want, out)
			}
		}
	})

	t.Run("invalid manifest", func(t *testing.T) {
		dir := t.TempDir()
		path := writeManifest(t, dir, []map[string]any{
			{"name": "Bad", "url": "ftp://vendor.example/x", "fileName": "x.exe", "type": "exe"},
		})
		ta := newTestApp(t)
		if code := ta.run("validate", path); code != ExitManifest {
			t.Errorf("exit code = %d, want %d", code, ExitManifest)
		}
		if !strings.Contains(ta.errOut.String(), "url") {
			t.Errorf("stderr = %q", ta.errOut.String())
		}
	})
}

func TestHashCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "driver.bin")
	if err := os.WriteFile(path, []byte("payload"), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		args     []string
		want     int
		contains string
	}{
		{"compute", []string{"hash", path}, ExitOK, sha("payload")},
		{"verify_match", []string{"hash", path, strings.ToUpper(sha("payload"))}, ExitOK, "OK"},
		{"verify_mismatch", []string{"hash", path, sha("other")}, ExitEntriesFailed, "MISMATCH"},
		{"missing_file", []string{"hash", path + ".missing"}, ExitEntriesFailed, ""},
		{"no_args", []string{"hash"}, ExitManifest, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ta := newTestApp(t)
			if code := ta.run(tt.args...); code != tt.want {
				t.Errorf("exit code = %d, want %d", code, tt.want)
			}
			if tt.contains != "" && !strings.Contains(ta.out.String(), tt.contains) {
				t.Errorf("output = %q, want %q", ta.out.String(), tt.contains)
			}
		})
	}
}

func TestVersionCommand(t *testing.T) {
	ta := newTestApp(t)
	if code := ta.run("version"); code != ExitOK {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.Contains(ta.out.String(), "drvsetup "+Version) {
		t.Errorf("output = %q", ta.out.String())
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitOK},
		{"explicit", withCode(ExitEnvironment, errors.New("x")), ExitEnvironment},
		{"manifest_validation", &manifest.ValidationError{Field: "drivers[0].type", Message: "bad"}, ExitManifest},
		{"manifest_parse", fmt.Errorf("load: %w", &manifest.ParseError{Message: "bad", Detail: "d"}), ExitManifest},
		{"config_validation", &config.ValidationError{Field: "log_format", Message: "bad"}, ExitManifest},
		{"work_dir", fmt.Errorf("%w: denied", pipeline.ErrWorkDir), ExitEnvironment},
		{"lock", workdir.ErrLockExists, ExitEnvironment},
		{"not_elevated", fmt.Errorf("%w: root", preflight.ErrNotElevated), ExitEnvironment},
		{"other", errors.New("boom"), ExitEntriesFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}
