package installer

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/ZebulonRouseFrantzich/drvsetup/internal/clock"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/command"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/manifest"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/platform"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/testutil"
)

func writeArtifact(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("installer"), 0644); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	return path
}

func argLines(calls []command.Command) []string {
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = testutil.ArgLine(c)
	}
	return out
}

func TestCascadeFor(t *testing.T) {
	tests := []struct {
		name       string
		silentArgs string
		wantFirst  string
		wantLen    int
	}{
		{"no_declared_args", "", "/S", len(SilentArgCascade)},
		{"declared_args_first", "/Q", "/Q", len(SilentArgCascade) + 1},
		{"declared_duplicate_not_removed", "/S", "/S", len(SilentArgCascade) + 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cascadeFor(tt.silentArgs)
			if got[0] != tt.wantFirst {
				t.Errorf("first = %q, want %q", got[0], tt.wantFirst)
			}
			if len(got) != tt.wantLen {
				t.Errorf("len = %d, want %d", len(got), tt.wantLen)
			}
		})
	}
}

func TestExe_DeclaredArgsFailThenCascadeSucceeds(t *testing.T) {
	dir := t.TempDir()
	path := writeArtifact(t, dir, "setup.exe")

	runner := &testutil.FakeRunner{Handler: testutil.ExitByArgs(map[string]int{"/Q": 1, "/S": 0}, 1)}
	d := New(Options{Runner: runner})

	entry := manifest.DriverEntry{Name: "Chipset", FileName: "setup.exe", InstallType: manifest.TypeExe, SilentArgs: "/Q"}
	out := d.Install(context.Background(), entry, path, platform.OSWindows)

	if !out.Succeeded {
		t.Fatalf("Succeeded = false, message %q", out.Message)
	}
	if out.Args != "/S" {
		t.Errorf("Args = %q, want /S", out.Args)
	}
	if out.Mode != ModeSilent {
		t.Errorf("Mode = %q, want %q", out.Mode, ModeSilent)
	}
	if !out.RebootRequested {
		t.Error("RebootRequested = false, want true")
	}
	if got, want := argLines(runner.Calls()), []string{"/Q", "/S"}; !reflect.DeepEqual(got, want) {
		t.Errorf("attempted args = %q, want %q", got, want)
	}
	if len(out.Attempts) != 2 {
		t.Errorf("len(Attempts) = %d, want 2", len(out.Attempts))
	}
}

func TestExe_FirstAttemptSucceeds(t *testing.T) {
	path := writeArtifact(t, t.TempDir(), "setup.exe")
	runner := &testutil.FakeRunner{}
	d := New(Options{Runner: runner})

	out := d.Install(context.Background(), manifest.DriverEntry{Name: "GPU", InstallType: manifest.TypeExe}, path, platform.OSWindows)
	if !out.Succeeded || out.Args != "/S" {
		t.Fatalf("Install() = %+v, want success with /S", out)
	}
	if runner.CallCount() != 1 {
		t.Errorf("CallCount = %d, want 1", runner.CallCount())
	}

	call := runner.Calls()[0]
	if call.Dir != filepath.Dir(call.Name) {
		t.Errorf("Dir = %q, want installer directory", call.Dir)
	}
	if !filepath.IsAbs(call.Name) {
		t.Errorf("Name = %q, want absolute path", call.Name)
	}
}

func TestExe_RebootPendingCodesSucceed(t *testing.T) {
	for _, code := range []int{ExitRebootPending, ExitRebootInitiated} {
		path := writeArtifact(t, t.TempDir(), "setup.exe")
		runner := &testutil.FakeRunner{Handler: testutil.ExitSequence(code)}
		out := New(Options{Runner: runner}).Install(context.Background(), manifest.DriverEntry{Name: "x", InstallType: manifest.TypeExe}, path, platform.OSWindows)
		if !out.Succeeded || out.ExitCode != code {
			t.Errorf("code %d: Install() = %+v, want success", code, out)
		}
	}
}

func TestExe_AllSilentFailFallsBackToInteractive(t *testing.T) {
	tests := []struct {
		name          string
		finalCode     int
		wantSucceeded bool
	}{
		{"interactive_succeeds", 0, true},
		{"interactive_fails", 1603, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeArtifact(t, t.TempDir(), "setup.exe")
			runner := &testutil.FakeRunner{Handler: func(cmd command.Command) (int, error) {
				if len(cmd.Args) == 0 {
					return tt.finalCode, nil
				}
				return 1, nil
			}}
			d := New(Options{Runner: runner})

			entry := manifest.DriverEntry{Name: "Audio", InstallType: manifest.TypeExe, SilentArgs: "/Q"}
			out := d.Install(context.Background(), entry, path, platform.OSWindows)

			wantCalls := len(SilentArgCascade) + 2
			if runner.CallCount() != wantCalls {
				t.Fatalf("CallCount = %d, want %d", runner.CallCount(), wantCalls)
			}

			calls := runner.Calls()
			last := calls[len(calls)-1]
			if len(last.Args) != 0 || !last.Interactive {
				t.Errorf("final call = %+v, want interactive with no args", last)
			}
			for _, c := range calls[:len(calls)-1] {
				if c.Interactive {
					t.Errorf("silent attempt %q marked interactive", testutil.ArgLine(c))
				}
			}

			if out.Mode != ModeInteractive {
				t.Errorf("Mode = %q, want %q", out.Mode, ModeInteractive)
			}
			if out.Succeeded != tt.wantSucceeded {
				t.Errorf("Succeeded = %v, want %v", out.Succeeded, tt.wantSucceeded)
			}
			if out.RebootRequested != tt.wantSucceeded {
				t.Errorf("RebootRequested = %v, want %v", out.RebootRequested, tt.wantSucceeded)
			}
			if out.ExitCode != tt.finalCode {
				t.Errorf("ExitCode = %d, want %d", out.ExitCode, tt.finalCode)
			}
		})
	}
}

func TestExe_NestedQuotingPreserved(t *testing.T) {
	path := writeArtifact(t, t.TempDir(), "setup.exe")
	runner := &testutil.FakeRunner{Handler: testutil.ExitByArgs(map[string]int{`/s /v"/qn"`: 0}, 1)}

	out := New(Options{Runner: runner}).Install(context.Background(), manifest.DriverEntry{Name: "x", InstallType: manifest.TypeExe}, path, platform.OSWindows)
	if !out.Succeeded || out.Args != `/s /v"/qn"` {
		t.Fatalf("Install() = %+v, want success with nested quoting", out)
	}

	last := runner.Calls()[runner.CallCount()-1]
	if want := []string{"/s", `/v"/qn"`}; !reflect.DeepEqual(last.Args, want) {
		t.Errorf("Args = %q, want %q", last.Args, want)
	}
}

func TestExe_SpawnErrorContinuesCascade(t *testing.T) {
	path := writeArtifact(t, t.TempDir(), "setup.exe")
	calls := 0
	runner := &testutil.FakeRunner{Handler: func(command.Command) (int, error) {
		calls++
		if calls == 1 {
			return command.ExitCodeNotRun, errors.New("exec format error")
		}
		return 0, nil
	}}

	out := New(Options{Runner: runner}).Install(context.Background(), manifest.DriverEntry{Name: "x", InstallType: manifest.TypeExe}, path, platform.OSWindows)
	if !out.Succeeded || out.Args != "/silent" {
		t.Fatalf("Install() = %+v, want success with /silent", out)
	}
	if out.Attempts[0].Error == "" || out.Attempts[0].ExitCode != command.ExitCodeNotRun {
		t.Errorf("first attempt = %+v, want spawn error", out.Attempts[0])
	}
}

func TestExe_LinuxSetsExecutable(t *testing.T) {
	path := writeArtifact(t, t.TempDir(), "installer.run")
	runner := &testutil.FakeRunner{}

	out := New(Options{Runner: runner}).Install(context.Background(), manifest.DriverEntry{Name: "x", InstallType: manifest.TypeExe}, path, platform.OSLinux)
	if !out.Succeeded {
		t.Fatalf("Install() = %+v", out)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0100 == 0 {
		t.Errorf("mode = %v, want owner execute bit", info.Mode().Perm())
	}
}

func TestMSI(t *testing.T) {
	tests := []struct {
		name          string
		code          int
		wantSucceeded bool
	}{
		{"success", 0, true},
		{"reboot_pending", 3010, true},
		{"reboot_initiated", 1641, true},
		{"fatal_error", 1603, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeArtifact(t, t.TempDir(), "driver.msi")
			runner := &testutil.FakeRunner{Handler: testutil.ExitSequence(tt.code)}
			out := New(Options{Runner: runner}).Install(context.Background(), manifest.DriverEntry{Name: "NIC", InstallType: manifest.TypeMSI}, path, platform.OSWindows)

			if out.Succeeded != tt.wantSucceeded {
				t.Errorf("Succeeded = %v, want %v (%s)", out.Succeeded, tt.wantSucceeded, out.Message)
			}
			if out.RebootRequested != tt.wantSucceeded {
				t.Errorf("RebootRequested = %v, want %v", out.RebootRequested, tt.wantSucceeded)
			}
			if out.ExitCode != tt.code {
				t.Errorf("ExitCode = %d, want %d", out.ExitCode, tt.code)
			}

			call := runner.Calls()[0]
			if call.Name != MSIExec {
				t.Errorf("Name = %q, want %q", call.Name, MSIExec)
			}
			if want := []string{"/i", path, "/qn", "/norestart"}; !reflect.DeepEqual(call.Args, want) {
				t.Errorf("Args = %q, want %q", call.Args, want)
			}
		})
	}
}

func TestUnsupportedPairs(t *testing.T) {
	tests := []struct {
		installType manifest.InstallType
		goos        string
	}{
		{manifest.TypeMSI, platform.OSLinux},
		{manifest.TypeDeb, platform.OSWindows},
		{manifest.TypeRPM, platform.OSWindows},
		{manifest.TypeExe, "darwin"},
	}

	for _, tt := range tests {
		t.Run(string(tt.installType)+"_"+tt.goos, func(t *testing.T) {
			runner := &testutil.FakeRunner{}
			d := New(Options{Runner: runner})
			if d.Supports(tt.installType, tt.goos) {
				t.Fatal("Supports() = true, want false")
			}

			out := d.Install(context.Background(), manifest.DriverEntry{Name: "x", InstallType: tt.installType}, "x", tt.goos)
			if out.Succeeded || out.Mode != ModeUnsupported {
				t.Errorf("Install() = %+v, want unsupported failure", out)
			}
			if runner.CallCount() != 0 {
				t.Errorf("CallCount = %d, want 0", runner.CallCount())
			}
		})
	}
}

func TestDryRun(t *testing.T) {
	dir := t.TempDir()
	runner := &testutil.FakeRunner{}
	d := New(Options{Runner: runner, DryRun: true})

	for _, it := range []manifest.InstallType{manifest.TypeExe, manifest.TypeMSI, manifest.TypeZip, manifest.TypeManual} {
		entry := manifest.DriverEntry{Name: "Dry " + string(it), FileName: "f." + string(it), InstallType: it}
		out := d.Install(context.Background(), entry, filepath.Join(dir, entry.FileName), platform.OSWindows)
		if !out.Succeeded || out.Mode != ModeDryRun {
			t.Errorf("%s: Install() = %+v, want dry-run success", it, out)
		}
		if out.RebootRequested {
			t.Errorf("%s: RebootRequested = true in dry run", it)
		}
		if !strings.Contains(out.Message, "would install") {
			t.Errorf("%s: Message = %q", it, out.Message)
		}
	}

	if runner.CallCount() != 0 {
		t.Errorf("CallCount = %d, want 0", runner.CallCount())
	}
	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("dry run wrote %d files", len(entries))
	}
}

func TestManual(t *testing.T) {
	dir := t.TempDir()
	runner := &testutil.FakeRunner{}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	d := New(Options{Runner: runner, Clock: clock.Fixed{Time: fixed}})

	entry := manifest.DriverEntry{Name: "Vendor Tool", URL: "https://vendor.example/tool", FileName: "tool.bin", InstallType: manifest.TypeManual}
	out := d.Install(context.Background(), entry, filepath.Join(dir, entry.FileName), platform.OSLinux)

	if !out.Succeeded {
		t.Fatalf("Install() = %+v", out)
	}
	if out.RebootRequested {
		t.Error("RebootRequested = true, want false")
	}
	if runner.CallCount() != 0 {
		t.Errorf("CallCount = %d, want 0", runner.CallCount())
	}
	if want := filepath.Join(dir, "tool.bin.manual.txt"); out.NotePath != want {
		t.Errorf("NotePath = %q, want %q", out.NotePath, want)
	}

	data, err := os.ReadFile(out.NotePath)
	if err != nil {
		t.Fatalf("read note: %v", err)
	}
	for _, want := range []string{
		"Manual Installation Required",
		"Driver: Vendor Tool",
		"URL: https://vendor.example/tool",
		"Timestamp: 2026-03-01T12:00:00Z",
		"Please download and install this driver manually.",
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("note missing %q:\n%s", want, data)
		}
	}
}

func TestManual_WriteFailure(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "does-not-exist")
	d := New(Options{Runner: &testutil.FakeRunner{}})

	out := d.Install(context.Background(), manifest.DriverEntry{Name: "x", InstallType: manifest.TypeManual}, filepath.Join(missing, "x.bin"), platform.OSWindows)
	if out.Succeeded {
		t.Errorf("Install() succeeded writing into a missing directory")
	}
}

func TestNoteFileName(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"tool.zip", "tool.zip.manual.txt"},
		{"Intel Chipset", "Intel_Chipset.manual.txt"},
		{"a/b", "a_b.manual.txt"},
	}
	for _, tt := range tests {
		if got := NoteFileName(tt.key); got != tt.want {
			t.Errorf("NoteFileName(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestManual_SameNameSeparateNotes(t *testing.T) {
	dir := t.TempDir()
	d := New(Options{Runner: &testutil.FakeRunner{}})

	first := manifest.DriverEntry{Name: "Vendor Tool", URL: "https://vendor.example/a", FileName: "tool-a.bin", InstallType: manifest.TypeManual}
	second := manifest.DriverEntry{Name: "Vendor Tool", URL: "https://vendor.example/b", FileName: "tool-b.bin", InstallType: manifest.TypeManual}

	outA := d.Install(context.Background(), first, filepath.Join(dir, first.FileName), platform.OSWindows)
	outB := d.Install(context.Background(), second, filepath.Join(dir, second.FileName), platform.OSWindows)
	if !outA.Succeeded || !outB.Succeeded {
		t.Fatalf("Install() = %+v, %+v", outA, outB)
	}
	if outA.NotePath == outB.NotePath {
		t.Fatalf("both entries wrote %q", outA.NotePath)
	}

	data, err := os.ReadFile(outA.NotePath)
	if err != nil {
		t.Fatalf("read first note: %v", err)
	}
	if !strings.Contains(string(data), "https://vendor.example/a") {
		t.Errorf("first note overwritten:\n%s", data)
	}
}

func TestDeb(t *testing.T) {
	tests := []struct {
		name          string
		codes         []int
		wantCalls     []string
		wantSucceeded bool
	}{
		{"dpkg_succeeds", []int{0}, []string{"dpkg"}, true},
		{"apt_fallback_succeeds", []int{1, 0}, []string{"dpkg", "apt-get"}, true},
		{"both_fail", []int{1, 100}, []string{"dpkg", "apt-get"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeArtifact(t, t.TempDir(), "driver.deb")
			runner := &testutil.FakeRunner{Handler: testutil.ExitSequence(tt.codes...)}
			out := New(Options{Runner: runner}).Install(context.Background(), manifest.DriverEntry{Name: "x", InstallType: manifest.TypeDeb}, path, platform.OSLinux)

			var names []string
			for _, c := range runner.Calls() {
				names = append(names, c.Name)
				if c.Args[len(c.Args)-1] != path {
					t.Errorf("%s: last arg = %q, want %q", c.Name, c.Args[len(c.Args)-1], path)
				}
			}
			if !reflect.DeepEqual(names, tt.wantCalls) {
				t.Errorf("calls = %q, want %q", names, tt.wantCalls)
			}
			if out.Succeeded != tt.wantSucceeded {
				t.Errorf("Succeeded = %v, want %v", out.Succeeded, tt.wantSucceeded)
			}
			if out.Mode != ModePackage {
				t.Errorf("Mode = %q, want %q", out.Mode, ModePackage)
			}
		})
	}
}

func TestRPM_ManagerOrdering(t *testing.T) {
	tests := []struct {
		name      string
		family    string
		available []string
		wantCalls []string
	}{
		{"dnf_available", platform.FamilyFedora, []string{"dnf", "yum"}, []string{"rpm", "dnf", "yum"}},
		{"yum_only", platform.FamilyRHEL, []string{"yum"}, []string{"rpm", "yum"}},
		{"suse_prefers_zypper", platform.FamilySUSE, []string{"zypper", "dnf"}, []string{"rpm", "zypper", "dnf"}},
		{"no_managers", platform.FamilyRHEL, nil, []string{"rpm"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeArtifact(t, t.TempDir(), "driver.rpm")
			lookPath := func(name string) (string, error) {
				for _, a := range tt.available {
					if a == name {
						return "/usr/bin/" + name, nil
					}
				}
				return "", errors.New("not found")
			}
			runner := &testutil.FakeRunner{Handler: testutil.ExitSequence(1)}
			d := New(Options{Runner: runner, LookPath: lookPath, Family: tt.family})

			out := d.Install(context.Background(), manifest.DriverEntry{Name: "x", InstallType: manifest.TypeRPM}, path, platform.OSLinux)
			if out.Succeeded {
				t.Error("Succeeded = true with every manager failing")
			}

			var names []string
			for _, c := range runner.Calls() {
				names = append(names, c.Name)
			}
			if !reflect.DeepEqual(names, tt.wantCalls) {
				t.Errorf("calls = %q, want %q", names, tt.wantCalls)
			}
		})
	}
}

func TestRPM_FallbackStopsOnSuccess(t *testing.T) {
	path := writeArtifact(t, t.TempDir(), "driver.rpm")
	runner := &testutil.FakeRunner{Handler: testutil.ExitSequence(1, 0)}
	d := New(Options{Runner: runner, LookPath: func(name string) (string, error) { return name, nil }})

	out := d.Install(context.Background(), manifest.DriverEntry{Name: "x", InstallType: manifest.TypeRPM}, path, platform.OSLinux)
	if !out.Succeeded || !out.RebootRequested {
		t.Fatalf("Install() = %+v, want success", out)
	}
	if runner.CallCount() != 2 {
		t.Errorf("CallCount = %d, want 2", runner.CallCount())
	}
}

type zipFile struct {
	name string
	body string
}

func writeZip(t *testing.T, path string, files []zipFile) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	w := zip.NewWriter(f)
	for _, zf := range files {
		fw, err := w.Create(zf.name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write([]byte(zf.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func scratchDirs(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "drvsetup-zip-*"))
	if err != nil {
		t.Fatal(err)
	}
	return matches
}

func TestZip_InstallsFirstSortedInner(t *testing.T) {
	dir := t.TempDir()
	scratch := t.TempDir()
	archive := filepath.Join(dir, "bundle.zip")
	writeZip(t, archive, []zipFile{
		{"readme.txt", "hello"},
		{"b/setup.exe", "exe"},
		{"a/driver.msi", "msi"},
	})

	var seen []string
	runner := &testutil.FakeRunner{Handler: func(cmd command.Command) (int, error) {
		name := cmd.Name
		if name == MSIExec {
			name = cmd.Args[1]
		}
		if _, err := os.Stat(name); err != nil {
			t.Errorf("inner installer %s missing during install: %v", name, err)
		}
		seen = append(seen, filepath.Base(name))
		return 0, nil
	}}
	d := New(Options{Runner: runner, TempDir: scratch})

	out := d.Install(context.Background(), manifest.DriverEntry{Name: "Bundle", InstallType: manifest.TypeZip}, archive, platform.OSWindows)
	if !out.Succeeded {
		t.Fatalf("Install() = %+v", out)
	}
	if out.InnerFile != "a/driver.msi" {
		t.Errorf("InnerFile = %q, want a/driver.msi", out.InnerFile)
	}
	if !reflect.DeepEqual(seen, []string{"driver.msi"}) {
		t.Errorf("installed = %q, want [driver.msi]", seen)
	}
	if left := scratchDirs(t, scratch); len(left) != 0 {
		t.Errorf("scratch dirs not removed: %q", left)
	}
}

func TestZip_InnerExeGetsSilentArgs(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "bundle.zip")
	writeZip(t, archive, []zipFile{{"Setup.EXE", "exe"}})

	runner := &testutil.FakeRunner{}
	d := New(Options{Runner: runner, TempDir: t.TempDir()})

	out := d.Install(context.Background(), manifest.DriverEntry{Name: "x", InstallType: manifest.TypeZip, SilentArgs: "/quiet"}, archive, platform.OSWindows)
	if !out.Succeeded || out.Args != "/quiet" {
		t.Fatalf("Install() = %+v, want success with /quiet", out)
	}
}

func TestZip_Failures(t *testing.T) {
	tests := []struct {
		name  string
		files []zipFile
		raw   string
	}{
		{"no_installer", []zipFile{{"readme.txt", "hi"}}, ""},
		{"path_traversal", []zipFile{{"../evil.exe", "x"}}, ""},
		{"not_a_zip", nil, "garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			scratch := t.TempDir()
			archive := filepath.Join(dir, "bundle.zip")
			if tt.raw != "" {
				if err := os.WriteFile(archive, []byte(tt.raw), 0644); err != nil {
					t.Fatal(err)
				}
			} else {
				writeZip(t, archive, tt.files)
			}

			runner := &testutil.FakeRunner{}
			d := New(Options{Runner: runner, TempDir: scratch})
			out := d.Install(context.Background(), manifest.DriverEntry{Name: "x", InstallType: manifest.TypeZip}, archive, platform.OSWindows)

			if out.Succeeded {
				t.Error("Succeeded = true, want false")
			}
			if runner.CallCount() != 0 {
				t.Errorf("CallCount = %d, want 0", runner.CallCount())
			}
			if left := scratchDirs(t, scratch); len(left) != 0 {
				t.Errorf("scratch dirs not removed: %q", left)
			}
			if _, err := os.Stat(filepath.Join(dir, "evil.exe")); err == nil {
				t.Error("traversal entry written outside scratch dir")
			}
		})
	}
}

func TestZip_InnerMSIUnsupportedOnLinux(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "bundle.zip")
	writeZip(t, archive, []zipFile{{"driver.msi", "msi"}})

	runner := &testutil.FakeRunner{}
	out := New(Options{Runner: runner, TempDir: t.TempDir()}).Install(context.Background(), manifest.DriverEntry{Name: "x", InstallType: manifest.TypeZip}, archive, platform.OSLinux)
	if out.Succeeded || out.Mode != ModeUnsupported {
		t.Errorf("Install() = %+v, want unsupported", out)
	}
}

func TestRegister_OverridesStrategy(t *testing.T) {
	d := New(Options{Runner: &testutil.FakeRunner{}})
	called := false
	d.Register(manifest.TypeExe, "WINDOWS", StrategyFunc(func(ctx context.Context, req Request) Outcome {
		called = true
		return Outcome{Succeeded: true}
	}))

	d.Install(context.Background(), manifest.DriverEntry{Name: "x", InstallType: manifest.TypeExe}, "x.exe", platform.OSWindows)
	if !called {
		t.Error("registered strategy not used")
	}
}
