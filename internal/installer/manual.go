package installer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/drvsetup/internal/command"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/logging"
)

// NoteSuffix is appended to manual instruction file names.
const NoteSuffix = ".manual.txt"

// NoteFileName returns the instruction file name for an entry key, normally
// its unique fileName.
func NoteFileName(key string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, key)
	return name + NoteSuffix
}

// manual writes an instruction note next to the artifact. It never spawns a
// process and never requests a reboot.
func (in *installers) manual(ctx context.Context, req Request) Outcome {
	dir := filepath.Dir(req.Path)
	key := req.Entry.FileName
	if key == "" {
		key = req.Entry.Label()
	}
	notePath := filepath.Join(dir, NoteFileName(key))

	var b strings.Builder
	b.WriteString("Manual Installation Required\n")
	b.WriteString(strings.Repeat("=", 40) + "\n\n")
	fmt.Fprintf(&b, "Driver: %s\n", req.Entry.Label())
	if req.Entry.Version != "" {
		fmt.Fprintf(&b, "Version: %s\n", req.Entry.Version)
	}
	fmt.Fprintf(&b, "URL: %s\n", req.Entry.URL)
	fmt.Fprintf(&b, "Timestamp: %s\n\n", in.clock.Now().Format(time.RFC3339))
	b.WriteString("Please download and install this driver manually.\n")

	if err := os.WriteFile(notePath, []byte(b.String()), 0644); err != nil {
		in.logger.Error("failed to write manual install note", logging.KeyEntry, req.Entry.Label(), logging.KeyError, err)
		return Outcome{ExitCode: command.ExitCodeNotRun, Mode: ModeManual, Message: fmt.Sprintf("write manual note: %v", err)}
	}

	in.logger.Warn("manual installation required", logging.KeyEntry, req.Entry.Label(), logging.KeyFile, notePath)
	return Outcome{
		Succeeded: true,
		ExitCode:  command.ExitCodeNotRun,
		Mode:      ModeManual,
		NotePath:  notePath,
		Message:   "manual installation required, see " + notePath,
	}
}
