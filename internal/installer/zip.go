package installer

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ZebulonRouseFrantzich/drvsetup/internal/command"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/logging"
)

// MaxExtractedSize bounds the total uncompressed size of an archive.
const MaxExtractedSize int64 = 4 << 30

func (in *installers) zip(ctx context.Context, req Request, d *Dispatcher) Outcome {
	scratch, err := os.MkdirTemp(in.tempDir, "drvsetup-zip-")
	if err != nil {
		return Outcome{ExitCode: command.ExitCodeNotRun, Mode: ModeSilent, Message: fmt.Sprintf("create extraction dir: %v", err)}
	}
	defer func() {
		if err := os.RemoveAll(scratch); err != nil {
			in.logger.Warn("failed to remove extraction dir", "dir", scratch, logging.KeyError, err)
		}
	}()

	if err := extractZip(req.Path, scratch); err != nil {
		return Outcome{ExitCode: command.ExitCodeNotRun, Mode: ModeSilent, Message: fmt.Sprintf("extract archive: %v", err)}
	}

	inner, err := findInnerInstaller(scratch)
	if err != nil {
		return Outcome{ExitCode: command.ExitCodeNotRun, Mode: ModeSilent, Message: err.Error()}
	}

	rel, _ := filepath.Rel(scratch, inner)
	rel = filepath.ToSlash(rel)
	in.logger.Info("installing from archive", logging.KeyEntry, req.Entry.Label(), logging.KeyFile, rel)

	out := d.installInner(ctx, req, inner)
	out.InnerFile = rel
	return out
}

// extractZip extracts archivePath into destDir, rejecting entries that
// would land outside it.
func extractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	root := filepath.Clean(destDir) + string(os.PathSeparator)
	var total int64

	for _, f := range r.File {
		target := filepath.Join(destDir, f.Name)

		// Security check: prevent path traversal
		if !strings.HasPrefix(target, root) {
			return fmt.Errorf("illegal file path: %s", f.Name)
		}

		mode := f.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("create directory %s: %w", target, err)
			}
		case mode.IsRegular():
			total += int64(f.UncompressedSize64)
			if total > MaxExtractedSize {
				return fmt.Errorf("archive expands beyond %d bytes", MaxExtractedSize)
			}
			if err := extractZipFile(f, target); err != nil {
				return err
			}
		default:
			// Symlinks and devices are skipped.
			continue
		}
	}

	return nil
}

func extractZipFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("create parent dir for %s: %w", target, err)
	}

	src, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer src.Close()

	outFile, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create file %s: %w", target, err)
	}

	if _, err := io.Copy(outFile, io.LimitReader(src, int64(f.UncompressedSize64)+1)); err != nil {
		outFile.Close()
		return fmt.Errorf("write file %s: %w", target, err)
	}

	return outFile.Close()
}

// findInnerInstaller returns the first .exe or .msi under dir in sorted
// path order.
func findInnerInstaller(dir string) (string, error) {
	var candidates []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".exe", ".msi":
			candidates = append(candidates, path)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("scan archive contents: %w", err)
	}
	if len(candidates) == 0 {
		return "", fmt.Errorf("no .exe or .msi installer found in archive")
	}

	sort.Slice(candidates, func(i, j int) bool {
		return filepath.ToSlash(candidates[i]) < filepath.ToSlash(candidates[j])
	})
	return candidates[0], nil
}
