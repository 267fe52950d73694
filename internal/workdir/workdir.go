// Package workdir manages the download/working directory shared by a run:
// creation, the single-writer lock, artifact paths and leftover cleanup.
package workdir

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// LockFileName is created inside the working directory while a run holds it.
	LockFileName = ".drvsetup.lock"

	// StaleLockThreshold is the maximum age of a lock before it's considered
	// stale. Driver runs with interactive fallbacks can take a long time.
	StaleLockThreshold = 6 * time.Hour

	// PartSuffix marks in-progress downloads.
	PartSuffix = ".part"
)

var (
	ErrLockExists = errors.New("working directory is locked: another run may be in progress")
	ErrEscapes    = errors.New("path escapes the working directory")
)

// Ensure creates dir if it is missing. It is idempotent.
func Ensure(dir string) error {
	if dir == "" {
		return errors.New("working directory is empty")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create working directory: %w", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("stat working directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("working directory %s is not a directory", dir)
	}
	return nil
}

// Lock is an advisory single-writer lock on a working directory.
type Lock struct {
	path string
	file *os.File
}

// AcquireLock creates the lock file with O_CREATE|O_EXCL. A lock older than
// StaleLockThreshold is replaced once.
func AcquireLock(ctx context.Context, dir string) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if err := Ensure(dir); err != nil {
		return nil, err
	}

	lockPath := filepath.Join(dir, LockFileName)

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		if stale, _ := isLockStale(lockPath); !stale {
			return nil, ErrLockExists
		}
		// Remove stale lock and retry once
		os.Remove(lockPath)
		file, err = os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
		if err != nil {
			return nil, ErrLockExists
		}
	}

	lockData := fmt.Sprintf("pid=%d\ntimestamp=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(lockData); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("write lock data: %w", err)
	}

	return &Lock{path: lockPath, file: file}, nil
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release releases the lock. It is safe to call more than once.
func (l *Lock) Release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}
	if l.path != "" {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove lock file: %w", err)
		}
		l.path = ""
	}
	return nil
}

func isLockStale(lockPath string) (bool, error) {
	info, err := os.Stat(lockPath)
	if err != nil {
		return false, err
	}
	return time.Since(info.ModTime()) > StaleLockThreshold, nil
}

// ArtifactPath joins fileName onto dir and rejects results outside dir.
func ArtifactPath(dir, fileName string) (string, error) {
	if fileName == "" || strings.ContainsAny(fileName, `/\`) || filepath.IsAbs(fileName) {
		return "", fmt.Errorf("%w: %q", ErrEscapes, fileName)
	}
	target := filepath.Join(dir, fileName)
	rel, err := filepath.Rel(filepath.Clean(dir), target)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("%w: %q", ErrEscapes, fileName)
	}
	return target, nil
}

// CleanPartials removes leftover *.part files from interrupted downloads and
// returns the names it removed.
func CleanPartials(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read working directory: %w", err)
	}

	var removed []string
	var errs []error
	for _, e := range entries {
		if !e.Type().IsRegular() || !strings.HasSuffix(e.Name(), PartSuffix) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", e.Name(), err))
			continue
		}
		removed = append(removed, e.Name())
	}
	return removed, errors.Join(errs...)
}
