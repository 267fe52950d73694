package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ZebulonRouseFrantzich/drvsetup/internal/logging"
)

const (
	// DefaultTimeout bounds a single download attempt.
	DefaultTimeout = 600 * time.Second
	// DefaultRetries is the number of retries after the first attempt.
	DefaultRetries = 3
	// DefaultUserAgent is the User-Agent header sent with requests.
	DefaultUserAgent = "drvsetup/1.0"
	// PartSuffix is appended to the destination while a transfer is in flight.
	PartSuffix = ".part"

	progressLogInterval = 10 << 20
	copyBufferSize      = 32 << 10
)

// ErrShortBody is returned when fewer bytes arrive than Content-Length announced.
var ErrShortBody = errors.New("response body shorter than Content-Length")

// Status is the terminal state of a fetch.
type Status string

const (
	StatusCached     Status = "cached"
	StatusDownloaded Status = "downloaded"
	StatusFailed     Status = "failed"
)

// Result describes one Fetch call.
type Result struct {
	Status Status
	// Path is the destination path.
	Path string
	// Attempts is the number of HTTP attempts made. Zero on a cache hit.
	Attempts int
	// Bytes is the size of the transferred body.
	Bytes int64
	// Duration covers all attempts and backoff waits.
	Duration time.Duration
	// Err is the last error when Status is StatusFailed.
	Err error
}

// OK reports whether the artifact is available at Path.
func (r Result) OK() bool {
	return r.Status == StatusCached || r.Status == StatusDownloaded
}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d (%s) from %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
}

// ProgressFunc receives the bytes written so far and the expected total
// (-1 when unknown). It is advisory only.
type ProgressFunc func(written, total int64)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Options configures a Downloader. Zero values select the defaults.
type Options struct {
	Client  *http.Client
	Timeout time.Duration
	// Retries after the first attempt; negative disables retrying.
	Retries   int
	UserAgent string
	Logger    logging.Logger
	Progress  ProgressFunc
	Sleep     SleepFunc
}

// Downloader handles HTTP downloads with retry logic.
type Downloader struct {
	client    *http.Client
	timeout   time.Duration
	retries   int
	userAgent string
	logger    logging.Logger
	progress  ProgressFunc
	sleep     SleepFunc
}

// New creates a downloader.
func New(opts Options) *Downloader {
	d := &Downloader{
		client:    opts.Client,
		timeout:   opts.Timeout,
		retries:   opts.Retries,
		userAgent: opts.UserAgent,
		logger:    logging.OrNop(opts.Logger),
		progress:  opts.Progress,
		sleep:     opts.Sleep,
	}
	if d.client == nil {
		d.client = &http.Client{
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		}
	}
	if d.timeout <= 0 {
		d.timeout = DefaultTimeout
	}
	if d.retries < 0 {
		d.retries = 0
	} else if opts.Retries == 0 {
		d.retries = DefaultRetries
	}
	if d.userAgent == "" {
		d.userAgent = DefaultUserAgent
	}
	if d.sleep == nil {
		d.sleep = contextSleep
	}
	return d
}

// Backoff returns the delay before retry number n (1-based): 1s, 2s, 4s, ...
func Backoff(n int) time.Duration {
	if n < 1 {
		return 0
	}
	return time.Duration(1<<uint(n-1)) * time.Second
}

// Fetch makes the artifact at url available at dest.
//
// An existing dest is a cache hit unless force is set; no request is made.
// Otherwise the body is streamed to dest+PartSuffix and renamed onto dest only
// after a complete transfer, so an interrupted run never leaves a file that
// looks finished.
func (d *Downloader) Fetch(ctx context.Context, url, dest string, force bool) Result {
	start := time.Now()
	res := Result{Path: dest}

	if !force && fileExists(dest) {
		d.logger.Info("using cached artifact", logging.KeyFile, dest)
		res.Status = StatusCached
		return res
	}

	var lastErr error
	for attempt := 0; attempt <= d.retries; attempt++ {
		if attempt > 0 {
			delay := Backoff(attempt)
			d.logger.Info("retrying download",
				logging.KeyURL, url,
				logging.KeyAttempt, attempt+1,
				"delay", delay.String(),
			)
			if err := d.sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}

		if ctx.Err() != nil {
			lastErr = ctx.Err()
			break
		}

		res.Attempts++
		d.logger.Info("downloading",
			logging.KeyURL, url,
			logging.KeyAttempt, attempt+1,
			"maxAttempts", d.retries+1,
		)

		n, err := d.fetchOnce(ctx, url, dest)
		if err == nil {
			res.Status = StatusDownloaded
			res.Bytes = n
			res.Duration = time.Since(start)
			d.logger.Info("download completed",
				logging.KeyFile, dest,
				"bytes", n,
				"duration", res.Duration.String(),
			)
			return res
		}

		lastErr = err
		d.logger.Warn("download attempt failed",
			logging.KeyURL, url,
			logging.KeyAttempt, attempt+1,
			logging.KeyError, err,
		)

		// Don't retry once the parent context is done.
		if ctx.Err() != nil {
			break
		}
	}

	res.Status = StatusFailed
	res.Duration = time.Since(start)
	res.Err = fmt.Errorf("download failed after %d attempt(s): %w", res.Attempts, lastErr)
	d.logger.Error("download failed", logging.KeyURL, url, logging.KeyError, res.Err)
	return res
}

// fetchOnce performs a single attempt bounded by the per-attempt timeout.
func (d *Downloader) fetchOnce(ctx context.Context, url, dest string) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", d.userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, &StatusError{StatusCode: resp.StatusCode, URL: url}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, fmt.Errorf("create dest dir: %w", err)
	}

	tmpPath := dest + PartSuffix
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}

	cleanupNeeded := true
	defer func() {
		tmpFile.Close()
		if cleanupNeeded {
			os.Remove(tmpPath)
		}
	}()

	w := &progressWriter{
		w:      tmpFile,
		total:  resp.ContentLength,
		notify: d.progress,
		logger: d.logger,
		file:   dest,
	}
	n, err := io.CopyBuffer(w, resp.Body, make([]byte, copyBufferSize))
	if err != nil {
		return n, fmt.Errorf("copy response body: %w", err)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return n, fmt.Errorf("%w: got %d of %d bytes", ErrShortBody, n, resp.ContentLength)
	}

	if err := tmpFile.Close(); err != nil {
		return n, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return n, fmt.Errorf("rename temp file: %w", err)
	}

	cleanupNeeded = false
	return n, nil
}

// progressWriter counts bytes, forwards them to the callback and logs every
// progressLogInterval bytes.
type progressWriter struct {
	w       io.Writer
	written int64
	nextLog int64
	total   int64
	notify  ProgressFunc
	logger  logging.Logger
	file    string
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.written += int64(n)

	if p.notify != nil {
		p.notify(p.written, p.total)
	}
	if p.written >= p.nextLog+progressLogInterval {
		p.nextLog = p.written - p.written%progressLogInterval
		if p.total > 0 {
			p.logger.Debug("download progress",
				logging.KeyFile, p.file,
				"bytes", p.written,
				"total", p.total,
				"percent", fmt.Sprintf("%.1f", float64(p.written)*100/float64(p.total)),
			)
		} else {
			p.logger.Debug("download progress", logging.KeyFile, p.file, "bytes", p.written)
		}
	}
	return n, err
}

func contextSleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// fileExists reports whether path is an existing regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular()
}
