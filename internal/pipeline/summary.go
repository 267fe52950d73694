package pipeline

import (
	"time"

	"github.com/ZebulonRouseFrantzich/drvsetup/internal/installer"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/manifest"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/reboot"
)

// Stage names the step at which an entry stopped.
type Stage string

const (
	StageDownload  Stage = "download"
	StageIntegrity Stage = "integrity"
	StageSignature Stage = "signature"
	StageInstall   Stage = "install"
)

// EntryResult is the record for one manifest entry.
type EntryResult struct {
	Index       int                  `json:"index"`
	Name        string               `json:"name"`
	FileName    string               `json:"fileName"`
	InstallType manifest.InstallType `json:"type"`
	URL         string               `json:"url,omitempty"`
	Path        string               `json:"path,omitempty"`

	Downloaded       bool  `json:"downloaded"`
	Cached           bool  `json:"cached"`
	DownloadAttempts int   `json:"downloadAttempts,omitempty"`
	Bytes            int64 `json:"bytes,omitempty"`

	Validated    bool   `json:"validated"`
	HashSkipped  bool   `json:"hashSkipped,omitempty"`
	ExpectedHash string `json:"expectedHash,omitempty"`
	ComputedHash string `json:"computedHash,omitempty"`
	Signer       string `json:"signer,omitempty"`

	Installed       bool                `json:"installed"`
	ExitCode        int                 `json:"exitCode"`
	Mode            installer.Mode      `json:"mode,omitempty"`
	Args            string              `json:"args,omitempty"`
	Attempts        []installer.Attempt `json:"attempts,omitempty"`
	InnerFile       string              `json:"innerFile,omitempty"`
	NotePath        string              `json:"notePath,omitempty"`
	RebootRequested bool                `json:"rebootRequested"`
	Message         string              `json:"message,omitempty"`

	// FailedStage is empty for successful entries.
	FailedStage Stage         `json:"failedStage,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// Succeeded reports whether the entry was installed.
func (r EntryResult) Succeeded() bool {
	return r.Installed && r.FailedStage == ""
}

func (r *EntryResult) fail(stage Stage, err error) {
	r.FailedStage = stage
	r.Error = err.Error()
}

// Summary is the outcome of a run.
type Summary struct {
	RunID      string    `json:"runId"`
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	WorkDir    string    `json:"workDir"`
	OS         string    `json:"os"`
	DryRun     bool      `json:"dryRun"`

	Total     int `json:"total"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`

	// Results holds one record per entry, in manifest order.
	Results []EntryResult `json:"results"`

	RebootRequired bool              `json:"rebootRequired"`
	Reboot         reboot.Resolution `json:"reboot"`
}

// Duration is the wall time of the run.
func (s *Summary) Duration() time.Duration {
	if s.FinishedAt.Before(s.StartedAt) {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// HasFailures reports whether any entry failed.
func (s *Summary) HasFailures() bool {
	return s.Failed > 0
}

// FailedResults returns the failed entries in order.
func (s *Summary) FailedResults() []EntryResult {
	var out []EntryResult
	for _, r := range s.Results {
		if !r.Succeeded() {
			out = append(out, r)
		}
	}
	return out
}

func (s *Summary) tally() {
	s.Total = len(s.Results)
	s.Succeeded, s.Failed = 0, 0
	for _, r := range s.Results {
		if r.Succeeded() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
}
