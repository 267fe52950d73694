// Package report renders run summaries for the console and writes them to
// disk as JSON.
package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZebulonRouseFrantzich/drvsetup/internal/pipeline"
)

// FileName returns the report file name for a run.
func FileName(runID string) string {
	return fmt.Sprintf("drvsetup-report-%s.json", runID)
}

// WriteJSON writes the summary into dir and returns the file path.
// The file is written to a temporary name and renamed into place.
func WriteJSON(dir string, sum *pipeline.Summary) (string, error) {
	if sum == nil {
		return "", fmt.Errorf("write report: summary is nil")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}

	finalPath := filepath.Join(dir, FileName(sum.RunID))
	tmpPath := finalPath + ".tmp"

	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return "", fmt.Errorf("write temporary report file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("rename report file: %w", err)
	}
	return finalPath, nil
}

// ReadJSON loads a report written by WriteJSON.
func ReadJSON(path string) (*pipeline.Summary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	var sum pipeline.Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		return nil, fmt.Errorf("parse report: %w", err)
	}
	return &sum, nil
}

const rule = "======================================================================"

// Format renders the console summary.
func Format(sum *pipeline.Summary) string {
	var b strings.Builder

	b.WriteString(rule + "\n")
	b.WriteString("Installation Summary:\n")
	fmt.Fprintf(&b, "  Total drivers: %d\n", sum.Total)
	fmt.Fprintf(&b, "  Successful: %d\n", sum.Succeeded)
	fmt.Fprintf(&b, "  Failed: %d\n", sum.Failed)
	fmt.Fprintf(&b, "  Success rate: %.1f%%\n", successRate(sum))
	if sum.DryRun {
		b.WriteString("  Mode: dry run (nothing was installed)\n")
	}
	b.WriteString(rule + "\n")

	if len(sum.Results) > 0 {
		b.WriteString("\n")
	}
	for _, r := range sum.Results {
		symbol := "✓"
		if !r.Succeeded() {
			symbol = "✗"
		}
		fmt.Fprintf(&b, "  %s %s (%s, %s)\n", symbol, r.Name, r.FileName, r.InstallType)
		for _, line := range detailLines(r) {
			fmt.Fprintf(&b, "      %s\n", line)
		}
	}

	if sum.Reboot.Triggered {
		fmt.Fprintf(&b, "\nReboot: triggered (%s)\n", sum.Reboot.Command)
	} else if sum.Reboot.Instruction != "" {
		fmt.Fprintf(&b, "\n%s\n", sum.Reboot.Instruction)
	}

	return b.String()
}

func successRate(sum *pipeline.Summary) float64 {
	if sum.Total == 0 {
		return 0
	}
	return float64(sum.Succeeded) / float64(sum.Total) * 100
}

func detailLines(r pipeline.EntryResult) []string {
	var lines []string

	switch {
	case r.Cached:
		lines = append(lines, "download: cached")
	case r.Downloaded:
		lines = append(lines, fmt.Sprintf("download: ok (%d attempt(s))", r.DownloadAttempts))
	}

	switch {
	case r.HashSkipped:
		lines = append(lines, "sha256: not provided")
	case r.ComputedHash != "" && r.FailedStage == pipeline.StageIntegrity:
		lines = append(lines, "sha256 expected: "+r.ExpectedHash, "sha256 computed: "+r.ComputedHash)
	case r.ComputedHash != "":
		lines = append(lines, "sha256: "+r.ComputedHash)
	}
	if r.Signer != "" {
		lines = append(lines, "signed by: "+r.Signer)
	}

	if r.Mode != "" {
		install := "install: " + string(r.Mode)
		if r.Args != "" {
			install += " " + r.Args
		}
		if r.ExitCode >= 0 {
			install += fmt.Sprintf(" (exit code %d)", r.ExitCode)
		}
		lines = append(lines, install)
	}
	if r.InnerFile != "" {
		lines = append(lines, "archive installer: "+r.InnerFile)
	}
	if r.NotePath != "" {
		lines = append(lines, "instructions: "+r.NotePath)
	}
	if r.FailedStage != "" {
		lines = append(lines, fmt.Sprintf("failed at %s: %s", r.FailedStage, r.Error))
	}
	return lines
}
