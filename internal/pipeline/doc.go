// Package pipeline runs the per-entry download, verify and install steps
// over a manifest and resolves the reboot once at the end.
//
// # Processing Model
//
// Entries are processed strictly in order, one at a time. A failure at any
// step is recorded on that entry's result and processing moves on; only a
// missing working directory stops a run.
//
// For each entry:
//  1. Download to <workDir>/<fileName>, reusing a cached file unless forced
//  2. Check size (when set) and SHA-256 (when set, otherwise warn)
//  3. Verify the detached signature when signatureUrl and a keyring are set
//  4. Install through the Installer and record whether a reboot is needed
//
// Manual entries without a URL go straight to step 4.
//
// # Reboot
//
// The reboot flag is sticky: once any entry requests it, it stays set for
// the run. The reboot coordinator acts at most once, after the last entry.
package pipeline
