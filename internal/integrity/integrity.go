// Package integrity checks downloaded driver artifacts against their
// expected SHA-256 digests and, optionally, detached OpenPGP signatures.
package integrity

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ChunkSize is the read size used when hashing files.
const ChunkSize = 64 << 10

// ErrSizeMismatch is returned by CheckSize when the file size differs.
var ErrSizeMismatch = errors.New("file size mismatch")

// Result is the outcome of a digest comparison.
type Result struct {
	// Valid is true when the digest matched or no digest was expected.
	Valid bool
	// Skipped is true when no digest was expected; the pass carries no
	// cryptographic guarantee.
	Skipped bool
	// Expected is the normalized (lower-case) expected digest.
	Expected string
	// Computed is the lower-case hex digest of the file. Empty when Skipped.
	Computed string
}

// ComputeSHA256 streams the file through SHA-256 in ChunkSize reads.
func ComputeSHA256(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	hasher := sha256.New()
	buf := make([]byte, ChunkSize)
	if _, err := io.CopyBuffer(hasher, struct{ io.Reader }{f}, buf); err != nil {
		return "", fmt.Errorf("hash file: %w", err)
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Verify compares the file's SHA-256 digest with expected, ignoring case and
// surrounding whitespace. An empty expected digest is a skipped pass.
// The file is never modified.
func Verify(path, expected string) (Result, error) {
	expected = strings.ToLower(strings.TrimSpace(expected))
	if expected == "" {
		return Result{Valid: true, Skipped: true}, nil
	}

	computed, err := ComputeSHA256(path)
	if err != nil {
		return Result{Expected: expected}, err
	}

	return Result{
		Valid:    strings.EqualFold(computed, expected),
		Expected: expected,
		Computed: computed,
	}, nil
}

// CheckSize reports ErrSizeMismatch when the file is not exactly want bytes.
// A non-positive want disables the check.
func CheckSize(path string, want int64) error {
	if want <= 0 {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat file: %w", err)
	}
	if info.Size() != want {
		return fmt.Errorf("%w: expected %d bytes, got %d", ErrSizeMismatch, want, info.Size())
	}
	return nil
}

// Validator adapts the package functions to the pipeline's verifier
// interface and adds optional signature checking.
type Validator struct {
	signatures *SignatureVerifier
}

// NewValidator creates a validator. signatures may be nil.
func NewValidator(signatures *SignatureVerifier) *Validator {
	return &Validator{signatures: signatures}
}

// Verify calls the package-level Verify.
func (v *Validator) Verify(path, expected string) (Result, error) {
	return Verify(path, expected)
}

// CheckSize calls the package-level CheckSize.
func (v *Validator) CheckSize(path string, want int64) error {
	return CheckSize(path, want)
}

// HasKeyring reports whether signature checks can run.
func (v *Validator) HasKeyring() bool {
	return v.signatures != nil
}

// VerifySignature checks a detached signature against the configured keyring.
// It returns ErrNoKeyring when none is configured.
func (v *Validator) VerifySignature(path, signaturePath string) (string, error) {
	if v.signatures == nil {
		return "", ErrNoKeyring
	}
	return v.signatures.VerifyDetached(path, signaturePath)
}
