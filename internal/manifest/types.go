package manifest

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/ZebulonRouseFrantzich/drvsetup/internal/workdir"
)

// SignatureSuffix is appended to an entry's fileName for its downloaded
// detached signature.
const SignatureSuffix = ".sig"

// InstallType selects the install strategy for an entry.
type InstallType string

// The closed set of install types.
const (
	TypeExe    InstallType = "exe"
	TypeMSI    InstallType = "msi"
	TypeZip    InstallType = "zip"
	TypeDeb    InstallType = "deb"
	TypeRPM    InstallType = "rpm"
	TypeManual InstallType = "manual"
)

// InstallTypes lists every valid install type.
var InstallTypes = []InstallType{TypeExe, TypeMSI, TypeZip, TypeDeb, TypeRPM, TypeManual}

// Valid reports whether t is a member of the closed set.
func (t InstallType) Valid() bool {
	for _, known := range InstallTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseInstallType normalizes s and checks it against the closed set.
func ParseInstallType(s string) (InstallType, error) {
	t := InstallType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown install type %q (expected one of exe, msi, zip, deb, rpm, manual)", s)
	}
	return t, nil
}

// MaxEntryCount bounds the number of entries in a single manifest.
const MaxEntryCount = 1000

// DriverEntry is one manifest row.
type DriverEntry struct {
	// Name is a human-readable label, not unique.
	Name string `json:"name" yaml:"name"`

	Version  string `json:"version,omitempty" yaml:"version,omitempty"`
	DeviceID string `json:"deviceId,omitempty" yaml:"deviceId,omitempty"`

	// URL is the artifact source. Optional for manual entries.
	URL string `json:"url" yaml:"url"`

	// FileName is the artifact name inside the working directory.
	FileName string `json:"fileName" yaml:"fileName"`

	// ExpectedHash is an optional hex SHA-256 digest.
	ExpectedHash string `json:"sha256,omitempty" yaml:"sha256,omitempty"`

	InstallType InstallType `json:"type" yaml:"type"`

	// OS restricts the entry to one platform ("windows" or "linux").
	OS string `json:"os,omitempty" yaml:"os,omitempty"`

	SilentArgs string `json:"silentArgs,omitempty" yaml:"silentArgs,omitempty"`

	// SignatureURL points at a detached OpenPGP signature for the artifact.
	SignatureURL string `json:"signatureUrl,omitempty" yaml:"signatureUrl,omitempty"`

	// Size is the expected artifact size in bytes; zero means unknown.
	Size int64 `json:"size,omitempty" yaml:"size,omitempty"`
}

// Label returns a name suitable for log lines.
func (e DriverEntry) Label() string {
	if e.Name != "" {
		return e.Name
	}
	if e.FileName != "" {
		return e.FileName
	}
	return "unnamed"
}

// Manifest is an ordered sequence of driver entries.
type Manifest struct {
	Drivers []DriverEntry `json:"drivers" yaml:"drivers"`

	// Source is the path the manifest was loaded from, if any.
	Source string `json:"-" yaml:"-"`
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	return len(m.Drivers)
}

// ForOS returns a copy of m holding only entries that apply to goos.
// Entries without an os field apply everywhere. The second return value
// lists the entries that were dropped.
func (m *Manifest) ForOS(goos string) (*Manifest, []DriverEntry) {
	goos = strings.ToLower(strings.TrimSpace(goos))
	out := &Manifest{Source: m.Source}
	var skipped []DriverEntry
	for _, e := range m.Drivers {
		if e.OS != "" && strings.ToLower(e.OS) != goos {
			skipped = append(skipped, e)
			continue
		}
		out.Drivers = append(out.Drivers, e)
	}
	return out, skipped
}

// ValidationError is returned when a manifest document is well-formed but
// describes an invalid entry.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "manifest validation failed for " + e.Field + ": " + e.Message
	}
	return "manifest validation failed: " + e.Message
}

// Validate checks every entry and the manifest as a whole.
// Install types are normalized to lower case in place.
func (m *Manifest) Validate() error {
	if len(m.Drivers) > MaxEntryCount {
		return &ValidationError{
			Field:   "drivers",
			Message: fmt.Sprintf("too many entries (%d), maximum is %d", len(m.Drivers), MaxEntryCount),
		}
	}

	seen := make(map[string]int, len(m.Drivers))
	for i := range m.Drivers {
		e := &m.Drivers[i]
		field := fmt.Sprintf("drivers[%d]", i)

		if strings.TrimSpace(e.Name) == "" {
			return &ValidationError{Field: field + ".name", Message: "name cannot be empty"}
		}

		t, err := ParseInstallType(string(e.InstallType))
		if err != nil {
			return &ValidationError{Field: field + ".type", Message: err.Error()}
		}
		e.InstallType = t

		if err := validateFileName(e.FileName); err != nil {
			return &ValidationError{Field: field + ".fileName", Message: err.Error()}
		}
		key := strings.ToLower(e.FileName)
		if prev, dup := seen[key]; dup {
			return &ValidationError{
				Field:   field + ".fileName",
				Message: fmt.Sprintf("duplicate fileName %q (also used by drivers[%d])", e.FileName, prev),
			}
		}
		seen[key] = i

		if t != TypeManual || e.URL != "" {
			if err := validateURL(e.URL); err != nil {
				return &ValidationError{Field: field + ".url", Message: err.Error()}
			}
		}
		if e.SignatureURL != "" {
			if err := validateURL(e.SignatureURL); err != nil {
				return &ValidationError{Field: field + ".signatureUrl", Message: err.Error()}
			}
		}

		if err := validateHash(e.ExpectedHash); err != nil {
			return &ValidationError{Field: field + ".sha256", Message: err.Error()}
		}

		if e.OS != "" {
			switch strings.ToLower(e.OS) {
			case "windows", "linux":
			default:
				return &ValidationError{
					Field:   field + ".os",
					Message: fmt.Sprintf("unsupported os %q (expected windows or linux)", e.OS),
				}
			}
		}

		if e.Size < 0 {
			return &ValidationError{Field: field + ".size", Message: "size cannot be negative"}
		}
	}

	for i, e := range m.Drivers {
		base, ok := strings.CutSuffix(strings.ToLower(e.FileName), SignatureSuffix)
		if !ok {
			continue
		}
		if j, exists := seen[base]; exists && m.Drivers[j].SignatureURL != "" {
			return &ValidationError{
				Field:   fmt.Sprintf("drivers[%d].fileName", i),
				Message: fmt.Sprintf("fileName %q collides with the signature file of drivers[%d]", e.FileName, j),
			}
		}
	}

	return nil
}

// validateFileName rejects names that could escape the working directory.
func validateFileName(name string) error {
	if name == "" {
		return fmt.Errorf("fileName cannot be empty")
	}
	if len(name) > 255 {
		return fmt.Errorf("fileName too long (%d chars, max 255)", len(name))
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return fmt.Errorf("fileName must not contain path separators or '..': %q", name)
	}
	if filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return fmt.Errorf("fileName must be relative: %q", name)
	}
	if strings.ContainsRune(name, 0) || strings.ContainsRune(name, ':') {
		return fmt.Errorf("fileName contains an invalid character: %q", name)
	}
	if strings.HasSuffix(strings.ToLower(name), workdir.PartSuffix) {
		return fmt.Errorf("fileName must not end in %s, partial downloads are removed at startup: %q", workdir.PartSuffix, name)
	}
	return nil
}

func validateURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("url must use https:// or http:// scheme (got: %s)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("url has no host: %s", raw)
	}
	return nil
}

func validateHash(h string) error {
	h = strings.TrimSpace(h)
	if h == "" {
		return nil
	}
	if len(h) != 64 {
		return fmt.Errorf("sha256 must be 64 hex characters (got %d)", len(h))
	}
	if _, err := hex.DecodeString(h); err != nil {
		return fmt.Errorf("sha256 is not valid hex: %w", err)
	}
	return nil
}
