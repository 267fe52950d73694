package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ZebulonRouseFrantzich/drvsetup/internal/logging"
	"github.com/ZebulonRouseFrantzich/drvsetup/internal/platform"
)

// Format identifies a manifest document encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatLua  Format = "lua"
)

// maxDocumentSize bounds how much of a manifest file is read.
const maxDocumentSize = 8 << 20

// FormatFromPath picks a format from the file extension. Unknown extensions
// are treated as JSON.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".lua":
		return FormatLua
	default:
		return FormatJSON
	}
}

// ParseError represents a manifest document that could not be decoded.
type ParseError struct {
	Message string // User-friendly message
	Detail  string // Technical details (raw decoder error)
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Message, e.Detail)
}

// Loader reads and validates manifests.
type Loader struct {
	detector platform.Detector
	logger   logging.Logger
}

// NewLoader creates a loader. The detector is only consulted for Lua
// manifests and may be nil, in which case no platform table is injected.
func NewLoader(detector platform.Detector, logger logging.Logger) *Loader {
	return &Loader{detector: detector, logger: logging.OrNop(logger)}
}

// Load reads the manifest at path, picking the decoder by extension.
func (l *Loader) Load(ctx context.Context, path string) (*Manifest, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat manifest: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("manifest path is a directory: %s", path)
	}
	if info.Size() > maxDocumentSize {
		return nil, &ParseError{
			Message: "manifest too large",
			Detail:  fmt.Sprintf("%d bytes, maximum is %d", info.Size(), maxDocumentSize),
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	format := FormatFromPath(path)
	l.logger.Debug("loading manifest", logging.KeyFile, path, "format", string(format))

	m, err := l.Parse(ctx, data, format)
	if err != nil {
		return nil, err
	}
	m.Source = path

	l.logger.Info("manifest loaded", logging.KeyFile, path, "entries", m.Len())
	return m, nil
}

// Parse decodes and validates a manifest document.
func (l *Loader) Parse(ctx context.Context, data []byte, format Format) (*Manifest, error) {
	var (
		entries []wireEntry
		err     error
	)

	switch format {
	case FormatJSON:
		entries, err = decodeJSON(data)
	case FormatYAML:
		entries, err = decodeYAML(data)
	case FormatLua:
		entries, err = l.decodeLua(ctx, data)
	default:
		return nil, fmt.Errorf("unsupported manifest format: %s", format)
	}
	if err != nil {
		return nil, err
	}

	m := &Manifest{Drivers: make([]DriverEntry, 0, len(entries))}
	for i, w := range entries {
		e, err := w.toEntry()
		if err != nil {
			return nil, &ValidationError{Field: fmt.Sprintf("drivers[%d]", i), Message: err.Error()}
		}
		m.Drivers = append(m.Drivers, e)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	for _, e := range m.Drivers {
		if strings.TrimSpace(e.ExpectedHash) == "" && e.InstallType != TypeManual {
			l.logger.Warn("entry has no sha256, integrity will not be checked", logging.KeyEntry, e.Label())
		}
	}

	return m, nil
}

// wireEntry is the document shape of an entry. It accepts both the short
// keys (sha256, type) and their long aliases (expectedHash, installType).
type wireEntry struct {
	Name         string `json:"name" yaml:"name"`
	Version      string `json:"version" yaml:"version"`
	DeviceID     string `json:"deviceId" yaml:"deviceId"`
	URL          string `json:"url" yaml:"url"`
	FileName     string `json:"fileName" yaml:"fileName"`
	SHA256       string `json:"sha256" yaml:"sha256"`
	ExpectedHash string `json:"expectedHash" yaml:"expectedHash"`
	Type         string `json:"type" yaml:"type"`
	InstallType  string `json:"installType" yaml:"installType"`
	OS           string `json:"os" yaml:"os"`
	SilentArgs   string `json:"silentArgs" yaml:"silentArgs"`
	SignatureURL string `json:"signatureUrl" yaml:"signatureUrl"`
	Size         int64  `json:"size" yaml:"size"`
}

func (w wireEntry) toEntry() (DriverEntry, error) {
	hash, err := pickAlias("sha256", w.SHA256, "expectedHash", w.ExpectedHash)
	if err != nil {
		return DriverEntry{}, err
	}
	typ, err := pickAlias("type", w.Type, "installType", w.InstallType)
	if err != nil {
		return DriverEntry{}, err
	}

	return DriverEntry{
		Name:         strings.TrimSpace(w.Name),
		Version:      w.Version,
		DeviceID:     w.DeviceID,
		URL:          strings.TrimSpace(w.URL),
		FileName:     strings.TrimSpace(w.FileName),
		ExpectedHash: strings.TrimSpace(hash),
		InstallType:  InstallType(typ),
		OS:           strings.TrimSpace(w.OS),
		SilentArgs:   w.SilentArgs,
		SignatureURL: strings.TrimSpace(w.SignatureURL),
		Size:         w.Size,
	}, nil
}

func pickAlias(key, value, aliasKey, aliasValue string) (string, error) {
	switch {
	case value == "":
		return aliasValue, nil
	case aliasValue == "" || strings.EqualFold(value, aliasValue):
		return value, nil
	default:
		return "", fmt.Errorf("%s and %s disagree (%q vs %q)", key, aliasKey, value, aliasValue)
	}
}

type wireDocument struct {
	Drivers []wireEntry `json:"drivers" yaml:"drivers"`
}

// decodeJSON accepts {"drivers": [...]} or a bare array.
func decodeJSON(data []byte) ([]wireEntry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &ParseError{Message: "empty manifest", Detail: "document has no content"}
	}

	if trimmed[0] == '[' {
		var entries []wireEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, &ParseError{Message: "invalid JSON manifest", Detail: err.Error()}
		}
		return entries, nil
	}

	var doc struct {
		Drivers *[]wireEntry `json:"drivers"`
	}
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return nil, &ParseError{Message: "invalid JSON manifest", Detail: err.Error()}
	}
	if doc.Drivers == nil {
		return nil, &ParseError{Message: "invalid JSON manifest", Detail: `missing "drivers" array`}
	}
	return *doc.Drivers, nil
}

// decodeYAML accepts a drivers mapping or a bare sequence.
func decodeYAML(data []byte) ([]wireEntry, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, &ParseError{Message: "invalid YAML manifest", Detail: err.Error()}
	}
	if root.Kind != yaml.DocumentNode || len(root.Content) == 0 {
		return nil, &ParseError{Message: "empty manifest", Detail: "document has no content"}
	}

	node := root.Content[0]
	switch node.Kind {
	case yaml.SequenceNode:
		var entries []wireEntry
		if err := node.Decode(&entries); err != nil {
			return nil, &ParseError{Message: "invalid YAML manifest", Detail: err.Error()}
		}
		return entries, nil
	case yaml.MappingNode:
		var doc wireDocument
		if err := node.Decode(&doc); err != nil {
			return nil, &ParseError{Message: "invalid YAML manifest", Detail: err.Error()}
		}
		if doc.Drivers == nil && !hasKey(node, "drivers") {
			return nil, &ParseError{Message: "invalid YAML manifest", Detail: `missing "drivers" list`}
		}
		return doc.Drivers, nil
	default:
		return nil, &ParseError{
			Message: "invalid YAML manifest",
			Detail:  "expected a mapping with drivers or a sequence of entries",
		}
	}
}

func hasKey(mapping *yaml.Node, key string) bool {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return true
		}
	}
	return false
}

// FormatError formats a manifest error for user display.
// In verbose mode the raw decoder detail is shown in full.
func FormatError(err error, verbose bool) string {
	if parseErr, ok := err.(*ParseError); ok {
		if verbose {
			return fmt.Sprintf("%s\n\nDetails:\n%s", parseErr.Message, parseErr.Detail)
		}
		detail := parseErr.Detail
		if idx := strings.Index(detail, "stack traceback"); idx > 0 {
			detail = strings.TrimSpace(detail[:idx])
		}
		return fmt.Sprintf("%s: %s", parseErr.Message, detail)
	}
	return err.Error()
}
