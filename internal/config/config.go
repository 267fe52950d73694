// Package config loads drvsetup settings from an optional YAML file, the
// environment (DRVSETUP_ prefix) and command-line flags, in increasing order
// of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// EnvPrefix is prepended to every environment variable key.
	EnvPrefix = "DRVSETUP"

	// ConfigName is the config file base name searched for without --config.
	ConfigName = "drvsetup"

	DefaultManifest        = "./downloads/drivers.json"
	DefaultLogFile         = "setup-drivers.log"
	DefaultLogFormat       = "text"
	DefaultDownloadTimeout = 600 * time.Second
	DefaultDownloadRetries = 3
	DefaultUserAgent       = "drvsetup/1.0"
)

// Setting keys.
const (
	KeyManifest        = "manifest"
	KeyWorkDir         = "work_dir"
	KeyAutoReboot      = "auto_reboot"
	KeyForce           = "force"
	KeyDryRun          = "dry_run"
	KeyVerbose         = "verbose"
	KeyLogFile         = "log_file"
	KeyLogFormat       = "log_format"
	KeyKeyring         = "keyring"
	KeyDownloadTimeout = "download_timeout"
	KeyDownloadRetries = "download_retries"
	KeyUserAgent       = "user_agent"
	KeySkipPreflight   = "skip_preflight"
	KeyTargetOS        = "target_os"
)

// Settings holds every runtime option.
type Settings struct {
	Manifest   string `mapstructure:"manifest"`
	WorkDir    string `mapstructure:"work_dir"`
	AutoReboot bool   `mapstructure:"auto_reboot"`
	Force      bool   `mapstructure:"force"`
	DryRun     bool   `mapstructure:"dry_run"`

	Verbose   bool   `mapstructure:"verbose"`
	LogFile   string `mapstructure:"log_file"`
	LogFormat string `mapstructure:"log_format"`

	// Keyring is an OpenPGP public keyring used for detached signatures.
	Keyring string `mapstructure:"keyring"`

	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	DownloadRetries int           `mapstructure:"download_retries"`
	UserAgent       string        `mapstructure:"user_agent"`

	SkipPreflight bool `mapstructure:"skip_preflight"`

	// TargetOS overrides host detection; empty means the running OS.
	TargetOS string `mapstructure:"target_os"`
}

// flagKeys maps CLI flag names onto setting keys.
var flagKeys = map[string]string{
	"manifest":         KeyManifest,
	"work-dir":         KeyWorkDir,
	"auto-reboot":      KeyAutoReboot,
	"force":            KeyForce,
	"dry-run":          KeyDryRun,
	"verbose":          KeyVerbose,
	"log-file":         KeyLogFile,
	"log-format":       KeyLogFormat,
	"keyring":          KeyKeyring,
	"download-timeout": KeyDownloadTimeout,
	"download-retries": KeyDownloadRetries,
	"user-agent":       KeyUserAgent,
	"skip-preflight":   KeySkipPreflight,
	"target-os":        KeyTargetOS,
}

// LoadOptions selects the sources Load reads.
type LoadOptions struct {
	// ConfigFile is an explicit config path; it must exist when set.
	ConfigFile string
	// SearchPaths are tried for drvsetup.yaml when ConfigFile is empty.
	// Nil means the current directory and the user config directory.
	SearchPaths []string
	// Flags are bound on top of the environment. Only flags the user set
	// override lower layers.
	Flags *pflag.FlagSet
}

// Loaded is the result of Load.
type Loaded struct {
	Settings *Settings
	// File is the config file that was read, or empty.
	File string
}

// Load reads settings from every configured source.
func Load(opts LoadOptions) (*Loaded, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName(ConfigName)
		v.SetConfigType("yaml")
		paths := opts.SearchPaths
		if paths == nil {
			paths = DefaultSearchPaths()
		}
		for _, p := range paths {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if opts.ConfigFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	s.normalize()

	return &Loaded{Settings: &s, File: v.ConfigFileUsed()}, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyManifest, DefaultManifest)
	v.SetDefault(KeyWorkDir, "")
	v.SetDefault(KeyAutoReboot, false)
	v.SetDefault(KeyForce, false)
	v.SetDefault(KeyDryRun, false)
	v.SetDefault(KeyVerbose, false)
	v.SetDefault(KeyLogFile, DefaultLogFile)
	v.SetDefault(KeyLogFormat, DefaultLogFormat)
	v.SetDefault(KeyKeyring, "")
	v.SetDefault(KeyDownloadTimeout, DefaultDownloadTimeout)
	v.SetDefault(KeyDownloadRetries, DefaultDownloadRetries)
	v.SetDefault(KeyUserAgent, DefaultUserAgent)
	v.SetDefault(KeySkipPreflight, false)
	v.SetDefault(KeyTargetOS, "")
}

// DefaultSearchPaths returns the current directory and the user config
// directory's drvsetup folder.
func DefaultSearchPaths() []string {
	paths := []string{"."}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, "drvsetup"))
	}
	return paths
}

func (s *Settings) normalize() {
	s.LogFormat = strings.ToLower(strings.TrimSpace(s.LogFormat))
	s.TargetOS = strings.ToLower(strings.TrimSpace(s.TargetOS))
}

// EffectiveWorkDir returns WorkDir, or the manifest's directory when unset.
func (s *Settings) EffectiveWorkDir() string {
	if s.WorkDir != "" {
		return s.WorkDir
	}
	return filepath.Dir(s.Manifest)
}

// ValidationError describes an invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid setting %s: %s", e.Field, e.Message)
}

// Validate checks the settings for values no component can use.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.Manifest) == "" {
		return &ValidationError{Field: KeyManifest, Message: "manifest path cannot be empty"}
	}
	switch s.LogFormat {
	case "text", "json":
	default:
		return &ValidationError{Field: KeyLogFormat, Message: fmt.Sprintf("unknown format %q (expected text or json)", s.LogFormat)}
	}
	if s.DownloadTimeout <= 0 {
		return &ValidationError{Field: KeyDownloadTimeout, Message: "must be positive"}
	}
	if s.DownloadRetries < 0 {
		return &ValidationError{Field: KeyDownloadRetries, Message: "cannot be negative"}
	}
	switch s.TargetOS {
	case "", "windows", "linux":
	default:
		return &ValidationError{Field: KeyTargetOS, Message: fmt.Sprintf("unsupported os %q (expected windows or linux)", s.TargetOS)}
	}
	if s.Keyring != "" {
		info, err := os.Stat(s.Keyring)
		if err != nil {
			return &ValidationError{Field: KeyKeyring, Message: fmt.Sprintf("cannot read keyring: %v", err)}
		}
		if info.IsDir() {
			return &ValidationError{Field: KeyKeyring, Message: "keyring is a directory"}
		}
	}
	return nil
}
