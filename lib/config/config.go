// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/casproxy/lib/auth"
	"github.com/bureau-foundation/casproxy/lib/compress"
	"github.com/bureau-foundation/casproxy/lib/remote"
)

// Environment variable names.
const (
	EnvConfig          = "CASPROXY_CONFIG"
	EnvToken           = "CASPROXY_TOKEN"
	EnvDeprecatedToken = "CASPROXY_CONFIG_TOKEN"
	EnvCI              = "CI"
)

// Config is the casproxy configuration.
type Config struct {
	// ServerURL is the base URL of the cache service. Required.
	ServerURL string `yaml:"server_url"`

	// FullHandle is "account/project". Required by serve and the
	// cache commands, optional for auth.
	FullHandle string `yaml:"full_handle"`

	// CacheURL pins the cache endpoint, skipping discovery and
	// latency probes.
	CacheURL string `yaml:"cache_url"`

	// Compression is zstd, lz4, or none. Default: zstd.
	Compression string `yaml:"compression"`

	// LogLevel is debug, info, warn, or error. Default: info.
	LogLevel string `yaml:"log_level"`

	Paths PathsConfig `yaml:"paths"`

	// RequestTimeout bounds each remote HTTP request. Default: 2m.
	RequestTimeout time.Duration `yaml:"request_timeout"`

	// ProbeTimeout bounds each endpoint latency probe. Default: 5s.
	ProbeTimeout time.Duration `yaml:"probe_timeout"`

	// CI contains overrides applied when running under CI.
	CI *Overrides `yaml:"ci,omitempty"`

	// Env is read from the process environment, not the file.
	Env auth.Environment `yaml:"-"`
}

// Overrides contains the fields a "ci" section may override.
type Overrides struct {
	ServerURL      string        `yaml:"server_url,omitempty"`
	CacheURL       string        `yaml:"cache_url,omitempty"`
	Compression    string        `yaml:"compression,omitempty"`
	LogLevel       string        `yaml:"log_level,omitempty"`
	RequestTimeout time.Duration `yaml:"request_timeout,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// ConfigDir holds credentials.
	// Default: $XDG_CONFIG_HOME/casproxy or ~/.config/casproxy.
	ConfigDir string `yaml:"config_dir"`

	// StateDir holds metadata, lock files, and sockets.
	// Default: $XDG_STATE_HOME/casproxy or ~/.local/state/casproxy.
	StateDir string `yaml:"state_dir"`
}

// Default returns the configuration used before a file is applied.
func Default() *Config {
	return &Config{
		Compression: "zstd",
		LogLevel:    "info",
		Paths: PathsConfig{
			ConfigDir: xdgDir("XDG_CONFIG_HOME", ".config"),
			StateDir:  xdgDir("XDG_STATE_HOME", filepath.Join(".local", "state")),
		},
		RequestTimeout: 2 * time.Minute,
		ProbeTimeout:   5 * time.Second,
	}
}

func xdgDir(variable, fallback string) string {
	if base := os.Getenv(variable); base != "" {
		return filepath.Join(base, "casproxy")
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, fallback, "casproxy")
}

// Load loads the file named by CASPROXY_CONFIG, or defaults when it
// is unset. The environment overlay is applied either way.
func Load() (*Config, error) {
	if path := os.Getenv(EnvConfig); path != "" {
		return LoadFile(path)
	}
	cfg := Default()
	cfg.ApplyEnvironment(os.Getenv)
	return cfg, nil
}

// LoadFile loads configuration from path over the defaults, then
// applies the environment overlay, the CI section, and variable
// expansion.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.ApplyEnvironment(os.Getenv)
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// ApplyEnvironment reads the CI and token variables through getenv,
// applies the CI section when CI is set, and expands path variables.
func (c *Config) ApplyEnvironment(getenv func(string) string) {
	c.Env = auth.Environment{
		CI:              truthy(getenv(EnvCI)),
		Token:           getenv(EnvToken),
		DeprecatedToken: getenv(EnvDeprecatedToken),
	}
	if c.Env.CI {
		c.applyOverrides(c.CI)
	}
	c.expandVariables(getenv)
}

// truthy treats any value other than empty, "0", and "false" as set.
func truthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "0", "false":
		return false
	}
	return true
}

func (c *Config) applyOverrides(overrides *Overrides) {
	if overrides == nil {
		return
	}
	if overrides.ServerURL != "" {
		c.ServerURL = overrides.ServerURL
	}
	if overrides.CacheURL != "" {
		c.CacheURL = overrides.CacheURL
	}
	if overrides.Compression != "" {
		c.Compression = overrides.Compression
	}
	if overrides.LogLevel != "" {
		c.LogLevel = overrides.LogLevel
	}
	if overrides.RequestTimeout != 0 {
		c.RequestTimeout = overrides.RequestTimeout
	}
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func (c *Config) expandVariables(getenv func(string) string) {
	c.Paths.ConfigDir = expandVars(c.Paths.ConfigDir, getenv)
	c.Paths.StateDir = expandVars(c.Paths.StateDir, getenv)
}

func expandVars(s string, getenv func(string) string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name, defaultValue := parts[1], parts[2]
		if value := getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error

	if c.ServerURL == "" {
		errs = append(errs, errors.New("server_url is required"))
	} else if err := validateHTTPURL(c.ServerURL); err != nil {
		errs = append(errs, fmt.Errorf("server_url: %w", err))
	}
	if c.CacheURL != "" {
		if err := validateHTTPURL(c.CacheURL); err != nil {
			errs = append(errs, fmt.Errorf("cache_url: %w", err))
		}
	}
	if c.FullHandle != "" {
		if _, err := remote.ParseFullHandle(c.FullHandle); err != nil {
			errs = append(errs, fmt.Errorf("full_handle: %w", err))
		}
	}
	if _, err := compress.ParseAlgorithm(c.Compression); err != nil {
		errs = append(errs, fmt.Errorf("compression: %w", err))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level: %w", err))
	}
	if c.Paths.ConfigDir == "" {
		errs = append(errs, errors.New("paths.config_dir is required"))
	}
	if c.Paths.StateDir == "" {
		errs = append(errs, errors.New("paths.state_dir is required"))
	}
	if c.RequestTimeout < 0 {
		errs = append(errs, errors.New("request_timeout must not be negative"))
	}
	if c.ProbeTimeout < 0 {
		errs = append(errs, errors.New("probe_timeout must not be negative"))
	}

	return errors.Join(errs...)
}

func validateHTTPURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%q must be an http or https URL", raw)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%q has no host", raw)
	}
	return nil
}

// Handle parses FullHandle.
func (c *Config) Handle() (remote.FullHandle, error) {
	if c.FullHandle == "" {
		return remote.FullHandle{}, errors.New("full_handle is required (set it in the config file or pass --full-handle)")
	}
	return remote.ParseFullHandle(c.FullHandle)
}

// Algorithm parses Compression.
func (c *Config) Algorithm() (compress.Algorithm, error) {
	return compress.ParseAlgorithm(c.Compression)
}

// ParseLogLevel maps a log_level value to a slog level. Empty means
// info.
func ParseLogLevel(value string) (slog.Level, error) {
	switch strings.ToLower(value) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q (want debug, info, warn, or error)", value)
}

// AuthLockDir is the directory holding the per-server refresh locks.
func (c *Config) AuthLockDir() string {
	return filepath.Join(c.Paths.StateDir, "auth-locks")
}

// EnsurePaths creates the configured directories with owner-only
// permissions.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.ConfigDir, c.Paths.StateDir} {
		if err := os.MkdirAll(path, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
