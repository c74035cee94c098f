// Package config handles loading and managing teledash configuration.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/teledash/teledash/internal/fileutil"
)

// DefaultAPIURL is the API origin used when none is configured.
const DefaultAPIURL = "http://127.0.0.1:8000"

// Environment overrides.
const (
	EnvHome   = "TELEDASH_HOME"
	EnvAPIURL = "TELEDASH_API_URL"
	EnvAPIKey = "TELEDASH_API_KEY"
)

// RemoteConfig holds message API connection settings.
type RemoteConfig struct {
	URL            string  `toml:"url"`             // API origin
	APIKey         string  `toml:"api_key"`         // Sent as X-API-Key when set
	AllowInsecure  bool    `toml:"allow_insecure"`  // Allow plain HTTP to non-local hosts
	TimeoutSeconds int     `toml:"timeout_seconds"` // Per-request timeout
	RateLimitQPS   float64 `toml:"rate_limit_qps"`  // Client-side pacing, 0 = off
}

// ViewConfig holds dashboard settings.
type ViewConfig struct {
	PageSize         int `toml:"page_size"`
	SearchDebounceMS int `toml:"search_debounce_ms"`
}

// ExportConfig holds export settings.
type ExportConfig struct {
	Dir string `toml:"dir"` // Where messages.csv / messages.xlsx are written
	// ProcessedHonorsFilters applies the processed table's filters to its
	// export. Off by default: processed exports cover the whole dataset.
	ProcessedHonorsFilters bool `toml:"processed_honors_filters"`
}

// ScheduleConfig defines the cron schedules used by `teledash watch`.
type ScheduleConfig struct {
	FetchRecent string `toml:"fetch_recent"` // Cron expression, e.g. "*/15 * * * *"
	Process     string `toml:"process"`      // Cron expression, e.g. "0 * * * *"
	Enabled     bool   `toml:"enabled"`
}

// Config represents the teledash configuration.
type Config struct {
	Remote   RemoteConfig   `toml:"remote"`
	View     ViewConfig     `toml:"view"`
	Export   ExportConfig   `toml:"export"`
	Schedule ScheduleConfig `toml:"schedule"`

	// Computed paths (not from config file)
	HomeDir    string `toml:"-"`
	configPath string
}

// DefaultHome returns the default teledash home directory.
// Respects TELEDASH_HOME environment variable.
func DefaultHome() string {
	if h := os.Getenv(EnvHome); h != "" {
		return expandPath(h)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".teledash"
	}
	return filepath.Join(home, ".teledash")
}

// NewDefaultConfig returns a configuration with default values rooted at
// DefaultHome().
func NewDefaultConfig() *Config {
	return newDefaultConfig(DefaultHome())
}

func newDefaultConfig(homeDir string) *Config {
	return &Config{
		HomeDir: homeDir,
		Remote: RemoteConfig{
			URL:            DefaultAPIURL,
			TimeoutSeconds: 30,
		},
		View: ViewConfig{
			PageSize:         10,
			SearchDebounceMS: 300,
		},
		configPath: filepath.Join(homeDir, "config.toml"),
	}
}

// Load reads the configuration.
//
// If path is set, that file must exist and the home directory becomes its
// parent. Otherwise config.toml is read from homeDir (or DefaultHome() when
// homeDir is empty); a missing file there yields the defaults.
// Environment overrides are applied last.
func Load(path, homeDir string) (*Config, error) {
	explicit := path != ""
	switch {
	case explicit:
		path = expandPath(path)
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
		homeDir = filepath.Dir(path)
	case homeDir != "":
		homeDir = expandPath(homeDir)
	default:
		homeDir = DefaultHome()
	}
	if !explicit {
		path = filepath.Join(homeDir, "config.toml")
	}

	cfg := newDefaultConfig(homeDir)
	cfg.configPath = path

	if _, err := os.Stat(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("stat config: %w", err)
		}
		if explicit {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		cfg.applyEnv()
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, decodeError(err)
	}

	cfg.Export.Dir = expandPath(cfg.Export.Dir)
	cfg.applyEnv()
	return cfg, nil
}

// decodeError adds a hint for the most common TOML mistake: Windows paths
// in double-quoted strings, where backslashes start escape sequences.
func decodeError(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "invalid escape") || strings.Contains(msg, "hexadecimal digits") {
		return fmt.Errorf("decode config: %w\n"+
			"hint: backslashes in double-quoted strings are escapes; "+
			"use forward slashes (\"C:/exports\") or single quotes ('C:\\exports')", err)
	}
	return fmt.Errorf("decode config: %w", err)
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.Remote.URL = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.Remote.APIKey = v
	}
}

// LoadEnvFiles loads KEY=VALUE pairs from ./.env and <homeDir>/.env into the
// process environment. Variables that are already set win; missing files are
// skipped.
func LoadEnvFiles(homeDir string) error {
	candidates := []string{".env"}
	if homeDir != "" {
		candidates = append(candidates, filepath.Join(expandPath(homeDir), ".env"))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// ConfigFilePath returns the path of the loaded (or to-be-written) config file.
func (c *Config) ConfigFilePath() string {
	if c.configPath != "" {
		return c.configPath
	}
	return filepath.Join(c.HomeDir, "config.toml")
}

// EnsureHomeDir creates the home directory with owner-only permissions.
func (c *Config) EnsureHomeDir() error {
	return fileutil.SecureMkdirAll(c.HomeDir, 0700)
}

// Save writes the configuration to ConfigFilePath(). The file may hold an
// API key, so it is owner-readable only.
func (c *Config) Save() error {
	if err := c.EnsureHomeDir(); err != nil {
		return fmt.Errorf("create home dir: %w", err)
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(c); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return fileutil.WriteAtomic(c.ConfigFilePath(), 0600, func(w io.Writer) error {
		_, err := w.Write(buf.Bytes())
		return err
	})
}

// Validate reports settings that cannot work.
func (c *Config) Validate() error {
	if c.Remote.URL == "" {
		return errors.New("remote.url is required")
	}
	if c.Remote.TimeoutSeconds < 0 {
		return fmt.Errorf("remote.timeout_seconds must not be negative, got %d", c.Remote.TimeoutSeconds)
	}
	if c.Remote.RateLimitQPS < 0 {
		return fmt.Errorf("remote.rate_limit_qps must not be negative, got %g", c.Remote.RateLimitQPS)
	}
	if c.View.PageSize < 0 {
		return fmt.Errorf("view.page_size must not be negative, got %d", c.View.PageSize)
	}
	return nil
}

// Timeout returns the per-request timeout. Zero means the client default.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Remote.TimeoutSeconds) * time.Second
}

// SearchDebounce returns the search input quiescence window.
func (c *Config) SearchDebounce() time.Duration {
	if c.View.SearchDebounceMS <= 0 {
		return 300 * time.Millisecond
	}
	return time.Duration(c.View.SearchDebounceMS) * time.Millisecond
}

// ExportDir returns the directory exports are written to.
func (c *Config) ExportDir() string {
	if c.Export.Dir == "" {
		return "."
	}
	return c.Export.Dir
}

// Scheduled reports whether `teledash watch` has anything to run.
func (c *Config) Scheduled() bool {
	return c.Schedule.Enabled && (c.Schedule.FetchRecent != "" || c.Schedule.Process != "")
}

// expandPath expands ~ to the user's home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
