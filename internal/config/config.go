package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and data file configuration.
type Paths struct {
	WorkspaceDir string `toml:"workspace_dir"`
	InboxDir     string `toml:"inbox_dir"`
	LogDir       string `toml:"log_dir"`
	LedgerPath   string `toml:"ledger_path"`
}

// Scraper contains configuration for topic material collection.
type Scraper struct {
	SearchBaseURL     string  `toml:"search_base_url"`
	QuerySuffix       string  `toml:"query_suffix"`
	UserAgent         string  `toml:"user_agent"`
	RequestTimeout    int     `toml:"request_timeout"`
	MaxImages         int     `toml:"max_images"`
	MinImageWidth     int     `toml:"min_image_width"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

// Generator contains configuration for AI slide content generation.
type Generator struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Renderer contains configuration for slide image rendering.
type Renderer struct {
	Profile   string `toml:"profile"`
	Theme     string `toml:"theme"`
	Watermark string `toml:"watermark"`
}

// Publisher contains configuration for carousel publishing and image hosting.
type Publisher struct {
	DryRun              bool    `toml:"dry_run"`
	GraphBaseURL        string  `toml:"graph_base_url"`
	AccessToken         string  `toml:"access_token"`
	AccountID           string  `toml:"account_id"`
	HostingOwner        string  `toml:"hosting_owner"`
	HostingRepo         string  `toml:"hosting_repo"`
	HostingBranch       string  `toml:"hosting_branch"`
	HostingToken        string  `toml:"hosting_token"`
	RequestTimeout      int     `toml:"request_timeout"`
	ReadyPollSeconds    int     `toml:"ready_poll_seconds"`
	ReadyTimeoutSeconds int     `toml:"ready_timeout_seconds"`
	RequestsPerSecond   float64 `toml:"requests_per_second"`
}

// Retry contains per-stage attempt budgets and backoff timing.
type Retry struct {
	ScrapeAttempts   int `toml:"scrape_attempts"`
	GenerateAttempts int `toml:"generate_attempts"`
	RenderAttempts   int `toml:"render_attempts"`
	PublishAttempts  int `toml:"publish_attempts"`
	BaseDelayMS      int `toml:"base_delay_ms"`
	MaxDelayMS       int `toml:"max_delay_ms"`
}

// Daemon contains configuration for scheduler timing.
type Daemon struct {
	PollInterval      int `toml:"poll_interval"`
	StuckResetMinutes int `toml:"stuck_reset_minutes"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Publish        bool   `toml:"publish"`
	Failure        bool   `toml:"failure"`
	Daemon         bool   `toml:"daemon"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for Easel.
//
// Configuration sections by subsystem:
//   - Paths: workspace, inbox, log, and ledger file locations
//   - Scraper: search endpoint, politeness, and image limits
//   - Generator: AI model connection settings
//   - Renderer: canvas profile, theme, and watermark
//   - Publisher: Graph API credentials and slide hosting repo
//   - Retry: per-stage attempt budgets and backoff delays
//   - Daemon: scheduler polling and stale-claim recovery
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Scraper       Scraper       `toml:"scraper"`
	Generator     Generator     `toml:"generator"`
	Renderer      Renderer      `toml:"renderer"`
	Publisher     Publisher     `toml:"publisher"`
	Retry         Retry         `toml:"retry"`
	Daemon        Daemon        `toml:"daemon"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/easel/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/easel/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("easel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.WorkspaceDir, c.Paths.InboxDir, c.Paths.LogDir}
	if trimmed := strings.TrimSpace(c.Paths.LedgerPath); trimmed != "" {
		dirs = append(dirs, filepath.Dir(trimmed))
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	sample := sampleConfig

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// lookupEnv returns the first non-empty value among the named environment variables.
func lookupEnv(names ...string) string {
	for _, name := range names {
		if value, ok := os.LookupEnv(name); ok {
			if trimmed := strings.TrimSpace(value); trimmed != "" {
				return trimmed
			}
		}
	}
	return ""
}
