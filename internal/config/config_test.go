package config_test

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"easel/internal/config"
)

func TestLoadDefaultConfigUsesEnvAPIKeyAndExpandsPaths(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantWorkspace := filepath.Join(tempHome, ".local", "share", "easel", "workspace")
	if cfg.Paths.WorkspaceDir != wantWorkspace {
		t.Fatalf("unexpected workspace dir: got %q want %q", cfg.Paths.WorkspaceDir, wantWorkspace)
	}
	if cfg.Paths.LedgerPath != filepath.Join(tempHome, ".local", "share", "easel", "easel.db") {
		t.Fatalf("unexpected ledger path: %q", cfg.Paths.LedgerPath)
	}
	if cfg.Generator.APIKey != "test-key" {
		t.Fatalf("expected generator key from env, got %q", cfg.Generator.APIKey)
	}
	if cfg.Generator.Model != "gpt-4o" {
		t.Fatalf("unexpected generator model: %q", cfg.Generator.Model)
	}
	if cfg.Renderer.Profile != "square" {
		t.Fatalf("unexpected renderer profile: %q", cfg.Renderer.Profile)
	}
	if cfg.Publisher.GraphBaseURL != config.Default().Publisher.GraphBaseURL {
		t.Fatalf("unexpected graph base url: %q", cfg.Publisher.GraphBaseURL)
	}
	if cfg.Publisher.DryRun {
		t.Fatal("expected dry run disabled by default")
	}
	if cfg.Retry.ScrapeAttempts != 4 || cfg.Retry.GenerateAttempts != 3 {
		t.Fatalf("unexpected retry defaults: %+v", cfg.Retry)
	}
	if cfg.Retry.BaseDelayMS != 1000 || cfg.Retry.MaxDelayMS != 30000 {
		t.Fatalf("unexpected delay defaults: %+v", cfg.Retry)
	}
	if cfg.Scraper.MaxImages != 4 {
		t.Fatalf("unexpected scraper max images: %d", cfg.Scraper.MaxImages)
	}
	if cfg.Daemon.PollInterval != config.Default().Daemon.PollInterval {
		t.Fatalf("unexpected poll interval: %d", cfg.Daemon.PollInterval)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.WorkspaceDir, cfg.Paths.InboxDir, cfg.Paths.LogDir, filepath.Dir(cfg.Paths.LedgerPath)} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "easel.toml")

	type payload struct {
		Generator struct {
			APIKey string `toml:"api_key"`
			Model  string `toml:"model"`
		} `toml:"generator"`
		Scraper struct {
			MaxImages int `toml:"max_images"`
		} `toml:"scraper"`
		Retry struct {
			PublishAttempts int `toml:"publish_attempts"`
			MaxDelayMS      int `toml:"max_delay_ms"`
		} `toml:"retry"`
	}
	custom := payload{}
	custom.Generator.APIKey = "abc123"
	custom.Generator.Model = "gpt-4o-mini"
	custom.Scraper.MaxImages = 6
	custom.Retry.PublishAttempts = 2
	custom.Retry.MaxDelayMS = 45000
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.Generator.APIKey != "abc123" {
		t.Fatalf("expected generator key from file, got %q", cfg.Generator.APIKey)
	}
	if cfg.Generator.Model != "gpt-4o-mini" {
		t.Fatalf("expected model override, got %q", cfg.Generator.Model)
	}
	if cfg.Scraper.MaxImages != 6 {
		t.Fatalf("expected max images 6, got %d", cfg.Scraper.MaxImages)
	}
	if cfg.Retry.PublishAttempts != 2 {
		t.Fatalf("expected publish attempts 2, got %d", cfg.Retry.PublishAttempts)
	}
	if cfg.Retry.MaxDelayMS != 45000 {
		t.Fatalf("expected max delay 45000, got %d", cfg.Retry.MaxDelayMS)
	}
	if cfg.Retry.ScrapeAttempts != 4 {
		t.Fatalf("expected unset scrape attempts to keep default, got %d", cfg.Retry.ScrapeAttempts)
	}
}

func TestSecretsPreferConfigValueOverEnv(t *testing.T) {
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "easel.toml")

	type payload struct {
		Generator struct {
			APIKey string `toml:"api_key"`
		} `toml:"generator"`
		Publisher struct {
			AccessToken string `toml:"access_token"`
		} `toml:"publisher"`
	}
	custom := payload{}
	custom.Generator.APIKey = "file-openai"
	custom.Publisher.AccessToken = "file-graph"
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	t.Setenv("OPENAI_API_KEY", "env-openai")
	t.Setenv("IG_ACCESS_TOKEN", "env-graph")
	t.Setenv("IG_ACCOUNT_ID", "env-account")
	t.Setenv("GITHUB_TOKEN", "env-github")

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Generator.APIKey != "file-openai" {
		t.Errorf("expected generator key from file, got %q", cfg.Generator.APIKey)
	}
	if cfg.Publisher.AccessToken != "file-graph" {
		t.Errorf("expected access token from file, got %q", cfg.Publisher.AccessToken)
	}
	if cfg.Publisher.AccountID != "env-account" {
		t.Errorf("expected account id from env fallback, got %q", cfg.Publisher.AccountID)
	}
	if cfg.Publisher.HostingToken != "env-github" {
		t.Errorf("expected hosting token from env fallback, got %q", cfg.Publisher.HostingToken)
	}
}

func TestEaselPrefixedEnvWinsOverGeneric(t *testing.T) {
	t.Setenv("EASEL_OPENAI_API_KEY", "scoped")
	t.Setenv("OPENAI_API_KEY", "generic")

	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "easel.toml")
	if err := os.WriteFile(configPath, []byte(""), 0o644); err != nil {
		t.Fatalf("write empty config: %v", err)
	}

	loaded, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.Generator.APIKey != "scoped" {
		t.Fatalf("expected EASEL_OPENAI_API_KEY to win, got %q", loaded.Generator.APIKey)
	}
}

func TestCreateSample(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample failed: %v", err)
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(contents), "[retry]") {
		t.Fatalf("sample config missing retry section: %s", contents)
	}

	var cfg config.Config
	if err := toml.Unmarshal(contents, &cfg); err != nil {
		t.Fatalf("unmarshal sample: %v", err)
	}

	if runtime.GOOS != "windows" {
		if !strings.Contains(cfg.Paths.WorkspaceDir, "easel") {
			t.Fatalf("expected workspace dir to contain easel, got %q", cfg.Paths.WorkspaceDir)
		}
	}
	if cfg.Retry.ScrapeAttempts != 4 {
		t.Fatalf("expected sample scrape attempts 4, got %d", cfg.Retry.ScrapeAttempts)
	}
	if cfg.Renderer.Profile != "square" {
		t.Fatalf("expected sample profile square, got %q", cfg.Renderer.Profile)
	}
}

func TestValidateDetectsInvalidValues(t *testing.T) {
	cfg := config.Default()
	cfg.Generator.APIKey = "key"
	cfg.Scraper.RequestTimeout = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive scraper timeout")
	}

	cfg = config.Default()
	cfg.Generator.APIKey = "key"
	cfg.Renderer.Profile = "banner"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for unknown renderer profile")
	}

	cfg = config.Default()
	cfg.Generator.APIKey = "key"
	cfg.Retry.MaxDelayMS = cfg.Retry.BaseDelayMS - 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when max delay below base delay")
	}

	cfg = config.Default()
	cfg.Generator.APIKey = "key"
	cfg.Publisher.ReadyTimeoutSeconds = cfg.Publisher.ReadyPollSeconds
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when ready timeout <= poll interval")
	}

	cfg = config.Default()
	cfg.Generator.APIKey = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing generator api key")
	}
}

func TestMissingPublisherCredentialsPassValidation(t *testing.T) {
	cfg := config.Default()
	cfg.Generator.APIKey = "key"
	cfg.Publisher.AccessToken = ""
	cfg.Publisher.AccountID = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected missing publisher credentials to pass validation, got %v", err)
	}
}
