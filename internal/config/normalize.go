package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeScraper()
	c.normalizeGenerator()
	c.normalizeRenderer()
	c.normalizePublisher()
	c.normalizeRetry()
	c.normalizeDaemon()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.WorkspaceDir) == "" {
		c.Paths.WorkspaceDir = defaultWorkspaceDir
	}
	if c.Paths.WorkspaceDir, err = expandPath(c.Paths.WorkspaceDir); err != nil {
		return fmt.Errorf("paths.workspace_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.InboxDir) == "" {
		c.Paths.InboxDir = defaultInboxDir
	}
	if c.Paths.InboxDir, err = expandPath(c.Paths.InboxDir); err != nil {
		return fmt.Errorf("paths.inbox_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LedgerPath) == "" {
		c.Paths.LedgerPath = defaultLedgerPath
	}
	if c.Paths.LedgerPath, err = expandPath(c.Paths.LedgerPath); err != nil {
		return fmt.Errorf("paths.ledger_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeScraper() {
	c.Scraper.SearchBaseURL = strings.TrimSpace(c.Scraper.SearchBaseURL)
	if c.Scraper.SearchBaseURL == "" {
		c.Scraper.SearchBaseURL = defaultSearchBaseURL
	}
	c.Scraper.QuerySuffix = strings.TrimSpace(c.Scraper.QuerySuffix)
	c.Scraper.UserAgent = strings.TrimSpace(c.Scraper.UserAgent)
	if c.Scraper.UserAgent == "" {
		c.Scraper.UserAgent = defaultScraperUserAgent
	}
	if c.Scraper.RequestTimeout <= 0 {
		c.Scraper.RequestTimeout = defaultScraperTimeout
	}
	if c.Scraper.MaxImages <= 0 {
		c.Scraper.MaxImages = defaultMaxImages
	}
	if c.Scraper.MinImageWidth <= 0 {
		c.Scraper.MinImageWidth = defaultMinImageWidth
	}
	if c.Scraper.RequestsPerSecond <= 0 {
		c.Scraper.RequestsPerSecond = defaultScraperRate
	}
}

func (c *Config) normalizeGenerator() {
	c.Generator.APIKey = strings.TrimSpace(c.Generator.APIKey)
	if c.Generator.APIKey == "" {
		c.Generator.APIKey = lookupEnv("EASEL_OPENAI_API_KEY", "OPENAI_API_KEY")
	}
	c.Generator.BaseURL = strings.TrimSpace(c.Generator.BaseURL)
	c.Generator.Model = strings.TrimSpace(c.Generator.Model)
	if c.Generator.Model == "" {
		c.Generator.Model = defaultGeneratorModel
	}
	if c.Generator.TimeoutSeconds <= 0 {
		c.Generator.TimeoutSeconds = defaultGeneratorTimeout
	}
}

func (c *Config) normalizeRenderer() {
	c.Renderer.Profile = strings.ToLower(strings.TrimSpace(c.Renderer.Profile))
	if c.Renderer.Profile == "" {
		c.Renderer.Profile = defaultRendererProfile
	}
	c.Renderer.Theme = strings.ToLower(strings.TrimSpace(c.Renderer.Theme))
	if c.Renderer.Theme == "" {
		c.Renderer.Theme = defaultRendererTheme
	}
	c.Renderer.Watermark = strings.TrimSpace(c.Renderer.Watermark)
}

func (c *Config) normalizePublisher() {
	c.Publisher.GraphBaseURL = strings.TrimRight(strings.TrimSpace(c.Publisher.GraphBaseURL), "/")
	if c.Publisher.GraphBaseURL == "" {
		c.Publisher.GraphBaseURL = defaultGraphBaseURL
	}
	c.Publisher.AccessToken = strings.TrimSpace(c.Publisher.AccessToken)
	if c.Publisher.AccessToken == "" {
		c.Publisher.AccessToken = lookupEnv("EASEL_GRAPH_TOKEN", "IG_ACCESS_TOKEN")
	}
	c.Publisher.AccountID = strings.TrimSpace(c.Publisher.AccountID)
	if c.Publisher.AccountID == "" {
		c.Publisher.AccountID = lookupEnv("EASEL_GRAPH_ACCOUNT", "IG_ACCOUNT_ID")
	}
	c.Publisher.HostingOwner = strings.TrimSpace(c.Publisher.HostingOwner)
	c.Publisher.HostingRepo = strings.TrimSpace(c.Publisher.HostingRepo)
	c.Publisher.HostingBranch = strings.TrimSpace(c.Publisher.HostingBranch)
	if c.Publisher.HostingBranch == "" {
		c.Publisher.HostingBranch = defaultHostingBranch
	}
	c.Publisher.HostingToken = strings.TrimSpace(c.Publisher.HostingToken)
	if c.Publisher.HostingToken == "" {
		c.Publisher.HostingToken = lookupEnv("EASEL_GITHUB_TOKEN", "GITHUB_TOKEN")
	}
	if c.Publisher.RequestTimeout <= 0 {
		c.Publisher.RequestTimeout = defaultPublisherTimeout
	}
	if c.Publisher.ReadyPollSeconds <= 0 {
		c.Publisher.ReadyPollSeconds = defaultReadyPollSeconds
	}
	if c.Publisher.ReadyTimeoutSeconds <= 0 {
		c.Publisher.ReadyTimeoutSeconds = defaultReadyTimeout
	}
	if c.Publisher.RequestsPerSecond <= 0 {
		c.Publisher.RequestsPerSecond = defaultPublisherRate
	}
}

func (c *Config) normalizeRetry() {
	if c.Retry.ScrapeAttempts <= 0 {
		c.Retry.ScrapeAttempts = defaultScrapeAttempts
	}
	if c.Retry.GenerateAttempts <= 0 {
		c.Retry.GenerateAttempts = defaultGenerateAttempts
	}
	if c.Retry.RenderAttempts <= 0 {
		c.Retry.RenderAttempts = defaultRenderAttempts
	}
	if c.Retry.PublishAttempts <= 0 {
		c.Retry.PublishAttempts = defaultPublishAttempts
	}
	if c.Retry.BaseDelayMS <= 0 {
		c.Retry.BaseDelayMS = defaultBaseDelayMS
	}
	if c.Retry.MaxDelayMS <= 0 {
		c.Retry.MaxDelayMS = defaultMaxDelayMS
	}
}

func (c *Config) normalizeDaemon() {
	if c.Daemon.PollInterval <= 0 {
		c.Daemon.PollInterval = defaultPollInterval
	}
	if c.Daemon.StuckResetMinutes <= 0 {
		c.Daemon.StuckResetMinutes = defaultStuckResetMinutes
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
