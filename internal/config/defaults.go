package config

const (
	defaultWorkspaceDir      = "~/.local/share/easel/workspace"
	defaultInboxDir          = "~/.local/share/easel/inbox"
	defaultLogDir            = "~/.local/share/easel/logs"
	defaultLedgerPath        = "~/.local/share/easel/easel.db"
	defaultLogRetentionDays  = 60
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultSearchBaseURL     = "https://www.bing.com/images/search"
	defaultQuerySuffix       = "computer science concept"
	defaultScraperUserAgent  = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36"
	defaultScraperTimeout    = 20
	defaultMaxImages         = 4
	defaultMinImageWidth     = 500
	defaultScraperRate       = 1.0
	defaultGeneratorModel    = "gpt-4o"
	defaultGeneratorTimeout  = 120
	defaultRendererProfile   = "square"
	defaultRendererTheme     = "auto"
	defaultRendererWatermark = "easel"
	defaultGraphBaseURL      = "https://graph.facebook.com/v24.0"
	defaultHostingBranch     = "main"
	defaultPublisherTimeout  = 30
	defaultReadyPollSeconds  = 3
	defaultReadyTimeout      = 90
	defaultPublisherRate     = 1.0
	defaultScrapeAttempts    = 4
	defaultGenerateAttempts  = 3
	defaultRenderAttempts    = 3
	defaultPublishAttempts   = 4
	defaultBaseDelayMS       = 1000
	defaultMaxDelayMS        = 30000
	defaultPollInterval      = 15
	defaultStuckResetMinutes = 30
	defaultNotifyTimeout     = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			WorkspaceDir: defaultWorkspaceDir,
			InboxDir:     defaultInboxDir,
			LogDir:       defaultLogDir,
			LedgerPath:   defaultLedgerPath,
		},
		Scraper: Scraper{
			SearchBaseURL:     defaultSearchBaseURL,
			QuerySuffix:       defaultQuerySuffix,
			UserAgent:         defaultScraperUserAgent,
			RequestTimeout:    defaultScraperTimeout,
			MaxImages:         defaultMaxImages,
			MinImageWidth:     defaultMinImageWidth,
			RequestsPerSecond: defaultScraperRate,
		},
		Generator: Generator{
			Model:          defaultGeneratorModel,
			TimeoutSeconds: defaultGeneratorTimeout,
		},
		Renderer: Renderer{
			Profile:   defaultRendererProfile,
			Theme:     defaultRendererTheme,
			Watermark: defaultRendererWatermark,
		},
		Publisher: Publisher{
			GraphBaseURL:        defaultGraphBaseURL,
			HostingBranch:       defaultHostingBranch,
			RequestTimeout:      defaultPublisherTimeout,
			ReadyPollSeconds:    defaultReadyPollSeconds,
			ReadyTimeoutSeconds: defaultReadyTimeout,
			RequestsPerSecond:   defaultPublisherRate,
		},
		Retry: Retry{
			ScrapeAttempts:   defaultScrapeAttempts,
			GenerateAttempts: defaultGenerateAttempts,
			RenderAttempts:   defaultRenderAttempts,
			PublishAttempts:  defaultPublishAttempts,
			BaseDelayMS:      defaultBaseDelayMS,
			MaxDelayMS:       defaultMaxDelayMS,
		},
		Daemon: Daemon{
			PollInterval:      defaultPollInterval,
			StuckResetMinutes: defaultStuckResetMinutes,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Publish:        true,
			Failure:        true,
			Daemon:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
