package testsupport

import (
	"path/filepath"
	"testing"

	"easel/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Generator.APIKey = "test"
	cfgVal.Paths.WorkspaceDir = filepath.Join(base, "workspace")
	cfgVal.Paths.InboxDir = filepath.Join(base, "inbox")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.LedgerPath = filepath.Join(base, "ledger", "easel.db")
	cfgVal.Publisher.DryRun = true

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithGeneratorKey sets the OpenAI API key on the test config.
func WithGeneratorKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Generator.APIKey = key
	}
}

// WithGeneratorEndpoint points the generator at a test server.
func WithGeneratorEndpoint(baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Generator.BaseURL = baseURL
	}
}

// WithPublisherCredentials fills the Graph credentials so preflight and the
// publish stage treat the config as live rather than dry-run.
func WithPublisherCredentials(token, accountID string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Publisher.DryRun = false
		b.cfg.Publisher.AccessToken = token
		b.cfg.Publisher.AccountID = accountID
	}
}

// WithRetryDelays overrides the backoff window so retry-heavy tests run fast.
func WithRetryDelays(baseMS, maxMS int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Retry.BaseDelayMS = baseMS
		b.cfg.Retry.MaxDelayMS = maxMS
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.WorkspaceDir)
}
