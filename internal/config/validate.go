package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateScraper(); err != nil {
		return err
	}
	if err := c.validateGenerator(); err != nil {
		return err
	}
	if err := c.validateRenderer(); err != nil {
		return err
	}
	if err := c.validatePublisher(); err != nil {
		return err
	}
	if err := c.validateRetry(); err != nil {
		return err
	}
	if err := c.validateDaemon(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateScraper() error {
	return ensurePositiveMap(map[string]int{
		"scraper.request_timeout": c.Scraper.RequestTimeout,
		"scraper.max_images":      c.Scraper.MaxImages,
		"scraper.min_image_width": c.Scraper.MinImageWidth,
	})
}

func (c *Config) validateGenerator() error {
	if c.Generator.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/easel/config.toml"
		}
		return fmt.Errorf("generator.api_key is required. Set OPENAI_API_KEY env var or edit %s (create with 'easel config init')", defaultPath)
	}
	if c.Generator.TimeoutSeconds <= 0 {
		return errors.New("generator.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateRenderer() error {
	switch c.Renderer.Profile {
	case "square", "story":
	default:
		return fmt.Errorf("renderer.profile must be \"square\" or \"story\", got %q", c.Renderer.Profile)
	}
	if c.Renderer.Theme == "" {
		return errors.New("renderer.theme must be set")
	}
	return nil
}

// Publisher credentials are checked by preflight and the publish stage, not
// here. A run with missing credentials still scrapes, generates, and renders.
func (c *Config) validatePublisher() error {
	if strings.TrimSpace(c.Publisher.GraphBaseURL) == "" {
		return errors.New("publisher.graph_base_url must be set")
	}
	if err := ensurePositiveMap(map[string]int{
		"publisher.request_timeout":       c.Publisher.RequestTimeout,
		"publisher.ready_poll_seconds":    c.Publisher.ReadyPollSeconds,
		"publisher.ready_timeout_seconds": c.Publisher.ReadyTimeoutSeconds,
	}); err != nil {
		return err
	}
	if c.Publisher.ReadyTimeoutSeconds <= c.Publisher.ReadyPollSeconds {
		return errors.New("publisher.ready_timeout_seconds must be greater than publisher.ready_poll_seconds")
	}
	return nil
}

func (c *Config) validateRetry() error {
	if err := ensurePositiveMap(map[string]int{
		"retry.scrape_attempts":   c.Retry.ScrapeAttempts,
		"retry.generate_attempts": c.Retry.GenerateAttempts,
		"retry.render_attempts":   c.Retry.RenderAttempts,
		"retry.publish_attempts":  c.Retry.PublishAttempts,
		"retry.base_delay_ms":     c.Retry.BaseDelayMS,
	}); err != nil {
		return err
	}
	if c.Retry.MaxDelayMS < c.Retry.BaseDelayMS {
		return errors.New("retry.max_delay_ms must be >= retry.base_delay_ms")
	}
	return nil
}

func (c *Config) validateDaemon() error {
	return ensurePositiveMap(map[string]int{
		"daemon.poll_interval":       c.Daemon.PollInterval,
		"daemon.stuck_reset_minutes": c.Daemon.StuckResetMinutes,
	})
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
