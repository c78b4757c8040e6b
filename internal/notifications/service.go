package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"easel/internal/config"
)

const userAgent = "Easel/0.1.0"

// Service defines the notification surface exposed to the run loop.
type Service interface {
	NotifyPublished(ctx context.Context, topic, permalink string, slides int) error
	NotifyRunFailed(ctx context.Context, topic, stage, reason string) error
	NotifyPublishedUnrecorded(ctx context.Context, topic, postID string) error
	NotifyDaemonStarted(ctx context.Context, pollInterval time.Duration) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint:  topic,
		client:    &http.Client{Timeout: timeout},
		onPublish: cfg.Notifications.Publish,
		onFailure: cfg.Notifications.Failure,
		onDaemon:  cfg.Notifications.Daemon,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint  string
	client    *http.Client
	onPublish bool
	onFailure bool
	onDaemon  bool
}

func (n *ntfyService) NotifyPublished(ctx context.Context, topic, permalink string, slides int) error {
	if !n.onPublish {
		return nil
	}
	topic = strings.TrimSpace(topic)
	message := fmt.Sprintf("✅ Published: %s (%d slides)", topic, slides)
	if permalink = strings.TrimSpace(permalink); permalink != "" {
		message = fmt.Sprintf("%s\n%s", message, permalink)
	}
	data := payload{
		title:   "Easel - Published",
		message: message,
		tags:    []string{"easel", "publish", "completed"},
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyRunFailed(ctx context.Context, topic, stage, reason string) error {
	if !n.onFailure {
		return nil
	}
	topic = strings.TrimSpace(topic)
	stage = strings.TrimSpace(stage)
	if stage == "" {
		stage = "unknown"
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown"
	}
	data := payload{
		title:    "Easel - Run Failed",
		message:  fmt.Sprintf("❌ %s failed at %s: %s", topic, stage, reason),
		tags:     []string{"easel", "run", "failed"},
		priority: "high",
	}
	return n.send(ctx, data)
}

// NotifyPublishedUnrecorded fires even when failure notifications are
// disabled. The post is live but the ledger has no row for it, so a
// later run of the same topic would publish a duplicate unless someone
// reconciles by hand.
func (n *ntfyService) NotifyPublishedUnrecorded(ctx context.Context, topic, postID string) error {
	topic = strings.TrimSpace(topic)
	postID = strings.TrimSpace(postID)
	data := payload{
		title:    "Easel - Ledger Out Of Sync",
		message:  fmt.Sprintf("⚠️ Post %s for %s is live but was not recorded\nReconcile the ledger before re-running this topic", postID, topic),
		tags:     []string{"easel", "ledger", "alert"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) NotifyDaemonStarted(ctx context.Context, pollInterval time.Duration) error {
	if !n.onDaemon {
		return nil
	}
	data := payload{
		title:    "Easel - Daemon Started",
		message:  fmt.Sprintf("Watching inbox, polling every %s", pollInterval.Round(time.Second)),
		tags:     []string{"easel", "daemon", "started"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Easel - Test",
		message:  "Notification system test",
		tags:     []string{"easel", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyPublished(context.Context, string, string, int) error      { return nil }
func (noopService) NotifyRunFailed(context.Context, string, string, string) error   { return nil }
func (noopService) NotifyPublishedUnrecorded(context.Context, string, string) error { return nil }
func (noopService) NotifyDaemonStarted(context.Context, time.Duration) error        { return nil }
func (noopService) TestNotification(context.Context) error                          { return nil }
