package publish

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/pipeline"
	"easel/internal/services"
)

const (
	minCarouselSlides = 2
	maxCarouselSlides = 10
)

// Service publishes rendered carousels to the platform. Slides are
// hosted on a public git branch first because the Graph API only
// accepts media by URL. It implements pipeline.Publisher.
type Service struct {
	cfg     *config.Config
	logger  *slog.Logger
	hosting *hostingClient
	graph   *graphClient

	httpClient *http.Client
	apiBase    string
	rawBase    string
	sleeper    func(ctx context.Context, d time.Duration) error
}

// Option customizes the service.
type Option func(*Service)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Service) {
		if client != nil {
			s.httpClient = client
		}
	}
}

// WithHostingEndpoints overrides the contents API and raw download
// bases (useful for tests).
func WithHostingEndpoints(apiBase, rawBase string) Option {
	return func(s *Service) {
		s.apiBase = apiBase
		s.rawBase = rawBase
	}
}

// WithSleeper overrides how readiness poll sleeps are performed
// (useful for tests).
func WithSleeper(sleeper func(ctx context.Context, d time.Duration) error) Option {
	return func(s *Service) {
		s.sleeper = sleeper
	}
}

// NewService builds the publisher from the [publisher] config section.
func NewService(cfg *config.Config, logger *slog.Logger, opts ...Option) *Service {
	timeout := time.Duration(cfg.Publisher.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	svc := &Service{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "publish"),
		httpClient: &http.Client{Timeout: timeout},
		apiBase:    defaultHostingAPIBase,
		rawBase:    defaultHostingRawBase,
		sleeper:    sleepContext,
	}
	for _, opt := range opts {
		opt(svc)
	}

	limit := rate.Inf
	if cfg.Publisher.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.Publisher.RequestsPerSecond)
	}
	limiter := rate.NewLimiter(limit, 1)

	svc.hosting = &hostingClient{
		cfg:        cfg,
		logger:     svc.logger,
		httpClient: svc.httpClient,
		limiter:    limiter,
		apiBase:    svc.apiBase,
		rawBase:    svc.rawBase,
	}
	svc.graph = &graphClient{
		cfg:        cfg,
		logger:     svc.logger,
		httpClient: svc.httpClient,
		limiter:    limiter,
		sleep:      svc.sleeper,
	}
	return svc
}

// Publish hosts every slide, builds the carousel, waits for the
// platform to finish processing it, and publishes. The post id and
// permalink come back in the receipt. Once media_publish succeeds no
// later failure is surfaced, since retrying a published carousel would
// post it twice.
func (s *Service) Publish(ctx context.Context, post *pipeline.RenderedPost, attempt pipeline.Attempt) (*pipeline.PublishReceipt, error) {
	if post == nil || len(post.Images) == 0 {
		return nil, services.Wrap(services.ErrValidation, "publish", "validate", "nothing to publish", nil)
	}
	if n := len(post.Images); n < minCarouselSlides || n > maxCarouselSlides {
		return nil, services.Wrap(services.ErrValidation, "publish", "validate",
			fmt.Sprintf("carousel requires %d to %d images, got %d", minCarouselSlides, maxCarouselSlides, n), nil)
	}
	for _, img := range post.Images {
		if _, err := os.Stat(img); err != nil {
			return nil, services.Wrap(services.ErrValidation, "publish", "validate",
				fmt.Sprintf("slide %s missing", filepath.Base(img)), err)
		}
	}

	if s.cfg.Publisher.DryRun {
		s.logger.Info("dry run, skipping platform publish",
			logging.String("topic", post.TopicID),
			logging.Int("slides", len(post.Images)),
		)
		return &pipeline.PublishReceipt{
			PostID:      "dryrun-" + post.TopicID,
			SlideCount:  len(post.Images),
			PublishedAt: time.Now().UTC(),
		}, nil
	}

	if err := s.checkCredentials(); err != nil {
		return nil, err
	}

	s.logger.Info("publishing carousel",
		logging.String("topic", post.TopicID),
		logging.Int("slides", len(post.Images)),
		logging.Int(logging.FieldAttempt, attempt.Number),
	)

	// Retried attempts get a fresh remote prefix so the contents API
	// never sees a path that already has a blob behind it.
	nonce := uuid.NewString()[:8]
	urls := make([]string, 0, len(post.Images))
	for _, img := range post.Images {
		rawURL, err := s.hosting.upload(ctx, img, remoteSlidePath(post.TopicID, nonce, img))
		if err != nil {
			return nil, err
		}
		if err := s.hosting.checkReachable(ctx, rawURL); err != nil {
			return nil, err
		}
		urls = append(urls, rawURL)
	}

	children := make([]string, 0, len(urls))
	for _, u := range urls {
		id, err := s.graph.createItemContainer(ctx, u)
		if err != nil {
			return nil, err
		}
		children = append(children, id)
	}

	carouselID, err := s.graph.createCarousel(ctx, children, post.Caption)
	if err != nil {
		return nil, err
	}
	if err := s.graph.waitReady(ctx, carouselID); err != nil {
		return nil, err
	}

	postID, err := s.graph.publishCarousel(ctx, carouselID)
	if err != nil {
		return nil, err
	}

	permalink, err := s.graph.fetchPermalink(ctx, postID)
	if err != nil {
		s.logger.Warn("post is live but permalink lookup failed",
			logging.String("post_id", postID),
			logging.Error(err),
		)
		permalink = ""
	}

	s.logger.Info("carousel published",
		logging.String("topic", post.TopicID),
		logging.String("post_id", postID),
		logging.String("permalink", permalink),
	)
	return &pipeline.PublishReceipt{
		PostID:      postID,
		Permalink:   permalink,
		SlideCount:  len(post.Images),
		PublishedAt: time.Now().UTC(),
	}, nil
}

func (s *Service) checkCredentials() error {
	pub := s.cfg.Publisher
	if pub.AccessToken == "" || pub.AccountID == "" {
		return services.Wrap(services.ErrConfiguration, "publish", "credentials",
			"publisher access token and account id are required", nil)
	}
	if pub.HostingOwner == "" || pub.HostingRepo == "" || pub.HostingToken == "" {
		return services.Wrap(services.ErrConfiguration, "publish", "credentials",
			"hosting owner, repo and token are required", nil)
	}
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
