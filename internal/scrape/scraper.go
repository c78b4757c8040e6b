package scrape

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/pipeline"
	"easel/internal/services"
	"easel/internal/textutil"
)

const defaultRequestTimeout = 20 * time.Second

// Service collects topic material and reference images from an image
// search results page. It implements pipeline.Scraper.
type Service struct {
	cfg        *config.Config
	logger     *slog.Logger
	httpClient *http.Client
	limiter    *rate.Limiter
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

// NewService builds the scraper from the [scraper] config section.
func NewService(cfg *config.Config, logger *slog.Logger, opts ...Option) *Service {
	timeout := defaultRequestTimeout
	if cfg.Scraper.RequestTimeout > 0 {
		timeout = time.Duration(cfg.Scraper.RequestTimeout) * time.Second
	}
	limit := rate.Inf
	if cfg.Scraper.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.Scraper.RequestsPerSecond)
	}
	svc := &Service{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "scrape"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Scrape fetches the results page for the request, assembles topic material
// from the result titles, and downloads reference images into dir/refs.
// A request SourceURL overrides the constructed search URL. Strict attempts
// drop the configured query suffix so an over-constrained query gets a
// second, broader pass.
func (s *Service) Scrape(ctx context.Context, req pipeline.Request, dir string, attempt pipeline.Attempt) (*pipeline.Topic, error) {
	slug := textutil.Slugify(req.Topic)
	if slug == "" {
		return nil, services.Wrap(services.ErrValidation, "scrape", "query", "topic is empty", nil)
	}

	pageURL := strings.TrimSpace(req.SourceURL)
	if pageURL == "" {
		pageURL = s.searchURL(req.Topic, attempt.Strict)
	}

	s.logger.Info("fetching results page",
		logging.String("topic", slug),
		logging.String("url", pageURL),
		logging.Int(logging.FieldAttempt, attempt.Number),
	)

	doc, err := s.fetchDocument(ctx, pageURL)
	if err != nil {
		return nil, err
	}

	results := parseResults(doc)
	if len(results) == 0 {
		return nil, services.Wrap(services.ErrValidation, "scrape", "parse", "no results parsed from page", nil)
	}

	material := buildMaterial(results)
	if material == "" {
		return nil, services.Wrap(services.ErrValidation, "scrape", "parse", "results carry no usable titles", nil)
	}

	kind := req.Kind
	if kind == "" {
		kind = pipeline.KindExplainer
	}
	topic := &pipeline.Topic{
		ID:          slug,
		DisplayName: textutil.DisplayName(slug),
		SourceURL:   pageURL,
		Kind:        kind,
		Material:    material,
		ScrapedAt:   time.Now().UTC(),
	}

	images, err := s.downloadImages(ctx, results, dir)
	if err != nil {
		return nil, err
	}
	topic.Images = images

	s.logger.Info("scrape complete",
		logging.String("topic", slug),
		logging.Int("results", len(results)),
		logging.Int("images", len(images)),
	)
	return topic, nil
}

func (s *Service) searchURL(topic string, strict bool) string {
	query := strings.TrimSpace(topic)
	if suffix := strings.TrimSpace(s.cfg.Scraper.QuerySuffix); suffix != "" && !strict {
		query += " " + suffix
	}
	return fmt.Sprintf("%s?q=%s&FORM=HDRSC2", s.cfg.Scraper.SearchBaseURL, url.QueryEscape(query))
}

func (s *Service) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "scrape", "fetch", fmt.Sprintf("build request for %q", pageURL), err)
	}
	req.Header.Set("User-Agent", s.cfg.Scraper.UserAgent)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, services.Wrap(services.ErrTransient, "scrape", "fetch", "request failed", err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		return nil, err
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "scrape", "parse", "read page body", err)
	}
	return doc, nil
}

// classifyStatus maps response codes for a scrape target. There is no auth
// on the search page, so 4xx means bot friction rather than a broken
// request and stays retryable.
func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		wrapped := services.Wrap(services.ErrRateLimited, "scrape", "fetch", fmt.Sprintf("http %d", resp.StatusCode), nil)
		if hint, ok := services.ParseRetryAfter(resp.Header.Get("Retry-After")); ok {
			return services.WithRetryAfter(wrapped, hint)
		}
		return wrapped
	default:
		return services.Wrap(services.ErrTransient, "scrape", "fetch", fmt.Sprintf("http %d", resp.StatusCode), nil)
	}
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
