package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/pipeline"
	"easel/internal/services"
)

// Service calls the chat completions API and validates the result into a
// GeneratedContent. It implements pipeline.Generator.
type Service struct {
	cfg    *config.Config
	logger *slog.Logger
	client openai.Client
}

// NewService builds the generator from the [generator] config section.
func NewService(cfg *config.Config, logger *slog.Logger) *Service {
	timeout := time.Duration(cfg.Generator.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.Generator.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
	}
	if cfg.Generator.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.Generator.BaseURL))
	}
	return &Service{
		cfg:    cfg,
		logger: logging.NewComponentLogger(logger, "generate"),
		client: openai.NewClient(opts...),
	}
}

// Generate produces slide content for the topic and persists the preview
// artifacts (content.json, content.md) into dir.
func (s *Service) Generate(ctx context.Context, topic *pipeline.Topic, dir string, attempt pipeline.Attempt) (*pipeline.GeneratedContent, error) {
	if topic == nil || strings.TrimSpace(topic.Material) == "" {
		return nil, services.Wrap(services.ErrValidation, "generate", "prompt", "topic material is empty", nil)
	}
	kind := topic.Kind
	if kind == "" {
		kind = pipeline.KindExplainer
	}

	user := userPrompt(topic, kind)
	if attempt.Strict {
		user += strictAddendum(kind)
	}

	s.logger.Info("requesting content",
		logging.String("model", s.cfg.Generator.Model),
		logging.String("kind", string(kind)),
		logging.Int(logging.FieldAttempt, attempt.Number),
	)

	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(s.cfg.Generator.Model),
		Temperature: openai.Float(0.4),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(user),
		},
	})
	if err != nil {
		return nil, classifyAPIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, services.Wrap(services.ErrValidation, "generate", "complete", "response has no choices", nil)
	}

	raw := resp.Choices[0].Message.Content
	var parsed payload
	if err := decodeJSON(raw, &parsed); err != nil {
		return nil, services.Wrap(services.ErrValidation, "generate", "decode", err.Error(), nil)
	}

	content := &pipeline.GeneratedContent{
		TopicID:     topic.ID,
		Kind:        kind,
		Slides:      parsed.slides(),
		Caption:     strings.TrimSpace(parsed.Caption),
		Model:       s.cfg.Generator.Model,
		GeneratedAt: time.Now().UTC(),
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}
	if err := writePreviewArtifacts(topic, content, dir); err != nil {
		return nil, services.Wrap(services.ErrTransient, "generate", "persist", "write preview artifacts", err)
	}
	return content, nil
}

func classifyAPIError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusTooManyRequests:
			wrapped := services.Wrap(services.ErrRateLimited, "generate", "complete", fmt.Sprintf("http %d", apiErr.StatusCode), err)
			if apiErr.Response != nil {
				if hint, ok := services.ParseRetryAfter(apiErr.Response.Header.Get("Retry-After")); ok {
					return services.WithRetryAfter(wrapped, hint)
				}
			}
			return wrapped
		case apiErr.StatusCode == http.StatusUnauthorized, apiErr.StatusCode == http.StatusForbidden:
			return services.Wrap(services.ErrAuth, "generate", "complete", "api key rejected", err)
		case apiErr.StatusCode == http.StatusRequestTimeout, apiErr.StatusCode >= http.StatusInternalServerError:
			return services.Wrap(services.ErrTransient, "generate", "complete", fmt.Sprintf("http %d", apiErr.StatusCode), err)
		default:
			return fmt.Errorf("generate: complete: http %d: %w", apiErr.StatusCode, err)
		}
	}
	return services.Wrap(services.ErrTransient, "generate", "complete", "request failed", err)
}

func writePreviewArtifacts(topic *pipeline.Topic, content *pipeline.GeneratedContent, dir string) error {
	encoded, err := json.MarshalIndent(content, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "content.json"), encoded, 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "content.md"), []byte(contentMarkdown(topic, content)), 0o644)
}

func contentMarkdown(topic *pipeline.Topic, content *pipeline.GeneratedContent) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", topic.DisplayName)
	for i, slide := range content.Slides {
		fmt.Fprintf(&b, "## %d. %s\n\n%s\n\n", i+1, slide.Heading, slide.Body)
	}
	b.WriteString("---\n\n")
	fmt.Fprintf(&b, "**Caption:** %s\n", content.Caption)
	return b.String()
}
