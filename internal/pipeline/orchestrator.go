package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"easel/internal/config"
	"easel/internal/ledger"
	"easel/internal/logging"
	"easel/internal/services"
	"easel/internal/textutil"
)

// State names every orchestration exit.
type State string

const (
	StateStarted             State = "started"
	StateScraped             State = "scraped"
	StateGenerated           State = "generated"
	StateRendered            State = "rendered"
	StatePublished           State = "published"
	StateFailed              State = "failed"
	StateSkippedDuplicate    State = "skipped-duplicate"
	StateCancelled           State = "cancelled"
	StatePublishedUnrecorded State = "published-unrecorded"
)

// RunOutcome reports how a pipeline run ended. Every exit path maps to a
// named state; callers decide what to persist or notify from it.
type RunOutcome struct {
	RunID       string
	Topic       string
	State       State
	FailedStage string
	Err         error
	Record      *ledger.PublishRecord
	Attempts    map[string]int
	StagingDir  string
	Duration    time.Duration
}

// ExitCode maps the outcome to the CLI exit status.
func (o RunOutcome) ExitCode() int {
	switch o.State {
	case StatePublished, StateSkippedDuplicate:
		return 0
	case StateCancelled:
		return 130
	default:
		return 1
	}
}

// Ledger is the duplicate-publish guard the orchestrator consults around
// publishing. *ledger.Store satisfies it.
type Ledger interface {
	Has(ctx context.Context, topicID string) (bool, error)
	Append(ctx context.Context, record *ledger.PublishRecord) error
	Lock(topicID string) func()
}

// Orchestrator sequences the four stages for one topic.
type Orchestrator struct {
	cfg       *config.Config
	logger    *slog.Logger
	ledger    Ledger
	scraper   Scraper
	generator Generator
	renderer  Renderer
	publisher Publisher
	policies  Policies
}

// New builds an orchestrator from its stage implementations.
func New(cfg *config.Config, logger *slog.Logger, led Ledger, scraper Scraper, generator Generator, renderer Renderer, publisher Publisher) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "pipeline"),
		ledger:    led,
		scraper:   scraper,
		generator: generator,
		renderer:  renderer,
		publisher: publisher,
		policies:  PoliciesFromConfig(cfg),
	}
}

// Run executes the pipeline for one topic and returns the outcome. The
// orchestrator halts on the first fatal stage; earlier stage artifacts stay
// in the run staging directory either way.
func (o *Orchestrator) Run(ctx context.Context, req Request) RunOutcome {
	started := time.Now()
	runID := uuid.NewString()
	topicID := textutil.Slugify(req.Topic)

	outcome := RunOutcome{
		RunID:    runID,
		Topic:    topicID,
		State:    StateStarted,
		Attempts: make(map[string]int),
	}
	if topicID == "" {
		outcome.State = StateFailed
		outcome.FailedStage = StageScrape
		outcome.Err = services.Wrap(services.ErrValidation, "pipeline", "run", "topic is empty after slugify", nil)
		outcome.Duration = time.Since(started)
		return outcome
	}
	if req.Kind == "" {
		req.Kind = KindExplainer
	}

	ctx = services.WithRunID(ctx, runID)
	ctx = services.WithTopic(ctx, topicID)
	logger := logging.WithContext(ctx, o.logger)
	logger.Info("run starting", logging.String("kind", string(req.Kind)))

	// Gate zero: a recorded topic costs no scraping, no model calls, and no
	// platform calls.
	has, err := o.ledger.Has(ctx, topicID)
	if err != nil {
		return failRun(logger, outcome, "ledger", started, fmt.Errorf("ledger check: %w", err))
	}
	if has {
		logger.Info("topic already published; skipping run")
		outcome.State = StateSkippedDuplicate
		outcome.Duration = time.Since(started)
		return outcome
	}

	stagingDir := filepath.Join(o.cfg.Paths.WorkspaceDir, "runs", fmt.Sprintf("%s-%s", topicID, runID[:8]))
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return failRun(logger, outcome, "staging", started, fmt.Errorf("create staging dir: %w", err))
	}
	outcome.StagingDir = stagingDir

	scrapeRes := Execute(services.WithStage(ctx, StageScrape), o.runner(StageScrape, logger),
		func(ctx context.Context, attempt Attempt) (*Topic, error) {
			return o.scraper.Scrape(ctx, req, stagingDir, attempt)
		})
	outcome.Attempts[StageScrape] = scrapeRes.Attempts()
	if !scrapeRes.Success() {
		return o.stageExit(logger, outcome, StageScrape, started, scrapeRes.Outcome(), scrapeRes.Err())
	}
	topic := scrapeRes.Value()
	outcome.State = StateScraped
	logStageDone(logger, StageScrape, scrapeRes.Attempts())

	genRes := Execute(services.WithStage(ctx, StageGenerate), o.runner(StageGenerate, logger),
		func(ctx context.Context, attempt Attempt) (*GeneratedContent, error) {
			return o.generator.Generate(ctx, topic, stagingDir, attempt)
		})
	outcome.Attempts[StageGenerate] = genRes.Attempts()
	if !genRes.Success() {
		return o.stageExit(logger, outcome, StageGenerate, started, genRes.Outcome(), genRes.Err())
	}
	content := genRes.Value()
	outcome.State = StateGenerated
	logStageDone(logger, StageGenerate, genRes.Attempts())

	renderRes := Execute(services.WithStage(ctx, StageRender), o.runner(StageRender, logger),
		func(ctx context.Context, attempt Attempt) (*RenderedPost, error) {
			return o.renderer.Render(ctx, content, stagingDir, attempt)
		})
	outcome.Attempts[StageRender] = renderRes.Attempts()
	if !renderRes.Success() {
		return o.stageExit(logger, outcome, StageRender, started, renderRes.Outcome(), renderRes.Err())
	}
	post := renderRes.Value()
	outcome.State = StateRendered
	logStageDone(logger, StageRender, renderRes.Attempts())

	// The lock spans the second ledger check, the publish attempts, and the
	// append, so concurrent runs of one topic serialize here.
	unlock := o.ledger.Lock(topicID)
	defer unlock()

	has, err = o.ledger.Has(ctx, topicID)
	if err != nil {
		return failRun(logger, outcome, "ledger", started, fmt.Errorf("ledger recheck: %w", err))
	}
	if has {
		logger.Info("topic published by a concurrent run; skipping publish")
		outcome.State = StateSkippedDuplicate
		outcome.Duration = time.Since(started)
		return outcome
	}

	publishRes := Execute(services.WithStage(ctx, StagePublish), o.runner(StagePublish, logger),
		func(ctx context.Context, attempt Attempt) (*PublishReceipt, error) {
			return o.publisher.Publish(ctx, post, attempt)
		})
	outcome.Attempts[StagePublish] = publishRes.Attempts()
	if !publishRes.Success() {
		return o.stageExit(logger, outcome, StagePublish, started, publishRes.Outcome(), publishRes.Err())
	}
	receipt := publishRes.Value()

	record := &ledger.PublishRecord{
		TopicID:     topicID,
		RunID:       runID,
		PostID:      receipt.PostID,
		Permalink:   receipt.Permalink,
		SlideCount:  receipt.SlideCount,
		PublishedAt: receipt.PublishedAt,
	}
	if err := o.ledger.Append(ctx, record); err != nil {
		outcome.State = StatePublishedUnrecorded
		outcome.Record = record
		outcome.Err = err
		outcome.Duration = time.Since(started)
		logger.Warn("publish confirmed but ledger append failed; reconcile before re-running this topic",
			logging.Alert("ledger-append-failed"),
			logging.String("post_id", record.PostID),
			logging.Error(err),
		)
		return outcome
	}

	outcome.State = StatePublished
	outcome.Record = record
	outcome.Duration = time.Since(started)
	logger.Info("run published",
		logging.String("post_id", record.PostID),
		logging.String("permalink", record.Permalink),
		logging.Duration("duration", outcome.Duration),
	)
	return outcome
}

func (o *Orchestrator) runner(stage string, logger *slog.Logger) Runner {
	return Runner{Stage: stage, Policy: o.policies.ForStage(stage), Logger: logger}
}

func (o *Orchestrator) stageExit(logger *slog.Logger, outcome RunOutcome, stage string, started time.Time, tag Outcome, err error) RunOutcome {
	if tag == OutcomeCancelled {
		outcome.State = StateCancelled
		outcome.Err = err
		outcome.Duration = time.Since(started)
		logger.Info("run cancelled",
			logging.String(logging.FieldStage, stage),
			logging.Error(err),
		)
		return outcome
	}
	return failRun(logger, outcome, stage, started, err)
}

func failRun(logger *slog.Logger, outcome RunOutcome, stage string, started time.Time, err error) RunOutcome {
	outcome.State = StateFailed
	outcome.FailedStage = stage
	outcome.Err = err
	outcome.Duration = time.Since(started)
	logger.Error("run failed",
		logging.String(logging.FieldStage, stage),
		logging.Int(logging.FieldAttempt, outcome.Attempts[stage]),
		logging.Error(err),
	)
	return outcome
}

func logStageDone(logger *slog.Logger, stage string, attempts int) {
	logger.Info("stage complete",
		logging.String(logging.FieldStage, stage),
		logging.Int(logging.FieldAttempt, attempts),
	)
}
