package daemon

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"easel/internal/config"
	"easel/internal/ledger"
	"easel/internal/logging"
	"easel/internal/notifications"
	"easel/internal/pipeline"
)

// Runner executes one pipeline run. *pipeline.Orchestrator satisfies it.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) pipeline.RunOutcome
}

// Scheduler drains the topic queue: it claims pending topics one at a time,
// hands each to the runner, and writes the outcome back to the ledger.
type Scheduler struct {
	cfg      *config.Config
	store    *ledger.Store
	runner   Runner
	notifier notifications.Service
	logger   *slog.Logger

	pollInterval time.Duration
	stuckAfter   time.Duration

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastTopic string
	lastState pipeline.State
	lastErr   error
}

// SchedulerStatus summarizes recent scheduler activity.
type SchedulerStatus struct {
	Running   bool
	LastTopic string
	LastState pipeline.State
	LastError string
}

// NewScheduler constructs a scheduler. A nil notifier disables notifications.
func NewScheduler(cfg *config.Config, store *ledger.Store, runner Runner, notifier notifications.Service, logger *slog.Logger) *Scheduler {
	if notifier == nil {
		notifier = notifications.NewService(cfg)
	}
	return &Scheduler{
		cfg:          cfg,
		store:        store,
		runner:       runner,
		notifier:     notifier,
		logger:       logging.NewComponentLogger(logger, "scheduler"),
		pollInterval: time.Duration(cfg.Daemon.PollInterval) * time.Second,
		stuckAfter:   time.Duration(cfg.Daemon.StuckResetMinutes) * time.Minute,
	}
}

// Start begins background queue processing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("scheduler already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	go s.loop(runCtx)
	return nil
}

// Stop terminates background processing and waits for the current run to
// finish unwinding.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// Status returns a snapshot of scheduler state.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	status := SchedulerStatus{
		Running:   s.running,
		LastTopic: s.lastTopic,
		LastState: s.lastState,
	}
	if s.lastErr != nil {
		status.LastError = s.lastErr.Error()
	}
	return status
}

func (s *Scheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	s.reclaimStale(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		topic, err := s.store.ClaimNext(ctx, uuid.New().String())
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			s.setLastError(err)
			s.logger.Error("failed to claim next topic",
				logging.Error(err),
				logging.Alert("ledger_claim_failed"),
			)
			s.waitOrShutdown(ctx)
			continue
		}
		if topic == nil {
			s.waitOrShutdown(ctx)
			s.reclaimStale(ctx)
			continue
		}

		s.runTopic(ctx, topic)
	}
}

// reclaimStale returns topics stuck in processing to pending. Runs at startup
// to recover rows orphaned by a crashed daemon, and between polls to catch
// claims abandoned by other processes.
func (s *Scheduler) reclaimStale(ctx context.Context) {
	reclaimed, err := s.store.ResetStuckProcessing(ctx, s.stuckAfter)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.logger.Warn("stale claim reclamation failed; stuck topics may remain",
			logging.Error(err),
		)
		return
	}
	if reclaimed > 0 {
		s.logger.Info("reclaimed stale processing topics", logging.Int64("count", reclaimed))
	}
}

func (s *Scheduler) runTopic(ctx context.Context, topic *ledger.Topic) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	outcome := s.runner.Run(runCtx, pipeline.Request{
		Topic:     topic.Slug,
		SourceURL: topic.SourceURL,
	})

	s.mu.Lock()
	s.lastTopic = topic.Slug
	s.lastState = outcome.State
	s.lastErr = outcome.Err
	s.mu.Unlock()

	s.recordOutcome(ctx, topic, outcome)
}

func (s *Scheduler) recordOutcome(ctx context.Context, topic *ledger.Topic, outcome pipeline.RunOutcome) {
	logger := s.logger.With(
		logging.String(logging.FieldTopic, outcome.Topic),
		logging.String(logging.FieldRunID, outcome.RunID),
		logging.String(logging.FieldState, string(outcome.State)),
	)

	switch outcome.State {
	case pipeline.StatePublished:
		if err := s.store.MarkOutcome(ctx, topic.Slug, ledger.StatusPublished, "", ""); err != nil {
			logger.Error("failed to record published outcome", logging.Error(err))
		}
		permalink, slides := "", 0
		if outcome.Record != nil {
			permalink = outcome.Record.Permalink
			slides = outcome.Record.SlideCount
		}
		s.notify(ctx, logger, func(nctx context.Context) error {
			return s.notifier.NotifyPublished(nctx, outcome.Topic, permalink, slides)
		})

	case pipeline.StateSkippedDuplicate:
		if err := s.store.MarkOutcome(ctx, topic.Slug, ledger.StatusSkipped, "", ""); err != nil {
			logger.Error("failed to record skipped outcome", logging.Error(err))
		}
		logger.Info("topic already published; skipped")

	case pipeline.StateFailed:
		reason := ""
		if outcome.Err != nil {
			reason = strings.TrimSpace(outcome.Err.Error())
		}
		if err := s.store.MarkOutcome(ctx, topic.Slug, ledger.StatusFailed, outcome.FailedStage, reason); err != nil {
			logger.Error("failed to record failed outcome", logging.Error(err))
		}
		s.notify(ctx, logger, func(nctx context.Context) error {
			return s.notifier.NotifyRunFailed(nctx, outcome.Topic, outcome.FailedStage, reason)
		})

	case pipeline.StateCancelled:
		// Cancellation is not terminal: the topic goes back to pending so the
		// next daemon start picks it up.
		if err := s.store.Requeue(context.WithoutCancel(ctx), topic.Slug); err != nil {
			logger.Error("failed to requeue cancelled topic", logging.Error(err))
		}
		logger.Info("run cancelled; topic requeued")

	case pipeline.StatePublishedUnrecorded:
		reason := "publish succeeded but the ledger write failed"
		if outcome.Err != nil {
			reason = strings.TrimSpace(outcome.Err.Error())
		}
		if err := s.store.MarkOutcome(ctx, topic.Slug, ledger.StatusUnrecorded, pipeline.StagePublish, reason); err != nil {
			logger.Error("failed to record unrecorded outcome", logging.Error(err))
		}
		postID := ""
		if outcome.Record != nil {
			postID = outcome.Record.PostID
		}
		logger.Error("publish succeeded but ledger write failed; reconcile by hand",
			logging.Alert("published_unrecorded"),
			logging.String("post_id", postID),
		)
		s.notify(ctx, logger, func(nctx context.Context) error {
			return s.notifier.NotifyPublishedUnrecorded(nctx, outcome.Topic, postID)
		})

	default:
		if err := s.store.MarkOutcome(ctx, topic.Slug, ledger.StatusFailed, outcome.FailedStage, "run ended in unexpected state "+string(outcome.State)); err != nil {
			logger.Error("failed to record outcome", logging.Error(err))
		}
		logger.Error("run ended in unexpected state")
	}
}

// notify sends a notification without letting notification failures disturb
// queue processing. Shutdown cancellations log at debug.
func (s *Scheduler) notify(ctx context.Context, logger *slog.Logger, send func(context.Context) error) {
	if s.notifier == nil {
		return
	}
	if err := send(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Debug("daemon shutting down, could not send notification")
			return
		}
		logger.Debug("notification failed", logging.Error(err))
	}
}

func (s *Scheduler) waitOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(s.pollInterval):
	}
}

func (s *Scheduler) setLastError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}
