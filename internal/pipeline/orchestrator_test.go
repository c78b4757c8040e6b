package pipeline_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"easel/internal/ledger"
	"easel/internal/pipeline"
	"easel/internal/services"
	"easel/internal/testsupport"
)

type stubStages struct {
	mu        sync.Mutex
	scrapes   int
	generates int
	renders   int
	publishes int

	scrapeFn   func(ctx context.Context, req pipeline.Request, dir string, attempt pipeline.Attempt) (*pipeline.Topic, error)
	generateFn func(ctx context.Context, topic *pipeline.Topic, dir string, attempt pipeline.Attempt) (*pipeline.GeneratedContent, error)
	renderFn   func(ctx context.Context, content *pipeline.GeneratedContent, dir string, attempt pipeline.Attempt) (*pipeline.RenderedPost, error)
	publishFn  func(ctx context.Context, post *pipeline.RenderedPost, attempt pipeline.Attempt) (*pipeline.PublishReceipt, error)
}

func (s *stubStages) Scrape(ctx context.Context, req pipeline.Request, dir string, attempt pipeline.Attempt) (*pipeline.Topic, error) {
	s.mu.Lock()
	s.scrapes++
	s.mu.Unlock()
	if s.scrapeFn != nil {
		return s.scrapeFn(ctx, req, dir, attempt)
	}
	return &pipeline.Topic{
		ID:          "topic",
		DisplayName: "Topic",
		Material:    "sample material",
		ScrapedAt:   time.Now().UTC(),
	}, nil
}

func (s *stubStages) Generate(ctx context.Context, topic *pipeline.Topic, dir string, attempt pipeline.Attempt) (*pipeline.GeneratedContent, error) {
	s.mu.Lock()
	s.generates++
	s.mu.Unlock()
	if s.generateFn != nil {
		return s.generateFn(ctx, topic, dir, attempt)
	}
	return sampleContent(topic.ID), nil
}

func (s *stubStages) Render(ctx context.Context, content *pipeline.GeneratedContent, dir string, attempt pipeline.Attempt) (*pipeline.RenderedPost, error) {
	s.mu.Lock()
	s.renders++
	s.mu.Unlock()
	if s.renderFn != nil {
		return s.renderFn(ctx, content, dir, attempt)
	}
	return &pipeline.RenderedPost{
		TopicID: content.TopicID,
		Images:  []string{dir + "/slide-01.png", dir + "/slide-02.png"},
		Caption: content.Caption,
		Width:   1080,
		Height:  1080,
	}, nil
}

func (s *stubStages) Publish(ctx context.Context, post *pipeline.RenderedPost, attempt pipeline.Attempt) (*pipeline.PublishReceipt, error) {
	s.mu.Lock()
	s.publishes++
	s.mu.Unlock()
	if s.publishFn != nil {
		return s.publishFn(ctx, post, attempt)
	}
	return &pipeline.PublishReceipt{
		PostID:      "post-1",
		Permalink:   "https://www.instagram.com/p/post-1/",
		SlideCount:  len(post.Images),
		PublishedAt: time.Now().UTC(),
	}, nil
}

func (s *stubStages) counts() (scrapes, generates, renders, publishes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scrapes, s.generates, s.renders, s.publishes
}

func sampleContent(topicID string) *pipeline.GeneratedContent {
	return &pipeline.GeneratedContent{
		TopicID: topicID,
		Kind:    pipeline.KindExplainer,
		Slides: []pipeline.Slide{
			{Heading: "What it is", Body: "A core idea."},
			{Heading: "Why it matters", Body: "It shows up everywhere."},
			{Heading: "Quick quiz", Body: "What is the complexity?"},
			{Heading: "Answer", Body: "Logarithmic."},
		},
		Caption:     "Learn the idea in four slides.",
		Model:       "gpt-4o",
		GeneratedAt: time.Now().UTC(),
	}
}

type appendFailLedger struct {
	pipeline.Ledger
}

func (l *appendFailLedger) Append(ctx context.Context, record *ledger.PublishRecord) error {
	return errors.New("ledger volume unavailable")
}

func TestRunHappyPathPublishesAndRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRetryDelays(1, 4))
	store := testsupport.MustOpenStore(t, cfg)
	stubs := &stubStages{}
	orch := pipeline.New(cfg, nil, store, stubs, stubs, stubs, stubs)

	outcome := orch.Run(context.Background(), pipeline.Request{Topic: "Binary Search"})

	if outcome.State != pipeline.StatePublished {
		t.Fatalf("expected published, got %s (err=%v)", outcome.State, outcome.Err)
	}
	if outcome.Topic != "binary-search" {
		t.Fatalf("expected slugified topic, got %q", outcome.Topic)
	}
	if outcome.Record == nil || outcome.Record.PostID != "post-1" || outcome.Record.RunID != outcome.RunID {
		t.Fatalf("unexpected record: %#v", outcome.Record)
	}
	if outcome.ExitCode() != 0 {
		t.Fatalf("expected exit 0, got %d", outcome.ExitCode())
	}
	for _, stage := range []string{pipeline.StageScrape, pipeline.StageGenerate, pipeline.StageRender, pipeline.StagePublish} {
		if outcome.Attempts[stage] != 1 {
			t.Fatalf("expected 1 attempt for %s, got %d", stage, outcome.Attempts[stage])
		}
	}
	if !strings.Contains(outcome.StagingDir, "binary-search") {
		t.Fatalf("staging dir not topic-scoped: %s", outcome.StagingDir)
	}
	if _, err := os.Stat(outcome.StagingDir); err != nil {
		t.Fatalf("staging dir missing: %v", err)
	}

	has, err := store.Has(context.Background(), "binary-search")
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if !has {
		t.Fatal("expected ledger record after publish")
	}
}

func TestRunSkipsLedgeredTopicWithoutStageCalls(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	record := &ledger.PublishRecord{TopicID: "binary-search", RunID: "run-0", PostID: "post-0"}
	if err := store.Append(context.Background(), record); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	stubs := &stubStages{}
	orch := pipeline.New(cfg, nil, store, stubs, stubs, stubs, stubs)
	outcome := orch.Run(context.Background(), pipeline.Request{Topic: "binary-search"})

	if outcome.State != pipeline.StateSkippedDuplicate {
		t.Fatalf("expected skipped-duplicate, got %s", outcome.State)
	}
	if outcome.ExitCode() != 0 {
		t.Fatalf("expected exit 0, got %d", outcome.ExitCode())
	}
	scrapes, generates, renders, publishes := stubs.counts()
	if scrapes+generates+renders+publishes != 0 {
		t.Fatalf("ledgered topic must cost zero stage calls, got %d/%d/%d/%d", scrapes, generates, renders, publishes)
	}
}

func TestRunFailsAtScrapeWithoutLaterStages(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRetryDelays(1, 4))
	store := testsupport.MustOpenStore(t, cfg)
	stubs := &stubStages{
		scrapeFn: func(ctx context.Context, req pipeline.Request, dir string, attempt pipeline.Attempt) (*pipeline.Topic, error) {
			return nil, services.Wrap(services.ErrTransient, "scrape", "fetch", "connection refused", nil)
		},
	}
	orch := pipeline.New(cfg, nil, store, stubs, stubs, stubs, stubs)

	outcome := orch.Run(context.Background(), pipeline.Request{Topic: "hash-maps"})

	if outcome.State != pipeline.StateFailed || outcome.FailedStage != pipeline.StageScrape {
		t.Fatalf("expected failed(scrape), got %s(%s)", outcome.State, outcome.FailedStage)
	}
	if outcome.Attempts[pipeline.StageScrape] != 4 {
		t.Fatalf("expected 4 scrape attempts, got %d", outcome.Attempts[pipeline.StageScrape])
	}
	scrapes, generates, renders, publishes := stubs.counts()
	if scrapes != 4 {
		t.Fatalf("expected 4 scrape calls, got %d", scrapes)
	}
	if generates+renders+publishes != 0 {
		t.Fatalf("later stages must not run, got %d/%d/%d", generates, renders, publishes)
	}
	if outcome.ExitCode() != 1 {
		t.Fatalf("expected exit 1, got %d", outcome.ExitCode())
	}

	has, err := store.Has(context.Background(), "hash-maps")
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if has {
		t.Fatal("failed run must not touch the ledger")
	}
}

func TestRunGeneratorStrictRetryThenPublish(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRetryDelays(1, 4))
	store := testsupport.MustOpenStore(t, cfg)
	stubs := &stubStages{}
	stubs.generateFn = func(ctx context.Context, topic *pipeline.Topic, dir string, attempt pipeline.Attempt) (*pipeline.GeneratedContent, error) {
		if attempt.Number == 1 {
			return nil, services.Wrap(services.ErrValidation, "generate", "decode", "caption missing", nil)
		}
		if !attempt.Strict {
			return nil, errors.New("second attempt should be strict")
		}
		return sampleContent(topic.ID), nil
	}
	orch := pipeline.New(cfg, nil, store, stubs, stubs, stubs, stubs)

	outcome := orch.Run(context.Background(), pipeline.Request{Topic: "recursion"})

	if outcome.State != pipeline.StatePublished {
		t.Fatalf("expected published, got %s (err=%v)", outcome.State, outcome.Err)
	}
	if outcome.Attempts[pipeline.StageGenerate] != 2 {
		t.Fatalf("expected 2 generate attempts, got %d", outcome.Attempts[pipeline.StageGenerate])
	}
}

func TestRunRenderOverflowRetriesCompactThenPublishes(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRetryDelays(1, 4))
	store := testsupport.MustOpenStore(t, cfg)
	stubs := &stubStages{}
	stubs.renderFn = func(ctx context.Context, content *pipeline.GeneratedContent, dir string, attempt pipeline.Attempt) (*pipeline.RenderedPost, error) {
		if !attempt.Strict {
			return nil, services.Wrap(services.ErrValidation, "render", "layout", "slide 2: body text overflows the panel", nil)
		}
		return &pipeline.RenderedPost{
			TopicID: content.TopicID,
			Images:  []string{dir + "/slide-01.png", dir + "/slide-02.png"},
			Caption: content.Caption,
			Width:   1080,
			Height:  1080,
		}, nil
	}
	orch := pipeline.New(cfg, nil, store, stubs, stubs, stubs, stubs)

	outcome := orch.Run(context.Background(), pipeline.Request{Topic: "memoization"})

	if outcome.State != pipeline.StatePublished {
		t.Fatalf("expected published, got %s (err=%v)", outcome.State, outcome.Err)
	}
	if outcome.Attempts[pipeline.StageRender] != 2 {
		t.Fatalf("expected 2 render attempts, got %d", outcome.Attempts[pipeline.StageRender])
	}

	has, err := store.Has(context.Background(), "memoization")
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if !has {
		t.Fatal("expected a publish record after the compact retry")
	}
}

func TestRunPublishFatalLeavesLedgerEmpty(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRetryDelays(1, 4))
	store := testsupport.MustOpenStore(t, cfg)
	stubs := &stubStages{
		publishFn: func(ctx context.Context, post *pipeline.RenderedPost, attempt pipeline.Attempt) (*pipeline.PublishReceipt, error) {
			return nil, services.Wrap(services.ErrAuth, "publish", "media", "token expired", nil)
		},
	}
	orch := pipeline.New(cfg, nil, store, stubs, stubs, stubs, stubs)

	outcome := orch.Run(context.Background(), pipeline.Request{Topic: "tcp-handshake"})

	if outcome.State != pipeline.StateFailed || outcome.FailedStage != pipeline.StagePublish {
		t.Fatalf("expected failed(publish), got %s(%s)", outcome.State, outcome.FailedStage)
	}
	if outcome.Attempts[pipeline.StagePublish] != 1 {
		t.Fatalf("auth failure must not retry, got %d attempts", outcome.Attempts[pipeline.StagePublish])
	}
	if outcome.Record != nil {
		t.Fatalf("failed publish must not produce a record: %#v", outcome.Record)
	}
	has, err := store.Has(context.Background(), "tcp-handshake")
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if has {
		t.Fatal("ledger must stay empty after publish failure")
	}
}

func TestRunPublishTransientExhaustionFailsWithoutRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRetryDelays(1, 4))
	cfg.Retry.PublishAttempts = 3
	store := testsupport.MustOpenStore(t, cfg)
	stubs := &stubStages{
		publishFn: func(ctx context.Context, post *pipeline.RenderedPost, attempt pipeline.Attempt) (*pipeline.PublishReceipt, error) {
			if attempt.Number == 1 {
				return nil, services.WithRetryAfter(
					services.Wrap(services.ErrRateLimited, "publish", "graph", "user request limit", nil),
					time.Millisecond)
			}
			return nil, services.Wrap(services.ErrTransient, "publish", "graph", "upstream timeout", nil)
		},
	}
	orch := pipeline.New(cfg, nil, store, stubs, stubs, stubs, stubs)

	outcome := orch.Run(context.Background(), pipeline.Request{Topic: "load-balancing"})

	if outcome.State != pipeline.StateFailed || outcome.FailedStage != pipeline.StagePublish {
		t.Fatalf("expected failed(publish), got %s(%s)", outcome.State, outcome.FailedStage)
	}
	if outcome.Attempts[pipeline.StagePublish] != 3 {
		t.Fatalf("expected 3 publish attempts, got %d", outcome.Attempts[pipeline.StagePublish])
	}
	has, err := store.Has(context.Background(), "load-balancing")
	if err != nil {
		t.Fatalf("Has failed: %v", err)
	}
	if has {
		t.Fatal("ledger must stay empty after exhausting publish attempts")
	}
}

func TestRunAppendFailureReportsPublishedUnrecorded(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRetryDelays(1, 4))
	store := testsupport.MustOpenStore(t, cfg)
	stubs := &stubStages{}
	orch := pipeline.New(cfg, nil, &appendFailLedger{Ledger: store}, stubs, stubs, stubs, stubs)

	outcome := orch.Run(context.Background(), pipeline.Request{Topic: "dns-resolution"})

	if outcome.State != pipeline.StatePublishedUnrecorded {
		t.Fatalf("expected published-unrecorded, got %s", outcome.State)
	}
	if outcome.Record == nil || outcome.Record.PostID == "" {
		t.Fatalf("unrecorded outcome must carry the confirmed record: %#v", outcome.Record)
	}
	if outcome.Err == nil {
		t.Fatal("unrecorded outcome must surface the append error")
	}
	if outcome.ExitCode() != 1 {
		t.Fatalf("expected exit 1, got %d", outcome.ExitCode())
	}
}

func TestRunConcurrentSameTopicProducesOneRecord(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRetryDelays(1, 4))
	store := testsupport.MustOpenStore(t, cfg)
	stubs := &stubStages{
		publishFn: func(ctx context.Context, post *pipeline.RenderedPost, attempt pipeline.Attempt) (*pipeline.PublishReceipt, error) {
			// Widen the race window between the ledger recheck and append.
			time.Sleep(50 * time.Millisecond)
			return &pipeline.PublishReceipt{PostID: "post-9", SlideCount: len(post.Images), PublishedAt: time.Now().UTC()}, nil
		},
	}
	orch := pipeline.New(cfg, nil, store, stubs, stubs, stubs, stubs)

	outcomes := make(chan pipeline.RunOutcome, 2)
	for i := 0; i < 2; i++ {
		go func() {
			outcomes <- orch.Run(context.Background(), pipeline.Request{Topic: "big-o-notation"})
		}()
	}

	states := map[pipeline.State]int{}
	for i := 0; i < 2; i++ {
		outcome := <-outcomes
		states[outcome.State]++
	}
	if states[pipeline.StatePublished] != 1 || states[pipeline.StateSkippedDuplicate] != 1 {
		t.Fatalf("expected one published and one skipped run, got %v", states)
	}

	records, err := store.Records(context.Background())
	if err != nil {
		t.Fatalf("Records failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected exactly one publish record, got %d", len(records))
	}
	_, _, _, publishes := stubs.counts()
	if publishes != 1 {
		t.Fatalf("expected exactly one publish call, got %d", publishes)
	}
}

func TestRunCancelledMidStage(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRetryDelays(1, 4))
	store := testsupport.MustOpenStore(t, cfg)
	stubs := &stubStages{
		generateFn: func(ctx context.Context, topic *pipeline.Topic, dir string, attempt pipeline.Attempt) (*pipeline.GeneratedContent, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	orch := pipeline.New(cfg, nil, store, stubs, stubs, stubs, stubs)

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(20*time.Millisecond, cancel)
	defer timer.Stop()
	defer cancel()

	outcome := orch.Run(ctx, pipeline.Request{Topic: "graph-traversal"})

	if outcome.State != pipeline.StateCancelled {
		t.Fatalf("expected cancelled, got %s (err=%v)", outcome.State, outcome.Err)
	}
	if outcome.ExitCode() != 130 {
		t.Fatalf("expected exit 130, got %d", outcome.ExitCode())
	}
	_, _, renders, publishes := stubs.counts()
	if renders+publishes != 0 {
		t.Fatalf("no external calls after cancellation, got renders=%d publishes=%d", renders, publishes)
	}
}

func TestRunRejectsEmptyTopic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	stubs := &stubStages{}
	orch := pipeline.New(cfg, nil, store, stubs, stubs, stubs, stubs)

	outcome := orch.Run(context.Background(), pipeline.Request{Topic: "!!!"})

	if outcome.State != pipeline.StateFailed {
		t.Fatalf("expected failed, got %s", outcome.State)
	}
	if !errors.Is(outcome.Err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", outcome.Err)
	}
	scrapes, _, _, _ := stubs.counts()
	if scrapes != 0 {
		t.Fatal("empty topic must not reach the scraper")
	}
}
