package daemon_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"easel/internal/daemon"
	"easel/internal/ledger"
	"easel/internal/logging"
	"easel/internal/testsupport"
)

func waitForTopic(t *testing.T, store *ledger.Store, slug string) *ledger.Topic {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for topic %s", slug)
		default:
		}
		topic, err := store.GetBySlug(context.Background(), slug)
		if err != nil {
			t.Fatalf("GetBySlug: %v", err)
		}
		if topic != nil {
			return topic
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func waitForRemoval(t *testing.T, path string) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s to be removed", path)
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestInboxWatcherSweepsExistingFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if err := os.MkdirAll(cfg.Paths.InboxDir, 0o755); err != nil {
		t.Fatalf("mkdir inbox: %v", err)
	}
	path := filepath.Join(cfg.Paths.InboxDir, "go-generics.topic")
	if err := os.WriteFile(path, []byte("https://example.com/article\n"), 0o644); err != nil {
		t.Fatalf("write topic file: %v", err)
	}

	watch, err := daemon.NewInboxWatcher(cfg.Paths.InboxDir, store, logging.NewNop())
	if err != nil {
		t.Fatalf("NewInboxWatcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := watch.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(watch.Stop)

	topic := waitForTopic(t, store, "go-generics")
	if topic.SourceURL != "https://example.com/article" {
		t.Fatalf("expected source url from file body, got %q", topic.SourceURL)
	}
	if topic.Status != ledger.StatusPending {
		t.Fatalf("expected pending status, got %s", topic.Status)
	}
	waitForRemoval(t, path)
}

func TestInboxWatcherEnqueuesDroppedFiles(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	watch, err := daemon.NewInboxWatcher(cfg.Paths.InboxDir, store, logging.NewNop())
	if err != nil {
		t.Fatalf("NewInboxWatcher: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := watch.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(watch.Stop)

	// Non-topic files are ignored.
	if err := os.WriteFile(filepath.Join(cfg.Paths.InboxDir, "notes.txt"), []byte("scratch"), 0o644); err != nil {
		t.Fatalf("write notes file: %v", err)
	}

	path := filepath.Join(cfg.Paths.InboxDir, "rust-lifetimes.topic")
	if err := os.WriteFile(path, []byte("reminder: cover borrow checker\n"), 0o644); err != nil {
		t.Fatalf("write topic file: %v", err)
	}

	topic := waitForTopic(t, store, "rust-lifetimes")
	if topic.SourceURL != "" {
		t.Fatalf("non-URL body should not set a source url, got %q", topic.SourceURL)
	}
	waitForRemoval(t, path)

	ignored, err := store.GetBySlug(context.Background(), "notes")
	if err != nil {
		t.Fatalf("GetBySlug: %v", err)
	}
	if ignored != nil {
		t.Fatal("expected notes.txt to be ignored")
	}
}

func TestInboxWatcherRequiresDirectory(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := daemon.NewInboxWatcher("   ", store, logging.NewNop()); err == nil {
		t.Fatal("expected error for empty inbox directory")
	}
}
