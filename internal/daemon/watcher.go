package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"easel/internal/ledger"
	"easel/internal/logging"
)

// topicFileExt marks inbox files that enqueue topics. Anything else in the
// inbox is ignored so editors can leave swap files behind without side effects.
const topicFileExt = ".topic"

// InboxWatcher turns files dropped into the inbox directory into queued
// topics. The filename (minus extension) is the topic; the first line of the
// file body, when present, is the source URL. Consumed files are removed.
type InboxWatcher struct {
	inboxDir string
	store    *ledger.Store
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	watcher *fsnotify.Watcher
}

// NewInboxWatcher constructs a watcher for the given inbox directory.
func NewInboxWatcher(inboxDir string, store *ledger.Store, logger *slog.Logger) (*InboxWatcher, error) {
	trimmed := strings.TrimSpace(inboxDir)
	if trimmed == "" {
		return nil, errors.New("inbox directory is required")
	}
	return &InboxWatcher{
		inboxDir: trimmed,
		store:    store,
		logger:   logging.NewComponentLogger(logger, "inbox-watcher"),
	}, nil
}

// Start begins watching the inbox. Files already present are swept first;
// fsnotify only reports changes after the watch is registered.
func (w *InboxWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return errors.New("inbox watcher already running")
	}

	if err := os.MkdirAll(w.inboxDir, 0o755); err != nil {
		return fmt.Errorf("create inbox directory: %w", err)
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(w.inboxDir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch inbox directory %s: %w", w.inboxDir, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.watcher = watcher
	w.cancel = cancel
	w.running = true
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		w.sweep(runCtx)
		w.loop(runCtx, watcher)
	}()

	w.logger.Info("watching inbox", logging.String("dir", w.inboxDir))
	return nil
}

// Stop terminates the watch loop and releases the fsnotify handle.
func (w *InboxWatcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	cancel := w.cancel
	watcher := w.watcher
	w.running = false
	w.cancel = nil
	w.watcher = nil
	w.mu.Unlock()

	cancel()
	watcher.Close()
	w.wg.Wait()
}

func (w *InboxWatcher) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.consume(ctx, event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("inbox watch error", logging.Error(err))
		}
	}
}

// sweep enqueues topic files that predate the watch.
func (w *InboxWatcher) sweep(ctx context.Context) {
	entries, err := os.ReadDir(w.inboxDir)
	if err != nil {
		w.logger.Warn("inbox sweep failed", logging.Error(err))
		return
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		select {
		case <-ctx.Done():
			return
		default:
		}
		w.consume(ctx, filepath.Join(w.inboxDir, entry.Name()))
	}
}

func (w *InboxWatcher) consume(ctx context.Context, path string) {
	if filepath.Ext(path) != topicFileExt {
		return
	}
	slug := strings.TrimSuffix(filepath.Base(path), topicFileExt)
	if strings.TrimSpace(slug) == "" {
		return
	}

	sourceURL, err := readSourceURL(path)
	if err != nil {
		// Create events can arrive before the writer finishes; the follow-up
		// write event retries the read.
		if !errors.Is(err, os.ErrNotExist) {
			w.logger.Warn("failed to read topic file", logging.String("path", path), logging.Error(err))
		}
		return
	}

	topic, err := w.store.Enqueue(ctx, slug, sourceURL)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		w.logger.Error("failed to enqueue topic from inbox",
			logging.String("path", path),
			logging.Error(err),
		)
		return
	}

	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		w.logger.Warn("failed to remove consumed topic file",
			logging.String("path", path),
			logging.Error(err),
		)
	}
	w.logger.Info("topic queued from inbox",
		logging.String(logging.FieldTopic, topic.Slug),
		logging.String("source_url", topic.SourceURL),
	)
}

// readSourceURL returns the first non-empty line of the topic file when it
// looks like a URL. Bodies that are blank or hold anything else yield "".
func readSourceURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://") {
			return trimmed, nil
		}
		break
	}
	return "", nil
}
