package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"

	"github.com/gofrs/flock"

	"easel/internal/config"
	"easel/internal/ledger"
	"easel/internal/logging"
)

// Daemon bundles the scheduler and inbox watcher into one lifecycle and
// enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	store  *ledger.Store
	sched  *Scheduler
	watch  *InboxWatcher

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	Scheduler    SchedulerStatus
	LedgerPath   string
	LockFilePath string
}

// New constructs a daemon with initialized dependencies. The watcher may be
// nil when no inbox directory is configured.
func New(cfg *config.Config, store *ledger.Store, logger *slog.Logger, sched *Scheduler, watch *InboxWatcher) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil || sched == nil {
		return nil, errors.New("daemon requires config, store, logger, and scheduler")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "easeld.lock")
	return &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		store:    store,
		sched:    sched,
		watch:    watch,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock and launches background processing.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another easel daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.sched.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start scheduler: %w", err)
	}
	if d.watch != nil {
		if err := d.watch.Start(runCtx); err != nil {
			d.sched.Stop()
			cancel()
			_ = d.lock.Unlock()
			return fmt.Errorf("start inbox watcher: %w", err)
		}
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("easel daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.watch != nil {
		d.watch.Stop()
	}
	d.sched.Stop()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("easel daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status.
func (d *Daemon) Status() Status {
	return Status{
		Running:      d.running.Load(),
		Scheduler:    d.sched.Status(),
		LedgerPath:   d.store.Path(),
		LockFilePath: d.lockPath,
	}
}
