package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"easel/internal/config"
	"easel/internal/daemon"
	"easel/internal/generate"
	"easel/internal/ledger"
	"easel/internal/logging"
	"easel/internal/notifications"
	"easel/internal/pipeline"
	"easel/internal/preflight"
	"easel/internal/publish"
	"easel/internal/render"
	"easel/internal/scrape"
)

// options configures daemon runtime behavior beyond the config file.
type options struct {
	LogLevel   string
	Diagnostic bool
}

// run wires the pipeline services into a daemon and blocks until the
// context is cancelled. Each run writes a stamped log file; easeld.log
// always points at the newest one.
func run(ctx context.Context, cfg *config.Config, opts options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	runStamp := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("easeld-%s.log", runStamp))

	level := strings.TrimSpace(opts.LogLevel)
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:            level,
		Format:           cfg.Logging.Format,
		OutputPaths:      []string{"stdout", logPath},
		ErrorOutputPaths: []string{"stderr", logPath},
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	var debugPath string
	if opts.Diagnostic {
		debugPath = filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("easeld-%s.debug.json", runStamp))
		debugLogger, debugErr := logging.New(logging.Options{
			Level:            "debug",
			Format:           "json",
			OutputPaths:      []string{debugPath},
			ErrorOutputPaths: []string{debugPath},
		})
		if debugErr != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to initialize debug logger: %v\n", debugErr)
		} else {
			logger = logging.TeeLogger(logger, debugLogger.Handler())
			logger.Info("diagnostic mode enabled", logging.String("debug_log_path", debugPath))
		}
	}

	if err := ensureCurrentLogPointer(cfg.Paths.LogDir, logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update easeld.log link: %v\n", err)
	}
	logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "easeld-*.log", Exclude: []string{logPath}},
		logging.RetentionTarget{Dir: cfg.Paths.LogDir, Pattern: "easeld-*.debug.json", Exclude: []string{debugPath}},
	)

	pidPath := filepath.Join(cfg.Paths.LogDir, "easeld.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	logPreflightSnapshot(ctx, logger, cfg)

	store, err := ledger.Open(cfg)
	if err != nil {
		logger.Error("open ledger store", logging.Error(err))
		return err
	}
	defer store.Close()

	renderer, err := render.NewService(cfg, logger)
	if err != nil {
		return fmt.Errorf("init renderer: %w", err)
	}

	notifier := notifications.NewService(cfg)
	orchestrator := pipeline.New(cfg, logger, store,
		scrape.NewService(cfg, logger),
		generate.NewService(cfg, logger),
		renderer,
		publish.NewService(cfg, logger),
	)
	sched := daemon.NewScheduler(cfg, store, orchestrator, notifier, logger)

	var watch *daemon.InboxWatcher
	if strings.TrimSpace(cfg.Paths.InboxDir) != "" {
		watch, err = daemon.NewInboxWatcher(cfg.Paths.InboxDir, store, logger)
		if err != nil {
			return fmt.Errorf("init inbox watcher: %w", err)
		}
	}

	d, err := daemon.New(cfg, store, logger, sched, watch)
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(ctx); err != nil {
		return err
	}

	pollInterval := time.Duration(cfg.Daemon.PollInterval) * time.Second
	if err := notifier.NotifyDaemonStarted(ctx, pollInterval); err != nil {
		logger.Debug("daemon start notification failed", logging.Error(err))
	}

	<-ctx.Done()
	logger.Info("easel daemon shutting down")
	return nil
}

// ensureCurrentLogPointer repoints easeld.log at the newest run log,
// falling back to a hard link on filesystems without symlink support.
func ensureCurrentLogPointer(logDir, target string) error {
	if logDir == "" || target == "" {
		return nil
	}
	current := filepath.Join(logDir, "easeld.log")
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

// logPreflightSnapshot records startup check results. Failed checks warn
// rather than abort so the daemon can start while credentials are still
// being fixed; the affected stage reports the same problem when it runs.
func logPreflightSnapshot(ctx context.Context, logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	results := preflight.RunAll(ctx, cfg)
	for _, result := range results {
		if result.Passed {
			continue
		}
		logger.Warn("preflight check failed",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
		)
	}
	if preflight.AllPassed(results) {
		logger.Info("preflight checks passed", logging.Int("checks", len(results)))
	}
}
