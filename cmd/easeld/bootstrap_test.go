package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"easel/internal/testsupport"
)

func newModelsServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[]}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func waitForFile(t *testing.T, path string) {
	t.Helper()
	deadline := time.After(10 * time.Second)
	for {
		if _, err := os.Stat(path); err == nil {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %s", path)
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func TestRunStartsAndShutsDown(t *testing.T) {
	models := newModelsServer(t)
	cfg := testsupport.NewConfig(t, testsupport.WithGeneratorEndpoint(models.URL))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- run(ctx, cfg, options{LogLevel: "debug", Diagnostic: true})
	}()

	pidPath := filepath.Join(cfg.Paths.LogDir, "easeld.pid")
	waitForFile(t, pidPath)

	data, err := os.ReadFile(pidPath)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("parse pid file %q: %v", data, err)
	}
	if pid != os.Getpid() {
		t.Fatalf("pid file contains %d, want %d", pid, os.Getpid())
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run did not shut down after cancel")
	}

	if _, err := os.Stat(pidPath); !os.IsNotExist(err) {
		t.Fatalf("pid file still present after shutdown: %v", err)
	}
	if _, err := os.Stat(filepath.Join(cfg.Paths.LogDir, "easeld.log")); err != nil {
		t.Fatalf("easeld.log pointer missing: %v", err)
	}
	debugLogs, err := filepath.Glob(filepath.Join(cfg.Paths.LogDir, "easeld-*.debug.json"))
	if err != nil {
		t.Fatalf("glob debug logs: %v", err)
	}
	if len(debugLogs) != 1 {
		t.Fatalf("expected one diagnostic log, got %v", debugLogs)
	}
}

func TestRunRefusesSecondInstance(t *testing.T) {
	models := newModelsServer(t)
	cfg := testsupport.NewConfig(t, testsupport.WithGeneratorEndpoint(models.URL))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- run(ctx, cfg, options{})
	}()
	waitForFile(t, filepath.Join(cfg.Paths.LogDir, "easeld.pid"))

	err := run(context.Background(), cfg, options{})
	if err == nil {
		t.Fatal("expected second instance to fail")
	}
	if !strings.Contains(err.Error(), "already running") {
		t.Fatalf("unexpected error: %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("first instance: %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("first instance did not shut down")
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := run(context.Background(), nil, options{}); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestWritePIDFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "easeld.pid")
	if err := writePIDFile(path); err != nil {
		t.Fatalf("writePIDFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read pid file: %v", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		t.Fatalf("parse pid file %q: %v", data, err)
	}
	if pid != os.Getpid() {
		t.Fatalf("pid file contains %d, want %d", pid, os.Getpid())
	}

	if err := writePIDFile(""); err != nil {
		t.Fatalf("empty path should be a no-op, got %v", err)
	}
}

func TestEnsureCurrentLogPointer(t *testing.T) {
	logDir := t.TempDir()

	first := filepath.Join(logDir, "easeld-20260101T000000.000Z.log")
	if err := os.WriteFile(first, []byte("first run\n"), 0o644); err != nil {
		t.Fatalf("write first log: %v", err)
	}
	if err := ensureCurrentLogPointer(logDir, first); err != nil {
		t.Fatalf("ensureCurrentLogPointer: %v", err)
	}

	pointer := filepath.Join(logDir, "easeld.log")
	data, err := os.ReadFile(pointer)
	if err != nil {
		t.Fatalf("read pointer: %v", err)
	}
	if string(data) != "first run\n" {
		t.Fatalf("pointer content %q, want first run", data)
	}

	second := filepath.Join(logDir, "easeld-20260101T000001.000Z.log")
	if err := os.WriteFile(second, []byte("second run\n"), 0o644); err != nil {
		t.Fatalf("write second log: %v", err)
	}
	if err := ensureCurrentLogPointer(logDir, second); err != nil {
		t.Fatalf("repoint: %v", err)
	}
	data, err = os.ReadFile(pointer)
	if err != nil {
		t.Fatalf("read repointed file: %v", err)
	}
	if string(data) != "second run\n" {
		t.Fatalf("pointer content %q, want second run", data)
	}

	if err := ensureCurrentLogPointer("", first); err != nil {
		t.Fatalf("empty dir should be a no-op, got %v", err)
	}
}
