package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"easel/internal/ledger"
)

func TestStatusCommand(t *testing.T) {
	env := setupCLITestEnv(t)

	models := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer models.Close()

	env.cfg.Generator.BaseURL = models.URL
	writeTestConfig(t, env.configPath, env.cfg)

	ctx := context.Background()
	if _, err := env.store.Enqueue(ctx, "pending-topic", ""); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if err := env.store.Append(ctx, &ledger.PublishRecord{
		TopicID: "shipped-topic",
		RunID:   "run-1",
		PostID:  "post-1",
	}); err != nil {
		t.Fatalf("append record: %v", err)
	}

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}

	requireContains(t, out, "== Daemon ==")
	requireContains(t, out, "[INFO] Not running")
	requireContains(t, out, "== Preflight ==")
	requireContains(t, out, "[OK] API reachable")
	requireContains(t, out, "dry-run (skipped)")
	requireContains(t, out, "== Queue ==")
	requireContains(t, out, "pending")
	requireContains(t, out, "Publish records: 1")
	requireContains(t, out, "== Ledger ==")
	requireContains(t, out, "[OK] ledger database healthy")
}

func TestStatusCommandEmptyQueue(t *testing.T) {
	env := setupCLITestEnv(t)

	models := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer models.Close()

	env.cfg.Generator.BaseURL = models.URL
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Queue is empty")
	requireContains(t, out, "Publish records: 0")
}
