package main

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

func TestTestNotifyNotConfigured(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "ntfy topic not configured")
}

func TestTestNotifySends(t *testing.T) {
	env := setupCLITestEnv(t)

	var mu sync.Mutex
	var title string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		title = r.Header.Get("Title")
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	env.cfg.Notifications.NtfyTopic = server.URL
	writeTestConfig(t, env.configPath, env.cfg)

	out, _, err := runCLI(t, []string{"test-notify"}, env.configPath)
	if err != nil {
		t.Fatalf("test-notify: %v", err)
	}
	requireContains(t, out, "Test notification sent")

	mu.Lock()
	defer mu.Unlock()
	if title != "Easel - Test" {
		t.Fatalf("unexpected notification title %q", title)
	}
}
