package notifications_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"easel/internal/config"
	"easel/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.NotifyPublished(context.Background(), "big-o-notation", "https://example.com/p/1", 4); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		send           func(svc notifications.Service) error
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name: "published",
			send: func(svc notifications.Service) error {
				return svc.NotifyPublished(context.Background(), "big-o-notation", "https://www.instagram.com/p/DAbCdEf/", 4)
			},
			expectTitle:   "Easel - Published",
			expectMessage: "✅ Published: big-o-notation (4 slides)\nhttps://www.instagram.com/p/DAbCdEf/",
			expectTags:    "easel,publish,completed",
		},
		{
			name: "published without permalink",
			send: func(svc notifications.Service) error {
				return svc.NotifyPublished(context.Background(), "two-pointers", "", 3)
			},
			expectTitle:   "Easel - Published",
			expectMessage: "✅ Published: two-pointers (3 slides)",
			expectTags:    "easel,publish,completed",
		},
		{
			name: "run failed",
			send: func(svc notifications.Service) error {
				return svc.NotifyRunFailed(context.Background(), "big-o-notation", "scrape", "no results parsed from page")
			},
			expectTitle:    "Easel - Run Failed",
			expectMessage:  "❌ big-o-notation failed at scrape: no results parsed from page",
			expectTags:     "easel,run,failed",
			expectPriority: "high",
		},
		{
			name: "published unrecorded",
			send: func(svc notifications.Service) error {
				return svc.NotifyPublishedUnrecorded(context.Background(), "big-o-notation", "17900012345")
			},
			expectTitle:    "Easel - Ledger Out Of Sync",
			expectMessage:  "⚠️ Post 17900012345 for big-o-notation is live but was not recorded\nReconcile the ledger before re-running this topic",
			expectTags:     "easel,ledger,alert",
			expectPriority: "high",
		},
		{
			name: "daemon started",
			send: func(svc notifications.Service) error {
				return svc.NotifyDaemonStarted(context.Background(), 30*time.Second)
			},
			expectTitle:    "Easel - Daemon Started",
			expectMessage:  "Watching inbox, polling every 30s",
			expectTags:     "easel,daemon,started",
			expectPriority: "low",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured struct {
				title    string
				tags     string
				priority string
				body     string
			}

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				captured.title = r.Header.Get("Title")
				captured.tags = r.Header.Get("Tags")
				captured.priority = r.Header.Get("Priority")
				body, err := io.ReadAll(r.Body)
				if err != nil {
					t.Errorf("read body: %v", err)
				}
				captured.body = string(body)
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := tc.send(svc); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}

			if captured.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, captured.title)
			}
			if captured.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, captured.body)
			}
			if captured.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, captured.tags)
			}
			if captured.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, captured.priority)
			}
		})
	}
}

func TestNtfyServiceHonorsToggles(t *testing.T) {
	var mu sync.Mutex
	var titles []string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		titles = append(titles, r.Header.Get("Title"))
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.Publish = false
	cfg.Notifications.Failure = false
	cfg.Notifications.Daemon = false

	svc := notifications.NewService(&cfg)
	ctx := context.Background()
	if err := svc.NotifyPublished(ctx, "topic", "", 2); err != nil {
		t.Fatalf("suppressed publish returned error: %v", err)
	}
	if err := svc.NotifyRunFailed(ctx, "topic", "render", "overflow"); err != nil {
		t.Fatalf("suppressed failure returned error: %v", err)
	}
	if err := svc.NotifyDaemonStarted(ctx, time.Minute); err != nil {
		t.Fatalf("suppressed daemon event returned error: %v", err)
	}
	if err := svc.NotifyPublishedUnrecorded(ctx, "topic", "17900012345"); err != nil {
		t.Fatalf("unrecorded alert returned error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(titles) != 1 {
		t.Fatalf("expected only the unrecorded alert to send, got %d requests", len(titles))
	}
	if titles[0] != "Easel - Ledger Out Of Sync" {
		t.Fatalf("unexpected title %q", titles[0])
	}
}

func TestNtfyServiceReportsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, "boom")
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL

	svc := notifications.NewService(&cfg)
	err := svc.TestNotification(context.Background())
	if err == nil {
		t.Fatal("expected error from 500 response")
	}
	if !strings.Contains(err.Error(), "ntfy returned 500") {
		t.Fatalf("unexpected error: %v", err)
	}
}
