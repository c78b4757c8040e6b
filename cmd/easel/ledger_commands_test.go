package main

import (
	"context"
	"strings"
	"testing"
	"time"

	"easel/internal/ledger"
)

func TestLedgerListEmpty(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"ledger", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("ledger list: %v", err)
	}
	requireContains(t, out, "Ledger is empty")
}

func TestLedgerListAndShow(t *testing.T) {
	env := setupCLITestEnv(t)
	ctx := context.Background()

	record := &ledger.PublishRecord{
		TopicID:     "raft-consensus",
		RunID:       "run-1",
		PostID:      "post-1001",
		Permalink:   "https://www.instagram.com/p/raft",
		SlideCount:  5,
		PublishedAt: time.Now().UTC(),
	}
	if err := env.store.Append(ctx, record); err != nil {
		t.Fatalf("append record: %v", err)
	}

	out, _, err := runCLI(t, []string{"ledger", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("ledger list: %v", err)
	}
	requireContains(t, out, "raft-consensus")
	requireContains(t, out, "post-1001")

	out, _, err = runCLI(t, []string{"ledger", "show", "Raft Consensus"}, env.configPath)
	if err != nil {
		t.Fatalf("ledger show: %v", err)
	}
	requireContains(t, out, "Topic:      raft-consensus")
	requireContains(t, out, "Post:       post-1001")
	requireContains(t, out, "Permalink:  https://www.instagram.com/p/raft")
	requireContains(t, out, "Slides:     5")
}

func TestLedgerShowMissing(t *testing.T) {
	env := setupCLITestEnv(t)

	_, _, err := runCLI(t, []string{"ledger", "show", "nope"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "no publish record for nope") {
		t.Fatalf("expected missing record error, got %v", err)
	}
}
