package testsupport

import (
	"context"
	"testing"

	"easel/internal/config"
	"easel/internal/ledger"
)

// MustOpenStore opens a ledger.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *ledger.Store {
	t.Helper()

	store, err := ledger.Open(cfg)
	if err != nil {
		t.Fatalf("ledger.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// SeedTopic enqueues a topic for tests using the provided store.
func SeedTopic(t testing.TB, store *ledger.Store, slug string) *ledger.Topic {
	t.Helper()

	topic, err := store.Enqueue(context.Background(), slug, "")
	if err != nil {
		t.Fatalf("store.Enqueue: %v", err)
	}
	return topic
}
