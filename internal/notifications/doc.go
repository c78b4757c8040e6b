// Package notifications delivers run events via ntfy.
//
// The service posts to the topic configured in config.toml and degrades
// to a no-op when none is set. Per-event toggles suppress routine
// events; the published-but-unrecorded alert ignores them because it
// signals a ledger that no longer matches the platform.
package notifications
