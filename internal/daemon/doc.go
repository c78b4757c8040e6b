// Package daemon coordinates the long-running easel process.
//
// It wires configuration, the ledger store, the pipeline orchestrator, and the
// topic inbox watcher into a single lifecycle with flock-based locking to
// prevent multiple instances. The scheduler drains the queue one topic at a
// time; the watcher turns files dropped into the inbox into queued topics.
//
// Keep orchestration logic here: stage behavior lives in the pipeline and
// service packages while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
