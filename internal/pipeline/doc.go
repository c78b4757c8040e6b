// Package pipeline sequences the four content stages (scrape, generate,
// render, publish) for one topic and owns the retry machinery between them.
//
// Each stage call is wrapped by a Runner that drives the stage's retry
// Policy and produces exactly one Result: success, fatal failure, or
// cancellation. Retryable failures exist only inside the runner loop; the
// orchestrator halts on the first fatal stage and never skips ahead.
//
// The Orchestrator consults the publish ledger twice: once at run start so
// an already-published topic costs no model or platform calls, and again
// immediately before publishing under the per-topic lock, which closes the
// window where two concurrent runs of the same topic could both post.
package pipeline
