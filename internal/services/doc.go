// Package services defines shared utilities consumed by the pipeline stages
// and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp run IDs, topic slugs, and stage names for
//     logging and tracing.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the retry taxonomy (transient, rate-limited, validation, fatal).
//   - The retry-after carrier that lets HTTP integrations surface
//     server-provided backoff hints to the retry policy.
//
// Use these helpers when wiring new stage logic so operational behaviour
// (error handling, observability, retries) stays uniform across the pipeline.
package services
