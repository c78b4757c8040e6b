// Package preflight provides readiness checks for the external services
// and filesystem paths a pipeline run depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll at startup and refuses to enter the poll
//     loop while any check fails, since every queued topic would burn
//     its retry budget against the same broken dependency.
//   - The CLI "easel status" command renders the same results as a
//     table for interactive diagnosis.
//
// Platform checks are skipped in dry-run mode; each is one attempt with
// a short timeout, never retried.
package preflight
