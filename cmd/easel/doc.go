// Package main hosts the easel CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into pipeline
// runs, queue and ledger maintenance, preview generation, status reporting,
// and configuration scaffolding. It centralizes configuration resolution and
// ledger access so subcommands can focus on user experience instead of
// wiring.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
