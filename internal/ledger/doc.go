// Package ledger persists pipeline bookkeeping in SQLite: the queue of
// topics waiting for a run and the publish records that prove a topic
// already reached the platform.
//
// The Store serializes ledger access per topic so a publish check and the
// append that follows it cannot interleave across concurrent runs; the
// publish_records primary key backs that up across processes. The topics
// queue is transient working state, while publish records are durable
// history and survive queue clears.
//
// Schema changes bump the version in schema.go; users clear the database to
// adopt the new schema. Additive changes ship as migration files instead.
package ledger
