// Package jobs provides the durable job queue: the job lifecycle model
// and its SQLite-backed store. Jobs survive daemon restarts; a single
// worker drains them in submission order.
package jobs
