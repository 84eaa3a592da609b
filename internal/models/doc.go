// Package models defines domain entities for the media sync engine.
//
// The package contains two categories of types:
//
// 1. Provider-facing values: normalized metadata handed back by provider transformers
//   - [MediaDetails] : normalized item metadata plus genre/credit side data
//   - [Credit] : a single person attached to an item
//
// 2. Persistent entities: rows in the local catalog and job history
//   - [MediaItem] : one tracked item per (media type, provider id)
//   - [JobRecord] : one queued or direct task invocation with captured logs and metrics
//   - [LogEntry] : a single captured log line scoped to a step
//
// JobRecord status transitions exactly once from a running state to a terminal
// state and is immutable afterwards except for operator deletion.
package models
