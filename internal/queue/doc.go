// Package queue implements the durable job queue, its single worker, and the
// cron scheduler that feeds it.
//
// Jobs are JSON envelopes pushed onto a redis list. Exactly one worker drains
// the list and drives [tasks.Runner], so queued runs execute strictly one at
// a time. Cancellation requests travel out of band through a redis flag the
// running task polls between items.
package queue
