// Package tasks implements the task engine: named, schema-validated units of
// work resolved from a registry and executed against a per-run execution
// context.
//
// A [Definition] declares a task once, at process start. Runs are started
// either directly through [Runner] (CLI and "run now" surfaces) or by the job
// queue worker; both paths share the same [Context], capturing logger and
// job-record persistence contract, so the two entry points are
// interchangeable with respect to what gets recorded.
package tasks
