// Package operations runs operator actions as units of work on a bounded
// worker pool.
//
// Each action (generate, invalidate, maintenance change, batch) is
// submitted as a Job. Submission never blocks: a full queue is reported to
// the caller straight away. A job runs to completion once started; there
// is no cancellation. Every job finishes exactly once, either completed
// with a result or failed with a classified error, and that final state is
// delivered both on the job's Done channel and to the update listeners
// (the WebSocket hub).
//
// Panics inside a job are recovered and reported as failures, so a broken
// action never takes the worker down with it.
package operations
