// Package grading runs scan batches against a test: upload, process,
// grade, and read back the results.
//
// A grading job is a checkpointed state machine (see omr.JobStatus).
// Each stage re-checks legality against the stored status, moves the
// job with a compare-and-set and writes its results in the same
// transaction, so an interrupted stage can be re-run and concurrent
// callers cannot double-apply a stage. Page-level failures degrade
// into the job's error counter; only a batch with zero readable pages
// or a missing answer key fails the whole job.
package grading
