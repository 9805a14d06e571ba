package store

import (
	"context"

	omr "github.com/omrkit/omr"
)

// UploadKind tells how a job's uploaded scan bytes are stored.
type UploadKind string

// Upload kinds.
const (
	// UploadPDF is a single multi-page PDF document.
	UploadPDF UploadKind = "pdf"

	// UploadImages is one encoded image file per page.
	UploadImages UploadKind = "images"
)

// ListOpts paginates list queries. Zero Limit means no limit; rows are
// ordered newest first.
type ListOpts struct {
	Limit  int
	Offset int
}

// TestFilter narrows Tests listings. The zero value lists every
// test that is not archived.
type TestFilter struct {
	// Status keeps only tests in this status; empty keeps all.
	Status omr.TestStatus

	// IncludeArchived keeps archived tests in the listing.
	IncludeArchived bool

	ListOpts
}

// JobFilter narrows Jobs listings. The zero value lists every job.
type JobFilter struct {
	// TestID keeps only jobs of this test; empty keeps all.
	TestID string

	// Status keeps only jobs in this status; empty keeps all.
	Status omr.JobStatus

	ListOpts
}

// Store is the record repository consumed by the exam and grading
// managers. Implementations must keep each method atomic: either the
// whole write lands or none of it.
//
// Status-moving methods take the status the caller observed; the write
// applies only if the row still holds it. A stale observation returns
// ErrInvalidState, a missing row ErrNotFound.
type Store interface {
	// CreateTest inserts a new test row.
	CreateTest(ctx context.Context, t *omr.Test) error

	// Test returns the test by ID.
	Test(ctx context.Context, id string) (*omr.Test, error)

	// Tests lists tests, newest first.
	Tests(ctx context.Context, f TestFilter) ([]omr.Test, error)

	// SetTestStatus moves a test from one status to another.
	SetTestStatus(ctx context.Context, id string, from, to omr.TestStatus) error

	// SetTestArchived flips the archived flag. Status is unchanged.
	SetTestArchived(ctx context.Context, id string, archived bool) error

	// DeleteTest removes the test and everything hanging off it:
	// sheet, answer key, jobs, uploads, pages, responses, grades.
	DeleteTest(ctx context.Context, id string) error

	// SaveSheet stores the generated layout and printable PDF and
	// moves the test to SHEET_GENERATED in the same transaction.
	SaveSheet(ctx context.Context, testID string, layout *omr.Layout, pdf []byte, from omr.TestStatus) error

	// Layout returns the stored layout of a test.
	Layout(ctx context.Context, testID string) (*omr.Layout, error)

	// SheetPDF returns the stored printable sheet.
	SheetPDF(ctx context.Context, testID string) ([]byte, error)

	// SaveAnswerKey stores (or replaces) the key and moves the test
	// to KEY_ADDED in the same transaction.
	SaveAnswerKey(ctx context.Context, testID string, key omr.AnswerKey, from omr.TestStatus) error

	// AnswerKey returns the stored key of a test.
	AnswerKey(ctx context.Context, testID string) (omr.AnswerKey, error)

	// CreateJob inserts a new grading job row.
	CreateJob(ctx context.Context, j *omr.Job) error

	// Job returns the job by ID.
	Job(ctx context.Context, id string) (*omr.Job, error)

	// Jobs lists jobs, newest first.
	Jobs(ctx context.Context, f JobFilter) ([]omr.Job, error)

	// SetJobStatus moves a job from one status to another.
	SetJobStatus(ctx context.Context, id string, from, to omr.JobStatus) error

	// MarkJobError stamps the job ERROR with a message, from any
	// status.
	MarkJobError(ctx context.Context, id, msg string) error

	// SaveUpload stores the uploaded scan bytes, records the page
	// count and moves the job to UPLOADED in the same transaction.
	// A previous upload is replaced.
	SaveUpload(ctx context.Context, jobID string, kind UploadKind, blobs [][]byte, pageCount int, from omr.JobStatus) error

	// Upload returns the stored scan bytes of a job.
	Upload(ctx context.Context, jobID string) (UploadKind, [][]byte, error)

	// SaveScanResults replaces the job's pages and responses, updates
	// the student and error counters and moves the job to SCANNED in
	// the same transaction.
	SaveScanResults(ctx context.Context, jobID string, pages []omr.PageResult, responses []omr.StudentResponse, numErrors int, from omr.JobStatus) error

	// Pages returns the per-page outcomes of a processed job.
	Pages(ctx context.Context, jobID string) ([]omr.PageResult, error)

	// Responses returns the decoded responses of a processed job.
	Responses(ctx context.Context, jobID string) ([]omr.StudentResponse, error)

	// SaveGrades replaces the job's grade records and gradebook CSV
	// and moves the job to COMPLETED in the same transaction.
	SaveGrades(ctx context.Context, jobID string, grades []omr.GradeRecord, gradebook []byte, from omr.JobStatus) error

	// Grades returns the grade records of a completed job.
	Grades(ctx context.Context, jobID string) ([]omr.GradeRecord, error)

	// Gradebook returns the stored gradebook CSV of a completed job.
	Gradebook(ctx context.Context, jobID string) ([]byte, error)

	// Close releases the underlying database.
	Close() error
}
