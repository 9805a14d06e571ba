package omr

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TestStatus is the lifecycle state of a Test. Forward order is
// CREATED, SHEET_GENERATED, KEY_ADDED; no transition leaves
// KEY_ADDED.
type TestStatus string

// Test lifecycle states.
const (
	TestCreated        TestStatus = "CREATED"
	TestSheetGenerated TestStatus = "SHEET_GENERATED"
	TestKeyAdded       TestStatus = "KEY_ADDED"
)

// Valid reports whether s is a known test status.
func (s TestStatus) Valid() bool {
	switch s {
	case TestCreated, TestSheetGenerated, TestKeyAdded:
		return true
	}
	return false
}

// JobStatus is the lifecycle state of a grading Job. ERROR is
// terminal; a failed job is inspected and replaced, never resumed.
type JobStatus string

// Grading job lifecycle states.
const (
	JobCreated   JobStatus = "CREATED"
	JobUploaded  JobStatus = "UPLOADED"
	JobScanning  JobStatus = "SCANNING"
	JobScanned   JobStatus = "SCANNED"
	JobGrading   JobStatus = "GRADING"
	JobCompleted JobStatus = "COMPLETED"
	JobError     JobStatus = "ERROR"
)

// Valid reports whether s is a known job status.
func (s JobStatus) Valid() bool {
	switch s {
	case JobCreated, JobUploaded, JobScanning, JobScanned, JobGrading, JobCompleted, JobError:
		return true
	}
	return false
}

// Legal source states per operation. SCANNING and GRADING appear as
// retry sources so a call interrupted mid-stage can run again;
// COMPLETED admits grading so an unchanged job can be re-graded after
// a key replacement.
var (
	generateSheetFrom = map[TestStatus]bool{
		TestCreated: true,
	}
	setAnswerKeyFrom = map[TestStatus]bool{
		TestSheetGenerated: true,
		TestKeyAdded:       true,
	}
	uploadScansFrom = map[JobStatus]bool{
		JobCreated:  true,
		JobUploaded: true,
	}
	processScansFrom = map[JobStatus]bool{
		JobUploaded: true,
		JobScanning: true,
	}
	gradeJobFrom = map[JobStatus]bool{
		JobScanned:   true,
		JobGrading:   true,
		JobCompleted: true,
	}
)

// CanGenerateSheet reports whether a test in status s may have its
// sheet generated. Re-generation is rejected: distributed sheets and
// any answer key are tied to the existing coordinates.
func CanGenerateSheet(s TestStatus) error {
	if !generateSheetFrom[s] {
		return fmt.Errorf("%w: cannot generate sheet for test in status %s", ErrInvalidState, s)
	}
	return nil
}

// CanSetAnswerKey reports whether a test in status s may accept an
// answer key. Replacing an existing key is allowed.
func CanSetAnswerKey(s TestStatus) error {
	if !setAnswerKeyFrom[s] {
		return fmt.Errorf("%w: cannot set answer key for test in status %s", ErrInvalidState, s)
	}
	return nil
}

// CanUploadScans reports whether a job in status s may accept an
// upload. Re-uploading before processing overwrites the pending
// document.
func CanUploadScans(s JobStatus) error {
	if !uploadScansFrom[s] {
		return fmt.Errorf("%w: cannot upload scans for job in status %s", ErrInvalidState, s)
	}
	return nil
}

// CanProcessScans reports whether a job in status s may run scan
// processing.
func CanProcessScans(s JobStatus) error {
	if !processScansFrom[s] {
		return fmt.Errorf("%w: cannot process scans for job in status %s", ErrInvalidState, s)
	}
	return nil
}

// CanGradeJob reports whether a job in status s may be graded.
func CanGradeJob(s JobStatus) error {
	if !gradeJobFrom[s] {
		return fmt.Errorf("%w: cannot grade job in status %s", ErrInvalidState, s)
	}
	return nil
}

// Test is a bubble test: the owner of one layout, one answer key and
// any number of grading jobs.
type Test struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      TestStatus `json:"status"`
	Archived    bool       `json:"archived,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Job is one grading run over an uploaded scan batch.
type Job struct {
	ID           string    `json:"id"`
	TestID       string    `json:"test_id"`
	Status       JobStatus `json:"status"`
	PageCount    int       `json:"page_count"`
	NumStudents  int       `json:"num_students"`
	NumErrors    int       `json:"num_errors"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// NewTestID returns an identifier like bt_20260314_101530_1a2b3c4d.
func NewTestID() string {
	return newID("bt")
}

// NewJobID returns an identifier like gj_20260314_101530_1a2b3c4d.
func NewJobID() string {
	return newID("gj")
}

func newID(prefix string) string {
	return fmt.Sprintf("%s_%s_%s",
		prefix,
		time.Now().UTC().Format("20060102_150405"),
		uuid.NewString()[:8])
}
