package store

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	omr "github.com/omrkit/omr"
)

func openStore(t *testing.T) *SQLStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "omr.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedTest(t *testing.T, s *SQLStore, status omr.TestStatus, created time.Time) *omr.Test {
	t.Helper()
	test := &omr.Test{
		ID:        omr.NewTestID(),
		Name:      "Midterm",
		Status:    status,
		CreatedAt: created,
	}
	if err := s.CreateTest(context.Background(), test); err != nil {
		t.Fatalf("CreateTest: %v", err)
	}
	return test
}

func seedJob(t *testing.T, s *SQLStore, testID string, status omr.JobStatus) *omr.Job {
	t.Helper()
	job := &omr.Job{
		ID:        omr.NewJobID(),
		TestID:    testID,
		Status:    status,
		CreatedAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	if err := s.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("CreateJob: %v", err)
	}
	return job
}

func testLayout(t *testing.T) *omr.Layout {
	t.Helper()
	l, err := omr.GenerateLayout(omr.LayoutParams{
		QuestionCount: 5,
		PageSize:      omr.PageA4,
		IDLength:      4,
		IDOrientation: omr.IDVertical,
	})
	if err != nil {
		t.Fatalf("GenerateLayout: %v", err)
	}
	return l
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(""); !errors.Is(err, omr.ErrInvalidParameter) {
		t.Errorf("err = %v, want ErrInvalidParameter", err)
	}
}

func TestCreateTest_RoundTrip(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	created := time.Date(2026, 3, 14, 9, 30, 0, 123456789, time.UTC)

	want := &omr.Test{
		ID:          omr.NewTestID(),
		Name:        "Biology Midterm",
		Description: "Chapter 4 through 7",
		Status:      omr.TestCreated,
		CreatedAt:   created,
	}
	if err := s.CreateTest(ctx, want); err != nil {
		t.Fatalf("CreateTest: %v", err)
	}

	got, err := s.Test(ctx, want.ID)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if got.ID != want.ID || got.Name != want.Name || got.Description != want.Description {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if got.Status != omr.TestCreated || got.Archived {
		t.Errorf("status = %s archived = %v", got.Status, got.Archived)
	}
	if !got.CreatedAt.Equal(created) {
		t.Errorf("created_at = %v, want %v", got.CreatedAt, created)
	}

	if err := s.CreateTest(ctx, want); err == nil {
		t.Error("duplicate insert did not fail")
	}
	if _, err := s.Test(ctx, "bt_missing"); !errors.Is(err, omr.ErrNotFound) {
		t.Errorf("unknown test err = %v, want ErrNotFound", err)
	}
}

func TestSetTestStatus(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	test := seedTest(t, s, omr.TestCreated, time.Now().UTC())

	if err := s.SetTestStatus(ctx, test.ID, omr.TestCreated, omr.TestSheetGenerated); err != nil {
		t.Fatalf("SetTestStatus: %v", err)
	}
	got, err := s.Test(ctx, test.ID)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if got.Status != omr.TestSheetGenerated {
		t.Errorf("status = %s, want SHEET_GENERATED", got.Status)
	}

	// The observed status is stale now.
	err = s.SetTestStatus(ctx, test.ID, omr.TestCreated, omr.TestSheetGenerated)
	if !errors.Is(err, omr.ErrInvalidState) {
		t.Errorf("stale cas err = %v, want ErrInvalidState", err)
	}
	err = s.SetTestStatus(ctx, "bt_missing", omr.TestCreated, omr.TestSheetGenerated)
	if !errors.Is(err, omr.ErrNotFound) {
		t.Errorf("unknown test err = %v, want ErrNotFound", err)
	}
}

func TestTests_Filter(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)

	oldest := seedTest(t, s, omr.TestCreated, base)
	middle := seedTest(t, s, omr.TestKeyAdded, base.Add(time.Hour))
	newest := seedTest(t, s, omr.TestCreated, base.Add(2*time.Hour))
	if err := s.SetTestArchived(ctx, middle.ID, true); err != nil {
		t.Fatalf("SetTestArchived: %v", err)
	}

	got, err := s.Tests(ctx, TestFilter{})
	if err != nil {
		t.Fatalf("Tests: %v", err)
	}
	if len(got) != 2 || got[0].ID != newest.ID || got[1].ID != oldest.ID {
		t.Errorf("default listing = %v", ids(got))
	}

	got, err = s.Tests(ctx, TestFilter{IncludeArchived: true})
	if err != nil {
		t.Fatalf("Tests: %v", err)
	}
	if len(got) != 3 || got[1].ID != middle.ID {
		t.Errorf("archived listing = %v", ids(got))
	}

	got, err = s.Tests(ctx, TestFilter{Status: omr.TestKeyAdded, IncludeArchived: true})
	if err != nil {
		t.Fatalf("Tests: %v", err)
	}
	if len(got) != 1 || got[0].ID != middle.ID {
		t.Errorf("status listing = %v", ids(got))
	}

	got, err = s.Tests(ctx, TestFilter{ListOpts: ListOpts{Limit: 1, Offset: 1}})
	if err != nil {
		t.Fatalf("Tests: %v", err)
	}
	if len(got) != 1 || got[0].ID != oldest.ID {
		t.Errorf("paged listing = %v", ids(got))
	}
}

func ids(tests []omr.Test) []string {
	out := make([]string, len(tests))
	for i := range tests {
		out[i] = tests[i].ID
	}
	return out
}

func TestSaveSheet(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	test := seedTest(t, s, omr.TestCreated, time.Now().UTC())
	layout := testLayout(t)
	pdf := []byte("%PDF-1.4 sheet")

	if err := s.SaveSheet(ctx, test.ID, layout, pdf, omr.TestCreated); err != nil {
		t.Fatalf("SaveSheet: %v", err)
	}

	got, err := s.Test(ctx, test.ID)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if got.Status != omr.TestSheetGenerated {
		t.Errorf("status = %s, want SHEET_GENERATED", got.Status)
	}

	gotLayout, err := s.Layout(ctx, test.ID)
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	if !reflect.DeepEqual(gotLayout, layout) {
		t.Error("layout did not round-trip")
	}
	gotPDF, err := s.SheetPDF(ctx, test.ID)
	if err != nil {
		t.Fatalf("SheetPDF: %v", err)
	}
	if string(gotPDF) != string(pdf) {
		t.Errorf("pdf = %q", gotPDF)
	}

	// The test is no longer CREATED, so a second save loses the race.
	err = s.SaveSheet(ctx, test.ID, layout, pdf, omr.TestCreated)
	if !errors.Is(err, omr.ErrInvalidState) {
		t.Errorf("second save err = %v, want ErrInvalidState", err)
	}

	if _, err := s.Layout(ctx, "bt_missing"); !errors.Is(err, omr.ErrNotFound) {
		t.Errorf("unknown layout err = %v, want ErrNotFound", err)
	}
}

func TestSaveAnswerKey(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	test := seedTest(t, s, omr.TestSheetGenerated, time.Now().UTC())

	key, err := omr.ParseAnswerKey([]omr.KeyInput{
		{Question: "Q1", Answer: "B"},
		{Question: "Q2", Answer: "A,C", Points: 2},
	})
	if err != nil {
		t.Fatalf("ParseAnswerKey: %v", err)
	}

	if err := s.SaveAnswerKey(ctx, test.ID, key, omr.TestSheetGenerated); err != nil {
		t.Fatalf("SaveAnswerKey: %v", err)
	}
	got, err := s.AnswerKey(ctx, test.ID)
	if err != nil {
		t.Fatalf("AnswerKey: %v", err)
	}
	if !reflect.DeepEqual(got, key) {
		t.Errorf("key = %+v, want %+v", got, key)
	}

	// Replacing the key is a KEY_ADDED to KEY_ADDED move.
	replacement, err := omr.ParseAnswerKey([]omr.KeyInput{{Question: "Q1", Answer: "D"}})
	if err != nil {
		t.Fatalf("ParseAnswerKey: %v", err)
	}
	if err := s.SaveAnswerKey(ctx, test.ID, replacement, omr.TestKeyAdded); err != nil {
		t.Fatalf("replace key: %v", err)
	}
	got, err = s.AnswerKey(ctx, test.ID)
	if err != nil {
		t.Fatalf("AnswerKey: %v", err)
	}
	if !reflect.DeepEqual(got, replacement) {
		t.Errorf("replaced key = %+v", got)
	}

	if _, err := s.AnswerKey(ctx, "bt_missing"); !errors.Is(err, omr.ErrNotFound) {
		t.Errorf("unknown key err = %v, want ErrNotFound", err)
	}
}

func TestJobLifecycleWrites(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	test := seedTest(t, s, omr.TestKeyAdded, time.Now().UTC())
	job := seedJob(t, s, test.ID, omr.JobCreated)

	err := s.SetJobStatus(ctx, job.ID, omr.JobUploaded, omr.JobScanning)
	if !errors.Is(err, omr.ErrInvalidState) {
		t.Errorf("wrong-from err = %v, want ErrInvalidState", err)
	}
	err = s.SetJobStatus(ctx, "gj_missing", omr.JobCreated, omr.JobUploaded)
	if !errors.Is(err, omr.ErrNotFound) {
		t.Errorf("unknown job err = %v, want ErrNotFound", err)
	}

	if err := s.MarkJobError(ctx, job.ID, "zero decodable pages"); err != nil {
		t.Fatalf("MarkJobError: %v", err)
	}
	got, err := s.Job(ctx, job.ID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if got.Status != omr.JobError || got.ErrorMessage != "zero decodable pages" {
		t.Errorf("job = %+v", got)
	}
}

func TestSaveUpload(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	test := seedTest(t, s, omr.TestKeyAdded, time.Now().UTC())
	job := seedJob(t, s, test.ID, omr.JobCreated)

	if err := s.SaveUpload(ctx, job.ID, UploadPDF, [][]byte{[]byte("%PDF-scan")}, 3, omr.JobCreated); err != nil {
		t.Fatalf("SaveUpload: %v", err)
	}
	got, err := s.Job(ctx, job.ID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if got.Status != omr.JobUploaded || got.PageCount != 3 {
		t.Errorf("job = %+v", got)
	}
	kind, blobs, err := s.Upload(ctx, job.ID)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if kind != UploadPDF || len(blobs) != 1 || string(blobs[0]) != "%PDF-scan" {
		t.Errorf("upload = %s %q", kind, blobs)
	}

	// Re-upload before processing replaces the stored document.
	pages := [][]byte{[]byte("img0"), []byte("img1")}
	if err := s.SaveUpload(ctx, job.ID, UploadImages, pages, 2, omr.JobUploaded); err != nil {
		t.Fatalf("re-upload: %v", err)
	}
	kind, blobs, err = s.Upload(ctx, job.ID)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if kind != UploadImages || len(blobs) != 2 || string(blobs[1]) != "img1" {
		t.Errorf("upload = %s %q", kind, blobs)
	}

	if err := s.SaveUpload(ctx, job.ID, "zip", pages, 2, omr.JobUploaded); !errors.Is(err, omr.ErrInvalidParameter) {
		t.Errorf("bad kind err = %v, want ErrInvalidParameter", err)
	}
	if err := s.SaveUpload(ctx, job.ID, UploadPDF, nil, 0, omr.JobUploaded); !errors.Is(err, omr.ErrInvalidParameter) {
		t.Errorf("empty upload err = %v, want ErrInvalidParameter", err)
	}

	fresh := seedJob(t, s, test.ID, omr.JobCreated)
	if _, _, err := s.Upload(ctx, fresh.ID); !errors.Is(err, omr.ErrNotFound) {
		t.Errorf("no-upload err = %v, want ErrNotFound", err)
	}
}

func TestSaveScanResults(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	test := seedTest(t, s, omr.TestKeyAdded, time.Now().UTC())
	job := seedJob(t, s, test.ID, omr.JobScanning)

	pages := []omr.PageResult{
		{Index: 0, Status: omr.PageOK},
		{Index: 1, Status: omr.PageError, Reason: "alignment failed"},
		{Index: 2, Status: omr.PageOK, LowConfidence: true},
	}
	responses := []omr.StudentResponse{
		{
			StudentID: "1234",
			PageIndex: 0,
			Answers:   map[string]omr.Selection{"Q1": omr.NewSelection("B")},
		},
		{
			StudentID:     "5?78",
			PageIndex:     2,
			Answers:       map[string]omr.Selection{"Q2": omr.NewSelection("A", "C")},
			Ambiguities:   []string{"ID column 1 has 2 filled rows"},
			LowConfidence: true,
		},
	}

	if err := s.SaveScanResults(ctx, job.ID, pages, responses, 2, omr.JobScanning); err != nil {
		t.Fatalf("SaveScanResults: %v", err)
	}

	got, err := s.Job(ctx, job.ID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if got.Status != omr.JobScanned || got.NumStudents != 2 || got.NumErrors != 2 {
		t.Errorf("job = %+v", got)
	}

	gotPages, err := s.Pages(ctx, job.ID)
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if !reflect.DeepEqual(gotPages, pages) {
		t.Errorf("pages = %+v, want %+v", gotPages, pages)
	}
	gotResponses, err := s.Responses(ctx, job.ID)
	if err != nil {
		t.Fatalf("Responses: %v", err)
	}
	if !reflect.DeepEqual(gotResponses, responses) {
		t.Errorf("responses = %+v, want %+v", gotResponses, responses)
	}

	// Re-processing replaces everything.
	rePages := []omr.PageResult{{Index: 0, Status: omr.PageOK}}
	reResponses := responses[:1]
	if err := s.SetJobStatus(ctx, job.ID, omr.JobScanned, omr.JobScanning); err != nil {
		t.Fatalf("SetJobStatus: %v", err)
	}
	if err := s.SaveScanResults(ctx, job.ID, rePages, reResponses, 0, omr.JobScanning); err != nil {
		t.Fatalf("re-save: %v", err)
	}
	gotPages, err = s.Pages(ctx, job.ID)
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if len(gotPages) != 1 {
		t.Errorf("pages after re-save = %+v", gotPages)
	}
	gotResponses, err = s.Responses(ctx, job.ID)
	if err != nil {
		t.Fatalf("Responses: %v", err)
	}
	if len(gotResponses) != 1 {
		t.Errorf("responses after re-save = %+v", gotResponses)
	}
}

func TestSaveGrades(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	test := seedTest(t, s, omr.TestKeyAdded, time.Now().UTC())
	job := seedJob(t, s, test.ID, omr.JobGrading)

	grades := []omr.GradeRecord{
		{
			StudentID: "1234",
			PageIndex: 0,
			Scores:    map[string]float64{"Q1": 1, "Q2": 0.5},
			Total:     1.5,
			Possible:  3,
			Percent:   50,
		},
	}
	csv := []byte("Student_ID,Q1,Q2,Total_Score,Total_Possible,Percent_Grade\n")

	if err := s.SaveGrades(ctx, job.ID, grades, csv, omr.JobGrading); err != nil {
		t.Fatalf("SaveGrades: %v", err)
	}

	got, err := s.Job(ctx, job.ID)
	if err != nil {
		t.Fatalf("Job: %v", err)
	}
	if got.Status != omr.JobCompleted {
		t.Errorf("status = %s, want COMPLETED", got.Status)
	}
	gotGrades, err := s.Grades(ctx, job.ID)
	if err != nil {
		t.Fatalf("Grades: %v", err)
	}
	if !reflect.DeepEqual(gotGrades, grades) {
		t.Errorf("grades = %+v, want %+v", gotGrades, grades)
	}
	gotCSV, err := s.Gradebook(ctx, job.ID)
	if err != nil {
		t.Fatalf("Gradebook: %v", err)
	}
	if string(gotCSV) != string(csv) {
		t.Errorf("gradebook = %q", gotCSV)
	}

	// Re-grading a completed job overwrites in place.
	regraded := []omr.GradeRecord{grades[0], {StudentID: "5678", PageIndex: 1, Total: 3, Possible: 3, Percent: 100}}
	if err := s.SaveGrades(ctx, job.ID, regraded, csv, omr.JobCompleted); err != nil {
		t.Fatalf("re-grade: %v", err)
	}
	gotGrades, err = s.Grades(ctx, job.ID)
	if err != nil {
		t.Fatalf("Grades: %v", err)
	}
	if len(gotGrades) != 2 {
		t.Errorf("grades after re-grade = %+v", gotGrades)
	}

	if _, err := s.Gradebook(ctx, "gj_missing"); !errors.Is(err, omr.ErrNotFound) {
		t.Errorf("unknown gradebook err = %v, want ErrNotFound", err)
	}
}

func TestJobs_Filter(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	testA := seedTest(t, s, omr.TestKeyAdded, time.Now().UTC())
	testB := seedTest(t, s, omr.TestKeyAdded, time.Now().UTC())

	jobA1 := seedJob(t, s, testA.ID, omr.JobCreated)
	jobA2 := seedJob(t, s, testA.ID, omr.JobCompleted)
	jobB := seedJob(t, s, testB.ID, omr.JobCreated)

	got, err := s.Jobs(ctx, JobFilter{TestID: testA.ID})
	if err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("jobs for test A = %d, want 2", len(got))
	}
	seen := map[string]bool{got[0].ID: true, got[1].ID: true}
	if !seen[jobA1.ID] || !seen[jobA2.ID] {
		t.Errorf("test A listing = %+v", got)
	}

	got, err = s.Jobs(ctx, JobFilter{Status: omr.JobCompleted})
	if err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	if len(got) != 1 || got[0].ID != jobA2.ID {
		t.Errorf("completed jobs = %+v", got)
	}

	got, err = s.Jobs(ctx, JobFilter{TestID: testB.ID, Status: omr.JobCreated})
	if err != nil {
		t.Fatalf("Jobs: %v", err)
	}
	if len(got) != 1 || got[0].ID != jobB.ID {
		t.Errorf("test B jobs = %+v", got)
	}
}

func TestDeleteTest_Cascades(t *testing.T) {
	s := openStore(t)
	ctx := context.Background()
	test := seedTest(t, s, omr.TestCreated, time.Now().UTC())
	layout := testLayout(t)

	if err := s.SaveSheet(ctx, test.ID, layout, []byte("%PDF"), omr.TestCreated); err != nil {
		t.Fatalf("SaveSheet: %v", err)
	}
	key, err := omr.ParseAnswerKey([]omr.KeyInput{{Question: "Q1", Answer: "A"}})
	if err != nil {
		t.Fatalf("ParseAnswerKey: %v", err)
	}
	if err := s.SaveAnswerKey(ctx, test.ID, key, omr.TestSheetGenerated); err != nil {
		t.Fatalf("SaveAnswerKey: %v", err)
	}
	job := seedJob(t, s, test.ID, omr.JobCreated)
	if err := s.SaveUpload(ctx, job.ID, UploadImages, [][]byte{[]byte("img")}, 1, omr.JobCreated); err != nil {
		t.Fatalf("SaveUpload: %v", err)
	}
	if err := s.SetJobStatus(ctx, job.ID, omr.JobUploaded, omr.JobScanning); err != nil {
		t.Fatalf("SetJobStatus: %v", err)
	}
	pages := []omr.PageResult{{Index: 0, Status: omr.PageOK}}
	responses := []omr.StudentResponse{{StudentID: "1234", Answers: map[string]omr.Selection{}}}
	if err := s.SaveScanResults(ctx, job.ID, pages, responses, 0, omr.JobScanning); err != nil {
		t.Fatalf("SaveScanResults: %v", err)
	}
	if err := s.SetJobStatus(ctx, job.ID, omr.JobScanned, omr.JobGrading); err != nil {
		t.Fatalf("SetJobStatus: %v", err)
	}
	grades := []omr.GradeRecord{{StudentID: "1234", Scores: map[string]float64{}}}
	if err := s.SaveGrades(ctx, job.ID, grades, []byte("csv"), omr.JobGrading); err != nil {
		t.Fatalf("SaveGrades: %v", err)
	}

	if err := s.DeleteTest(ctx, test.ID); err != nil {
		t.Fatalf("DeleteTest: %v", err)
	}

	if _, err := s.Test(ctx, test.ID); !errors.Is(err, omr.ErrNotFound) {
		t.Errorf("test err = %v, want ErrNotFound", err)
	}
	if _, err := s.Job(ctx, job.ID); !errors.Is(err, omr.ErrNotFound) {
		t.Errorf("job err = %v, want ErrNotFound", err)
	}
	if _, err := s.Layout(ctx, test.ID); !errors.Is(err, omr.ErrNotFound) {
		t.Errorf("layout err = %v, want ErrNotFound", err)
	}
	if _, err := s.AnswerKey(ctx, test.ID); !errors.Is(err, omr.ErrNotFound) {
		t.Errorf("key err = %v, want ErrNotFound", err)
	}
	if _, _, err := s.Upload(ctx, job.ID); !errors.Is(err, omr.ErrNotFound) {
		t.Errorf("upload err = %v, want ErrNotFound", err)
	}
	if _, err := s.Gradebook(ctx, job.ID); !errors.Is(err, omr.ErrNotFound) {
		t.Errorf("gradebook err = %v, want ErrNotFound", err)
	}
	gotPages, err := s.Pages(ctx, job.ID)
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if len(gotPages) != 0 {
		t.Errorf("pages survived the delete: %+v", gotPages)
	}

	if err := s.DeleteTest(ctx, "bt_missing"); !errors.Is(err, omr.ErrNotFound) {
		t.Errorf("unknown delete err = %v, want ErrNotFound", err)
	}
}
