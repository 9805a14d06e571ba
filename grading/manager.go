package grading

import (
	"bytes"
	"context"
	"fmt"
	"time"

	omr "github.com/omrkit/omr"
	"github.com/omrkit/omr/scan"
	"github.com/omrkit/omr/store"
)

// Manager drives grading jobs against a Store.
type Manager struct {
	store      store.Store
	rasterizer scan.Rasterizer
	scanOpts   []scan.Option
	workers    int
}

// Option adjusts a Manager.
type Option func(*Manager)

// WithRasterizer replaces the PDF rasterizer, e.g. with one backed by
// a full PDF renderer.
func WithRasterizer(r scan.Rasterizer) Option {
	return func(m *Manager) { m.rasterizer = r }
}

// WithWorkers sets the page fan-out width. Zero or negative means one
// worker per CPU.
func WithWorkers(n int) Option {
	return func(m *Manager) { m.workers = n }
}

// WithScanOptions forwards options to the per-job detectors.
func WithScanOptions(opts ...scan.Option) Option {
	return func(m *Manager) { m.scanOpts = opts }
}

// NewManager creates a grading manager over the repository.
func NewManager(st store.Store, opts ...Option) (*Manager, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: nil store", omr.ErrInvalidParameter)
	}
	m := &Manager{
		store:      st,
		rasterizer: scan.NewPDFRasterizer(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// CreateJob registers a new grading job for the test.
func (m *Manager) CreateJob(ctx context.Context, testID string) (*omr.Job, error) {
	if _, err := m.store.Test(ctx, testID); err != nil {
		return nil, err
	}
	job := &omr.Job{
		ID:        omr.NewJobID(),
		TestID:    testID,
		Status:    omr.JobCreated,
		CreatedAt: time.Now().UTC(),
	}
	if err := m.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}
	omr.Logger().Info("grading: job created", "job", job.ID, "test", testID)
	return job, nil
}

// Get returns a job by ID.
func (m *Manager) Get(ctx context.Context, id string) (*omr.Job, error) {
	return m.store.Job(ctx, id)
}

// List returns jobs matching the filter, newest first.
func (m *Manager) List(ctx context.Context, f store.JobFilter) ([]omr.Job, error) {
	return m.store.Jobs(ctx, f)
}

// UploadPDF attaches a scanned multi-page PDF to the job. The document
// is rasterized once here to validate it and count its pages; a
// rejected document leaves the job unchanged. Re-uploading before
// processing replaces the pending document.
func (m *Manager) UploadPDF(ctx context.Context, jobID string, doc []byte) (*omr.Job, error) {
	if len(doc) == 0 {
		return nil, fmt.Errorf("%w: empty document", omr.ErrInvalidParameter)
	}
	job, err := m.store.Job(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := omr.CanUploadScans(job.Status); err != nil {
		return nil, fmt.Errorf("job %s: %w", jobID, err)
	}

	src, err := m.rasterizer.Rasterize(ctx, doc)
	if err != nil {
		return nil, err
	}
	if err := m.store.SaveUpload(ctx, jobID, store.UploadPDF, [][]byte{doc}, src.Pages(), job.Status); err != nil {
		return nil, err
	}
	omr.Logger().Info("grading: scans uploaded", "job", jobID, "pages", src.Pages(), "kind", "pdf")
	return m.store.Job(ctx, jobID)
}

// UploadImages attaches one encoded image file per page. Images are
// decoded lazily at processing time, so a single unreadable page file
// degrades to a page error rather than rejecting the upload.
func (m *Manager) UploadImages(ctx context.Context, jobID string, images [][]byte) (*omr.Job, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: no page images", omr.ErrInvalidParameter)
	}
	job, err := m.store.Job(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := omr.CanUploadScans(job.Status); err != nil {
		return nil, fmt.Errorf("job %s: %w", jobID, err)
	}

	if err := m.store.SaveUpload(ctx, jobID, store.UploadImages, images, len(images), job.Status); err != nil {
		return nil, err
	}
	omr.Logger().Info("grading: scans uploaded", "job", jobID, "pages", len(images), "kind", "images")
	return m.store.Job(ctx, jobID)
}

// ProcessScans detects every uploaded page and stores the per-page
// outcomes and decoded responses. Pages fail independently; the job
// fails only when not a single page was readable. An interrupted run
// leaves the job SCANNING, from which processing may be retried.
func (m *Manager) ProcessScans(ctx context.Context, jobID string) (*omr.Job, error) {
	job, err := m.store.Job(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := omr.CanProcessScans(job.Status); err != nil {
		return nil, fmt.Errorf("job %s: %w", jobID, err)
	}
	layout, err := m.store.Layout(ctx, job.TestID)
	if err != nil {
		return nil, err
	}
	det, err := scan.NewDetector(layout, m.scanOpts...)
	if err != nil {
		return nil, err
	}

	if err := m.store.SetJobStatus(ctx, jobID, job.Status, omr.JobScanning); err != nil {
		return nil, err
	}

	kind, blobs, err := m.store.Upload(ctx, jobID)
	if err != nil {
		return nil, err
	}
	var src scan.PageSource
	switch kind {
	case store.UploadPDF:
		src, err = m.rasterizer.Rasterize(ctx, blobs[0])
		if err != nil {
			m.failJob(ctx, jobID, fmt.Sprintf("rasterize upload: %v", err))
			return nil, err
		}
	case store.UploadImages:
		src = scan.NewBlobSource(blobs...)
	default:
		return nil, fmt.Errorf("%w: job %s upload kind %q", omr.ErrInvalidState, jobID, kind)
	}

	pipe, err := scan.NewPipeline(det, m.workers)
	if err != nil {
		return nil, err
	}
	defer pipe.Close()

	res, err := pipe.Process(ctx, src)
	if err != nil {
		return nil, err
	}
	if res.OKPages() == 0 {
		msg := fmt.Sprintf("none of %d pages was readable", len(res.Pages))
		m.failJob(ctx, jobID, msg)
		return nil, fmt.Errorf("grading: job %s: %s", jobID, msg)
	}

	numErrors := len(res.Pages) - res.OKPages()
	for i := range res.Responses {
		if len(res.Responses[i].Ambiguities) > 0 {
			numErrors++
		}
	}
	if err := m.store.SaveScanResults(ctx, jobID, res.Pages, res.Responses, numErrors, omr.JobScanning); err != nil {
		return nil, err
	}
	omr.Logger().Info("grading: scans processed",
		"job", jobID, "pages", len(res.Pages), "students", len(res.Responses), "errors", numErrors)
	return m.store.Job(ctx, jobID)
}

// Grade scores every response against the test's answer key and
// stores the grade records and gradebook CSV. Grading a COMPLETED job
// again recomputes both from the stored responses. A job whose test
// never received a key fails permanently.
func (m *Manager) Grade(ctx context.Context, jobID string) (*omr.Job, error) {
	job, err := m.store.Job(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if err := omr.CanGradeJob(job.Status); err != nil {
		return nil, fmt.Errorf("job %s: %w", jobID, err)
	}
	test, err := m.store.Test(ctx, job.TestID)
	if err != nil {
		return nil, err
	}
	if test.Status != omr.TestKeyAdded {
		msg := fmt.Sprintf("test %s has no answer key (status %s)", test.ID, test.Status)
		m.failJob(ctx, jobID, msg)
		return nil, fmt.Errorf("%w: %s", omr.ErrConfiguration, msg)
	}

	if err := m.store.SetJobStatus(ctx, jobID, job.Status, omr.JobGrading); err != nil {
		return nil, err
	}
	key, err := m.store.AnswerKey(ctx, job.TestID)
	if err != nil {
		return nil, err
	}
	responses, err := m.store.Responses(ctx, jobID)
	if err != nil {
		return nil, err
	}

	records := omr.GradeAll(responses, key)
	var buf bytes.Buffer
	if err := omr.WriteGradebook(&buf, key, responses, records); err != nil {
		return nil, err
	}
	if err := m.store.SaveGrades(ctx, jobID, records, buf.Bytes(), omr.JobGrading); err != nil {
		return nil, err
	}
	omr.Logger().Info("grading: job completed", "job", jobID, "students", len(records))
	return m.store.Job(ctx, jobID)
}

// Pages returns the per-page outcomes of a processed job.
func (m *Manager) Pages(ctx context.Context, jobID string) ([]omr.PageResult, error) {
	return m.store.Pages(ctx, jobID)
}

// Responses returns the decoded responses of a processed job.
func (m *Manager) Responses(ctx context.Context, jobID string) ([]omr.StudentResponse, error) {
	return m.store.Responses(ctx, jobID)
}

// Grades returns the grade records of a completed job.
func (m *Manager) Grades(ctx context.Context, jobID string) ([]omr.GradeRecord, error) {
	return m.store.Grades(ctx, jobID)
}

// Gradebook returns the stored gradebook CSV.
func (m *Manager) Gradebook(ctx context.Context, jobID string) ([]byte, error) {
	return m.store.Gradebook(ctx, jobID)
}

// Stats summarizes a completed job's score distribution.
func (m *Manager) Stats(ctx context.Context, jobID string) (omr.Stats, error) {
	grades, err := m.store.Grades(ctx, jobID)
	if err != nil {
		return omr.Stats{}, err
	}
	return omr.ComputeStats(grades), nil
}

// failJob stamps the job ERROR; the triggering error is returned to
// the caller separately.
func (m *Manager) failJob(ctx context.Context, jobID, msg string) {
	if err := m.store.MarkJobError(ctx, jobID, msg); err != nil {
		omr.Logger().Warn("grading: could not mark job failed", "job", jobID, "err", err)
	}
}
