package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	omr "github.com/omrkit/omr"
)

const timeFormat = time.RFC3339Nano

// schema is applied statement by statement on Open. Child tables key
// on the owning row so a test delete can cascade in one transaction.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tests (
		id          TEXT PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status      TEXT NOT NULL,
		archived    INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS sheets (
		test_id     TEXT PRIMARY KEY REFERENCES tests(id) ON DELETE CASCADE,
		layout_json TEXT NOT NULL,
		pdf         BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS answer_keys (
		test_id  TEXT PRIMARY KEY REFERENCES tests(id) ON DELETE CASCADE,
		key_json TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id            TEXT PRIMARY KEY,
		test_id       TEXT NOT NULL REFERENCES tests(id) ON DELETE CASCADE,
		status        TEXT NOT NULL,
		upload_kind   TEXT NOT NULL DEFAULT '',
		page_count    INTEGER NOT NULL DEFAULT 0,
		num_students  INTEGER NOT NULL DEFAULT 0,
		num_errors    INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		created_at    TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_test ON jobs(test_id)`,
	`CREATE TABLE IF NOT EXISTS uploads (
		job_id     TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		page_index INTEGER NOT NULL,
		content    BLOB NOT NULL,
		PRIMARY KEY (job_id, page_index)
	)`,
	`CREATE TABLE IF NOT EXISTS pages (
		job_id         TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		page_index     INTEGER NOT NULL,
		status         TEXT NOT NULL,
		reason         TEXT NOT NULL DEFAULT '',
		low_confidence INTEGER NOT NULL DEFAULT 0,
		PRIMARY KEY (job_id, page_index)
	)`,
	`CREATE TABLE IF NOT EXISTS responses (
		job_id        TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		page_index    INTEGER NOT NULL,
		student_id    TEXT NOT NULL,
		response_json TEXT NOT NULL,
		PRIMARY KEY (job_id, page_index)
	)`,
	`CREATE TABLE IF NOT EXISTS grades (
		job_id     TEXT NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
		page_index INTEGER NOT NULL,
		student_id TEXT NOT NULL,
		total      REAL NOT NULL,
		possible   REAL NOT NULL,
		percent    REAL NOT NULL,
		grade_json TEXT NOT NULL,
		PRIMARY KEY (job_id, page_index)
	)`,
	`CREATE TABLE IF NOT EXISTS gradebooks (
		job_id TEXT PRIMARY KEY REFERENCES jobs(id) ON DELETE CASCADE,
		csv    BLOB NOT NULL
	)`,
}

type sqliteConfig struct {
	busyTimeout time.Duration
	journalMode string
}

// OpenOption adjusts how the database is opened.
type OpenOption func(*sqliteConfig)

// WithBusyTimeout sets how long a writer waits on a locked database
// before failing. Default 5s.
func WithBusyTimeout(d time.Duration) OpenOption {
	return func(c *sqliteConfig) { c.busyTimeout = d }
}

// WithJournalMode sets the SQLite journal mode. Default WAL.
func WithJournalMode(mode string) OpenOption {
	return func(c *sqliteConfig) { c.journalMode = mode }
}

// SQLStore is the SQLite-backed Store.
type SQLStore struct {
	db *sql.DB
}

var _ Store = (*SQLStore)(nil)

// Open opens (creating if needed) the database at path and applies
// the schema.
func Open(path string, opts ...OpenOption) (*SQLStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty database path", omr.ErrInvalidParameter)
	}
	cfg := sqliteConfig{
		busyTimeout: 5 * time.Second,
		journalMode: "WAL",
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(%s)&_pragma=busy_timeout(%d)",
		path, cfg.journalMode, cfg.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: init schema: %w", err)
		}
	}
	omr.Logger().Debug("store: opened", "path", path, "journal", cfg.journalMode)
	return &SQLStore{db: db}, nil
}

// Close implements Store.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// casTestStatus moves a test's status only if it still holds from.
func casTestStatus(ctx context.Context, tx *sql.Tx, id string, from, to omr.TestStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE tests SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("store: update test status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update test status: %w", err)
	}
	if n == 1 {
		return nil
	}
	var cur string
	err = tx.QueryRowContext(ctx, `SELECT status FROM tests WHERE id = ?`, id).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: test %s", omr.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("store: read test status: %w", err)
	}
	return fmt.Errorf("%w: test %s is %s, expected %s", omr.ErrInvalidState, id, cur, from)
}

// casJobStatus moves a job's status only if it still holds from.
func casJobStatus(ctx context.Context, tx *sql.Tx, id string, from, to omr.JobStatus) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE jobs SET status = ? WHERE id = ? AND status = ?`,
		string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("store: update job status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update job status: %w", err)
	}
	if n == 1 {
		return nil
	}
	var cur string
	err = tx.QueryRowContext(ctx, `SELECT status FROM jobs WHERE id = ?`, id).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: job %s", omr.ErrNotFound, id)
	}
	if err != nil {
		return fmt.Errorf("store: read job status: %w", err)
	}
	return fmt.Errorf("%w: job %s is %s, expected %s", omr.ErrInvalidState, id, cur, from)
}

// CreateTest implements Store.
func (s *SQLStore) CreateTest(ctx context.Context, t *omr.Test) error {
	if t == nil || t.ID == "" || t.Name == "" {
		return fmt.Errorf("%w: test needs an ID and a name", omr.ErrInvalidParameter)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tests (id, name, description, status, archived, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Description, string(t.Status), boolInt(t.Archived),
		t.CreatedAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("store: create test %s: %w", t.ID, err)
	}
	return nil
}

// Test implements Store.
func (s *SQLStore) Test(ctx context.Context, id string) (*omr.Test, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, description, status, archived, created_at
		 FROM tests WHERE id = ?`, id)
	t, err := scanTest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: test %s", omr.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: read test %s: %w", id, err)
	}
	return t, nil
}

// Tests implements Store.
func (s *SQLStore) Tests(ctx context.Context, f TestFilter) ([]omr.Test, error) {
	q := `SELECT id, name, description, status, archived, created_at FROM tests`
	var cond []string
	var args []any
	if f.Status != "" {
		cond = append(cond, "status = ?")
		args = append(args, string(f.Status))
	}
	if !f.IncludeArchived {
		cond = append(cond, "archived = 0")
	}
	if len(cond) > 0 {
		q += " WHERE " + strings.Join(cond, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, noLimit(f.Limit), f.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list tests: %w", err)
	}
	defer rows.Close()

	var tests []omr.Test
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list tests: %w", err)
		}
		tests = append(tests, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list tests: %w", err)
	}
	return tests, nil
}

// SetTestStatus implements Store.
func (s *SQLStore) SetTestStatus(ctx context.Context, id string, from, to omr.TestStatus) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return casTestStatus(ctx, tx, id, from, to)
	})
}

// SetTestArchived implements Store.
func (s *SQLStore) SetTestArchived(ctx context.Context, id string, archived bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tests SET archived = ? WHERE id = ?`, boolInt(archived), id)
	if err != nil {
		return fmt.Errorf("store: archive test %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: test %s", omr.ErrNotFound, id)
	}
	return nil
}

// DeleteTest implements Store.
func (s *SQLStore) DeleteTest(ctx context.Context, id string) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, stmt := range []string{
			`DELETE FROM gradebooks WHERE job_id IN (SELECT id FROM jobs WHERE test_id = ?)`,
			`DELETE FROM grades     WHERE job_id IN (SELECT id FROM jobs WHERE test_id = ?)`,
			`DELETE FROM responses  WHERE job_id IN (SELECT id FROM jobs WHERE test_id = ?)`,
			`DELETE FROM pages      WHERE job_id IN (SELECT id FROM jobs WHERE test_id = ?)`,
			`DELETE FROM uploads    WHERE job_id IN (SELECT id FROM jobs WHERE test_id = ?)`,
			`DELETE FROM jobs       WHERE test_id = ?`,
			`DELETE FROM answer_keys WHERE test_id = ?`,
			`DELETE FROM sheets      WHERE test_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, id); err != nil {
				return fmt.Errorf("store: delete test %s: %w", id, err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM tests WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("store: delete test %s: %w", id, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: test %s", omr.ErrNotFound, id)
		}
		return nil
	})
	if err == nil {
		omr.Logger().Debug("store: test deleted", "test", id)
	}
	return err
}

// SaveSheet implements Store.
func (s *SQLStore) SaveSheet(ctx context.Context, testID string, layout *omr.Layout, pdf []byte, from omr.TestStatus) error {
	if layout == nil || len(pdf) == 0 {
		return fmt.Errorf("%w: sheet needs a layout and PDF bytes", omr.ErrInvalidParameter)
	}
	layoutJSON, err := json.Marshal(layout)
	if err != nil {
		return fmt.Errorf("store: encode layout: %w", err)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := casTestStatus(ctx, tx, testID, from, omr.TestSheetGenerated); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO sheets (test_id, layout_json, pdf) VALUES (?, ?, ?)
			 ON CONFLICT (test_id) DO UPDATE SET layout_json = excluded.layout_json, pdf = excluded.pdf`,
			testID, string(layoutJSON), pdf)
		if err != nil {
			return fmt.Errorf("store: save sheet for %s: %w", testID, err)
		}
		return nil
	})
}

// Layout implements Store.
func (s *SQLStore) Layout(ctx context.Context, testID string) (*omr.Layout, error) {
	var layoutJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT layout_json FROM sheets WHERE test_id = ?`, testID).Scan(&layoutJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: test %s has no sheet", omr.ErrNotFound, testID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: read layout for %s: %w", testID, err)
	}
	var l omr.Layout
	if err := json.Unmarshal([]byte(layoutJSON), &l); err != nil {
		return nil, fmt.Errorf("store: decode layout for %s: %w", testID, err)
	}
	return &l, nil
}

// SheetPDF implements Store.
func (s *SQLStore) SheetPDF(ctx context.Context, testID string) ([]byte, error) {
	var pdf []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT pdf FROM sheets WHERE test_id = ?`, testID).Scan(&pdf)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: test %s has no sheet", omr.ErrNotFound, testID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: read sheet for %s: %w", testID, err)
	}
	return pdf, nil
}

// SaveAnswerKey implements Store.
func (s *SQLStore) SaveAnswerKey(ctx context.Context, testID string, key omr.AnswerKey, from omr.TestStatus) error {
	if len(key) == 0 {
		return fmt.Errorf("%w: empty answer key", omr.ErrInvalidParameter)
	}
	keyJSON, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("store: encode key: %w", err)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := casTestStatus(ctx, tx, testID, from, omr.TestKeyAdded); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO answer_keys (test_id, key_json) VALUES (?, ?)
			 ON CONFLICT (test_id) DO UPDATE SET key_json = excluded.key_json`,
			testID, string(keyJSON))
		if err != nil {
			return fmt.Errorf("store: save key for %s: %w", testID, err)
		}
		return nil
	})
}

// AnswerKey implements Store.
func (s *SQLStore) AnswerKey(ctx context.Context, testID string) (omr.AnswerKey, error) {
	var keyJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT key_json FROM answer_keys WHERE test_id = ?`, testID).Scan(&keyJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: test %s has no answer key", omr.ErrNotFound, testID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: read key for %s: %w", testID, err)
	}
	var key omr.AnswerKey
	if err := json.Unmarshal([]byte(keyJSON), &key); err != nil {
		return nil, fmt.Errorf("store: decode key for %s: %w", testID, err)
	}
	return key, nil
}

// CreateJob implements Store.
func (s *SQLStore) CreateJob(ctx context.Context, j *omr.Job) error {
	if j == nil || j.ID == "" || j.TestID == "" {
		return fmt.Errorf("%w: job needs an ID and a test ID", omr.ErrInvalidParameter)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, test_id, status, upload_kind, page_count,
		                   num_students, num_errors, error_message, created_at)
		 VALUES (?, ?, ?, '', ?, ?, ?, ?, ?)`,
		j.ID, j.TestID, string(j.Status), j.PageCount, j.NumStudents,
		j.NumErrors, j.ErrorMessage, j.CreatedAt.UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("store: create job %s: %w", j.ID, err)
	}
	return nil
}

// Job implements Store.
func (s *SQLStore) Job(ctx context.Context, id string) (*omr.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, test_id, status, page_count, num_students, num_errors,
		        error_message, created_at
		 FROM jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: job %s", omr.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: read job %s: %w", id, err)
	}
	return j, nil
}

// Jobs implements Store.
func (s *SQLStore) Jobs(ctx context.Context, f JobFilter) ([]omr.Job, error) {
	q := `SELECT id, test_id, status, page_count, num_students, num_errors,
	             error_message, created_at
	      FROM jobs`
	var cond []string
	var args []any
	if f.TestID != "" {
		cond = append(cond, "test_id = ?")
		args = append(args, f.TestID)
	}
	if f.Status != "" {
		cond = append(cond, "status = ?")
		args = append(args, string(f.Status))
	}
	if len(cond) > 0 {
		q += " WHERE " + strings.Join(cond, " AND ")
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, noLimit(f.Limit), f.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []omr.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("store: list jobs: %w", err)
		}
		jobs = append(jobs, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: list jobs: %w", err)
	}
	return jobs, nil
}

// SetJobStatus implements Store.
func (s *SQLStore) SetJobStatus(ctx context.Context, id string, from, to omr.JobStatus) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		return casJobStatus(ctx, tx, id, from, to)
	})
}

// MarkJobError implements Store.
func (s *SQLStore) MarkJobError(ctx context.Context, id, msg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE jobs SET status = ?, error_message = ? WHERE id = ?`,
		string(omr.JobError), msg, id)
	if err != nil {
		return fmt.Errorf("store: mark job %s failed: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: job %s", omr.ErrNotFound, id)
	}
	omr.Logger().Warn("store: job failed", "job", id, "reason", msg)
	return nil
}

// SaveUpload implements Store.
func (s *SQLStore) SaveUpload(ctx context.Context, jobID string, kind UploadKind, blobs [][]byte, pageCount int, from omr.JobStatus) error {
	if kind != UploadPDF && kind != UploadImages {
		return fmt.Errorf("%w: unknown upload kind %q", omr.ErrInvalidParameter, kind)
	}
	if len(blobs) == 0 {
		return fmt.Errorf("%w: upload has no content", omr.ErrInvalidParameter)
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := casJobStatus(ctx, tx, jobID, from, omr.JobUploaded); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE jobs SET upload_kind = ?, page_count = ? WHERE id = ?`,
			string(kind), pageCount, jobID)
		if err != nil {
			return fmt.Errorf("store: save upload for %s: %w", jobID, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM uploads WHERE job_id = ?`, jobID); err != nil {
			return fmt.Errorf("store: save upload for %s: %w", jobID, err)
		}
		for i, blob := range blobs {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO uploads (job_id, page_index, content) VALUES (?, ?, ?)`,
				jobID, i, blob)
			if err != nil {
				return fmt.Errorf("store: save upload for %s: %w", jobID, err)
			}
		}
		return nil
	})
}

// Upload implements Store.
func (s *SQLStore) Upload(ctx context.Context, jobID string) (UploadKind, [][]byte, error) {
	var kind string
	err := s.db.QueryRowContext(ctx,
		`SELECT upload_kind FROM jobs WHERE id = ?`, jobID).Scan(&kind)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, fmt.Errorf("%w: job %s", omr.ErrNotFound, jobID)
	}
	if err != nil {
		return "", nil, fmt.Errorf("store: read upload for %s: %w", jobID, err)
	}
	if kind == "" {
		return "", nil, fmt.Errorf("%w: job %s has no upload", omr.ErrNotFound, jobID)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT content FROM uploads WHERE job_id = ? ORDER BY page_index`, jobID)
	if err != nil {
		return "", nil, fmt.Errorf("store: read upload for %s: %w", jobID, err)
	}
	defer rows.Close()

	var blobs [][]byte
	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return "", nil, fmt.Errorf("store: read upload for %s: %w", jobID, err)
		}
		blobs = append(blobs, blob)
	}
	if err := rows.Err(); err != nil {
		return "", nil, fmt.Errorf("store: read upload for %s: %w", jobID, err)
	}
	return UploadKind(kind), blobs, nil
}

// SaveScanResults implements Store.
func (s *SQLStore) SaveScanResults(ctx context.Context, jobID string, pages []omr.PageResult, responses []omr.StudentResponse, numErrors int, from omr.JobStatus) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := casJobStatus(ctx, tx, jobID, from, omr.JobScanned); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE jobs SET num_students = ?, num_errors = ?, error_message = '' WHERE id = ?`,
			len(responses), numErrors, jobID)
		if err != nil {
			return fmt.Errorf("store: save scan results for %s: %w", jobID, err)
		}
		for _, stmt := range []string{
			`DELETE FROM pages WHERE job_id = ?`,
			`DELETE FROM responses WHERE job_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, jobID); err != nil {
				return fmt.Errorf("store: save scan results for %s: %w", jobID, err)
			}
		}
		for _, p := range pages {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO pages (job_id, page_index, status, reason, low_confidence)
				 VALUES (?, ?, ?, ?, ?)`,
				jobID, p.Index, string(p.Status), p.Reason, boolInt(p.LowConfidence))
			if err != nil {
				return fmt.Errorf("store: save scan results for %s: %w", jobID, err)
			}
		}
		for i := range responses {
			respJSON, err := json.Marshal(&responses[i])
			if err != nil {
				return fmt.Errorf("store: encode response: %w", err)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO responses (job_id, page_index, student_id, response_json)
				 VALUES (?, ?, ?, ?)`,
				jobID, responses[i].PageIndex, responses[i].StudentID, string(respJSON))
			if err != nil {
				return fmt.Errorf("store: save scan results for %s: %w", jobID, err)
			}
		}
		return nil
	})
	if err == nil {
		omr.Logger().Debug("store: scan results saved",
			"job", jobID, "pages", len(pages), "responses", len(responses), "errors", numErrors)
	}
	return err
}

// Pages implements Store.
func (s *SQLStore) Pages(ctx context.Context, jobID string) ([]omr.PageResult, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT page_index, status, reason, low_confidence
		 FROM pages WHERE job_id = ? ORDER BY page_index`, jobID)
	if err != nil {
		return nil, fmt.Errorf("store: read pages for %s: %w", jobID, err)
	}
	defer rows.Close()

	var pages []omr.PageResult
	for rows.Next() {
		var p omr.PageResult
		var status string
		var low int
		if err := rows.Scan(&p.Index, &status, &p.Reason, &low); err != nil {
			return nil, fmt.Errorf("store: read pages for %s: %w", jobID, err)
		}
		p.Status = omr.PageStatus(status)
		p.LowConfidence = low != 0
		pages = append(pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: read pages for %s: %w", jobID, err)
	}
	return pages, nil
}

// Responses implements Store.
func (s *SQLStore) Responses(ctx context.Context, jobID string) ([]omr.StudentResponse, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT response_json FROM responses WHERE job_id = ? ORDER BY page_index`, jobID)
	if err != nil {
		return nil, fmt.Errorf("store: read responses for %s: %w", jobID, err)
	}
	defer rows.Close()

	var responses []omr.StudentResponse
	for rows.Next() {
		var respJSON string
		if err := rows.Scan(&respJSON); err != nil {
			return nil, fmt.Errorf("store: read responses for %s: %w", jobID, err)
		}
		var r omr.StudentResponse
		if err := json.Unmarshal([]byte(respJSON), &r); err != nil {
			return nil, fmt.Errorf("store: decode response for %s: %w", jobID, err)
		}
		responses = append(responses, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: read responses for %s: %w", jobID, err)
	}
	return responses, nil
}

// SaveGrades implements Store.
func (s *SQLStore) SaveGrades(ctx context.Context, jobID string, grades []omr.GradeRecord, gradebook []byte, from omr.JobStatus) error {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := casJobStatus(ctx, tx, jobID, from, omr.JobCompleted); err != nil {
			return err
		}
		for _, stmt := range []string{
			`DELETE FROM grades WHERE job_id = ?`,
			`DELETE FROM gradebooks WHERE job_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, stmt, jobID); err != nil {
				return fmt.Errorf("store: save grades for %s: %w", jobID, err)
			}
		}
		for i := range grades {
			gradeJSON, err := json.Marshal(&grades[i])
			if err != nil {
				return fmt.Errorf("store: encode grade: %w", err)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO grades (job_id, page_index, student_id, total, possible, percent, grade_json)
				 VALUES (?, ?, ?, ?, ?, ?, ?)`,
				jobID, grades[i].PageIndex, grades[i].StudentID,
				grades[i].Total, grades[i].Possible, grades[i].Percent, string(gradeJSON))
			if err != nil {
				return fmt.Errorf("store: save grades for %s: %w", jobID, err)
			}
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO gradebooks (job_id, csv) VALUES (?, ?)`,
			jobID, gradebook)
		if err != nil {
			return fmt.Errorf("store: save gradebook for %s: %w", jobID, err)
		}
		return nil
	})
	if err == nil {
		omr.Logger().Debug("store: grades saved", "job", jobID, "students", len(grades))
	}
	return err
}

// Grades implements Store.
func (s *SQLStore) Grades(ctx context.Context, jobID string) ([]omr.GradeRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT grade_json FROM grades WHERE job_id = ? ORDER BY page_index`, jobID)
	if err != nil {
		return nil, fmt.Errorf("store: read grades for %s: %w", jobID, err)
	}
	defer rows.Close()

	var grades []omr.GradeRecord
	for rows.Next() {
		var gradeJSON string
		if err := rows.Scan(&gradeJSON); err != nil {
			return nil, fmt.Errorf("store: read grades for %s: %w", jobID, err)
		}
		var g omr.GradeRecord
		if err := json.Unmarshal([]byte(gradeJSON), &g); err != nil {
			return nil, fmt.Errorf("store: decode grade for %s: %w", jobID, err)
		}
		grades = append(grades, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: read grades for %s: %w", jobID, err)
	}
	return grades, nil
}

// Gradebook implements Store.
func (s *SQLStore) Gradebook(ctx context.Context, jobID string) ([]byte, error) {
	var csv []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT csv FROM gradebooks WHERE job_id = ?`, jobID).Scan(&csv)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: job %s has no gradebook", omr.ErrNotFound, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("store: read gradebook for %s: %w", jobID, err)
	}
	return csv, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTest(r rowScanner) (*omr.Test, error) {
	var t omr.Test
	var status, created string
	var archived int
	if err := r.Scan(&t.ID, &t.Name, &t.Description, &status, &archived, &created); err != nil {
		return nil, err
	}
	t.Status = omr.TestStatus(status)
	t.Archived = archived != 0
	ts, err := time.Parse(timeFormat, created)
	if err != nil {
		return nil, fmt.Errorf("bad created_at %q: %w", created, err)
	}
	t.CreatedAt = ts
	return &t, nil
}

func scanJob(r rowScanner) (*omr.Job, error) {
	var j omr.Job
	var status, created string
	if err := r.Scan(&j.ID, &j.TestID, &status, &j.PageCount, &j.NumStudents,
		&j.NumErrors, &j.ErrorMessage, &created); err != nil {
		return nil, err
	}
	j.Status = omr.JobStatus(status)
	ts, err := time.Parse(timeFormat, created)
	if err != nil {
		return nil, fmt.Errorf("bad created_at %q: %w", created, err)
	}
	j.CreatedAt = ts
	return &j, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// noLimit maps the ListOpts zero value to SQLite's unlimited LIMIT.
func noLimit(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
