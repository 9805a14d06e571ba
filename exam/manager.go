package exam

import (
	"context"
	"fmt"
	"strings"
	"time"

	omr "github.com/omrkit/omr"
	"github.com/omrkit/omr/render"
	"github.com/omrkit/omr/store"
)

// Manager drives the test lifecycle against a Store.
type Manager struct {
	store store.Store
}

// NewManager creates a test manager over the repository.
func NewManager(st store.Store) (*Manager, error) {
	if st == nil {
		return nil, fmt.Errorf("%w: nil store", omr.ErrInvalidParameter)
	}
	return &Manager{store: st}, nil
}

// Create registers a new test in status CREATED.
func (m *Manager) Create(ctx context.Context, name, description string) (*omr.Test, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: test name is empty", omr.ErrInvalidParameter)
	}
	test := &omr.Test{
		ID:          omr.NewTestID(),
		Name:        name,
		Description: strings.TrimSpace(description),
		Status:      omr.TestCreated,
		CreatedAt:   time.Now().UTC(),
	}
	if err := m.store.CreateTest(ctx, test); err != nil {
		return nil, err
	}
	omr.Logger().Info("exam: test created", "test", test.ID, "name", test.Name)
	return test, nil
}

// Get returns a test by ID.
func (m *Manager) Get(ctx context.Context, id string) (*omr.Test, error) {
	return m.store.Test(ctx, id)
}

// List returns tests matching the filter, newest first.
func (m *Manager) List(ctx context.Context, f store.TestFilter) ([]omr.Test, error) {
	return m.store.Tests(ctx, f)
}

// GenerateSheet lays out the answer sheet for the test's parameters,
// renders the printable PDF and stores both. Legal only while the
// test is CREATED: coordinates are frozen once sheets may have been
// printed. Returns the test in its new status.
func (m *Manager) GenerateSheet(ctx context.Context, id string, params omr.LayoutParams, opts ...omr.GenerateOption) (*omr.Test, error) {
	test, err := m.store.Test(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := omr.CanGenerateSheet(test.Status); err != nil {
		return nil, fmt.Errorf("test %s: %w", id, err)
	}

	layout, err := omr.GenerateLayout(params, opts...)
	if err != nil {
		return nil, err
	}
	pdf, err := render.RenderPDF(layout, m.sheetMeta(test))
	if err != nil {
		return nil, err
	}

	if err := m.store.SaveSheet(ctx, id, layout, pdf, test.Status); err != nil {
		return nil, err
	}
	omr.Logger().Info("exam: sheet generated",
		"test", id, "questions", len(layout.Questions), "bytes", len(pdf))
	return m.store.Test(ctx, id)
}

// SetAnswerKey parses, validates and stores the key, moving the test
// to KEY_ADDED. Replacing the key of a KEY_ADDED test is legal; the
// sheet must exist first because the key is validated against its
// layout. Returns the test in its new status.
func (m *Manager) SetAnswerKey(ctx context.Context, id string, inputs []omr.KeyInput) (*omr.Test, error) {
	test, err := m.store.Test(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := omr.CanSetAnswerKey(test.Status); err != nil {
		return nil, fmt.Errorf("test %s: %w", id, err)
	}

	key, err := omr.ParseAnswerKey(inputs)
	if err != nil {
		return nil, err
	}
	layout, err := m.store.Layout(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := key.ValidateAgainst(layout); err != nil {
		return nil, err
	}

	if err := m.store.SaveAnswerKey(ctx, id, key, test.Status); err != nil {
		return nil, err
	}
	omr.Logger().Info("exam: answer key set", "test", id, "entries", len(key))
	return m.store.Test(ctx, id)
}

// Sheet returns the stored printable PDF.
func (m *Manager) Sheet(ctx context.Context, id string) ([]byte, error) {
	return m.store.SheetPDF(ctx, id)
}

// Layout returns the stored layout.
func (m *Manager) Layout(ctx context.Context, id string) (*omr.Layout, error) {
	return m.store.Layout(ctx, id)
}

// Key returns the stored answer key.
func (m *Manager) Key(ctx context.Context, id string) (omr.AnswerKey, error) {
	return m.store.AnswerKey(ctx, id)
}

// Preview renders the stored layout to a PNG at the given DPI, for
// on-screen checks without a PDF viewer. Zero dpi uses the raster
// default.
func (m *Manager) Preview(ctx context.Context, id string, dpi int) ([]byte, error) {
	test, err := m.store.Test(ctx, id)
	if err != nil {
		return nil, err
	}
	layout, err := m.store.Layout(ctx, id)
	if err != nil {
		return nil, err
	}
	if dpi == 0 {
		dpi = render.DefaultDPI
	}
	return render.RenderPNG(layout, m.sheetMeta(test), render.WithDPI(dpi))
}

// Archive hides the test from default listings. Status is unchanged.
func (m *Manager) Archive(ctx context.Context, id string) error {
	return m.store.SetTestArchived(ctx, id, true)
}

// Unarchive returns the test to default listings.
func (m *Manager) Unarchive(ctx context.Context, id string) error {
	return m.store.SetTestArchived(ctx, id, false)
}

// Delete removes the test and everything derived from it: sheet, key,
// jobs, uploads, responses, grades.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.store.DeleteTest(ctx, id)
}

func (m *Manager) sheetMeta(test *omr.Test) render.SheetMeta {
	return render.SheetMeta{Title: test.Name}
}
