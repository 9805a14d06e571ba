package scan

import (
	"fmt"
	"image"

	omr "github.com/omrkit/omr"
	"github.com/omrkit/omr/internal/imaging"
)

// Config holds the detector thresholds. Zero values are not usable;
// start from DefaultConfig.
type Config struct {
	// WindowFrac is the corner search window size as a fraction of
	// each page extent.
	WindowFrac float64

	// Tolerance bounds how far pairwise marker distances may deviate
	// from the layout's, relative to the common page scale.
	Tolerance float64

	// SampleScale shrinks the sampling disc relative to the bubble
	// radius, keeping the printed outline out of the fill ratio.
	SampleScale float64

	// FillThreshold is the absolute fill-ratio floor for a bubble to
	// classify as filled.
	FillThreshold float64

	// RelativeFill scales the page's maximum fill ratio into an
	// adaptive threshold, so a uniformly dark scan does not classify
	// every bubble as filled.
	RelativeFill float64

	// MinDarkness is the absolute minimum ratio any filled bubble
	// must reach regardless of the adaptive threshold.
	MinDarkness float64

	// AmbiguousBand is the half-width of the ratio band around the
	// threshold that counts as ambiguous.
	AmbiguousBand float64

	// AmbiguousFraction is the fraction of ambiguous bubbles above
	// which the page is flagged low confidence.
	AmbiguousFraction float64

	// Affine selects a least-squares affine fit over the default
	// four-corner perspective transform. Affine mode tolerates one
	// unlocated marker.
	Affine bool
}

// DefaultConfig returns the tuned defaults.
func DefaultConfig() Config {
	return Config{
		WindowFrac:        0.30,
		Tolerance:         0.02,
		SampleScale:       0.8,
		FillThreshold:     0.35,
		RelativeFill:      0.6,
		MinDarkness:       0.08,
		AmbiguousBand:     0.08,
		AmbiguousFraction: 0.10,
	}
}

func (c Config) validate() error {
	switch {
	case c.WindowFrac <= 0 || c.WindowFrac > 0.5:
		return fmt.Errorf("%w: window fraction %g outside (0, 0.5]", omr.ErrInvalidParameter, c.WindowFrac)
	case c.Tolerance <= 0 || c.Tolerance >= 1:
		return fmt.Errorf("%w: tolerance %g outside (0, 1)", omr.ErrInvalidParameter, c.Tolerance)
	case c.SampleScale <= 0 || c.SampleScale > 1:
		return fmt.Errorf("%w: sample scale %g outside (0, 1]", omr.ErrInvalidParameter, c.SampleScale)
	case c.FillThreshold <= 0 || c.FillThreshold >= 1:
		return fmt.Errorf("%w: fill threshold %g outside (0, 1)", omr.ErrInvalidParameter, c.FillThreshold)
	case c.RelativeFill <= 0 || c.RelativeFill >= 1:
		return fmt.Errorf("%w: relative fill %g outside (0, 1)", omr.ErrInvalidParameter, c.RelativeFill)
	case c.MinDarkness < 0 || c.MinDarkness >= 1:
		return fmt.Errorf("%w: min darkness %g outside [0, 1)", omr.ErrInvalidParameter, c.MinDarkness)
	case c.AmbiguousBand < 0 || c.AmbiguousBand >= 0.5:
		return fmt.Errorf("%w: ambiguous band %g outside [0, 0.5)", omr.ErrInvalidParameter, c.AmbiguousBand)
	case c.AmbiguousFraction <= 0 || c.AmbiguousFraction > 1:
		return fmt.Errorf("%w: ambiguous fraction %g outside (0, 1]", omr.ErrInvalidParameter, c.AmbiguousFraction)
	}
	return nil
}

// Option tunes a Detector at construction.
type Option func(*Config)

// WithConfig replaces the whole configuration.
func WithConfig(c Config) Option {
	return func(cfg *Config) { *cfg = c }
}

// WithAffine selects affine rectification.
func WithAffine() Option {
	return func(cfg *Config) { cfg.Affine = true }
}

// WithTolerance sets the marker spacing tolerance.
func WithTolerance(t float64) Option {
	return func(cfg *Config) { cfg.Tolerance = t }
}

// WithFillThreshold sets the absolute fill-ratio floor.
func WithFillThreshold(t float64) Option {
	return func(cfg *Config) { cfg.FillThreshold = t }
}

// WithSampleScale sets the sampling disc size relative to the bubble
// radius.
func WithSampleScale(s float64) Option {
	return func(cfg *Config) { cfg.SampleScale = s }
}

// Detector extracts responses from scanned pages of one layout.
// It is stateless across pages and safe for concurrent use.
type Detector struct {
	layout *omr.Layout
	cfg    Config
}

// NewDetector validates the layout and configuration and returns a
// ready detector.
func NewDetector(l *omr.Layout, opts ...Option) (*Detector, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: nil layout", omr.ErrInvalidParameter)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Detector{layout: l, cfg: cfg}, nil
}

// Config returns the detector's effective configuration.
func (d *Detector) Config() Config { return d.cfg }

// DetectPage runs the full pipeline on one scanned page. Alignment
// failures return ErrAlignment; the caller marks the page and moves
// on. A successful decode may still carry ambiguities and the
// low-confidence flag on the response.
func (d *Detector) DetectPage(img image.Image) (*omr.StudentResponse, error) {
	if img == nil {
		return nil, fmt.Errorf("%w: nil page image", omr.ErrInvalidParameter)
	}
	page := imaging.FromImage(img)
	if page.Width() == 0 || page.Height() == 0 {
		return nil, fmt.Errorf("%w: empty page image", omr.ErrAlignment)
	}

	centers, found := findMarkers(page, d.layout, d.cfg)
	if err := checkMarkers(d.layout, centers, found, d.cfg); err != nil {
		return nil, err
	}
	pm, err := rectify(d.layout, centers, found, d.cfg.Affine)
	if err != nil {
		return nil, err
	}

	ratios := samplePage(page, d.layout, pm, d.cfg)
	filled, _, lowConfidence := classify(ratios, d.cfg)
	return decodePage(d.layout, filled, lowConfidence), nil
}
