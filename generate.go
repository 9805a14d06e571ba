package omr

import (
	"fmt"
	"math"
)

// Layout generation bounds and defaults.
const (
	// MinQuestions and MaxQuestions bound the question count.
	MinQuestions = 1
	MaxQuestions = 50

	// MinIDLength and MaxIDLength bound the student-ID digit count.
	MinIDLength = 4
	MaxIDLength = 10

	// defaultOptionCount is the number of option bubbles per question.
	defaultOptionCount = 5

	// defaultMinRowPitch is the smallest acceptable question row
	// spacing. Rather than shrink bubbles below legibility, the
	// generator adds body columns until the pitch clears this floor.
	defaultMinRowPitch = 16.0

	// Bubble radius range. The radius tracks the row pitch but is
	// clamped to stay printable and scannable.
	minBubbleRadius = 5.0
	maxBubbleRadius = 6.0

	// Header geometry.
	idGridTop    = 98.0
	idPitchX     = 22.0
	idPitchY     = 16.0
	idRadius     = 5.5
	headerGap    = 18.0
	headerPad    = 14.0
	questionInset = 32.0 // label gutter at the left of each body column

	// bottomClearance keeps body rows clear of the bottom fiducials.
	bottomClearance = 44.0
)

var optionLetters = "ABCDEFGH"

// LayoutParams are the caller-supplied inputs to GenerateLayout.
type LayoutParams struct {
	// QuestionCount is the number of questions, MinQuestions to
	// MaxQuestions inclusive.
	QuestionCount int

	// PageSize selects the paper size.
	PageSize PageSize

	// IDLength is the number of student-ID digits, MinIDLength to
	// MaxIDLength inclusive.
	IDLength int

	// IDOrientation lays the ID grid in columns (vertical) or rows
	// (horizontal).
	IDOrientation IDOrientation

	// Border requests a frame rectangle around the sheet content.
	Border bool
}

// generateConfig holds tunable generation knobs with documented
// defaults. The defaults match the distributed sheet templates; tests
// use the options to force edge geometry.
type generateConfig struct {
	optionCount int
	minRowPitch float64
}

// GenerateOption tunes layout generation.
type GenerateOption func(*generateConfig)

// WithOptionCount sets the number of option bubbles per question
// (2 through 8, default 5).
func WithOptionCount(n int) GenerateOption {
	return func(c *generateConfig) { c.optionCount = n }
}

// WithMinRowPitch overrides the minimum question row spacing in
// points (default 16).
func WithMinRowPitch(pitch float64) GenerateOption {
	return func(c *generateConfig) { c.minRowPitch = pitch }
}

// GenerateLayout computes the full bubble-sheet geometry for the given
// parameters. The result is deterministic: identical inputs produce
// bit-identical coordinates.
//
// The page is split into a header zone (fiducials, title and name
// lines, student-ID grid) and a body zone (question rows in one or
// more columns). Row pitch is available body height divided by rows
// per column; when the pitch would fall below the minimum legible
// spacing the generator adds a column instead of shrinking bubbles,
// and fails with ErrInvalidParameter when even the maximum column
// count cannot fit.
func GenerateLayout(params LayoutParams, opts ...GenerateOption) (*Layout, error) {
	cfg := generateConfig{
		optionCount: defaultOptionCount,
		minRowPitch: defaultMinRowPitch,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if params.QuestionCount < MinQuestions || params.QuestionCount > MaxQuestions {
		return nil, fmt.Errorf("%w: question count %d outside [%d, %d]",
			ErrInvalidParameter, params.QuestionCount, MinQuestions, MaxQuestions)
	}
	if params.IDLength < MinIDLength || params.IDLength > MaxIDLength {
		return nil, fmt.Errorf("%w: ID length %d outside [%d, %d]",
			ErrInvalidParameter, params.IDLength, MinIDLength, MaxIDLength)
	}
	if params.IDOrientation != IDVertical && params.IDOrientation != IDHorizontal {
		return nil, fmt.Errorf("%w: unknown ID orientation %q",
			ErrInvalidParameter, string(params.IDOrientation))
	}
	if cfg.optionCount < 2 || cfg.optionCount > len(optionLetters) {
		return nil, fmt.Errorf("%w: option count %d outside [2, %d]",
			ErrInvalidParameter, cfg.optionCount, len(optionLetters))
	}
	if cfg.minRowPitch <= 0 {
		return nil, fmt.Errorf("%w: non-positive minimum row pitch", ErrInvalidParameter)
	}

	dim, err := params.PageSize.Dim()
	if err != nil {
		return nil, err
	}

	l := &Layout{
		Dimensions: dim,
		Border:     params.Border,
		Markers: []Marker{
			{X: PageMargin, Y: PageMargin},
			{X: dim.Width - PageMargin, Y: PageMargin},
			{X: PageMargin, Y: dim.Height - PageMargin},
			{X: dim.Width - PageMargin, Y: dim.Height - PageMargin},
		},
	}

	l.StudentID = idGrid(params.IDLength, params.IDOrientation)

	// The body zone starts below the ID grid and ends above the bottom
	// fiducials.
	bodyTop := headerBottom(params.IDLength, params.IDOrientation) + headerGap
	bodyBottom := dim.Height - bottomClearance
	bodyLeft := ContentMargin
	bodyRight := dim.Width - ContentMargin
	bodyWidth := bodyRight - bodyLeft
	bodyHeight := bodyBottom - bodyTop

	colWidthNeeded := questionInset + float64(cfg.optionCount)*OptionPitch
	maxCols := int(bodyWidth / colWidthNeeded)
	if maxCols < 1 {
		return nil, fmt.Errorf("%w: page too narrow for %d options per question",
			ErrInvalidParameter, cfg.optionCount)
	}

	n := params.QuestionCount
	cols, rows := 0, 0
	for c := 1; c <= maxCols; c++ {
		r := (n + c - 1) / c
		if bodyHeight/float64(r) >= cfg.minRowPitch {
			cols, rows = c, r
			break
		}
	}
	if cols == 0 {
		return nil, fmt.Errorf("%w: %d questions cannot fit %v at minimum row pitch %.1fpt (max %d columns)",
			ErrInvalidParameter, n, params.PageSize, cfg.minRowPitch, maxCols)
	}

	pitch := bodyHeight / float64(rows)
	radius := math.Min(maxBubbleRadius, pitch*0.35)
	if radius < minBubbleRadius {
		radius = minBubbleRadius
	}

	colWidth := bodyWidth / float64(cols)
	l.Questions = make([]Question, n)
	for i := 0; i < n; i++ {
		col := i / rows
		row := i % rows
		colLeft := bodyLeft + float64(col)*colWidth
		y := bodyTop + (float64(row)+0.5)*pitch

		q := Question{
			Label:   fmt.Sprintf("Q%d", i+1),
			Options: make([]OptionBubble, cfg.optionCount),
		}
		for k := 0; k < cfg.optionCount; k++ {
			q.Options[k] = OptionBubble{
				Letter: string(optionLetters[k]),
				X:      colLeft + questionInset + (float64(k)+0.5)*OptionPitch,
				Y:      y,
				Radius: radius,
			}
		}
		l.Questions[i] = q
	}

	return l, nil
}

// headerBottom returns the y coordinate where the header zone ends for
// the given ID grid shape.
func headerBottom(idLength int, orientation IDOrientation) float64 {
	rows := 10
	if orientation == IDHorizontal {
		rows = idLength
	}
	return idGridTop + float64(rows-1)*idPitchY + idRadius + headerPad
}

// idGrid lays out the student-ID digit bubbles. Each DigitColumn is
// one digit position holding the ten digit bubbles; vertical
// orientation runs digit positions across the page with digits going
// down, horizontal runs digit positions down the page with digits
// going across.
func idGrid(idLength int, orientation IDOrientation) []DigitColumn {
	grid := make([]DigitColumn, idLength)
	for pos := 0; pos < idLength; pos++ {
		col := DigitColumn{
			DigitIndex: pos,
			Rows:       make([]DigitBubble, 10),
		}
		for d := 0; d < 10; d++ {
			var x, y float64
			if orientation == IDHorizontal {
				x = ContentMargin + (float64(d)+0.5)*idPitchX
				y = idGridTop + float64(pos)*idPitchY
			} else {
				x = ContentMargin + (float64(pos)+0.5)*idPitchX
				y = idGridTop + float64(d)*idPitchY
			}
			col.Rows[d] = DigitBubble{Digit: d, X: x, Y: y, Radius: idRadius}
		}
		grid[pos] = col
	}
	return grid
}
