package omr

import (
	"encoding/json"
	"fmt"
)

// PageSize identifies a supported paper size.
type PageSize string

// Supported paper sizes.
const (
	PageA4     PageSize = "A4"
	PageLetter PageSize = "LETTER"
)

// Dim returns the page dimensions in points.
func (s PageSize) Dim() (Dimensions, error) {
	switch s {
	case PageA4:
		return Dimensions{Width: 595.28, Height: 841.89}, nil
	case PageLetter:
		return Dimensions{Width: 612, Height: 792}, nil
	default:
		return Dimensions{}, fmt.Errorf("%w: unknown page size %q", ErrInvalidParameter, string(s))
	}
}

// IDOrientation controls how the student-ID grid is laid out.
type IDOrientation string

// Student-ID grid orientations. Vertical places one column per digit
// position with the ten digit rows running down the page; horizontal
// places one row per digit position with the ten digits running across.
const (
	IDVertical   IDOrientation = "vertical"
	IDHorizontal IDOrientation = "horizontal"
)

// Shared sheet geometry constants, in points. The renderer positions
// captions and labels relative to these; bubble and marker coordinates
// themselves are carried inside the Layout.
const (
	// PageMargin is the inset from the page edges to the fiducial
	// marker centers.
	PageMargin = 30.0

	// MarkerSize is the side length of the filled fiducial squares.
	MarkerSize = 16.0

	// ContentMargin is the inset from the page edges to bubble content.
	ContentMargin = 44.0

	// TitleBaselineY is the baseline of the sheet title.
	TitleBaselineY = 46.0

	// MetaBaselineY is the baseline of the name/date line.
	MetaBaselineY = 68.0

	// IDCaptionY is the baseline of the student-ID grid caption.
	IDCaptionY = 86.0

	// OptionPitch is the horizontal spacing between option bubble
	// centers within one question row.
	OptionPitch = 24.0
)

// Dimensions holds page extents in points.
type Dimensions struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// OptionBubble is one selectable bubble of a question.
type OptionBubble struct {
	Letter string  `json:"letter"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// Question is one question row: a label and its ordered option bubbles.
type Question struct {
	Label   string         `json:"label"`
	Options []OptionBubble `json:"options"`
}

// DigitBubble is one bubble of the student-ID grid.
type DigitBubble struct {
	Digit  int     `json:"digit"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// DigitColumn is one digit position of the student ID with its ten
// digit bubbles (0 through 9), in digit order.
type DigitColumn struct {
	DigitIndex int           `json:"digit_index"`
	Rows       []DigitBubble `json:"rows"`
}

// Marker is a fiducial marker center.
type Marker struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Layout is the immutable geometry descriptor shared by the renderer
// and the detector. Coordinates are in points with the origin at the
// page's top-left corner; this single coordinate space is the contract
// that keeps printed sheets and scanned pages in sync.
//
// Markers are emitted in reading order: top-left, top-right,
// bottom-left, bottom-right.
type Layout struct {
	Dimensions Dimensions    `json:"dimensions"`
	Questions  []Question    `json:"questions"`
	StudentID  []DigitColumn `json:"student_id"`
	Markers    []Marker      `json:"alignment_markers"`
	Border     bool          `json:"border,omitempty"`
}

// ParseLayout decodes a layout from its JSON form and validates it.
func ParseLayout(data []byte) (*Layout, error) {
	var l Layout
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("%w: layout JSON: %v", ErrInvalidParameter, err)
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// Encode returns the canonical JSON form of the layout.
func (l *Layout) Encode() ([]byte, error) {
	return json.Marshal(l)
}

// Validate checks the structural invariants the detector relies on.
func (l *Layout) Validate() error {
	if l.Dimensions.Width <= 0 || l.Dimensions.Height <= 0 {
		return fmt.Errorf("%w: non-positive page dimensions", ErrInvalidParameter)
	}
	if len(l.Markers) != 4 {
		return fmt.Errorf("%w: layout has %d alignment markers, want 4", ErrInvalidParameter, len(l.Markers))
	}
	if len(l.Questions) == 0 {
		return fmt.Errorf("%w: layout has no questions", ErrInvalidParameter)
	}
	seen := make(map[string]bool, len(l.Questions))
	for _, q := range l.Questions {
		if q.Label == "" {
			return fmt.Errorf("%w: question with empty label", ErrInvalidParameter)
		}
		if seen[q.Label] {
			return fmt.Errorf("%w: duplicate question label %q", ErrInvalidParameter, q.Label)
		}
		seen[q.Label] = true
		if len(q.Options) == 0 {
			return fmt.Errorf("%w: question %q has no options", ErrInvalidParameter, q.Label)
		}
	}
	for _, col := range l.StudentID {
		if len(col.Rows) != 10 {
			return fmt.Errorf("%w: ID column %d has %d rows, want 10", ErrInvalidParameter, col.DigitIndex, len(col.Rows))
		}
	}
	return nil
}

// QuestionLabels returns the question labels in layout order.
func (l *Layout) QuestionLabels() []string {
	labels := make([]string, len(l.Questions))
	for i, q := range l.Questions {
		labels[i] = q.Label
	}
	return labels
}

// HasQuestion reports whether the layout contains the given label.
func (l *Layout) HasQuestion(label string) bool {
	for _, q := range l.Questions {
		if q.Label == label {
			return true
		}
	}
	return false
}

// MarkerQuad returns the four marker centers in the cyclic corner
// order used by perspective transforms: top-left, top-right,
// bottom-right, bottom-left.
func (l *Layout) MarkerQuad() ([4]Point, error) {
	if len(l.Markers) != 4 {
		return [4]Point{}, fmt.Errorf("%w: layout has %d alignment markers, want 4", ErrInvalidParameter, len(l.Markers))
	}
	// Stored order is reading order: TL, TR, BL, BR.
	return [4]Point{
		{X: l.Markers[0].X, Y: l.Markers[0].Y},
		{X: l.Markers[1].X, Y: l.Markers[1].Y},
		{X: l.Markers[3].X, Y: l.Markers[3].Y},
		{X: l.Markers[2].X, Y: l.Markers[2].Y},
	}, nil
}

// BubbleCount returns the total number of bubbles on the sheet,
// questions and ID grid combined.
func (l *Layout) BubbleCount() int {
	n := 0
	for _, q := range l.Questions {
		n += len(q.Options)
	}
	for _, col := range l.StudentID {
		n += len(col.Rows)
	}
	return n
}
