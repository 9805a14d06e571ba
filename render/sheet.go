package render

import (
	"fmt"

	omr "github.com/omrkit/omr"
)

// SheetMeta carries the header text printed above the bubble grid.
type SheetMeta struct {
	// Title is the centered headline. Empty omits the line.
	Title string

	// NameLine is printed under the title. Empty uses the default
	// name and date blanks.
	NameLine string
}

const defaultNameLine = "Name: ______________________________    Date: ______________"

// idCaption labels the student-ID grid.
const idCaption = "Student ID"

// Text sizes and line widths, in points.
const (
	titleSize   = 14.0
	metaSize    = 10.0
	captionSize = 9.0
	labelSize   = 9.0

	bubbleLineWidth = 0.8
	borderLineWidth = 1.0

	// borderInset keeps the optional frame clear of the fiducial
	// markers at the page corners.
	borderInset = 18.0
)

// DrawSheet walks the layout and draws the complete sheet on p:
// fiducial squares, the header lines, the student-ID grid with digits
// inside the bubbles, and every question row with lettered option
// bubbles. Placement uses the layout coordinates exactly.
func DrawSheet(p Painter, l *omr.Layout, meta SheetMeta) error {
	if l == nil {
		return fmt.Errorf("%w: nil layout", omr.ErrInvalidParameter)
	}
	if err := l.Validate(); err != nil {
		return err
	}

	if l.Border {
		p.StrokeRect(borderInset, borderInset,
			l.Dimensions.Width-2*borderInset, l.Dimensions.Height-2*borderInset,
			borderLineWidth)
	}

	for _, m := range l.Markers {
		half := omr.MarkerSize / 2
		p.FillRect(m.X-half, m.Y-half, omr.MarkerSize, omr.MarkerSize)
	}

	if meta.Title != "" {
		p.Text(l.Dimensions.Width/2, omr.TitleBaselineY, titleSize, meta.Title, AlignCenter)
	}
	nameLine := meta.NameLine
	if nameLine == "" {
		nameLine = defaultNameLine
	}
	p.Text(omr.ContentMargin, omr.MetaBaselineY, metaSize, nameLine, AlignLeft)

	drawIDGrid(p, l)

	for _, q := range l.Questions {
		drawQuestion(p, q)
	}
	return nil
}

func drawIDGrid(p Painter, l *omr.Layout) {
	if len(l.StudentID) == 0 {
		return
	}
	first := l.StudentID[0].Rows[0]
	p.Text(first.X-first.Radius, omr.IDCaptionY, captionSize, idCaption, AlignLeft)

	for _, col := range l.StudentID {
		for _, b := range col.Rows {
			p.StrokeCircle(b.X, b.Y, b.Radius, bubbleLineWidth)
			size := letterSize(b.Radius)
			p.Text(b.X, capBaseline(b.Y, size), size, digitText(b.Digit), AlignCenter)
		}
	}
}

func drawQuestion(p Painter, q omr.Question) {
	row := q.Options[0]
	p.Text(row.X-omr.OptionPitch*0.75, capBaseline(row.Y, labelSize), labelSize, q.Label, AlignRight)

	for _, o := range q.Options {
		p.StrokeCircle(o.X, o.Y, o.Radius, bubbleLineWidth)
		size := letterSize(o.Radius)
		p.Text(o.X, capBaseline(o.Y, size), size, o.Letter, AlignCenter)
	}
}

// letterSize picks a font size whose capital letters sit comfortably
// inside a bubble of the given radius.
func letterSize(radius float64) float64 {
	return radius * 1.5
}

// capBaseline converts a vertical center into a baseline for capital
// letters and digits, whose cap height is roughly 0.7 of the size.
func capBaseline(cy, size float64) float64 {
	return cy + size*0.35
}

func digitText(d int) string {
	return string(rune('0' + d))
}
