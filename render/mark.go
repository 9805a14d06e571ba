package render

import (
	"fmt"

	omr "github.com/omrkit/omr"
)

// markScale sizes a filled mark relative to the bubble radius. Marks
// cover the printed letter but stay inside the outline, like a
// careful pencil fill.
const markScale = 0.9

// MarkSheet fills bubbles on an already drawn sheet the way a student
// would: the ID grid rows spelling studentID and the option bubbles
// named by answers. Marks go through the painter, so raster page
// transforms apply to them too. Unknown questions, letters, or ID
// digits are rejected.
func MarkSheet(p Painter, l *omr.Layout, studentID string, answers map[string]omr.Selection) error {
	if l == nil {
		return fmt.Errorf("%w: nil layout", omr.ErrInvalidParameter)
	}
	if len(studentID) != len(l.StudentID) {
		return fmt.Errorf("%w: student ID %q wants %d digits", omr.ErrInvalidParameter, studentID, len(l.StudentID))
	}
	for i, col := range l.StudentID {
		c := studentID[i]
		if c < '0' || c > '9' {
			return fmt.Errorf("%w: student ID digit %q", omr.ErrInvalidParameter, string(c))
		}
		b, ok := digitBubble(col, int(c-'0'))
		if !ok {
			return fmt.Errorf("%w: ID column %d has no digit %c", omr.ErrInvalidParameter, col.DigitIndex, c)
		}
		p.FillCircle(b.X, b.Y, b.Radius*markScale)
	}

	for label, sel := range answers {
		q, ok := layoutQuestion(l, label)
		if !ok {
			return fmt.Errorf("%w: unknown question %q", omr.ErrInvalidParameter, label)
		}
		for _, letter := range sel {
			o, ok := optionBubble(q, letter)
			if !ok {
				return fmt.Errorf("%w: question %q has no option %q", omr.ErrInvalidParameter, label, letter)
			}
			p.FillCircle(o.X, o.Y, o.Radius*markScale)
		}
	}
	return nil
}

func digitBubble(col omr.DigitColumn, digit int) (omr.DigitBubble, bool) {
	for _, b := range col.Rows {
		if b.Digit == digit {
			return b, true
		}
	}
	return omr.DigitBubble{}, false
}

func layoutQuestion(l *omr.Layout, label string) (omr.Question, bool) {
	for _, q := range l.Questions {
		if q.Label == label {
			return q, true
		}
	}
	return omr.Question{}, false
}

func optionBubble(q omr.Question, letter string) (omr.OptionBubble, bool) {
	for _, o := range q.Options {
		if o.Letter == letter {
			return o, true
		}
	}
	return omr.OptionBubble{}, false
}
