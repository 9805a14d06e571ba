package scan

import (
	"fmt"

	omr "github.com/omrkit/omr"
)

// decodePage converts classified bubbles into a StudentResponse. The
// filled slice must follow samplePage order: question options in
// layout order, then ID grid rows. For each ID column, exactly one
// filled row decodes to that digit; zero or multiple decode to '?'
// with a recorded ambiguity. An empty selection is a valid blank
// answer and is simply absent from the map.
func decodePage(l *omr.Layout, filled []bool, lowConfidence bool) *omr.StudentResponse {
	resp := &omr.StudentResponse{
		Answers:       make(map[string]omr.Selection),
		LowConfidence: lowConfidence,
	}

	k := 0
	for _, q := range l.Questions {
		var letters []string
		for _, o := range q.Options {
			if filled[k] {
				letters = append(letters, o.Letter)
			}
			k++
		}
		if len(letters) > 0 {
			resp.Answers[q.Label] = omr.NewSelection(letters...)
		}
	}

	id := make([]byte, len(l.StudentID))
	for ci, col := range l.StudentID {
		digit, hits := 0, 0
		for _, b := range col.Rows {
			if filled[k] {
				hits++
				digit = b.Digit
			}
			k++
		}
		if hits == 1 {
			id[ci] = byte('0' + digit)
			continue
		}
		id[ci] = omr.IndeterminateDigit[0]
		note := fmt.Errorf("%w: ID column %d has %d filled rows", omr.ErrDecodeAmbiguity, col.DigitIndex, hits)
		resp.Ambiguities = append(resp.Ambiguities, note.Error())
	}
	resp.StudentID = string(id)
	return resp
}
