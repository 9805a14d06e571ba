package scan

import (
	"strings"
	"testing"

	omr "github.com/omrkit/omr"
)

// fillVector returns an all-blank classification for the layout.
func fillVector(l *omr.Layout) []bool {
	n := 0
	for _, q := range l.Questions {
		n += len(q.Options)
	}
	for _, col := range l.StudentID {
		n += len(col.Rows)
	}
	return make([]bool, n)
}

// bubbleIndex locates a bubble's position in samplePage order.
type bubbleIndex struct {
	l *omr.Layout
}

func (b bubbleIndex) option(question, option int) int {
	idx := 0
	for qi, q := range b.l.Questions {
		if qi == question {
			return idx + option
		}
		idx += len(q.Options)
	}
	return -1
}

func (b bubbleIndex) idRow(column, row int) int {
	idx := 0
	for _, q := range b.l.Questions {
		idx += len(q.Options)
	}
	for ci, col := range b.l.StudentID {
		if ci == column {
			return idx + row
		}
		idx += len(col.Rows)
	}
	return -1
}

func TestDecodePage(t *testing.T) {
	l := testLayout(t)
	bi := bubbleIndex{l}
	filled := fillVector(l)
	filled[bi.option(0, 1)] = true // Q1 B
	filled[bi.option(2, 0)] = true // Q3 A
	filled[bi.option(2, 2)] = true // Q3 C
	filled[bi.idRow(0, 7)] = true  // first digit 7
	filled[bi.idRow(2, 3)] = true  // third column double-filled
	filled[bi.idRow(2, 4)] = true
	filled[bi.idRow(3, 0)] = true // last digit 0

	resp := decodePage(l, filled, false)

	if resp.StudentID != "7??0" {
		t.Errorf("StudentID = %q, want 7??0", resp.StudentID)
	}
	want := map[string]omr.Selection{
		"Q1": omr.NewSelection("B"),
		"Q3": omr.NewSelection("A", "C"),
	}
	sameAnswers(t, resp.Answers, want)
	if len(resp.Ambiguities) != 2 {
		t.Fatalf("ambiguities = %v, want two", resp.Ambiguities)
	}
	if !strings.Contains(resp.Ambiguities[0], "ID column 1 has 0 filled rows") {
		t.Errorf("first note = %q", resp.Ambiguities[0])
	}
	if !strings.Contains(resp.Ambiguities[1], "ID column 2 has 2 filled rows") {
		t.Errorf("second note = %q", resp.Ambiguities[1])
	}
	if resp.LowConfidence {
		t.Error("low confidence was not requested")
	}
}

func TestDecodePage_AllBlank(t *testing.T) {
	l := testLayout(t)
	resp := decodePage(l, fillVector(l), true)

	if len(resp.Answers) != 0 {
		t.Errorf("answers = %v, want none", resp.Answers)
	}
	if resp.StudentID != strings.Repeat(omr.IndeterminateDigit, 4) {
		t.Errorf("StudentID = %q, want all indeterminate", resp.StudentID)
	}
	if len(resp.Ambiguities) != len(l.StudentID) {
		t.Errorf("ambiguities = %d, want one per column", len(resp.Ambiguities))
	}
	if !resp.LowConfidence {
		t.Error("low confidence flag was dropped")
	}
}

func TestDecodePage_FullSelection(t *testing.T) {
	l := testLayout(t)
	bi := bubbleIndex{l}
	filled := fillVector(l)
	for oi := range l.Questions[4].Options {
		filled[bi.option(4, oi)] = true
	}
	for ci := range l.StudentID {
		filled[bi.idRow(ci, 9)] = true
	}

	resp := decodePage(l, filled, false)

	if got := resp.Answers["Q5"]; !got.Equal(omr.NewSelection("A", "B", "C", "D", "E")) {
		t.Errorf("Q5 = %v, want all five options", got)
	}
	if resp.StudentID != "9999" {
		t.Errorf("StudentID = %q, want 9999", resp.StudentID)
	}
	if len(resp.Ambiguities) != 0 {
		t.Errorf("ambiguities = %v", resp.Ambiguities)
	}
}
