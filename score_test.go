package omr

import (
	"math"
	"reflect"
	"testing"
)

func TestScoreQuestion_SingleSelect(t *testing.T) {
	correct := NewSelection("A")
	tests := []struct {
		name     string
		selected Selection
		want     float64
	}{
		{"exact match", NewSelection("A"), 2.0},
		{"wrong letter", NewSelection("B"), 0},
		{"blank", NewSelection(), 0},
		{"correct plus extra", NewSelection("A", "B"), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScoreQuestion(tt.selected, correct, 2.0); got != tt.want {
				t.Errorf("ScoreQuestion(%v) = %v, want %v", tt.selected, got, tt.want)
			}
		})
	}
}

func TestScoreQuestion_MultiSelect(t *testing.T) {
	// Two correct options at 2 points: each hit earns 1, each
	// incorrect selection forfeits 1, floored at zero.
	correct := NewSelection("A", "C")
	tests := []struct {
		name     string
		selected Selection
		want     float64
	}{
		{"full match", NewSelection("A", "C"), 2.0},
		{"strict subset", NewSelection("A"), 1.0},
		{"hit cancelled by miss", NewSelection("A", "B"), 0},
		{"two hits one miss", NewSelection("A", "B", "C"), 1.0},
		{"floored at zero", NewSelection("A", "B", "D"), 0},
		{"all wrong", NewSelection("B", "D"), 0},
		{"blank", NewSelection(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScoreQuestion(tt.selected, correct, 2.0); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("ScoreQuestion(%v) = %v, want %v", tt.selected, got, tt.want)
			}
		})
	}
}

func TestScoreQuestion_FractionalPerOption(t *testing.T) {
	correct := NewSelection("A", "B", "C")
	got := ScoreQuestion(NewSelection("A", "B"), correct, 1.0)
	if math.Abs(got-2.0/3.0) > 1e-12 {
		t.Errorf("ScoreQuestion = %v, want 2/3", got)
	}
}

func TestGrade(t *testing.T) {
	key, err := ParseAnswerKey([]KeyInput{
		{Question: "Q1", Answer: "B"},
		{Question: "Q2", Answer: "A,C", Points: 2},
		{Question: "Q3", Answer: "D"},
	})
	if err != nil {
		t.Fatalf("ParseAnswerKey() error = %v", err)
	}

	resp := &StudentResponse{
		StudentID: "123456",
		PageIndex: 2,
		Answers: map[string]Selection{
			"Q1": NewSelection("B"),
			"Q2": NewSelection("A"),
			// Q3 blank.
		},
	}

	rec := Grade(resp, key)
	if rec.StudentID != "123456" || rec.PageIndex != 2 {
		t.Errorf("identity fields = %q/%d", rec.StudentID, rec.PageIndex)
	}
	if rec.Scores["Q1"] != 1.0 || rec.Scores["Q2"] != 1.0 || rec.Scores["Q3"] != 0 {
		t.Errorf("Scores = %v", rec.Scores)
	}
	if rec.Total != 2.0 {
		t.Errorf("Total = %v, want 2.0", rec.Total)
	}
	if rec.Possible != 4.0 {
		t.Errorf("Possible = %v, want 4.0", rec.Possible)
	}
	if math.Abs(rec.Percent-50.0) > 1e-12 {
		t.Errorf("Percent = %v, want 50.0", rec.Percent)
	}
}

func TestGrade_ZeroPossible(t *testing.T) {
	rec := Grade(&StudentResponse{StudentID: "1"}, AnswerKey{})
	if rec.Percent != 0 {
		t.Errorf("Percent = %v, want 0 with empty key", rec.Percent)
	}
}

func TestGradeAll_Idempotent(t *testing.T) {
	key, err := ParseAnswerKey([]KeyInput{
		{Question: "Q1", Answer: "A,B", Points: 4},
		{Question: "Q2", Answer: "C"},
	})
	if err != nil {
		t.Fatalf("ParseAnswerKey() error = %v", err)
	}
	responses := []StudentResponse{
		{StudentID: "1111", Answers: map[string]Selection{"Q1": NewSelection("A"), "Q2": NewSelection("C")}},
		{StudentID: "2222", Answers: map[string]Selection{"Q1": NewSelection("A", "B", "C")}},
	}

	first := GradeAll(responses, key)
	second := GradeAll(responses, key)
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated grading produced different records")
	}
	if first[0].Total != 3.0 {
		t.Errorf("student 1111 total = %v, want 3.0", first[0].Total)
	}
	if first[1].Total != 2.0 {
		t.Errorf("student 2222 total = %v, want 2.0", first[1].Total)
	}
}
