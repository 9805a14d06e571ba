package omr

import (
	"errors"
	"testing"
)

func TestParseAnswerKey(t *testing.T) {
	key, err := ParseAnswerKey([]KeyInput{
		{Question: "Q1", Answer: "b"},
		{Question: "2", Answer: "A,c", Points: 2},
		{Question: "q3", Answer: " D , a ", Points: 0.5},
	})
	if err != nil {
		t.Fatalf("ParseAnswerKey() error = %v", err)
	}
	if len(key) != 3 {
		t.Fatalf("len = %d, want 3", len(key))
	}

	tests := []struct {
		idx      int
		question string
		correct  string
		points   float64
	}{
		{0, "Q1", "B", 1.0},
		{1, "Q2", "A,C", 2.0},
		{2, "Q3", "A,D", 0.5},
	}
	for _, tt := range tests {
		entry := key[tt.idx]
		if entry.Question != tt.question {
			t.Errorf("entry %d question = %q, want %q", tt.idx, entry.Question, tt.question)
		}
		if entry.Correct.String() != tt.correct {
			t.Errorf("entry %d correct = %q, want %q", tt.idx, entry.Correct.String(), tt.correct)
		}
		if entry.Points != tt.points {
			t.Errorf("entry %d points = %v, want %v", tt.idx, entry.Points, tt.points)
		}
	}

	if got := key.TotalPossible(); got != 3.5 {
		t.Errorf("TotalPossible() = %v, want 3.5", got)
	}
}

func TestParseAnswerKey_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		inputs []KeyInput
	}{
		{"empty key", nil},
		{"empty answer", []KeyInput{{Question: "Q1", Answer: ""}}},
		{"bad letter", []KeyInput{{Question: "Q1", Answer: "Z"}}},
		{"multichar token", []KeyInput{{Question: "Q1", Answer: "AB"}}},
		{"bad label", []KeyInput{{Question: "first", Answer: "A"}}},
		{"zero label", []KeyInput{{Question: "Q0", Answer: "A"}}},
		{"duplicate label", []KeyInput{{Question: "Q1", Answer: "A"}, {Question: "1", Answer: "B"}}},
		{"negative points", []KeyInput{{Question: "Q1", Answer: "A", Points: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseAnswerKey(tt.inputs); !errors.Is(err, ErrInvalidParameter) {
				t.Errorf("ParseAnswerKey() error = %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestAnswerKey_ValidateAgainst(t *testing.T) {
	layout := testLayout(t) // 8 questions, options A..E

	ok, err := ParseAnswerKey([]KeyInput{
		{Question: "Q1", Answer: "A"},
		{Question: "Q8", Answer: "B,E", Points: 2},
	})
	if err != nil {
		t.Fatalf("ParseAnswerKey() error = %v", err)
	}
	if err := ok.ValidateAgainst(layout); err != nil {
		t.Errorf("ValidateAgainst() error = %v, want nil", err)
	}

	unknownQuestion, _ := ParseAnswerKey([]KeyInput{{Question: "Q9", Answer: "A"}})
	if err := unknownQuestion.ValidateAgainst(layout); !errors.Is(err, ErrConfiguration) {
		t.Errorf("unknown question: error = %v, want ErrConfiguration", err)
	}

	unknownOption, _ := ParseAnswerKey([]KeyInput{{Question: "Q1", Answer: "F"}})
	if err := unknownOption.ValidateAgainst(layout); !errors.Is(err, ErrConfiguration) {
		t.Errorf("unknown option: error = %v, want ErrConfiguration", err)
	}
}

func TestAnswerKey_Entry(t *testing.T) {
	key, err := ParseAnswerKey([]KeyInput{{Question: "Q2", Answer: "C"}})
	if err != nil {
		t.Fatalf("ParseAnswerKey() error = %v", err)
	}
	if _, ok := key.Entry("Q2"); !ok {
		t.Error("Entry(Q2) not found")
	}
	if _, ok := key.Entry("Q3"); ok {
		t.Error("Entry(Q3) unexpectedly found")
	}
}
