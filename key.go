package omr

import (
	"fmt"
	"strconv"
	"strings"
)

// KeyInput is the external form of one answer-key row, as accepted
// from callers and serialized into storage.
type KeyInput struct {
	// Question is the label, accepted as "Q7" (any case) or bare "7".
	Question string `json:"question"`

	// Answer is one or more option letters, comma separated, any
	// case: "b" or "A,C".
	Answer string `json:"answer"`

	// Points is the weight of the question. Zero means unset and
	// defaults to 1.0.
	Points float64 `json:"points,omitempty"`
}

// KeyEntry is one normalized answer-key row.
type KeyEntry struct {
	Question string
	Correct  Selection
	Points   float64
}

// AnswerKey is the ordered set of key entries for a test. Order
// follows the input and drives gradebook column order.
type AnswerKey []KeyEntry

// ParseAnswerKey normalizes raw key rows. Question labels fold to the
// canonical "Q<n>" form, answers split on commas into a Selection,
// and absent point weights default to 1.0.
func ParseAnswerKey(inputs []KeyInput) (AnswerKey, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: answer key is empty", ErrInvalidParameter)
	}
	key := make(AnswerKey, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))
	for i, in := range inputs {
		label, err := normalizeQuestionLabel(in.Question)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrInvalidParameter, i, err)
		}
		if seen[label] {
			return nil, fmt.Errorf("%w: duplicate key entry for %s", ErrInvalidParameter, label)
		}
		seen[label] = true

		correct := NewSelection(strings.Split(in.Answer, ",")...)
		if len(correct) == 0 {
			return nil, fmt.Errorf("%w: entry %s has no answer letters", ErrInvalidParameter, label)
		}
		for _, letter := range correct {
			if len(letter) != 1 || !strings.Contains(optionLetters, letter) {
				return nil, fmt.Errorf("%w: entry %s has invalid answer letter %q", ErrInvalidParameter, label, letter)
			}
		}

		points := in.Points
		if points == 0 {
			points = 1.0
		}
		if points < 0 || points != points {
			return nil, fmt.Errorf("%w: entry %s has invalid points %v", ErrInvalidParameter, label, in.Points)
		}

		key = append(key, KeyEntry{Question: label, Correct: correct, Points: points})
	}
	return key, nil
}

// normalizeQuestionLabel folds "q7", "Q7" and "7" to "Q7".
func normalizeQuestionLabel(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty question label")
	}
	if s[0] == 'q' || s[0] == 'Q' {
		s = s[1:]
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return "", fmt.Errorf("malformed question label %q", raw)
	}
	return "Q" + strconv.Itoa(n), nil
}

// ValidateAgainst checks the key against a generated layout. Every
// entry must name a question the sheet carries, and every answer
// letter must be one of that question's printed options.
func (k AnswerKey) ValidateAgainst(layout *Layout) error {
	options := make(map[string]map[string]bool, len(layout.Questions))
	for _, q := range layout.Questions {
		set := make(map[string]bool, len(q.Options))
		for _, o := range q.Options {
			set[o.Letter] = true
		}
		options[q.Label] = set
	}
	for _, entry := range k {
		set, ok := options[entry.Question]
		if !ok {
			return fmt.Errorf("%w: key references unknown question %s", ErrConfiguration, entry.Question)
		}
		for _, letter := range entry.Correct {
			if !set[letter] {
				return fmt.Errorf("%w: key for %s references unknown option %s", ErrConfiguration, entry.Question, letter)
			}
		}
	}
	return nil
}

// Entry returns the key row for a question label.
func (k AnswerKey) Entry(label string) (KeyEntry, bool) {
	for _, e := range k {
		if e.Question == label {
			return e, true
		}
	}
	return KeyEntry{}, false
}

// TotalPossible sums the point weights of all entries.
func (k AnswerKey) TotalPossible() float64 {
	var total float64
	for _, e := range k {
		total += e.Points
	}
	return total
}
