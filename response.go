package omr

import (
	"sort"
	"strings"
)

// Selection is a set of option letters, stored sorted, deduplicated
// and uppercase. The empty selection is a valid blank response.
type Selection []string

// NewSelection normalizes raw letters into a Selection. Empty strings
// are dropped; case is folded; duplicates collapse.
func NewSelection(letters ...string) Selection {
	seen := make(map[string]bool, len(letters))
	out := make(Selection, 0, len(letters))
	for _, raw := range letters {
		letter := strings.ToUpper(strings.TrimSpace(raw))
		if letter == "" || seen[letter] {
			continue
		}
		seen[letter] = true
		out = append(out, letter)
	}
	sort.Strings(out)
	return out
}

// Equal reports whether two selections contain the same letters.
func (s Selection) Equal(t Selection) bool {
	if len(s) != len(t) {
		return false
	}
	for i := range s {
		if s[i] != t[i] {
			return false
		}
	}
	return true
}

// Contains reports whether the selection includes the letter.
func (s Selection) Contains(letter string) bool {
	for _, l := range s {
		if l == letter {
			return true
		}
	}
	return false
}

// String returns the letters comma-joined, e.g. "A,C". The empty
// selection renders as the empty string. This is both the gradebook
// cell form and the parse-inverse of the answer-key input form.
func (s Selection) String() string {
	return strings.Join(s, ",")
}

// IndeterminateDigit marks a student-ID position whose column had zero
// or multiple filled rows.
const IndeterminateDigit = "?"

// StudentResponse is the decoded result of one successfully aligned
// page: the student identifier from the ID grid and the selected
// option letters per question label.
type StudentResponse struct {
	// StudentID is the decoded digit string. Indeterminate positions
	// hold IndeterminateDigit; the ID may therefore be incomplete but
	// is never empty for an OK page.
	StudentID string `json:"student_id"`

	// PageIndex is the zero-based page within the job's upload.
	PageIndex int `json:"page_index"`

	// Answers maps question label to the selected letters. A missing
	// or empty entry is a blank response.
	Answers map[string]Selection `json:"answers"`

	// Ambiguities lists decode notes (indeterminate ID digits) for
	// operator visibility. Never fatal.
	Ambiguities []string `json:"ambiguities,omitempty"`

	// LowConfidence is set when the page's fill-ratio distribution was
	// too flat to separate filled from empty bubbles with margin.
	LowConfidence bool `json:"low_confidence,omitempty"`
}

// Selected returns the selection for a question label, blank if the
// response has none.
func (r *StudentResponse) Selected(label string) Selection {
	return r.Answers[label]
}

// PageStatus tells whether a page produced a response.
type PageStatus string

// Page detection outcomes.
const (
	PageOK    PageStatus = "OK"
	PageError PageStatus = "ERROR"
)

// PageResult records the detection outcome of one scanned page.
type PageResult struct {
	// Index is the zero-based page within the job's upload.
	Index int `json:"index"`

	// Status is PageOK when a response was extracted.
	Status PageStatus `json:"status"`

	// Reason holds the failure description for PageError pages.
	Reason string `json:"reason,omitempty"`

	// LowConfidence mirrors the response flag for OK pages.
	LowConfidence bool `json:"low_confidence,omitempty"`
}
