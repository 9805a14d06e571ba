package omr

// GradeRecord is the scored result for one student response. All
// arithmetic stays in float64; rounding happens only at CSV emission.
type GradeRecord struct {
	StudentID string `json:"student_id"`
	PageIndex int    `json:"page_index"`

	// Scores maps question label to awarded points.
	Scores map[string]float64 `json:"scores"`

	Total    float64 `json:"total"`
	Possible float64 `json:"possible"`
	Percent  float64 `json:"percent"`
}

// ScoreQuestion awards points for one question.
//
// Single-select keys (one correct letter) are binary: the selection
// must equal the correct set exactly, so an extra letter forfeits the
// question rather than earning partial credit.
//
// Multi-select keys award points/|correct| per correct letter chosen
// and deduct the same per incorrect letter, floored at zero:
//
//	max(0, (hits - incorrect) * points/|correct|)
//
// A blank selection scores zero in both modes.
func ScoreQuestion(selected Selection, correct Selection, points float64) float64 {
	if len(correct) == 0 {
		return 0
	}
	if len(correct) == 1 {
		if selected.Equal(correct) {
			return points
		}
		return 0
	}
	var hits, incorrect int
	for _, letter := range selected {
		if correct.Contains(letter) {
			hits++
		} else {
			incorrect++
		}
	}
	perOption := points / float64(len(correct))
	score := float64(hits-incorrect) * perOption
	if score < 0 {
		return 0
	}
	return score
}

// Grade scores one response against a key. Questions absent from the
// response count as blank. Percent is 0 when the key carries no
// points.
func Grade(resp *StudentResponse, key AnswerKey) *GradeRecord {
	rec := &GradeRecord{
		StudentID: resp.StudentID,
		PageIndex: resp.PageIndex,
		Scores:    make(map[string]float64, len(key)),
	}
	for _, entry := range key {
		score := ScoreQuestion(resp.Selected(entry.Question), entry.Correct, entry.Points)
		rec.Scores[entry.Question] = score
		rec.Total += score
		rec.Possible += entry.Points
	}
	if rec.Possible > 0 {
		rec.Percent = 100 * rec.Total / rec.Possible
	}
	return rec
}

// GradeAll scores every response in order. Pure over its inputs, so
// re-grading an unchanged job reproduces identical records.
func GradeAll(responses []StudentResponse, key AnswerKey) []GradeRecord {
	records := make([]GradeRecord, len(responses))
	for i := range responses {
		records[i] = *Grade(&responses[i], key)
	}
	return records
}
