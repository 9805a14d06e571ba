package omr

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
)

// WriteGradebook emits the gradebook CSV: a header row of
// Student_ID, one column per key question, Total_Score,
// Total_Possible and Percent_Grade, then one row per graded response.
// Question cells hold the student's selected letters comma-joined
// (blank for no selection); numeric cells are formatted with one
// decimal place. Responses and grades pair by index.
func WriteGradebook(w io.Writer, key AnswerKey, responses []StudentResponse, grades []GradeRecord) error {
	if len(responses) != len(grades) {
		return fmt.Errorf("%w: %d responses but %d grade records", ErrInvalidParameter, len(responses), len(grades))
	}

	cw := csv.NewWriter(w)
	header := make([]string, 0, len(key)+4)
	header = append(header, "Student_ID")
	for _, entry := range key {
		header = append(header, entry.Question)
	}
	header = append(header, "Total_Score", "Total_Possible", "Percent_Grade")
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("gradebook: %w", err)
	}

	row := make([]string, 0, len(header))
	for i := range responses {
		resp, grade := &responses[i], &grades[i]
		row = row[:0]
		row = append(row, resp.StudentID)
		for _, entry := range key {
			row = append(row, resp.Selected(entry.Question).String())
		}
		row = append(row,
			formatScore(grade.Total),
			formatScore(grade.Possible),
			formatScore(grade.Percent))
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("gradebook: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("gradebook: %w", err)
	}
	return nil
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

// Stats summarizes the score distribution of a graded batch.
type Stats struct {
	Students    int     `json:"students"`
	MeanScore   float64 `json:"mean_score"`
	MinScore    float64 `json:"min_score"`
	MaxScore    float64 `json:"max_score"`
	MeanPercent float64 `json:"mean_percent"`
}

// ComputeStats reduces grade records to summary statistics. An empty
// batch yields the zero Stats.
func ComputeStats(grades []GradeRecord) Stats {
	if len(grades) == 0 {
		return Stats{}
	}
	s := Stats{
		Students: len(grades),
		MinScore: grades[0].Total,
		MaxScore: grades[0].Total,
	}
	var sumScore, sumPercent float64
	for i := range grades {
		total := grades[i].Total
		sumScore += total
		sumPercent += grades[i].Percent
		if total < s.MinScore {
			s.MinScore = total
		}
		if total > s.MaxScore {
			s.MaxScore = total
		}
	}
	s.MeanScore = sumScore / float64(len(grades))
	s.MeanPercent = sumPercent / float64(len(grades))
	return s
}
