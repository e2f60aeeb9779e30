package result

import (
	"time"

	"github.com/pavelanni/learny/internal/model"
)

// Row is one line of the per-question breakdown.
type Row struct {
	Number        int
	QuestionText  string
	Status        Status
	StudentAnswer string // empty when the question was left blank
	CorrectAnswer string // set only when the answer was not correct
}

// Shares are the correct, wrong and empty counts as fractions of the total.
type Shares struct {
	Correct float64
	Wrong   float64
	Empty   float64
}

// Report is a scored result prepared for display.
type Report struct {
	ExamTitle   string
	CourseName  string
	StudentName string
	Score       float64
	Passed      bool
	Tier        Tier
	Band        Band
	Total       int
	Correct     int
	Wrong       int
	Empty       int
	Shares      Shares
	FinishedAt  time.Time // zero when the backend did not send it
	Rows        []Row
}

// HasFinishedAt reports whether the completion time is known.
func (r Report) HasFinishedAt() bool { return !r.FinishedAt.IsZero() }

// Build classifies res. Missing optional fields never fail the build.
func Build(res model.ScoredResult) Report {
	res.Normalize()
	score := res.Score.Float()

	rep := Report{
		ExamTitle:   res.ExamTitle,
		CourseName:  res.CourseName,
		StudentName: res.StudentName,
		Score:       score,
		Passed:      Passed(score),
		Tier:        TierFor(score),
		Band:        BandFor(score),
		Total:       res.TotalQuestions,
		Correct:     res.CorrectAnswers,
		Wrong:       res.WrongAnswers,
		Empty:       res.EmptyAnswers,
		FinishedAt:  res.FinishedAt.Time,
		Rows:        make([]Row, 0, len(res.QuestionResults)),
	}
	rep.Shares = sharesOf(rep.Correct, rep.Wrong, rep.Empty, rep.Total)

	for i, q := range res.QuestionResults {
		row := Row{
			Number:       i + 1,
			QuestionText: q.QuestionText,
			Status:       StatusOf(q),
		}
		if !IsBlank(q.StudentAnswer) {
			row.StudentAnswer = q.Answer()
		}
		if row.Status != StatusCorrect {
			row.CorrectAnswer = q.CorrectAnswer
		}
		rep.Rows = append(rep.Rows, row)
	}
	return rep
}

func sharesOf(correct, wrong, empty, total int) Shares {
	if total <= 0 {
		return Shares{}
	}
	t := float64(total)
	return Shares{
		Correct: float64(correct) / t,
		Wrong:   float64(wrong) / t,
		Empty:   float64(empty) / t,
	}
}
