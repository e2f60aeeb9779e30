package model

import "encoding/json"

// QuestionResult is the backend's per-question outcome.
type QuestionResult struct {
	QuestionID    int64   `json:"questionId"`
	QuestionText  string  `json:"questionText"`
	Correct       bool    `json:"correct"`
	StudentAnswer *string `json:"studentAnswer"`
	CorrectAnswer string  `json:"correctAnswer"`
}

// UnmarshalJSON accepts the correctness flag as either "correct" or "isCorrect".
func (q *QuestionResult) UnmarshalJSON(data []byte) error {
	type plain QuestionResult
	var aux struct {
		plain
		Correct   *bool `json:"correct"`
		IsCorrect *bool `json:"isCorrect"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*q = QuestionResult(aux.plain)
	switch {
	case aux.Correct != nil:
		q.Correct = *aux.Correct
	case aux.IsCorrect != nil:
		q.Correct = *aux.IsCorrect
	default:
		q.Correct = false
	}
	return nil
}

// Answer returns the student's answer text, or "" when absent.
func (q QuestionResult) Answer() string {
	if q.StudentAnswer == nil {
		return ""
	}
	return *q.StudentAnswer
}

// ScoredResult is the graded outcome of one attempt, as returned by
// POST /exams/submit and GET /results/{id}.
type ScoredResult struct {
	ResultID        int64            `json:"resultId"`
	ExamID          int64            `json:"examId"`
	ExamTitle       string           `json:"examTitle"`
	CourseName      string           `json:"courseName,omitempty"`
	StudentID       int64            `json:"studentId"`
	StudentName     string           `json:"studentName"`
	Score           Score            `json:"score"`
	TotalQuestions  int              `json:"totalQuestions"`
	CorrectAnswers  int              `json:"correctAnswers"`
	WrongAnswers    int              `json:"wrongAnswers"`
	EmptyAnswers    int              `json:"emptyAnswers"`
	FinishedAt      Timestamp        `json:"finishedAt"`
	QuestionResults []QuestionResult `json:"questionResults"`
}

// Normalize fills the gaps older backend builds leave: a missing breakdown
// becomes empty and the total falls back to the breakdown length.
func (r *ScoredResult) Normalize() {
	if r.QuestionResults == nil {
		r.QuestionResults = []QuestionResult{}
	}
	if r.TotalQuestions == 0 && len(r.QuestionResults) > 0 {
		r.TotalQuestions = len(r.QuestionResults)
	}
}

// ResultSummary is a result listing entry. The backend serves both the DTO
// shape (resultId, examId) and the entity shape (id, exam.id, student.id);
// both decode into the same fields.
type ResultSummary struct {
	ID          int64     `json:"id"`
	ExamID      int64     `json:"examId"`
	ExamTitle   string    `json:"examTitle"`
	StudentID   int64     `json:"studentId"`
	StudentName string    `json:"studentName"`
	Score       Score     `json:"score"`
	FinishedAt  Timestamp `json:"finishedAt"`
}

// UnmarshalJSON implements the shape normalization described on ResultSummary.
func (r *ResultSummary) UnmarshalJSON(data []byte) error {
	type plain ResultSummary
	var aux struct {
		plain
		ResultID int64 `json:"resultId"`
		Exam     *struct {
			ID    int64  `json:"id"`
			Title string `json:"title"`
		} `json:"exam"`
		Student *User `json:"student"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = ResultSummary(aux.plain)
	if r.ID == 0 {
		r.ID = aux.ResultID
	}
	if aux.Exam != nil {
		if r.ExamID == 0 {
			r.ExamID = aux.Exam.ID
		}
		if r.ExamTitle == "" {
			r.ExamTitle = aux.Exam.Title
		}
	}
	if aux.Student != nil {
		if r.StudentID == 0 {
			r.StudentID = aux.Student.ID
		}
		if r.StudentName == "" {
			r.StudentName = aux.Student.DisplayName()
		}
	}
	return nil
}

// CompletedExamIDs returns the set of exam ids appearing in results.
func CompletedExamIDs(results []ResultSummary) map[int64]bool {
	done := make(map[int64]bool, len(results))
	for _, r := range results {
		done[r.ExamID] = true
	}
	return done
}
