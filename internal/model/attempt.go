package model

import "time"

// Attempt is a locally journaled exam submission.
type Attempt struct {
	ID          int64     `json:"id"`
	ExamID      int64     `json:"exam_id"`
	ExamTitle   string    `json:"exam_title"`
	StudentID   int64     `json:"student_id"`
	ResultID    int64     `json:"result_id"`
	Score       float64   `json:"score"`
	Automatic   bool      `json:"automatic"`
	SubmittedAt time.Time `json:"submitted_at"`
}
