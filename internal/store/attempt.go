package store

import (
	"time"

	"github.com/pavelanni/learny/internal/model"
)

// RecordAttempt journals a submitted attempt and returns its local id.
func (s *Store) RecordAttempt(a model.Attempt) (int64, error) {
	if a.SubmittedAt.IsZero() {
		a.SubmittedAt = time.Now()
	}
	res, err := s.db.Exec(
		`INSERT INTO attempts (exam_id, exam_title, student_id, result_id, score, automatic, submitted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		a.ExamID, a.ExamTitle, a.StudentID, a.ResultID, a.Score, a.Automatic, a.SubmittedAt,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListAttempts returns the journaled attempts of a student, newest first.
func (s *Store) ListAttempts(studentID int64) ([]model.Attempt, error) {
	rows, err := s.db.Query(
		`SELECT id, exam_id, exam_title, student_id, result_id, score, automatic, submitted_at
		 FROM attempts WHERE student_id = ? ORDER BY id DESC`, studentID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var attempts []model.Attempt
	for rows.Next() {
		var a model.Attempt
		if err := rows.Scan(&a.ID, &a.ExamID, &a.ExamTitle, &a.StudentID, &a.ResultID, &a.Score, &a.Automatic, &a.SubmittedAt); err != nil {
			return nil, err
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}

// AttemptCount returns the number of journaled attempts for a student on an exam.
func (s *Store) AttemptCount(studentID, examID int64) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM attempts WHERE student_id = ? AND exam_id = ?`, studentID, examID,
	).Scan(&count)
	return count, err
}
