package api

import (
	"context"
	"fmt"

	"github.com/pavelanni/learny/internal/model"
)

// ListExams returns all exams.
func (c *Client) ListExams(ctx context.Context) ([]model.ExamSummary, error) {
	var exams []model.ExamSummary
	if err := c.get(ctx, "/exams", &exams); err != nil {
		return nil, err
	}
	return exams, nil
}

// GetExam returns one exam listing entry.
func (c *Client) GetExam(ctx context.Context, id int64) (*model.ExamSummary, error) {
	var exam model.ExamSummary
	if err := c.get(ctx, fmt.Sprintf("/exams/%d", id), &exam); err != nil {
		return nil, err
	}
	return &exam, nil
}

// ExamsByCourse returns the exams of a course.
func (c *Client) ExamsByCourse(ctx context.Context, courseID int64) ([]model.ExamSummary, error) {
	var exams []model.ExamSummary
	if err := c.get(ctx, fmt.Sprintf("/exams/course/%d", courseID), &exams); err != nil {
		return nil, err
	}
	return exams, nil
}

// LoadExam fetches the full definition of an exam. A definition without
// questions is rejected here so callers never see one.
func (c *Client) LoadExam(ctx context.Context, id int64) (*model.ExamDefinition, error) {
	var exam model.ExamDefinition
	if err := c.get(ctx, fmt.Sprintf("/exams/%d/full", id), &exam); err != nil {
		return nil, err
	}
	if len(exam.Questions) == 0 {
		return nil, ErrNoQuestions
	}
	if exam.ID == 0 {
		exam.ID = id
	}
	for i := range exam.Questions {
		if exam.Questions[i].Options == nil {
			exam.Questions[i].Options = []model.Option{}
		}
	}
	return &exam, nil
}

// SubmitExam posts an attempt and returns the backend's scoring.
func (c *Client) SubmitExam(ctx context.Context, sub model.ExamSubmission) (*model.ScoredResult, error) {
	var result model.ScoredResult
	if err := c.post(ctx, "/exams/submit", sub, &result); err != nil {
		return nil, err
	}
	result.Normalize()
	return &result, nil
}

// CreateExam publishes an authored exam.
func (c *Client) CreateExam(ctx context.Context, draft model.ExamDraft) error {
	return c.post(ctx, "/exams/create", draft, nil)
}
