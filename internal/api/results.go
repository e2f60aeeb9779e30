package api

import (
	"context"
	"fmt"

	"github.com/pavelanni/learny/internal/model"
)

// GetResult returns one scored result.
func (c *Client) GetResult(ctx context.Context, id int64) (*model.ScoredResult, error) {
	var result model.ScoredResult
	if err := c.get(ctx, fmt.Sprintf("/results/%d", id), &result); err != nil {
		return nil, err
	}
	result.Normalize()
	if result.ResultID == 0 {
		result.ResultID = id
	}
	return &result, nil
}

// ResultsByStudent returns a student's results.
func (c *Client) ResultsByStudent(ctx context.Context, studentID int64) ([]model.ResultSummary, error) {
	var results []model.ResultSummary
	if err := c.get(ctx, fmt.Sprintf("/results/student/%d", studentID), &results); err != nil {
		return nil, err
	}
	return results, nil
}

// ResultsByExam returns all results of an exam.
func (c *Client) ResultsByExam(ctx context.Context, examID int64) ([]model.ResultSummary, error) {
	var results []model.ResultSummary
	if err := c.get(ctx, fmt.Sprintf("/results/exam/%d", examID), &results); err != nil {
		return nil, err
	}
	return results, nil
}
