package api

import (
	"context"
	"fmt"

	"github.com/pavelanni/learny/internal/model"
)

// ListCourses returns all courses.
func (c *Client) ListCourses(ctx context.Context) ([]model.Course, error) {
	var courses []model.Course
	if err := c.get(ctx, "/courses", &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// CoursesByTeacher returns the courses a teacher owns.
func (c *Client) CoursesByTeacher(ctx context.Context, teacherID int64) ([]model.Course, error) {
	var courses []model.Course
	if err := c.get(ctx, fmt.Sprintf("/courses/teacher/%d", teacherID), &courses); err != nil {
		return nil, err
	}
	return courses, nil
}

// EnrollmentsByStudent returns a student's enrollments.
func (c *Client) EnrollmentsByStudent(ctx context.Context, studentID int64) ([]model.Enrollment, error) {
	var enrollments []model.Enrollment
	if err := c.get(ctx, fmt.Sprintf("/enrollments/student/%d", studentID), &enrollments); err != nil {
		return nil, err
	}
	return enrollments, nil
}
