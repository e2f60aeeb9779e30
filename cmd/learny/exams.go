package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/pavelanni/learny/internal/api"
	"github.com/pavelanni/learny/internal/model"
	"github.com/pavelanni/learny/internal/validate"
)

func coursesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "courses",
		Short: "List your courses",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd, gatePrivate)
			if err != nil {
				return err
			}
			defer a.Close()

			var courses []model.Course
			if all, _ := cmd.Flags().GetBool("all"); all {
				courses, err = a.client.ListCourses(a.ctx)
			} else {
				courses, err = a.myCourses(a.ctx)
			}
			if err != nil {
				return err
			}
			a.out.Courses(courses)
			return nil
		},
	}
	cmd.Flags().Bool("all", false, "List the whole course catalog")
	return cmd
}

// myCourses returns the courses a teacher gives or a student is enrolled in.
func (a *app) myCourses(ctx context.Context) ([]model.Course, error) {
	u := a.user()
	if u.IsTeacher() {
		return a.client.CoursesByTeacher(ctx, u.ID)
	}
	enrollments, err := a.client.EnrollmentsByStudent(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	courses := make([]model.Course, 0, len(enrollments))
	for _, e := range enrollments {
		courses = append(courses, e.Course)
	}
	return courses, nil
}

func examsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exams",
		Short: "List exams you can take (students) or have authored (teachers)",
		Args:  cobra.NoArgs,
		RunE:  runExams,
	}
	cmd.Flags().Int64("course", 0, "Only exams of this course")
	return cmd
}

func runExams(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, gatePrivate)
	if err != nil {
		return err
	}
	defer a.Close()

	courseID, _ := cmd.Flags().GetInt64("course")
	var exams []model.ExamSummary
	if a.user().IsTeacher() {
		exams, err = a.teacherExams(a.ctx, courseID)
	} else {
		exams, err = a.studentExams(a.ctx, courseID)
	}
	if err != nil {
		return err
	}
	a.out.Exams(exams)
	return nil
}

// teacherExams lists the exams of the teacher's own courses.
func (a *app) teacherExams(ctx context.Context, courseID int64) ([]model.ExamSummary, error) {
	if courseID != 0 {
		return a.client.ExamsByCourse(ctx, courseID)
	}
	all, err := a.client.ListExams(ctx)
	if err != nil {
		return nil, err
	}
	return ownedBy(all, a.user().ID), nil
}

func ownedBy(exams []model.ExamSummary, teacherID int64) []model.ExamSummary {
	out := make([]model.ExamSummary, 0, len(exams))
	for _, e := range exams {
		if e.TeacherID() == teacherID {
			out = append(out, e)
		}
	}
	return out
}

// studentExams lists the exams of every enrolled course, minus the ones the
// student has already completed.
func (a *app) studentExams(ctx context.Context, courseID int64) ([]model.ExamSummary, error) {
	u := a.user()
	courses, err := a.myCourses(ctx)
	if err != nil {
		return nil, err
	}
	results, err := a.client.ResultsByStudent(ctx, u.ID)
	if err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		exams []model.ExamSummary
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, c := range courses {
		if courseID != 0 && c.ID != courseID {
			continue
		}
		g.Go(func() error {
			list, err := a.client.ExamsByCourse(gctx, c.ID)
			if err != nil {
				return fmt.Errorf("exams of course %d: %w", c.ID, err)
			}
			mu.Lock()
			exams = append(exams, list...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pendingExams(exams, model.CompletedExamIDs(results)), nil
}

// pendingExams drops completed exams and duplicates, ordered by id.
func pendingExams(exams []model.ExamSummary, completed map[int64]bool) []model.ExamSummary {
	seen := make(map[int64]bool, len(exams))
	out := make([]model.ExamSummary, 0, len(exams))
	for _, e := range exams {
		if completed[e.ID] || seen[e.ID] {
			continue
		}
		seen[e.ID] = true
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func examCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish an exam from a JSON draft",
		Args:  cobra.NoArgs,
		RunE:  runExamCreate,
	}
	cmd.Flags().StringP("file", "f", "", "Exam draft JSON file (- for stdin)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func runExamCreate(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd, gatePrivate)
	if err != nil {
		return err
	}
	defer a.Close()
	if err := a.requireTeacher(); err != nil {
		return err
	}

	path, _ := cmd.Flags().GetString("file")
	draft, err := readDraft(cmd.InOrStdin(), path)
	if err != nil {
		return err
	}
	if err := validate.ExamDraft(draft); err != nil {
		return err
	}
	if err := a.client.CreateExam(a.ctx, draft); err != nil {
		return fmt.Errorf("create exam: %w", err)
	}
	a.out.Linef("ExamCreated", map[string]any{"Title": draft.Title})
	return nil
}

func readDraft(stdin io.Reader, path string) (model.ExamDraft, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return model.ExamDraft{}, fmt.Errorf("read draft: %w", err)
	}

	var draft model.ExamDraft
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&draft); err != nil {
		return model.ExamDraft{}, fmt.Errorf("parse draft %s: %w", path, err)
	}
	return draft, nil
}

func examShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show EXAM_ID",
		Short: "Show one exam",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			examID, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, gatePrivate)
			if err != nil {
				return err
			}
			defer a.Close()

			e, err := a.client.GetExam(a.ctx, examID)
			if err != nil {
				if isNotFound(err) {
					return fmt.Errorf("exam %d not found", examID)
				}
				return err
			}
			a.out.Exams([]model.ExamSummary{*e})
			return nil
		},
	}
}

func examResultsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "results EXAM_ID",
		Short: "List every student's result for an exam",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			examID, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, gatePrivate)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.requireTeacher(); err != nil {
				return err
			}

			results, err := a.client.ResultsByExam(a.ctx, examID)
			if err != nil {
				return err
			}
			a.out.Results(results, true)
			return nil
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// isNotFound reports whether the backend answered 404.
func isNotFound(err error) bool {
	return api.StatusCode(err) == 404
}
