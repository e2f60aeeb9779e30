package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/learny/internal/model"
)

type fakeSession struct {
	mu      sync.Mutex
	token   string
	cleared int
}

func (s *fakeSession) Token() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *fakeSession) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.cleared++
	return nil
}

func newTestClient(t *testing.T, r chi.Router, sess Session) *Client {
	t.Helper()
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return New(srv.URL+"/api", WithSession(sess), WithLanguage("tr"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestRequestHookSetsHeaders(t *testing.T) {
	var got http.Header
	r := chi.NewRouter()
	r.Get("/api/auth/validate", func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	})

	c := newTestClient(t, r, &fakeSession{token: "tok"})
	if err := c.Validate(context.Background()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got.Get("Authorization") != "Bearer tok" {
		t.Errorf("Authorization = %q", got.Get("Authorization"))
	}
	if got.Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID")
	}
	if got.Get("Accept-Language") != "tr" {
		t.Errorf("Accept-Language = %q", got.Get("Accept-Language"))
	}
}

func TestNoAuthorizationWithoutToken(t *testing.T) {
	var auth string
	r := chi.NewRouter()
	r.Get("/api/exams", func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, []any{})
	})

	c := newTestClient(t, r, &fakeSession{})
	if _, err := c.ListExams(context.Background()); err != nil {
		t.Fatalf("ListExams: %v", err)
	}
	if auth != "" {
		t.Errorf("expected no Authorization header, got %q", auth)
	}
}

func TestUnauthorizedClearsSession(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/results/student/{id}", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "token expired"})
	})

	sess := &fakeSession{token: "tok"}
	c := newTestClient(t, r, sess)
	_, err := c.ResultsByStudent(context.Background(), 1)
	if !IsAuth(err) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if !strings.Contains(err.Error(), "token expired") {
		t.Errorf("expected backend message in error, got %q", err.Error())
	}
	if sess.cleared != 1 || sess.Token() != "" {
		t.Errorf("expected session cleared once, got cleared=%d token=%q", sess.cleared, sess.Token())
	}
	if StatusCode(err) != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d", StatusCode(err))
	}
}

func TestStatusErrorMessages(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{"error field", http.StatusBadRequest, `{"error":"bad exam"}`, "bad exam"},
		{"message field", http.StatusNotFound, `{"message":"not found"}`, "not found"},
		{"plain text", http.StatusBadRequest, `Exam already submitted`, "Exam already submitted"},
		{"html", http.StatusBadGateway, `<html>oops</html>`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := chi.NewRouter()
			r.Get("/api/exams/{id}", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			sess := &fakeSession{token: "tok"}
			c := newTestClient(t, r, sess)

			_, err := c.GetExam(context.Background(), 3)
			var se *StatusError
			if !errors.As(err, &se) {
				t.Fatalf("expected StatusError, got %v", err)
			}
			if se.Status != tt.status || se.Message != tt.wantMsg {
				t.Errorf("got status=%d msg=%q, want %d %q", se.Status, se.Message, tt.status, tt.wantMsg)
			}
			if sess.cleared != 0 {
				t.Errorf("non-401 must not clear the session")
			}
		})
	}
}

func TestLoadExam(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/exams/{id}/full", func(w http.ResponseWriter, r *http.Request) {
		switch chi.URLParam(r, "id") {
		case "1":
			writeJSON(w, http.StatusOK, map[string]any{
				"examId": 1, "title": "Go", "durationMinutes": 10,
				"questions": []any{
					map[string]any{"questionId": 11, "text": "Q1", "type": "CoktanSecmeli",
						"options": []any{map[string]any{"optionId": 111, "text": "A"}}},
					map[string]any{"questionId": 12, "text": "Q2", "type": "DogruYanlis"},
				},
			})
		case "2":
			writeJSON(w, http.StatusOK, map[string]any{"examId": 2, "title": "Empty", "questions": []any{}})
		default:
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Sınav bulunamadı"})
		}
	})
	c := newTestClient(t, r, &fakeSession{token: "tok"})

	exam, err := c.LoadExam(context.Background(), 1)
	if err != nil {
		t.Fatalf("LoadExam: %v", err)
	}
	if len(exam.Questions) != 2 || exam.DurationMinutes != 10 {
		t.Fatalf("unexpected exam: %+v", exam)
	}
	if exam.Questions[1].Options == nil {
		t.Error("expected missing options normalized to empty slice")
	}

	if _, err := c.LoadExam(context.Background(), 2); !errors.Is(err, ErrNoQuestions) {
		t.Errorf("expected ErrNoQuestions, got %v", err)
	}
	if _, err := c.LoadExam(context.Background(), 3); StatusCode(err) != http.StatusNotFound {
		t.Errorf("expected 404, got %v", err)
	}
}

func TestSubmitExamRoundTrip(t *testing.T) {
	var got model.ExamSubmission
	r := chi.NewRouter()
	r.Post("/api/exams/submit", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"resultId": 99, "score": 50.0, "totalQuestions": 2, "correctAnswers": 1, "emptyAnswers": 1,
			"questionResults": []any{
				map[string]any{"questionId": 1, "isCorrect": true, "studentAnswer": "A"},
				map[string]any{"questionId": 2, "correct": false, "studentAnswer": nil},
			},
		})
	})
	c := newTestClient(t, r, &fakeSession{token: "tok"})

	sub := model.ExamSubmission{ExamID: 4, StudentID: 7, Answers: []model.Answer{
		{QuestionID: 1, SelectedOptionIDs: []int64{10}},
		{QuestionID: 2, SelectedOptionIDs: []int64{}},
	}}
	res, err := c.SubmitExam(context.Background(), sub)
	if err != nil {
		t.Fatalf("SubmitExam: %v", err)
	}
	if got.ExamID != 4 || got.StudentID != 7 || len(got.Answers) != 2 {
		t.Errorf("backend received %+v", got)
	}
	if res.ResultID != 99 || res.Score.Float() != 50 {
		t.Errorf("unexpected result: %+v", res)
	}
	if !res.QuestionResults[0].Correct || res.QuestionResults[1].Correct {
		t.Errorf("unexpected correctness flags: %+v", res.QuestionResults)
	}
	if res.QuestionResults[1].StudentAnswer != nil {
		t.Errorf("expected nil student answer")
	}
}

func TestEmptyBodyIsAnError(t *testing.T) {
	for _, body := range []string{"", "  \n", "null"} {
		t.Run(strings.TrimSpace(body), func(t *testing.T) {
			r := chi.NewRouter()
			r.Post("/api/exams/submit", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
				_, _ = w.Write([]byte(body))
			})
			r.Post("/api/exams/create", func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
			})
			c := newTestClient(t, r, &fakeSession{token: "tok"})

			res, err := c.SubmitExam(context.Background(), model.ExamSubmission{ExamID: 4})
			if !errors.Is(err, ErrEmptyResponse) {
				t.Fatalf("SubmitExam = %+v, %v; want ErrEmptyResponse", res, err)
			}
			if res != nil {
				t.Errorf("result = %+v, want nil", res)
			}
			if err := c.CreateExam(context.Background(), model.ExamDraft{Title: "Quiz"}); err != nil {
				t.Errorf("CreateExam with empty body: %v", err)
			}
		})
	}
}

func TestLogoutClearsEvenOnFailure(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	sess := &fakeSession{token: "tok"}
	c := newTestClient(t, r, sess)

	if err := c.Logout(context.Background()); err == nil {
		t.Fatal("expected backend error to be returned")
	}
	if sess.Token() != "" || sess.cleared != 1 {
		t.Errorf("expected local session cleared, got cleared=%d", sess.cleared)
	}
}

func TestLoginDecodesAuthResponse(t *testing.T) {
	r := chi.NewRouter()
	r.Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var req model.LoginRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Email != "ada@example.com" || req.Password != "secret" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Geçersiz email veya şifre"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"token": "jwt", "role": "Ogrenci", "message": "ok",
			"user": map[string]any{"id": 7, "userName": "ada", "nameSurname": "Ada Lovelace"},
		})
	})
	c := newTestClient(t, r, &fakeSession{})

	resp, err := c.Login(context.Background(), model.LoginRequest{Email: "ada@example.com", Password: "secret"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.Token != "jwt" || resp.Role != model.UserRoleStudent || resp.User.ID != 7 {
		t.Errorf("unexpected response: %+v", resp)
	}

	_, err = c.Login(context.Background(), model.LoginRequest{Email: "ada@example.com", Password: "nope"})
	if !IsAuth(err) {
		t.Errorf("expected AuthError for bad credentials, got %v", err)
	}
}

func TestListingsNormalizeShapes(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/api/results/exam/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"exam":{"id":5},"student":{"id":2,"userName":"bob"},"score":"64.5"},
			{"resultId":2,"examId":5,"studentId":3,"score":90}]`))
	})
	r.Get("/api/enrollments/student/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"id":1,"course":{"id":3,"code":"CS101","name":"Intro"}}]`))
	})
	c := newTestClient(t, r, &fakeSession{token: "tok"})

	results, err := c.ResultsByExam(context.Background(), 5)
	if err != nil {
		t.Fatalf("ResultsByExam: %v", err)
	}
	if len(results) != 2 || results[0].ExamID != 5 || results[0].StudentName != "bob" || results[1].ID != 2 {
		t.Errorf("unexpected results: %+v", results)
	}
	if results[0].Score.Float() != 64.5 {
		t.Errorf("Score = %v", results[0].Score)
	}

	enrollments, err := c.EnrollmentsByStudent(context.Background(), 2)
	if err != nil {
		t.Fatalf("EnrollmentsByStudent: %v", err)
	}
	if len(enrollments) != 1 || enrollments[0].Course.Code != "CS101" {
		t.Errorf("unexpected enrollments: %+v", enrollments)
	}
}

func TestUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(url)
	_, err := c.ListCourses(context.Background())
	if err == nil {
		t.Fatal("expected transport error")
	}
	if IsAuth(err) || StatusCode(err) != 0 {
		t.Errorf("transport error misclassified: %v", err)
	}
}
