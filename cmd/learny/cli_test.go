package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pavelanni/learny/internal/exam"
	appI18n "github.com/pavelanni/learny/internal/i18n"
	"github.com/pavelanni/learny/internal/model"
	"github.com/pavelanni/learny/internal/session"
	"github.com/pavelanni/learny/internal/store"
	"github.com/pavelanni/learny/internal/view"
)

var student = model.User{ID: 7, UserName: "ada", NameSurname: "Ada Lovelace", Role: model.UserRoleStudent}

type fakeBackend struct {
	mu       sync.Mutex
	minutes  int
	subs     []model.ExamSubmission
	auth     model.AuthResponse
	password string
}

func (b *fakeBackend) submissions() []model.ExamSubmission {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.ExamSubmission(nil), b.subs...)
}

func (b *fakeBackend) start(t *testing.T) string {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/api/exams/{id}/full", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, model.ExamDefinition{
			ID:              3,
			Title:           "Midterm",
			DurationMinutes: b.minutes,
			Questions: []model.Question{{
				ID:      10,
				Text:    "2 + 2 = ?",
				Type:    model.QuestionMultipleChoice,
				Options: []model.Option{{ID: 11, Text: "4"}, {ID: 12, Text: "5"}},
			}},
		})
	})
	r.Post("/api/exams/submit", func(w http.ResponseWriter, r *http.Request) {
		var sub model.ExamSubmission
		if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		b.mu.Lock()
		b.subs = append(b.subs, sub)
		b.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]any{
			"resultId": 500, "examId": 3, "examTitle": "Midterm", "score": 100,
			"totalQuestions": 1, "correctAnswers": 1,
			"questionResults": []any{map[string]any{"questionId": 10, "questionText": "2 + 2 = ?", "correct": true, "studentAnswer": "4"}},
		})
	})
	authHandler := func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Password != b.password {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "bad credentials"})
			return
		}
		writeJSON(w, http.StatusOK, b.auth)
	}
	r.Post("/api/auth/login", authHandler)
	r.Post("/api/auth/register", authHandler)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv.URL + "/api"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// newDB returns a database path, holding a student session when loggedIn.
func newDB(t *testing.T, loggedIn bool) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "learny.db")
	db, err := store.New(path)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	defer db.Close()
	sess := session.New(db)
	if err := sess.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if loggedIn {
		u := student
		if err := sess.Login(model.AuthResponse{Token: "tok", User: &u, Role: u.Role}); err != nil {
			t.Fatalf("Login: %v", err)
		}
	}
	return path
}

func loadSession(t *testing.T, path string) *session.Store {
	t.Helper()
	db, err := store.New(path)
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	sess := session.New(db)
	if err := sess.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return sess
}

// syncBuffer lets a test read output while a command is still writing it.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func execCLI(stdin io.Reader, out io.Writer, args ...string) error {
	cmd := rootCmd()
	cmd.SetArgs(append(args, "--lang", "en"))
	cmd.SetIn(stdin)
	cmd.SetOut(out)
	cmd.SetErr(out)
	return cmd.Execute()
}

func runCLI(t *testing.T, stdin io.Reader, args ...string) (string, error) {
	t.Helper()
	var out syncBuffer
	err := execCLI(stdin, &out, args...)
	return out.String(), err
}

type chanTicker chan time.Time

func (c chanTicker) C() <-chan time.Time { return c }
func (c chanTicker) Stop()               {}

// useTicks makes the exam countdown deliver n ticks at once and then stall.
func useTicks(t *testing.T, n int) {
	t.Helper()
	orig := newExamTicker
	newExamTicker = func(time.Duration) exam.Ticker {
		ch := make(chanTicker, n)
		for i := 0; i < n; i++ {
			ch <- time.Now()
		}
		return ch
	}
	t.Cleanup(func() { newExamTicker = orig })
}

// useTickerChan makes the exam countdown tick whenever the test sends on ch.
func useTickerChan(t *testing.T, ch chanTicker) {
	t.Helper()
	orig := newExamTicker
	newExamTicker = func(time.Duration) exam.Ticker { return ch }
	t.Cleanup(func() { newExamTicker = orig })
}

func usePassword(t *testing.T, password string) {
	t.Helper()
	origRead, origTerm := readPasswordFunc, stdinIsTerminal
	readPasswordFunc = func(int) ([]byte, error) { return []byte(password), nil }
	stdinIsTerminal = func() bool { return true }
	t.Cleanup(func() { readPasswordFunc, stdinIsTerminal = origRead, origTerm })
}

func TestTakeSubmitsAfterConfirmation(t *testing.T) {
	useTicks(t, 0)
	b := &fakeBackend{minutes: 10}
	url := b.start(t)

	out, err := runCLI(t, strings.NewReader("1\ns\ny\n"), "take", "3", "--db", newDB(t, true), "--api-url", url)
	if err != nil {
		t.Fatalf("take: %v\n%s", err, out)
	}
	for _, want := range []string{"Submit the exam? 0 of 1", "Result: Midterm", "PASSED"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	subs := b.submissions()
	if len(subs) != 1 {
		t.Fatalf("submissions = %d, want 1", len(subs))
	}
	if a := subs[0].Answers; len(a) != 1 || len(a[0].SelectedOptionIDs) != 1 || a[0].SelectedOptionIDs[0] != 11 {
		t.Errorf("answers = %+v, want option 11", a)
	}
}

func TestTakeAbandoned(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"quit confirmed", "1\nq\ny\n"},
		{"input ends", "1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			useTicks(t, 0)
			b := &fakeBackend{minutes: 10}
			url := b.start(t)

			out, err := runCLI(t, strings.NewReader(tt.input), "take", "3", "--db", newDB(t, true), "--api-url", url)
			if !errors.Is(err, errAbandoned) {
				t.Fatalf("take = %v, want errAbandoned\n%s", err, out)
			}
			if n := len(b.submissions()); n != 0 {
				t.Errorf("submissions = %d, want 0", n)
			}
		})
	}
}

func TestTakeSubmitsWhenTimeRunsOut(t *testing.T) {
	useTicks(t, 60)
	b := &fakeBackend{minutes: 1}
	url := b.start(t)

	// Input that never arrives keeps the loop waiting on the countdown.
	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })

	out, err := runCLI(t, pr, "take", "3", "--db", newDB(t, true), "--api-url", url)
	if err != nil {
		t.Fatalf("take: %v\n%s", err, out)
	}
	if strings.Count(out, "Time is up") != 1 {
		t.Errorf("time-up notice not shown exactly once:\n%s", out)
	}
	if !strings.Contains(out, "Submitted automatically") {
		t.Errorf("output missing automatic note:\n%s", out)
	}
	if n := len(b.submissions()); n != 1 {
		t.Errorf("submissions = %d, want 1", n)
	}
}

func TestTakeTimeRunsOutDuringConfirmation(t *testing.T) {
	ticks := make(chanTicker)
	useTickerChan(t, ticks)
	b := &fakeBackend{minutes: 1}
	url := b.start(t)

	pr, pw := io.Pipe()
	t.Cleanup(func() { pw.Close() })
	var out syncBuffer
	errc := make(chan error, 1)
	go func() {
		errc <- execCLI(pr, &out, "take", "3", "--db", newDB(t, true), "--api-url", url)
	}()

	if _, err := io.WriteString(pw, "s\n"); err != nil {
		t.Fatalf("write input: %v", err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), "Submit the exam?") {
		if time.Now().After(deadline) {
			t.Fatalf("confirmation prompt not shown:\n%s", out.String())
		}
		time.Sleep(5 * time.Millisecond)
	}
	for i := 0; i < 60; i++ {
		select {
		case ticks <- time.Now():
		case <-time.After(time.Second):
			t.Fatalf("tick %d not accepted", i)
		}
	}

	select {
	case err := <-errc:
		if err != nil {
			t.Fatalf("take: %v\n%s", err, out.String())
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("take still waiting on the prompt:\n%s", out.String())
	}
	got := out.String()
	for _, want := range []string{"Time is up", "Submitted automatically", "Result: Midterm"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Submission cancelled") {
		t.Errorf("automatic submission reported as cancelled:\n%s", got)
	}
	if n := len(b.submissions()); n != 1 {
		t.Errorf("submissions = %d, want 1", n)
	}
}

func TestRegister(t *testing.T) {
	tests := []struct {
		name     string
		auth     model.AuthResponse
		wantAuth bool
		wantOut  string
	}{
		{
			name:     "backend signs in",
			auth:     model.AuthResponse{Token: "tok-new", User: &student, Role: model.UserRoleStudent},
			wantAuth: true,
			wantOut:  "Welcome, Ada Lovelace!",
		},
		{
			name:    "account only",
			auth:    model.AuthResponse{Message: "created"},
			wantOut: "Account created",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usePassword(t, "secret1")
			b := &fakeBackend{auth: tt.auth, password: "secret1"}
			url := b.start(t)
			db := newDB(t, false)

			out, err := runCLI(t, strings.NewReader(""), "register",
				"--username", "ada", "--name", "Ada Lovelace", "--email", "ada@example.com",
				"--db", db, "--api-url", url)
			if err != nil {
				t.Fatalf("register: %v\n%s", err, out)
			}
			if !strings.Contains(out, tt.wantOut) {
				t.Errorf("output = %q, want %q", out, tt.wantOut)
			}
			sess := loadSession(t, db)
			if sess.Authenticated() != tt.wantAuth {
				t.Errorf("authenticated = %v, want %v", sess.Authenticated(), tt.wantAuth)
			}
			if tt.wantAuth && sess.Token() != "tok-new" {
				t.Errorf("token = %q", sess.Token())
			}
		})
	}
}

func TestLoginReadsHiddenPassword(t *testing.T) {
	usePassword(t, "secret1")
	b := &fakeBackend{
		auth:     model.AuthResponse{Token: "tok-login", User: &student, Role: model.UserRoleStudent},
		password: "secret1",
	}
	url := b.start(t)
	db := newDB(t, false)

	out, err := runCLI(t, strings.NewReader(""), "login", "--email", "ada@example.com", "--db", db, "--api-url", url)
	if err != nil {
		t.Fatalf("login: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Password: ") || !strings.Contains(out, "Welcome, Ada Lovelace!") {
		t.Errorf("output = %q", out)
	}
	if sess := loadSession(t, db); sess.Token() != "tok-login" || sess.User().ID != 7 {
		t.Errorf("session not persisted: token %q", sess.Token())
	}

	out, err = runCLI(t, strings.NewReader(""), "login", "--email", "ada@example.com", "--db", db, "--api-url", url)
	if err != nil || !strings.Contains(out, "Already logged in as Ada Lovelace") {
		t.Errorf("second login = %v, %q", err, out)
	}
}

func TestPrivateCommandNeedsSession(t *testing.T) {
	b := &fakeBackend{minutes: 10}
	url := b.start(t)

	_, err := runCLI(t, strings.NewReader(""), "take", "3", "--db", newDB(t, false), "--api-url", url)
	if !errors.Is(err, errLoginRequired) {
		t.Errorf("take without session = %v, want errLoginRequired", err)
	}
}

func TestAdmitGateDecisions(t *testing.T) {
	lang, err := appI18n.Init("en")
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	ctx := appI18n.Context(context.Background(), lang)

	tests := []struct {
		decision session.Decision
		wantApp  bool
		wantErr  error
		wantOut  string
	}{
		{session.Render, true, nil, ""},
		{session.RedirectHome, false, nil, "Already logged in as Ada Lovelace."},
		{session.Loading, false, errReported, "Session is still loading"},
		{session.RedirectLogin, false, errLoginRequired, ""},
	}
	for _, tt := range tests {
		t.Run(tt.decision.String(), func(t *testing.T) {
			sess := loadSession(t, newDB(t, true))
			db, err := store.New(":memory:")
			if err != nil {
				t.Fatalf("store.New: %v", err)
			}
			t.Cleanup(func() { db.Close() })
			var buf bytes.Buffer
			a := &app{ctx: ctx, db: db, sess: sess, out: view.New(ctx, &buf, false), w: &buf}

			got, err := a.admit(tt.decision)
			if (got != nil) != tt.wantApp {
				t.Errorf("app returned = %v, want %v", got != nil, tt.wantApp)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
			if !strings.Contains(buf.String(), tt.wantOut) {
				t.Errorf("output = %q, want %q", buf.String(), tt.wantOut)
			}
		})
	}
}
