package model

import (
	"encoding/json"
	"time"
)

// UserRole is the role string the backend assigns to an account.
type UserRole string

const (
	// UserRoleTeacher is a teacher account ("Ogretmen" on the wire).
	UserRoleTeacher UserRole = "Ogretmen"
	// UserRoleStudent is a student account ("Ogrenci" on the wire).
	UserRoleStudent UserRole = "Ogrenci"
)

// Valid reports whether r is one of the known roles.
func (r UserRole) Valid() bool {
	return r == UserRoleTeacher || r == UserRoleStudent
}

// User is the minimal profile returned by the backend at login.
type User struct {
	ID          int64    `json:"id"`
	UserName    string   `json:"userName"`
	NameSurname string   `json:"nameSurname"`
	Mail        string   `json:"mail"`
	Role        UserRole `json:"role,omitempty"`
}

// DisplayName returns the full name when known, falling back to the user name.
func (u User) DisplayName() string {
	if u.NameSurname != "" {
		return u.NameSurname
	}
	return u.UserName
}

// IsTeacher reports whether the user has the teacher role.
func (u User) IsTeacher() bool { return u.Role == UserRoleTeacher }

// Course is a course offered by a teacher.
type Course struct {
	ID      int64  `json:"id"`
	Code    string `json:"code"`
	Name    string `json:"name"`
	Teacher *User  `json:"teacher,omitempty"`
}

// Enrollment associates a student with a course.
type Enrollment struct {
	ID      int64  `json:"id"`
	Student *User  `json:"student,omitempty"`
	Course  Course `json:"course"`
}

// QuestionType distinguishes the single-choice question variants.
type QuestionType string

const (
	QuestionMultipleChoice QuestionType = "CoktanSecmeli"
	QuestionTrueFalse      QuestionType = "DogruYanlis"
)

// Valid reports whether t is a known question type.
func (t QuestionType) Valid() bool {
	return t == QuestionMultipleChoice || t == QuestionTrueFalse
}

// Option is one selectable answer of a question.
type Option struct {
	ID   int64  `json:"optionId"`
	Text string `json:"text"`
}

// Question is a question of an exam definition, with its ordered options.
type Question struct {
	ID      int64        `json:"questionId"`
	Text    string       `json:"text"`
	Type    QuestionType `json:"type"`
	Options []Option     `json:"options"`
}

// HasOption reports whether optionID belongs to the question.
func (q Question) HasOption(optionID int64) bool {
	for _, o := range q.Options {
		if o.ID == optionID {
			return true
		}
	}
	return false
}

// ExamDefinition is the full question/option structure of an exam as served
// by GET /exams/{id}/full. It is immutable once loaded into an attempt.
type ExamDefinition struct {
	ID              int64      `json:"examId"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	DurationMinutes int        `json:"durationMinutes"`
	CreatedAt       Timestamp  `json:"createdAt"`
	CourseID        int64      `json:"courseId"`
	CourseName      string     `json:"courseName"`
	Questions       []Question `json:"questions"`
}

// Question returns the question with the given id.
func (e ExamDefinition) Question(id int64) (Question, bool) {
	for _, q := range e.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// ExamSummary is an exam listing entry (GET /exams, GET /exams/course/{id}).
type ExamSummary struct {
	ID              int64     `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	DurationMinutes int       `json:"durationMinutes"`
	CreatedAt       Timestamp `json:"createdAt"`
	Course          *Course   `json:"course,omitempty"`
}

// UnmarshalJSON accepts both the entity shape (id) and the DTO shape (examId).
func (e *ExamSummary) UnmarshalJSON(data []byte) error {
	type plain ExamSummary
	var aux struct {
		plain
		ExamID int64 `json:"examId"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*e = ExamSummary(aux.plain)
	if e.ID == 0 {
		e.ID = aux.ExamID
	}
	return nil
}

// TeacherID returns the id of the teacher owning the exam's course, or 0.
func (e ExamSummary) TeacherID() int64 {
	if e.Course == nil || e.Course.Teacher == nil {
		return 0
	}
	return e.Course.Teacher.ID
}

// AnswerState maps a question id to its selected option ids. The list shape
// mirrors the wire format; the controller keeps at most one entry per list.
type AnswerState map[int64][]int64

// NewAnswerState returns an answer state with an empty entry per question.
func NewAnswerState(questions []Question) AnswerState {
	a := make(AnswerState, len(questions))
	for _, q := range questions {
		a[q.ID] = []int64{}
	}
	return a
}

// Answered reports whether the question has a selection.
func (a AnswerState) Answered(questionID int64) bool {
	return len(a[questionID]) > 0
}

// Selected reports whether optionID is selected for questionID.
func (a AnswerState) Selected(questionID, optionID int64) bool {
	for _, id := range a[questionID] {
		if id == optionID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy.
func (a AnswerState) Clone() AnswerState {
	c := make(AnswerState, len(a))
	for k, v := range a {
		c[k] = append([]int64{}, v...)
	}
	return c
}

// Answer is one question's entry in a submission.
type Answer struct {
	QuestionID        int64   `json:"questionId"`
	SelectedOptionIDs []int64 `json:"selectedOptionIds"`
}

// ExamSubmission is the body of POST /exams/submit.
type ExamSubmission struct {
	ExamID    int64    `json:"examId"`
	StudentID int64    `json:"studentId"`
	Answers   []Answer `json:"answers"`
}

// NewSubmission converts answers into the ordered wire list, following the
// exam's question order.
func NewSubmission(exam ExamDefinition, studentID int64, answers AnswerState) ExamSubmission {
	sub := ExamSubmission{
		ExamID:    exam.ID,
		StudentID: studentID,
		Answers:   make([]Answer, 0, len(exam.Questions)),
	}
	for _, q := range exam.Questions {
		selected := append([]int64{}, answers[q.ID]...)
		sub.Answers = append(sub.Answers, Answer{QuestionID: q.ID, SelectedOptionIDs: selected})
	}
	return sub
}

// OptionDraft is an option of an exam being authored.
type OptionDraft struct {
	Text      string `json:"text" validate:"required,notblank"`
	IsCorrect bool   `json:"isCorrect"`
}

// QuestionDraft is a question of an exam being authored.
type QuestionDraft struct {
	Text    string        `json:"text" validate:"required,notblank"`
	Type    QuestionType  `json:"type" validate:"required,oneof=CoktanSecmeli DogruYanlis"`
	Options []OptionDraft `json:"options" validate:"min=2,max=6,dive"`
}

// ExamDraft is the body of POST /exams/create.
type ExamDraft struct {
	Title           string          `json:"title" validate:"required,notblank"`
	Description     string          `json:"description,omitempty"`
	DurationMinutes int             `json:"durationMinutes" validate:"min=1"`
	CourseID        int64           `json:"courseId" validate:"gt=0"`
	Questions       []QuestionDraft `json:"questions" validate:"min=1,dive"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the body of POST /auth/register. ConfirmPassword is a
// form-only field and is never sent.
type RegisterRequest struct {
	UserName        string   `json:"userName" validate:"required,min=3,max=50"`
	NameSurname     string   `json:"nameSurname" validate:"required,notblank"`
	Mail            string   `json:"mail" validate:"required,email"`
	Password        string   `json:"password" validate:"required,min=6"`
	ConfirmPassword string   `json:"-" validate:"required,eqfield=Password"`
	Role            UserRole `json:"role" validate:"required,oneof=Ogretmen Ogrenci"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	Token   string   `json:"token"`
	User    *User    `json:"user"`
	Role    UserRole `json:"role"`
	Message string   `json:"message"`
}

// Config holds runtime client parameters set via flags, env or config file.
type Config struct {
	APIURL  string
	Timeout time.Duration
	DBPath  string
	Lang    string
}
