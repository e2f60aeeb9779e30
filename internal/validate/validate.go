// Package validate runs the client-side form checks. Failures are reported as
// a ValidationError and never reach the backend.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/pavelanni/learny/internal/model"
)

// FieldError is a problem with one form field. Field uses the JSON name,
// with indexes for nested entries (questions[0].options[1].text).
type FieldError struct {
	Field   string
	Message string
}

// ValidationError collects every field problem of a form.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Has reports whether field has an error.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

func (e *ValidationError) add(field, msg string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: msg})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

const requiredText = "this field is required"

var (
	once       sync.Once
	validate   *validator.Validate
	translator ut.Translator
)

func instance() *validator.Validate {
	once.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())

		english := en.New()
		translator, _ = ut.New(english, english).GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(validate, translator)

		// Report JSON names instead of Go field names.
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		})
		registerTranslation("notblank", requiredText, false)
		registerTranslation("required", requiredText, true)
	})
	return validate
}

// registerTranslation sets the message for tag. The message carries no field
// name since FieldError.Field already names it.
func registerTranslation(tag, text string, override bool) {
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, override) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag)
			return s
		},
	)
}

// Struct validates v by its struct tags.
func Struct(v any) error {
	verr := &ValidationError{}
	collect(verr, instance().Struct(v))
	return verr.orNil()
}

func collect(verr *ValidationError, err error) {
	if err == nil {
		return
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.add("", err.Error())
		return
	}
	for _, fe := range fieldErrs {
		verr.add(fieldPath(fe), fe.Translate(translator))
	}
}

// fieldPath strips the root struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// Login checks the login form.
func Login(req model.LoginRequest) error {
	return Struct(req)
}

// Register checks the registration form.
func Register(req model.RegisterRequest) error {
	return Struct(req)
}

// ExamDraft checks an authored exam. Beyond the tag rules every question
// needs exactly one correct option and true/false questions exactly two.
func ExamDraft(d model.ExamDraft) error {
	verr := &ValidationError{}
	collect(verr, instance().Struct(d))

	for i, q := range d.Questions {
		prefix := fmt.Sprintf("questions[%d]", i)
		if q.Type == model.QuestionTrueFalse && len(q.Options) != 2 {
			verr.add(prefix+".options", "true/false questions need exactly 2 options")
		}
		correct := 0
		for _, o := range q.Options {
			if o.IsCorrect {
				correct++
			}
		}
		switch {
		case correct == 0:
			verr.add(prefix+".options", "mark the correct answer")
		case correct > 1:
			verr.add(prefix+".options", "only one option can be correct")
		}
	}
	return verr.orNil()
}
