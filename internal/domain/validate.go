package domain

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidPayload  = errors.New("domain: invalid generated payload")
	ErrInvalidQuestion = errors.New("domain: invalid practice question")
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		q := sl.Current().Interface().(GeneratedQuestion)
		questionRules(sl, q.Level, q.Kind, q.Options, q.CorrectAnswer, q.Rubric)
	}, GeneratedQuestion{})
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		q := sl.Current().Interface().(PracticeQuestion)
		questionRules(sl, q.Level, q.Kind, q.Options, q.CorrectAnswer, q.Rubric)
	}, PracticeQuestion{})
	return v
}

// questionRules holds the invariants shared by generated and stored questions:
// a known bloom level, and for multiple choice a non-empty option list that
// contains the correct answer.
func questionRules(sl validator.StructLevel, level BloomLevel, kind QuestionKind, options []string, correct, rubric string) {
	if !level.IsValid() {
		sl.ReportError(level, "bloom_level", "Level", "bloom_level", "")
	}
	switch kind {
	case MultipleChoice:
		if len(options) == 0 {
			sl.ReportError(options, "options", "Options", "required", "")
		} else if !slices.Contains(options, correct) {
			sl.ReportError(correct, "correct_answer", "CorrectAnswer", "in_options", "")
		}
	case OpenEnded:
		if strings.TrimSpace(rubric) == "" {
			sl.ReportError(rubric, "rubric", "Rubric", "required", "")
		}
	default:
		sl.ReportError(kind, "question_type", "Kind", "question_type", "")
	}
}

// ValidatePayload checks a generated payload before anything downstream trusts it.
func ValidatePayload(p *GeneratedPayload) error {
	if p == nil {
		return fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}

// ValidateQuestion checks a single stored question.
func ValidateQuestion(q PracticeQuestion) error {
	if err := validate.Struct(q); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidQuestion, err)
	}
	return nil
}

// Var validates a single value against a validator tag, e.g. "min=1,max=5".
func Var(field any, tag string) error {
	return validate.Var(field, tag)
}
