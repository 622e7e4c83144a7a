package validator

import (
	"fmt"

	"github.com/SAP-F-2025/answer-sheet-service/internal/errors"
	"github.com/SAP-F-2025/answer-sheet-service/internal/sheet"
)

const maxQuestionsPerKind = 200

type (
	ValidationError  = errors.ValidationError
	ValidationErrors = errors.ValidationErrors
)

// ExamValidator checks question lists before they are stored
type ExamValidator struct{}

func NewExamValidator() *ExamValidator {
	return &ExamValidator{}
}

// ValidateQuestions checks kinds, indexes and, when requireKeys is set, the
// presence and shape of every answer key. Draft exams are validated with
// requireKeys false: missing keys are allowed there, malformed ones are not.
// With requireKeys set, fill-in-blank keys must also be reachable from a
// completed sheet.
func (v *ExamValidator) ValidateQuestions(questions []sheet.Question, requireKeys bool) ValidationErrors {
	var errs ValidationErrors
	seen := make(map[sheet.Key]bool, len(questions))
	perKind := make(map[sheet.Kind]int)

	for i, q := range questions {
		field := fmt.Sprintf("questions[%d]", i)

		if !q.Kind.Valid() {
			errs = append(errs, *errors.NewValidationErrorWithRule(field+".kind",
				"must be a valid question kind (multiple-choice, true-false, fill-in-blank)", "question_kind", q.Kind))
			continue
		}
		if q.Index < 1 {
			errs = append(errs, *errors.NewValidationErrorWithRule(field+".index", "must be at least 1", "min", q.Index))
			continue
		}
		if seen[q.Key()] {
			errs = append(errs, *errors.NewValidationErrorWithRule(field+".index",
				fmt.Sprintf("duplicate %s question %d", q.Kind, q.Index), "unique_index", q.Index))
			continue
		}
		seen[q.Key()] = true
		perKind[q.Kind]++

		if !q.HasAnswerKey() {
			if requireKeys {
				errs = append(errs, *errors.NewValidationErrorWithRule(field, "answer key is required", "required", nil))
			}
			continue
		}
		if err := v.validateKey(field, q); err != nil {
			errs = append(errs, *err)
			continue
		}
		if requireKeys && q.Kind == sheet.FillInBlank && !IsScorableNumeral(q.FillBlank.CorrectAnswer) {
			errs = append(errs, *errors.NewValidationErrorWithRule(field+".fill_blank.correct_answer",
				"must fill all 4 digit columns with no decimal comma to be scorable", "scorable_numeral", q.FillBlank.CorrectAnswer))
		}
	}

	for kind, n := range perKind {
		if n > maxQuestionsPerKind {
			errs = append(errs, *errors.NewValidationErrorWithRule("questions",
				fmt.Sprintf("at most %d %s questions are allowed", maxQuestionsPerKind, kind), "max", n))
		}
	}

	return errs
}

// ValidateKeyDensity checks that each kind's indexes run 1..n without gaps,
// which the printed sheet layout needs.
func (v *ExamValidator) ValidateKeyDensity(questions []sheet.Question) ValidationErrors {
	var errs ValidationErrors
	maxIndex := make(map[sheet.Kind]int)
	count := make(map[sheet.Kind]int)
	for _, q := range questions {
		count[q.Kind]++
		if q.Index > maxIndex[q.Kind] {
			maxIndex[q.Kind] = q.Index
		}
	}
	for _, kind := range sheet.Kinds {
		if maxIndex[kind] != count[kind] {
			errs = append(errs, *errors.NewValidationErrorWithRule("questions",
				fmt.Sprintf("%s questions must be numbered 1..%d without gaps", kind, count[kind]), "sequence", maxIndex[kind]))
		}
	}
	return errs
}

func (v *ExamValidator) validateKey(field string, q sheet.Question) *ValidationError {
	switch q.Kind {
	case sheet.MultipleChoice:
		if !contains(sheet.Options, q.MultipleChoice.CorrectAnswer) {
			return errors.NewValidationErrorWithRule(field+".multiple_choice.correct_answer",
				"must be one of A, B, C, D", "option_label", q.MultipleChoice.CorrectAnswer)
		}
	case sheet.TrueFalse:
		if len(q.TrueFalse.CorrectAnswers) != sheet.StatementCount {
			return errors.NewValidationErrorWithRule(field+".true_false.correct_answers",
				fmt.Sprintf("must have exactly %d values", sheet.StatementCount), "len", len(q.TrueFalse.CorrectAnswers))
		}
	case sheet.FillInBlank:
		if !IsCanonicalNumeral(q.FillBlank.CorrectAnswer) {
			return errors.NewValidationErrorWithRule(field+".fill_blank.correct_answer",
				"must be up to 4 digits with an optional leading minus and decimal comma", "canonical_numeral", q.FillBlank.CorrectAnswer)
		}
	}
	return nil
}
