package validator

import (
	"reflect"
	"regexp"
	"strings"

	"github.com/SAP-F-2025/answer-sheet-service/internal/errors"
	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
	"github.com/SAP-F-2025/answer-sheet-service/internal/sheet"
	"github.com/go-playground/validator/v10"
)

// canonicalNumeral is the textual form a fill-in-blank key may take: up to
// four digits, an optional leading minus and an optional decimal comma.
var canonicalNumeral = regexp.MustCompile(`^-?[0-9]{1,4}(,[0-9]{1,3})?$`)

var scorableNumeral = regexp.MustCompile(`^-?[0-9]{4}$`)

const (
	minExamDuration = 1
	maxExamDuration = 300
)

// Validator combines struct tag validation with the exam rules
type Validator struct {
	structValidator *validator.Validate
	examValidator   *ExamValidator
}

// New creates a new centralized validator instance
func New() *Validator {
	structValidator := validator.New()
	registerCustomValidators(structValidator)

	return &Validator{
		structValidator: structValidator,
		examValidator:   NewExamValidator(),
	}
}

// ValidateStruct validates struct tags only
func (v *Validator) ValidateStruct(s interface{}) error {
	return v.structValidator.Struct(s)
}

// Validate validates struct tags and converts failures to ValidationErrors
func (v *Validator) Validate(s interface{}) error {
	if err := v.ValidateStruct(s); err != nil {
		if errs := errors.ToValidationErrors(err); len(errs) > 0 {
			return errs
		}
		return err
	}
	return nil
}

// Exam returns the question list validator
func (v *Validator) Exam() *ExamValidator {
	return v.examValidator
}

func registerCustomValidators(validate *validator.Validate) {
	validate.RegisterValidation("question_kind", validateQuestionKind)
	validate.RegisterValidation("option_label", validateOptionLabel)
	validate.RegisterValidation("statement_label", validateStatementLabel)
	validate.RegisterValidation("canonical_numeral", validateCanonicalNumeral)
	validate.RegisterValidation("exam_status", validateExamStatus)
	validate.RegisterValidation("exam_duration", validateExamDuration)

	// Report json names in errors
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validateQuestionKind(fl validator.FieldLevel) bool {
	return sheet.Kind(fl.Field().String()).Valid()
}

func validateOptionLabel(fl validator.FieldLevel) bool {
	return contains(sheet.Options, fl.Field().String())
}

func validateStatementLabel(fl validator.FieldLevel) bool {
	return contains(sheet.Statements, fl.Field().String())
}

func validateCanonicalNumeral(fl validator.FieldLevel) bool {
	return IsCanonicalNumeral(fl.Field().String())
}

func validateExamStatus(fl validator.FieldLevel) bool {
	return models.ExamStatus(fl.Field().String()).Valid()
}

func validateExamDuration(fl validator.FieldLevel) bool {
	d := fl.Field().Int()
	return d >= minExamDuration && d <= maxExamDuration
}

// IsScorableNumeral reports whether s can equal the numeral of a completed
// sheet: every digit column filled, optional minus, no decimal comma.
func IsScorableNumeral(s string) bool {
	return scorableNumeral.MatchString(s)
}

// IsCanonicalNumeral reports whether s is a valid fill-in-blank key.
func IsCanonicalNumeral(s string) bool {
	if !canonicalNumeral.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits <= sheet.DigitColumns
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}
