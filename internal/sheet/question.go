// Package sheet holds the answer set of one exam attempt and scores it
// against an exam's answer key.
//
// A Sheet is owned by exactly one attempt. It is mutated only through the
// single-slot Select* operations and is read by Score, which never mutates
// its inputs.
package sheet

import (
	"fmt"
	"strings"
)

// Kind is the question type tag.
type Kind string

const (
	MultipleChoice Kind = "multiple-choice"
	TrueFalse      Kind = "true-false"
	FillInBlank    Kind = "fill-in-blank"
)

// Kinds lists the supported kinds in sheet order.
var Kinds = []Kind{MultipleChoice, TrueFalse, FillInBlank}

const (
	// StatementCount is the number of sub-statements of a true-false question.
	StatementCount = 4
	// DigitColumns is the number of digit columns of a fill-in-blank answer.
	DigitColumns = 4
)

var (
	// Options are the selectable labels of a multiple-choice question.
	Options = []string{"A", "B", "C", "D"}
	// Statements are the sub-statement labels of a true-false question.
	Statements = []string{"a", "b", "c", "d"}
)

func (k Kind) Valid() bool {
	switch k {
	case MultipleChoice, TrueFalse, FillInBlank:
		return true
	}
	return false
}

// Tag is the short prefix used in logs and spreadsheet exports.
func (k Kind) Tag() string {
	switch k {
	case MultipleChoice:
		return "mc"
	case TrueFalse:
		return "tf"
	case FillInBlank:
		return "fib"
	}
	return string(k)
}

// ParseKind accepts the canonical kind names and their short tags.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case string(MultipleChoice), "mc", "multiple_choice":
		return MultipleChoice, true
	case string(TrueFalse), "tf", "true_false":
		return TrueFalse, true
	case string(FillInBlank), "fib", "fill_blank", "fill-blank":
		return FillInBlank, true
	}
	return "", false
}

// Key identifies one question in the answer set. Multiple-choice question 3
// and fill-in-blank question 3 are different keys.
type Key struct {
	Kind  Kind `json:"kind"`
	Index int  `json:"index"`
}

func (k Key) String() string {
	return fmt.Sprintf("%s-%d", k.Kind.Tag(), k.Index)
}

// MultipleChoiceKey is the answer key of a multiple-choice question.
type MultipleChoiceKey struct {
	CorrectAnswer string `json:"correct_answer"`
}

// TrueFalseKey is the answer key of a true-false question, one value per
// sub-statement in a..d order.
type TrueFalseKey struct {
	CorrectAnswers []bool `json:"correct_answers"`
}

// FillBlankKey holds the canonical string form of a fill-in-blank answer.
type FillBlankKey struct {
	CorrectAnswer string `json:"correct_answer"`
}

// Question is one exam question. Exactly one of the key payloads matching
// Kind is consulted when scoring; a nil payload means the key is missing and
// the question never counts as correct.
type Question struct {
	Index      int      `json:"index"`
	Kind       Kind     `json:"kind"`
	Prompt     string   `json:"prompt,omitempty"`
	ImageURL   string   `json:"image_url,omitempty"`
	Choices    []string `json:"choices,omitempty"`
	Statements []string `json:"statements,omitempty"`

	MultipleChoice *MultipleChoiceKey `json:"multiple_choice,omitempty"`
	TrueFalse      *TrueFalseKey      `json:"true_false,omitempty"`
	FillBlank      *FillBlankKey      `json:"fill_blank,omitempty"`
}

func (q Question) Key() Key {
	return Key{Kind: q.Kind, Index: q.Index}
}

// HasAnswerKey reports whether the key payload for the question's kind is present.
func (q Question) HasAnswerKey() bool {
	switch q.Kind {
	case MultipleChoice:
		return q.MultipleChoice != nil && q.MultipleChoice.CorrectAnswer != ""
	case TrueFalse:
		return q.TrueFalse != nil && len(q.TrueFalse.CorrectAnswers) > 0
	case FillInBlank:
		return q.FillBlank != nil && q.FillBlank.CorrectAnswer != ""
	}
	return false
}

// Possible is the number of gradable slots the question contributes to the total.
func (q Question) Possible() int {
	switch q.Kind {
	case MultipleChoice, FillInBlank:
		return 1
	case TrueFalse:
		return StatementCount
	}
	return 0
}

// WithoutKey returns a copy of the question with every answer key removed,
// suitable for sending to a student.
func (q Question) WithoutKey() Question {
	q.MultipleChoice = nil
	q.TrueFalse = nil
	q.FillBlank = nil
	return q
}

func optionIndex(label string) int {
	for i, o := range Options {
		if o == label {
			return i
		}
	}
	return -1
}

func statementIndex(label string) int {
	for i, s := range Statements {
		if s == label {
			return i
		}
	}
	return -1
}
