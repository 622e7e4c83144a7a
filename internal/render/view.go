// Package render lays out exam answer sheets and writes them as PDF or HTML.
// Every output is drawn from the same SheetView.
package render

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/SAP-F-2025/answer-sheet-service/internal/models"
	"github.com/SAP-F-2025/answer-sheet-service/internal/sheet"
)

// Bubble is one printable circle.
type Bubble struct {
	Label  string
	Filled bool
	// Key marks the bubble the answer key expects. Only set when keys are shown.
	Key bool
}

type StatementRow struct {
	Label string
	True  Bubble
	False Bubble
}

type DigitColumn struct {
	Digits []Bubble
}

type NumeralGrid struct {
	Sign    Bubble
	Comma   Bubble
	Columns []DigitColumn
	// Answer is the numeral read from the bubbles, empty while incomplete.
	Answer string
	// KeyText is the expected numeral, empty when keys are hidden.
	KeyText string
}

type QuestionView struct {
	Key        sheet.Key
	Number     int
	Prompt     string
	ImageURL   string
	Options    []Bubble
	Statements []StatementRow
	Numeral    *NumeralGrid
	Result     *sheet.QuestionResult
}

type Section struct {
	Kind      sheet.Kind
	Title     string
	Questions []QuestionView
}

type SheetView struct {
	ExamID          uint
	Title           string
	Subject         string
	DurationMinutes int
	StudentID       string
	AttemptID       string
	SubmittedAt     *time.Time
	ShowKeys        bool
	Result          *sheet.Result
	Sections        []Section
}

// ViewOptions selects what is printed next to the questions.
type ViewOptions struct {
	ShowKeys bool
	Result   *sheet.Result
	Record   *models.AttemptRecord
}

var sectionTitles = map[sheet.Kind]string{
	sheet.MultipleChoice: "Part I. Multiple choice",
	sheet.TrueFalse:      "Part II. True or false",
	sheet.FillInBlank:    "Part III. Short answer",
}

// BuildSheetView lays out questions by kind. answers may be nil for a blank
// sheet. Questions of an unknown kind are left out.
func BuildSheetView(exam *models.Exam, questions []sheet.Question, answers *sheet.Sheet, opts ViewOptions) *SheetView {
	view := &SheetView{
		ShowKeys: opts.ShowKeys,
		Result:   opts.Result,
	}
	if exam != nil {
		view.ExamID = exam.ID
		view.Title = exam.Title
		view.Subject = exam.Subject
		view.DurationMinutes = exam.DurationMinutes
	}
	if opts.Record != nil {
		view.StudentID = opts.Record.StudentID
		view.AttemptID = opts.Record.ID
		submitted := opts.Record.SubmittedAt
		view.SubmittedAt = &submitted
	}

	results := make(map[sheet.Key]sheet.QuestionResult)
	if answers != nil && opts.ShowKeys {
		for _, qr := range sheet.Detail(questions, answers) {
			results[qr.Key] = qr
		}
	}

	byKind := make(map[sheet.Kind][]sheet.Question)
	for _, q := range questions {
		if q.Kind.Valid() {
			byKind[q.Kind] = append(byKind[q.Kind], q)
		}
	}

	for _, kind := range sheet.Kinds {
		list := byKind[kind]
		if len(list) == 0 {
			continue
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Index < list[j].Index })

		section := Section{Kind: kind, Title: sectionTitles[kind]}
		for _, q := range list {
			qv := QuestionView{Key: q.Key(), Number: q.Index, Prompt: q.Prompt, ImageURL: q.ImageURL}
			showKey := opts.ShowKeys && q.HasAnswerKey()
			switch kind {
			case sheet.MultipleChoice:
				qv.Options = choiceBubbles(q, answers, showKey)
			case sheet.TrueFalse:
				qv.Statements = statementRows(q, answers, showKey)
			case sheet.FillInBlank:
				qv.Numeral = numeralGrid(q, answers, showKey)
			}
			if qr, ok := results[q.Key()]; ok {
				qr := qr
				qv.Result = &qr
			}
			section.Questions = append(section.Questions, qv)
		}
		view.Sections = append(view.Sections, section)
	}

	return view
}

func choiceBubbles(q sheet.Question, answers *sheet.Sheet, showKey bool) []Bubble {
	selected, _ := answers.Option(q.Index)
	bubbles := make([]Bubble, len(sheet.Options))
	for i, label := range sheet.Options {
		bubbles[i] = Bubble{
			Label:  label,
			Filled: selected == label,
			Key:    showKey && q.MultipleChoice.CorrectAnswer == label,
		}
	}
	return bubbles
}

func statementRows(q sheet.Question, answers *sheet.Sheet, showKey bool) []StatementRow {
	rows := make([]StatementRow, len(sheet.Statements))
	for i, label := range sheet.Statements {
		value, answered := answers.Statement(q.Index, label)
		row := StatementRow{
			Label: label,
			True:  Bubble{Label: "T", Filled: answered && value},
			False: Bubble{Label: "F", Filled: answered && !value},
		}
		if showKey && i < len(q.TrueFalse.CorrectAnswers) {
			expected := q.TrueFalse.CorrectAnswers[i]
			row.True.Key = expected
			row.False.Key = !expected
		}
		rows[i] = row
	}
	return rows
}

func numeralGrid(q sheet.Question, answers *sheet.Sheet, showKey bool) *NumeralGrid {
	answer, _ := answers.FillBlank(q.Index)
	grid := &NumeralGrid{
		Sign:    Bubble{Label: "-", Filled: answer.Negative},
		Comma:   Bubble{Label: ",", Filled: answer.HasComma},
		Columns: make([]DigitColumn, sheet.DigitColumns),
	}
	if numeral, ok := answer.Numeral(); ok {
		grid.Answer = numeral
	}

	var keyDigits []int
	if showKey {
		grid.KeyText = q.FillBlank.CorrectAnswer
		grid.Sign.Key = strings.HasPrefix(grid.KeyText, "-")
		keyDigits = digitsOf(grid.KeyText)
	}

	for col := range grid.Columns {
		digits := make([]Bubble, 10)
		for d := 0; d < 10; d++ {
			b := Bubble{Label: strconv.Itoa(d)}
			if v := answer.Digits[col]; v != nil && *v == d {
				b.Filled = true
			}
			if len(keyDigits) == sheet.DigitColumns && keyDigits[col] == d {
				b.Key = true
			}
			digits[d] = b
		}
		grid.Columns[col] = DigitColumn{Digits: digits}
	}
	return grid
}

// digitsOf returns the decimal digits of a key, ignoring the sign and comma.
func digitsOf(key string) []int {
	var digits []int
	for _, r := range key {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	return digits
}
