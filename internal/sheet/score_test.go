package sheet

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mcQuestion(index int, correct string) Question {
	return Question{Index: index, Kind: MultipleChoice, MultipleChoice: &MultipleChoiceKey{CorrectAnswer: correct}}
}

func tfQuestion(index int, correct ...bool) Question {
	return Question{Index: index, Kind: TrueFalse, TrueFalse: &TrueFalseKey{CorrectAnswers: correct}}
}

func fibQuestion(index int, correct string) Question {
	return Question{Index: index, Kind: FillInBlank, FillBlank: &FillBlankKey{CorrectAnswer: correct}}
}

func selectDigits(t *testing.T, s *Sheet, index int, digits ...int) {
	t.Helper()
	for col, d := range digits {
		require.NoError(t, s.SelectDigit(index, col, d))
	}
}

func TestScore_EmptySheet(t *testing.T) {
	questions := []Question{
		mcQuestion(1, "A"),
		mcQuestion(2, "B"),
		tfQuestion(1, true, true, false, false),
		fibQuestion(1, "12"),
	}

	for _, s := range []*Sheet{New(), nil} {
		r := Score(questions, s)
		assert.Equal(t, 0, r.Correct)
		assert.Equal(t, 2+4+1, r.Total)
		assert.Equal(t, 0.0, r.Score)
	}
}

func TestScore_NoGradableQuestions(t *testing.T) {
	assert.Equal(t, Result{}, Score(nil, New()))
	assert.Equal(t, Result{}, Score([]Question{{Index: 1, Kind: "essay"}}, New()))
}

func TestScore_MultipleChoice(t *testing.T) {
	questions := []Question{mcQuestion(1, "B")}

	tests := []struct {
		name    string
		option  string
		correct int
	}{
		{name: "matching option", option: "B", correct: 1},
		{name: "wrong option", option: "A", correct: 0},
		{name: "no selection", option: "", correct: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			if tt.option != "" {
				require.NoError(t, s.SelectOption(1, tt.option))
			}
			r := Score(questions, s)
			assert.Equal(t, tt.correct, r.Correct)
			assert.Equal(t, 1, r.Total)
		})
	}
}

func TestScore_MultipleChoiceIsCaseSensitive(t *testing.T) {
	s := New()
	require.NoError(t, s.SelectOption(1, "B"))
	assert.Equal(t, 0, Score([]Question{mcQuestion(1, "b")}, s).Correct)
}

func TestScore_TrueFalsePartialCredit(t *testing.T) {
	questions := []Question{tfQuestion(1, true, false, true, false)}
	s := New()
	require.NoError(t, s.SelectStatement(1, "a", true))
	require.NoError(t, s.SelectStatement(1, "b", true))

	r := Score(questions, s)
	assert.Equal(t, 1, r.Correct)
	assert.Equal(t, 4, r.Total)
	assert.Equal(t, 2.5, r.Score)
}

func TestScore_TrueFalseShortKey(t *testing.T) {
	questions := []Question{tfQuestion(1, true, true)}
	s := New()
	for _, label := range Statements {
		require.NoError(t, s.SelectStatement(1, label, true))
	}

	r := Score(questions, s)
	assert.Equal(t, 2, r.Correct, "statements beyond the key never match")
	assert.Equal(t, 4, r.Total)
}

func TestScore_FillBlank(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		digits   []int
		negative bool
		comma    bool
		correct  int
	}{
		{name: "negative match", key: "-1234", digits: []int{1, 2, 3, 4}, negative: true, correct: 1},
		{name: "sign missing", key: "-1234", digits: []int{1, 2, 3, 4}, correct: 0},
		{name: "unset column", key: "-123", digits: []int{1, 2, 3}, negative: true, correct: 0},
		{name: "leading zeros kept", key: "0042", digits: []int{0, 0, 4, 2}, correct: 1},
		{name: "leading zeros not normalised", key: "42", digits: []int{0, 0, 4, 2}, correct: 0},
		{name: "comma ignored in matching", key: "1234", digits: []int{1, 2, 3, 4}, comma: true, correct: 1},
		{name: "decimal key never matches", key: "12,34", digits: []int{1, 2, 3, 4}, comma: true, correct: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New()
			selectDigits(t, s, 1, tt.digits...)
			require.NoError(t, s.SetNegative(1, tt.negative))
			require.NoError(t, s.SetComma(1, tt.comma))

			r := Score([]Question{fibQuestion(1, tt.key)}, s)
			assert.Equal(t, tt.correct, r.Correct)
			assert.Equal(t, 1, r.Total)
		})
	}
}

func TestScore_MissingAnswerKey(t *testing.T) {
	questions := []Question{
		{Index: 1, Kind: MultipleChoice},
		{Index: 1, Kind: TrueFalse},
		{Index: 1, Kind: FillInBlank},
		{Index: 2, Kind: FillInBlank, FillBlank: &FillBlankKey{}},
	}
	s := New()
	require.NoError(t, s.SelectOption(1, "A"))
	require.NoError(t, s.SelectStatement(1, "a", false))
	selectDigits(t, s, 1, 0, 0, 0, 0)
	selectDigits(t, s, 2, 0, 0, 0, 0)

	r := Score(questions, s)
	assert.Equal(t, 0, r.Correct)
	assert.Equal(t, 1+4+1+1, r.Total)
}

func TestScore_Rounding(t *testing.T) {
	questions := []Question{mcQuestion(1, "A"), mcQuestion(2, "A"), mcQuestion(3, "A")}
	s := New()
	require.NoError(t, s.SelectOption(1, "A"))
	require.NoError(t, s.SelectOption(2, "A"))

	r := Score(questions, s)
	assert.Equal(t, 2, r.Correct)
	assert.Equal(t, 6.67, r.Score)
}

func TestScore_MixedExam(t *testing.T) {
	questions := []Question{
		mcQuestion(1, "A"),
		mcQuestion(2, "C"),
		tfQuestion(1, true, false, true, false),
		fibQuestion(1, "2024"),
	}
	s := New()
	require.NoError(t, s.SelectOption(1, "A"))
	require.NoError(t, s.SelectOption(2, "D"))
	for i, v := range []bool{true, false, true, true} {
		require.NoError(t, s.SelectStatement(1, Statements[i], v))
	}
	selectDigits(t, s, 1, 2, 0, 2, 4)

	r := Score(questions, s)
	assert.Equal(t, Result{Correct: 5, Total: 7, Score: 7.14}, r)
}

func TestScore_PureAndIdempotent(t *testing.T) {
	questions := []Question{mcQuestion(1, "A"), tfQuestion(1, true, true, true, true), fibQuestion(1, "-0001")}
	s := New()
	require.NoError(t, s.SelectOption(1, "A"))
	require.NoError(t, s.SelectStatement(1, "c", true))
	selectDigits(t, s, 1, 0, 0, 0, 1)
	require.NoError(t, s.SetNegative(1, true))

	sheetBefore, err := json.Marshal(s)
	require.NoError(t, err)
	questionsBefore, err := json.Marshal(questions)
	require.NoError(t, err)

	first := Score(questions, s)
	second := Score(questions, s)
	assert.Equal(t, first, second)
	assert.Equal(t, Result{Correct: 3, Total: 6, Score: 5}, first)

	sheetAfter, _ := json.Marshal(s)
	questionsAfter, _ := json.Marshal(questions)
	assert.JSONEq(t, string(sheetBefore), string(sheetAfter))
	assert.JSONEq(t, string(questionsBefore), string(questionsAfter))
}

func TestDetail(t *testing.T) {
	questions := []Question{
		mcQuestion(1, "A"),
		{Index: 9, Kind: "essay"},
		tfQuestion(1, true, false, true, false),
		fibQuestion(1, "1111"),
	}
	s := New()
	require.NoError(t, s.SelectStatement(1, "a", true))
	require.NoError(t, s.SelectStatement(1, "d", true))
	require.NoError(t, s.SelectDigit(1, 0, 1))

	detail := Detail(questions, s)
	require.Len(t, detail, 3)

	assert.Equal(t, Key{Kind: MultipleChoice, Index: 1}, detail[0].Key)
	assert.False(t, detail[0].Answered)

	assert.Equal(t, []bool{true, false, false, false}, detail[1].Slots)
	assert.Equal(t, 1, detail[1].Correct)
	assert.Equal(t, 4, detail[1].Total)
	assert.True(t, detail[1].Answered)

	assert.True(t, detail[2].Answered)
	assert.Equal(t, 0, detail[2].Correct)
}
