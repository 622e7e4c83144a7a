package sheet

import "math"

// ScaleMax is the top of the score scale.
const ScaleMax = 10

// Result is the outcome of scoring one sheet.
type Result struct {
	Correct int     `json:"correct"`
	Total   int     `json:"total"`
	Score   float64 `json:"score"`
}

// QuestionResult is the per-question breakdown of a Result. Slots holds one
// entry per gradable slot: one for multiple-choice and fill-in-blank, four for
// true-false.
type QuestionResult struct {
	Key      Key    `json:"key"`
	Correct  int    `json:"correct"`
	Total    int    `json:"total"`
	Answered bool   `json:"answered"`
	Slots    []bool `json:"slots"`
}

// Score grades sheet against the answer keys in questions. A nil sheet is an
// empty sheet. Neither argument is modified.
func Score(questions []Question, s *Sheet) Result {
	var r Result
	for _, qr := range Detail(questions, s) {
		r.Correct += qr.Correct
		r.Total += qr.Total
	}
	r.Score = scale(r.Correct, r.Total)
	return r
}

// Detail grades each question separately, in the order given. Questions of an
// unknown kind contribute nothing and are omitted.
func Detail(questions []Question, s *Sheet) []QuestionResult {
	out := make([]QuestionResult, 0, len(questions))
	for _, q := range questions {
		var qr QuestionResult
		switch q.Kind {
		case MultipleChoice:
			qr = gradeChoice(q, s)
		case TrueFalse:
			qr = gradeStatements(q, s)
		case FillInBlank:
			qr = gradeFillBlank(q, s)
		default:
			continue
		}
		for _, ok := range qr.Slots {
			if ok {
				qr.Correct++
			}
		}
		qr.Total = len(qr.Slots)
		out = append(out, qr)
	}
	return out
}

func gradeChoice(q Question, s *Sheet) QuestionResult {
	qr := QuestionResult{Key: q.Key(), Slots: make([]bool, 1)}
	selected, ok := s.Option(q.Index)
	qr.Answered = ok
	qr.Slots[0] = ok && q.MultipleChoice != nil && q.MultipleChoice.CorrectAnswer != "" &&
		selected == q.MultipleChoice.CorrectAnswer
	return qr
}

func gradeStatements(q Question, s *Sheet) QuestionResult {
	qr := QuestionResult{Key: q.Key(), Slots: make([]bool, StatementCount)}
	for i, label := range Statements {
		v, ok := s.Statement(q.Index, label)
		if !ok {
			continue
		}
		qr.Answered = true
		if q.TrueFalse != nil && i < len(q.TrueFalse.CorrectAnswers) {
			qr.Slots[i] = v == q.TrueFalse.CorrectAnswers[i]
		}
	}
	return qr
}

func gradeFillBlank(q Question, s *Sheet) QuestionResult {
	qr := QuestionResult{Key: q.Key(), Slots: make([]bool, 1)}
	a, ok := s.FillBlank(q.Index)
	if !ok {
		return qr
	}
	for _, d := range a.Digits {
		if d != nil {
			qr.Answered = true
			break
		}
	}
	numeral, complete := a.Numeral()
	// Exact text match; the comma flag and leading zeros are not normalised.
	qr.Slots[0] = complete && q.FillBlank != nil && q.FillBlank.CorrectAnswer != "" &&
		numeral == q.FillBlank.CorrectAnswer
	return qr
}

func scale(correct, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(correct)/float64(total)*ScaleMax*100) / 100
}
