package sheet

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Answer is the recorded answer of one question. It is one of ChoiceAnswer,
// StatementAnswer or FillBlankAnswer.
type Answer interface {
	Kind() Kind
}

// ChoiceAnswer is the selected option of a multiple-choice question.
type ChoiceAnswer struct {
	Option string
}

// StatementAnswer holds the true/false selection of each sub-statement; nil
// means the sub-statement is unanswered.
type StatementAnswer struct {
	Values [StatementCount]*bool
}

// FillBlankAnswer is the composite answer of a fill-in-blank question. Any
// digit column may be unset.
type FillBlankAnswer struct {
	Digits   [DigitColumns]*int
	Negative bool
	HasComma bool
}

func (ChoiceAnswer) Kind() Kind    { return MultipleChoice }
func (StatementAnswer) Kind() Kind { return TrueFalse }
func (FillBlankAnswer) Kind() Kind { return FillInBlank }

// Numeral concatenates the digit columns in order, prefixed with "-" when
// the sign flag is set. ok is false while any column is unset. The comma
// flag is not part of the numeral.
func (a FillBlankAnswer) Numeral() (string, bool) {
	var b strings.Builder
	if a.Negative {
		b.WriteByte('-')
	}
	for _, d := range a.Digits {
		if d == nil {
			return "", false
		}
		b.WriteByte(byte('0' + *d))
	}
	return b.String(), true
}

// Sheet is the in-progress answer set of one attempt, keyed by (kind, index).
// The zero value is not usable; create one with New.
type Sheet struct {
	answers map[Key]Answer
}

func New() *Sheet {
	return &Sheet{answers: make(map[Key]Answer)}
}

// SelectOption records option as the answer of multiple-choice question index,
// replacing any earlier selection.
func (s *Sheet) SelectOption(index int, option string) error {
	key := Key{Kind: MultipleChoice, Index: index}
	if index < 1 {
		return &SelectionError{Key: key, Value: option, Err: ErrInvalidIndex}
	}
	if optionIndex(option) < 0 {
		return &SelectionError{Key: key, Value: option, Err: ErrInvalidOption}
	}
	s.answers[key] = ChoiceAnswer{Option: option}
	return nil
}

// SelectStatement records value for one sub-statement of true-false question
// index. Sibling sub-statements are untouched.
func (s *Sheet) SelectStatement(index int, statement string, value bool) error {
	key := Key{Kind: TrueFalse, Index: index}
	if index < 1 {
		return &SelectionError{Key: key, Slot: statement, Value: strconv.FormatBool(value), Err: ErrInvalidIndex}
	}
	pos := statementIndex(statement)
	if pos < 0 {
		return &SelectionError{Key: key, Slot: statement, Value: strconv.FormatBool(value), Err: ErrInvalidStatement}
	}
	current, _ := s.answers[key].(StatementAnswer)
	v := value
	current.Values[pos] = &v
	s.answers[key] = current
	return nil
}

// SelectDigit records digit in one column of fill-in-blank question index.
// Other columns and the flags are untouched.
func (s *Sheet) SelectDigit(index, column, digit int) error {
	key := Key{Kind: FillInBlank, Index: index}
	slot := strconv.Itoa(column)
	if index < 1 {
		return &SelectionError{Key: key, Slot: slot, Value: strconv.Itoa(digit), Err: ErrInvalidIndex}
	}
	if column < 0 || column >= DigitColumns {
		return &SelectionError{Key: key, Slot: slot, Value: strconv.Itoa(digit), Err: ErrInvalidColumn}
	}
	if digit < 0 || digit > 9 {
		return &SelectionError{Key: key, Slot: slot, Value: strconv.Itoa(digit), Err: ErrInvalidDigit}
	}
	current, _ := s.answers[key].(FillBlankAnswer)
	d := digit
	current.Digits[column] = &d
	s.answers[key] = current
	return nil
}

// SetNegative sets the sign flag of fill-in-blank question index.
func (s *Sheet) SetNegative(index int, negative bool) error {
	return s.setFlag(index, SlotSign, negative, func(a *FillBlankAnswer) { a.Negative = negative })
}

// SetComma sets the decimal comma flag of fill-in-blank question index.
func (s *Sheet) SetComma(index int, comma bool) error {
	return s.setFlag(index, SlotComma, comma, func(a *FillBlankAnswer) { a.HasComma = comma })
}

func (s *Sheet) setFlag(index int, slot string, value bool, apply func(*FillBlankAnswer)) error {
	key := Key{Kind: FillInBlank, Index: index}
	if index < 1 {
		return &SelectionError{Key: key, Slot: slot, Value: strconv.FormatBool(value), Err: ErrInvalidIndex}
	}
	current, _ := s.answers[key].(FillBlankAnswer)
	apply(&current)
	s.answers[key] = current
	return nil
}

// Option returns the selected option of multiple-choice question index.
func (s *Sheet) Option(index int) (string, bool) {
	if s == nil {
		return "", false
	}
	a, ok := s.answers[Key{Kind: MultipleChoice, Index: index}].(ChoiceAnswer)
	if !ok {
		return "", false
	}
	return a.Option, true
}

// Statement returns the selection of one sub-statement of true-false question index.
func (s *Sheet) Statement(index int, statement string) (bool, bool) {
	if s == nil {
		return false, false
	}
	pos := statementIndex(statement)
	if pos < 0 {
		return false, false
	}
	a, ok := s.answers[Key{Kind: TrueFalse, Index: index}].(StatementAnswer)
	if !ok || a.Values[pos] == nil {
		return false, false
	}
	return *a.Values[pos], true
}

// FillBlank returns the recorded answer of fill-in-blank question index.
func (s *Sheet) FillBlank(index int) (FillBlankAnswer, bool) {
	if s == nil {
		return FillBlankAnswer{}, false
	}
	a, ok := s.answers[Key{Kind: FillInBlank, Index: index}].(FillBlankAnswer)
	return a, ok
}

// Answer returns the recorded answer for key.
func (s *Sheet) Answer(key Key) (Answer, bool) {
	if s == nil {
		return nil, false
	}
	a, ok := s.answers[key]
	return a, ok
}

// Len is the number of questions with at least one recorded slot.
func (s *Sheet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.answers)
}

// Keys returns the recorded keys ordered by kind then index.
func (s *Sheet) Keys() []Key {
	if s == nil {
		return nil
	}
	keys := make([]Key, 0, len(s.answers))
	for k := range s.answers {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ki, kj := kindOrder(keys[i].Kind), kindOrder(keys[j].Kind)
		if ki != kj {
			return ki < kj
		}
		return keys[i].Index < keys[j].Index
	})
	return keys
}

// Clone returns a deep copy of the sheet.
func (s *Sheet) Clone() *Sheet {
	c := New()
	if s == nil {
		return c
	}
	for k, a := range s.answers {
		switch v := a.(type) {
		case StatementAnswer:
			var cp StatementAnswer
			for i, p := range v.Values {
				if p != nil {
					b := *p
					cp.Values[i] = &b
				}
			}
			c.answers[k] = cp
		case FillBlankAnswer:
			cp := FillBlankAnswer{Negative: v.Negative, HasComma: v.HasComma}
			for i, p := range v.Digits {
				if p != nil {
					d := *p
					cp.Digits[i] = &d
				}
			}
			c.answers[k] = cp
		default:
			c.answers[k] = a
		}
	}
	return c
}

func kindOrder(k Kind) int {
	for i, kind := range Kinds {
		if kind == k {
			return i
		}
	}
	return len(Kinds)
}

// ===== SELECTION EVENTS =====

const (
	SlotSign  = "sign"
	SlotComma = "comma"
)

// Selection is a single selection event as received from a client.
//
//	multiple-choice: Slot empty, Value an option label
//	true-false:      Slot a statement label, Value "true" or "false"
//	fill-in-blank:   Slot a digit column "0".."3" with Value a digit,
//	                 or Slot "sign"/"comma" with Value "true" or "false"
type Selection struct {
	Kind  Kind   `json:"kind" validate:"required,question_kind"`
	Index int    `json:"index" validate:"required,min=1"`
	Slot  string `json:"slot,omitempty" validate:"omitempty,max=8"`
	Value string `json:"value" validate:"required,max=8"`
}

// Select applies a selection event to the sheet.
func (s *Sheet) Select(sel Selection) error {
	key := Key{Kind: sel.Kind, Index: sel.Index}
	switch sel.Kind {
	case MultipleChoice:
		if sel.Slot != "" {
			return &SelectionError{Key: key, Slot: sel.Slot, Value: sel.Value, Err: ErrInvalidSlot}
		}
		return s.SelectOption(sel.Index, sel.Value)
	case TrueFalse:
		v, err := strconv.ParseBool(sel.Value)
		if err != nil {
			return &SelectionError{Key: key, Slot: sel.Slot, Value: sel.Value, Err: ErrInvalidValue}
		}
		return s.SelectStatement(sel.Index, sel.Slot, v)
	case FillInBlank:
		switch sel.Slot {
		case SlotSign, SlotComma:
			v, err := strconv.ParseBool(sel.Value)
			if err != nil {
				return &SelectionError{Key: key, Slot: sel.Slot, Value: sel.Value, Err: ErrInvalidValue}
			}
			if sel.Slot == SlotSign {
				return s.SetNegative(sel.Index, v)
			}
			return s.SetComma(sel.Index, v)
		}
		column, err := strconv.Atoi(sel.Slot)
		if err != nil || len(sel.Slot) != 1 {
			return &SelectionError{Key: key, Slot: sel.Slot, Value: sel.Value, Err: ErrInvalidSlot}
		}
		digit, err := strconv.Atoi(sel.Value)
		if err != nil || len(sel.Value) != 1 {
			return &SelectionError{Key: key, Slot: sel.Slot, Value: sel.Value, Err: ErrInvalidDigit}
		}
		return s.SelectDigit(sel.Index, column, digit)
	}
	return &SelectionError{Key: key, Slot: sel.Slot, Value: sel.Value, Err: ErrInvalidKind}
}

// ===== DOCUMENT FORM =====

type entryDoc struct {
	Kind       Kind    `json:"kind"`
	Index      int     `json:"index"`
	Option     string  `json:"option,omitempty"`
	Statements []*bool `json:"statements,omitempty"`
	Digits     []*int  `json:"digits,omitempty"`
	Negative   bool    `json:"negative,omitempty"`
	Comma      bool    `json:"comma,omitempty"`
}

type sheetDoc struct {
	Answers []entryDoc `json:"answers"`
}

func (s *Sheet) MarshalJSON() ([]byte, error) {
	doc := sheetDoc{Answers: make([]entryDoc, 0, s.Len())}
	for _, k := range s.Keys() {
		e := entryDoc{Kind: k.Kind, Index: k.Index}
		switch a := s.answers[k].(type) {
		case ChoiceAnswer:
			e.Option = a.Option
		case StatementAnswer:
			e.Statements = a.Values[:]
		case FillBlankAnswer:
			e.Digits = a.Digits[:]
			e.Negative = a.Negative
			e.Comma = a.HasComma
		}
		doc.Answers = append(doc.Answers, e)
	}
	return json.Marshal(doc)
}

// UnmarshalJSON replaces the sheet contents. Every entry is replayed through
// the selection operations, so a document cannot introduce values a
// selection would reject.
func (s *Sheet) UnmarshalJSON(data []byte) error {
	var doc sheetDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	fresh := New()
	for _, e := range doc.Answers {
		if err := fresh.replay(e); err != nil {
			return fmt.Errorf("decode answer sheet: %w", err)
		}
	}
	s.answers = fresh.answers
	return nil
}

func (s *Sheet) replay(e entryDoc) error {
	switch e.Kind {
	case MultipleChoice:
		return s.SelectOption(e.Index, e.Option)
	case TrueFalse:
		if len(e.Statements) > StatementCount {
			return &SelectionError{Key: Key{Kind: e.Kind, Index: e.Index}, Err: ErrInvalidStatement}
		}
		for i, v := range e.Statements {
			if v == nil {
				continue
			}
			if err := s.SelectStatement(e.Index, Statements[i], *v); err != nil {
				return err
			}
		}
		key := Key{Kind: TrueFalse, Index: e.Index}
		if e.Index < 1 {
			return &SelectionError{Key: key, Err: ErrInvalidIndex}
		}
		if _, ok := s.answers[key]; !ok {
			s.answers[key] = StatementAnswer{}
		}
		return nil
	case FillInBlank:
		if len(e.Digits) > DigitColumns {
			return &SelectionError{Key: Key{Kind: e.Kind, Index: e.Index}, Err: ErrInvalidColumn}
		}
		for col, d := range e.Digits {
			if d == nil {
				continue
			}
			if err := s.SelectDigit(e.Index, col, *d); err != nil {
				return err
			}
		}
		if err := s.SetNegative(e.Index, e.Negative); err != nil {
			return err
		}
		return s.SetComma(e.Index, e.Comma)
	}
	return &SelectionError{Key: Key{Kind: e.Kind, Index: e.Index}, Err: ErrInvalidKind}
}
