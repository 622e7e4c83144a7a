package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/SAP-F-2025/answer-sheet-service/internal/sheet"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ExamStatus string

const (
	ExamDraft     ExamStatus = "draft"
	ExamPublished ExamStatus = "published"
	ExamArchived  ExamStatus = "archived"
)

func (s ExamStatus) Valid() bool {
	switch s {
	case ExamDraft, ExamPublished, ExamArchived:
		return true
	}
	return false
}

// Exam is an exam document. Questions holds the []sheet.Question list,
// answer keys included, as a jsonb column.
type Exam struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	Title           string         `json:"title" gorm:"not null;size:200;index" validate:"required,min=1,max=200"`
	Subject         string         `json:"subject" gorm:"size:100;index" validate:"omitempty,max=100"`
	Description     *string        `json:"description" gorm:"type:text" validate:"omitempty,max=1000"`
	DurationMinutes int            `json:"duration_minutes" gorm:"not null;default:45" validate:"exam_duration"`
	Status          ExamStatus     `json:"status" gorm:"size:20;default:draft;index" validate:"omitempty,exam_status"`
	Questions       datatypes.JSON `json:"-" gorm:"type:jsonb"`
	PublishedAt     *time.Time     `json:"published_at"`

	CreatedBy string         `json:"created_by" gorm:"size:64;not null;index"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`

	Version int `json:"version" gorm:"default:1"`

	// Computed fields (not stored)
	QuestionCount int `json:"question_count" gorm:"-"`
	TotalSlots    int `json:"total_slots" gorm:"-"`
}

func (Exam) TableName() string {
	return "exams"
}

// SheetQuestions decodes the stored question list.
func (e *Exam) SheetQuestions() ([]sheet.Question, error) {
	if len(e.Questions) == 0 {
		return nil, nil
	}
	var questions []sheet.Question
	if err := json.Unmarshal(e.Questions, &questions); err != nil {
		return nil, fmt.Errorf("decode questions of exam %d: %w", e.ID, err)
	}
	return questions, nil
}

// SetSheetQuestions encodes questions into the jsonb column and refreshes the
// computed counters.
func (e *Exam) SetSheetQuestions(questions []sheet.Question) error {
	if questions == nil {
		questions = []sheet.Question{}
	}
	data, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("encode questions: %w", err)
	}
	e.Questions = datatypes.JSON(data)
	e.fillCounters(questions)
	return nil
}

// AfterFind fills the computed counters after loading from the database.
func (e *Exam) AfterFind(tx *gorm.DB) error {
	questions, err := e.SheetQuestions()
	if err != nil {
		return err
	}
	e.fillCounters(questions)
	return nil
}

func (e *Exam) fillCounters(questions []sheet.Question) {
	e.QuestionCount = len(questions)
	e.TotalSlots = 0
	for _, q := range questions {
		e.TotalSlots += q.Possible()
	}
}

// ExamView is the exam as served to clients. Answer keys are stripped unless
// the caller is allowed to see them.
type ExamView struct {
	*Exam
	Questions []sheet.Question `json:"questions"`
}

func NewExamView(e *Exam, withKeys bool) (*ExamView, error) {
	questions, err := e.SheetQuestions()
	if err != nil {
		return nil, err
	}
	if !withKeys {
		for i := range questions {
			questions[i] = questions[i].WithoutKey()
		}
	}
	if questions == nil {
		questions = []sheet.Question{}
	}
	return &ExamView{Exam: e, Questions: questions}, nil
}
